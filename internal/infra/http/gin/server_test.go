package ginserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gin "github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"studenthelper/internal/infra/obs"
	"studenthelper/internal/infra/security"
	"studenthelper/internal/infra/storage/memory"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tokens := security.JWTManager{Secret: []byte("test-secret"), TTL: time.Hour}
	auth := &AuthHandler{
		Users:  memory.NewUserRepository(),
		Hasher: security.BcryptHasher{Cost: bcrypt.MinCost},
		Tokens: tokens,
	}
	messages := &MessageHandler{
		Store: memory.NewMessageStore(),
		Users: auth.Users,
	}
	return NewRouter(obs.Middleware{}, obs.HealthHandlers{}, Handlers{
		Auth:           auth,
		Message:        messages,
		AuthMiddleware: Authenticator{Tokens: tokens}.Middleware(),
	})
}

type testResponse struct {
	Success       bool             `json:"success"`
	Message       string           `json:"message"`
	Token         string           `json:"token"`
	User          map[string]any   `json:"user"`
	Conversations []map[string]any `json:"conversations"`
	Messages      []map[string]any `json:"messages"`
	Data          map[string]any   `json:"data"`
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token string, body any) (int, testResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var resp testResponse
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec.Code, resp
}

func registerUser(t *testing.T, router *gin.Engine, name, email string) (id, token string) {
	t.Helper()
	status, resp := doJSON(t, router, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": name, "email": email, "password": "hunter22",
	})
	if status != http.StatusOK || !resp.Success {
		t.Fatalf("register %s: status %d, success %v, message %q", name, status, resp.Success, resp.Message)
	}
	if resp.Token == "" {
		t.Fatalf("register %s: no token", name)
	}
	uid, _ := resp.User["id"].(string)
	if uid == "" {
		t.Fatalf("register %s: no user id in %v", name, resp.User)
	}
	return uid, resp.Token
}

func TestRegisterLoginFlow(t *testing.T) {
	router := newTestRouter(t)
	registerUser(t, router, "Alice", "alice@example.com")

	status, resp := doJSON(t, router, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Other", "email": "ALICE@example.com", "password": "pw",
	})
	if status != http.StatusOK || resp.Success {
		t.Fatalf("duplicate email: status %d, success %v", status, resp.Success)
	}
	if resp.Message != "Email already in use" {
		t.Fatalf("duplicate email message = %q", resp.Message)
	}

	status, resp = doJSON(t, router, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "hunter22",
	})
	if status != http.StatusOK || !resp.Success || resp.Token == "" {
		t.Fatalf("login: status %d, success %v, token %q", status, resp.Success, resp.Token)
	}

	_, resp = doJSON(t, router, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "wrong",
	})
	if resp.Success || resp.Message != "Invalid email or password" {
		t.Fatalf("bad password: success %v, message %q", resp.Success, resp.Message)
	}
}

func TestMessageRoutesRequireToken(t *testing.T) {
	router := newTestRouter(t)
	status, resp := doJSON(t, router, http.MethodGet, "/api/message/conversations", "", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", status)
	}
	if resp.Success {
		t.Fatal("unauthorized response claims success")
	}

	status, _ = doJSON(t, router, http.MethodGet, "/api/message/conversations", "garbage-token", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("invalid token status = %d, want 401", status)
	}
}

func TestSendFetchAndConversations(t *testing.T) {
	router := newTestRouter(t)
	aliceID, aliceToken := registerUser(t, router, "Alice", "alice@example.com")
	bobID, bobToken := registerUser(t, router, "Bob", "bob@example.com")

	status, resp := doJSON(t, router, http.MethodPost, "/api/message", aliceToken, map[string]any{
		"receiverId": bobID,
		"content":    "hi bob",
		"relatedTo":  map[string]string{"type": "hostel", "id": "42"},
	})
	if status != http.StatusOK || !resp.Success {
		t.Fatalf("send: status %d, success %v, message %q", status, resp.Success, resp.Message)
	}
	if resp.Data["content"] != "hi bob" {
		t.Fatalf("send data = %v", resp.Data)
	}

	_, resp = doJSON(t, router, http.MethodPost, "/api/message", bobToken, map[string]any{
		"receiverId": aliceID, "content": "hi alice",
	})
	if !resp.Success {
		t.Fatalf("reply failed: %q", resp.Message)
	}

	_, resp = doJSON(t, router, http.MethodGet, "/api/message/"+aliceID, bobToken, nil)
	if !resp.Success || len(resp.Messages) != 2 {
		t.Fatalf("history: success %v, %d messages", resp.Success, len(resp.Messages))
	}
	if resp.Messages[0]["content"] != "hi bob" || resp.Messages[1]["content"] != "hi alice" {
		t.Fatalf("history out of order: %v", resp.Messages)
	}
	sender, _ := resp.Messages[0]["sender"].(map[string]any)
	if sender["id"] != aliceID {
		t.Fatalf("sender = %v", sender)
	}

	// Bob opened the thread, so Alice's message is read now.
	_, resp = doJSON(t, router, http.MethodGet, "/api/message/conversations", bobToken, nil)
	if !resp.Success || len(resp.Conversations) != 1 {
		t.Fatalf("conversations: success %v, %d entries", resp.Success, len(resp.Conversations))
	}
	conv := resp.Conversations[0]
	if conv["lastMessage"] != "hi alice" {
		t.Fatalf("lastMessage = %v", conv["lastMessage"])
	}
	if got := conv["unreadCount"].(float64); got != 0 {
		t.Fatalf("unreadCount = %v, want 0", got)
	}
	related, _ := conv["relatedTo"].(map[string]any)
	if related["type"] != "hostel" || related["id"] != "42" {
		t.Fatalf("relatedTo = %v", related)
	}

	// Alice never opened hers, so Bob's reply stays unread.
	_, resp = doJSON(t, router, http.MethodGet, "/api/message/conversations", aliceToken, nil)
	if got := resp.Conversations[0]["unreadCount"].(float64); got != 1 {
		t.Fatalf("alice unreadCount = %v, want 1", got)
	}
}

func TestSendValidation(t *testing.T) {
	router := newTestRouter(t)
	aliceID, aliceToken := registerUser(t, router, "Alice", "alice@example.com")

	_, resp := doJSON(t, router, http.MethodPost, "/api/message", aliceToken, map[string]any{
		"receiverId": "9999", "content": "hello?",
	})
	if resp.Success || resp.Message != "Recipient not found" {
		t.Fatalf("unknown receiver: success %v, message %q", resp.Success, resp.Message)
	}

	_, resp = doJSON(t, router, http.MethodPost, "/api/message", aliceToken, map[string]any{
		"receiverId": aliceID, "content": "note to self",
	})
	if resp.Success {
		t.Fatal("self-message accepted")
	}

	_, resp = doJSON(t, router, http.MethodPost, "/api/message", aliceToken, map[string]any{
		"receiverId": aliceID, "content": "   ",
	})
	if resp.Success {
		t.Fatal("blank content accepted")
	}
}

func TestDeleteMessage(t *testing.T) {
	router := newTestRouter(t)
	_, aliceToken := registerUser(t, router, "Alice", "alice@example.com")
	bobID, bobToken := registerUser(t, router, "Bob", "bob@example.com")

	_, resp := doJSON(t, router, http.MethodPost, "/api/message", aliceToken, map[string]any{
		"receiverId": bobID, "content": "oops",
	})
	if !resp.Success {
		t.Fatalf("send failed: %q", resp.Message)
	}
	msgID := int64(resp.Data["id"].(float64))

	status, resp := doJSON(t, router, http.MethodDelete, "/api/message/not-a-number", aliceToken, nil)
	if status != http.StatusBadRequest || resp.Message != "Invalid message id" {
		t.Fatalf("non-numeric id: status %d, message %q", status, resp.Message)
	}

	_, resp = doJSON(t, router, http.MethodDelete, fmt.Sprintf("/api/message/%d", msgID), bobToken, nil)
	if resp.Success || resp.Message != "You can only delete your own messages" {
		t.Fatalf("foreign delete: success %v, message %q", resp.Success, resp.Message)
	}

	_, resp = doJSON(t, router, http.MethodDelete, fmt.Sprintf("/api/message/%d", msgID), aliceToken, nil)
	if !resp.Success || resp.Message != "Message deleted" {
		t.Fatalf("delete: success %v, message %q", resp.Success, resp.Message)
	}

	_, resp = doJSON(t, router, http.MethodDelete, fmt.Sprintf("/api/message/%d", msgID), aliceToken, nil)
	if resp.Success || resp.Message != "Message not found" {
		t.Fatalf("double delete: success %v, message %q", resp.Success, resp.Message)
	}
}

func TestHealthEndpoints(t *testing.T) {
	router := newTestRouter(t)
	for _, path := range []string{"/livez", "/readyz"} {
		status, _ := doJSON(t, router, http.MethodGet, path, "", nil)
		if status != http.StatusOK {
			t.Fatalf("%s status = %d", path, status)
		}
	}
}
