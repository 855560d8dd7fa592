package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	domainchat "studenthelper/internal/domain/chat"
	"studenthelper/internal/infra/session"
)

// ErrUnauthorized marks a 401 from the backend. Callers clear stored
// credentials and send the user back to login when they see it.
var ErrUnauthorized = errors.New("api: authentication required")

// BackendError is a declared failure from the backend, either a non-2xx
// status or a success:false envelope.
type BackendError struct {
	StatusCode int
	Message    string
}

func (e *BackendError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("backend returned status %d", e.StatusCode)
}

// Config defines REST client settings.
type Config struct {
	BaseURL     string
	CallTimeout time.Duration
}

// Client wraps the studenthelper REST API. Every request carries the
// bearer token from the session store.
type Client struct {
	baseURL     string
	http        *http.Client
	sessions    *session.Store
	callTimeout time.Duration
	logger      *slog.Logger
}

// NewClient returns a typed client for the backend at cfg.BaseURL.
func NewClient(cfg Config, sessions *session.Store, logger *slog.Logger) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("api: base url required")
	}
	callTimeout := cfg.CallTimeout
	if callTimeout <= 0 {
		callTimeout = 10 * time.Second
	}
	return &Client{
		baseURL:     base,
		http:        &http.Client{},
		sessions:    sessions,
		callTimeout: callTimeout,
		logger:      logger,
	}, nil
}

// Login exchanges credentials for a bearer session.
func (c *Client) Login(ctx context.Context, email, password string) (session.Session, error) {
	env, err := c.do(ctx, http.MethodPost, "/auth/login", credentialsBody{Email: email, Password: password}, false)
	if err != nil {
		return session.Session{}, err
	}
	return sessionFromEnvelope(env)
}

// Register creates an account and signs in.
func (c *Client) Register(ctx context.Context, name, email, password string) (session.Session, error) {
	env, err := c.do(ctx, http.MethodPost, "/auth/register", credentialsBody{Name: name, Email: email, Password: password}, false)
	if err != nil {
		return session.Session{}, err
	}
	return sessionFromEnvelope(env)
}

// Conversations returns every conversation of the signed-in user.
func (c *Client) Conversations(ctx context.Context) ([]domainchat.Conversation, error) {
	env, err := c.do(ctx, http.MethodGet, "/message/conversations", nil, true)
	if err != nil {
		return nil, err
	}
	items := make([]domainchat.Conversation, 0, len(env.Conversations))
	for _, conv := range env.Conversations {
		items = append(items, mapConversation(conv))
	}
	return items, nil
}

// Messages returns the full history with one correspondent.
func (c *Client) Messages(ctx context.Context, otherUserID string) ([]domainchat.Message, error) {
	otherUserID = strings.TrimSpace(otherUserID)
	if otherUserID == "" {
		return nil, errors.New("api: correspondent id required")
	}
	env, err := c.do(ctx, http.MethodGet, "/message/"+otherUserID, nil, true)
	if err != nil {
		return nil, err
	}
	items := make([]domainchat.Message, 0, len(env.Messages))
	for _, msg := range env.Messages {
		items = append(items, mapMessage(msg))
	}
	return items, nil
}

// SendMessageParams is the payload for SendMessage.
type SendMessageParams struct {
	ReceiverID string
	Content    string
	Related    *domainchat.RelatedEntity
}

// SendMessage posts a message and returns the server-assigned record.
func (c *Client) SendMessage(ctx context.Context, p SendMessageParams) (domainchat.Message, error) {
	receiver := strings.TrimSpace(p.ReceiverID)
	if receiver == "" {
		return domainchat.Message{}, errors.New("api: receiver id required")
	}
	body := sendMessageBody{
		ReceiverID: receiver,
		Content:    p.Content,
		RelatedTo:  relatedToWire(p.Related),
	}
	env, err := c.do(ctx, http.MethodPost, "/message", body, true)
	if err != nil {
		return domainchat.Message{}, err
	}
	if env.Data == nil {
		return domainchat.Message{}, &BackendError{StatusCode: http.StatusOK, Message: "send response missing message data"}
	}
	return mapMessage(*env.Data), nil
}

// DeleteMessage removes a message by its backend numeric id.
func (c *Client) DeleteMessage(ctx context.Context, id int64) error {
	_, err := c.do(ctx, http.MethodDelete, "/message/"+formatMessageID(id), nil, true)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, body any, authed bool) (*envelope, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("api: encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	request, err := http.NewRequestWithContext(callCtx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	request.Header.Set("Content-Type", "application/json")
	if authed {
		sess, err := c.currentSession()
		if err != nil {
			return nil, err
		}
		request.Header.Set("Authorization", "Bearer "+sess.Token)
	}

	resp, err := c.http.Do(request)
	if err != nil {
		return nil, fmt.Errorf("api: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrUnauthorized
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, c.statusError(resp)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("api: decode response: %w", err)
	}
	if !env.Success {
		msg := env.Message
		if msg == "" {
			msg = "request failed"
		}
		return nil, &BackendError{StatusCode: resp.StatusCode, Message: msg}
	}
	return &env, nil
}

func (c *Client) currentSession() (session.Session, error) {
	if c.sessions == nil {
		return session.Session{}, session.ErrNoSession
	}
	if sess, ok := c.sessions.Current(); ok {
		return sess, nil
	}
	return c.sessions.Load()
}

// statusError parses the error body as JSON when possible, falling back to
// a generic message otherwise.
func (c *Client) statusError(resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	var env envelope
	if err := json.Unmarshal(snippet, &env); err == nil && env.Message != "" {
		return &BackendError{StatusCode: resp.StatusCode, Message: env.Message}
	}
	if c.logger != nil {
		c.logger.Debug("backend error body not parseable", "status", resp.StatusCode, "body", string(snippet))
	}
	return &BackendError{StatusCode: resp.StatusCode}
}

func sessionFromEnvelope(env *envelope) (session.Session, error) {
	if env.Token == "" || env.User == nil {
		return session.Session{}, &BackendError{StatusCode: http.StatusOK, Message: "auth response missing token or user"}
	}
	return session.Session{
		Token:    env.Token,
		UserID:   coalesceID(env.User.ID, env.User.AltID),
		UserName: env.User.Name,
		Email:    env.User.Email,
	}, nil
}
