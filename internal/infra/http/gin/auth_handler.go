package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gin "github.com/gin-gonic/gin"

	domainuser "studenthelper/internal/domain/user"
	"studenthelper/internal/infra/security"
)

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// AuthHandler implements registration and login. Responses carry the
// token and user in the shared envelope so the client can build a
// session from either endpoint.
type AuthHandler struct {
	Users  domainuser.Repository
	Hasher PasswordHasher
	Tokens security.JWTManager
	Logger *slog.Logger
	Now    func() time.Time
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failRequest(c, "Invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = domainuser.NormalizeEmail(req.Email)
	if req.Name == "" || req.Email == "" || req.Password == "" {
		failLogical(c, "Name, email and password are required")
		return
	}

	ctx := c.Request.Context()
	if _, err := h.Users.ByEmail(ctx, req.Email); err == nil {
		failLogical(c, "Email already in use")
		return
	} else if !errors.Is(err, domainuser.ErrNotFound) {
		h.serverError(c, "register lookup failed", err)
		return
	}

	hash, err := h.Hasher.Hash(req.Password)
	if err != nil {
		h.serverError(c, "password hash failed", err)
		return
	}
	id, err := h.Users.NextID(ctx)
	if err != nil {
		h.serverError(c, "id allocation failed", err)
		return
	}
	u := &domainuser.User{
		ID:           id,
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		CreatedAt:    h.now(),
	}
	if err := h.Users.Save(ctx, u); err != nil {
		if errors.Is(err, domainuser.ErrEmailAlreadyUsed) {
			failLogical(c, "Email already in use")
			return
		}
		h.serverError(c, "register save failed", err)
		return
	}
	h.issueSession(c, u)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failRequest(c, "Invalid request body")
		return
	}
	u, err := h.Users.ByEmail(c.Request.Context(), domainuser.NormalizeEmail(req.Email))
	if errors.Is(err, domainuser.ErrNotFound) {
		failLogical(c, "Invalid email or password")
		return
	}
	if err != nil {
		h.serverError(c, "login lookup failed", err)
		return
	}
	if err := h.Hasher.Compare(u.PasswordHash, req.Password); err != nil {
		failLogical(c, "Invalid email or password")
		return
	}
	h.issueSession(c, u)
}

func (h *AuthHandler) issueSession(c *gin.Context, u *domainuser.User) {
	token, err := h.Tokens.Issue(security.TokenClaims{
		UserID: string(u.ID),
		Name:   u.Name,
		Email:  u.Email,
	}, h.now())
	if err != nil {
		h.serverError(c, "token issue failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"token":   token,
		"user": gin.H{
			"id":    string(u.ID),
			"name":  u.Name,
			"email": u.Email,
		},
	})
}

func (h *AuthHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now().UTC()
}

func (h *AuthHandler) serverError(c *gin.Context, msg string, err error) {
	if h.Logger != nil {
		h.Logger.Error(msg, "error", err, "request_id", c.GetString("request_id"))
	}
	c.JSON(http.StatusInternalServerError, gin.H{
		"success": false,
		"message": "Internal server error",
	})
}

// failRequest rejects malformed input with a 400. failLogical keeps the
// 200 status and signals the failure in the envelope body, which is how
// the upstream backend reports validation outcomes.
func failRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": msg})
}

func failLogical(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, gin.H{"success": false, "message": msg})
}

var _ AuthHTTP = (*AuthHandler)(nil)
