package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims is the identity embedded in issued bearer tokens.
type TokenClaims struct {
	UserID string
	Name   string
	Email  string
}

var ErrInvalidToken = errors.New("security: invalid token")

// JWTManager issues and verifies HMAC-signed bearer tokens, matching the
// token format of the upstream backend.
type JWTManager struct {
	Secret []byte
	TTL    time.Duration
}

func (m JWTManager) Issue(claims TokenClaims, now time.Time) (string, error) {
	if len(m.Secret) == 0 {
		return "", errors.New("security: signing secret required")
	}
	ttl := m.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   claims.UserID,
		"name":  claims.Name,
		"email": claims.Email,
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
	})
	signed, err := token.SignedString(m.Secret)
	if err != nil {
		return "", fmt.Errorf("security: sign token: %w", err)
	}
	return signed, nil
}

func (m JWTManager) Verify(raw string) (TokenClaims, error) {
	parsed, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.Secret, nil
	})
	if err != nil || !parsed.Valid {
		return TokenClaims{}, ErrInvalidToken
	}
	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return TokenClaims{}, ErrInvalidToken
	}
	sub, _ := mapClaims["sub"].(string)
	if sub == "" {
		return TokenClaims{}, ErrInvalidToken
	}
	name, _ := mapClaims["name"].(string)
	email, _ := mapClaims["email"].(string)
	return TokenClaims{UserID: sub, Name: name, Email: email}, nil
}
