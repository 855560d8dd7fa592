package user

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ID is the backend-assigned user identifier, a stringified integer.
type ID string

// User is an account on the devserver.
type User struct {
	ID           ID
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

var (
	ErrNotFound         = errors.New("user: not found")
	ErrIDRequired       = errors.New("user: id required")
	ErrEmailRequired    = errors.New("user: email required")
	ErrEmailAlreadyUsed = errors.New("user: email already in use")
)

// Repository stores accounts.
type Repository interface {
	ByID(ctx context.Context, id ID) (*User, error)
	ByEmail(ctx context.Context, email string) (*User, error)
	Save(ctx context.Context, u *User) error
	NextID(ctx context.Context) (ID, error)
}

// NormalizeEmail lowercases and trims an address for lookup keys.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
