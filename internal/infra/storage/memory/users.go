package memory

import (
	"context"
	"strconv"
	"strings"
	"sync"

	domainuser "studenthelper/internal/domain/user"
)

// UserRepository stores accounts in memory. Not suitable for production.
type UserRepository struct {
	mu      sync.RWMutex
	nextID  int64
	byID    map[domainuser.ID]*domainuser.User
	byEmail map[string]domainuser.ID
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:    make(map[domainuser.ID]*domainuser.User),
		byEmail: make(map[string]domainuser.ID),
	}
}

func (r *UserRepository) ByID(ctx context.Context, id domainuser.ID) (*domainuser.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if u, ok := r.byID[id]; ok {
		clone := *u
		return &clone, nil
	}
	return nil, domainuser.ErrNotFound
}

func (r *UserRepository) ByEmail(ctx context.Context, email string) (*domainuser.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[domainuser.NormalizeEmail(email)]
	if !ok {
		return nil, domainuser.ErrNotFound
	}
	if u, ok := r.byID[id]; ok {
		clone := *u
		return &clone, nil
	}
	return nil, domainuser.ErrNotFound
}

func (r *UserRepository) Save(ctx context.Context, u *domainuser.User) error {
	if u == nil || strings.TrimSpace(string(u.ID)) == "" {
		return domainuser.ErrIDRequired
	}
	emailKey := domainuser.NormalizeEmail(u.Email)
	if emailKey == "" {
		return domainuser.ErrEmailRequired
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existingID, ok := r.byEmail[emailKey]; ok && existingID != u.ID {
		return domainuser.ErrEmailAlreadyUsed
	}
	clone := *u
	r.byEmail[emailKey] = u.ID
	r.byID[u.ID] = &clone
	return nil
}

func (r *UserRepository) NextID(ctx context.Context) (domainuser.ID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	return domainuser.ID(strconv.FormatInt(r.nextID, 10)), nil
}

var _ domainuser.Repository = (*UserRepository)(nil)
