package mongo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainuser "studenthelper/internal/domain/user"
)

// UserRepository persists devserver accounts in MongoDB.
type UserRepository struct {
	users    *mongo.Collection
	counters *MessageStore
}

func NewUserRepository(c *Client, counters *MessageStore) *UserRepository {
	return &UserRepository{
		users:    c.DB.Collection("users"),
		counters: counters,
	}
}

type userDoc struct {
	ID           string    `bson:"_id"`
	Name         string    `bson:"name"`
	Email        string    `bson:"email"`
	PasswordHash string    `bson:"password_hash"`
	CreatedAt    time.Time `bson:"created_at"`
}

func (r *UserRepository) ByID(ctx context.Context, id domainuser.ID) (*domainuser.User, error) {
	var doc userDoc
	err := r.users.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domainuser.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongo: load user: %w", err)
	}
	return userFromDoc(doc), nil
}

func (r *UserRepository) ByEmail(ctx context.Context, email string) (*domainuser.User, error) {
	var doc userDoc
	err := r.users.FindOne(ctx, bson.M{"email": domainuser.NormalizeEmail(email)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domainuser.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongo: load user by email: %w", err)
	}
	return userFromDoc(doc), nil
}

func (r *UserRepository) Save(ctx context.Context, u *domainuser.User) error {
	if u == nil || string(u.ID) == "" {
		return domainuser.ErrIDRequired
	}
	emailKey := domainuser.NormalizeEmail(u.Email)
	if emailKey == "" {
		return domainuser.ErrEmailRequired
	}
	if existing, err := r.ByEmail(ctx, emailKey); err == nil && existing.ID != u.ID {
		return domainuser.ErrEmailAlreadyUsed
	}
	doc := userDoc{
		ID:           string(u.ID),
		Name:         u.Name,
		Email:        emailKey,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
	}
	opts := options.Replace().SetUpsert(true)
	if _, err := r.users.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, opts); err != nil {
		return fmt.Errorf("mongo: save user: %w", err)
	}
	return nil
}

func (r *UserRepository) NextID(ctx context.Context) (domainuser.ID, error) {
	seq, err := r.counters.nextSequence(ctx, "users")
	if err != nil {
		return "", err
	}
	return domainuser.ID(strconv.FormatInt(seq, 10)), nil
}

func userFromDoc(doc userDoc) *domainuser.User {
	return &domainuser.User{
		ID:           domainuser.ID(doc.ID),
		Name:         doc.Name,
		Email:        doc.Email,
		PasswordHash: doc.PasswordHash,
		CreatedAt:    doc.CreatedAt,
	}
}

var _ domainuser.Repository = (*UserRepository)(nil)
