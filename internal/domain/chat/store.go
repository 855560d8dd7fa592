package chat

import (
	"context"
	"errors"
	"time"
)

// StoredMessage is the backend-side record the devserver keeps. Unlike the
// client Message it knows both parties and carries the numeric id the
// backend assigns.
type StoredMessage struct {
	ID           int64
	SenderID     string
	SenderName   string
	ReceiverID   string
	ReceiverName string
	Content      string
	CreatedAt    time.Time
	Read         bool
	Related      *RelatedEntity
}

// ConversationSummary is the per-correspondent aggregation served by the
// conversations endpoint.
type ConversationSummary struct {
	UserID        string
	UserName      string
	LastMessage   string
	LastMessageAt time.Time
	Unread        int
	Related       *RelatedEntity
}

var (
	ErrMessageNotFound = errors.New("chat: message not found")
	ErrNotMessageOwner = errors.New("chat: only the sender can delete a message")
)

// MessageStore persists messages for the devserver. Implementations exist
// in memory and on MongoDB.
type MessageStore interface {
	// Append stores the message and returns it with the assigned id.
	Append(ctx context.Context, msg StoredMessage) (StoredMessage, error)
	// Between returns the full history between two users, unordered.
	Between(ctx context.Context, userA, userB string) ([]StoredMessage, error)
	// MarkRead flags every message from senderID to readerID as read.
	MarkRead(ctx context.Context, readerID, senderID string) error
	// Delete removes a message owned by senderID.
	Delete(ctx context.Context, id int64, senderID string) error
	// ConversationsFor aggregates the user's threads, newest first.
	ConversationsFor(ctx context.Context, userID string) ([]ConversationSummary, error)
}
