package chat

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// RelatedType tags the listing kind a conversation originated from.
type RelatedType string

const (
	RelatedPG     RelatedType = "pg"
	RelatedHostel RelatedType = "hostel"
	RelatedItem   RelatedType = "item"
)

// Valid reports whether the tag is one of the known listing kinds.
func (t RelatedType) Valid() bool {
	switch t {
	case RelatedPG, RelatedHostel, RelatedItem:
		return true
	}
	return false
}

// RelatedEntity points at the listing that started a conversation.
type RelatedEntity struct {
	Type RelatedType
	ID   string
}

// Message is one chat message between the current user and a correspondent.
// IDs are normalized to strings at the API boundary; the backend assigns
// numeric ids, provisional entries carry a client-generated unix-milli id
// until the server-confirmed record replaces them.
type Message struct {
	ID          string
	SenderID    string
	SenderName  string
	Text        string
	SentAt      time.Time
	Read        bool
	Provisional bool
	Related     *RelatedEntity
}

// Conversation summarizes the thread with one correspondent.
type Conversation struct {
	CorrespondentID   string
	CorrespondentName string
	LastMessage       string
	LastMessageAt     time.Time
	Unread            int
	Related           *RelatedEntity
}

// Selection holds the currently open correspondent, optionally seeded with
// the listing context that triggered the chat. A nil Selection means no
// conversation is open.
type Selection struct {
	CorrespondentID string
	Related         *RelatedEntity
}

// SortMessages orders messages ascending by timestamp. The backend does not
// guarantee order, so every fetch and merge re-sorts. The sort is stable so
// same-timestamp entries keep their insertion order.
func SortMessages(messages []Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].SentAt.Before(messages[j].SentAt)
	})
}

// SameID compares a message id against a backend numeric id. Local ids may
// be strings carrying a number; both sides are normalized before comparing.
func SameID(id string, numeric int64) bool {
	parsed, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil {
		return false
	}
	return parsed == numeric
}

// NoMessagesPlaceholder is shown as the preview for conversations the
// backend reports without a last message.
const NoMessagesPlaceholder = "No messages yet"
