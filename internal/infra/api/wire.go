package api

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	domainchat "studenthelper/internal/domain/chat"
)

// flexID decodes backend identifiers that arrive as JSON strings or
// numbers, under either an "id" or "_id" key. Conversion to a single
// string form happens here, once, and never deeper in the client.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		*f = ""
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*f = flexID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

func coalesceID(ids ...flexID) string {
	for _, id := range ids {
		if id != "" {
			return string(id)
		}
	}
	return ""
}

type wireUser struct {
	ID    flexID `json:"id"`
	AltID flexID `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type wireRelated struct {
	Type string `json:"type"`
	ID   flexID `json:"id"`
}

type wireConversation struct {
	User            wireUser     `json:"user"`
	LastMessage     string       `json:"lastMessage"`
	LastMessageTime *time.Time   `json:"lastMessageTime"`
	UnreadCount     int          `json:"unreadCount"`
	RelatedTo       *wireRelated `json:"relatedTo"`
}

type wireMessage struct {
	ID        flexID    `json:"id"`
	AltID     flexID    `json:"_id"`
	Sender    wireUser  `json:"sender"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	Read      bool      `json:"read"`
}

// envelope is the response frame every backend endpoint shares.
type envelope struct {
	Success       bool               `json:"success"`
	Message       string             `json:"message"`
	Conversations []wireConversation `json:"conversations"`
	Messages      []wireMessage      `json:"messages"`
	Data          *wireMessage       `json:"data"`
	Token         string             `json:"token"`
	User          *wireUser          `json:"user"`
}

type sendMessageBody struct {
	ReceiverID string       `json:"receiverId"`
	Content    string       `json:"content"`
	RelatedTo  *wireRelated `json:"relatedTo,omitempty"`
}

type credentialsBody struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func mapConversation(conv wireConversation) domainchat.Conversation {
	preview := strings.TrimSpace(conv.LastMessage)
	if preview == "" {
		preview = domainchat.NoMessagesPlaceholder
	}
	lastAt := time.Time{}
	if conv.LastMessageTime != nil {
		lastAt = *conv.LastMessageTime
	}
	unread := conv.UnreadCount
	if unread < 0 {
		unread = 0
	}
	return domainchat.Conversation{
		CorrespondentID:   coalesceID(conv.User.ID, conv.User.AltID),
		CorrespondentName: conv.User.Name,
		LastMessage:       preview,
		LastMessageAt:     lastAt,
		Unread:            unread,
		Related:           mapRelated(conv.RelatedTo),
	}
}

func mapMessage(msg wireMessage) domainchat.Message {
	return domainchat.Message{
		ID:         coalesceID(msg.ID, msg.AltID),
		SenderID:   coalesceID(msg.Sender.ID, msg.Sender.AltID),
		SenderName: msg.Sender.Name,
		Text:       msg.Content,
		SentAt:     msg.CreatedAt,
		Read:       msg.Read,
	}
}

func mapRelated(rel *wireRelated) *domainchat.RelatedEntity {
	if rel == nil {
		return nil
	}
	kind := domainchat.RelatedType(strings.ToLower(strings.TrimSpace(rel.Type)))
	if !kind.Valid() {
		return nil
	}
	return &domainchat.RelatedEntity{Type: kind, ID: string(rel.ID)}
}

func relatedToWire(rel *domainchat.RelatedEntity) *wireRelated {
	if rel == nil || !rel.Type.Valid() || strings.TrimSpace(rel.ID) == "" {
		return nil
	}
	return &wireRelated{Type: string(rel.Type), ID: flexID(rel.ID)}
}

func formatMessageID(id int64) string {
	return strconv.FormatInt(id, 10)
}
