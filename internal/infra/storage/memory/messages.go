package memory

import (
	"context"
	"sort"
	"sync"

	domainchat "studenthelper/internal/domain/chat"
)

// MessageStore keeps messages in memory with backend-assigned increasing
// numeric ids.
type MessageStore struct {
	mu       sync.RWMutex
	nextID   int64
	messages []domainchat.StoredMessage
}

func NewMessageStore() *MessageStore {
	return &MessageStore{}
}

func (s *MessageStore) Append(ctx context.Context, msg domainchat.StoredMessage) (domainchat.StoredMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	msg.ID = s.nextID
	s.messages = append(s.messages, msg)
	return msg, nil
}

func (s *MessageStore) Between(ctx context.Context, userA, userB string) ([]domainchat.StoredMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domainchat.StoredMessage
	for _, msg := range s.messages {
		if (msg.SenderID == userA && msg.ReceiverID == userB) ||
			(msg.SenderID == userB && msg.ReceiverID == userA) {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (s *MessageStore) MarkRead(ctx context.Context, readerID, senderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.messages {
		if s.messages[i].ReceiverID == readerID && s.messages[i].SenderID == senderID {
			s.messages[i].Read = true
		}
	}
	return nil
}

func (s *MessageStore) Delete(ctx context.Context, id int64, senderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, msg := range s.messages {
		if msg.ID != id {
			continue
		}
		if msg.SenderID != senderID {
			return domainchat.ErrNotMessageOwner
		}
		s.messages = append(s.messages[:i], s.messages[i+1:]...)
		return nil
	}
	return domainchat.ErrMessageNotFound
}

func (s *MessageStore) ConversationsFor(ctx context.Context, userID string) ([]domainchat.ConversationSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make(map[string]*domainchat.ConversationSummary)
	for _, msg := range s.messages {
		var otherID, otherName string
		switch userID {
		case msg.SenderID:
			otherID, otherName = msg.ReceiverID, msg.ReceiverName
		case msg.ReceiverID:
			otherID, otherName = msg.SenderID, msg.SenderName
		default:
			continue
		}
		summary, ok := summaries[otherID]
		if !ok {
			summary = &domainchat.ConversationSummary{UserID: otherID, UserName: otherName}
			summaries[otherID] = summary
		}
		if !msg.CreatedAt.Before(summary.LastMessageAt) {
			summary.LastMessage = msg.Content
			summary.LastMessageAt = msg.CreatedAt
			if msg.Related != nil {
				related := *msg.Related
				summary.Related = &related
			}
		}
		if msg.ReceiverID == userID && !msg.Read {
			summary.Unread++
		}
	}

	out := make([]domainchat.ConversationSummary, 0, len(summaries))
	for _, summary := range summaries {
		out = append(out, *summary)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastMessageAt.After(out[j].LastMessageAt)
	})
	return out, nil
}

var _ domainchat.MessageStore = (*MessageStore)(nil)
