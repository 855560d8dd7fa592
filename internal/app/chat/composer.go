package chat

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	domainchat "studenthelper/internal/domain/chat"
	"studenthelper/internal/infra/api"
)

// Send posts text to the open conversation. The message appears immediately
// as a provisional entry and is reconciled with the server-assigned record
// on success, or rolled back (with the draft restored) on failure. Success
// and failure are the only terminal outcomes; nothing stays pending.
// Empty text or a missing selection is a silent no-op.
func (s *Service) Send(ctx context.Context, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	s.mu.Lock()
	active := s.active
	if active == nil || strings.TrimSpace(active.CorrespondentID) == "" {
		s.mu.Unlock()
		return
	}
	receiverID := active.CorrespondentID
	related := active.Related
	s.mu.Unlock()

	sess, err := s.sessions.Load()
	if err != nil {
		s.notifier.Error("Please login again")
		return
	}

	now := time.Now()
	provisional := domainchat.Message{
		// Unix-milli ids are unique enough per composer and order with
		// the timestamp they mirror.
		ID:          strconv.FormatInt(now.UnixMilli(), 10),
		SenderID:    sess.UserID,
		SenderName:  sess.UserName,
		Text:        text,
		SentAt:      now,
		Provisional: true,
	}

	s.mu.Lock()
	s.messages = append(s.messages, provisional)
	s.draft = ""
	s.mu.Unlock()

	confirmed, err := s.api.SendMessage(ctx, api.SendMessageParams{
		ReceiverID: receiverID,
		Content:    text,
		Related:    related,
	})
	if err != nil {
		s.rollbackProvisional(provisional.ID, text)
		if errors.Is(err, api.ErrUnauthorized) {
			s.expireSession()
			return
		}
		s.notifyError("Failed to send message", err)
		return
	}

	s.mu.Lock()
	s.removeByIDLocked(provisional.ID)
	// The selection may have changed while the request was in flight; the
	// confirmed record belongs to the old conversation then.
	if s.active != nil && s.active.CorrespondentID == receiverID {
		s.messages = append(s.messages, confirmed)
		domainchat.SortMessages(s.messages)
	}
	s.mu.Unlock()

	s.RefreshConversations(ctx)
}

// rollbackProvisional removes the optimistic entry and puts the original
// text back into the composer.
func (s *Service) rollbackProvisional(provisionalID, text string) {
	s.mu.Lock()
	s.removeByIDLocked(provisionalID)
	s.draft = text
	s.mu.Unlock()
}

func (s *Service) removeByIDLocked(id string) {
	kept := s.messages[:0]
	for _, msg := range s.messages {
		if msg.ID != id {
			kept = append(kept, msg)
		}
	}
	s.messages = kept
}
