package chat

import (
	"context"
	"errors"
	"strconv"
	"strings"

	domainchat "studenthelper/internal/domain/chat"
	"studenthelper/internal/infra/api"
)

// DeleteMessage removes a message after user confirmation. The id is
// normalized to the numeric form the backend expects. The local entry is
// removed only after the backend confirms deletion; a 401 clears stored
// credentials and leaves the list untouched.
func (s *Service) DeleteMessage(ctx context.Context, messageID string) {
	if s.confirm != nil && !s.confirm("Are you sure you want to delete this message?") {
		return
	}

	numericID, err := strconv.ParseInt(strings.TrimSpace(messageID), 10, 64)
	if err != nil {
		s.notifier.Error("Invalid message id")
		return
	}

	if err := s.api.DeleteMessage(ctx, numericID); err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			s.expireSession()
			return
		}
		s.notifyError("Failed to delete message", err)
		return
	}

	s.mu.Lock()
	kept := s.messages[:0]
	for _, msg := range s.messages {
		if !domainchat.SameID(msg.ID, numericID) {
			kept = append(kept, msg)
		}
	}
	s.messages = kept
	s.mu.Unlock()

	s.notifier.Success("Message deleted")
}
