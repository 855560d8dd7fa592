package chat

import (
	"context"
	"errors"

	domainchat "studenthelper/internal/domain/chat"
	"studenthelper/internal/infra/api"
)

// RefreshConversations fetches all conversations and replaces the directory
// in full; the backend is authoritative for previews and unread counts, so
// there is no incremental merge. On failure the previous list is kept,
// except on the very first fetch, which installs an empty list. Background
// polls never call this.
func (s *Service) RefreshConversations(ctx context.Context) {
	items, err := s.api.Conversations(ctx)
	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			s.expireSession()
			return
		}
		s.notifyError("Failed to fetch conversations", err)
		s.mu.Lock()
		if !s.directoryPrimed {
			s.conversations = []domainchat.Conversation{}
			s.directoryPrimed = true
		}
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	s.conversations = items
	s.directoryPrimed = true
	s.mu.Unlock()
}
