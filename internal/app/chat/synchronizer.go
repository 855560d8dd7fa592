package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	domainchat "studenthelper/internal/domain/chat"
	"studenthelper/internal/infra/api"
)

// Select switches the open conversation. The previous polling loop is
// cancelled and waited out before anything else happens, so at most one
// poller exists at any time and a stale one can never outlive the switch.
// A nil selection (or one without a correspondent id) just closes the
// current conversation.
func (s *Service) Select(ctx context.Context, sel *domainchat.Selection) {
	s.stopPolling()

	s.mu.Lock()
	if sel == nil {
		s.active = nil
	} else {
		copied := *sel
		s.active = &copied
	}
	s.messages = nil
	s.mu.Unlock()

	if sel == nil || strings.TrimSpace(sel.CorrespondentID) == "" {
		return
	}
	correspondentID := sel.CorrespondentID

	// Initial load surfaces errors and refreshes the directory.
	s.LoadMessages(ctx, correspondentID, true)

	pollCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.mu.Lock()
	s.pollCancel = cancel
	s.pollDone = done
	s.mu.Unlock()
	go s.pollLoop(pollCtx, done, correspondentID)
}

// LoadMessages fetches the full history with the correspondent and replaces
// the message list, defensively sorted ascending by timestamp. An empty id
// is a silent no-op. Background polls (surfaceErrors=false) fail silently;
// surfaced loads notify on failure and refresh the directory on success so
// unread counts reflect the just-viewed conversation. Results are written
// only while the correspondent is still the active selection.
func (s *Service) LoadMessages(ctx context.Context, correspondentID string, surfaceErrors bool) {
	correspondentID = strings.TrimSpace(correspondentID)
	if correspondentID == "" {
		return
	}

	items, err := s.api.Messages(ctx, correspondentID)
	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			s.expireSession()
			return
		}
		if surfaceErrors {
			s.notifyError("Failed to fetch messages", err)
		} else {
			s.logError("background message poll failed", err)
		}
		return
	}

	domainchat.SortMessages(items)

	s.mu.Lock()
	stale := s.active == nil || s.active.CorrespondentID != correspondentID
	if !stale {
		s.messages = items
	}
	s.mu.Unlock()
	if stale {
		return
	}

	if surfaceErrors {
		s.RefreshConversations(ctx)
	}
}

func (s *Service) pollLoop(ctx context.Context, done chan struct{}, correspondentID string) {
	defer close(done)
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			s.LoadMessages(ctx, correspondentID, false)
		}
	}
}

// stopPolling cancels the active poll loop and blocks until it has exited.
// Callers must not hold the service mutex.
func (s *Service) stopPolling() {
	s.mu.Lock()
	cancel, done := s.pollCancel, s.pollDone
	s.pollCancel, s.pollDone = nil, nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}
