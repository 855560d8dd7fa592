package chat

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	domainchat "studenthelper/internal/domain/chat"
	"studenthelper/internal/infra/api"
	"studenthelper/internal/infra/session"
)

// DefaultPollInterval is how often an open conversation is re-fetched in
// the background.
const DefaultPollInterval = 3 * time.Second

// API is the backend surface the chat core consumes.
type API interface {
	Conversations(ctx context.Context) ([]domainchat.Conversation, error)
	Messages(ctx context.Context, otherUserID string) ([]domainchat.Message, error)
	SendMessage(ctx context.Context, p api.SendMessageParams) (domainchat.Message, error)
	DeleteMessage(ctx context.Context, id int64) error
}

// Notifier is the transient-notification surface (a toast stand-in).
type Notifier interface {
	Error(msg string)
	Success(msg string)
}

// Options configures a chat Service.
type Options struct {
	API          API
	Sessions     *session.Store
	Notifier     Notifier
	Logger       *slog.Logger
	PollInterval time.Duration
	// Confirm approves destructive actions. When set, deletion proceeds
	// only if it returns true.
	Confirm func(prompt string) bool
	// OnAuthExpired fires after a 401 cleared the stored credentials. The
	// caller sends the user back to login.
	OnAuthExpired func()
}

// Service owns the conversation directory, the open conversation's message
// list, the active selection and the composer draft. All state lives behind
// one mutex; nothing outside this package mutates it.
type Service struct {
	api           API
	sessions      *session.Store
	notifier      Notifier
	logger        *slog.Logger
	pollInterval  time.Duration
	confirm       func(prompt string) bool
	onAuthExpired func()

	mu              sync.Mutex
	conversations   []domainchat.Conversation
	directoryPrimed bool
	messages        []domainchat.Message
	active          *domainchat.Selection
	draft           string
	pollCancel      context.CancelFunc
	pollDone        chan struct{}
}

// NewService wires the chat core. API, Sessions and Notifier are required.
func NewService(opts Options) (*Service, error) {
	if opts.API == nil {
		return nil, errors.New("chat: api required")
	}
	if opts.Sessions == nil {
		return nil, errors.New("chat: session store required")
	}
	if opts.Notifier == nil {
		return nil, errors.New("chat: notifier required")
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Service{
		api:           opts.API,
		sessions:      opts.Sessions,
		notifier:      opts.Notifier,
		logger:        opts.Logger,
		pollInterval:  interval,
		confirm:       opts.Confirm,
		onAuthExpired: opts.OnAuthExpired,
	}, nil
}

// Close tears down any active polling loop.
func (s *Service) Close() {
	s.stopPolling()
}

// Conversations returns a snapshot of the directory.
func (s *Service) Conversations() []domainchat.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domainchat.Conversation(nil), s.conversations...)
}

// Messages returns a snapshot of the open conversation's messages.
func (s *Service) Messages() []domainchat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domainchat.Message(nil), s.messages...)
}

// Active returns the current selection, nil when no conversation is open.
func (s *Service) Active() *domainchat.Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return nil
	}
	sel := *s.active
	return &sel
}

// Draft returns the composer text, restored after a failed send.
func (s *Service) Draft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// SetDraft replaces the composer text.
func (s *Service) SetDraft(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = text
}

// expireSession clears stored credentials after a 401 and hands control to
// the auth-expiry hook. No further local state is touched.
func (s *Service) expireSession() {
	if err := s.sessions.Clear(); err != nil {
		s.logError("session clear failed", err)
	}
	if s.onAuthExpired != nil {
		s.onAuthExpired()
	}
}

func (s *Service) notifyError(msg string, err error) {
	s.logError(msg, err)
	detail := msg
	var backendErr *api.BackendError
	if errors.As(err, &backendErr) && backendErr.Message != "" {
		detail = backendErr.Message
	}
	s.notifier.Error(detail)
}

func (s *Service) logError(msg string, err error) {
	if s.logger != nil {
		s.logger.Error(msg, "error", err)
	}
}
