package chat

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	domainchat "studenthelper/internal/domain/chat"
	"studenthelper/internal/infra/api"
	"studenthelper/internal/infra/session"
)

type fakeAPI struct {
	mu               sync.Mutex
	conversations    []domainchat.Conversation
	conversationsErr error
	messagesByUser   map[string][]domainchat.Message
	messagesErr      error
	messageCalls     map[string]int
	sendResult       domainchat.Message
	sendErr          error
	deleteErr        error
	deleteCalls      []int64
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		messagesByUser: make(map[string][]domainchat.Message),
		messageCalls:   make(map[string]int),
	}
}

func (f *fakeAPI) Conversations(ctx context.Context) ([]domainchat.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conversationsErr != nil {
		return nil, f.conversationsErr
	}
	return append([]domainchat.Conversation(nil), f.conversations...), nil
}

func (f *fakeAPI) Messages(ctx context.Context, otherUserID string) ([]domainchat.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messageCalls[otherUserID]++
	if f.messagesErr != nil {
		return nil, f.messagesErr
	}
	return append([]domainchat.Message(nil), f.messagesByUser[otherUserID]...), nil
}

func (f *fakeAPI) SendMessage(ctx context.Context, p api.SendMessageParams) (domainchat.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return domainchat.Message{}, f.sendErr
	}
	return f.sendResult, nil
}

func (f *fakeAPI) DeleteMessage(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls = append(f.deleteCalls, id)
	return f.deleteErr
}

func (f *fakeAPI) callsFor(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.messageCalls[userID]
}

type fakeNotifier struct {
	mu        sync.Mutex
	errors    []string
	successes []string
}

func (n *fakeNotifier) Error(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, msg)
}

func (n *fakeNotifier) Success(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.successes = append(n.successes, msg)
}

func (n *fakeNotifier) errorCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.errors)
}

type testHarness struct {
	service     *Service
	api         *fakeAPI
	notifier    *fakeNotifier
	sessions    *session.Store
	authExpired *bool
}

func newHarness(t *testing.T, pollInterval time.Duration) *testHarness {
	t.Helper()
	backend := newFakeAPI()
	notifier := &fakeNotifier{}
	sessions := session.NewStore(filepath.Join(t.TempDir(), "session.json"))
	if err := sessions.Save(session.Session{Token: "tok", UserID: "1", UserName: "Me"}); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	expired := false
	svc, err := NewService(Options{
		API:           backend,
		Sessions:      sessions,
		Notifier:      notifier,
		PollInterval:  pollInterval,
		Confirm:       func(string) bool { return true },
		OnAuthExpired: func() { expired = true },
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	t.Cleanup(svc.Close)
	return &testHarness{service: svc, api: backend, notifier: notifier, sessions: sessions, authExpired: &expired}
}

func at(minutes int) time.Time {
	return time.Date(2026, 3, 1, 10, minutes, 0, 0, time.UTC)
}

func TestLoadMessagesSortsEveryFetch(t *testing.T) {
	h := newHarness(t, time.Hour)
	ctx := context.Background()

	h.api.messagesByUser["9"] = []domainchat.Message{
		{ID: "2", Text: "second", SentAt: at(2)},
		{ID: "1", Text: "first", SentAt: at(1)},
	}
	h.service.Select(ctx, &domainchat.Selection{CorrespondentID: "9"})

	h.api.mu.Lock()
	h.api.messagesByUser["9"] = []domainchat.Message{
		{ID: "4", SentAt: at(4)},
		{ID: "3", SentAt: at(3)},
		{ID: "1", SentAt: at(1)},
	}
	h.api.mu.Unlock()
	h.service.LoadMessages(ctx, "9", false)

	got := h.service.Messages()
	if len(got) != 3 {
		t.Fatalf("got %d messages, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].SentAt.Before(got[i-1].SentAt) {
			t.Fatalf("messages out of order at %d: %v before %v", i, got[i].SentAt, got[i-1].SentAt)
		}
	}
}

func TestLoadMessagesEmptyIDIsNoOp(t *testing.T) {
	h := newHarness(t, time.Hour)
	h.service.LoadMessages(context.Background(), "  ", true)
	if n := h.notifier.errorCount(); n != 0 {
		t.Fatalf("notified %d times, want 0", n)
	}
	if calls := h.api.callsFor(""); calls != 0 {
		t.Fatalf("backend called %d times, want 0", calls)
	}
}

func TestStalePollResultDiscarded(t *testing.T) {
	h := newHarness(t, time.Hour)
	ctx := context.Background()

	h.api.messagesByUser["a"] = []domainchat.Message{{ID: "10", Text: "for a", SentAt: at(1)}}
	h.api.messagesByUser["b"] = []domainchat.Message{{ID: "20", Text: "for b", SentAt: at(2)}}
	h.service.Select(ctx, &domainchat.Selection{CorrespondentID: "b"})

	// Simulate a late-arriving fetch for a conversation no longer open.
	h.service.LoadMessages(ctx, "a", false)

	got := h.service.Messages()
	if len(got) != 1 || got[0].ID != "20" {
		t.Fatalf("stale result overwrote the open conversation: %+v", got)
	}
}

func TestSendReconcilesProvisionalWithConfirmed(t *testing.T) {
	h := newHarness(t, time.Hour)
	ctx := context.Background()
	h.service.Select(ctx, &domainchat.Selection{CorrespondentID: "9"})
	h.api.sendResult = domainchat.Message{ID: "42", SenderID: "1", Text: "hello", SentAt: at(5)}

	h.service.Send(ctx, "hello")

	got := h.service.Messages()
	if len(got) != 1 {
		t.Fatalf("got %d messages, want exactly 1", len(got))
	}
	if got[0].ID != "42" {
		t.Fatalf("message id = %q, want server-assigned 42", got[0].ID)
	}
	if got[0].Provisional {
		t.Fatal("confirmed message still marked provisional")
	}
	if h.service.Draft() != "" {
		t.Fatalf("draft = %q, want empty after successful send", h.service.Draft())
	}
}

func TestSendFailureRollsBackAndRestoresDraft(t *testing.T) {
	h := newHarness(t, time.Hour)
	ctx := context.Background()
	h.api.messagesByUser["9"] = []domainchat.Message{{ID: "1", Text: "existing", SentAt: at(1)}}
	h.service.Select(ctx, &domainchat.Selection{CorrespondentID: "9"})
	before := h.service.Messages()

	h.api.sendErr = errors.New("boom")
	h.service.Send(ctx, "hello")

	after := h.service.Messages()
	if len(after) != len(before) {
		t.Fatalf("got %d messages, want %d (pre-send state)", len(after), len(before))
	}
	for _, msg := range after {
		if msg.Provisional {
			t.Fatal("provisional entry left behind after failed send")
		}
	}
	if h.service.Draft() != "hello" {
		t.Fatalf("draft = %q, want restored %q", h.service.Draft(), "hello")
	}
	if h.notifier.errorCount() != 1 {
		t.Fatalf("notified %d times, want 1", h.notifier.errorCount())
	}
}

func TestSendNoOpWithoutTextOrSelection(t *testing.T) {
	h := newHarness(t, time.Hour)
	ctx := context.Background()

	h.service.Send(ctx, "   ")
	h.service.Send(ctx, "hello") // no selection yet
	h.service.Select(ctx, &domainchat.Selection{CorrespondentID: ""})
	h.service.Send(ctx, "hello")

	if got := h.service.Messages(); len(got) != 0 {
		t.Fatalf("got %d messages, want 0", len(got))
	}
	if n := h.notifier.errorCount(); n != 0 {
		t.Fatalf("validation no-ops must stay silent, got %d notifications", n)
	}
}

func TestSelectSwitchLeavesSinglePoller(t *testing.T) {
	interval := 15 * time.Millisecond
	h := newHarness(t, interval)
	ctx := context.Background()

	h.service.Select(ctx, &domainchat.Selection{CorrespondentID: "a"})
	h.service.Select(ctx, &domainchat.Selection{CorrespondentID: "b"})
	callsA := h.api.callsFor("a")

	time.Sleep(3 * interval)
	h.service.Close()

	if got := h.api.callsFor("a"); got != callsA {
		t.Fatalf("stale poller still fetching for a: %d calls after switch, was %d", got, callsA)
	}
	if got := h.api.callsFor("b"); got < 2 {
		t.Fatalf("expected initial load plus at least one poll for b, got %d calls", got)
	}
}

func TestDeselectStopsPolling(t *testing.T) {
	interval := 15 * time.Millisecond
	h := newHarness(t, interval)
	ctx := context.Background()

	h.service.Select(ctx, &domainchat.Selection{CorrespondentID: "a"})
	h.service.Select(ctx, nil)
	calls := h.api.callsFor("a")

	time.Sleep(3 * interval)
	if got := h.api.callsFor("a"); got != calls {
		t.Fatalf("poller survived deselection: %d calls, was %d", got, calls)
	}
	if sel := h.service.Active(); sel != nil {
		t.Fatalf("active selection = %+v, want nil", sel)
	}
	if got := h.service.Messages(); len(got) != 0 {
		t.Fatalf("messages not cleared on deselect: %d left", len(got))
	}
}

func TestSilentPollFailureDoesNotNotify(t *testing.T) {
	h := newHarness(t, time.Hour)
	ctx := context.Background()
	h.api.messagesErr = errors.New("backend down")

	h.service.LoadMessages(ctx, "9", false)
	if n := h.notifier.errorCount(); n != 0 {
		t.Fatalf("silent poll produced %d notifications, want 0", n)
	}

	h.service.LoadMessages(ctx, "9", true)
	if n := h.notifier.errorCount(); n != 1 {
		t.Fatalf("surfaced load produced %d notifications, want 1", n)
	}
}

func TestDeleteRemovesConfirmedMessage(t *testing.T) {
	h := newHarness(t, time.Hour)
	ctx := context.Background()
	h.api.messagesByUser["9"] = []domainchat.Message{
		{ID: "42", Text: "bye", SentAt: at(1)},
		{ID: "43", Text: "stay", SentAt: at(2)},
	}
	h.service.Select(ctx, &domainchat.Selection{CorrespondentID: "9"})

	h.service.DeleteMessage(ctx, "42")

	got := h.service.Messages()
	if len(got) != 1 || got[0].ID != "43" {
		t.Fatalf("messages after delete = %+v, want only id 43", got)
	}
	if len(h.api.deleteCalls) != 1 || h.api.deleteCalls[0] != 42 {
		t.Fatalf("delete calls = %v, want [42]", h.api.deleteCalls)
	}
}

func TestDeleteDeclinedConfirmationIsNoOp(t *testing.T) {
	h := newHarness(t, time.Hour)
	h.service.confirm = func(string) bool { return false }
	h.service.DeleteMessage(context.Background(), "42")
	if len(h.api.deleteCalls) != 0 {
		t.Fatalf("backend delete called despite declined confirmation")
	}
}

func TestDeleteAuthFailureShortCircuits(t *testing.T) {
	h := newHarness(t, time.Hour)
	ctx := context.Background()
	h.api.messagesByUser["9"] = []domainchat.Message{{ID: "42", Text: "keep", SentAt: at(1)}}
	h.service.Select(ctx, &domainchat.Selection{CorrespondentID: "9"})

	h.api.deleteErr = api.ErrUnauthorized
	h.service.DeleteMessage(ctx, "42")

	got := h.service.Messages()
	if len(got) != 1 || got[0].ID != "42" {
		t.Fatalf("message removed despite auth failure: %+v", got)
	}
	if _, err := h.sessions.Load(); !errors.Is(err, session.ErrNoSession) {
		t.Fatalf("credentials not cleared, load err = %v", err)
	}
	if !*h.authExpired {
		t.Fatal("auth-expiry hook not fired")
	}
}

func TestDirectoryFirstFailureInstallsEmptyList(t *testing.T) {
	h := newHarness(t, time.Hour)
	ctx := context.Background()

	h.api.conversationsErr = errors.New("down")
	h.service.RefreshConversations(ctx)
	if got := h.service.Conversations(); len(got) != 0 {
		t.Fatalf("first failed fetch should leave an empty list, got %d", len(got))
	}

	h.api.mu.Lock()
	h.api.conversationsErr = nil
	h.api.conversations = []domainchat.Conversation{{CorrespondentID: "9", CorrespondentName: "Ravi"}}
	h.api.mu.Unlock()
	h.service.RefreshConversations(ctx)
	if got := h.service.Conversations(); len(got) != 1 {
		t.Fatalf("got %d conversations, want 1", len(got))
	}

	h.api.mu.Lock()
	h.api.conversationsErr = errors.New("down again")
	h.api.mu.Unlock()
	h.service.RefreshConversations(ctx)
	if got := h.service.Conversations(); len(got) != 1 {
		t.Fatalf("later failure must keep the previous list, got %d", len(got))
	}
}
