package relay

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/edgard/pontebot/internal/config"
	"github.com/edgard/pontebot/internal/database"
)

const testOperatorID = int64(9000)

func testRelayConfig() config.RelayConfig {
	return config.RelayConfig{
		FloodInterval:   1200 * time.Millisecond,
		TypingDelay:     time.Millisecond,
		NoticeTTL:       time.Millisecond,
		RecordRetention: 48 * time.Hour,
		MaxMessageLen:   500,
		Messages: config.MessagesConfig{
			Typing:            "typing notice",
			Sent:              "sent ack",
			BecameAvailable:   "transition available notice",
			BecameAway:        "transition away notice",
			Busy:              "busy notice",
			GreetingFallback:  "greeting fallback",
			AdminNowAvailable: "operator ack available",
			AdminNowAway:      "operator ack away",
			OriginNotFound:    "origin not found",
			DeliveryFailed:    "delivery failed",
			Delivered:         "delivered ack",
		},
	}
}

type transportCall struct {
	destination int64
	fromChat    int64
	messageID   int64
}

type sentMessage struct {
	chatID    int64
	text      string
	messageID int64
}

type mockTransport struct {
	mu         sync.Mutex
	forwardErr error
	copyErr    error
	sendErr    error
	nextID     int64
	forwards   []transportCall
	copies     []transportCall
	sent       []sentMessage
	deleted    []int64
	typing     []int64
}

func (m *mockTransport) Forward(_ context.Context, destination, fromChat, messageID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.forwardErr != nil {
		return 0, m.forwardErr
	}
	m.nextID++
	m.forwards = append(m.forwards, transportCall{destination, fromChat, messageID})
	return m.nextID, nil
}

func (m *mockTransport) Copy(_ context.Context, destination, fromChat, messageID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.copyErr != nil {
		return 0, m.copyErr
	}
	m.nextID++
	m.copies = append(m.copies, transportCall{destination, fromChat, messageID})
	return m.nextID, nil
}

func (m *mockTransport) SendText(_ context.Context, destination int64, text string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return 0, m.sendErr
	}
	m.nextID++
	m.sent = append(m.sent, sentMessage{chatID: destination, text: text, messageID: m.nextID})
	return m.nextID, nil
}

func (m *mockTransport) Delete(_ context.Context, _, messageID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, messageID)
	return nil
}

func (m *mockTransport) ShowTyping(_ context.Context, destination int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.typing = append(m.typing, destination)
	return nil
}

// textsTo returns every text sent to chatID, in order.
func (m *mockTransport) textsTo(chatID int64) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, s := range m.sent {
		if s.chatID == chatID {
			out = append(out, s.text)
		}
	}
	return out
}

// durableTextsTo returns texts sent to chatID that were never deleted.
func (m *mockTransport) durableTextsTo(chatID int64) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	deleted := make(map[int64]bool, len(m.deleted))
	for _, id := range m.deleted {
		deleted[id] = true
	}
	var out []string
	for _, s := range m.sent {
		if s.chatID == chatID && !deleted[s.messageID] {
			out = append(out, s.text)
		}
	}
	return out
}

func (m *mockTransport) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.forwards) + len(m.copies) + len(m.sent) + len(m.deleted) + len(m.typing)
}

type mockGreeter struct {
	mu    sync.Mutex
	reply string
	err   error
	calls int
}

func (g *mockGreeter) Greet(context.Context, string, string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return g.reply, g.err
}

type mockStore struct {
	mu            sync.Mutex
	conversations map[int64]database.Conversation
	relayRecords  []database.RelayRecord
	presence      *database.Presence
	pruneCutoffs  []time.Time
	saveRelayErr  error
}

func newMockStore() *mockStore {
	return &mockStore{conversations: make(map[int64]database.Conversation)}
}

func (s *mockStore) Ping(context.Context) error { return nil }

func (s *mockStore) GetConversation(_ context.Context, chatID int64) (*database.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[chatID]
	if !ok {
		return nil, nil
	}
	return &conv, nil
}

func (s *mockStore) ListConversations(context.Context) ([]database.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []database.Conversation
	for _, c := range s.conversations {
		out = append(out, c)
	}
	return out, nil
}

func (s *mockStore) UpsertConversation(_ context.Context, conv *database.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[conv.ChatID] = *conv
	return nil
}

func (s *mockStore) SaveRelayRecord(_ context.Context, rec *database.RelayRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveRelayErr != nil {
		return s.saveRelayErr
	}
	s.relayRecords = append(s.relayRecords, *rec)
	return nil
}

func (s *mockStore) ListRelayRecordsSince(context.Context, time.Time) ([]database.RelayRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]database.RelayRecord(nil), s.relayRecords...), nil
}

func (s *mockStore) DeleteRelayRecordsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneCutoffs = append(s.pruneCutoffs, cutoff)
	var kept []database.RelayRecord
	var deleted int64
	for _, rec := range s.relayRecords {
		if rec.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, rec)
	}
	s.relayRecords = kept
	return deleted, nil
}

func (s *mockStore) GetPresence(context.Context) (*database.Presence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presence, nil
}

func (s *mockStore) SavePresence(_ context.Context, p *database.Presence) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.presence = &cp
	return nil
}

func (s *mockStore) RunMaintenance(context.Context) error { return nil }

func (s *mockStore) relayRecordCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.relayRecords)
}

type routerFixture struct {
	router    *Router
	transport *mockTransport
	greeter   *mockGreeter
	store     *mockStore
	clock     time.Time
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()

	f := &routerFixture{
		transport: &mockTransport{},
		greeter:   &mockGreeter{reply: "generated greeting"},
		store:     newMockStore(),
		clock:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.router = NewRouter(
		log,
		testRelayConfig(),
		testOperatorID,
		f.transport,
		f.greeter,
		f.store,
		NewPresence(false, TransitionNone),
		NewCorrelationMap(),
		NewLimiter(1200*time.Millisecond),
		NewTracker(),
	)
	f.router.now = func() time.Time { return f.clock }
	return f
}

func (f *routerFixture) advance(d time.Duration) {
	f.clock = f.clock.Add(d)
}

func userMsg(chatID, messageID int64, text string) UserMessage {
	return UserMessage{ChatID: chatID, MessageID: messageID, SenderName: "Ana", Text: text}
}

func TestRouterRateLimitedMessageProducesNoOutput(t *testing.T) {
	t.Parallel()

	f := newRouterFixture(t)
	ctx := context.Background()

	f.router.HandleUserMessage(ctx, userMsg(100, 1, "first message"))
	f.router.Wait()
	before := f.transport.callCount()
	records := f.store.relayRecordCount()

	f.advance(500 * time.Millisecond)
	f.router.HandleUserMessage(ctx, userMsg(100, 2, "too fast"))
	f.router.Wait()

	require.Equal(t, before, f.transport.callCount(), "rate-limited message must produce no outbound action")
	require.Equal(t, records, f.store.relayRecordCount())
}

func TestRouterForwardRecordsCorrelation(t *testing.T) {
	t.Parallel()

	f := newRouterFixture(t)
	ctx := context.Background()

	f.router.HandleUserMessage(ctx, userMsg(100, 7, "please tell the admin something"))
	f.router.Wait()

	require.Len(t, f.transport.forwards, 1)
	fw := f.transport.forwards[0]
	require.Equal(t, testOperatorID, fw.destination)
	require.Equal(t, int64(100), fw.fromChat)
	require.Equal(t, int64(7), fw.messageID)

	// The mock transport assigned id 1 to the forwarded copy.
	origin, err := f.router.correlation.Resolve(1)
	require.NoError(t, err)
	require.Equal(t, int64(100), origin)

	require.Equal(t, 1, f.store.relayRecordCount())
}

func TestRouterGreetingBypassesForwarding(t *testing.T) {
	t.Parallel()

	f := newRouterFixture(t)
	ctx := context.Background()

	f.router.HandleUserMessage(ctx, userMsg(100, 1, "hi"))
	f.router.Wait()

	require.Empty(t, f.transport.forwards, "greetings must never be forwarded")
	require.Zero(t, f.router.correlation.Len(), "greetings must not create correlation entries")
	require.Equal(t, 1, f.greeter.calls)
	require.Equal(t, []string{"generated greeting"}, f.transport.textsTo(100))
}

func TestRouterGreetingFallback(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		reply string
		err   error
	}{
		{name: "generator error", reply: "", err: errors.New("api unavailable")},
		{name: "empty reply", reply: "   ", err: nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := newRouterFixture(t)
			f.greeter.reply = tc.reply
			f.greeter.err = tc.err

			f.router.HandleUserMessage(context.Background(), userMsg(100, 1, "hello"))
			f.router.Wait()

			require.Equal(t, []string{"greeting fallback"}, f.transport.textsTo(100))
		})
	}
}

func TestRouterAwaySteadyStateNotices(t *testing.T) {
	t.Parallel()

	f := newRouterFixture(t)
	ctx := context.Background()

	// Away, no pending transition. First message gets the durable busy
	// notice, the second only a transient acknowledgement.
	f.router.HandleUserMessage(ctx, userMsg(100, 1, "anyone there?"))
	f.router.Wait()
	require.Contains(t, f.transport.durableTextsTo(100), "busy notice")

	f.advance(5 * time.Second)
	f.router.HandleUserMessage(ctx, userMsg(100, 2, "hello again friend"))
	f.router.Wait()

	durable := f.transport.durableTextsTo(100)
	busyCount := 0
	for _, text := range durable {
		if text == "busy notice" {
			busyCount++
		}
	}
	require.Equal(t, 1, busyCount, "busy notice must be durable exactly once")
	require.Contains(t, f.transport.textsTo(100), "sent ack")
}

func TestRouterTransitionNoticeIsOneShot(t *testing.T) {
	t.Parallel()

	f := newRouterFixture(t)
	ctx := context.Background()

	f.router.SetAvailable(ctx)
	require.Equal(t, []string{"operator ack available"}, f.transport.textsTo(testOperatorID))

	f.router.HandleUserMessage(ctx, userMsg(100, 1, "first after transition"))
	f.router.Wait()
	require.Contains(t, f.transport.durableTextsTo(100), "transition available notice")

	f.advance(5 * time.Second)
	f.router.HandleUserMessage(ctx, userMsg(100, 2, "second after transition"))
	f.router.Wait()

	count := 0
	for _, text := range f.transport.textsTo(100) {
		if text == "transition available notice" {
			count++
		}
	}
	require.Equal(t, 1, count, "transition notice must be consumed by exactly one message")
}

func TestRouterAwayBroadcastScenario(t *testing.T) {
	t.Parallel()

	f := newRouterFixture(t)
	ctx := context.Background()

	f.router.SetAway(ctx)

	for i, chatID := range []int64{101, 102, 103} {
		f.router.HandleUserMessage(ctx, userMsg(chatID, int64(i+1), "hello world"))
	}
	f.router.Wait()

	// "hello world" is not a greeting, so every message was relayed with its
	// own correlation entry.
	require.Len(t, f.transport.forwards, 3)
	require.Equal(t, 3, f.router.correlation.Len())
	require.Equal(t, 3, f.store.relayRecordCount())

	transitionCount, busyCount := 0, 0
	for _, chatID := range []int64{101, 102, 103} {
		for _, text := range f.transport.durableTextsTo(chatID) {
			switch text {
			case "transition away notice":
				transitionCount++
			case "busy notice":
				busyCount++
			}
		}
	}
	require.Equal(t, 1, transitionCount, "only the first message may observe the transition")
	require.Equal(t, 2, busyCount, "the others get the steady busy notice")
}

func TestRouterOperatorReplyRouting(t *testing.T) {
	t.Parallel()

	f := newRouterFixture(t)
	ctx := context.Background()

	f.router.HandleUserMessage(ctx, userMsg(100, 5, "a question for the admin"))
	f.router.Wait()
	require.Len(t, f.transport.forwards, 1)

	f.router.HandleOperatorReply(ctx, OperatorReply{MessageID: 900, RepliedToID: 1})
	f.router.Wait()

	require.Len(t, f.transport.copies, 1)
	cp := f.transport.copies[0]
	require.Equal(t, int64(100), cp.destination)
	require.Equal(t, testOperatorID, cp.fromChat)
	require.Equal(t, int64(900), cp.messageID)
	require.Contains(t, f.transport.textsTo(testOperatorID), "delivered ack")
}

func TestRouterOperatorReplyUnknownOrigin(t *testing.T) {
	t.Parallel()

	f := newRouterFixture(t)
	ctx := context.Background()

	f.router.HandleOperatorReply(ctx, OperatorReply{MessageID: 900, RepliedToID: 12345})
	f.router.Wait()

	require.Empty(t, f.transport.copies, "no delivery may be attempted for an unknown origin")
	require.Equal(t, []string{"origin not found"}, f.transport.textsTo(testOperatorID))
}

func TestRouterOperatorReplyDeliveryFailure(t *testing.T) {
	t.Parallel()

	f := newRouterFixture(t)
	ctx := context.Background()

	f.router.HandleUserMessage(ctx, userMsg(100, 5, "a question for the admin"))
	f.router.Wait()

	f.transport.copyErr = errors.New("user blocked the bot")
	f.router.HandleOperatorReply(ctx, OperatorReply{MessageID: 900, RepliedToID: 1})
	f.router.Wait()

	require.Contains(t, f.transport.textsTo(testOperatorID), "delivery failed")
}

func TestRouterForwardFailureStillReplies(t *testing.T) {
	t.Parallel()

	f := newRouterFixture(t)
	f.transport.forwardErr = errors.New("operator chat unreachable")
	ctx := context.Background()

	f.router.HandleUserMessage(ctx, userMsg(100, 1, "this will not reach the admin"))
	f.router.Wait()

	require.Zero(t, f.router.correlation.Len())
	require.Zero(t, f.store.relayRecordCount())
	require.Contains(t, f.transport.durableTextsTo(100), "busy notice",
		"forwarding failure must not block the user reply")
}

func TestRouterPruneRecords(t *testing.T) {
	t.Parallel()

	f := newRouterFixture(t)
	ctx := context.Background()

	f.router.HandleUserMessage(ctx, userMsg(100, 1, "old message content"))
	f.router.Wait()

	f.advance(72 * time.Hour)
	f.router.HandleUserMessage(ctx, userMsg(200, 2, "recent message content"))
	f.router.Wait()
	require.Equal(t, 2, f.router.correlation.Len())

	pruned, err := f.router.PruneRecords(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, pruned)
	require.Equal(t, 1, f.router.correlation.Len())
	require.Equal(t, 1, f.store.relayRecordCount())

	// A reply to the pruned copy is now unresolvable.
	f.router.HandleOperatorReply(ctx, OperatorReply{MessageID: 900, RepliedToID: 1})
	f.router.Wait()
	require.Contains(t, f.transport.textsTo(testOperatorID), "origin not found")
}
