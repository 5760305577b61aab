package relay

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/edgard/pontebot/internal/config"
	"github.com/edgard/pontebot/internal/database"
)

// UserMessage is an inbound message from an end user.
type UserMessage struct {
	ChatID     int64
	MessageID  int64
	SenderName string
	Text       string
	HasMedia   bool
}

// OperatorReply is an inbound operator message replying to a relayed copy.
type OperatorReply struct {
	MessageID   int64
	RepliedToID int64
}

// Router orchestrates the relay: it gates floods, classifies greetings,
// forwards user messages to the operator, records correlations, and routes
// operator replies back to their origin. Shared state (presence, correlation
// map) is acquired and released before any transport or store I/O.
type Router struct {
	log      *slog.Logger
	cfg      config.RelayConfig
	operator int64

	transport Transport
	greeter   Greeter
	store     database.Store
	notifier  *Notifier

	presence    *Presence
	correlation *CorrelationMap
	limiter     *Limiter
	tracker     *Tracker

	now func() time.Time
	wg  sync.WaitGroup
}

// NewRouter creates a Router. operatorID is the privileged operator chat.
func NewRouter(
	log *slog.Logger,
	cfg config.RelayConfig,
	operatorID int64,
	transport Transport,
	greeter Greeter,
	store database.Store,
	presence *Presence,
	correlation *CorrelationMap,
	limiter *Limiter,
	tracker *Tracker,
) *Router {
	return &Router{
		log:         log.With("component", "relay_router"),
		cfg:         cfg,
		operator:    operatorID,
		transport:   transport,
		greeter:     greeter,
		store:       store,
		notifier:    NewNotifier(transport, log),
		presence:    presence,
		correlation: correlation,
		limiter:     limiter,
		tracker:     tracker,
		now:         time.Now,
	}
}

// HandleUserMessage runs the inbound user message flow. Every branch ends in
// a user-visible reply, a swallowed log entry, or both; nothing here returns
// a hard failure.
func (r *Router) HandleUserMessage(ctx context.Context, msg UserMessage) {
	now := r.now()

	if !r.limiter.Allow(msg.ChatID, now) {
		// Silent drop. No reply, no state change, nothing that would reveal
		// the gate to the sender.
		r.log.DebugContext(ctx, "Message rate limited", "chat_id", msg.ChatID)
		return
	}
	r.persistConversation(ctx, msg.ChatID, now)

	text := Truncate(msg.Text, r.cfg.MaxMessageLen)
	if !msg.HasMedia && IsGreeting(text) {
		r.sendGreeting(ctx, msg.ChatID, msg.SenderName, text)
		return
	}

	relayedID, err := r.transport.Forward(ctx, r.operator, msg.ChatID, msg.MessageID)
	if err != nil {
		// Forwarding is best-effort; the user still gets a reply.
		r.log.WarnContext(ctx, "Failed to forward message to operator",
			"chat_id", msg.ChatID, "message_id", msg.MessageID, "error", err)
	} else {
		if recErr := r.correlation.Record(relayedID, msg.ChatID, now); recErr != nil {
			r.log.ErrorContext(ctx, "Correlation insert failed",
				"relayed_message_id", relayedID, "chat_id", msg.ChatID, "error", recErr)
		} else {
			r.persistRelayRecord(ctx, relayedID, msg.ChatID, now)
		}
	}

	if err := r.transport.ShowTyping(ctx, msg.ChatID); err != nil {
		r.log.DebugContext(ctx, "Failed to send typing action", "chat_id", msg.ChatID, "error", err)
	}
	// Awaited on purpose: the outcome reply should land after the pause.
	r.notifier.ShowEphemeral(ctx, msg.ChatID, r.cfg.Messages.Typing, r.cfg.TypingDelay)

	switch r.presence.ConsumeTransition() {
	case TransitionAvailable:
		r.persistPresence(ctx)
		r.sendText(ctx, msg.ChatID, r.cfg.Messages.BecameAvailable)
		return
	case TransitionAway:
		r.persistPresence(ctx)
		r.sendText(ctx, msg.ChatID, r.cfg.Messages.BecameAway)
		return
	}

	if r.presence.IsAvailable() {
		r.detachEphemeral(ctx, msg.ChatID, r.cfg.Messages.Sent)
		return
	}

	if r.tracker.MarkAndCheckFirstContact(msg.ChatID) {
		r.persistConversation(ctx, msg.ChatID, now)
		r.sendText(ctx, msg.ChatID, r.cfg.Messages.Busy)
		return
	}
	r.detachEphemeral(ctx, msg.ChatID, r.cfg.Messages.Sent)
}

// HandleOperatorReply routes an operator reply back to the conversation the
// replied-to copy came from. Failures surface to the operator only.
func (r *Router) HandleOperatorReply(ctx context.Context, reply OperatorReply) {
	origin, err := r.correlation.Resolve(reply.RepliedToID)
	if err != nil {
		if !errors.Is(err, ErrRelayNotFound) {
			r.log.ErrorContext(ctx, "Correlation lookup failed",
				"relayed_message_id", reply.RepliedToID, "error", err)
		}
		r.sendText(ctx, r.operator, r.cfg.Messages.OriginNotFound)
		return
	}

	if _, err := r.transport.Copy(ctx, origin, r.operator, reply.MessageID); err != nil {
		r.log.WarnContext(ctx, "Failed to deliver operator reply",
			"chat_id", origin, "message_id", reply.MessageID, "error", err)
		r.sendText(ctx, r.operator, r.cfg.Messages.DeliveryFailed)
		return
	}

	r.detachEphemeral(ctx, r.operator, r.cfg.Messages.Delivered)
}

// SetAvailable handles the privileged available command.
func (r *Router) SetAvailable(ctx context.Context) {
	r.presence.SetAvailable()
	r.persistPresence(ctx)
	r.sendText(ctx, r.operator, r.cfg.Messages.AdminNowAvailable)
}

// SetAway handles the privileged away command.
func (r *Router) SetAway(ctx context.Context) {
	r.presence.SetAway()
	r.persistPresence(ctx)
	r.sendText(ctx, r.operator, r.cfg.Messages.AdminNowAway)
}

// SendGreeting generates and sends the first-contact greeting, used both for
// greeting-phrase messages and the start command.
func (r *Router) SendGreeting(ctx context.Context, chatID int64, name, text string) {
	r.sendGreeting(ctx, chatID, name, text)
}

// PruneRecords enforces the correlation retention bound, in memory and in the
// store. Returns how many in-memory entries were dropped.
func (r *Router) PruneRecords(ctx context.Context) (int, error) {
	cutoff := r.now().Add(-r.cfg.RecordRetention)
	pruned := r.correlation.PruneBefore(cutoff)
	deleted, err := r.store.DeleteRelayRecordsBefore(ctx, cutoff)
	if err != nil {
		return pruned, err
	}
	r.log.InfoContext(ctx, "Pruned relay records",
		"memory_pruned", pruned, "rows_deleted", deleted, "cutoff", cutoff)
	return pruned, nil
}

// Wait blocks until detached notice deliveries finish. Used at shutdown and
// in tests.
func (r *Router) Wait() {
	r.wg.Wait()
}

func (r *Router) sendGreeting(ctx context.Context, chatID int64, name, text string) {
	if name == "" {
		name = "Friend"
	}

	reply, err := r.greeter.Greet(ctx, name, DetectLanguage(text))
	if err != nil {
		r.log.WarnContext(ctx, "Greeting generation failed, using fallback",
			"chat_id", chatID, "error", err)
		reply = r.cfg.Messages.GreetingFallback
	}
	if strings.TrimSpace(reply) == "" {
		reply = r.cfg.Messages.GreetingFallback
	}

	r.sendText(ctx, chatID, reply)
}

func (r *Router) sendText(ctx context.Context, chatID int64, text string) {
	if _, err := r.transport.SendText(ctx, chatID, text); err != nil {
		r.log.ErrorContext(ctx, "Failed to send message", "chat_id", chatID, "error", err)
	}
}

// detachEphemeral fires a trailing acknowledgement without blocking the
// caller. The notice outlives the handler's context on purpose so the delete
// still runs.
func (r *Router) detachEphemeral(ctx context.Context, chatID int64, text string) {
	bgCtx := context.WithoutCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.notifier.ShowEphemeral(bgCtx, chatID, text, r.cfg.NoticeTTL)
	}()
}

func (r *Router) persistConversation(ctx context.Context, chatID int64, lastAt time.Time) {
	conv := &database.Conversation{
		ChatID:            chatID,
		LastMessageAt:     lastAt.UTC(),
		FirstContactShown: r.tracker.Shown(chatID),
	}
	if err := r.store.UpsertConversation(ctx, conv); err != nil {
		r.log.ErrorContext(ctx, "Failed to persist conversation", "chat_id", chatID, "error", err)
	}
}

func (r *Router) persistRelayRecord(ctx context.Context, relayedID, chatID int64, at time.Time) {
	rec := &database.RelayRecord{
		RelayedMessageID: relayedID,
		ChatID:           chatID,
		CreatedAt:        at.UTC(),
	}
	if err := r.store.SaveRelayRecord(ctx, rec); err != nil {
		r.log.ErrorContext(ctx, "Failed to persist relay record",
			"relayed_message_id", relayedID, "chat_id", chatID, "error", err)
	}
}

func (r *Router) persistPresence(ctx context.Context) {
	available, pending := r.presence.Snapshot()
	p := &database.Presence{
		Available:         available,
		PendingTransition: pending.String(),
	}
	if err := r.store.SavePresence(ctx, p); err != nil {
		r.log.ErrorContext(ctx, "Failed to persist presence", "error", err)
	}
}
