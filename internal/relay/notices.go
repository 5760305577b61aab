package relay

import (
	"context"
	"log/slog"
	"time"
)

// Transport is the message transport consumed by the relay core. Forward
// copies a user's message into the operator chat and returns the id the copy
// got there; Copy delivers arbitrary content (text or media) transparently.
type Transport interface {
	Forward(ctx context.Context, destination, fromChat, messageID int64) (int64, error)
	Copy(ctx context.Context, destination, fromChat, messageID int64) (int64, error)
	SendText(ctx context.Context, destination int64, text string) (int64, error)
	Delete(ctx context.Context, destination, messageID int64) error
	ShowTyping(ctx context.Context, destination int64) error
}

// Greeter generates a short personalized greeting. Callers guard every use
// with a fixed fallback string; a Greeter error never reaches a user.
type Greeter interface {
	Greet(ctx context.Context, name, language string) (string, error)
}

// Notifier sends transient notices: a message that is deleted again after a
// delay. Used for the typing notice and the "sent" acknowledgements.
type Notifier struct {
	transport Transport
	log       *slog.Logger
}

// NewNotifier creates a Notifier on top of the given transport.
func NewNotifier(transport Transport, log *slog.Logger) *Notifier {
	return &Notifier{transport: transport, log: log.With("component", "notifier")}
}

// ShowEphemeral sends text to destination, waits delay, then deletes the
// message. Send and delete failures are logged and swallowed. The call
// blocks for at most delay; callers that need the pause (the typing notice)
// invoke it synchronously, trailing acknowledgements run it detached.
func (n *Notifier) ShowEphemeral(ctx context.Context, destination int64, text string, delay time.Duration) {
	messageID, err := n.transport.SendText(ctx, destination, text)
	if err != nil {
		n.log.WarnContext(ctx, "Failed to send ephemeral notice", "chat_id", destination, "error", err)
		return
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}

	if err := n.transport.Delete(ctx, destination, messageID); err != nil {
		n.log.DebugContext(ctx, "Failed to delete ephemeral notice",
			"chat_id", destination, "message_id", messageID, "error", err)
	}
}
