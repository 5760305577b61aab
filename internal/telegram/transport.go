package telegram

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/pontebot/internal/relay"
)

// Transport adapts the go-telegram/bot API to the relay.Transport interface.
type Transport struct {
	bot *bot.Bot
	log *slog.Logger
}

var _ relay.Transport = (*Transport)(nil)

// NewTransport wraps a bot instance as a relay transport.
func NewTransport(b *bot.Bot, logger *slog.Logger) *Transport {
	return &Transport{bot: b, log: logger.With("component", "telegram_transport")}
}

// Forward copies a user message into the destination chat with the usual
// "forwarded from" attribution and returns the id of the copy.
func (t *Transport) Forward(ctx context.Context, destination, fromChat, messageID int64) (int64, error) {
	msg, err := t.bot.ForwardMessage(ctx, &bot.ForwardMessageParams{
		ChatID:     destination,
		FromChatID: fromChat,
		MessageID:  int(messageID),
	})
	if err != nil {
		return 0, fmt.Errorf("forward to %d failed: %w", destination, err)
	}
	return int64(msg.ID), nil
}

// Copy delivers a message's content (text or media) without attribution,
// used to route operator replies back to users.
func (t *Transport) Copy(ctx context.Context, destination, fromChat, messageID int64) (int64, error) {
	copied, err := t.bot.CopyMessage(ctx, &bot.CopyMessageParams{
		ChatID:     destination,
		FromChatID: fromChat,
		MessageID:  int(messageID),
	})
	if err != nil {
		return 0, fmt.Errorf("copy to %d failed: %w", destination, err)
	}
	return int64(copied.ID), nil
}

// SendText sends a plain text message and returns its id.
func (t *Transport) SendText(ctx context.Context, destination int64, text string) (int64, error) {
	msg, err := t.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: destination,
		Text:   text,
	})
	if err != nil {
		return 0, fmt.Errorf("send to %d failed: %w", destination, err)
	}
	return int64(msg.ID), nil
}

// Delete removes a previously sent message.
func (t *Transport) Delete(ctx context.Context, destination, messageID int64) error {
	ok, err := t.bot.DeleteMessage(ctx, &bot.DeleteMessageParams{
		ChatID:    destination,
		MessageID: int(messageID),
	})
	if err != nil {
		return fmt.Errorf("delete %d in %d failed: %w", messageID, destination, err)
	}
	if !ok {
		return fmt.Errorf("delete %d in %d was rejected", messageID, destination)
	}
	return nil
}

// ShowTyping sends the native typing chat action. Best-effort.
func (t *Transport) ShowTyping(ctx context.Context, destination int64) error {
	ok, err := t.bot.SendChatAction(ctx, &bot.SendChatActionParams{
		ChatID: destination,
		Action: models.ChatActionTyping,
	})
	if err != nil {
		return fmt.Errorf("chat action in %d failed: %w", destination, err)
	}
	if !ok {
		return fmt.Errorf("chat action in %d was rejected", destination)
	}
	return nil
}
