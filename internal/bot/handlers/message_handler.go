package handlers

import (
	"context"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/pontebot/internal/relay"
)

// NewMessageHandler returns the default handler for every update no command
// handler matched. User messages go into the relay; operator replies are
// routed back to their originating chat.
func NewMessageHandler(deps HandlerDeps) bot.HandlerFunc {
	return messageHandler{deps}.Handle
}

type messageHandler struct {
	deps HandlerDeps
}

func (h messageHandler) Handle(ctx context.Context, _ *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "message")

	msg := update.Message
	if msg == nil || msg.From == nil {
		log.DebugContext(ctx, "Ignoring update with nil message or sender", "update_id", update.ID)
		return
	}

	if msg.From.ID == h.deps.Config.Telegram.AdminID {
		h.handleOperatorMessage(ctx, msg)
		return
	}

	text := msg.Text
	if text == "" {
		text = msg.Caption
	}
	hasMedia := messageHasMedia(msg)

	if text == "" && !hasMedia {
		log.DebugContext(ctx, "Ignoring message without relayable content", "chat_id", msg.Chat.ID)
		return
	}
	if !hasMedia && strings.HasPrefix(text, "/") {
		// Unknown command, not chat content.
		log.DebugContext(ctx, "Ignoring unknown command", "chat_id", msg.Chat.ID)
		return
	}

	h.deps.Router.HandleUserMessage(ctx, relay.UserMessage{
		ChatID:     msg.Chat.ID,
		MessageID:  int64(msg.ID),
		SenderName: msg.From.FirstName,
		Text:       text,
		HasMedia:   hasMedia,
	})
}

// handleOperatorMessage routes an operator reply back to its origin. Operator
// messages that are not replies carry no routing information and are ignored.
func (h messageHandler) handleOperatorMessage(ctx context.Context, msg *models.Message) {
	log := h.deps.Logger.With("handler", "message")

	if msg.ReplyToMessage == nil {
		log.DebugContext(ctx, "Ignoring operator message that is not a reply", "message_id", msg.ID)
		return
	}

	h.deps.Router.HandleOperatorReply(ctx, relay.OperatorReply{
		MessageID:   int64(msg.ID),
		RepliedToID: int64(msg.ReplyToMessage.ID),
	})
}

func messageHasMedia(msg *models.Message) bool {
	return len(msg.Photo) > 0 ||
		msg.Document != nil ||
		msg.Video != nil ||
		msg.Audio != nil ||
		msg.Voice != nil ||
		msg.VideoNote != nil ||
		msg.Sticker != nil
}
