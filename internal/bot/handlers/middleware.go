// Package handlers contains the Telegram command and message handlers,
// their registration logic, and middleware.
package handlers

import (
	"context"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// AdminOnly creates a middleware that only lets the configured operator
// through. Everyone else is dropped silently: answering would reveal that a
// privileged command set exists.
func AdminOnly(deps HandlerDeps) tgbot.Middleware {
	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, b *tgbot.Bot, update *models.Update) {
			if update.Message == nil || update.Message.From == nil {
				return
			}

			userID := update.Message.From.ID
			if userID != deps.Config.Telegram.AdminID {
				deps.Logger.WarnContext(ctx, "Privileged command from non-operator ignored",
					"user_id", userID, "chat_id", update.Message.Chat.ID)
				return
			}

			next(ctx, b, update)
		}
	}
}
