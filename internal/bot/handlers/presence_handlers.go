package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewAvailableHandler returns a handler for the privileged /available command.
func NewAvailableHandler(deps HandlerDeps) bot.HandlerFunc {
	return availableHandler{deps}.Handle
}

type availableHandler struct {
	deps HandlerDeps
}

func (h availableHandler) Handle(ctx context.Context, _ *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "available")

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "Available handler received update with nil message or sender", "update_id", update.ID)
		return
	}

	log.InfoContext(ctx, "Operator going available", "user_id", update.Message.From.ID)
	h.deps.Router.SetAvailable(ctx)
}

// NewAwayHandler returns a handler for the privileged /away command.
func NewAwayHandler(deps HandlerDeps) bot.HandlerFunc {
	return awayHandler{deps}.Handle
}

type awayHandler struct {
	deps HandlerDeps
}

func (h awayHandler) Handle(ctx context.Context, _ *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "away")

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "Away handler received update with nil message or sender", "update_id", update.ID)
		return
	}

	log.InfoContext(ctx, "Operator going away", "user_id", update.Message.From.ID)
	h.deps.Router.SetAway(ctx)
}
