package handlers

import (
	"log/slog"

	"github.com/edgard/pontebot/internal/config"
	"github.com/edgard/pontebot/internal/relay"
)

// HandlerDeps provides dependencies for Telegram handlers.
type HandlerDeps struct {
	Logger *slog.Logger
	Config *config.Config
	Router *relay.Router
}
