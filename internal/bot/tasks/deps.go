// Package tasks contains the scheduled background tasks.
package tasks

import (
	"context"
	"log/slog"

	"github.com/edgard/pontebot/internal/database"
	"github.com/edgard/pontebot/internal/relay"
)

// ScheduledTaskFunc is a runnable scheduled task.
type ScheduledTaskFunc func(ctx context.Context) error

// TaskDeps provides dependencies for scheduled tasks.
type TaskDeps struct {
	Logger *slog.Logger
	Store  database.Store
	Router *relay.Router
}
