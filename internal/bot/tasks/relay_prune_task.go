package tasks

import (
	"context"
	"fmt"
)

// NewRelayPruneTask returns a task that drops relay correlation records
// older than the configured retention window, both in memory and in the
// database.
func NewRelayPruneTask(deps TaskDeps) ScheduledTaskFunc {
	return func(ctx context.Context) error {
		deps.Logger.Debug("starting relay record pruning")

		pruned, err := deps.Router.PruneRecords(ctx)
		if err != nil {
			return fmt.Errorf("failed to prune relay records: %w", err)
		}

		deps.Logger.Info("relay record pruning finished", "memory_pruned", pruned)

		return nil
	}
}
