package tasks

import (
	"context"
	"fmt"
)

// NewDBMaintenanceTask returns a task that runs periodic database
// maintenance (vacuum and query planner statistics refresh).
func NewDBMaintenanceTask(deps TaskDeps) ScheduledTaskFunc {
	return func(ctx context.Context) error {
		deps.Logger.Debug("starting database maintenance")

		if err := deps.Store.RunMaintenance(ctx); err != nil {
			return fmt.Errorf("failed to run database maintenance: %w", err)
		}

		deps.Logger.Info("database maintenance finished")

		return nil
	}
}
