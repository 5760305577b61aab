package tasks

// RegisterAllTasks builds the map of task name to task function. Names
// must match the keys under scheduler.tasks in the configuration.
func RegisterAllTasks(deps TaskDeps) map[string]ScheduledTaskFunc {
	return map[string]ScheduledTaskFunc{
		"relay_prune":    NewRelayPruneTask(deps),
		"db_maintenance": NewDBMaintenanceTask(deps),
	}
}
