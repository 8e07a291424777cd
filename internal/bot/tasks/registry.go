package tasks

import "context"

// ScheduledTaskFunc defines the standard signature for all scheduled tasks.
// The context provided by the scheduler should be respected for cancellation.
type ScheduledTaskFunc func(ctx context.Context) error

// Task names, matching the keys of the scheduler configuration.
const (
	PredictionRetention = "prediction_retention"
	ImageCleanup        = "image_cleanup"
	MediaGroupReport    = "media_group_report"
	SQLMaintenance      = "sql_maintenance"
)

// RegisterAllTasks initializes and returns a map of all registered scheduled tasks,
// keyed by the name used in the scheduler configuration.
func RegisterAllTasks(deps TaskDeps) map[string]ScheduledTaskFunc {
	tasks := map[string]ScheduledTaskFunc{
		PredictionRetention: newPredictionRetentionTask(deps),
		ImageCleanup:        newImageCleanupTask(deps),
		MediaGroupReport:    newMediaGroupReportTask(deps),
		SQLMaintenance:      newSQLMaintenanceTask(deps),
	}

	deps.Logger.Info("Initialized scheduled tasks", "count", len(tasks))
	return tasks
}
