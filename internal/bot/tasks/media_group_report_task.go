package tasks

import "context"

// newMediaGroupReportTask logs how many media groups are still waiting for
// their second image. Expired groups are evicted by the buffer itself.
func newMediaGroupReportTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", MediaGroupReport)

	return func(ctx context.Context) error {
		if deps.Groups == nil {
			return nil
		}
		log.InfoContext(ctx, "Pending media groups", "count", deps.Groups.Len())
		return nil
	}
}
