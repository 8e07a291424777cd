package tasks

import (
	"context"
	"fmt"
)

// newPredictionRetentionTask deletes predictions older than the configured
// retention. A zero retention keeps everything.
func newPredictionRetentionTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", PredictionRetention)

	return func(ctx context.Context) error {
		retention := deps.Config.Database.Retention
		if retention <= 0 {
			log.DebugContext(ctx, "Prediction retention disabled")
			return nil
		}

		cutoff := deps.now().Add(-retention)
		deleted, err := deps.Store.DeletePredictionsBefore(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("prediction retention failed: %w", err)
		}

		log.InfoContext(ctx, "Deleted expired predictions", "deleted", deleted, "cutoff", cutoff)
		return nil
	}
}
