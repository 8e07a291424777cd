package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/edgard/polybot/internal/database"
)

// sqlMaintenanceTimeout bounds one VACUUM/ANALYZE run.
const sqlMaintenanceTimeout = 10 * time.Minute

// newSQLMaintenanceTask compacts and analyzes the prediction results database.
// A busy or locked database is reported at warn level; the next run retries.
func newSQLMaintenanceTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", SQLMaintenance, "driver", deps.Config.Database.Driver)

	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, sqlMaintenanceTimeout)
		defer cancel()

		log.InfoContext(ctx, "Starting prediction database maintenance")
		start := time.Now()

		err := deps.Store.RunSQLMaintenance(ctx)
		duration := time.Since(start)
		switch {
		case err == nil:
			log.InfoContext(ctx, "Prediction database maintenance completed", "duration", duration)
			return nil
		case database.IsTransient(err):
			log.WarnContext(ctx, "Prediction database busy, maintenance deferred to the next run",
				"duration", duration, "error", err)
			return fmt.Errorf("prediction database busy: %w", err)
		default:
			log.ErrorContext(ctx, "Prediction database maintenance failed", "duration", duration, "error", err)
			return fmt.Errorf("sql maintenance failed: %w", err)
		}
	}
}
