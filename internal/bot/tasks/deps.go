// Package tasks implements the scheduled maintenance tasks of polybot.
package tasks

import (
	"log/slog"
	"time"

	"github.com/edgard/polybot/internal/config"
	"github.com/edgard/polybot/internal/database"
)

// GroupCounter reports how many media groups are waiting for images.
type GroupCounter interface {
	Len() int
}

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger *slog.Logger
	Store  database.Store
	Groups GroupCounter
	Config *config.Config
	// Now replaces the clock. It defaults to time.Now.
	Now func() time.Time
}

func (d TaskDeps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}
