package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	"github.com/edgard/polybot/internal/apperr"
)

// Store defines the interface for database operations.
// Methods accept context.Context for cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// SavePrediction inserts one prediction and returns its identifier.
	SavePrediction(ctx context.Context, p *Prediction) (string, error)

	// GetPrediction retrieves a prediction by the identifier SavePrediction returned.
	GetPrediction(ctx context.Context, id string) (*Prediction, error)

	// DeletePredictionsBefore removes predictions whose timestamp is older than cutoff.
	DeletePredictionsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// RunSQLMaintenance performs database maintenance (VACUUM / ANALYZE).
	RunSQLMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db       *sqlx.DB
	validate *validator.Validate
	logger   *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:       db,
		validate: validator.New(),
		logger:   logger.With("component", "store"),
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const insertPrediction = `
    INSERT INTO prediction_results (prediction_id, original_img_path, predicted_img_path, labels, timestamp, created_at)
    VALUES (:prediction_id, :original_img_path, :predicted_img_path, :labels, :timestamp, :created_at)
    RETURNING id;
`

// SavePrediction validates and inserts p. The returned identifier is the
// decimal form of the generated primary key.
func (s *sqlxStore) SavePrediction(ctx context.Context, p *Prediction) (string, error) {
	if p == nil {
		return "", apperr.Validation("cannot save nil prediction", nil)
	}
	if err := s.validate.Struct(p); err != nil {
		return "", apperr.Validation("invalid prediction", err)
	}

	p.Timestamp = p.Timestamp.UTC()
	p.CreatedAt = time.Now().UTC()

	query, args, err := sqlx.Named(insertPrediction, p)
	if err != nil {
		return "", apperr.Validation("bind prediction", err)
	}
	query = s.db.Rebind(query)

	if err := s.db.QueryRowxContext(ctx, query, args...).Scan(&p.ID); err != nil {
		s.logger.ErrorContext(ctx, "Error saving prediction", "prediction_id", p.PredictionID, "error", err)
		return "", fmt.Errorf("failed to save prediction %s: %w", p.PredictionID, err)
	}

	id := strconv.FormatInt(p.ID, 10)
	s.logger.DebugContext(ctx, "Prediction saved successfully", "prediction_id", p.PredictionID, "id", id)
	return id, nil
}

// GetPrediction retrieves a prediction by identifier. It returns ErrNotFound
// when there is none.
func (s *sqlxStore) GetPrediction(ctx context.Context, id string) (*Prediction, error) {
	pk, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid id %q", ErrNotFound, id)
	}

	query := s.db.Rebind(`
        SELECT id, prediction_id, original_img_path, predicted_img_path, labels, timestamp, created_at
        FROM prediction_results
        WHERE id = ?;
    `)

	var p Prediction
	if err := s.db.GetContext(ctx, &p, query, pk); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: prediction %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get prediction %s: %w", id, err)
	}
	return &p, nil
}

// DeletePredictionsBefore removes predictions older than cutoff.
func (s *sqlxStore) DeletePredictionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := s.db.Rebind(`DELETE FROM prediction_results WHERE timestamp < ?;`)

	result, err := s.db.ExecContext(ctx, query, cutoff.UTC())
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to delete old predictions", "cutoff", cutoff, "error", err)
		return 0, fmt.Errorf("failed to delete predictions before %s: %w", cutoff.Format(time.RFC3339), err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		s.logger.WarnContext(ctx, "Could not read affected rows after deleting predictions", "error", err)
		return 0, nil
	}
	return affected, nil
}

// RunSQLMaintenance runs VACUUM and ANALYZE on SQLite, ANALYZE on Postgres.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting maintenance", "error", ctx.Err())
		return ctx.Err()
	}

	statements := []string{"ANALYZE prediction_results;"}
	if s.db.DriverName() == DriverSQLite {
		// VACUUM must run outside a transaction in SQLite.
		statements = []string{"PRAGMA busy_timeout = 5000;", "VACUUM;", "ANALYZE;"}
	}

	s.logger.InfoContext(ctx, "Starting database maintenance...", "driver", s.db.DriverName())

	for _, stmt := range statements {
		_, err := s.db.ExecContext(ctx, stmt)
		switch {
		case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
			s.logger.WarnContext(ctx, "Database maintenance timed out or was cancelled", "statement", stmt, "error", err)
			return fmt.Errorf("database maintenance timed out: %w", err)
		case err != nil:
			s.logger.ErrorContext(ctx, "Database maintenance failed", "statement", stmt, "error", err)
			return fmt.Errorf("failed to execute %q: %w", stmt, err)
		}
	}

	s.logger.InfoContext(ctx, "Database maintenance completed successfully")
	return nil
}
