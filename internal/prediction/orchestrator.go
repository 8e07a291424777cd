// Package prediction runs the object-detection sequence for one image:
// upload it, ask the inference service to annotate it, fetch the annotated
// image and persist the result.
package prediction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"

	"github.com/edgard/polybot/internal/apperr"
	"github.com/edgard/polybot/internal/database"
	"github.com/edgard/polybot/internal/inference"
	"github.com/edgard/polybot/internal/resilience"
	"github.com/edgard/polybot/internal/storage"
)

const predictedPrefix = "predicted_"

// Inferer runs detection on an image already in object storage.
type Inferer interface {
	Predict(ctx context.Context, imgName string) (*inference.Result, error)
}

// ResultStore persists predictions.
type ResultStore interface {
	SavePrediction(ctx context.Context, p *database.Prediction) (string, error)
}

// Options tunes the orchestrator.
type Options struct {
	// Prefix is the object key prefix images are uploaded under.
	Prefix string
	// Timeout bounds the whole sequence. Zero means no extra deadline.
	Timeout time.Duration

	InferAttempts   int
	InferDelay      time.Duration
	PersistAttempts int
	PersistDelay    time.Duration

	// Timer replaces the wall clock wait between attempts.
	Timer retry.Timer
	// Now and NewID replace the clock and the id generator.
	Now   func() time.Time
	NewID func() string
}

// Orchestrator runs predictions. It is safe for concurrent use.
type Orchestrator struct {
	objects storage.ObjectStore
	infer   Inferer
	results ResultStore
	opts    Options
	logger  *slog.Logger
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(objects storage.ObjectStore, infer Inferer, results ResultStore, opts Options, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.InferAttempts <= 0 {
		opts.InferAttempts = 3
	}
	if opts.PersistAttempts <= 0 {
		opts.PersistAttempts = 3
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Orchestrator{
		objects: objects,
		infer:   infer,
		results: results,
		opts:    opts,
		logger:  logger.With("component", "prediction"),
	}
}

// Predict runs the full sequence for the local image at imagePath. Upload
// failures are terminal; inference is retried on any failure; persistence is
// retried only on transient store failures. Either a complete persisted
// summary or a single error is returned.
func (o *Orchestrator) Predict(ctx context.Context, imagePath string) (*Summary, error) {
	if o.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.Timeout)
		defer cancel()
	}

	name := filepath.Base(imagePath)
	key := storage.Key(o.opts.Prefix, name)
	log := o.logger.With("image", name, "key", key)
	start := time.Now()

	if err := o.objects.Upload(ctx, key, imagePath); err != nil {
		log.ErrorContext(ctx, "Failed to upload image", "error", err)
		return nil, fmt.Errorf("upload image: %w", err)
	}

	result, err := o.runInference(ctx, name, log)
	if err != nil {
		return nil, err
	}

	predictedKey := result.PredictedImgPath
	if predictedKey == "" {
		return nil, apperr.New(apperr.KindInternal, apperr.CodeInference, "inference response has no predicted image path", nil)
	}
	localImage := filepath.Join(filepath.Dir(imagePath), predictedPrefix+name)
	if err := o.objects.Download(ctx, predictedKey, localImage); err != nil {
		log.ErrorContext(ctx, "Failed to download predicted image", "predicted_key", predictedKey, "error", err)
		return nil, fmt.Errorf("download predicted image: %w", err)
	}

	summary := &Summary{
		PredictionID:   o.opts.NewID(),
		OriginalImage:  key,
		PredictedImage: predictedKey,
		Labels:         result.Labels,
		Timestamp:      o.opts.Now().UTC(),
		LocalImage:     localImage,
	}

	id, err := o.persist(ctx, summary, log)
	if err != nil {
		return nil, err
	}
	summary.ID = id

	log.InfoContext(ctx, "Prediction completed",
		"prediction_id", summary.PredictionID,
		"id", id,
		"labels", len(summary.Labels),
		"duration", time.Since(start))
	return summary, nil
}

func (o *Orchestrator) runInference(ctx context.Context, name string, log *slog.Logger) (*inference.Result, error) {
	var result *inference.Result

	err := resilience.WithRetry(ctx, func(ctx context.Context, attempt int) error {
		res, err := o.infer.Predict(ctx, name)
		if err != nil {
			if errors.Is(err, inference.ErrNotFound) {
				log.WarnContext(ctx, "Inference service has not found the image yet",
					"attempt", attempt, "max_attempts", o.opts.InferAttempts, "error", err)
			} else {
				log.ErrorContext(ctx, "Inference call failed",
					"attempt", attempt, "max_attempts", o.opts.InferAttempts, "error", err)
			}
			return err
		}
		result = res
		return nil
	}, resilience.RetryConfig{
		MaxAttempts: o.opts.InferAttempts,
		Delay:       o.opts.InferDelay,
		Timer:       o.opts.Timer,
		OnRetry: func(attempt int, _ error) {
			log.InfoContext(ctx, "Retrying inference",
				"next_attempt", attempt+1, "max_attempts", o.opts.InferAttempts, "delay", o.opts.InferDelay)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("run inference: %w", err)
	}
	return result, nil
}

func (o *Orchestrator) persist(ctx context.Context, s *Summary, log *slog.Logger) (string, error) {
	var id string

	record := &database.Prediction{
		PredictionID:   s.PredictionID,
		OriginalImage:  s.OriginalImage,
		PredictedImage: s.PredictedImage,
		Labels:         database.LabelList(s.Labels),
		Timestamp:      s.Timestamp,
	}

	err := resilience.WithRetry(ctx, func(ctx context.Context, attempt int) error {
		saved, err := o.results.SavePrediction(ctx, record)
		if err != nil {
			log.ErrorContext(ctx, "Failed to persist prediction",
				"prediction_id", s.PredictionID, "attempt", attempt, "transient", database.IsTransient(err), "error", err)
			return err
		}
		id = saved
		return nil
	}, resilience.RetryConfig{
		MaxAttempts: o.opts.PersistAttempts,
		Delay:       o.opts.PersistDelay,
		Retryable:   database.IsTransient,
		Timer:       o.opts.Timer,
		OnRetry: func(attempt int, _ error) {
			log.InfoContext(ctx, "Retrying prediction persistence",
				"prediction_id", s.PredictionID, "next_attempt", attempt+1,
				"max_attempts", o.opts.PersistAttempts, "delay", o.opts.PersistDelay)
		},
	})
	if err != nil {
		return "", fmt.Errorf("persist prediction: %w", err)
	}
	return id, nil
}
