package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/go-co-op/gocron/v2"
	"github.com/spf13/cobra"

	"github.com/edgard/polybot/internal/app"
	"github.com/edgard/polybot/internal/bot"
	"github.com/edgard/polybot/internal/bot/handlers"
	"github.com/edgard/polybot/internal/bot/tasks"
	"github.com/edgard/polybot/internal/config"
	"github.com/edgard/polybot/internal/database"
	"github.com/edgard/polybot/internal/imageops"
	"github.com/edgard/polybot/internal/inference"
	"github.com/edgard/polybot/internal/logger"
	"github.com/edgard/polybot/internal/mediagroup"
	"github.com/edgard/polybot/internal/prediction"
	"github.com/edgard/polybot/internal/server"
	"github.com/edgard/polybot/internal/storage"
	"github.com/edgard/polybot/internal/telegram"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Register the webhook and serve updates",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts.configPath)
		},
	}
}

// runServe wires every component and blocks until ctx is cancelled.
func runServe(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log := logger.NewLogger(cfg.Log.Level, cfg.Log.JSON)
	log.Info("Logger initialized", "level", cfg.Log.Level, "json", cfg.Log.JSON)

	if err := os.MkdirAll(cfg.Images.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create image directory %s: %w", cfg.Images.Dir, err)
	}

	db, err := database.NewDB(database.Options{
		Driver:       cfg.Database.Driver,
		DSN:          cfg.Database.DSN,
		MaxOpenConns: cfg.Database.MaxOpenConns,
	})
	if err != nil {
		log.Error("Failed to connect to database", "driver", cfg.Database.Driver, "error", err)
		return err
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	objects, err := storage.NewS3Store(ctx, cfg.Storage, log)
	if err != nil {
		log.Error("Failed to initialize object storage", "bucket", cfg.Storage.Bucket, "error", err)
		return err
	}

	infer := inference.NewClient(cfg.Inference.Host, cfg.Inference.Port, cfg.Inference.Timeout, log)
	predictor := prediction.NewOrchestrator(objects, infer, store, prediction.Options{
		Prefix:          cfg.Storage.Prefix,
		Timeout:         cfg.Prediction.Timeout,
		InferAttempts:   cfg.Inference.MaxAttempts,
		InferDelay:      cfg.Inference.RetryDelay,
		PersistAttempts: cfg.Prediction.PersistAttempts,
		PersistDelay:    cfg.Prediction.PersistDelay,
	}, log)

	groups := mediagroup.NewBuffer(imageops.Concat, mediagroup.Config{
		TTL:       cfg.MediaGroup.TTL,
		MaxGroups: cfg.MediaGroup.MaxGroups,
	}, log)

	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log)
	if err != nil {
		return err
	}
	chat := telegram.NewClient(tg, nil, log)

	hDeps := handlers.HandlerDeps{
		Logger:    log,
		Config:    cfg,
		Chat:      chat,
		Groups:    groups,
		Predictor: predictor,
	}
	dispatcher := handlers.NewDispatcher(hDeps, handlers.RegisterAllHandlers(hDeps))
	onUpdate := logger.Middleware(log)(telegram.UpdateHandler(dispatcher.Dispatch))

	if cfg.Telegram.SkipWebhookSetup {
		log.Warn("Skipping webhook registration")
	} else {
		err := telegram.RegisterWebhook(ctx, tg, telegram.WebhookOptions{
			URL:                cfg.WebhookURL(),
			SecretToken:        cfg.Telegram.WebhookSecret,
			DropPendingUpdates: cfg.Telegram.DropPendingUpdates,
		}, log)
		if err != nil {
			return err
		}
	}

	srv := server.New(server.Options{
		Addr:            cfg.Server.Addr,
		WebhookPath:     cfg.Server.WebhookPath,
		SecretToken:     cfg.Telegram.WebhookSecret,
		MaxConcurrent:   cfg.Server.MaxConcurrent,
		RequestTimeout:  cfg.Server.RequestTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, onUpdate, store, log)

	taskMap := tasks.RegisterAllTasks(tasks.TaskDeps{
		Logger: log,
		Store:  store,
		Groups: groups,
		Config: cfg,
	})
	sched, err := bot.NewScheduler(log, &cfg.Scheduler, taskMap, gocron.WithLogger(logger.Gocron(log)))
	if err != nil {
		return err
	}

	runErr := app.New(log, srv, sched).Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	log.Info("polybot stopped gracefully.")
	return nil
}
