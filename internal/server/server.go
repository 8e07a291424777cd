// Package server receives webhook calls from the chat platform and hands
// each update to the bot on its own goroutine.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"golang.org/x/sync/semaphore"

	"github.com/edgard/polybot/internal/logger"
)

// SecretTokenHeader carries the secret the webhook was registered with.
const SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

const (
	ackBody       = "Ok"
	healthTimeout = 2 * time.Second
	maxUpdateSize = 1 << 20
	cancelGrace   = 5 * time.Second
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures the server.
type Options struct {
	Addr            string
	WebhookPath     string
	SecretToken     string
	MaxConcurrent   int64
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// Server is the HTTP endpoint of the bot.
type Server struct {
	opts    Options
	engine  *gin.Engine
	httpSrv *http.Server
	handle  tgbot.HandlerFunc
	db      Pinger
	sem     *semaphore.Weighted
	wg      sync.WaitGroup
	logger  *slog.Logger
	startAt time.Time

	// baseCtx is the parent of every dispatched update. It outlives the
	// request and is cancelled only when draining times out.
	baseCtx    context.Context
	cancelBase context.CancelFunc
}

// New creates a Server that passes every update carrying a message to handle.
func New(opts Options, handle tgbot.HandlerFunc, db Pinger, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 30 * time.Second
	}

	s := &Server{
		opts:    opts,
		handle:  handle,
		db:      db,
		sem:     semaphore.NewWeighted(opts.MaxConcurrent),
		logger:  log.With("component", "server"),
		startAt: time.Now(),
	}
	s.baseCtx, s.cancelBase = context.WithCancel(context.Background())

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), logger.GinMiddleware(s.logger))

	engine.GET("/", s.ginIndex)
	engine.GET("/health", s.ginHealth)
	engine.POST(opts.WebhookPath, s.ginWebhook)

	s.engine = engine
	s.httpSrv = &http.Server{
		Addr:              opts.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then stops accepting requests and
// waits for in-flight updates up to the shutdown timeout. Updates still
// running after that are cancelled, and Run returns once they have stopped
// or the cancel grace period has passed.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server starting", "addr", s.opts.Addr, "webhook_path", s.opts.WebhookPath)
		errCh <- s.httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()

	err := s.httpSrv.Shutdown(shutdownCtx)
	s.drain(shutdownCtx)
	if err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	s.logger.Info("HTTP server stopped.")
	return nil
}

// Wait blocks until every dispatched update has been handled.
func (s *Server) Wait() {
	s.wg.Wait()
}

func (s *Server) drain(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("Shutdown timeout reached, cancelling in-flight updates")
		s.cancelBase()
		select {
		case <-done:
		case <-time.After(cancelGrace):
			s.logger.Error("In-flight updates did not stop after cancellation", "grace", cancelGrace)
		}
	}
}

func (s *Server) ginIndex(c *gin.Context) {
	c.String(http.StatusOK, ackBody)
}

func (s *Server) ginHealth(c *gin.Context) {
	body := gin.H{
		"status": "ok",
		"uptime": time.Since(s.startAt).String(),
	}
	if s.db == nil {
		c.JSON(http.StatusOK, body)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()
	if err := s.db.Ping(ctx); err != nil {
		body["status"] = "degraded"
		body["database"] = err.Error()
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	body["database"] = "ok"
	c.JSON(http.StatusOK, body)
}

func (s *Server) ginWebhook(c *gin.Context) {
	if s.opts.SecretToken != "" {
		got := c.GetHeader(SecretTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.opts.SecretToken)) != 1 {
			s.logger.WarnContext(c.Request.Context(), "Rejected webhook call with wrong secret token", "client_ip", c.ClientIP())
			c.String(http.StatusUnauthorized, "Unauthorized")
			return
		}
	}

	var update models.Update
	if err := json.NewDecoder(io.LimitReader(c.Request.Body, maxUpdateSize)).Decode(&update); err != nil {
		s.logger.WarnContext(c.Request.Context(), "Ignoring undecodable update", "error", err)
		c.String(http.StatusOK, ackBody)
		return
	}

	if update.Message != nil {
		s.dispatch(&update)
	}
	c.String(http.StatusOK, ackBody)
}

// dispatch handles update in the background. The webhook call is
// acknowledged without waiting for a free slot.
func (s *Server) dispatch(update *models.Update) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx := s.baseCtx
		if s.opts.RequestTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.opts.RequestTimeout)
			defer cancel()
		}

		if err := s.sem.Acquire(ctx, 1); err != nil {
			s.logger.ErrorContext(ctx, "Dropped update waiting for a free worker", "update_id", update.ID, "error", err)
			return
		}
		defer s.sem.Release(1)

		s.handle(ctx, nil, update)
	}()
}
