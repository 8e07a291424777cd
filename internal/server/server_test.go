package server_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/polybot/internal/server"
)

const messageUpdate = `{"update_id":1,"message":{"message_id":5,"date":0,"chat":{"id":9,"type":"private"},"text":"hello"}}`

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

type recorder struct {
	mu      sync.Mutex
	updates []*models.Update
}

func (r *recorder) handle(_ context.Context, _ *tgbot.Bot, update *models.Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, update)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.updates)
}

func newServer(handle tgbot.HandlerFunc, db server.Pinger, opts server.Options) *server.Server {
	if opts.WebhookPath == "" {
		opts.WebhookPath = "/webhook/"
	}
	if opts.MaxConcurrent == 0 {
		opts.MaxConcurrent = 4
	}
	return server.New(opts, handle, db, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func do(t *testing.T, s *server.Server, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServer_Index(t *testing.T) {
	t.Parallel()

	s := newServer((&recorder{}).handle, nil, server.Options{})
	rec := do(t, s, http.MethodGet, "/", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ok", rec.Body.String())
}

func TestServer_Health(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		db         server.Pinger
		wantStatus int
		wantBody   string
	}{
		{name: "healthy", db: fakePinger{}, wantStatus: http.StatusOK, wantBody: `"database":"ok"`},
		{name: "database down", db: fakePinger{err: errors.New("connection refused")}, wantStatus: http.StatusServiceUnavailable, wantBody: `"status":"degraded"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := newServer((&recorder{}).handle, tt.db, server.Options{})
			rec := do(t, s, http.MethodGet, "/health", "", nil)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}
}

func TestServer_Webhook(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       string
		header     map[string]string
		wantStatus int
		wantCalls  int
	}{
		{
			name:       "message is dispatched",
			body:       messageUpdate,
			header:     map[string]string{server.SecretTokenHeader: "s3cret"},
			wantStatus: http.StatusOK,
			wantCalls:  1,
		},
		{
			name:       "update without message is acknowledged",
			body:       `{"update_id":2,"edited_message":{"message_id":5,"date":0,"chat":{"id":9,"type":"private"}}}`,
			header:     map[string]string{server.SecretTokenHeader: "s3cret"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "undecodable body is acknowledged",
			body:       `{not json`,
			header:     map[string]string{server.SecretTokenHeader: "s3cret"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "wrong secret is rejected",
			body:       messageUpdate,
			header:     map[string]string{server.SecretTokenHeader: "guess"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "missing secret is rejected",
			body:       messageUpdate,
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := &recorder{}
			s := newServer(rec.handle, nil, server.Options{SecretToken: "s3cret", RequestTimeout: time.Minute})

			resp := do(t, s, http.MethodPost, "/webhook/", tt.body, tt.header)
			s.Wait()

			assert.Equal(t, tt.wantStatus, resp.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "Ok", resp.Body.String())
			}
			assert.Equal(t, tt.wantCalls, rec.count())
		})
	}
}

func TestServer_WebhookDoesNotWaitForHandler(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	var started atomic.Int32
	handle := func(ctx context.Context, _ *tgbot.Bot, _ *models.Update) {
		started.Add(1)
		<-release
	}

	s := newServer(handle, nil, server.Options{})
	rec := do(t, s, http.MethodPost, "/webhook/", messageUpdate, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	close(release)
	s.Wait()
	assert.Equal(t, int32(1), started.Load())
}

func TestServer_BoundsConcurrentUpdates(t *testing.T) {
	t.Parallel()

	var running, peak atomic.Int32
	release := make(chan struct{})
	handle := func(ctx context.Context, _ *tgbot.Bot, _ *models.Update) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		<-release
		running.Add(-1)
	}

	s := newServer(handle, nil, server.Options{MaxConcurrent: 2})
	for range 5 {
		assert.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/webhook/", messageUpdate, nil).Code)
	}

	require.Eventually(t, func() bool { return running.Load() == 2 }, time.Second, 5*time.Millisecond)
	close(release)
	s.Wait()

	assert.Equal(t, int32(2), peak.Load())
}

func TestServer_RunStopsOnCancel(t *testing.T) {
	t.Parallel()

	s := newServer((&recorder{}).handle, nil, server.Options{Addr: "127.0.0.1:0", ShutdownTimeout: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServer_RunCancelsUpdatesAfterShutdownTimeout(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	var handlerErr atomic.Value
	handle := func(ctx context.Context, _ *tgbot.Bot, _ *models.Update) {
		close(started)
		<-ctx.Done()
		handlerErr.Store(ctx.Err())
	}

	s := newServer(handle, nil, server.Options{Addr: "127.0.0.1:0", ShutdownTimeout: 50 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	assert.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/webhook/", messageUpdate, nil).Code)
	<-started
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}

	// Run returns only after the in-flight update saw the cancellation.
	err, _ := handlerErr.Load().(error)
	assert.ErrorIs(t, err, context.Canceled)
}
