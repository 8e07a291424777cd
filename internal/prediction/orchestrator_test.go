package prediction_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/polybot/internal/apperr"
	"github.com/edgard/polybot/internal/database"
	"github.com/edgard/polybot/internal/inference"
	"github.com/edgard/polybot/internal/prediction"
	"github.com/edgard/polybot/internal/resilience"
)

type fakeObjects struct {
	mu        sync.Mutex
	uploadErr error
	uploads   []string
	downloads []string
}

func (f *fakeObjects) Upload(_ context.Context, key, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, key)
	return f.uploadErr
}

func (f *fakeObjects) Download(_ context.Context, key, localPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloads = append(f.downloads, key+"->"+localPath)
	return nil
}

type fakeInferer struct {
	errs   []error
	result *inference.Result
	calls  int
}

func (f *fakeInferer) Predict(_ context.Context, _ string) (*inference.Result, error) {
	f.calls++
	if f.calls <= len(f.errs) {
		return nil, f.errs[f.calls-1]
	}
	return f.result, nil
}

type fakeResults struct {
	errs  []error
	calls int
	saved []*database.Prediction
}

func (f *fakeResults) SavePrediction(_ context.Context, p *database.Prediction) (string, error) {
	f.calls++
	if f.calls <= len(f.errs) {
		return "", f.errs[f.calls-1]
	}
	f.saved = append(f.saved, p)
	return "42", nil
}

// sleeps records the waits between attempts and fires immediately.
type sleeps struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleeps) After(d time.Duration) <-chan time.Time {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()

	ch := make(chan time.Time, 1)
	ch <- time.Time{}
	return ch
}

var fixedNow = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

func okResult() *inference.Result {
	return &inference.Result{
		PredictionID:     "service-id",
		OriginalImgPath:  "photos/file_7.jpg",
		PredictedImgPath: "photos/predicted/file_7.jpg",
		Labels: []inference.Label{
			{Class: "dog"}, {Class: "cat"}, {Class: "dog"},
		},
	}
}

func newOrchestrator(objects *fakeObjects, infer *fakeInferer, results *fakeResults, s *sleeps) *prediction.Orchestrator {
	return prediction.NewOrchestrator(objects, infer, results, prediction.Options{
		Prefix:          "photos",
		InferAttempts:   3,
		InferDelay:      3 * time.Second,
		PersistAttempts: 3,
		PersistDelay:    3 * time.Second,
		Timer:           s,
		Now:             func() time.Time { return fixedNow },
		NewID:           func() string { return "6f1c1e39-1c4b-4b43-9a51-6f9f7a0d8f10" },
	}, nil)
}

func TestOrchestrator_InferenceSucceedsOnThirdAttempt(t *testing.T) {
	t.Parallel()

	objects := &fakeObjects{}
	infer := &fakeInferer{
		errs:   []error{errors.New("connection refused"), errors.New("status 500")},
		result: okResult(),
	}
	results := &fakeResults{}
	s := &sleeps{}

	imagePath := filepath.Join("photos", "file_7.jpg")
	summary, err := newOrchestrator(objects, infer, results, s).Predict(context.Background(), imagePath)
	require.NoError(t, err)

	assert.Equal(t, 3, infer.calls)
	assert.Equal(t, []time.Duration{3 * time.Second, 3 * time.Second}, s.delays)
	assert.Equal(t, []string{"photos/file_7.jpg"}, objects.uploads)
	assert.Equal(t, []string{"photos/predicted/file_7.jpg->" + filepath.Join("photos", "predicted_file_7.jpg")}, objects.downloads)

	assert.Equal(t, "42", summary.ID)
	assert.Equal(t, "6f1c1e39-1c4b-4b43-9a51-6f9f7a0d8f10", summary.PredictionID)
	assert.Equal(t, "photos/file_7.jpg", summary.OriginalImage)
	assert.Equal(t, "photos/predicted/file_7.jpg", summary.PredictedImage)
	assert.Equal(t, fixedNow, summary.Timestamp)
	assert.Equal(t, "Detected Objects:\nDog: 2\nCat: 1\n", summary.Caption())

	require.Len(t, results.saved, 1)
	assert.Equal(t, summary.PredictionID, results.saved[0].PredictionID)
	assert.Equal(t, database.LabelList(summary.Labels), results.saved[0].Labels)
}

func TestOrchestrator_InferenceExhausted(t *testing.T) {
	t.Parallel()

	last := errors.New("third failure")
	infer := &fakeInferer{errs: []error{
		apperr.Transient(apperr.CodeInference, "inference service", inference.ErrNotFound),
		errors.New("second failure"),
		last,
	}}
	results := &fakeResults{}
	s := &sleeps{}

	summary, err := newOrchestrator(&fakeObjects{}, infer, results, s).Predict(context.Background(), "file_7.jpg")
	require.Error(t, err)
	assert.Nil(t, summary)

	assert.Equal(t, 3, infer.calls)
	assert.Len(t, s.delays, 2)
	assert.ErrorIs(t, err, resilience.ErrExhaustedRetries)
	assert.ErrorIs(t, err, last)
	assert.Zero(t, results.calls)
}

func TestOrchestrator_LogsEachRetry(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	infer := &fakeInferer{
		errs:   []error{errors.New("connection refused"), errors.New("status 500")},
		result: okResult(),
	}
	o := prediction.NewOrchestrator(&fakeObjects{}, infer, &fakeResults{}, prediction.Options{
		Prefix:        "photos",
		InferAttempts: 3,
		InferDelay:    3 * time.Second,
		Timer:         &sleeps{},
	}, slog.New(slog.NewJSONHandler(&buf, nil)))

	_, err := o.Predict(context.Background(), "file_7.jpg")
	require.NoError(t, err)

	out := buf.String()
	assert.Equal(t, 2, strings.Count(out, "Retrying inference"))
	assert.Contains(t, out, `"next_attempt":2`)
	assert.Contains(t, out, `"next_attempt":3`)
}

func TestOrchestrator_NotFoundIsRetried(t *testing.T) {
	t.Parallel()

	notFound := apperr.Transient(apperr.CodeInference, "inference service", inference.ErrNotFound)
	infer := &fakeInferer{errs: []error{notFound}, result: okResult()}
	s := &sleeps{}

	_, err := newOrchestrator(&fakeObjects{}, infer, &fakeResults{}, s).Predict(context.Background(), "file_7.jpg")
	require.NoError(t, err)
	assert.Equal(t, 2, infer.calls)
	assert.Len(t, s.delays, 1)
}

func TestOrchestrator_UploadFailureIsTerminal(t *testing.T) {
	t.Parallel()

	uploadErr := apperr.Transient(apperr.CodeStorage, "upload", errors.New("access denied"))
	infer := &fakeInferer{result: okResult()}
	s := &sleeps{}

	_, err := newOrchestrator(&fakeObjects{uploadErr: uploadErr}, infer, &fakeResults{}, s).Predict(context.Background(), "file_7.jpg")
	require.ErrorIs(t, err, uploadErr)
	assert.Zero(t, infer.calls)
	assert.Empty(t, s.delays)
}

func TestOrchestrator_PersistRetries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		errs      []error
		wantCalls int
		wantDelay int
		wantErr   bool
	}{
		{
			name:      "transient then success",
			errs:      []error{context.DeadlineExceeded, context.DeadlineExceeded},
			wantCalls: 3,
			wantDelay: 2,
		},
		{
			name:      "transient exhausted",
			errs:      []error{context.DeadlineExceeded, context.DeadlineExceeded, context.DeadlineExceeded},
			wantCalls: 3,
			wantDelay: 2,
			wantErr:   true,
		},
		{
			name:      "validation aborts",
			errs:      []error{apperr.Validation("invalid prediction", nil)},
			wantCalls: 1,
			wantDelay: 0,
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			results := &fakeResults{errs: tt.errs}
			s := &sleeps{}

			summary, err := newOrchestrator(&fakeObjects{}, &fakeInferer{result: okResult()}, results, s).
				Predict(context.Background(), "file_7.jpg")

			assert.Equal(t, tt.wantCalls, results.calls)
			assert.Len(t, s.delays, tt.wantDelay)
			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, summary)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "42", summary.ID)
		})
	}
}

func TestOrchestrator_MissingPredictedPath(t *testing.T) {
	t.Parallel()

	res := okResult()
	res.PredictedImgPath = ""
	objects := &fakeObjects{}

	_, err := newOrchestrator(objects, &fakeInferer{result: res}, &fakeResults{}, &sleeps{}).
		Predict(context.Background(), "file_7.jpg")
	require.Error(t, err)
	assert.Empty(t, objects.downloads)
}

func TestFormatLabels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		labels []inference.Label
		want   string
	}{
		{name: "no objects", labels: nil, want: "Detected Objects:\n"},
		{
			name:   "counts in first-seen order",
			labels: []inference.Label{{Class: "dog"}, {Class: "cat"}, {Class: "dog"}},
			want:   "Detected Objects:\nDog: 2\nCat: 1\n",
		},
		{
			name:   "labels without class are skipped",
			labels: []inference.Label{{Class: ""}, {Class: "dog", CX: 0.5}, {Class: "  "}},
			want:   "Detected Objects:\nDog: 1\n",
		},
		{
			name:   "multi-word class",
			labels: []inference.Label{{Class: "traffic light"}, {Class: "PERSON"}},
			want:   "Detected Objects:\nTraffic light: 1\nPerson: 1\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, prediction.FormatLabels(tt.labels))
		})
	}
}
