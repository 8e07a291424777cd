package handlers_test

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/polybot/internal/bot"
	"github.com/edgard/polybot/internal/bot/handlers"
	"github.com/edgard/polybot/internal/config"
	"github.com/edgard/polybot/internal/imageops"
	"github.com/edgard/polybot/internal/mediagroup"
	"github.com/edgard/polybot/internal/prediction"
)

type sent struct {
	kind    string
	chatID  int64
	text    string
	replyTo int
	path    string
}

type fakeChat struct {
	mu          sync.Mutex
	sent        []sent
	downloadErr error
	downloads   int
}

func (f *fakeChat) record(s sent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, s)
	return nil
}

func (f *fakeChat) SendText(_ context.Context, chatID int64, text string) error {
	return f.record(sent{kind: "text", chatID: chatID, text: text})
}

func (f *fakeChat) SendMarkdown(_ context.Context, chatID int64, text string) error {
	return f.record(sent{kind: "markdown", chatID: chatID, text: text})
}

func (f *fakeChat) SendQuote(_ context.Context, chatID int64, text string, replyTo int) error {
	return f.record(sent{kind: "quote", chatID: chatID, text: text, replyTo: replyTo})
}

func (f *fakeChat) SendPhoto(_ context.Context, chatID int64, path, caption string) error {
	return f.record(sent{kind: "photo", chatID: chatID, text: caption, path: path})
}

// DownloadFile writes a small solid image named after the file id.
func (f *fakeChat) DownloadFile(_ context.Context, fileID, destDir string) (string, error) {
	f.mu.Lock()
	f.downloads++
	err := f.downloadErr
	f.mu.Unlock()
	if err != nil {
		return "", err
	}

	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	for x := 0; x < 4; x++ {
		for y := 0; y < 2; y++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	path := filepath.Join(destDir, fileID+".png")
	if err := imageops.Save(img, path); err != nil {
		return "", err
	}
	return path, nil
}

func (f *fakeChat) messages() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sent(nil), f.sent...)
}

type fakePredictor struct {
	summary *prediction.Summary
	err     error
	paths   []string
}

func (f *fakePredictor) Predict(_ context.Context, imagePath string) (*prediction.Summary, error) {
	f.paths = append(f.paths, imagePath)
	return f.summary, f.err
}

type fixture struct {
	chat      *fakeChat
	predictor *fakePredictor
	deps      handlers.HandlerDeps
	dispatch  *handlers.Dispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{
		Messages: config.DefaultMessages,
		Images:   config.ImagesConfig{Dir: t.TempDir()},
	}
	f := &fixture{chat: &fakeChat{}, predictor: &fakePredictor{}}
	f.deps = handlers.HandlerDeps{
		Logger:    logger,
		Config:    cfg,
		Chat:      f.chat,
		Groups:    mediagroup.NewBuffer(imageops.Concat, mediagroup.Config{}, logger),
		Predictor: f.predictor,
	}
	f.dispatch = handlers.NewDispatcher(f.deps, handlers.RegisterAllHandlers(f.deps))
	return f
}

func TestDispatch_Echo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want sent
	}{
		{
			name: "greeting gets welcome",
			text: "Hello bot",
			want: sent{kind: "markdown", chatID: 7, text: config.DefaultMessages.Welcome},
		},
		{
			name: "help anywhere in text",
			text: "can you HELP me",
			want: sent{kind: "markdown", chatID: 7, text: config.DefaultMessages.Welcome},
		},
		{
			name: "other text is echoed",
			text: "what a day",
			want: sent{kind: "text", chatID: 7, text: "Your original message: what a day"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			f.dispatch.Dispatch(context.Background(), bot.InboundMessage{MessageID: 1, ChatID: 7, Text: tt.text})
			assert.Equal(t, []sent{tt.want}, f.chat.messages())
		})
	}
}

func TestDispatch_IgnoresEmptyMessage(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.dispatch.Dispatch(context.Background(), bot.InboundMessage{MessageID: 1, ChatID: 7})
	assert.Empty(t, f.chat.messages())
}

func TestDispatch_Quote(t *testing.T) {
	t.Parallel()

	t.Run("quotes reply", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.dispatch.Dispatch(context.Background(), bot.InboundMessage{MessageID: 12, ChatID: 7, Text: "remember this", ReplyToID: 3})
		assert.Equal(t, []sent{{kind: "quote", chatID: 7, text: "remember this", replyTo: 12}}, f.chat.messages())
	})

	t.Run("does not quote on request", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.dispatch.Dispatch(context.Background(), bot.InboundMessage{MessageID: 12, ChatID: 7, Text: "Please don't quote me", ReplyToID: 3})
		assert.Empty(t, f.chat.messages())
	})
}

func TestDispatch_TransformRejectsCaption(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		caption string
		want    string
	}{
		{name: "missing caption", caption: "", want: config.DefaultMessages.MissingAction},
		{name: "unknown action", caption: "sharpen", want: config.DefaultMessages.UnknownAction},
		{name: "concat without group", caption: "concat horizontal", want: config.DefaultMessages.ConcatNeedsGroup},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			f.dispatch.Dispatch(context.Background(), bot.InboundMessage{MessageID: 1, ChatID: 7, ImageFileID: "f1", Caption: tt.caption})

			assert.Equal(t, []sent{{kind: "text", chatID: 7, text: tt.want}}, f.chat.messages())
			assert.Zero(t, f.chat.downloads, "nothing is downloaded for a rejected caption")
		})
	}
}

func TestDispatch_TransformSingleImage(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.dispatch.Dispatch(context.Background(), bot.InboundMessage{MessageID: 1, ChatID: 7, ImageFileID: "f1", Caption: "Rotate anti-clockwise 180"})

	msgs := f.chat.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "photo", msgs[0].kind)
	assert.Equal(t, filepath.Join(f.deps.Config.Images.Dir, "f1_filtered.png"), msgs[0].path)
	assert.FileExists(t, msgs[0].path)

	img, err := imageops.Open(msgs[0].path)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 2), img.Bounds())
}

func TestDispatch_TransformInvalidParameter(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.dispatch.Dispatch(context.Background(), bot.InboundMessage{MessageID: 1, ChatID: 7, ImageFileID: "f1", Caption: "rotate 45"})

	msgs := f.chat.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "text", msgs[0].kind)
	assert.True(t, strings.HasPrefix(msgs[0].text, "invalid parameter"), msgs[0].text)
}

func TestDispatch_TransformMediaGroup(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	f.dispatch.Dispatch(ctx, bot.InboundMessage{MessageID: 1, ChatID: 7, ImageFileID: "a", MediaGroupID: "g1", Caption: "concat vertical"})
	assert.Empty(t, f.chat.messages(), "first image of a group is buffered")

	f.dispatch.Dispatch(ctx, bot.InboundMessage{MessageID: 2, ChatID: 7, ImageFileID: "b", MediaGroupID: "g1"})

	msgs := f.chat.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "photo", msgs[0].kind)

	img, err := imageops.Open(msgs[0].path)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 4), img.Bounds())
}

func TestDispatch_Predict(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.predictor.summary = &prediction.Summary{
		ID:           "1",
		PredictionID: "p-1",
		LocalImage:   "/tmp/predicted_f1.png",
		Labels:       nil,
	}

	f.dispatch.Dispatch(context.Background(), bot.InboundMessage{MessageID: 1, ChatID: 7, ImageFileID: "f1", Caption: "predict"})

	assert.Equal(t, []string{filepath.Join(f.deps.Config.Images.Dir, "f1.png")}, f.predictor.paths)
	assert.Equal(t, []sent{{kind: "photo", chatID: 7, path: "/tmp/predicted_f1.png", text: "Detected Objects:\n"}}, f.chat.messages())
}

func TestDispatch_PredictFailureIsReported(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.predictor.err = errors.New("run inference: retries exhausted")

	f.dispatch.Dispatch(context.Background(), bot.InboundMessage{MessageID: 1, ChatID: 7, ImageFileID: "f1", Caption: "predict"})

	want := "An error has occurred:\nrun inference: retries exhausted\nPlease try again."
	assert.Equal(t, []sent{{kind: "text", chatID: 7, text: want}}, f.chat.messages())
}

func TestDispatch_DownloadFailureIsReported(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.chat.downloadErr = fmt.Errorf("get file: %w", errors.New("bad request"))

	f.dispatch.Dispatch(context.Background(), bot.InboundMessage{MessageID: 1, ChatID: 7, ImageFileID: "f1", Caption: "blur"})

	msgs := f.chat.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "An error has occurred:\nget file: bad request\nPlease try again.", msgs[0].text)
}

func TestPredictHandler_DelegatesToTransform(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	handle := handlers.NewPredictHandler(f.deps)

	err := handle(context.Background(), bot.InboundMessage{MessageID: 1, ChatID: 7, ImageFileID: "f1", Caption: "contour"})
	require.NoError(t, err)

	assert.Empty(t, f.predictor.paths)
	msgs := f.chat.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "photo", msgs[0].kind)
}

func TestDispatch_RecoversFromPanic(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	registered := map[bot.Variant]handlers.RegisteredHandler{
		bot.VariantEcho: {
			Handler: func(context.Context, bot.InboundMessage) error {
				panic("boom")
			},
			Middleware: []handlers.Middleware{handlers.Recover(f.deps)},
		},
	}
	dispatch := handlers.NewDispatcher(f.deps, registered)

	require.NotPanics(t, func() {
		dispatch.Dispatch(context.Background(), bot.InboundMessage{MessageID: 1, ChatID: 7, Text: "anything"})
	})

	msgs := f.chat.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "An error has occurred:\nhandler panic: boom\nPlease try again.", msgs[0].text)
}
