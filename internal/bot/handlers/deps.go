// Package handlers contains the behavior handlers for inbound chat messages,
// their registration and the dispatcher that reports their failures.
package handlers

import (
	"context"
	"image"
	"log/slog"

	"github.com/edgard/polybot/internal/bot"
	"github.com/edgard/polybot/internal/config"
	"github.com/edgard/polybot/internal/mediagroup"
	"github.com/edgard/polybot/internal/prediction"
)

// HandlerFunc handles one inbound message. Returned errors are reported to
// the chat by the Dispatcher.
type HandlerFunc func(ctx context.Context, msg bot.InboundMessage) error

// MediaGroups buffers the images of media groups until they can be combined.
type MediaGroups interface {
	Add(groupID string, img image.Image, direction, side string) (mediagroup.Outcome, error)
}

// Predictor runs object detection on a local image.
type Predictor interface {
	Predict(ctx context.Context, imagePath string) (*prediction.Summary, error)
}

// HandlerDeps provides dependencies for message handlers.
type HandlerDeps struct {
	Logger    *slog.Logger
	Config    *config.Config
	Chat      bot.ChatClient
	Groups    MediaGroups
	Predictor Predictor
}
