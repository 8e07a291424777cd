package handlers

import (
	"context"

	"github.com/edgard/polybot/internal/bot"
	"github.com/edgard/polybot/internal/instruction"
)

// NewPredictHandler returns a handler that runs object detection on a photo
// captioned "predict" and replies with the annotated photo. Any other
// caption is handed to the transform handler.
func NewPredictHandler(deps HandlerDeps) HandlerFunc {
	return predictHandler{deps: deps, transform: NewTransformHandler(deps)}.Handle
}

type predictHandler struct {
	deps      HandlerDeps
	transform HandlerFunc
}

func (h predictHandler) Handle(ctx context.Context, msg bot.InboundMessage) error {
	log := h.deps.Logger.With("handler", "predict", "chat_id", msg.ChatID, "message_id", msg.MessageID)

	if !instruction.IsPredict(msg.Caption) {
		log.DebugContext(ctx, "Caption is not a prediction request, transforming instead")
		return h.transform(ctx, msg)
	}

	localPath, err := h.deps.Chat.DownloadFile(ctx, msg.ImageFileID, h.deps.Config.Images.Dir)
	if err != nil {
		return err
	}

	summary, err := h.deps.Predictor.Predict(ctx, localPath)
	if err != nil {
		return err
	}

	log.InfoContext(ctx, "Sending prediction", "prediction_id", summary.PredictionID, "id", summary.ID)
	return h.deps.Chat.SendPhoto(ctx, msg.ChatID, summary.LocalImage, summary.Caption())
}
