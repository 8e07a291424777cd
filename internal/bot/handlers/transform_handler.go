package handlers

import (
	"context"
	"errors"
	"image"

	"github.com/edgard/polybot/internal/apperr"
	"github.com/edgard/polybot/internal/bot"
	"github.com/edgard/polybot/internal/imageops"
	"github.com/edgard/polybot/internal/instruction"
)

// NewTransformHandler returns a handler that applies the image operation
// named in a photo's caption and replies with the result. Photos of a media
// group are buffered and combined in pairs.
func NewTransformHandler(deps HandlerDeps) HandlerFunc {
	return transformHandler{deps}.Handle
}

type transformHandler struct {
	deps HandlerDeps
}

func (h transformHandler) Handle(ctx context.Context, msg bot.InboundMessage) error {
	log := h.deps.Logger.With("handler", "transform", "chat_id", msg.ChatID, "message_id", msg.MessageID)

	in, err := h.validate(msg)
	if err != nil {
		return err
	}

	localPath, err := h.deps.Chat.DownloadFile(ctx, msg.ImageFileID, h.deps.Config.Images.Dir)
	if err != nil {
		return err
	}

	img, err := imageops.Open(localPath)
	if err != nil {
		return apperr.LocalIO("could not read the image", err)
	}

	var result image.Image
	if msg.MediaGroupID != "" || in.Action == instruction.ActionConcat {
		direction, _ := in.Param(instruction.ParamDirection)
		side, _ := in.Param(instruction.ParamSide)

		outcome, err := h.deps.Groups.Add(msg.MediaGroupID, img, direction, side)
		if err != nil {
			return userInputOr(err)
		}
		if !outcome.Done {
			log.InfoContext(ctx, "Waiting for the rest of the media group", "media_group_id", msg.MediaGroupID, "buffered", outcome.Buffered)
			return nil
		}
		log.InfoContext(ctx, "Combined media group", "media_group_id", msg.MediaGroupID)
		result = outcome.Image
	} else {
		result, err = imageops.Apply(img, in)
		if err != nil {
			return userInputOr(err)
		}
		log.InfoContext(ctx, "Applied image operation", "action", in.Action)
	}

	resultPath := imageops.ResultPath(localPath)
	if err := imageops.Save(result, resultPath); err != nil {
		return apperr.LocalIO("could not write the processed image", err)
	}

	return h.deps.Chat.SendPhoto(ctx, msg.ChatID, resultPath, "")
}

// validate checks the caption before anything is downloaded. Images of a
// media group may come without a caption.
func (h transformHandler) validate(msg bot.InboundMessage) (instruction.Instruction, error) {
	messages := h.deps.Config.Messages
	in := instruction.Parse(msg.Caption)
	grouped := msg.MediaGroupID != ""

	switch {
	case errors.Is(in.Reason, instruction.ErrEmptyCaption):
		if !grouped {
			return in, apperr.UserInput(messages.MissingAction)
		}
	case !in.Valid():
		return in, apperr.UserInput(messages.UnknownAction)
	case in.Action == instruction.ActionConcat && !grouped:
		return in, apperr.UserInput(messages.ConcatNeedsGroup)
	}
	return in, nil
}

// userInputOr classifies parameter mistakes as user input errors.
func userInputOr(err error) error {
	if errors.Is(err, imageops.ErrInvalidParameter) {
		return apperr.New(apperr.KindUserInput, apperr.CodeUserInput, err.Error(), err)
	}
	return err
}
