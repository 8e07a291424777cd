package telegram

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	polybot "github.com/edgard/polybot/internal/bot"
)

// InboundFromMessage converts a platform message. The photo sizes of a
// message are ordered smallest first; the largest one is kept.
func InboundFromMessage(m *models.Message) polybot.InboundMessage {
	if m == nil {
		return polybot.InboundMessage{}
	}

	in := polybot.InboundMessage{
		MessageID:    m.ID,
		ChatID:       m.Chat.ID,
		Text:         m.Text,
		Caption:      m.Caption,
		MediaGroupID: m.MediaGroupID,
	}
	if n := len(m.Photo); n > 0 {
		in.ImageFileID = m.Photo[n-1].FileID
	}
	if m.ReplyToMessage != nil {
		in.ReplyToID = m.ReplyToMessage.ID
	}
	return in
}

// UpdateHandler adapts fn to a bot.HandlerFunc. Updates without a message
// are ignored.
func UpdateHandler(fn func(ctx context.Context, msg polybot.InboundMessage)) bot.HandlerFunc {
	return func(ctx context.Context, _ *bot.Bot, update *models.Update) {
		if update == nil || update.Message == nil {
			return
		}
		fn(ctx, InboundFromMessage(update.Message))
	}
}
