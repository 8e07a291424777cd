package handlers

import (
	"context"

	"github.com/edgard/polybot/internal/bot"
)

// NewQuoteHandler returns a handler that repeats a reply's text quoting the
// reply itself.
func NewQuoteHandler(deps HandlerDeps) HandlerFunc {
	return quoteHandler{deps}.Handle
}

type quoteHandler struct {
	deps HandlerDeps
}

func (h quoteHandler) Handle(ctx context.Context, msg bot.InboundMessage) error {
	log := h.deps.Logger.With("handler", "quote")

	text := msg.Text
	if text == "" {
		text = msg.Caption
	}
	if text == "" {
		log.DebugContext(ctx, "Ignoring reply without text", "chat_id", msg.ChatID, "message_id", msg.MessageID)
		return nil
	}
	if text == h.deps.Config.Messages.NoQuote {
		log.DebugContext(ctx, "Not quoting message on request", "chat_id", msg.ChatID, "message_id", msg.MessageID)
		return nil
	}

	return h.deps.Chat.SendQuote(ctx, msg.ChatID, text, msg.MessageID)
}
