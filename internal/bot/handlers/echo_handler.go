package handlers

import (
	"context"
	"strings"

	"github.com/edgard/polybot/internal/bot"
)

var welcomeWords = []string{"start", "help", "hello"}

// NewEchoHandler returns a handler that answers greetings with the welcome
// text and echoes everything else.
func NewEchoHandler(deps HandlerDeps) HandlerFunc {
	return echoHandler{deps}.Handle
}

type echoHandler struct {
	deps HandlerDeps
}

func (h echoHandler) Handle(ctx context.Context, msg bot.InboundMessage) error {
	log := h.deps.Logger.With("handler", "echo")

	if msg.Text == "" {
		log.DebugContext(ctx, "Ignoring message without text", "chat_id", msg.ChatID, "message_id", msg.MessageID)
		return nil
	}

	lower := strings.ToLower(msg.Text)
	for _, word := range welcomeWords {
		if strings.Contains(lower, word) {
			log.InfoContext(ctx, "Sending welcome message", "chat_id", msg.ChatID)
			return h.deps.Chat.SendMarkdown(ctx, msg.ChatID, h.deps.Config.Messages.Welcome)
		}
	}

	return h.deps.Chat.SendText(ctx, msg.ChatID, h.deps.Config.Messages.EchoPrefix+msg.Text)
}
