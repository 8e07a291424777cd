package handlers

import (
	"context"
	"log/slog"

	"github.com/edgard/polybot/internal/apperr"
	"github.com/edgard/polybot/internal/bot"
	"github.com/edgard/polybot/internal/config"
)

// Dispatcher routes each message to the handler of its variant and turns a
// handler failure into one chat message and one log record.
type Dispatcher struct {
	handlers map[bot.Variant]HandlerFunc
	chat     bot.ChatClient
	messages config.MessagesConfig
	logger   *slog.Logger
}

// NewDispatcher builds a Dispatcher over the given handlers.
func NewDispatcher(deps HandlerDeps, registered map[bot.Variant]RegisteredHandler) *Dispatcher {
	handlers := make(map[bot.Variant]HandlerFunc, len(registered))
	for variant, reg := range registered {
		if reg.Handler == nil {
			continue
		}
		handlers[variant] = applyMiddleware(reg.Handler, reg.Middleware)
	}

	return &Dispatcher{
		handlers: handlers,
		chat:     deps.Chat,
		messages: deps.Config.Messages,
		logger:   deps.Logger.With("component", "dispatcher"),
	}
}

// Dispatch handles msg. Messages with neither text nor photo are ignored.
func (d *Dispatcher) Dispatch(ctx context.Context, msg bot.InboundMessage) {
	if msg.Empty() && !msg.IsReply() {
		d.logger.DebugContext(ctx, "Ignoring message without text or photo", "chat_id", msg.ChatID, "message_id", msg.MessageID)
		return
	}

	variant := bot.Select(msg)
	handler, ok := d.handlers[variant]
	if !ok {
		d.logger.WarnContext(ctx, "No handler registered for variant", "variant", variant.String())
		return
	}

	if err := handler(ctx, msg); err != nil {
		d.report(ctx, msg, variant, err)
	}
}

func (d *Dispatcher) report(ctx context.Context, msg bot.InboundMessage, variant bot.Variant, err error) {
	log := d.logger.With("chat_id", msg.ChatID, "message_id", msg.MessageID, "variant", variant.String())

	var text string
	if apperr.IsUserInput(err) {
		log.InfoContext(ctx, "Rejected message", "reason", apperr.UserMessage(err))
		text = apperr.UserMessage(err)
	} else {
		log.ErrorContext(ctx, "Failed to handle message",
			"error", err, "kind", apperr.KindOf(err).String(), "code", apperr.CodeOf(err))
		text = d.messages.ErrorPrefix + err.Error() + d.messages.TryAgain
	}

	if sendErr := d.chat.SendText(context.WithoutCancel(ctx), msg.ChatID, text); sendErr != nil {
		log.ErrorContext(ctx, "Failed to send error message", "error", sendErr)
	}
}
