package handlers

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/edgard/polybot/internal/bot"
)

// Middleware wraps a HandlerFunc.
type Middleware func(next HandlerFunc) HandlerFunc

// Recover turns a panicking handler into an internal error so the
// dispatcher can still report it.
func Recover(deps HandlerDeps) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, msg bot.InboundMessage) (err error) {
			defer func() {
				if r := recover(); r != nil {
					deps.Logger.ErrorContext(ctx, "Handler panicked",
						"chat_id", msg.ChatID, "message_id", msg.MessageID, "panic", r, "stack", string(debug.Stack()))
					err = fmt.Errorf("handler panic: %v", r)
				}
			}()
			return next(ctx, msg)
		}
	}
}

// applyMiddleware wraps handler with mw. The first middleware is the outermost.
func applyMiddleware(handler HandlerFunc, mw []Middleware) HandlerFunc {
	for i := len(mw) - 1; i >= 0; i-- {
		handler = mw[i](handler)
	}
	return handler
}
