package handlers

import "github.com/edgard/polybot/internal/bot"

// RegisteredHandler is a handler together with its middleware.
type RegisteredHandler struct {
	Handler    HandlerFunc
	Middleware []Middleware
}

// RegisterAllHandlers returns the handler for every variant.
func RegisterAllHandlers(deps HandlerDeps) map[bot.Variant]RegisteredHandler {
	common := []Middleware{Recover(deps)}

	return map[bot.Variant]RegisteredHandler{
		bot.VariantEcho:      {Handler: NewEchoHandler(deps), Middleware: common},
		bot.VariantQuote:     {Handler: NewQuoteHandler(deps), Middleware: common},
		bot.VariantTransform: {Handler: NewTransformHandler(deps), Middleware: common},
		bot.VariantPredict:   {Handler: NewPredictHandler(deps), Middleware: common},
	}
}
