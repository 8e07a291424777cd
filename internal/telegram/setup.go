// Package telegram adapts the go-telegram/bot client to the chat model of
// polybot: it creates the client, registers the webhook, converts updates
// into inbound messages and sends replies.
package telegram

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-telegram/bot"
)

// NewTelegramBot creates a new Telegram bot instance using the go-telegram/bot library.
func NewTelegramBot(token string, logger *slog.Logger, opts ...bot.Option) (*bot.Bot, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "telegram_bot")

	b, err := bot.New(token, opts...)
	if err != nil {
		log.Error("Failed to create Telegram bot instance", "error", err)
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	log.Info("Telegram bot instance created successfully", "token_prefix", tokenPrefix(token))
	return b, nil
}

// WebhookOptions configures webhook registration.
type WebhookOptions struct {
	URL                string
	SecretToken        string
	DropPendingUpdates bool
}

// RegisterWebhook replaces any existing webhook with one pointing at opts.URL.
func RegisterWebhook(ctx context.Context, b *bot.Bot, opts WebhookOptions, logger *slog.Logger) error {
	if b == nil {
		return fmt.Errorf("bot instance cannot be nil")
	}
	if opts.URL == "" {
		return fmt.Errorf("webhook url cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "webhook_registry")

	if _, err := b.DeleteWebhook(ctx, &bot.DeleteWebhookParams{DropPendingUpdates: opts.DropPendingUpdates}); err != nil {
		log.ErrorContext(ctx, "Failed to delete existing webhook", "error", err)
		return fmt.Errorf("failed to delete webhook: %w", err)
	}

	_, err := b.SetWebhook(ctx, &bot.SetWebhookParams{
		URL:                opts.URL,
		SecretToken:        opts.SecretToken,
		DropPendingUpdates: opts.DropPendingUpdates,
		AllowedUpdates:     []string{"message"},
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to set webhook", "url", opts.URL, "error", err)
		return fmt.Errorf("failed to set webhook: %w", err)
	}

	log.InfoContext(ctx, "Webhook registered", "url", opts.URL, "secret_token", opts.SecretToken != "")
	return nil
}

func tokenPrefix(token string) string {
	if len(token) <= 8 {
		return "..."
	}
	return token[:8] + "..."
}
