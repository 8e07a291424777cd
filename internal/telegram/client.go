package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/polybot/internal/apperr"
)

const (
	fileDownloadTimeout = 30 * time.Second
	maxFileSize         = 20 * 1024 * 1024
)

// Client sends replies and downloads attachments through the Bot API.
type Client struct {
	bot        *bot.Bot
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient wraps b. httpClient is used for file downloads and defaults to
// http.DefaultClient.
func NewClient(b *bot.Bot, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		bot:        b,
		httpClient: httpClient,
		logger:     logger.With("component", "telegram_client"),
	}
}

// SendText sends plain text.
func (c *Client) SendText(ctx context.Context, chatID int64, text string) error {
	return c.sendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text})
}

// SendMarkdown sends text using the legacy Markdown parse mode.
func (c *Client) SendMarkdown(ctx context.Context, chatID int64, text string) error {
	return c.sendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeMarkdownV1,
	})
}

// SendQuote sends text as a reply to message replyTo.
func (c *Client) SendQuote(ctx context.Context, chatID int64, text string, replyTo int) error {
	return c.sendMessage(ctx, &bot.SendMessageParams{
		ChatID:          chatID,
		Text:            text,
		ReplyParameters: &models.ReplyParameters{MessageID: replyTo},
	})
}

func (c *Client) sendMessage(ctx context.Context, params *bot.SendMessageParams) error {
	sent, err := c.bot.SendMessage(ctx, params)
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to send message", "chat_id", params.ChatID, "error", err)
		return apperr.Transient(apperr.CodeChat, "send message", err)
	}
	c.logger.DebugContext(ctx, "Sent message", "chat_id", params.ChatID, "message_id", sent.ID)
	return nil
}

// SendPhoto uploads the image at localPath.
func (c *Client) SendPhoto(ctx context.Context, chatID int64, localPath, caption string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return apperr.LocalIO("image to send is missing", err)
	}
	defer f.Close()

	sent, err := c.bot.SendPhoto(ctx, &bot.SendPhotoParams{
		ChatID:  chatID,
		Photo:   &models.InputFileUpload{Filename: filepath.Base(localPath), Data: f},
		Caption: caption,
	})
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to send photo", "chat_id", chatID, "path", localPath, "error", err)
		return apperr.Transient(apperr.CodeChat, "send photo", err)
	}
	c.logger.DebugContext(ctx, "Sent photo", "chat_id", chatID, "message_id", sent.ID)
	return nil
}

// DownloadFile fetches the file with fileID into destDir, keeping the name
// the platform stores it under, and returns the local path.
func (c *Client) DownloadFile(ctx context.Context, fileID, destDir string) (string, error) {
	if fileID == "" {
		return "", fmt.Errorf("empty fileID provided")
	}
	if ctx.Err() != nil {
		return "", fmt.Errorf("context cancelled before file download: %w", ctx.Err())
	}

	downloadCtx, cancel := context.WithTimeout(ctx, fileDownloadTimeout)
	defer cancel()

	fileObj, err := c.bot.GetFile(downloadCtx, &bot.GetFileParams{FileID: fileID})
	if err != nil {
		return "", apperr.Transient(apperr.CodeChat, "get file", err)
	}
	if fileObj.FilePath == "" {
		return "", apperr.New(apperr.KindInternal, apperr.CodeChat, "empty file path returned from Telegram", nil)
	}

	req, err := http.NewRequestWithContext(downloadCtx, http.MethodGet, c.bot.FileDownloadLink(fileObj), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", apperr.Transient(apperr.CodeChat, "download file", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", apperr.Transient(apperr.CodeChat, "download file", fmt.Errorf("unexpected status code %d", resp.StatusCode))
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", apperr.LocalIO("create image directory", err)
	}
	localPath := filepath.Join(destDir, path.Base(fileObj.FilePath))
	if err := writeFile(localPath, io.LimitReader(resp.Body, maxFileSize)); err != nil {
		return "", err
	}

	c.logger.DebugContext(ctx, "Downloaded file", "file_id", fileID, "path", localPath)
	return localPath, nil
}

func writeFile(localPath string, r io.Reader) error {
	out, err := os.Create(localPath)
	if err != nil {
		return apperr.LocalIO("create local file", err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return apperr.LocalIO("write local file", err)
	}
	if err := out.Close(); err != nil {
		return apperr.LocalIO("close local file", err)
	}
	return nil
}
