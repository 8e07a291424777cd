// Package bot defines the chat-facing model of polybot: inbound messages,
// the behavior variant each message selects, the outbound chat client and
// the maintenance scheduler.
package bot

import "context"

// InboundMessage is the part of a chat message the bot acts on.
type InboundMessage struct {
	MessageID int
	ChatID    int64
	Text      string
	Caption   string
	// ImageFileID is the platform file id of the largest attached photo.
	ImageFileID  string
	MediaGroupID string
	// ReplyToID is the id of the message this one replies to, or zero.
	ReplyToID int
}

// HasImage reports whether the message carries a photo.
func (m InboundMessage) HasImage() bool {
	return m.ImageFileID != ""
}

// IsReply reports whether the message replies to another message.
func (m InboundMessage) IsReply() bool {
	return m.ReplyToID != 0
}

// Empty reports whether the message has neither text nor a photo.
func (m InboundMessage) Empty() bool {
	return m.Text == "" && !m.HasImage()
}

// ChatClient sends replies and fetches attachments.
type ChatClient interface {
	// SendText sends plain text.
	SendText(ctx context.Context, chatID int64, text string) error
	// SendMarkdown sends text rendered as Markdown.
	SendMarkdown(ctx context.Context, chatID int64, text string) error
	// SendQuote sends text quoting the message replyTo.
	SendQuote(ctx context.Context, chatID int64, text string, replyTo int) error
	// SendPhoto uploads the local image at path with an optional caption.
	SendPhoto(ctx context.Context, chatID int64, path, caption string) error
	// DownloadFile saves the file with the given id under destDir and
	// returns its local path.
	DownloadFile(ctx context.Context, fileID, destDir string) (string, error)
}
