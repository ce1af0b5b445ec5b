package transport

import "context"

type ChatTarget struct {
	ChatID int64
	// Username ("@channel") addresses a public chat when ChatID is 0.
	Username string
	ThreadID int // telegram forum topic thread id (0 if none)
}

// Empty reports whether the target names no chat.
func (t ChatTarget) Empty() bool { return t.ChatID == 0 && t.Username == "" }

type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// Sender delivers a single text message to a chat.
// Implementations must be safe for concurrent use: the poll loop and the
// log sink share one sender.
type Sender interface {
	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
}

// SenderFunc adapts a plain function to Sender.
type SenderFunc func(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)

func (f SenderFunc) SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error) {
	return f(ctx, to, text, opt)
}
