// Package publish posts the finished message and cover image.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// captionLimit is Telegram's maximum photo caption length in characters.
const captionLimit = 1024

// ErrCaptionTooLong is returned for captions Telegram would reject.
var ErrCaptionTooLong = errors.New("caption exceeds Telegram limit")

// Sender is the part of tgbotapi.BotAPI used for posting.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts photos with a caption to a single chat or channel.
type Telegram struct {
	sender Sender
	chatID int64
}

// NewTelegram connects to the Bot API with token.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	if token == "" {
		return nil, errors.New("telegram bot token is required")
	}
	if chatID == 0 {
		return nil, errors.New("telegram chat id is required")
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("creating bot API: %w", err)
	}
	slog.Debug("Authorized on Telegram", "account", api.Self.UserName)
	return NewTelegramWithSender(api, chatID), nil
}

// NewTelegramWithSender wraps an existing sender.
func NewTelegramWithSender(sender Sender, chatID int64) *Telegram {
	return &Telegram{sender: sender, chatID: chatID}
}

// Publish sends the image at imagePath with message as the caption.
func (t *Telegram) Publish(ctx context.Context, message, imagePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len([]rune(message)) > captionLimit {
		return ErrCaptionTooLong
	}

	data, err := os.ReadFile(imagePath)
	if err != nil {
		return fmt.Errorf("reading image: %w", err)
	}

	photo := tgbotapi.NewPhoto(t.chatID, tgbotapi.FileBytes{
		Name:  filepath.Base(imagePath),
		Bytes: data,
	})
	photo.Caption = message

	sent, err := t.sender.Send(photo)
	if err != nil {
		return fmt.Errorf("sending photo to chat %d: %w", t.chatID, err)
	}

	slog.Info("Published", "chat", t.chatID, "message_id", sent.MessageID)
	return nil
}

// DryRun logs what would have been posted.
type DryRun struct {
	Published []string
}

// Publish records and logs the message without sending it anywhere.
func (d *DryRun) Publish(_ context.Context, message, imagePath string) error {
	d.Published = append(d.Published, message)
	slog.Info("Dry run, not publishing", "message", message, "image", imagePath)
	return nil
}
