package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Telegram delivers artifacts as videos to a Telegram chat.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegram authenticates the bot token against the Telegram API.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("initialise telegram bot: %w", err)
	}

	return &Telegram{
		bot:    bot,
		chatID: chatID,
	}, nil
}

// Send uploads the artifact as a video message.
func (t *Telegram) Send(_ context.Context, artifactPath, caption string) error {
	video := tgbotapi.NewVideo(t.chatID, tgbotapi.FilePath(artifactPath))
	video.Caption = caption

	if _, err := t.bot.Send(video); err != nil {
		return fmt.Errorf("send video: %w", err)
	}

	return nil
}

// Close is a no-op; the bot client holds no long-lived connection.
func (t *Telegram) Close() error {
	return nil
}
