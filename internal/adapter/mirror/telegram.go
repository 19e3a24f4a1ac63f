package mirror

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/semmidev/netvault/internal/config"
)

type TelegramMirror struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegram creates a mirror that sends each snapshot as a document to a
// telegram chat. Device configurations are far below the bot API's file
// size limit, so no size gating is needed here.
func NewTelegram(cfg *config.MirrorConfig) (*TelegramMirror, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	var chatID int64
	fmt.Sscanf(cfg.ChatID, "%d", &chatID)

	return &TelegramMirror{bot: bot, chatID: chatID}, nil
}

func (m *TelegramMirror) Name() string { return "telegram" }

func (m *TelegramMirror) Upload(ctx context.Context, localPath, remoteName string) error {
	doc := tgbotapi.NewDocument(m.chatID, tgbotapi.FilePath(localPath))
	doc.Caption = fmt.Sprintf("📦 Snapshot: %s", remoteName)

	if _, err := m.bot.Send(doc); err != nil {
		return fmt.Errorf("failed to send telegram file: %w", err)
	}

	return nil
}
