package notify

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// telegramSender часть *bot.Bot, нужная каналу
type telegramSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// TelegramChannel отправляет уведомления в чат пользователя
type TelegramChannel struct {
	sender telegramSender
}

func NewTelegramChannel(b *bot.Bot) *TelegramChannel {
	return &TelegramChannel{sender: b}
}

func (c *TelegramChannel) Name() string {
	return "telegram"
}

func (c *TelegramChannel) Send(ctx context.Context, recipient Recipient, msg Message) error {
	if recipient.TelegramChatID == nil {
		return ErrNoAddress
	}

	_, err := c.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: *recipient.TelegramChatID,
		Text:   msg.Subject + "\n\n" + msg.Text,
	})
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}

	return nil
}
