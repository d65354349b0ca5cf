package bot

import (
	"errors"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Update 一条待处理的入站消息
type Update struct {
	UpdateID int
	ChatID   int64
	Text     string
}

// Client Telegram Bot API 客户端接口(便于测试替换)
type Client interface {
	// ClearWebhook 删除已注册的 webhook,长轮询前必须调用
	ClearWebhook() error
	// GetUpdates 长轮询拉取增量消息
	GetUpdates(offset, timeout int) ([]Update, error)
	// Send 向会话发送文本回复
	Send(chatID int64, text string) error
}

// telegramClient 基于官方 Bot API 的客户端实现
type telegramClient struct {
	api *tgbotapi.BotAPI
}

// NewTelegramClient 创建客户端并完成 getMe 握手校验凭证
func NewTelegramClient(token string) (Client, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &telegramClient{api: api}, nil
}

func (c *telegramClient) ClearWebhook() error {
	_, err := c.api.Request(tgbotapi.DeleteWebhookConfig{})
	return err
}

func (c *telegramClient) GetUpdates(offset, timeout int) ([]Update, error) {
	cfg := tgbotapi.NewUpdate(offset)
	cfg.Timeout = timeout

	raw, err := c.api.GetUpdates(cfg)
	if err != nil {
		return nil, err
	}

	updates := make([]Update, 0, len(raw))
	for _, u := range raw {
		item := Update{UpdateID: u.UpdateID}
		if u.Message != nil {
			item.ChatID = u.Message.Chat.ID
			item.Text = u.Message.Text
		}
		updates = append(updates, item)
	}
	return updates, nil
}

func (c *telegramClient) Send(chatID int64, text string) error {
	_, err := c.api.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

// IsConflict 判断是否为 409 冲突(同一凭证存在另一个轮询方)
func IsConflict(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 409
	}
	return strings.Contains(err.Error(), "Conflict")
}
