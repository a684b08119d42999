// Package telegram wraps the Telegram Bot API used to reach the site owner.
package telegram

import (
	"fmt"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"
	"github.com/sirupsen/logrus"
)

// Sender is the narrow surface the rest of the service needs from the bot.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// BotClient wraps a tgbotapi.BotAPI instance.
type BotClient struct {
	api    *tgbotapi.BotAPI
	logger *logrus.Logger
	Debug  bool
}

// NewBotClient authorizes against the Telegram Bot API.
func NewBotClient(token string, debug bool, logger *logrus.Logger) (*BotClient, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram API token not provided")
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Telegram Bot API: %w", err)
	}
	api.Debug = debug
	logger.WithField("account", api.Self.UserName).Info("Authorized with Telegram")
	return &BotClient{api: api, logger: logger, Debug: debug}, nil
}

// GetAPI returns the underlying *tgbotapi.BotAPI instance.
func (bc *BotClient) GetAPI() *tgbotapi.BotAPI {
	return bc.api
}

// Send sends a message through the bot.
func (bc *BotClient) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if bc == nil || bc.api == nil {
		return tgbotapi.Message{}, fmt.Errorf("BotClient not initialized")
	}
	if bc.Debug {
		if msg, ok := c.(tgbotapi.MessageConfig); ok {
			bc.logger.WithFields(logrus.Fields{"chat_id": msg.ChatID}).Debugf("Sending message: %.50s", msg.Text)
		}
	}
	return bc.api.Send(c)
}

// Request performs a request that does not return a Message.
func (bc *BotClient) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	if bc == nil || bc.api == nil {
		return nil, fmt.Errorf("BotClient not initialized")
	}
	return bc.api.Request(c)
}

// GetUpdatesChan opens the long-poll update channel.
func (bc *BotClient) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return bc.api.GetUpdatesChan(config)
}

// RegisterWebhook points Telegram at our webhook endpoint so operator
// actions arrive as HTTP callbacks instead of long-poll updates.
func (bc *BotClient) RegisterWebhook(publicBaseURL string) error {
	webhookURL := publicBaseURL + "/api/telegram-webhook"
	wh, err := tgbotapi.NewWebhook(webhookURL)
	if err != nil {
		return fmt.Errorf("failed to build webhook config: %w", err)
	}
	wh.AllowedUpdates = []string{"message", "callback_query"}
	wh.DropPendingUpdates = true
	if _, err := bc.api.Request(wh); err != nil {
		return fmt.Errorf("failed to set webhook: %w", err)
	}
	bc.logger.WithField("url", webhookURL).Info("Telegram webhook registered")
	return nil
}

// DeleteWebhook removes any active webhook. Required before long-polling.
func (bc *BotClient) DeleteWebhook() {
	_, err := bc.api.Request(tgbotapi.DeleteWebhookConfig{DropPendingUpdates: true})
	if err != nil {
		// Expected when no webhook was set; not fatal.
		bc.logger.WithError(err).Warn("Could not delete webhook")
	}
}

// WebhookInfo reports the webhook currently registered with Telegram.
func (bc *BotClient) WebhookInfo() (tgbotapi.WebhookInfo, error) {
	return bc.api.GetWebhookInfo()
}
