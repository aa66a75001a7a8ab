package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"smartmailer/internal/config"
)

// TelegramNotifier implements AlertNotifier against the Telegram Bot
// API. The Bot API is plain HTTP; no client library is used.
type TelegramNotifier struct {
	baseURL string
	chatID  string
	client  *http.Client
}

// NewTelegramNotifier creates a notifier for the configured bot and chat.
func NewTelegramNotifier(cfg *config.TelegramConfig) *TelegramNotifier {
	return &TelegramNotifier{
		baseURL: "https://api.telegram.org/bot" + cfg.BotToken,
		chatID:  cfg.ChatID,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

// SendAlert posts an HTML-formatted message to the configured chat.
func (n *TelegramNotifier) SendAlert(ctx context.Context, text string) error {
	payload := sendMessageRequest{
		ChatID:                n.chatID,
		Text:                  text,
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Permanent("telegram.send", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+"/sendMessage", bytes.NewReader(body))
	if err != nil {
		return Permanent("telegram.send", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return Transient("telegram.send", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return nil
	}

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	err = fmt.Errorf("telegram API error: %d - %s", resp.StatusCode, string(msg))

	// 429 and server errors may clear up; everything else is a broken
	// request or configuration.
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return Transient("telegram.send", err)
	}
	return Permanent("telegram.send", err)
}

// TestConnection calls getMe to verify the bot token.
func (n *TelegramNotifier) TestConnection(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/getMe", nil)
	if err != nil {
		return err
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram connection test failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("telegram bot connection failed: %d - %s", resp.StatusCode, string(msg))
	}

	logrus.Info("Telegram bot connection successful")
	return nil
}
