// Package notify delivers deal alerts to subscribers through the Telegram
// Bot API.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Notifier sends one message to one subscriber.
type Notifier interface {
	Send(ctx context.Context, chatID int64, text string) error
}

type Telegram struct {
	token   string
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewTelegram builds a notifier for one bot token. Each marketplace runs its
// own bot, so the orchestrator holds one Telegram per source.
func NewTelegram(token string, log zerolog.Logger) *Telegram {
	return &Telegram{
		token:   token,
		baseURL: "https://api.telegram.org",
		client:  &http.Client{Timeout: 10 * time.Second},
		log:     log.With().Str("component", "telegram").Logger(),
	}
}

type sendMessageRequest struct {
	ChatID                int64  `json:"chat_id"`
	Text                  string `json:"text"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (t *Telegram) Send(ctx context.Context, chatID int64, text string) error {
	payload, err := json.Marshal(sendMessageRequest{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	defer resp.Body.Close()

	var body sendMessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("telegram send: decode response: %w", err)
	}
	if !body.OK {
		return fmt.Errorf("telegram send: %s (status %d)", body.Description, resp.StatusCode)
	}

	t.log.Debug().Int64("chat_id", chatID).Msg("message delivered")
	return nil
}
