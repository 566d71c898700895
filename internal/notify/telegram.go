// internal/notify/telegram.go
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/memetrader/internal/events"
)

const telegramTimeLayout = "2006/01/02 15:04:05"

type inlineButton struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

type replyMarkup struct {
	InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
}

type sendMessageRequest struct {
	ChatID      string       `json:"chat_id"`
	Text        string       `json:"text"`
	ParseMode   string       `json:"parse_mode"`
	ReplyMarkup *replyMarkup `json:"reply_markup,omitempty"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Telegram posts messages to every configured chat via the Bot API.
type Telegram struct {
	apiURL  string
	token   string
	chatIDs []string
	client  *http.Client
	logger  *zap.Logger
	now     func() time.Time
}

// NewTelegram returns nil when token or chats are missing so callers can skip
// the channel.
func NewTelegram(apiURL, token string, chatIDs []string, logger *zap.Logger) *Telegram {
	if token == "" || len(chatIDs) == 0 {
		return nil
	}
	return &Telegram{
		apiURL:  strings.TrimRight(apiURL, "/"),
		token:   token,
		chatIDs: chatIDs,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger.Named("telegram"),
		now:     time.Now,
	}
}

func (t *Telegram) Name() string { return "telegram" }

// Send delivers n to each chat and returns the joined errors.
func (t *Telegram) Send(ctx context.Context, n events.NotificationEvent) error {
	req := sendMessageRequest{
		Text:      fmt.Sprintf("%s\nTime: %s", n.Message, t.now().Format(telegramTimeLayout)),
		ParseMode: "HTML",
	}
	if len(n.Links) > 0 {
		markup := &replyMarkup{}
		// одна кнопка на строку
		for _, l := range n.Links {
			markup.InlineKeyboard = append(markup.InlineKeyboard, []inlineButton{{Text: l.Text, URL: l.URL}})
		}
		req.ReplyMarkup = markup
	}

	var errs []error
	for _, chatID := range t.chatIDs {
		req.ChatID = chatID
		if err := t.send(ctx, req); err != nil {
			t.logger.Warn("Telegram send failed", zap.String("chat_id", chatID), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t *Telegram) send(ctx context.Context, msg sendMessageRequest) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var r telegramResponse
	if err := json.Unmarshal(raw, &r); err != nil {
		return fmt.Errorf("failed to decode response (status %d): %w", resp.StatusCode, err)
	}
	if !r.OK {
		return fmt.Errorf("telegram error (status %d): %s", resp.StatusCode, r.Description)
	}
	return nil
}
