package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"botherd/pkg/logging"
)

// TelegramOptions configures the Bot API transport.
type TelegramOptions struct {
	APIURL         string
	Token          string
	ChatID         string
	RequestTimeout time.Duration
	RetryMax       int
}

// Telegram sends messages through the Telegram Bot API.
type Telegram struct {
	client *retryablehttp.Client
	base   string
	chatID string
}

// apiResponse is the envelope of every Bot API reply.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

type botUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// NewTelegram creates a Telegram messenger. No request is made until Arm.
func NewTelegram(opts TelegramOptions) *Telegram {
	client := retryablehttp.NewClient()
	client.RetryMax = opts.RetryMax
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 5 * time.Second
	client.Logger = nil
	if opts.RequestTimeout > 0 {
		client.HTTPClient.Timeout = opts.RequestTimeout
	}

	return &Telegram{
		client: client,
		base:   strings.TrimRight(opts.APIURL, "/") + "/bot" + opts.Token,
		chatID: opts.ChatID,
	}
}

// Arm validates the token with getMe.
func (t *Telegram) Arm(ctx context.Context) error {
	var me botUser
	if err := t.call(ctx, http.MethodGet, "getMe", nil, &me); err != nil {
		return fmt.Errorf("telegram token check failed: %w", err)
	}
	logging.Info("Notify", "Telegram bot @%s armed", me.Username)
	return nil
}

// Send posts text to the configured chat.
func (t *Telegram) Send(ctx context.Context, text string) error {
	payload := map[string]string{
		"chat_id": t.chatID,
		"text":    text,
	}
	if err := t.call(ctx, http.MethodPost, "sendMessage", payload, nil); err != nil {
		return fmt.Errorf("telegram sendMessage failed: %w", err)
	}
	return nil
}

// Close releases idle connections.
func (t *Telegram) Close() error {
	t.client.HTTPClient.CloseIdleConnections()
	return nil
}

func (t *Telegram) call(ctx context.Context, method, endpoint string, payload interface{}, result interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, t.base+"/"+endpoint, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		// The request URL embeds the bot token; keep it out of the error text.
		return fmt.Errorf("%s request failed: %s", endpoint, redact(err.Error(), t.base))
	}
	defer resp.Body.Close()

	var envelope apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("%s: unexpected response (status %d): %w", endpoint, resp.StatusCode, err)
	}
	if !envelope.OK {
		return fmt.Errorf("%s: %s (status %d)", endpoint, envelope.Description, resp.StatusCode)
	}
	if result != nil && len(envelope.Result) > 0 {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return fmt.Errorf("%s: failed to decode result: %w", endpoint, err)
		}
	}
	return nil
}

func redact(message, base string) string {
	i := strings.LastIndex(base, "/bot")
	if i < 0 {
		return message
	}
	token := base[i+len("/bot"):]
	if token == "" {
		return message
	}
	return strings.ReplaceAll(message, token, "<redacted>")
}
