package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"
)

// LogSender writes messages to the log instead of delivering them.
type LogSender struct {
	Log *zap.Logger
}

func (s LogSender) Send(_ context.Context, to string, msg Message) error {
	s.Log.Info("notify",
		zap.String("to", to),
		zap.String("text", msg.Body()),
		zap.Int("image_bytes", len(msg.Image)),
	)
	return nil
}

type webhookPayload struct {
	To      string `json:"to"`
	Text    string `json:"text,omitempty"`
	Image   []byte `json:"image,omitempty"`
	Caption string `json:"caption,omitempty"`
}

// WebhookSender posts each message as JSON to a chat gateway.
type WebhookSender struct {
	http *resty.Client
	url  string
}

func NewWebhookSender(url, token string, timeout time.Duration) *WebhookSender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	c.JSONMarshal = json.Marshal
	c.JSONUnmarshal = json.Unmarshal
	if token != "" {
		c.SetAuthToken(token)
	}
	return &WebhookSender{http: c, url: url}
}

func (s *WebhookSender) Send(ctx context.Context, to string, msg Message) error {
	resp, err := s.http.R().
		SetContext(ctx).
		SetBody(webhookPayload{To: to, Text: msg.Text, Image: msg.Image, Caption: msg.Caption}).
		Post(s.url)
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook: %s: %s", resp.Status(), resp.String())
	}
	return nil
}
