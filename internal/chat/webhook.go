package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// WebhookSender posts outbound messages as JSON to the platform adapter's
// delivery endpoint.
type WebhookSender struct {
	url    string
	token  string
	client *http.Client
}

// NewWebhookSender creates a sender targeting url. token is sent as a bearer
// token when non-empty.
func NewWebhookSender(url, token string) *WebhookSender {
	return &WebhookSender{
		url:   url,
		token: token,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type outboundMessage struct {
	ChannelID string `json:"channel_id"`
	Text      string `json:"text"`
}

// Send posts {channel_id, text} to the delivery endpoint. A non-2xx status
// is a delivery failure.
func (s *WebhookSender) Send(ctx context.Context, channelID, text string) error {
	body, err := json.Marshal(outboundMessage{ChannelID: channelID, Text: text})
	if err != nil {
		return fmt.Errorf("marshal outbound message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build delivery request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("deliver message: endpoint returned %d", resp.StatusCode)
	}
	return nil
}
