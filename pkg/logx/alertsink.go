package logx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// WebhookSink posts each alert message as a JSON body to a fixed URL. It is
// the default AlertSink for deployments that don't need a chat-platform
// specific integration: any endpoint that accepts a POSTed {"text": ...}
// payload (a generic incoming webhook) works.
type WebhookSink struct {
	URL    string
	Client *http.Client
}

// NewWebhookSink returns a WebhookSink with a bounded-timeout client.
func NewWebhookSink(url string) *WebhookSink {
	return &WebhookSink{URL: url, Client: &http.Client{Timeout: 5 * time.Second}}
}

func (w *WebhookSink) Send(ctx context.Context, msg string) error {
	if w.URL == "" {
		return fmt.Errorf("logx: webhook sink has no URL configured")
	}
	body, err := json.Marshal(struct {
		Text string `json:"text"`
	}{Text: msg})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := w.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("logx: webhook sink got status %d", resp.StatusCode)
	}
	return nil
}
