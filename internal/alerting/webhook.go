package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Webhook body formats.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// WebhookNotifier POSTs alerts to a chat webhook. The JSON form is the
// {"text": ...} body Slack-compatible endpoints accept.
type WebhookNotifier struct {
	url    string
	bearer string
	format string
	client *http.Client
}

// NewWebhookNotifier returns nil when url is empty.
func NewWebhookNotifier(url, bearer, format string, timeout time.Duration) *WebhookNotifier {
	if strings.TrimSpace(url) == "" {
		return nil
	}
	if format == "" {
		format = FormatJSON
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		url:    url,
		bearer: bearer,
		format: format,
		client: &http.Client{Timeout: timeout},
	}
}

func (w *WebhookNotifier) Name() string { return "webhook" }

func (w *WebhookNotifier) Notify(ctx context.Context, a Alert) error {
	var (
		body        []byte
		contentType string
	)
	switch w.format {
	case FormatText:
		body = []byte(a.Text())
		contentType = "text/plain; charset=utf-8"
	default:
		payload, err := json.Marshal(map[string]string{"text": a.Text()})
		if err != nil {
			return fmt.Errorf("marshal webhook payload: %w", err)
		}
		body = payload
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if w.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+w.bearer)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
