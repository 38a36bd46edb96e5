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

	"github.com/rs/zerolog"
)

// Message is one outbound chat post.
type Message struct {
	Text string
}

// Notifier delivers messages to a chat channel.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// SlackNotifier posts to a Slack incoming webhook.
type SlackNotifier struct {
	webhookURL string
	client     *http.Client
	logger     zerolog.Logger
}

// NewSlackNotifier builds a webhook notifier.
func NewSlackNotifier(webhookURL string, timeout time.Duration, logger zerolog.Logger) *SlackNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SlackNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "alert_slack").Logger(),
	}
}

// Notify posts the message text. Slack answers 200 with body "ok".
func (n *SlackNotifier) Notify(ctx context.Context, msg Message) error {
	if n.webhookURL == "" {
		return fmt.Errorf("slack webhook not configured")
	}

	body, err := json.Marshal(map[string]string{"text": msg.Text})
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send slack request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack webhook status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	preview := msg.Text
	if len(preview) > 50 {
		preview = preview[:50]
	}
	n.logger.Info().Str("preview", preview).Msg("slack message sent")
	return nil
}

var _ Notifier = (*SlackNotifier)(nil)
