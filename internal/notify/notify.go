package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fyrsmithlabs/commitd/internal/config"
	"github.com/fyrsmithlabs/commitd/internal/logging"
)

// Notifier sends a text message to a named channel.
type Notifier interface {
	Send(ctx context.Context, text, channel string) error
}

// New builds the notifier selected by configuration.
func New(cfg config.NotifyConfig, logger *logging.Logger) (Notifier, error) {
	if !cfg.Enabled {
		return Nop{}, nil
	}
	switch cfg.Provider {
	case "slack":
		return NewSlack(cfg.WebhookURL, logger), nil
	case "nats":
		return NewNATS(cfg.NATSURL, logger)
	case "nop", "":
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown notify provider %q", cfg.Provider)
	}
}

// Nop discards every notification.
type Nop struct{}

var _ Notifier = Nop{}

func (Nop) Send(context.Context, string, string) error { return nil }

// Slack posts messages to an incoming-webhook URL.
type Slack struct {
	webhookURL config.Secret
	client     *http.Client
	logger     *logging.Logger
}

// NewSlack creates a Slack webhook notifier.
func NewSlack(webhookURL config.Secret, logger *logging.Logger) *Slack {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Slack{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		logger:     logger.Named("notify.slack"),
	}
}

var _ Notifier = (*Slack)(nil)

func (s *Slack) Send(ctx context.Context, text, channel string) error {
	payload, err := json.Marshal(map[string]string{
		"text":    text,
		"channel": channel,
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL.Value(), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
