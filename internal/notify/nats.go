package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/fyrsmithlabs/commitd/internal/logging"
)

// NATS publishes notifications to per-channel subjects so downstream
// consumers (dashboards, pagers) can subscribe selectively.
type NATS struct {
	conn   *nats.Conn
	logger *logging.Logger
}

// NewNATS connects to a NATS server.
func NewNATS(url string, logger *logging.Logger) (*NATS, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	conn, err := nats.Connect(url,
		nats.Name("commitd-notify"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return &NATS{conn: conn, logger: logger.Named("notify.nats")}, nil
}

var _ Notifier = (*NATS)(nil)

func (n *NATS) Send(_ context.Context, text, channel string) error {
	if err := n.conn.Publish(subject(channel), []byte(text)); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Close drains the connection.
func (n *NATS) Close() error {
	return n.conn.Drain()
}

// subject maps a channel name like "#call-summaries" to
// "commitd.notify.call-summaries".
func subject(channel string) string {
	channel = strings.TrimPrefix(channel, "#")
	channel = strings.ReplaceAll(channel, ".", "-")
	return "commitd.notify." + channel
}
