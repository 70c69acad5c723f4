package nats

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/SebastienMelki/pushbridge/internal/native"
	"github.com/SebastienMelki/pushbridge/internal/observability"
)

// Client owns one NATS connection and the configuration both link ends
// share.
type Client struct {
	conn   *nats.Conn
	config Config
	logger *slog.Logger
}

// NewClient connects to cfg.URL. Connection state changes are logged under
// the nats-client component.
func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "nats-client")

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	conn, err := nats.Connect(cfg.URL, connectOptions(cfg, logger)...)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.URL, err)
	}

	logger.Info("connected to NATS", "url", conn.ConnectedUrl(), "prefix", cfg.Subjects.Prefix)
	return &Client{conn: conn, config: cfg, logger: logger}, nil
}

func connectOptions(cfg Config, logger *slog.Logger) []nats.Option {
	return []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				// Calls fail with ErrNotConnected until the reconnect.
				logger.Warn("lost NATS connection", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection restored", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			logger.Info("NATS connection closed")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			var subject string
			if sub != nil {
				subject = sub.Subject
			}
			logger.Error("async NATS error", "subject", subject, "error", err)
		}),
	}
}

// Conn returns the underlying connection.
func (c *Client) Conn() *nats.Conn {
	return c.conn
}

// Transport returns a bridge-side transport on this connection.
func (c *Client) Transport(metrics *observability.Metrics) *Transport {
	return NewTransport(c.conn, c.config, metrics, c.logger)
}

// Serve starts a host feeding this connection's calls into target.
func (c *Client) Serve(ctx context.Context, target native.Transport, metrics *observability.Metrics) (*Host, error) {
	h := NewHost(c.conn, target, c.config, metrics, c.logger)
	if err := h.Start(ctx); err != nil {
		return nil, err
	}
	return h, nil
}

// Drain flushes pending callbacks and closes the connection.
func (c *Client) Drain() error {
	return c.conn.Drain()
}

// Close closes the connection immediately.
func (c *Client) Close() {
	c.conn.Close()
}

// HealthCheck measures a server round trip; it fails when disconnected or
// when the round trip exceeds two seconds.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.conn.IsConnected() {
		return fmt.Errorf("%w (status %s)", ErrNotConnected, c.conn.Status())
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	if err := c.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("NATS round trip: %w", err)
	}
	c.logger.Debug("NATS health check", "rtt", time.Since(start))
	return nil
}
