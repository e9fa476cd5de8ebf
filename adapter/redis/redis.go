// Package redis publishes session completion events on a Redis pub/sub
// channel.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/numlab/numerosity/adapter"
)

const (
	DefaultChannel   = "numerosity:session_completed"
	DefaultTimeout   = 5 * time.Second
	DefaultStatusTTL = 24 * time.Hour
)

// Config configures the Redis adapter.
type Config struct {
	// URL is redis://[:password@]host:port[/db]. Required.
	URL     string
	Channel string
	Timeout time.Duration
	Retries int
	Backoff time.Duration
	// StatusTTL is how long the per-session status key lives. Negative
	// disables the key.
	StatusTTL time.Duration
}

// StatusKey is the key holding the last notice of a session, so a monitor
// that was not subscribed at the time can still look the outcome up.
func StatusKey(channel, sessionID string) string {
	return channel + ":" + sessionID
}

// Adapter publishes each notice on a channel and, unless disabled, stores
// it under StatusKey in the same transaction.
type Adapter struct {
	config Config
	client *goredis.Client
}

// New creates a Redis pub/sub adapter from the given config.
func New(cfg Config) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis adapter requires a URL")
	}
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis adapter: invalid URL: %w", err)
	}
	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.StatusTTL == 0 {
		cfg.StatusTTL = DefaultStatusTTL
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}
	return &Adapter{config: cfg, client: goredis.NewClient(opts)}, nil
}

// Publish sends the event as JSON. Every error is retried.
func (a *Adapter) Publish(ctx context.Context, event *adapter.SessionCompletedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis: marshal event: %w", err)
	}
	key := StatusKey(a.config.Channel, event.SessionID)
	return adapter.Retry(ctx, "redis", a.config.Retries, a.config.Backoff,
		func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
			defer cancel()
			_, err := a.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
				if a.config.StatusTTL > 0 {
					pipe.Set(ctx, key, body, a.config.StatusTTL)
				}
				pipe.Publish(ctx, a.config.Channel, body)
				return nil
			})
			return err
		},
		nil,
	)
}

// Close releases adapter resources.
func (a *Adapter) Close() error {
	return a.client.Close()
}

var _ adapter.Adapter = (*Adapter)(nil)
