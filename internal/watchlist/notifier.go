package watchlist

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the pub/sub channel carrying watchlist changes.
const DefaultChannel = "rugwatch:watchlist"

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	Channel  string `yaml:"channel"`
}

// RedisNotifier announces watchlist edits to running daemons.
type RedisNotifier struct {
	rdb     *redis.Client
	channel string
	logger  *slog.Logger
}

// NewRedisNotifier connects to Redis and checks the connection.
func NewRedisNotifier(ctx context.Context, cfg RedisConfig, logger *slog.Logger) (*RedisNotifier, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	channel := cfg.Channel
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisNotifier{
		rdb:     rdb,
		channel: channel,
		logger:  logger.With("component", "watchlist-notifier"),
	}, nil
}

// Close closes the Redis connection.
func (n *RedisNotifier) Close() error {
	return n.rdb.Close()
}

// Publish announces that address was added or re-reported.
func (n *RedisNotifier) Publish(ctx context.Context, address string) error {
	if err := n.rdb.Publish(ctx, n.channel, address).Err(); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}
	return nil
}

// Subscribe returns a channel that receives one value per burst of change
// messages. The channel is closed when ctx is done. The subscription is
// confirmed before Subscribe returns.
func (n *RedisNotifier) Subscribe(ctx context.Context) (<-chan struct{}, error) {
	sub := n.rdb.Subscribe(ctx, n.channel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("subscribe failed: %w", err)
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				n.logger.Debug("watchlist change", "address", msg.Payload)
				// Coalesce: one pending refresh covers any number of edits.
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out, nil
}
