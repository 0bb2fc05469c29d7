package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"rugwatch/internal/domain"
	"rugwatch/internal/observability"
)

// DefaultStreamURL is the public pumpportal feed.
const DefaultStreamURL = "wss://pumpportal.fun/api/data"

// SubscribeNewTokenMethod is the subscription request sent on every connect.
const SubscribeNewTokenMethod = "subscribeNewToken"

// Stream defaults.
const (
	DefaultEscalateAfter    = 5
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultReadTimeout      = 90 * time.Second
	DefaultPingInterval     = 30 * time.Second
	DefaultWriteTimeout     = 10 * time.Second
)

// ErrInvalidStreamURL is returned when the feed URL cannot be dialed at all.
var ErrInvalidStreamURL = errors.New("invalid stream url")

// StreamConfig configures the creation event feed.
type StreamConfig struct {
	URL              string        `yaml:"url"`
	Backoff          BackoffConfig `yaml:"backoff"`
	EscalateAfter    int           `yaml:"escalate_after"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	PingInterval     time.Duration `yaml:"ping_interval"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
}

// DefaultStreamConfig returns the production feed settings.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		URL:              DefaultStreamURL,
		Backoff:          DefaultBackoffConfig(),
		EscalateAfter:    DefaultEscalateAfter,
		HandshakeTimeout: DefaultHandshakeTimeout,
		ReadTimeout:      DefaultReadTimeout,
		PingInterval:     DefaultPingInterval,
		WriteTimeout:     DefaultWriteTimeout,
	}
}

// StreamOptions holds the stream's collaborators.
type StreamOptions struct {
	Logger  *slog.Logger
	Metrics *observability.Metrics
	// Sleep waits between reconnect attempts. Defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Stream maintains a subscription to the creation feed and reconnects
// forever until its context is cancelled.
type Stream struct {
	cfg     StreamConfig
	dialer  *websocket.Dialer
	logger  *slog.Logger
	metrics *observability.Metrics
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewStream creates a stream. Zero config fields take their defaults.
func NewStream(cfg StreamConfig, opts StreamOptions) *Stream {
	def := DefaultStreamConfig()
	if cfg.URL == "" {
		cfg.URL = def.URL
	}
	if cfg.EscalateAfter <= 0 {
		cfg.EscalateAfter = def.EscalateAfter
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = def.HandshakeTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	cfg.Backoff = cfg.Backoff.withDefaults()

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	return &Stream{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		logger:  logger.With("component", "stream"),
		metrics: opts.Metrics,
		sleep:   sleep,
	}
}

// Run connects, subscribes and forwards creation events to out in arrival
// order. Frames that fail to decode and non-create frames are dropped.
// Any connection failure is followed by a backoff delay and a fresh
// subscription. Run returns only when ctx is done or the URL is unusable.
func (s *Stream) Run(ctx context.Context, out chan<- domain.CreationEvent) error {
	if err := validateStreamURL(s.cfg.URL); err != nil {
		return err
	}

	policy := s.cfg.Backoff.newBackOff()
	failures := 0

	for {
		received, err := s.session(ctx, out)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if received {
			policy.Reset()
			failures = 0
		}
		failures++

		delay := policy.NextBackOff()
		if delay == backoff.Stop {
			delay = s.cfg.Backoff.MaxInterval
		}
		s.metrics.StreamFailed(delay)

		level := slog.LevelWarn
		if failures >= s.cfg.EscalateAfter {
			level = slog.LevelError
		}
		s.logger.Log(ctx, level, "stream disconnected",
			"error", err,
			"consecutive_failures", failures,
			"retry_in", delay,
		)

		if err := s.sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// session runs one connection until it fails. received reports whether at
// least one frame arrived.
func (s *Stream) session(ctx context.Context, out chan<- domain.CreationEvent) (received bool, err error) {
	conn, _, err := s.dialer.DialContext(ctx, s.cfg.URL, nil)
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	defer func() {
		close(done)
		conn.Close()
		wg.Wait()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	if err := s.subscribe(conn); err != nil {
		return false, err
	}
	s.metrics.StreamConnected()
	s.logger.Info("stream subscribed", "url", s.cfg.URL)

	if s.cfg.ReadTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		})
	}
	if s.cfg.PingInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.pingLoop(conn, done)
		}()
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return received, fmt.Errorf("read: %w", err)
		}
		received = true
		if s.cfg.ReadTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		}

		event, ok := s.decode(data)
		if !ok {
			continue
		}
		select {
		case out <- event:
		case <-ctx.Done():
			return received, ctx.Err()
		}
	}
}

func (s *Stream) subscribe(conn *websocket.Conn) error {
	conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	defer conn.SetWriteDeadline(time.Time{})
	if err := conn.WriteJSON(map[string]string{"method": SubscribeNewTokenMethod}); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	return nil
}

func (s *Stream) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(s.cfg.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				s.logger.Debug("ping failed", "error", err)
				return
			}
		}
	}
}

// decode parses a frame. Non-create frames, including subscription acks,
// are counted and dropped.
func (s *Stream) decode(data []byte) (domain.CreationEvent, bool) {
	var event domain.CreationEvent
	if err := json.Unmarshal(data, &event); err != nil {
		s.metrics.FrameReceived("decode_error")
		s.logger.Warn("skipping undecodable frame", "error", err, "size", len(data))
		return domain.CreationEvent{}, false
	}
	if !event.IsCreate() {
		s.metrics.FrameReceived("ignored")
		return domain.CreationEvent{}, false
	}
	s.metrics.FrameReceived("create")
	return event, true
}

func validateStreamURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidStreamURL, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("%w: scheme %q", ErrInvalidStreamURL, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidStreamURL)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
