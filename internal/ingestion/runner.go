package ingestion

import (
	"context"
	"errors"
	"log/slog"

	"rugwatch/internal/domain"
	"rugwatch/internal/observability"
)

// EventSource produces creation events until ctx is done.
type EventSource interface {
	Run(ctx context.Context, out chan<- domain.CreationEvent) error
}

// Matcher looks up the watchlist entry of a creator.
type Matcher interface {
	Lookup(address string) (domain.WatchlistEntry, bool)
}

// Alerter delivers alerts for matched events.
type Alerter interface {
	Alert(ctx context.Context, event domain.CreationEvent, entry domain.WatchlistEntry) error
}

// Runner feeds stream events through the matcher to the alerter.
type Runner struct {
	source  EventSource
	matcher Matcher
	alerter Alerter
	buffer  int
	metrics *observability.Metrics
	logger  *slog.Logger
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	Source  EventSource
	Matcher Matcher
	Alerter Alerter
	Buffer  int // Default: 64 events between the stream and the matcher
	Metrics *observability.Metrics
	Logger  *slog.Logger
}

// NewRunner creates a new ingestion runner.
func NewRunner(opts RunnerOptions) *Runner {
	buffer := opts.Buffer
	if buffer <= 0 {
		buffer = 64
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		source:  opts.Source,
		matcher: opts.Matcher,
		alerter: opts.Alerter,
		buffer:  buffer,
		metrics: opts.Metrics,
		logger:  logger.With("component", "runner"),
	}
}

// Run processes events one at a time in arrival order until ctx is done.
// Alert failures are logged and never stop the loop.
func (r *Runner) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan domain.CreationEvent, r.buffer)
	sourceErr := make(chan error, 1)
	go func() {
		sourceErr <- r.source.Run(ctx, events)
	}()

	r.logger.Info("runner started")
	for {
		select {
		case <-ctx.Done():
			<-sourceErr
			r.logger.Info("runner stopped")
			return ctx.Err()

		case err := <-sourceErr:
			if err == nil || errors.Is(err, context.Canceled) {
				return ctx.Err()
			}
			return err

		case event := <-events:
			r.handle(ctx, event)
		}
	}
}

func (r *Runner) handle(ctx context.Context, event domain.CreationEvent) {
	entry, ok := r.matcher.Lookup(event.CreatorAddress)
	if !ok {
		return
	}
	r.metrics.WatchlistMatched()
	r.logger.Info("watchlisted creator launched token",
		"creator", event.CreatorAddress,
		"mint", event.MintAddress,
		"symbol", event.Symbol,
		"reports", entry.ReportCount,
	)

	if err := r.alerter.Alert(ctx, event, entry); err != nil {
		r.logger.Error("alert failed", "mint", event.MintAddress, "error", err)
	}
}
