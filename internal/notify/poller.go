package notify

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// DefaultWorkers bounds concurrent update handling.
const DefaultWorkers = 4

// Handler processes one inbound update.
type Handler interface {
	Handle(ctx context.Context, u Update)
}

// Poller fans inbound updates out to a bounded set of workers.
type Poller struct {
	handler Handler
	workers int
	logger  *slog.Logger
}

// NewPoller creates a poller. workers <= 0 uses DefaultWorkers.
func NewPoller(handler Handler, workers int, logger *slog.Logger) *Poller {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		handler: handler,
		workers: workers,
		logger:  logger.With("component", "poller"),
	}
}

// Run handles updates until ctx is done or updates is closed, then waits
// for in-flight handlers.
func (p *Poller) Run(ctx context.Context, updates <-chan Update) error {
	var g errgroup.Group
	g.SetLimit(p.workers)

	p.logger.Info("poller started", "workers", p.workers)
	defer p.logger.Info("poller stopped")

	for {
		select {
		case <-ctx.Done():
			g.Wait()
			return ctx.Err()
		case u, ok := <-updates:
			if !ok {
				return g.Wait()
			}
			g.Go(func() error {
				p.handler.Handle(ctx, u)
				return nil
			})
		}
	}
}
