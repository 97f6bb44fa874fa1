// Package sweeper drives the time-based order transitions that no user
// action triggers: transfer-code expiry and due settlements.
package sweeper

import (
	"context"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/domain-escrow/internal/domain/order"
)

// Sweeper periodically runs both lifecycle sweeps. Each run is idempotent,
// so overlapping schedules or restarts are harmless.
type Sweeper struct {
	orders   *order.Service
	interval time.Duration
	tracer   trace.Tracer
}

// New creates a Sweeper over the lifecycle service.
func New(orders *order.Service, interval time.Duration, tp trace.TracerProvider) *Sweeper {
	return &Sweeper{
		orders:   orders,
		interval: interval,
		tracer:   tp.Tracer("sweeper"),
	}
}

// Run blocks, sweeping on every interval tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep runs both sweeps concurrently; they never contend on the same order
// because each takes the per-order lock.
func (s *Sweeper) sweep(ctx context.Context) {
	ctx, span := s.tracer.Start(ctx, "sweep")
	defer span.End()

	lg := zctx.From(ctx)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		n, err := s.orders.SweepTransferCodes(gctx)
		if err != nil {
			lg.Error("transfer code sweep aborted", zap.Error(err))
			return nil
		}
		if n > 0 {
			lg.Info("transfer codes expired", zap.Int("count", n))
		}
		return nil
	})
	g.Go(func() error {
		n, err := s.orders.SweepSettlements(gctx)
		if err != nil {
			lg.Error("settlement sweep aborted", zap.Error(err))
			return nil
		}
		if n > 0 {
			lg.Info("settlements released", zap.Int("count", n))
		}
		return nil
	})

	_ = g.Wait()
}
