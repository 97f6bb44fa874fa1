package order

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// SweepTransferCodes reverts orders whose transfer code lapsed back to
// PendingTransfer so the seller can reissue. The sweep is idempotent: an
// order already reverted (or moved elsewhere) is skipped on re-check under
// the lock. Per-order failures are logged and never abort the sweep.
func (s *Service) SweepTransferCodes(ctx context.Context) (int, error) {
	candidates, err := s.orders.List(ctx, Filter{Statuses: []Status{StatusPendingConfirmation}})
	if err != nil {
		return 0, errors.Wrap(err, "list pending confirmations")
	}

	lg := zctx.From(ctx)
	swept := 0
	for _, c := range candidates {
		if ctx.Err() != nil {
			return swept, ctx.Err()
		}
		expired, err := s.sweepOneTransferCode(ctx, c.ID)
		if err != nil {
			lg.Error("transfer code sweep failed",
				zap.String("order_id", c.ID),
				zap.Error(err),
			)
			continue
		}
		if expired {
			swept++
		}
	}
	return swept, nil
}

// sweepOneTransferCode re-checks the expiry condition under the per-order
// lock; the listed snapshot may be stale by the time we get here.
func (s *Service) sweepOneTransferCode(ctx context.Context, orderID string) (bool, error) {
	s.locks.lock(orderID)
	defer s.locks.unlock(orderID)

	o, err := s.load(ctx, orderID)
	if err != nil {
		return false, err
	}
	if o.Status != StatusPendingConfirmation || o.Transfer == nil {
		return false, nil
	}
	if !o.Transfer.Expired(s.clock.Now()) {
		return false, nil
	}
	if err := s.expireTransferCode(ctx, o); err != nil {
		return false, err
	}
	return true, nil
}

// SweepSettlements completes orders whose payout time has arrived, crediting
// the seller's wallet with the settlement amount exactly once. Idempotent:
// an order already Completed no longer matches the re-checked guard.
func (s *Service) SweepSettlements(ctx context.Context) (int, error) {
	candidates, err := s.orders.List(ctx, Filter{Statuses: []Status{StatusPendingSettlement}})
	if err != nil {
		return 0, errors.Wrap(err, "list pending settlements")
	}

	lg := zctx.From(ctx)
	swept := 0
	for _, c := range candidates {
		if ctx.Err() != nil {
			return swept, ctx.Err()
		}
		settled, err := s.sweepOneSettlement(ctx, c.ID)
		if err != nil {
			lg.Error("settlement sweep failed",
				zap.String("order_id", c.ID),
				zap.Error(err),
			)
			continue
		}
		if settled {
			swept++
		}
	}
	return swept, nil
}

func (s *Service) sweepOneSettlement(ctx context.Context, orderID string) (bool, error) {
	s.locks.lock(orderID)
	defer s.locks.unlock(orderID)

	o, err := s.load(ctx, orderID)
	if err != nil {
		return false, err
	}
	if o.Status != StatusPendingSettlement || o.Payout == nil {
		return false, nil
	}
	now := s.clock.Now()
	if now.Before(o.Payout.ScheduledAt) {
		return false, nil
	}

	if err := s.credit(ctx, o.SellerID, o.Payout.Amount); err != nil {
		return false, errors.Wrap(err, "credit seller")
	}

	o.Status = StatusCompleted
	o.append(now, EventSettled)

	if err := s.orders.Update(ctx, o); err != nil {
		// The credit landed but the status didn't; undo the credit so the
		// next sweep run can retry the whole step without double-paying.
		if debitErr := s.debit(ctx, o.SellerID, o.Payout.Amount); debitErr != nil {
			zctx.From(ctx).Error("settlement rollback failed, manual reconciliation required",
				zap.String("order_id", o.ID),
				zap.String("seller_id", o.SellerID),
				zap.String("amount", o.Payout.Amount.String()),
				zap.Error(debitErr),
			)
		}
		return false, errors.Wrap(err, "update order")
	}

	s.emit(ctx, o, EventSettled, o.SellerID, map[string]string{
		"amount": o.Payout.Amount.String(),
	})
	return true, nil
}
