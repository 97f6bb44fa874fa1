package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/domain-escrow/internal/clock"
	"github.com/xenking/domain-escrow/internal/domain/payment"
	"github.com/xenking/domain-escrow/internal/domain/wallet"
	"github.com/xenking/domain-escrow/internal/notify"
)

// Config holds the tunable lifecycle parameters. The fee rate and settlement
// delay are injected, never hard-coded, so promotional overrides don't touch
// core logic.
type Config struct {
	// FeeRate is the platform cut taken at settlement time (0.10 = 10%).
	FeeRate decimal.Decimal
	// SettlementDays is the payout delay in business days after confirmation.
	SettlementDays int
	// ExternalTimeout bounds each call to the payment gateway and wallet
	// ledger so the per-order lock is never held across an unbounded wait.
	ExternalTimeout time.Duration
}

// Service owns all order state transitions. Every command takes the per-order
// lock, validates the guard, performs external effects, and commits — or
// rolls the whole transition back, leaving the order unchanged.
type Service struct {
	orders  Repository
	gateway payment.Gateway
	ledger  wallet.Ledger
	sink    notify.Sink
	clock   clock.Clock
	cfg     Config
	locks   *keyedMutex
}

// NewService creates the lifecycle service with its collaborators.
func NewService(
	orders Repository,
	gateway payment.Gateway,
	ledger wallet.Ledger,
	sink notify.Sink,
	clk clock.Clock,
	cfg Config,
) *Service {
	if cfg.ExternalTimeout <= 0 {
		cfg.ExternalTimeout = 10 * time.Second
	}
	return &Service{
		orders:  orders,
		gateway: gateway,
		ledger:  ledger,
		sink:    sink,
		clock:   clk,
		cfg:     cfg,
		locks:   newKeyedMutex(),
	}
}

// CreateOrderRequest holds the input for opening an escrow order against a
// listed domain.
type CreateOrderRequest struct {
	BuyerID    string
	SellerID   string
	DomainName string
	Registrar  string
	Price      decimal.Decimal
}

// CreateOrder opens a new order in PendingPayment.
func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	switch {
	case req.BuyerID == "":
		return nil, &ValidationError{Field: "buyerId", Reason: "required"}
	case req.SellerID == "":
		return nil, &ValidationError{Field: "sellerId", Reason: "required"}
	case req.BuyerID == req.SellerID:
		return nil, &ValidationError{Field: "sellerId", Reason: "buyer and seller must differ"}
	case req.DomainName == "":
		return nil, &ValidationError{Field: "domainName", Reason: "required"}
	case !req.Price.IsPositive():
		return nil, &ValidationError{Field: "price", Reason: "must be positive"}
	}

	now := s.clock.Now()
	o := &Order{
		ID:         uuid.New().String(),
		DomainName: req.DomainName,
		Registrar:  req.Registrar,
		BuyerID:    req.BuyerID,
		SellerID:   req.SellerID,
		Price:      req.Price,
		Status:     StatusPendingPayment,
		CreatedAt:  now,
	}
	o.append(now, EventCreated)

	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	s.emit(ctx, o, EventCreated, o.SellerID, nil)
	return o.clone(), nil
}

// Pay captures the buyer's payment and moves the order to PendingTransfer.
//
// With useWallet the wallet covers min(balance, price) and the external
// method the remainder. The external charge happens first; the wallet debit
// is the core's own data and is rolled back (charge refunded) if it fails, so
// no partial capture ever commits.
func (s *Service) Pay(ctx context.Context, actorID, orderID string, method payment.Method, useWallet bool) (*Order, error) {
	if !method.Valid() {
		return nil, &ValidationError{Field: "method", Reason: fmt.Sprintf("unknown payment method %q", method)}
	}

	s.locks.lock(orderID)
	defer s.locks.unlock(orderID)

	o, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != StatusPendingPayment {
		return nil, invalidTransition(o, "pay")
	}
	if actorID != o.BuyerID {
		return nil, ErrActorNotAuthorized
	}

	walletDebit := decimal.Zero
	if useWallet {
		balance, err := s.balance(ctx, o.BuyerID)
		if err != nil {
			return nil, errors.Wrap(err, "wallet balance")
		}
		walletDebit = decimal.Min(balance, o.Price)
	}
	externalCharge := o.Price.Sub(walletDebit)

	var ref payment.ChargeRef
	if externalCharge.IsPositive() {
		ref, err = s.capture(ctx, o.ID, externalCharge, method)
		if err != nil {
			return nil, &PaymentCaptureError{OrderID: o.ID, Err: err}
		}
	}

	if walletDebit.IsPositive() {
		if err := s.debit(ctx, o.BuyerID, walletDebit); err != nil {
			// The charge is already captured; undo it so the payment is
			// all-or-nothing across both ledgers.
			s.refundCharge(ctx, o, ref)
			if errors.Is(err, wallet.ErrInsufficientBalance) {
				return nil, ErrInsufficientBalance
			}
			return nil, errors.Wrap(err, "wallet debit")
		}
	}

	o.Breakdown = &PaymentBreakdown{
		WalletAmount:   walletDebit,
		ExternalAmount: externalCharge,
		Method:         method,
		ChargeRef:      ref,
	}
	o.Status = StatusPendingTransfer
	o.append(s.clock.Now(), EventPaid)

	if err := s.orders.Update(ctx, o); err != nil {
		s.refundBreakdown(ctx, o)
		return nil, errors.Wrap(err, "update order")
	}

	s.emit(ctx, o, EventPaid, o.SellerID, nil)
	return o.clone(), nil
}

// Close terminates an unfinished sale. Buyers may close only while the order
// awaits their payment; sellers may additionally close during PendingTransfer
// to declare they cannot transfer, which refunds the buyer in full.
func (s *Service) Close(ctx context.Context, actorID, orderID string) (*Order, error) {
	s.locks.lock(orderID)
	defer s.locks.unlock(orderID)

	o, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}

	switch o.Status {
	case StatusPendingPayment:
		if actorID != o.BuyerID && actorID != o.SellerID {
			return nil, ErrActorNotAuthorized
		}
	case StatusPendingTransfer:
		if actorID != o.SellerID {
			return nil, ErrActorNotAuthorized
		}
	default:
		return nil, invalidTransition(o, "close")
	}

	s.refundBreakdown(ctx, o)
	o.Status = StatusClosed
	o.append(s.clock.Now(), EventClosed)

	if err := s.orders.Update(ctx, o); err != nil {
		return nil, errors.Wrap(err, "update order")
	}

	counterparty := o.SellerID
	if actorID == o.SellerID {
		counterparty = o.BuyerID
	}
	s.emit(ctx, o, EventClosed, counterparty, nil)
	return o.clone(), nil
}

// SubmitTransferCode records the seller's registrar authorization code.
// Resubmission while a code is outstanding replaces it entirely; the previous
// code is immediately invalid.
func (s *Service) SubmitTransferCode(ctx context.Context, actorID, orderID, code string, expiresAt time.Time) (*Order, error) {
	if code == "" {
		return nil, &ValidationError{Field: "code", Reason: "required"}
	}

	s.locks.lock(orderID)
	defer s.locks.unlock(orderID)

	o, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != StatusPendingTransfer && o.Status != StatusPendingConfirmation {
		return nil, invalidTransition(o, "submit transfer code")
	}
	if actorID != o.SellerID {
		return nil, ErrActorNotAuthorized
	}

	now := s.clock.Now()
	if !expiresAt.After(now) {
		return nil, &ValidationError{Field: "expiresAt", Reason: "must be in the future"}
	}

	o.Transfer = &TransferCode{Code: code, IssuedAt: now, ExpiresAt: expiresAt}
	o.Status = StatusPendingConfirmation
	o.append(now, EventTransferCodeSet)

	if err := s.orders.Update(ctx, o); err != nil {
		return nil, errors.Wrap(err, "update order")
	}

	s.emit(ctx, o, EventTransferCodeSet, o.BuyerID, map[string]string{
		"expiresAt": expiresAt.Format(time.RFC3339),
	})
	return o.clone(), nil
}

// ConfirmReceived acknowledges the buyer pulled the domain into their own
// registrar account using the given code, and schedules the seller payout.
func (s *Service) ConfirmReceived(ctx context.Context, actorID, orderID, code string) (*Order, error) {
	s.locks.lock(orderID)
	defer s.locks.unlock(orderID)

	o, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != StatusPendingConfirmation || o.Transfer == nil {
		return nil, invalidTransition(o, "confirm")
	}
	if actorID != o.BuyerID {
		return nil, ErrActorNotAuthorized
	}

	now := s.clock.Now()
	if o.Transfer.Expired(now) {
		return nil, ErrTransferCodeExpired
	}
	if code != o.Transfer.Code {
		return nil, &ValidationError{Field: "code", Reason: "does not match the active transfer code"}
	}

	s.scheduleSettlement(o, now)
	o.Transfer = nil
	o.Status = StatusPendingSettlement
	o.append(now, EventConfirmed)

	if err := s.orders.Update(ctx, o); err != nil {
		return nil, errors.Wrap(err, "update order")
	}

	s.emit(ctx, o, EventConfirmed, o.SellerID, map[string]string{
		"settlementAt": o.Payout.ScheduledAt.Format(time.RFC3339),
	})
	return o.clone(), nil
}

// OpenDispute raises a buyer hold on the order. All buyer/seller-initiated
// transitions are frozen until arbitration resolves it.
func (s *Service) OpenDispute(ctx context.Context, actorID, orderID, reason string) (*Order, error) {
	if reason == "" {
		return nil, &ValidationError{Field: "reason", Reason: "required"}
	}

	s.locks.lock(orderID)
	defer s.locks.unlock(orderID)

	o, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != StatusPendingTransfer && o.Status != StatusPendingConfirmation {
		return nil, invalidTransition(o, "open dispute")
	}
	if actorID != o.BuyerID {
		return nil, ErrActorNotAuthorized
	}

	now := s.clock.Now()
	o.Dispute = &Dispute{Reason: reason, OpenedAt: now, OpenedFrom: o.Status}
	o.Status = StatusDisputed
	o.append(now, EventDisputeOpened)

	if err := s.orders.Update(ctx, o); err != nil {
		return nil, errors.Wrap(err, "update order")
	}

	s.emit(ctx, o, EventDisputeOpened, o.SellerID, map[string]string{"reason": reason})
	return o.clone(), nil
}

// ResolveDispute applies an external arbitration decision. The dispute record
// is stamped once and never edited again.
func (s *Service) ResolveDispute(ctx context.Context, orderID string, outcome DisputeOutcome) (*Order, error) {
	if !outcome.Valid() {
		return nil, &ValidationError{Field: "outcome", Reason: fmt.Sprintf("unknown outcome %q", outcome)}
	}

	s.locks.lock(orderID)
	defer s.locks.unlock(orderID)

	o, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != StatusDisputed || o.Dispute == nil || o.Dispute.Resolved() {
		return nil, invalidTransition(o, "resolve dispute")
	}

	now := s.clock.Now()
	switch outcome {
	case OutcomeResume:
		// Return to the state the dispute was opened from; a held transfer
		// code stays active and the expiry sweep handles it if stale.
		o.Status = o.Dispute.OpenedFrom
	case OutcomeRelease:
		s.scheduleSettlement(o, now)
		o.Transfer = nil
		o.Status = StatusPendingSettlement
	case OutcomeRefund:
		s.refundBreakdown(ctx, o)
		o.Transfer = nil
		o.Status = StatusClosed
	}

	o.Dispute.Outcome = outcome
	resolvedAt := now
	o.Dispute.ResolvedAt = &resolvedAt
	o.append(now, fmt.Sprintf("%s: %s", EventDisputeResolved, outcome))

	if err := s.orders.Update(ctx, o); err != nil {
		return nil, errors.Wrap(err, "update order")
	}

	s.emit(ctx, o, EventDisputeResolved, o.BuyerID, map[string]string{"outcome": string(outcome)})
	s.emit(ctx, o, EventDisputeResolved, o.SellerID, map[string]string{"outcome": string(outcome)})
	return o.clone(), nil
}

// GetOrder returns a snapshot of the order. Transfer-code expiry is evaluated
// lazily here: a stale code reverts the order to PendingTransfer before the
// snapshot is taken, so readers never observe an expired-but-active code.
func (s *Service) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	s.locks.lock(orderID)
	defer s.locks.unlock(orderID)

	o, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if o.Status == StatusPendingConfirmation && o.Transfer != nil && o.Transfer.Expired(s.clock.Now()) {
		if err := s.expireTransferCode(ctx, o); err != nil {
			return nil, err
		}
	}

	return o.clone(), nil
}

// ListOrders returns snapshots matching the filter. Listing does not apply
// lazy expiry; the background sweep keeps list views current.
func (s *Service) ListOrders(ctx context.Context, f Filter) ([]*Order, error) {
	found, err := s.orders.List(ctx, f)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	snapshots := make([]*Order, len(found))
	for i, o := range found {
		snapshots[i] = o.clone()
	}
	return snapshots, nil
}

// --- internal helpers ---

func (s *Service) load(ctx context.Context, orderID string) (*Order, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "get order")
	}
	return o, nil
}

// scheduleSettlement computes the payout once. The amount is snapshotted from
// the current fee rate and never recomputed.
func (s *Service) scheduleSettlement(o *Order, now time.Time) {
	amount := o.Price.Mul(decimal.NewFromInt(1).Sub(s.cfg.FeeRate)).Round(2)
	o.Payout = &Settlement{
		Amount:      amount,
		ScheduledAt: addBusinessDays(now, s.cfg.SettlementDays),
	}
}

// expireTransferCode reverts a PendingConfirmation order whose code lapsed.
// Caller must hold the per-order lock.
func (s *Service) expireTransferCode(ctx context.Context, o *Order) error {
	o.Transfer = nil
	o.Status = StatusPendingTransfer
	o.append(s.clock.Now(), EventTransferCodeExpired)

	if err := s.orders.Update(ctx, o); err != nil {
		return errors.Wrap(err, "update order")
	}

	s.emit(ctx, o, EventTransferCodeExpired, o.SellerID, nil)
	return nil
}

// refundBreakdown returns captured funds to the buyer: gateway refund for the
// external part, wallet credit for the wallet part. Failures are logged with
// order context; a refund that needs retrying is an operational concern, not
// a reason to block the close.
func (s *Service) refundBreakdown(ctx context.Context, o *Order) {
	if o.Breakdown == nil {
		return
	}
	if o.Breakdown.ExternalAmount.IsPositive() {
		s.refundCharge(ctx, o, o.Breakdown.ChargeRef)
	}
	if o.Breakdown.WalletAmount.IsPositive() {
		if err := s.credit(ctx, o.BuyerID, o.Breakdown.WalletAmount); err != nil {
			zctx.From(ctx).Error("wallet refund failed",
				zap.String("order_id", o.ID),
				zap.String("buyer_id", o.BuyerID),
				zap.String("amount", o.Breakdown.WalletAmount.String()),
				zap.Error(err),
			)
		}
	}
}

func (s *Service) refundCharge(ctx context.Context, o *Order, ref payment.ChargeRef) {
	if ref == "" {
		return
	}
	callCtx, cancel := s.externalContext(ctx)
	defer cancel()
	if err := s.gateway.Refund(callCtx, o.ID, ref); err != nil {
		zctx.From(ctx).Error("gateway refund failed",
			zap.String("order_id", o.ID),
			zap.String("charge_ref", string(ref)),
			zap.Error(err),
		)
	}
}

func (s *Service) balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	callCtx, cancel := s.externalContext(ctx)
	defer cancel()
	return s.ledger.Balance(callCtx, userID)
}

func (s *Service) debit(ctx context.Context, userID string, amount decimal.Decimal) error {
	callCtx, cancel := s.externalContext(ctx)
	defer cancel()
	return s.ledger.Debit(callCtx, userID, amount)
}

func (s *Service) credit(ctx context.Context, userID string, amount decimal.Decimal) error {
	callCtx, cancel := s.externalContext(ctx)
	defer cancel()
	return s.ledger.Credit(callCtx, userID, amount)
}

func (s *Service) capture(ctx context.Context, orderID string, amount decimal.Decimal, method payment.Method) (payment.ChargeRef, error) {
	callCtx, cancel := s.externalContext(ctx)
	defer cancel()
	return s.gateway.Capture(callCtx, orderID, amount, method)
}

func (s *Service) externalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.ExternalTimeout)
}

func (s *Service) emit(ctx context.Context, o *Order, kind, userID string, payload map[string]string) {
	s.sink.Emit(ctx, notify.Event{
		OrderID: o.ID,
		Kind:    kind,
		UserID:  userID,
		Payload: payload,
	})
}
