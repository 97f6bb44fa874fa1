// Package order implements the escrow order lifecycle: the state machine
// between buyer payment and seller settlement, transfer-code issuance and
// expiry, dispute arbitration effects, and delayed payout scheduling.
package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/domain-escrow/internal/domain/payment"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPendingPayment      Status = "pending_payment"
	StatusPendingTransfer     Status = "pending_transfer"
	StatusPendingConfirmation Status = "pending_confirmation"
	StatusPendingSettlement   Status = "pending_settlement"
	StatusCompleted           Status = "completed"
	StatusClosed              Status = "closed"
	StatusDisputed            Status = "disputed"
)

// Terminal reports whether no further transitions are possible from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusClosed
}

// Timeline event kinds, appended exactly once per transition.
const (
	EventCreated             = "created"
	EventPaid                = "paid"
	EventClosed              = "closed"
	EventTransferCodeSet     = "transfer code submitted"
	EventTransferCodeExpired = "transfer code expired"
	EventConfirmed           = "confirmed"
	EventSettled             = "settled"
	EventDisputeOpened       = "dispute opened"
	EventDisputeResolved     = "dispute resolved"
)

// PaymentBreakdown records how the price was covered at capture time. The two
// amounts always sum to the order price.
type PaymentBreakdown struct {
	WalletAmount   decimal.Decimal
	ExternalAmount decimal.Decimal
	Method         payment.Method
	ChargeRef      payment.ChargeRef
}

// TransferCode is the time-bounded authorization code the seller provides so
// the buyer can pull the domain into their own registrar account.
type TransferCode struct {
	Code      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the code is no longer valid at now.
func (tc TransferCode) Expired(now time.Time) bool {
	return now.After(tc.ExpiresAt)
}

// Settlement is the scheduled payout of sale proceeds minus the platform fee.
// Amount is computed once when settlement is scheduled and never recomputed,
// so fee-rate changes cannot affect in-flight orders.
type Settlement struct {
	Amount      decimal.Decimal
	ScheduledAt time.Time
}

// DisputeOutcome is the external arbitration decision fed into the lifecycle.
type DisputeOutcome string

const (
	// OutcomeResume returns the order to the state it was disputed from so
	// the transfer can continue.
	OutcomeResume DisputeOutcome = "resume"
	// OutcomeRelease rules for the seller: the transfer is deemed complete
	// and settlement is scheduled.
	OutcomeRelease DisputeOutcome = "release"
	// OutcomeRefund rules for the buyer: the captured payment is refunded
	// and the order closed.
	OutcomeRefund DisputeOutcome = "refund"
)

// Valid reports whether o is a known arbitration outcome.
func (o DisputeOutcome) Valid() bool {
	return o == OutcomeResume || o == OutcomeRelease || o == OutcomeRefund
}

// Dispute is a buyer-raised hold on an order pending arbitration. Once
// ResolvedAt is set the record is immutable.
type Dispute struct {
	Reason     string
	OpenedAt   time.Time
	OpenedFrom Status
	Outcome    DisputeOutcome
	ResolvedAt *time.Time
}

// Resolved reports whether arbitration has concluded.
func (d Dispute) Resolved() bool {
	return d.ResolvedAt != nil
}

// TimelineEntry is one audit record. The timeline is append-only.
type TimelineEntry struct {
	At   time.Time
	Kind string
}

// Order is the escrow aggregate for one domain sale between one buyer and one
// seller. Status moves only through Service transitions; external code must
// treat instances returned by queries as read-only snapshots.
type Order struct {
	ID         string
	DomainName string
	Registrar  string
	BuyerID    string
	SellerID   string
	Price      decimal.Decimal

	Status    Status
	Breakdown *PaymentBreakdown
	Transfer  *TransferCode
	Payout    *Settlement
	Dispute   *Dispute
	Timeline  []TimelineEntry

	CreatedAt time.Time
	UpdatedAt time.Time
}

// append records a timeline entry and bumps UpdatedAt.
func (o *Order) append(now time.Time, kind string) {
	o.Timeline = append(o.Timeline, TimelineEntry{At: now, Kind: kind})
	o.UpdatedAt = now
}

// clone returns a deep copy safe to hand out as a snapshot.
func (o *Order) clone() *Order {
	cp := *o
	if o.Breakdown != nil {
		b := *o.Breakdown
		cp.Breakdown = &b
	}
	if o.Transfer != nil {
		t := *o.Transfer
		cp.Transfer = &t
	}
	if o.Payout != nil {
		p := *o.Payout
		cp.Payout = &p
	}
	if o.Dispute != nil {
		d := *o.Dispute
		if o.Dispute.ResolvedAt != nil {
			at := *o.Dispute.ResolvedAt
			d.ResolvedAt = &at
		}
		cp.Dispute = &d
	}
	cp.Timeline = make([]TimelineEntry, len(o.Timeline))
	copy(cp.Timeline, o.Timeline)
	return &cp
}

// Repository defines persistence operations for orders. Update must replace
// the stored aggregate atomically; the Service serializes writers per order,
// so implementations never see concurrent updates for the same id.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	Update(ctx context.Context, o *Order) error
	List(ctx context.Context, f Filter) ([]*Order, error)
}
