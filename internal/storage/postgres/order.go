package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/domain-escrow/internal/domain/order"
	"github.com/xenking/domain-escrow/internal/domain/payment"
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Value
// objects (breakdown, transfer code, settlement, dispute, timeline) are
// stored in JSONB columns; scalar fields get their own columns so the list
// filters translate to indexed predicates.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// JSONB representations. Kept separate from the domain types so column
// encoding never leaks into the aggregate.

type breakdownJSON struct {
	WalletAmount   decimal.Decimal `json:"walletAmount"`
	ExternalAmount decimal.Decimal `json:"externalAmount"`
	Method         string          `json:"method"`
	ChargeRef      string          `json:"chargeRef"`
}

type transferJSON struct {
	Code      string    `json:"code"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type settlementJSON struct {
	Amount      decimal.Decimal `json:"amount"`
	ScheduledAt time.Time       `json:"scheduledAt"`
}

type disputeJSON struct {
	Reason     string     `json:"reason"`
	OpenedAt   time.Time  `json:"openedAt"`
	OpenedFrom string     `json:"openedFrom"`
	Outcome    string     `json:"outcome,omitempty"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
}

type timelineJSON struct {
	At   time.Time `json:"at"`
	Kind string    `json:"kind"`
}

const orderColumns = `id, domain_name, registrar, buyer_id, seller_id, price, status,
	breakdown, transfer_code, settlement, dispute, timeline, created_at, updated_at`

func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	cols, err := encodeOrder(o)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		o.ID, o.DomainName, o.Registrar, o.BuyerID, o.SellerID, o.Price, string(o.Status),
		cols.breakdown, cols.transfer, cols.settlement, cols.dispute, cols.timeline,
		o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "insert order %q", o.ID)
	}
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, order.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get order %q", id)
	}
	return o, nil
}

func (r *OrderRepository) Update(ctx context.Context, o *order.Order) error {
	cols, err := encodeOrder(o)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx, `UPDATE orders SET
			status = $2, breakdown = $3, transfer_code = $4, settlement = $5,
			dispute = $6, timeline = $7, updated_at = $8
		WHERE id = $1`,
		o.ID, string(o.Status),
		cols.breakdown, cols.transfer, cols.settlement, cols.dispute, cols.timeline,
		o.UpdatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "update order %q", o.ID)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func (r *OrderRepository) List(ctx context.Context, f order.Filter) ([]*order.Order, error) {
	query, args := buildListQuery(f)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query orders")
	}
	defer rows.Close()

	var out []*order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan order")
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// buildListQuery translates a Filter into SQL with the same semantics as
// Filter.Match.
func buildListQuery(f order.Filter) (string, []any) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.UserID != "" {
		switch f.Side {
		case order.SideBuy:
			where = append(where, "buyer_id = "+arg(f.UserID))
		case order.SideSell:
			where = append(where, "seller_id = "+arg(f.UserID))
		default:
			p := arg(f.UserID)
			where = append(where, fmt.Sprintf("(buyer_id = %s OR seller_id = %s)", p, p))
		}
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		where = append(where, "status = ANY("+arg(statuses)+")")
	}
	if !f.CreatedFrom.IsZero() {
		where = append(where, "created_at >= "+arg(f.CreatedFrom))
	}
	if !f.CreatedTo.IsZero() {
		where = append(where, "created_at <= "+arg(f.CreatedTo))
	}
	if f.Search != "" {
		p := arg("%" + strings.ToLower(f.Search) + "%")
		where = append(where, fmt.Sprintf("(lower(id) LIKE %s OR lower(domain_name) LIKE %s)", p, p))
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"
	return query, args
}

type encodedColumns struct {
	breakdown  []byte
	transfer   []byte
	settlement []byte
	dispute    []byte
	timeline   []byte
}

func encodeOrder(o *order.Order) (encodedColumns, error) {
	var cols encodedColumns
	var err error

	if o.Breakdown != nil {
		cols.breakdown, err = json.Marshal(breakdownJSON{
			WalletAmount:   o.Breakdown.WalletAmount,
			ExternalAmount: o.Breakdown.ExternalAmount,
			Method:         string(o.Breakdown.Method),
			ChargeRef:      string(o.Breakdown.ChargeRef),
		})
		if err != nil {
			return cols, errors.Wrap(err, "marshal breakdown")
		}
	}
	if o.Transfer != nil {
		cols.transfer, err = json.Marshal(transferJSON(*o.Transfer))
		if err != nil {
			return cols, errors.Wrap(err, "marshal transfer code")
		}
	}
	if o.Payout != nil {
		cols.settlement, err = json.Marshal(settlementJSON(*o.Payout))
		if err != nil {
			return cols, errors.Wrap(err, "marshal settlement")
		}
	}
	if o.Dispute != nil {
		cols.dispute, err = json.Marshal(disputeJSON{
			Reason:     o.Dispute.Reason,
			OpenedAt:   o.Dispute.OpenedAt,
			OpenedFrom: string(o.Dispute.OpenedFrom),
			Outcome:    string(o.Dispute.Outcome),
			ResolvedAt: o.Dispute.ResolvedAt,
		})
		if err != nil {
			return cols, errors.Wrap(err, "marshal dispute")
		}
	}

	timeline := make([]timelineJSON, len(o.Timeline))
	for i, e := range o.Timeline {
		timeline[i] = timelineJSON(e)
	}
	cols.timeline, err = json.Marshal(timeline)
	if err != nil {
		return cols, errors.Wrap(err, "marshal timeline")
	}

	return cols, nil
}

func scanOrder(row pgx.Row) (*order.Order, error) {
	var (
		o      order.Order
		status string
		cols   encodedColumns
	)
	err := row.Scan(
		&o.ID, &o.DomainName, &o.Registrar, &o.BuyerID, &o.SellerID, &o.Price, &status,
		&cols.breakdown, &cols.transfer, &cols.settlement, &cols.dispute, &cols.timeline,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.Status = order.Status(status)

	if cols.breakdown != nil {
		var b breakdownJSON
		if err := json.Unmarshal(cols.breakdown, &b); err != nil {
			return nil, errors.Wrap(err, "unmarshal breakdown")
		}
		o.Breakdown = &order.PaymentBreakdown{
			WalletAmount:   b.WalletAmount,
			ExternalAmount: b.ExternalAmount,
			Method:         payment.Method(b.Method),
			ChargeRef:      payment.ChargeRef(b.ChargeRef),
		}
	}
	if cols.transfer != nil {
		var t transferJSON
		if err := json.Unmarshal(cols.transfer, &t); err != nil {
			return nil, errors.Wrap(err, "unmarshal transfer code")
		}
		tc := order.TransferCode(t)
		o.Transfer = &tc
	}
	if cols.settlement != nil {
		var s settlementJSON
		if err := json.Unmarshal(cols.settlement, &s); err != nil {
			return nil, errors.Wrap(err, "unmarshal settlement")
		}
		p := order.Settlement(s)
		o.Payout = &p
	}
	if cols.dispute != nil {
		var d disputeJSON
		if err := json.Unmarshal(cols.dispute, &d); err != nil {
			return nil, errors.Wrap(err, "unmarshal dispute")
		}
		o.Dispute = &order.Dispute{
			Reason:     d.Reason,
			OpenedAt:   d.OpenedAt,
			OpenedFrom: order.Status(d.OpenedFrom),
			Outcome:    order.DisputeOutcome(d.Outcome),
			ResolvedAt: d.ResolvedAt,
		}
	}

	var timeline []timelineJSON
	if err := json.Unmarshal(cols.timeline, &timeline); err != nil {
		return nil, errors.Wrap(err, "unmarshal timeline")
	}
	o.Timeline = make([]order.TimelineEntry, len(timeline))
	for i, e := range timeline {
		o.Timeline[i] = order.TimelineEntry(e)
	}

	return &o, nil
}
