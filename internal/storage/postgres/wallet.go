package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/domain-escrow/internal/domain/wallet"
)

var _ wallet.Ledger = (*WalletLedger)(nil)

// WalletLedger implements wallet.Ledger backed by PostgreSQL. Debits are a
// single conditional UPDATE, so concurrent debits can never take a balance
// below zero.
type WalletLedger struct {
	pool *pgxpool.Pool
}

// NewWalletLedger returns a WalletLedger that uses the given pool.
func NewWalletLedger(pool *pgxpool.Pool) *WalletLedger {
	return &WalletLedger{pool: pool}
}

func (l *WalletLedger) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := l.pool.QueryRow(ctx,
		`SELECT balance FROM wallet_accounts WHERE user_id = $1`, userID,
	).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "balance of %q", userID)
	}
	return balance, nil
}

func (l *WalletLedger) Debit(ctx context.Context, userID string, amount decimal.Decimal) error {
	tag, err := l.pool.Exec(ctx,
		`UPDATE wallet_accounts SET balance = balance - $2, updated_at = now()
		 WHERE user_id = $1 AND balance >= $2`,
		userID, amount,
	)
	if err != nil {
		return errors.Wrapf(err, "debit %q", userID)
	}
	if tag.RowsAffected() == 0 {
		return wallet.ErrInsufficientBalance
	}
	return nil
}

// SetBalance overwrites an account balance. Used by seeding; not part of the
// wallet.Ledger interface.
func (l *WalletLedger) SetBalance(ctx context.Context, userID string, balance decimal.Decimal) error {
	_, err := l.pool.Exec(ctx,
		`INSERT INTO wallet_accounts (user_id, balance) VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE
		 SET balance = EXCLUDED.balance, updated_at = now()`,
		userID, balance,
	)
	if err != nil {
		return errors.Wrapf(err, "set balance of %q", userID)
	}
	return nil
}

func (l *WalletLedger) Credit(ctx context.Context, userID string, amount decimal.Decimal) error {
	_, err := l.pool.Exec(ctx,
		`INSERT INTO wallet_accounts (user_id, balance) VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE
		 SET balance = wallet_accounts.balance + EXCLUDED.balance, updated_at = now()`,
		userID, amount,
	)
	if err != nil {
		return errors.Wrapf(err, "credit %q", userID)
	}
	return nil
}
