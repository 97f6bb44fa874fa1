// Package wallet defines the platform wallet ledger the order lifecycle
// debits on payment and credits on settlement or refund.
package wallet

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrInsufficientBalance is returned by Debit when the account balance does
// not cover the requested amount.
var ErrInsufficientBalance = errors.New("insufficient wallet balance")

// ErrAccountNotFound is returned when no wallet account exists for a user.
var ErrAccountNotFound = errors.New("wallet account not found")

// Ledger holds user wallet balances. Debit and Credit are fallible remote
// calls from the lifecycle's point of view; implementations must be safe for
// concurrent use.
type Ledger interface {
	Balance(ctx context.Context, userID string) (decimal.Decimal, error)
	Debit(ctx context.Context, userID string, amount decimal.Decimal) error
	Credit(ctx context.Context, userID string, amount decimal.Decimal) error
}

// Account is a user wallet balance row.
type Account struct {
	UserID  string
	Balance decimal.Decimal
}
