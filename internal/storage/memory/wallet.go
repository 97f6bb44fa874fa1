package memory

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/xenking/domain-escrow/internal/domain/wallet"
)

// WalletLedger implements wallet.Ledger over an in-process balance map.
// Unknown users start at zero balance on credit and fail debits.
type WalletLedger struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal
}

var _ wallet.Ledger = (*WalletLedger)(nil)

// NewWalletLedger returns an empty in-memory ledger.
func NewWalletLedger() *WalletLedger {
	return &WalletLedger{balances: make(map[string]decimal.Decimal)}
}

// SetBalance seeds a user balance; intended for tests and demo data.
func (l *WalletLedger) SetBalance(userID string, balance decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[userID] = balance
}

func (l *WalletLedger) Balance(_ context.Context, userID string) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[userID], nil
}

func (l *WalletLedger) Debit(_ context.Context, userID string, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	balance := l.balances[userID]
	if balance.LessThan(amount) {
		return wallet.ErrInsufficientBalance
	}
	l.balances[userID] = balance.Sub(amount)
	return nil
}

func (l *WalletLedger) Credit(_ context.Context, userID string, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[userID] = l.balances[userID].Add(amount)
	return nil
}
