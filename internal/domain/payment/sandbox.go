package payment

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// Sandbox is a deterministic in-process Gateway for demo deployments and
// tests. Outcomes are controlled by configuration, never by chance: a capture
// succeeds unless DeclineAbove is set and the amount exceeds it, or the order
// id was explicitly marked to fail.
type Sandbox struct {
	// DeclineAbove, when positive, declines captures above this amount.
	DeclineAbove decimal.Decimal

	mu       sync.Mutex
	seq      int
	declined map[string]struct{}
	captured map[ChargeRef]decimal.Decimal
	refunded map[ChargeRef]struct{}
}

// NewSandbox returns an empty sandbox gateway that approves everything.
func NewSandbox() *Sandbox {
	return &Sandbox{
		declined: make(map[string]struct{}),
		captured: make(map[ChargeRef]decimal.Decimal),
		refunded: make(map[ChargeRef]struct{}),
	}
}

// DeclineOrder marks future captures for the given order id as declined.
func (s *Sandbox) DeclineOrder(orderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.declined[orderID] = struct{}{}
}

func (s *Sandbox) Capture(_ context.Context, orderID string, amount decimal.Decimal, _ Method) (ChargeRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.declined[orderID]; ok {
		return "", ErrCaptureDeclined
	}
	if s.DeclineAbove.IsPositive() && amount.GreaterThan(s.DeclineAbove) {
		return "", ErrCaptureDeclined
	}

	s.seq++
	ref := ChargeRef(fmt.Sprintf("sandbox-%06d", s.seq))
	s.captured[ref] = amount
	return ref, nil
}

func (s *Sandbox) Refund(_ context.Context, _ string, ref ChargeRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.captured[ref]; !ok {
		return fmt.Errorf("unknown charge %s", ref)
	}
	s.refunded[ref] = struct{}{}
	return nil
}

// Captured returns the amount captured under ref and whether it exists.
func (s *Sandbox) Captured(ref ChargeRef) (decimal.Decimal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	amount, ok := s.captured[ref]
	return amount, ok
}

// Refunded reports whether ref has been refunded.
func (s *Sandbox) Refunded(ref ChargeRef) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.refunded[ref]
	return ok
}
