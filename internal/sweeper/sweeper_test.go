package sweeper_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/xenking/domain-escrow/internal/clock"
	"github.com/xenking/domain-escrow/internal/domain/order"
	"github.com/xenking/domain-escrow/internal/domain/payment"
	"github.com/xenking/domain-escrow/internal/notify"
	"github.com/xenking/domain-escrow/internal/storage/memory"
	"github.com/xenking/domain-escrow/internal/sweeper"
)

func TestRun_SweepsExpiredCodes(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC))
	orders := memory.NewOrderRepository()
	svc := order.NewService(orders, payment.NewSandbox(), memory.NewWalletLedger(), notify.Discard{}, clk, order.Config{
		FeeRate:        decimal.RequireFromString("0.10"),
		SettlementDays: 3,
	})

	ctx := context.Background()
	o, err := svc.CreateOrder(ctx, order.CreateOrderRequest{
		BuyerID:    "buyer",
		SellerID:   "seller",
		DomainName: "example.com",
		Price:      decimal.NewFromInt(100),
	})
	require.NoError(t, err)
	_, err = svc.Pay(ctx, "buyer", o.ID, payment.MethodCreditCard, false)
	require.NoError(t, err)
	_, err = svc.SubmitTransferCode(ctx, "seller", o.ID, "AUTH-1", clk.Now().Add(time.Hour))
	require.NoError(t, err)

	// Code lapses; the next tick must revert the order.
	clk.Advance(2 * time.Hour)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = sweeper.New(svc, 5*time.Millisecond, noop.NewTracerProvider()).Run(runCtx)
	}()

	require.Eventually(t, func() bool {
		got, err := orders.Get(ctx, o.ID)
		return err == nil && got.Status == order.StatusPendingTransfer
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done

	got, err := orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Transfer)
}

func TestRun_StopsOnCancel(t *testing.T) {
	clk := clock.NewFake(time.Now())
	svc := order.NewService(memory.NewOrderRepository(), payment.NewSandbox(), memory.NewWalletLedger(), notify.Discard{}, clk, order.Config{
		FeeRate: decimal.RequireFromString("0.10"),
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sweeper.New(svc, time.Millisecond, noop.NewTracerProvider()).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
