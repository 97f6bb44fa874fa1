// Package payment defines the external payment gateway boundary. The order
// lifecycle captures the non-wallet part of the price through it and refunds
// captured charges when an order is closed or a dispute is refunded.
package payment

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Method identifies the external payment instrument chosen by the buyer.
type Method string

const (
	MethodCreditCard Method = "credit_card"
	MethodAlipay     Method = "alipay"
	MethodWeChat     Method = "wechat"
	MethodPayPal     Method = "paypal"
)

// Valid reports whether m is a known payment method.
func (m Method) Valid() bool {
	switch m {
	case MethodCreditCard, MethodAlipay, MethodWeChat, MethodPayPal:
		return true
	}
	return false
}

// ChargeRef identifies a captured charge at the gateway, needed for refunds.
type ChargeRef string

// ErrCaptureDeclined is returned when the gateway refuses to capture a charge.
var ErrCaptureDeclined = errors.New("payment capture declined")

// Gateway is the external payment processor boundary.
type Gateway interface {
	Capture(ctx context.Context, orderID string, amount decimal.Decimal, method Method) (ChargeRef, error)
	Refund(ctx context.Context, orderID string, ref ChargeRef) error
}
