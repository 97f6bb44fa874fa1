package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/jx"

	"github.com/xenking/domain-escrow/internal/domain/listing"
	"github.com/xenking/domain-escrow/internal/domain/order"
)

// JSON encoding for API responses. Monetary amounts are serialized as
// strings so clients never lose precision to float parsing.

func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("domainName", func(e *jx.Encoder) { e.Str(o.DomainName) })
		e.Field("registrar", func(e *jx.Encoder) { e.Str(o.Registrar) })
		e.Field("buyerId", func(e *jx.Encoder) { e.Str(o.BuyerID) })
		e.Field("sellerId", func(e *jx.Encoder) { e.Str(o.SellerID) })
		e.Field("price", func(e *jx.Encoder) { e.Str(o.Price.String()) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(o.Status)) })

		if o.Breakdown != nil {
			e.Field("paymentBreakdown", func(e *jx.Encoder) {
				e.Obj(func(e *jx.Encoder) {
					e.Field("walletAmount", func(e *jx.Encoder) { e.Str(o.Breakdown.WalletAmount.String()) })
					e.Field("externalAmount", func(e *jx.Encoder) { e.Str(o.Breakdown.ExternalAmount.String()) })
					e.Field("method", func(e *jx.Encoder) { e.Str(string(o.Breakdown.Method)) })
				})
			})
		}

		if o.Transfer != nil {
			e.Field("transferCode", func(e *jx.Encoder) {
				e.Obj(func(e *jx.Encoder) {
					e.Field("code", func(e *jx.Encoder) { e.Str(o.Transfer.Code) })
					e.Field("issuedAt", func(e *jx.Encoder) { e.Str(o.Transfer.IssuedAt.Format(time.RFC3339)) })
					e.Field("expiresAt", func(e *jx.Encoder) { e.Str(o.Transfer.ExpiresAt.Format(time.RFC3339)) })
				})
			})
		}

		if o.Payout != nil {
			e.Field("settlement", func(e *jx.Encoder) {
				e.Obj(func(e *jx.Encoder) {
					e.Field("amount", func(e *jx.Encoder) { e.Str(o.Payout.Amount.String()) })
					e.Field("scheduledAt", func(e *jx.Encoder) { e.Str(o.Payout.ScheduledAt.Format(time.RFC3339)) })
				})
			})
		}

		if o.Dispute != nil {
			e.Field("dispute", func(e *jx.Encoder) {
				e.Obj(func(e *jx.Encoder) {
					e.Field("reason", func(e *jx.Encoder) { e.Str(o.Dispute.Reason) })
					e.Field("openedAt", func(e *jx.Encoder) { e.Str(o.Dispute.OpenedAt.Format(time.RFC3339)) })
					if o.Dispute.Resolved() {
						e.Field("outcome", func(e *jx.Encoder) { e.Str(string(o.Dispute.Outcome)) })
						e.Field("resolvedAt", func(e *jx.Encoder) { e.Str(o.Dispute.ResolvedAt.Format(time.RFC3339)) })
					}
				})
			})
		}

		e.Field("timeline", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, entry := range o.Timeline {
					e.Obj(func(e *jx.Encoder) {
						e.Field("at", func(e *jx.Encoder) { e.Str(entry.At.Format(time.RFC3339)) })
						e.Field("event", func(e *jx.Encoder) { e.Str(entry.Kind) })
					})
				}
			})
		})

		e.Field("createdAt", func(e *jx.Encoder) { e.Str(o.CreatedAt.Format(time.RFC3339)) })
		e.Field("updatedAt", func(e *jx.Encoder) { e.Str(o.UpdatedAt.Format(time.RFC3339)) })
	})
}

func encodeListing(e *jx.Encoder, l listing.Listing) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(l.ID) })
		e.Field("domainName", func(e *jx.Encoder) { e.Str(l.DomainName) })
		e.Field("price", func(e *jx.Encoder) { e.Str(l.Price.String()) })
		e.Field("registrar", func(e *jx.Encoder) { e.Str(l.Registrar) })
	})
}

// decodeBody decodes a JSON object body, dispatching each key to fields.
// Unknown keys are skipped.
func decodeBody(r *http.Request, fields map[string]func(d *jx.Decoder) error) error {
	d := jx.Decode(r.Body, 4096)
	return d.Obj(func(d *jx.Decoder, key string) error {
		if fn, ok := fields[key]; ok {
			return fn(d)
		}
		return d.Skip()
	})
}
