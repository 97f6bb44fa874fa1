package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/jx"

	"github.com/xenking/domain-escrow/internal/domain/auth"
	"github.com/xenking/domain-escrow/internal/domain/listing"
	"github.com/xenking/domain-escrow/internal/domain/order"
	"github.com/xenking/domain-escrow/internal/domain/payment"
)

// createOrder opens an escrow order for a listed domain. The authenticated
// user becomes the buyer; seller, price, and registrar come from the listing.
func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var domainName string
	err := decodeBody(r, map[string]func(d *jx.Decoder) error{
		"domainName": func(d *jx.Decoder) error {
			v, err := d.Str()
			domainName = v
			return err
		},
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if domainName == "" {
		writeError(w, http.StatusBadRequest, "domainName is required")
		return
	}

	l, err := h.listings.GetByDomain(r.Context(), domainName)
	if err != nil {
		if err == listing.ErrNotFound {
			writeError(w, http.StatusNotFound, "domain is not listed for sale")
			return
		}
		writeDomainError(w, r, err)
		return
	}

	o, err := h.orders.CreateOrder(r.Context(), order.CreateOrderRequest{
		BuyerID:    id.UserID,
		SellerID:   l.SellerID,
		DomainName: l.DomainName,
		Registrar:  l.Registrar,
		Price:      l.Price,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeOrder(&e, o)
	writeJSON(w, http.StatusCreated, &e)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	o, err := h.orders.GetOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	// Only the parties and arbiters may view an order.
	if id.Role != auth.RoleArbiter && id.UserID != o.BuyerID && id.UserID != o.SellerID {
		writeError(w, http.StatusForbidden, "not a party to this order")
		return
	}

	var e jx.Encoder
	encodeOrder(&e, o)
	writeJSON(w, http.StatusOK, &e)
}

// listOrders returns the caller's orders, filtered by the query parameters
// side (buy|sell), status (comma-separated), from, to (RFC 3339), and q
// (free-text over order id and domain name). Arbiters see all orders.
func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	q := r.URL.Query()
	f := order.Filter{
		Side:   order.Side(q.Get("side")),
		Search: q.Get("q"),
	}
	if id.Role != auth.RoleArbiter {
		f.UserID = id.UserID
	}

	if raw := q.Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			f.Statuses = append(f.Statuses, order.Status(strings.TrimSpace(s)))
		}
	}
	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from timestamp")
			return
		}
		f.CreatedFrom = t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid to timestamp")
			return
		}
		f.CreatedTo = t
	}

	found, err := h.orders.ListOrders(r.Context(), f)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("orders", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, o := range found {
					encodeOrder(e, o)
				}
			})
		})
	})
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) payOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var (
		method    string
		useWallet bool
	)
	err := decodeBody(r, map[string]func(d *jx.Decoder) error{
		"method": func(d *jx.Decoder) error {
			v, err := d.Str()
			method = v
			return err
		},
		"useWallet": func(d *jx.Decoder) error {
			v, err := d.Bool()
			useWallet = v
			return err
		},
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	o, err := h.orders.Pay(r.Context(), id.UserID, r.PathValue("id"), payment.Method(method), useWallet)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeOrder(&e, o)
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) closeOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	o, err := h.orders.Close(r.Context(), id.UserID, r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeOrder(&e, o)
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) submitTransferCode(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var (
		code      string
		expiresAt time.Time
	)
	err := decodeBody(r, map[string]func(d *jx.Decoder) error{
		"code": func(d *jx.Decoder) error {
			v, err := d.Str()
			code = v
			return err
		},
		"expiresAt": func(d *jx.Decoder) error {
			raw, err := d.Str()
			if err != nil {
				return err
			}
			expiresAt, err = time.Parse(time.RFC3339, raw)
			return err
		},
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	o, err := h.orders.SubmitTransferCode(r.Context(), id.UserID, r.PathValue("id"), code, expiresAt)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeOrder(&e, o)
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) confirmReceived(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var code string
	err := decodeBody(r, map[string]func(d *jx.Decoder) error{
		"code": func(d *jx.Decoder) error {
			v, err := d.Str()
			code = v
			return err
		},
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	o, err := h.orders.ConfirmReceived(r.Context(), id.UserID, r.PathValue("id"), code)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeOrder(&e, o)
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) openDispute(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var reason string
	err := decodeBody(r, map[string]func(d *jx.Decoder) error{
		"reason": func(d *jx.Decoder) error {
			v, err := d.Str()
			reason = v
			return err
		},
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	o, err := h.orders.OpenDispute(r.Context(), id.UserID, r.PathValue("id"), reason)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeOrder(&e, o)
	writeJSON(w, http.StatusOK, &e)
}

// resolveDispute applies an arbitration decision. Arbiter keys only.
func (h *Handler) resolveDispute(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if id.Role != auth.RoleArbiter {
		writeError(w, http.StatusForbidden, "arbiter role required")
		return
	}

	var outcome string
	err := decodeBody(r, map[string]func(d *jx.Decoder) error{
		"outcome": func(d *jx.Decoder) error {
			v, err := d.Str()
			outcome = v
			return err
		},
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	o, err := h.orders.ResolveDispute(r.Context(), r.PathValue("id"), order.DisputeOutcome(outcome))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeOrder(&e, o)
	writeJSON(w, http.StatusOK, &e)
}
