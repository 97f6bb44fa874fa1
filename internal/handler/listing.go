package handler

import (
	"net/http"

	"github.com/go-faster/jx"
)

func (h *Handler) listListings(w http.ResponseWriter, r *http.Request) {
	found, err := h.listings.List(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("listings", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, l := range found {
					encodeListing(e, l)
				}
			})
		})
	})
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) getWallet(w http.ResponseWriter, r *http.Request) {
	id, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	balance, err := h.ledger.Balance(r.Context(), id.UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("userId", func(e *jx.Encoder) { e.Str(id.UserID) })
		e.Field("balance", func(e *jx.Encoder) { e.Str(balance.String()) })
	})
	writeJSON(w, http.StatusOK, &e)
}
