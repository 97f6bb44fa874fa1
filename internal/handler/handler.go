// Package handler exposes the order lifecycle as an HTTP JSON API. It is a
// thin presentation adapter: requests are decoded, the authenticated identity
// becomes the acting party, and domain errors map to status codes.
package handler

import (
	"net/http"

	"github.com/xenking/domain-escrow/internal/domain/listing"
	"github.com/xenking/domain-escrow/internal/domain/order"
	"github.com/xenking/domain-escrow/internal/domain/wallet"
)

// Handler holds the domain dependencies for all API endpoints.
type Handler struct {
	orders   *order.Service
	listings listing.Repository
	ledger   wallet.Ledger
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(orders *order.Service, listings listing.Repository, ledger wallet.Ledger) *Handler {
	return &Handler{
		orders:   orders,
		listings: listings,
		ledger:   ledger,
	}
}

// Routes registers all API endpoints on mux. Callers mount authentication
// around the returned mux; every handler assumes an identity in the context.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/orders", h.createOrder)
	mux.HandleFunc("GET /api/orders", h.listOrders)
	mux.HandleFunc("GET /api/orders/{id}", h.getOrder)
	mux.HandleFunc("POST /api/orders/{id}/pay", h.payOrder)
	mux.HandleFunc("POST /api/orders/{id}/close", h.closeOrder)
	mux.HandleFunc("POST /api/orders/{id}/transfer-code", h.submitTransferCode)
	mux.HandleFunc("POST /api/orders/{id}/confirm", h.confirmReceived)
	mux.HandleFunc("POST /api/orders/{id}/dispute", h.openDispute)
	mux.HandleFunc("POST /api/orders/{id}/dispute/resolve", h.resolveDispute)
	mux.HandleFunc("GET /api/listings", h.listListings)
	mux.HandleFunc("GET /api/wallet", h.getWallet)
}
