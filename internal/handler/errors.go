package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/domain-escrow/internal/domain/order"
)

func writeError(w http.ResponseWriter, status int, message string) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Int(status) })
		e.Field("message", func(e *jx.Encoder) { e.Str(message) })
	})
	writeJSON(w, status, &e)
}

// writeDomainError maps lifecycle errors to HTTP statuses. Unexpected errors
// are logged with full context and surface as 500.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, order.ErrNotFound):
		writeError(w, http.StatusNotFound, "order not found")
		return
	case errors.Is(err, order.ErrActorNotAuthorized):
		writeError(w, http.StatusForbidden, err.Error())
		return
	case errors.Is(err, order.ErrTransferCodeExpired),
		errors.Is(err, order.ErrInsufficientBalance):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	var invalid *order.InvalidTransitionError
	if errors.As(err, &invalid) {
		writeError(w, http.StatusConflict, invalid.Error())
		return
	}

	var capture *order.PaymentCaptureError
	if errors.As(err, &capture) {
		writeError(w, http.StatusUnprocessableEntity, capture.Error())
		return
	}

	var validation *order.ValidationError
	if errors.As(err, &validation) {
		writeError(w, http.StatusBadRequest, validation.Error())
		return
	}

	zctx.From(r.Context()).Error("request failed",
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, "internal error")
}
