package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/domain-escrow/internal/clock"
	"github.com/xenking/domain-escrow/internal/domain/auth"
	"github.com/xenking/domain-escrow/internal/domain/listing"
	"github.com/xenking/domain-escrow/internal/domain/order"
	"github.com/xenking/domain-escrow/internal/domain/payment"
	"github.com/xenking/domain-escrow/internal/handler"
	"github.com/xenking/domain-escrow/internal/notify"
	"github.com/xenking/domain-escrow/internal/storage/memory"
)

const pepper = "test-pepper"

// Raw API keys registered by newEnv. The user id is derived from the key name.
const (
	keyBuyer   = "key-buyer"
	keySeller  = "key-seller"
	keyArbiter = "key-arbiter"
)

type env struct {
	clock  *clock.Fake
	ledger *memory.WalletLedger
	srv    http.Handler
}

func newEnv(t *testing.T) *env {
	t.Helper()

	e := &env{
		clock:  clock.NewFake(time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)),
		ledger: memory.NewWalletLedger(),
	}

	orders := memory.NewOrderRepository()
	listings := memory.NewListingRepository()
	keys := memory.NewAPIKeyRepository()

	svc := order.NewService(orders, payment.NewSandbox(), e.ledger, notify.Discard{}, e.clock, order.Config{
		FeeRate:        decimal.RequireFromString("0.10"),
		SettlementDays: 3,
	})

	require.NoError(t, listings.CreateBatch(context.Background(), []listing.Listing{{
		ID:         "lst-1",
		DomainName: "example.com",
		SellerID:   "seller",
		Price:      decimal.RequireFromString("100.00"),
		Registrar:  "GoDaddy",
		CreatedAt:  e.clock.Now(),
	}}))

	authn := handler.NewAuthenticator(keys, []byte(pepper))
	for raw, id := range map[string]auth.Identity{
		keyBuyer:   {UserID: "buyer", Name: "Buyer", Role: auth.RoleUser},
		keySeller:  {UserID: "seller", Name: "Seller", Role: auth.RoleUser},
		keyArbiter: {UserID: "arbiter-1", Name: "Arbiter", Role: auth.RoleArbiter},
	} {
		id.KeyHash = authn.HashKey(raw)
		keys.Add(id)
	}

	mux := http.NewServeMux()
	handler.NewHandler(svc, listings, e.ledger).Routes(mux)
	e.srv = authn.Middleware(mux)
	return e
}

func (e *env) do(t *testing.T, method, path, apiKey, body string) *httptest.ResponseRecorder {
	t.Helper()

	var rd *strings.Reader
	if body == "" {
		rd = strings.NewReader("{}")
	} else {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	w := httptest.NewRecorder()
	e.srv.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), "body: %s", w.Body.String())
	return body
}

// createOrder drives the API to an open order and returns its id.
func (e *env) createOrder(t *testing.T) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/orders", keyBuyer, `{"domainName":"example.com"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode(t, w)["id"].(string)
}

func (e *env) payOrder(t *testing.T, id string) {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/orders/"+id+"/pay", keyBuyer, `{"method":"credit_card","useWallet":false}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestAuth_MissingKey(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodGet, "/api/orders", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_UnknownKey(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodGet, "/api/orders", "nope", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateOrder(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodPost, "/api/orders", keyBuyer, `{"domainName":"example.com"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	body := decode(t, w)
	assert.Equal(t, "pending_payment", body["status"])
	assert.Equal(t, "buyer", body["buyerId"])
	assert.Equal(t, "seller", body["sellerId"])
	assert.Equal(t, "100.00", body["price"])
	assert.Equal(t, "example.com", body["domainName"])
}

func TestCreateOrder_UnlistedDomain(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodPost, "/api/orders", keyBuyer, `{"domainName":"nope.net"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateOrder_OwnListing(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodPost, "/api/orders", keySeller, `{"domainName":"example.com"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, "seller cannot buy their own domain")
}

func TestPayOrder(t *testing.T) {
	e := newEnv(t)
	id := e.createOrder(t)

	w := e.do(t, http.MethodPost, "/api/orders/"+id+"/pay", keyBuyer, `{"method":"alipay","useWallet":false}`)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, "pending_transfer", body["status"])
	breakdown := body["paymentBreakdown"].(map[string]any)
	assert.Equal(t, "100.00", breakdown["externalAmount"])
	assert.Equal(t, "alipay", breakdown["method"])
}

func TestPayOrder_WrongActor(t *testing.T) {
	e := newEnv(t)
	id := e.createOrder(t)

	w := e.do(t, http.MethodPost, "/api/orders/"+id+"/pay", keySeller, `{"method":"credit_card"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestPayOrder_Twice(t *testing.T) {
	e := newEnv(t)
	id := e.createOrder(t)
	e.payOrder(t, id)

	w := e.do(t, http.MethodPost, "/api/orders/"+id+"/pay", keyBuyer, `{"method":"credit_card"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestTransferCodeFlow(t *testing.T) {
	e := newEnv(t)
	id := e.createOrder(t)
	e.payOrder(t, id)

	expires := e.clock.Now().Add(48 * time.Hour).Format(time.RFC3339)
	w := e.do(t, http.MethodPost, "/api/orders/"+id+"/transfer-code", keySeller,
		`{"code":"AUTH-1","expiresAt":"`+expires+`"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "pending_confirmation", body["status"])

	w = e.do(t, http.MethodPost, "/api/orders/"+id+"/confirm", keyBuyer, `{"code":"AUTH-1"}`)
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	assert.Equal(t, "pending_settlement", body["status"])
	settlement := body["settlement"].(map[string]any)
	assert.Equal(t, "90.00", settlement["amount"])
}

func TestConfirm_WrongCode(t *testing.T) {
	e := newEnv(t)
	id := e.createOrder(t)
	e.payOrder(t, id)

	expires := e.clock.Now().Add(48 * time.Hour).Format(time.RFC3339)
	w := e.do(t, http.MethodPost, "/api/orders/"+id+"/transfer-code", keySeller,
		`{"code":"AUTH-1","expiresAt":"`+expires+`"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodPost, "/api/orders/"+id+"/confirm", keyBuyer, `{"code":"WRONG"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConfirm_ExpiredCode(t *testing.T) {
	e := newEnv(t)
	id := e.createOrder(t)
	e.payOrder(t, id)

	expires := e.clock.Now().Add(time.Hour).Format(time.RFC3339)
	w := e.do(t, http.MethodPost, "/api/orders/"+id+"/transfer-code", keySeller,
		`{"code":"AUTH-1","expiresAt":"`+expires+`"}`)
	require.Equal(t, http.StatusOK, w.Code)

	e.clock.Advance(2 * time.Hour)
	w = e.do(t, http.MethodPost, "/api/orders/"+id+"/confirm", keyBuyer, `{"code":"AUTH-1"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestDisputeFlow(t *testing.T) {
	e := newEnv(t)
	id := e.createOrder(t)
	e.payOrder(t, id)

	w := e.do(t, http.MethodPost, "/api/orders/"+id+"/dispute", keyBuyer, `{"reason":"seller unresponsive"}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "disputed", body["status"])

	// Only arbiters may resolve.
	w = e.do(t, http.MethodPost, "/api/orders/"+id+"/dispute/resolve", keyBuyer, `{"outcome":"refund"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(t, http.MethodPost, "/api/orders/"+id+"/dispute/resolve", keyArbiter, `{"outcome":"refund"}`)
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	assert.Equal(t, "closed", body["status"])
	dispute := body["dispute"].(map[string]any)
	assert.Equal(t, "refund", dispute["outcome"])
}

func TestGetOrder_Visibility(t *testing.T) {
	e := newEnv(t)
	id := e.createOrder(t)

	for _, key := range []string{keyBuyer, keySeller, keyArbiter} {
		w := e.do(t, http.MethodGet, "/api/orders/"+id, key, "")
		assert.Equal(t, http.StatusOK, w.Code, "key %s", key)
	}
}

func TestGetOrder_NotFound(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodGet, "/api/orders/missing", keyBuyer, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListOrders_ScopedToCaller(t *testing.T) {
	e := newEnv(t)
	id := e.createOrder(t)

	w := e.do(t, http.MethodGet, "/api/orders", keyBuyer, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	orders := body["orders"].([]any)
	require.Len(t, orders, 1)
	assert.Equal(t, id, orders[0].(map[string]any)["id"])

	// A filter that excludes it.
	w = e.do(t, http.MethodGet, "/api/orders?status=completed", keyBuyer, "")
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	assert.Empty(t, body["orders"])

	w = e.do(t, http.MethodGet, "/api/orders?side=buy&q=example", keyBuyer, "")
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	assert.Len(t, body["orders"], 1)
}

func TestListOrders_BadTimestamp(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodGet, "/api/orders?from=yesterday", keyBuyer, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCloseOrder(t *testing.T) {
	e := newEnv(t)
	id := e.createOrder(t)

	w := e.do(t, http.MethodPost, "/api/orders/"+id+"/close", keyBuyer, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "closed", body["status"])
}

func TestListListings(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodGet, "/api/listings", keyBuyer, "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	listings := body["listings"].([]any)
	require.Len(t, listings, 1)
	assert.Equal(t, "example.com", listings[0].(map[string]any)["domainName"])
}

func TestGetWallet(t *testing.T) {
	e := newEnv(t)
	e.ledger.SetBalance("buyer", decimal.RequireFromString("250.00"))

	w := e.do(t, http.MethodGet, "/api/wallet", keyBuyer, "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, "buyer", body["userId"])
	assert.Equal(t, "250.00", body["balance"])
}

func TestMalformedBody(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodPost, "/api/orders", keyBuyer, `{"domainName":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
