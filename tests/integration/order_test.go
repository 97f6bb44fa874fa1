//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func createOrder(t *testing.T, apiKey, domain string) orderResponse {
	t.Helper()

	resp := doPost(t, "/api/orders", apiKey, map[string]string{"domainName": domain})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create order: expected 201, got %d", resp.StatusCode)
	}
	return decodeJSON[orderResponse](t, resp)
}

func TestOrderLifecycle(t *testing.T) {
	// Alice buys nebula.dev from Bob: 850.00, wallet holds 500.00.
	o := createOrder(t, keyBuyer, "nebula.dev")
	if o.Status != "pending_payment" {
		t.Fatalf("expected pending_payment, got %q", o.Status)
	}
	if o.Price != "850.00" {
		t.Fatalf("expected price 850.00, got %q", o.Price)
	}

	// Pay with wallet + card. The wallet covers what it can.
	resp := doPost(t, "/api/orders/"+o.ID+"/pay", keyBuyer, map[string]any{
		"method":    "credit_card",
		"useWallet": true,
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("pay: expected 200, got %d", resp.StatusCode)
	}
	o = decodeJSON[orderResponse](t, resp)
	if o.Status != "pending_transfer" {
		t.Fatalf("expected pending_transfer, got %q", o.Status)
	}
	if o.Breakdown == nil || o.Breakdown.WalletAmount != "500.00" || o.Breakdown.ExternalAmount != "350.00" {
		t.Fatalf("unexpected breakdown: %+v", o.Breakdown)
	}

	// Wallet drained.
	wresp := doGet(t, "/api/wallet", keyBuyer)
	defer wresp.Body.Close()
	w := decodeJSON[walletResponse](t, wresp)
	if w.Balance != "0.00" && w.Balance != "0" {
		t.Fatalf("expected empty wallet, got %q", w.Balance)
	}

	// Bob submits a transfer code.
	resp = doPost(t, "/api/orders/"+o.ID+"/transfer-code", keySeller, map[string]string{
		"code":      "AUTH-INT-1",
		"expiresAt": "2030-01-01T00:00:00Z",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("transfer-code: expected 200, got %d", resp.StatusCode)
	}

	// Alice confirms with the code; settlement is scheduled at price minus fee.
	resp = doPost(t, "/api/orders/"+o.ID+"/confirm", keyBuyer, map[string]string{"code": "AUTH-INT-1"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("confirm: expected 200, got %d", resp.StatusCode)
	}
	o = decodeJSON[orderResponse](t, resp)
	if o.Status != "pending_settlement" {
		t.Fatalf("expected pending_settlement, got %q", o.Status)
	}
	if o.Settlement == nil || o.Settlement.Amount != "765.00" {
		t.Fatalf("expected settlement 765.00 (10%% fee), got %+v", o.Settlement)
	}
}

func TestOrderWrongActor(t *testing.T) {
	o := createOrder(t, keyBuyer, "quantumleap.io")

	// The seller cannot pay the buyer's order.
	resp := doPost(t, "/api/orders/"+o.ID+"/pay", keySeller, map[string]any{"method": "credit_card"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}

	body := decodeJSON[errorResponse](t, resp)
	if body.Code != http.StatusForbidden {
		t.Fatalf("expected error code 403 in body, got %d", body.Code)
	}
}

func TestDisputeResolvedByArbiter(t *testing.T) {
	o := createOrder(t, keyBuyer, "copperkettle.com")

	resp := doPost(t, "/api/orders/"+o.ID+"/pay", keyBuyer, map[string]any{"method": "paypal"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("pay: expected 200, got %d", resp.StatusCode)
	}

	resp = doPost(t, "/api/orders/"+o.ID+"/dispute", keyBuyer, map[string]string{"reason": "no response from seller"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("dispute: expected 200, got %d", resp.StatusCode)
	}

	// A regular user cannot resolve.
	resp = doPost(t, "/api/orders/"+o.ID+"/dispute/resolve", keySeller, map[string]string{"outcome": "release"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for non-arbiter, got %d", resp.StatusCode)
	}

	resp = doPost(t, "/api/orders/"+o.ID+"/dispute/resolve", keyArbiter, map[string]string{"outcome": "refund"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("resolve: expected 200, got %d", resp.StatusCode)
	}
	o = decodeJSON[orderResponse](t, resp)
	if o.Status != "closed" {
		t.Fatalf("expected closed after refund, got %q", o.Status)
	}
	if o.Dispute == nil || o.Dispute.Outcome != "refund" {
		t.Fatalf("expected refund outcome recorded, got %+v", o.Dispute)
	}
}

func TestUnauthenticated(t *testing.T) {
	resp := doGet(t, "/api/orders", "")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}
