package order

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFilterMatch(t *testing.T) {
	created := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	o := &Order{
		ID:         "ord-123",
		DomainName: "Example.COM",
		BuyerID:    "alice",
		SellerID:   "bob",
		Status:     StatusPendingTransfer,
		CreatedAt:  created,
	}

	cases := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"empty filter", Filter{}, true},
		{"buyer any side", Filter{UserID: "alice"}, true},
		{"seller any side", Filter{UserID: "bob"}, true},
		{"stranger", Filter{UserID: "mallory"}, false},
		{"buyer on buy side", Filter{UserID: "alice", Side: SideBuy}, true},
		{"buyer on sell side", Filter{UserID: "alice", Side: SideSell}, false},
		{"matching status", Filter{Statuses: []Status{StatusPendingTransfer, StatusDisputed}}, true},
		{"other status", Filter{Statuses: []Status{StatusCompleted}}, false},
		{"created from inclusive", Filter{CreatedFrom: created}, true},
		{"created from later", Filter{CreatedFrom: created.Add(time.Second)}, false},
		{"created to inclusive", Filter{CreatedTo: created}, true},
		{"created to earlier", Filter{CreatedTo: created.Add(-time.Second)}, false},
		{"search domain case-insensitive", Filter{Search: "example.com"}, true},
		{"search order id", Filter{Search: "ORD-12"}, true},
		{"search miss", Filter{Search: "nebula"}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.filter.Match(o))
		})
	}
}
