package order

import (
	"strings"
	"time"
)

// Side selects which party of the order a user filter applies to, mirroring
// the buy/sell tabs of the order list.
type Side string

const (
	SideAny  Side = ""
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Filter narrows a ListOrders query. Zero values mean "no constraint".
type Filter struct {
	// UserID limits results to orders where the user participates,
	// on the side selected by Side.
	UserID string
	Side   Side

	Statuses []Status

	// CreatedFrom/CreatedTo bound the order creation time (inclusive).
	CreatedFrom time.Time
	CreatedTo   time.Time

	// Search is a case-insensitive substring match on order id or domain name.
	Search string
}

// Match reports whether o satisfies the filter. Repository implementations
// without native query support (the in-memory store) evaluate it directly;
// the postgres store translates the same semantics to SQL.
func (f Filter) Match(o *Order) bool {
	if f.UserID != "" {
		switch f.Side {
		case SideBuy:
			if o.BuyerID != f.UserID {
				return false
			}
		case SideSell:
			if o.SellerID != f.UserID {
				return false
			}
		default:
			if o.BuyerID != f.UserID && o.SellerID != f.UserID {
				return false
			}
		}
	}

	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if o.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if !f.CreatedFrom.IsZero() && o.CreatedAt.Before(f.CreatedFrom) {
		return false
	}
	if !f.CreatedTo.IsZero() && o.CreatedAt.After(f.CreatedTo) {
		return false
	}

	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(o.ID), q) &&
			!strings.Contains(strings.ToLower(o.DomainName), q) {
			return false
		}
	}

	return true
}
