// Package listing is the marketplace inventory read model. Listing lifecycle
// (publishing, pricing, delisting) happens outside the escrow core; orders
// only reference a listed domain name and its asking price.
package listing

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested listing does not exist.
var ErrNotFound = errors.New("listing not found")

// Listing is a domain name offered for sale.
type Listing struct {
	ID         string
	DomainName string
	SellerID   string
	Price      decimal.Decimal
	Registrar  string
	CreatedAt  time.Time
}

// Repository defines read and bulk-load operations for listings.
type Repository interface {
	List(ctx context.Context) ([]Listing, error)
	GetByDomain(ctx context.Context, domainName string) (*Listing, error)
	CreateBatch(ctx context.Context, listings []Listing) error
}
