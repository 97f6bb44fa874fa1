package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/xenking/domain-escrow/internal/domain/listing"
)

// ListingRepository implements listing.Repository in process memory.
type ListingRepository struct {
	mu       sync.RWMutex
	byDomain map[string]listing.Listing
}

var _ listing.Repository = (*ListingRepository)(nil)

// NewListingRepository returns an empty in-memory listing store.
func NewListingRepository() *ListingRepository {
	return &ListingRepository{byDomain: make(map[string]listing.Listing)}
}

func (r *ListingRepository) List(_ context.Context) ([]listing.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]listing.Listing, 0, len(r.byDomain))
	for _, l := range r.byDomain {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].DomainName < out[j].DomainName
	})
	return out, nil
}

func (r *ListingRepository) GetByDomain(_ context.Context, domainName string) (*listing.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.byDomain[domainName]
	if !ok {
		return nil, listing.ErrNotFound
	}
	return &l, nil
}

func (r *ListingRepository) CreateBatch(_ context.Context, listings []listing.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, l := range listings {
		r.byDomain[l.DomainName] = l
	}
	return nil
}
