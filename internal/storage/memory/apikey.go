package memory

import (
	"context"
	"sync"

	"github.com/xenking/domain-escrow/internal/domain/auth"
)

// APIKeyRepository implements auth.Repository in process memory.
type APIKeyRepository struct {
	mu     sync.RWMutex
	byHash map[string]auth.Identity
}

var _ auth.Repository = (*APIKeyRepository)(nil)

// NewAPIKeyRepository returns an empty in-memory key store.
func NewAPIKeyRepository() *APIKeyRepository {
	return &APIKeyRepository{byHash: make(map[string]auth.Identity)}
}

// Add registers an identity under its key hash.
func (r *APIKeyRepository) Add(id auth.Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byHash[id.KeyHash] = id
}

func (r *APIKeyRepository) FindByHash(_ context.Context, hash string) (*auth.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byHash[hash]
	if !ok {
		return nil, auth.ErrKeyNotFound
	}
	return &id, nil
}
