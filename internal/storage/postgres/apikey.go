package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/domain-escrow/internal/domain/auth"
)

var _ auth.Repository = (*APIKeyRepository)(nil)

// APIKeyRepository implements auth.Repository backed by PostgreSQL.
type APIKeyRepository struct {
	pool *pgxpool.Pool
}

// NewAPIKeyRepository returns an APIKeyRepository that uses the given pool.
func NewAPIKeyRepository(pool *pgxpool.Pool) *APIKeyRepository {
	return &APIKeyRepository{pool: pool}
}

func (r *APIKeyRepository) FindByHash(ctx context.Context, hash string) (*auth.Identity, error) {
	var id auth.Identity
	var role string
	err := r.pool.QueryRow(ctx,
		`SELECT key_hash, user_id, name, role FROM api_keys WHERE key_hash = $1`, hash,
	).Scan(&id.KeyHash, &id.UserID, &id.Name, &role)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, auth.ErrKeyNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "find api key")
	}
	id.Role = auth.Role(role)
	return &id, nil
}

// CreateKey stores an identity under its key hash; used by seeding.
func (r *APIKeyRepository) CreateKey(ctx context.Context, id auth.Identity) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO api_keys (key_hash, user_id, name, role) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (key_hash) DO NOTHING`,
		id.KeyHash, id.UserID, id.Name, string(id.Role),
	)
	if err != nil {
		return errors.Wrap(err, "create api key")
	}
	return nil
}
