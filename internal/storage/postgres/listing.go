package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/domain-escrow/internal/domain/listing"
)

var _ listing.Repository = (*ListingRepository)(nil)

// ListingRepository implements listing.Repository backed by PostgreSQL.
type ListingRepository struct {
	pool *pgxpool.Pool
}

// NewListingRepository returns a ListingRepository that uses the given pool.
func NewListingRepository(pool *pgxpool.Pool) *ListingRepository {
	return &ListingRepository{pool: pool}
}

func (r *ListingRepository) List(ctx context.Context) ([]listing.Listing, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, domain_name, seller_id, price, registrar, created_at
		 FROM listings ORDER BY domain_name`)
	if err != nil {
		return nil, errors.Wrap(err, "query listings")
	}
	defer rows.Close()

	var out []listing.Listing
	for rows.Next() {
		var l listing.Listing
		if err := rows.Scan(&l.ID, &l.DomainName, &l.SellerID, &l.Price, &l.Registrar, &l.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan listing")
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *ListingRepository) GetByDomain(ctx context.Context, domainName string) (*listing.Listing, error) {
	var l listing.Listing
	err := r.pool.QueryRow(ctx,
		`SELECT id, domain_name, seller_id, price, registrar, created_at
		 FROM listings WHERE domain_name = $1`, domainName,
	).Scan(&l.ID, &l.DomainName, &l.SellerID, &l.Price, &l.Registrar, &l.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, listing.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get listing %q", domainName)
	}
	return &l, nil
}

// CreateBatch inserts listings in a single transaction, replacing the price
// of any domain already listed.
func (r *ListingRepository) CreateBatch(ctx context.Context, listings []listing.Listing) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, l := range listings {
		_, err := tx.Exec(ctx,
			`INSERT INTO listings (id, domain_name, seller_id, price, registrar, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (domain_name) DO UPDATE SET price = EXCLUDED.price`,
			l.ID, l.DomainName, l.SellerID, l.Price, l.Registrar, l.CreatedAt,
		)
		if err != nil {
			return errors.Wrapf(err, "insert listing %q", l.DomainName)
		}
	}

	return tx.Commit(ctx)
}
