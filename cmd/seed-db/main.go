// Command seed-db loads wallet accounts, domain listings, and API keys from a
// JSON seed file into PostgreSQL. Safe to re-run: everything upserts.
package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/domain-escrow/internal/domain/auth"
	"github.com/xenking/domain-escrow/internal/domain/listing"
	"github.com/xenking/domain-escrow/internal/storage/postgres"
)

type seedFile struct {
	Accounts []accountJSON `json:"accounts"`
	Listings []listingJSON `json:"listings"`
	APIKeys  []apiKeyJSON  `json:"apiKeys"`
}

type accountJSON struct {
	UserID  string          `json:"userId"`
	Balance decimal.Decimal `json:"balance"`
}

type listingJSON struct {
	DomainName string          `json:"domainName"`
	SellerID   string          `json:"sellerId"`
	Price      decimal.Decimal `json:"price"`
	Registrar  string          `json:"registrar"`
}

type apiKeyJSON struct {
	Key    string `json:"key"`
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

func main() {
	var (
		databaseURL  string
		seedPath     string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&seedPath, "seed-file", "db/seed/seed.json", "path to seed JSON file")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or ESCROW_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("ESCROW_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, seedPath, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, seedPath, pepper string) error {
	slog.Info("reading seed file", slog.String("path", seedPath))

	data, err := os.ReadFile(seedPath)
	if err != nil {
		return errors.Wrap(err, "read seed file")
	}

	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return errors.Wrap(err, "parse seed JSON")
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedAccounts(ctx, postgres.NewWalletLedger(pool), seed.Accounts); err != nil {
		return errors.Wrap(err, "seed accounts")
	}
	if err := seedListings(ctx, postgres.NewListingRepository(pool), seed.Listings); err != nil {
		return errors.Wrap(err, "seed listings")
	}
	if err := seedAPIKeys(ctx, postgres.NewAPIKeyRepository(pool), seed.APIKeys, pepper); err != nil {
		return errors.Wrap(err, "seed api keys")
	}

	return nil
}

func seedAccounts(ctx context.Context, ledger *postgres.WalletLedger, accounts []accountJSON) error {
	slog.Info("seeding wallet accounts", slog.Int("count", len(accounts)))

	for _, a := range accounts {
		if a.Balance.IsNegative() {
			return errors.Errorf("account %s has negative balance", a.UserID)
		}
		if err := ledger.SetBalance(ctx, a.UserID, a.Balance); err != nil {
			return errors.Wrapf(err, "set balance for %s", a.UserID)
		}

		slog.Info("seeded account", slog.String("user", a.UserID), slog.String("balance", a.Balance.String()))
	}

	return nil
}

func seedListings(ctx context.Context, repo *postgres.ListingRepository, listings []listingJSON) error {
	slog.Info("seeding listings", slog.Int("count", len(listings)))

	now := time.Now().UTC()
	batch := make([]listing.Listing, 0, len(listings))
	for _, l := range listings {
		if !l.Price.IsPositive() {
			return errors.Errorf("listing %s has non-positive price", l.DomainName)
		}
		batch = append(batch, listing.Listing{
			ID:         uuid.NewString(),
			DomainName: l.DomainName,
			SellerID:   l.SellerID,
			Price:      l.Price,
			Registrar:  l.Registrar,
			CreatedAt:  now,
		})
	}

	if err := repo.CreateBatch(ctx, batch); err != nil {
		return err
	}

	for _, l := range batch {
		slog.Info("seeded listing", slog.String("domain", l.DomainName), slog.String("price", l.Price.String()))
	}

	return nil
}

func seedAPIKeys(ctx context.Context, repo *postgres.APIKeyRepository, keys []apiKeyJSON, pepper string) error {
	slog.Info("seeding API keys", slog.Int("count", len(keys)))

	for _, k := range keys {
		role := auth.Role(k.Role)
		if role == "" {
			role = auth.RoleUser
		}

		mac := hmac.New(sha256.New, []byte(pepper))
		mac.Write([]byte(k.Key))
		keyHash := hex.EncodeToString(mac.Sum(nil))

		if err := repo.CreateKey(ctx, auth.Identity{
			UserID:  k.UserID,
			KeyHash: keyHash,
			Name:    k.Name,
			Role:    role,
		}); err != nil {
			return errors.Wrapf(err, "create key for %s", k.UserID)
		}

		slog.Info("seeded API key", slog.String("user", k.UserID), slog.String("name", k.Name), slog.String("role", string(role)))
	}

	return nil
}
