// Command listing-ingest bulk-loads domain listings from registrar inventory
// dumps. Each dump is a gzip-compressed file named listings-<registrar>.gz
// with one "domain,price" pair per line. Files are parsed concurrently; a
// bloom filter deduplicates domains across dumps without holding every name
// in memory (first file wins on duplicates, a rare false positive only drops
// a single listing).
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/domain-escrow/internal/domain/listing"
	"github.com/xenking/domain-escrow/internal/storage/postgres"
)

const (
	bloomCapacity = 20_000_000
	bloomFPR      = 0.001
	progressEvery = 1_000_000
	batchSize     = 1000
)

// fileResult holds the listings parsed from one dump.
type fileResult struct {
	registrar string
	listings  []listing.Listing
}

func main() {
	var (
		dataDir     string
		databaseURL string
		sellerID    string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing listings-<registrar>.gz files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&sellerID, "seller-id", "", "user ID that owns the ingested listings")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if sellerID == "" {
		slog.Error("seller ID is required: set --seller-id")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL, sellerID); err != nil {
		slog.Error("listing ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("listing ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL, sellerID string) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "listings-*.gz"))
	if err != nil {
		return errors.Wrap(err, "glob data dir")
	}
	if len(files) == 0 {
		return errors.Errorf("no listings-*.gz files in %s", dataDir)
	}

	slog.Info("parsing dumps", slog.Int("files", len(files)))

	results, err := parseDumps(ctx, files, sellerID)
	if err != nil {
		return errors.Wrap(err, "parse dumps")
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	return writeListings(ctx, postgres.NewListingRepository(pool), results)
}

// parseDumps streams all dump files concurrently, one goroutine per file.
func parseDumps(ctx context.Context, files []string, sellerID string) ([]fileResult, error) {
	results := make([]fileResult, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(parseDump(ctx, i, f, sellerID, results))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

func parseDump(ctx context.Context, idx int, path, sellerID string, results []fileResult) func() error {
	return func() error {
		registrar := registrarFromPath(path)
		now := time.Now().UTC()

		var (
			parsed  []listing.Listing
			skipped uint64
			count   uint64
		)

		if err := streamGzFile(ctx, path, func(line string) {
			count++
			if count%progressEvery == 0 {
				slog.Info("parse progress",
					slog.String("registrar", registrar),
					slog.Uint64("lines", count),
				)
			}

			domain, price, ok := parseLine(line)
			if !ok {
				skipped++
				return
			}
			parsed = append(parsed, listing.Listing{
				ID:         uuid.NewString(),
				DomainName: domain,
				SellerID:   sellerID,
				Price:      price,
				Registrar:  registrar,
				CreatedAt:  now,
			})
		}); err != nil {
			return errors.Wrapf(err, "stream %s", path)
		}

		slog.Info("parse complete",
			slog.String("registrar", registrar),
			slog.Uint64("lines", count),
			slog.Int("listings", len(parsed)),
			slog.Uint64("skipped", skipped),
		)

		results[idx] = fileResult{registrar: registrar, listings: parsed}
		return nil
	}
}

// registrarFromPath extracts the registrar name from listings-<registrar>.gz.
func registrarFromPath(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), ".gz")
	return strings.TrimPrefix(name, "listings-")
}

// parseLine splits a "domain,price" line. Malformed lines are skipped.
func parseLine(line string) (domain string, price decimal.Decimal, ok bool) {
	domain, rawPrice, found := strings.Cut(strings.TrimSpace(line), ",")
	if !found || domain == "" {
		return "", decimal.Zero, false
	}
	price, err := decimal.NewFromString(rawPrice)
	if err != nil || !price.IsPositive() {
		return "", decimal.Zero, false
	}
	return strings.ToLower(domain), price, true
}

// streamGzFile opens a gzip-compressed file and calls fn for each line.
func streamGzFile(ctx context.Context, path string, fn func(line string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn(scanner.Text())
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}

// writeListings merges all dumps, dropping duplicate domains, and upserts the
// remainder in batches.
func writeListings(ctx context.Context, repo *postgres.ListingRepository, results []fileResult) error {
	seen := bloom.NewWithEstimates(bloomCapacity, bloomFPR)

	var (
		batch   []listing.Listing
		written int
		dupes   int
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := repo.CreateBatch(ctx, batch); err != nil {
			return errors.Wrap(err, "write batch")
		}
		written += len(batch)
		slog.Info("write progress", slog.Int("written", written))
		batch = batch[:0]
		return nil
	}

	for _, r := range results {
		for _, l := range r.listings {
			if seen.TestString(l.DomainName) {
				dupes++
				continue
			}
			seen.AddString(l.DomainName)

			batch = append(batch, l)
			if len(batch) >= batchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}

	slog.Info("listings written", slog.Int("count", written), slog.Int("duplicates", dupes))
	return nil
}
