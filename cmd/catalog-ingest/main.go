// Command catalog-ingest bulk-imports a product catalog from gzipped JSONL
// shard files. Each line is one product document; shards are decompressed and
// parsed concurrently, and rows are written in batches.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/swiftcart/commerce-api/internal/storage/postgres"
)

const (
	batchSize     = 500
	progressEvery = 10_000
)

type productDoc struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	IsPublished bool            `json:"is_published"`
}

func main() {
	var (
		dataDir     string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing *.jsonl.gz catalog shards")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL); err != nil {
		slog.Error("catalog ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string) error {
	shards, err := filepath.Glob(filepath.Join(dataDir, "*.jsonl.gz"))
	if err != nil {
		return errors.Wrap(err, "glob shards")
	}
	if len(shards) == 0 {
		return errors.Errorf("no *.jsonl.gz shards in %s", dataDir)
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

	slog.Info("ingesting shards", slog.Int("count", len(shards)))

	g, ctx := errgroup.WithContext(ctx)
	for i, shard := range shards {
		g.Go(ingestShard(ctx, pool, i, shard))
	}
	return g.Wait()
}

const upsertProductSQL = `INSERT INTO products (id, name, description, price, stock, is_published)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name,
		description = EXCLUDED.description,
		price = EXCLUDED.price,
		stock = EXCLUDED.stock,
		is_published = EXCLUDED.is_published`

func ingestShard(ctx context.Context, pool *pgxpool.Pool, idx int, path string) func() error {
	return func() error {
		var (
			batch pgx.Batch
			count uint64
		)

		flush := func() error {
			if batch.Len() == 0 {
				return nil
			}
			if err := pool.SendBatch(ctx, &batch).Close(); err != nil {
				return errors.Wrap(err, "send batch")
			}
			batch = pgx.Batch{}
			return nil
		}

		if err := streamGzLines(ctx, path, func(line []byte) error {
			var doc productDoc
			if err := json.Unmarshal(line, &doc); err != nil {
				return errors.Wrap(err, "parse product document")
			}

			batch.Queue(upsertProductSQL,
				doc.ID, doc.Name, doc.Description, doc.Price, doc.Stock, doc.IsPublished,
			)
			count++

			if count%progressEvery == 0 {
				slog.Info("ingest progress",
					slog.Int("shard", idx+1),
					slog.Uint64("products", count),
				)
			}
			if batch.Len() >= batchSize {
				return flush()
			}
			return nil
		}); err != nil {
			return errors.Wrapf(err, "ingest shard %s", path)
		}

		if err := flush(); err != nil {
			return errors.Wrapf(err, "final flush for shard %s", path)
		}

		slog.Info("shard complete",
			slog.Int("shard", idx+1),
			slog.String("path", path),
			slog.Uint64("products", count),
		)
		return nil
	}
}

// streamGzLines opens a gzip-compressed file and calls fn for each line.
func streamGzLines(ctx context.Context, path string, fn func(line []byte) error) error {
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
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(scanner.Bytes()) == 0 {
			continue
		}
		if err := fn(scanner.Bytes()); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}
