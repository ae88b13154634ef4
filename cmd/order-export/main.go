// Command order-export writes the order journal as gzip-compressed NDJSON for
// fulfilment: one JSON document per line with the token, session, creation
// time and the payload sent to the order endpoint.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/prodishi/dishi-shop/internal/domain/order"
	"github.com/prodishi/dishi-shop/internal/storage/postgres"
)

const (
	gzipBlockSize   = 1 << 20
	gzipConcurrency = 4
	progressEvery   = 1_000
)

func main() {
	var (
		databaseURL string
		out         string
		since       time.Duration
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&out, "out", "", "output file (default orders-<date>.ndjson.gz)")
	flag.DurationVar(&since, "since", 24*time.Hour, "export orders created within this period")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	now := time.Now()
	if out == "" {
		out = "orders-" + now.Format("20060102") + ".ndjson.gz"
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, out, now.Add(-since)); err != nil {
		slog.Error("order export failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("order export completed successfully", slog.String("file", out))
}

func run(ctx context.Context, databaseURL, out string, since time.Time) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	orders := postgres.NewOrderRepository(pool)

	f, err := os.Create(out)
	if err != nil {
		return errors.Wrapf(err, "create %s", out)
	}
	defer func() { _ = f.Close() }()

	exported, err := export(ctx, orders, f, since)
	if err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return errors.Wrapf(err, "sync %s", out)
	}

	count, revenue, err := orders.Revenue(ctx, since)
	if err != nil {
		return errors.Wrap(err, "compute revenue")
	}
	slog.Info("export summary",
		slog.Int("exported", exported),
		slog.Int64("orders", count),
		slog.String("revenue", revenue.StringFixed(2)),
		slog.Time("since", since),
	)
	return nil
}

// export streams records from the journal into a channel while a second
// goroutine encodes and compresses them.
func export(ctx context.Context, orders *postgres.OrderRepository, f *os.File, since time.Time) (int, error) {
	records := make(chan *order.Record, 64)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(records)
		return orders.Stream(ctx, since, func(r *order.Record) error {
			select {
			case records <- r:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	})

	var written int
	g.Go(func() error {
		gz := pgzip.NewWriter(f)
		if err := gz.SetConcurrency(gzipBlockSize, gzipConcurrency); err != nil {
			return errors.Wrap(err, "configure gzip")
		}
		w := bufio.NewWriter(gz)

		var e jx.Encoder
		for r := range records {
			e.Reset()
			encodeRecord(&e, r)
			if _, err := w.Write(append(e.Bytes(), '\n')); err != nil {
				return errors.Wrap(err, "write record")
			}
			written++
			if written%progressEvery == 0 {
				slog.Info("export progress", slog.Int("orders", written))
			}
		}

		if err := w.Flush(); err != nil {
			return errors.Wrap(err, "flush")
		}
		if err := gz.Close(); err != nil {
			return errors.Wrap(err, "close gzip")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return 0, err
	}
	return written, nil
}

func encodeRecord(e *jx.Encoder, r *order.Record) {
	e.ObjStart()
	e.FieldStart("token")
	e.Str(r.Token)
	e.FieldStart("session")
	e.Str(r.Session)
	e.FieldStart("createdAt")
	e.Str(r.CreatedAt.UTC().Format(time.RFC3339))
	e.FieldStart("payload")
	r.Payload.Encode(e)
	e.ObjEnd()
}
