package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"

	"github.com/xenking/quickcart/db"
	"github.com/xenking/quickcart/internal/model"
	"github.com/xenking/quickcart/internal/store/filestore"
	"github.com/xenking/quickcart/internal/store/postgres"
)

type options struct {
	input       string
	dataFile    string
	databaseURL string
	documentID  string
	force       bool
}

func main() {
	decimal.MarshalJSONWithoutQuotes = true

	var opts options

	flag.StringVar(&opts.input, "input", "", "seed document (JSON, or gzip-compressed with a .gz suffix); the embedded sample when empty")
	flag.StringVar(&opts.dataFile, "data-file", "data.json", "file store path used when no database URL is set")
	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.documentID, "document-id", "main", "row id of the document in PostgreSQL")
	flag.BoolVar(&opts.force, "force", false, "overwrite an existing document")
	flag.Parse()

	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, opts options) error {
	doc, err := readDocument(opts.input)
	if err != nil {
		return errors.Wrap(err, "read seed document")
	}
	slog.Info("seed document loaded",
		slog.Int("users", len(doc.Users)),
		slog.Int("items", len(doc.Items)),
		slog.Int("coupons", len(doc.Coupons)),
	)

	if opts.databaseURL != "" {
		return seedPostgres(ctx, opts, doc)
	}
	return seedFile(ctx, opts, doc)
}

// readDocument decodes and validates the seed. Paths ending in .gz are
// decompressed first.
func readDocument(path string) (*model.Document, error) {
	if path == "" {
		return model.Decode(db.SeedDocument)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open seed file")
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrap(err, "open gzip reader")
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read seed file")
	}
	return model.Decode(data)
}

func seedPostgres(ctx context.Context, opts options, doc *model.Document) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	err = postgres.New(pool, opts.documentID).Provision(ctx, doc, opts.force)
	if errors.Is(err, postgres.ErrExists) {
		return errors.Errorf("document %q already exists; pass --force to overwrite", opts.documentID)
	}
	if err != nil {
		return errors.Wrap(err, "provision document")
	}
	slog.Info("document provisioned", slog.String("id", opts.documentID))
	return nil
}

func seedFile(ctx context.Context, opts options, doc *model.Document) error {
	if _, err := os.Stat(opts.dataFile); err == nil && !opts.force {
		return errors.Errorf("%s already exists; pass --force to overwrite", opts.dataFile)
	}

	fs := filestore.New(opts.dataFile)
	if err := fs.Save(ctx, doc); err != nil {
		return errors.Wrap(err, "write data file")
	}
	slog.Info("data file written", slog.String("path", fs.Path()))
	return nil
}
