// Package postgres stores the document as a single versioned JSONB row.
package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/quickcart/db"
	"github.com/xenking/quickcart/internal/model"
	"github.com/xenking/quickcart/internal/store"
)

// DefaultDocumentID is the row id used when none is configured.
const DefaultDocumentID = "main"

const (
	loadDocumentSQL = `SELECT body, version FROM documents WHERE id = $1`

	saveDocumentSQL = `UPDATE documents SET body = $2, version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $3
		RETURNING version`

	insertDocumentSQL = `INSERT INTO documents (id, body) VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING`

	replaceDocumentSQL = `INSERT INTO documents (id, body) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET body = EXCLUDED.body,
			version = documents.version + 1, updated_at = now()`
)

// ErrNotProvisioned is returned by Load when the document row does not exist.
var ErrNotProvisioned = errors.New("document not provisioned")

// ErrExists is returned by Provision when the row exists and overwrite is off.
var ErrExists = errors.New("document already exists")

// NewPool creates a pgxpool.Pool configured with shopspring/decimal support
// for NUMERIC columns.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}

	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	return pool, nil
}

// RunMigrations executes the embedded DDL schema against the pool.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, db.Schema)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

var _ store.Backend = (*Store)(nil)

// Store implements store.Backend with optimistic concurrency: Save only
// succeeds if the row still has the version the document was loaded at.
type Store struct {
	pool *pgxpool.Pool
	id   string
}

// New returns a Store for the document row id. An empty id selects
// DefaultDocumentID.
func New(pool *pgxpool.Pool, id string) *Store {
	if id == "" {
		id = DefaultDocumentID
	}
	return &Store{pool: pool, id: id}
}

// Load reads and validates the document row.
func (s *Store) Load(ctx context.Context) (*model.Document, error) {
	var (
		body    []byte
		version int64
	)
	err := s.pool.QueryRow(ctx, loadDocumentSQL, s.id).Scan(&body, &version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("loading document %q: %w", s.id, ErrNotProvisioned)
		}
		return nil, fmt.Errorf("loading document %q: %w", s.id, err)
	}

	doc, err := model.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("decoding document %q: %w", s.id, err)
	}
	doc.Version = version
	return doc, nil
}

// Save overwrites the row if its version still matches doc.Version and
// returns store.ErrConflict otherwise. On success doc.Version is advanced.
func (s *Store) Save(ctx context.Context, doc *model.Document) error {
	body, err := doc.Encode()
	if err != nil {
		return err
	}

	var version int64
	err = s.pool.QueryRow(ctx, saveDocumentSQL, s.id, body, doc.Version).Scan(&version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrConflict
		}
		return fmt.Errorf("saving document %q: %w", s.id, err)
	}
	doc.Version = version
	return nil
}

// Provision writes an initial document. With overwrite unset an existing row
// is left alone and ErrExists is returned.
func (s *Store) Provision(ctx context.Context, doc *model.Document, overwrite bool) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	body, err := doc.Encode()
	if err != nil {
		return err
	}

	if overwrite {
		if _, err := s.pool.Exec(ctx, replaceDocumentSQL, s.id, body); err != nil {
			return fmt.Errorf("replacing document %q: %w", s.id, err)
		}
		return nil
	}

	tag, err := s.pool.Exec(ctx, insertDocumentSQL, s.id, body)
	if err != nil {
		return fmt.Errorf("inserting document %q: %w", s.id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrExists
	}
	return nil
}
