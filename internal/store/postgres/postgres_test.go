//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/quickcart/internal/model"
	"github.com/xenking/quickcart/internal/store"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "quickcart",
				"POSTGRES_PASSWORD": "quickcart",
				"POSTGRES_DB":       "quickcart",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, c)
	require.NoError(t, err)

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://quickcart:quickcart@%s:%s/quickcart?sslmode=disable", host, port.Port())
}

func seedDocument() *model.Document {
	doc := model.NewDocument()
	doc.Config = model.Policy{NthOrder: 5, CouponPercent: 10}
	doc.Items = []model.Item{{ID: 1, Name: "Keyboard", Price: decimal.RequireFromString("499.0"), Stock: 10}}
	doc.Users["alex"] = &model.User{ID: "u1", Username: "alex", Email: "alex@quicktest.com", Cart: []model.CartLine{}}
	return doc
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	pool, err := NewPool(ctx, startPostgres(t))
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, RunMigrations(ctx, pool))

	s := New(pool, "")

	t.Run("NotProvisioned", func(t *testing.T) {
		_, err := s.Load(ctx)
		require.ErrorIs(t, err, ErrNotProvisioned)
	})

	t.Run("Provision", func(t *testing.T) {
		require.NoError(t, s.Provision(ctx, seedDocument(), false))
		require.ErrorIs(t, s.Provision(ctx, seedDocument(), false), ErrExists)
	})

	t.Run("LoadSave", func(t *testing.T) {
		doc, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), doc.Version)
		assert.True(t, decimal.NewFromInt(499).Equal(doc.Items[0].Price))

		doc.Items[0].Stock = 7
		require.NoError(t, s.Save(ctx, doc))
		assert.Equal(t, int64(2), doc.Version)

		again, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, 7, again.Items[0].Stock)
	})

	t.Run("Conflict", func(t *testing.T) {
		a, err := s.Load(ctx)
		require.NoError(t, err)
		b, err := s.Load(ctx)
		require.NoError(t, err)

		require.NoError(t, s.Save(ctx, a))
		require.ErrorIs(t, s.Save(ctx, b), store.ErrConflict)
	})

	t.Run("DocumentsRetry", func(t *testing.T) {
		docs := store.NewDocuments(s, nil, store.Options{})
		stale, err := s.Load(ctx)
		require.NoError(t, err)

		attempts := 0
		err = docs.Update(ctx, func(doc *model.Document) error {
			attempts++
			if attempts == 1 {
				// Another writer lands between our load and save.
				require.NoError(t, s.Save(ctx, stale))
			}
			doc.Items[0].Stock--
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 2, attempts)

		final, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, stale.Items[0].Stock-1, final.Items[0].Stock)
	})

	t.Run("ProvisionOverwrite", func(t *testing.T) {
		require.NoError(t, s.Provision(ctx, seedDocument(), true))
		doc, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, 10, doc.Items[0].Stock)
	})
}
