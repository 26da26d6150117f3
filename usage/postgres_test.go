package usage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("flowgate"),
		postgres.WithUsername("flowgate"),
		postgres.WithPassword("flowgate"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	store, err := NewPostgresStore(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPostgresStoreCountsCurrentMonthOnly(t *testing.T) {
	store := setupPostgresStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	lastMonth := now.AddDate(0, -1, 0)

	require.NoError(t, store.RecordUsage(ctx, "user_1", "blog-outline", nil, lastMonth))
	require.NoError(t, store.RecordUsage(ctx, "user_1", "blog-outline", nil, now))
	require.NoError(t, store.RecordUsage(ctx, "user_1", "campaign",
		map[string]string{"channel": "email"}, now))
	require.NoError(t, store.RecordUsage(ctx, "user_2", "campaign", nil, now))

	count, err := store.CountThisMonth(ctx, "user_1")
	require.NoError(t, err)
	require.Equal(t, 2, count)

	count, err = store.CountThisMonth(ctx, "user_2")
	require.NoError(t, err)
	require.Equal(t, 1, count)

	count, err = store.CountThisMonth(ctx, "user_3")
	require.NoError(t, err)
	require.Equal(t, 0, count)
}

func TestPostgresStoreSchemaIdempotent(t *testing.T) {
	store := setupPostgresStore(t)

	// Reapplying the schema against the same database must not fail.
	_, err := store.db.Exec(postgresSchema)
	require.NoError(t, err)
}
