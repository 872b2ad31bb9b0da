package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun/dialect"

	"pdf-chat/internal/apperr"
	"pdf-chat/internal/config"
	"pdf-chat/internal/models"
)

func newTestStore(t *testing.T) *HistoryStore {
	t.Helper()
	db, err := ConnectDB(&config.DatabaseConfig{Driver: config.DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, InitDB(context.Background(), db))
	// create-if-absent is idempotent
	require.NoError(t, InitDB(context.Background(), db))

	store := NewHistoryStore(db)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestHistoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	turns, err := store.LoadHistory(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, turns)

	first := []models.ChatTurn{
		{Role: models.RoleUser, Content: "What is in the report?"},
		{Role: models.RoleAssistant, Content: "Quarterly numbers."},
	}
	require.NoError(t, store.SaveHistory(ctx, "alice", first))

	turns, err = store.LoadHistory(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, first, turns)

	second := append(first, models.ChatTurn{Role: models.RoleUser, Content: "And revenue?"})
	require.NoError(t, store.SaveHistory(ctx, "alice", second))

	turns, err = store.LoadHistory(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, second, turns)

	other, err := store.LoadHistory(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestHistoryRequiresUsername(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.LoadHistory(ctx, "")
	assert.ErrorIs(t, err, apperr.ErrPersistence)
	assert.ErrorIs(t, store.SaveHistory(ctx, "", nil), apperr.ErrPersistence)
}

func TestHistoryTableMissing(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, DropHistories(ctx, store.db))

	_, err := store.LoadHistory(ctx, "alice")
	assert.ErrorIs(t, err, apperr.ErrPersistence)
	assert.ErrorIs(t, store.SaveHistory(ctx, "alice", nil), apperr.ErrPersistence)
}

func TestResetHistories(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.SaveHistory(ctx, "alice", []models.ChatTurn{{Role: models.RoleUser, Content: "hi"}}))

	require.NoError(t, ResetHistories(ctx, store.db))

	turns, err := store.LoadHistory(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, turns)
	require.NoError(t, store.SaveHistory(ctx, "alice", nil))
}

func TestConnectDBUnknownDriver(t *testing.T) {
	_, err := ConnectDB(&config.DatabaseConfig{Driver: "mysql", DSN: "x"})
	assert.ErrorIs(t, err, apperr.ErrPersistence)
}

func TestConnectDBPostgresDriversAreLazy(t *testing.T) {
	for _, driver := range []string{config.DriverPostgres, config.DriverPQ} {
		t.Run(driver, func(t *testing.T) {
			db, err := ConnectDB(&config.DatabaseConfig{
				Driver: driver,
				DSN:    "postgres://user@localhost:5432/chat?sslmode=disable",
				Debug:  true,
			})
			require.NoError(t, err)
			assert.Equal(t, dialect.PG, db.Dialect().Name())
			require.NoError(t, db.Close())
		})
	}
}
