package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
	"github.com/uptrace/bun/schema"
	_ "modernc.org/sqlite"

	"pdf-chat/internal/apperr"
	"pdf-chat/internal/config"
)

// ConnectDB opens the history database for the configured driver and
// returns it wrapped in bun with the matching dialect.
func ConnectDB(dbConfig *config.DatabaseConfig) (*bun.DB, error) {
	var (
		sqldb   *sql.DB
		dialect schema.Dialect
		err     error
	)
	switch dbConfig.Driver {
	case config.DriverPostgres:
		opts := []pgdriver.Option{pgdriver.WithDSN(dbConfig.DSN)}
		if dbConfig.Password != "" {
			opts = append(opts, pgdriver.WithPassword(dbConfig.Password))
		}
		sqldb = sql.OpenDB(pgdriver.NewConnector(opts...))
		dialect = pgdialect.New()
	case config.DriverPQ:
		sqldb, err = sql.Open("postgres", dbConfig.DSN)
		dialect = pgdialect.New()
	case config.DriverSQLite:
		sqldb, err = sql.Open("sqlite", dbConfig.DSN)
		if err == nil {
			// a second connection would see a different in-memory database
			sqldb.SetMaxOpenConns(1)
		}
		dialect = sqlitedialect.New()
	default:
		err = fmt.Errorf("unsupported database driver: %s", dbConfig.Driver)
	}
	if err != nil {
		return nil, apperr.New(apperr.KindPersistence, "connect", err)
	}
	return NewDB(sqldb, dialect, dbConfig.Debug), nil
}

func NewDB(sqldb *sql.DB, dialect schema.Dialect, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, dialect)
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// InitDB creates the chat history table if it does not exist yet.
func InitDB(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().Model((*ChatHistory)(nil)).IfNotExists().Exec(ctx)
	if err != nil {
		return apperr.New(apperr.KindPersistence, "create table", err)
	}
	return nil
}

// drop table chat_histories
func DropHistories(ctx context.Context, db *bun.DB) error {
	_, err := db.NewDropTable().Model((*ChatHistory)(nil)).IfExists().Exec(ctx)
	if err != nil {
		return apperr.New(apperr.KindPersistence, "drop table", err)
	}
	return nil
}

// ResetHistories drops every stored transcript and recreates the empty table.
func ResetHistories(ctx context.Context, db *bun.DB) error {
	if err := DropHistories(ctx, db); err != nil {
		return err
	}
	return InitDB(ctx, db)
}
