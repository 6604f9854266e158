package drivers

import (
	"context"
	"database/sql"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// SQLiteDriver opens a local sqlite file through sqliteshim, which picks
// the cgo or pure-go driver depending on the build.
type SQLiteDriver struct {
	db *bun.DB
}

func NewSQLiteDriver(ctx context.Context, dsn string) (*SQLiteDriver, error) {
	db, err := openSQLite(ctx, sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, err
	}

	return &SQLiteDriver{db: db}, nil
}

func (d *SQLiteDriver) GetDB() *bun.DB {
	return d.db
}

func (d *SQLiteDriver) Close() error {
	return d.db.Close()
}

func openSQLite(ctx context.Context, name, dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(name, dsn)
	if err != nil {
		return nil, err
	}
	// sqlite serializes writers anyway, and a single connection keeps
	// in-memory databases alive
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}
