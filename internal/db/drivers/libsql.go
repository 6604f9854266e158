package drivers

import (
	"context"

	"github.com/uptrace/bun"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
)

// LibSQLDriver talks to a remote libsql/Turso database using the sqlite
// dialect.
type LibSQLDriver struct {
	db *bun.DB
}

func NewLibSQLDriver(ctx context.Context, dsn string) (*LibSQLDriver, error) {
	db, err := openSQLite(ctx, "libsql", dsn)
	if err != nil {
		return nil, err
	}

	return &LibSQLDriver{db: db}, nil
}

func (d *LibSQLDriver) GetDB() *bun.DB {
	return d.db
}

func (d *LibSQLDriver) Close() error {
	return d.db.Close()
}
