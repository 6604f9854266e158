package db

import (
	"context"
	"fmt"

	"github.com/uptrace/bun/extra/bundebug"

	"github.com/stablegen/gateway/internal/config"
	"github.com/stablegen/gateway/internal/db/drivers"
)

func NewConnection(ctx context.Context, cfg *config.Config) (drivers.Driver, error) {
	if !cfg.HistoryEnabled() {
		return nil, fmt.Errorf("database dsn is not set")
	}

	var (
		driver drivers.Driver
		err    error
	)
	switch cfg.DB.Driver {
	case config.DriverSQLite:
		driver, err = drivers.NewSQLiteDriver(ctx, cfg.DB.DSN)
	case config.DriverLibSQL:
		driver, err = drivers.NewLibSQLDriver(ctx, cfg.DB.DSN)
	case config.DriverPG:
		driver, err = drivers.NewPGDriver(ctx, cfg.DB.DSN)
	default:
		return nil, fmt.Errorf("invalid database driver: %s", cfg.DB.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.DB.Driver, err)
	}

	driver.GetDB().AddQueryHook(bundebug.NewQueryHook(
		bundebug.WithEnabled(cfg.Environment == "dev"),
		bundebug.FromEnv(),
	))

	return driver, nil
}
