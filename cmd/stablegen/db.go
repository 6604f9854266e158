package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun/migrate"

	"github.com/stablegen/gateway/internal/config"
	"github.com/stablegen/gateway/internal/db"
	"github.com/stablegen/gateway/internal/db/migrations"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Utility for history database management",
}

func init() {
	setupMigrationCmd(dbCmd)
}

// withMigrator opens the history database for the duration of fn.
func withMigrator(ctx context.Context, fn func(*migrate.Migrator) error) error {
	cfg := config.MustGetConfig()
	if !cfg.HistoryEnabled() {
		return fmt.Errorf("generation history is disabled, set db.dsn to enable it")
	}

	driver, err := db.NewConnection(ctx, cfg)
	if err != nil {
		return err
	}
	defer driver.Close()

	return fn(migrate.NewMigrator(driver.GetDB(), migrations.Migrations))
}

func setupMigrationCmd(cmd *cobra.Command) {
	migrationCmd := &cobra.Command{
		Use:   "migration",
		Short: "Utility for handling database migrations",
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "create migration tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(m *migrate.Migrator) error {
				return m.Init(cmd.Context())
			})
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "migrate database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(m *migrate.Migrator) error {
				if err := m.Init(cmd.Context()); err != nil {
					return err
				}
				if err := m.Lock(cmd.Context()); err != nil {
					return err
				}
				defer m.Unlock(cmd.Context()) //nolint:errcheck

				group, err := m.Migrate(cmd.Context())
				if err != nil {
					return err
				}
				if group.IsZero() {
					fmt.Printf("there are no new migrations to run (database is up to date)\n")
					return nil
				}
				fmt.Printf("migrated to %s\n", group)
				return nil
			})
		},
	}

	rollbackCmd := &cobra.Command{
		Use:   "rollback",
		Short: "rollback the last migration group",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(m *migrate.Migrator) error {
				if err := m.Lock(cmd.Context()); err != nil {
					return err
				}
				defer m.Unlock(cmd.Context()) //nolint:errcheck

				group, err := m.Rollback(cmd.Context())
				if err != nil {
					return err
				}
				if group.IsZero() {
					fmt.Printf("there are no groups to roll back\n")
					return nil
				}
				fmt.Printf("rolled back %s\n", group)
				return nil
			})
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "print migrations status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(m *migrate.Migrator) error {
				ms, err := m.MigrationsWithStatus(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Printf("migrations: %s\n", ms)
				fmt.Printf("unapplied migrations: %s\n", ms.Unapplied())
				fmt.Printf("last migration group: %s\n", ms.LastGroup())
				return nil
			})
		},
	}

	migrationCmd.AddCommand(initCmd, migrateCmd, rollbackCmd, statusCmd)
	cmd.AddCommand(migrationCmd)
}
