package migrations

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/stablegen/gateway/internal/db/models"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		if _, err := db.NewCreateTable().
			Model((*models.Generation)(nil)).
			IfNotExists().
			Exec(ctx); err != nil {
			return err
		}

		_, err := db.NewCreateIndex().
			Model((*models.Generation)(nil)).
			Index("generations_created_at_idx").
			Column("created_at").
			IfNotExists().
			Exec(ctx)
		return err
	}, func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewDropTable().
			Model((*models.Generation)(nil)).
			IfExists().
			Exec(ctx)
		return err
	})
}
