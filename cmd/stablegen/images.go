package cmd

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stablegen/gateway/internal/config"
	"github.com/stablegen/gateway/internal/db"
	"github.com/stablegen/gateway/internal/db/migrations"
	"github.com/stablegen/gateway/internal/db/repository"
	"github.com/stablegen/gateway/internal/services/artifactstore"
	"github.com/stablegen/gateway/internal/services/generation"
)

var imagesCmd = &cobra.Command{
	Use:   "images",
	Short: "Inspect and clean up generated images",
}

func init() {
	setupImagesCmd(imagesCmd)
}

func setupImagesCmd(cmd *cobra.Command) {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recent generations, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.MustGetConfig()
			if !cfg.HistoryEnabled() {
				return fmt.Errorf("generation history is disabled, set db.dsn to enable it")
			}

			driver, err := db.NewConnection(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer driver.Close()

			if err := migrations.Migrate(cmd.Context(), driver.GetDB(), zap.NewNop()); err != nil {
				return err
			}

			limit, _ := cmd.Flags().GetInt("limit")
			gens, err := repository.NewGenerationRepository(driver.GetDB()).List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(gens) == 0 {
				fmt.Println("no generations recorded yet")
				return nil
			}

			ok := color.New(color.FgGreen)
			failed := color.New(color.FgRed)
			dim := color.New(color.FgHiBlack)
			for _, gen := range gens {
				status := ok.Sprint(gen.Status)
				if gen.Status != generation.StatusSuccess {
					status = failed.Sprintf("%s (%s)", gen.Status, gen.ErrorKind)
				}

				fmt.Printf("%s  %-24s %dx%d  %s\n", gen.ID, status, gen.Width, gen.Height, truncate(gen.Prompt, 60))
				dim.Printf("    %s  %dms\n", gen.CreatedAt.Format(time.RFC3339), gen.ElapsedMs)
			}
			return nil
		},
	}
	listCmd.Flags().Int("limit", repository.DefaultListLimit, "Number of generations to show")

	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove images older than the given age",
		RunE: func(cmd *cobra.Command, args []string) error {
			olderThan, _ := cmd.Flags().GetDuration("older-than")
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}

			store, err := artifactstore.NewStore(config.MustGetConfig())
			if err != nil {
				return err
			}

			removed, err := artifactstore.NewSweeper(store, olderThan, olderThan).SweepOnce(cmd.Context())
			if err != nil {
				return err
			}

			color.Green("removed %d image(s) older than %s", removed, olderThan)
			return nil
		},
	}
	pruneCmd.Flags().Duration("older-than", 72*time.Hour, "Minimum age of images to remove")

	cmd.AddCommand(listCmd, pruneCmd)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
