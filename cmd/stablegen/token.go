package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/stablegen/gateway/internal/config"
	"github.com/stablegen/gateway/internal/services/remoteworker"
	"github.com/stablegen/gateway/internal/utils/randutil"
)

const workerTokenEnv = config.EnvPrefix + "_WORKER_TOKEN"

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage the token sent to the remote worker",
}

func init() {
	setCmd := &cobra.Command{
		Use:   "set <token>",
		Short: "Store the worker token in the home env file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			envFile := envFilePath(config.MustGetConfig())
			if err := writeEnvValue(envFile, workerTokenEnv, args[0]); err != nil {
				return err
			}

			color.Green("worker token %s written to %s", randutil.MaskString(args[0], 4, 4), envFile)
			return nil
		},
	}

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Show the configured worker token and optionally probe the worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.MustGetConfig()
			if cfg.Worker.Token == "" {
				color.Yellow("no worker token configured (%s)", workerTokenEnv)
			} else {
				fmt.Printf("worker token: %s\n", randutil.MaskString(cfg.Worker.Token, 4, 4))
			}

			probe, _ := cmd.Flags().GetBool("probe")
			if !probe {
				return nil
			}

			worker, err := remoteworker.NewWorker(cfg.Worker, zap.NewNop())
			if err != nil {
				return err
			}
			pinger, ok := worker.(remoteworker.Pinger)
			if !ok {
				color.Yellow("%s worker does not support probing", cfg.Worker.Type)
				return nil
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			if err := pinger.Ping(ctx); err != nil {
				color.Red("worker probe failed: %v", err)
				return err
			}

			color.Green("worker at %s accepted the token", workerTarget(cfg.Worker))
			return nil
		},
	}
	checkCmd.Flags().Bool("probe", false, "Ping the worker with the configured token")

	tokenCmd.AddCommand(setCmd, checkCmd)
}

func envFilePath(cfg *config.Config) string {
	if envFile := viper.GetString("env_file"); envFile != "" {
		return envFile
	}
	return filepath.Join(cfg.HomeDir, ".env")
}

// writeEnvValue sets key in the env file, keeping every other entry.
func writeEnvValue(envFile, key, value string) error {
	env := map[string]string{}
	if _, err := os.Stat(envFile); err == nil {
		if env, err = godotenv.Read(envFile); err != nil {
			return fmt.Errorf("failed to read env file: %w", err)
		}
	}
	env[key] = value

	if err := os.MkdirAll(filepath.Dir(envFile), os.ModePerm); err != nil {
		return err
	}
	if err := godotenv.Write(env, envFile); err != nil {
		return fmt.Errorf("failed to write env file: %w", err)
	}

	return os.Chmod(envFile, 0600)
}

func workerTarget(cfg *config.WorkerConfig) string {
	if cfg.Type == config.WorkerTCP {
		return cfg.Address
	}
	return cfg.URL
}
