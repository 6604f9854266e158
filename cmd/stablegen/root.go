package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stablegen/gateway/cmd/stablegen/run"
	"github.com/stablegen/gateway/internal/config"
)

var Cmd = &cobra.Command{
	Use:   "stablegen",
	Short: "stablegen gateway CLI",
	Long:  "A gateway that forwards text-to-image requests to a remote GPU worker, stores the results and serves them over HTTP",

	// Runs before this command and any subcommands
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := viper.BindPFlags(cmd.Flags()); err != nil {
			return err
		}

		return config.InitConfig()
	},
	SilenceUsage: true,
}

func Execute() {
	if err := Cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	pflags := Cmd.PersistentFlags()

	pflags.String("home", "", "Path to the stablegen home directory")
	pflags.String("config-file", "", "Path to the config file")
	pflags.String("env-file", "", "Path to the env file")

	viper.BindPFlag("home", pflags.Lookup("home"))
	viper.BindPFlag("config_file", pflags.Lookup("config-file"))
	viper.BindPFlag("env_file", pflags.Lookup("env-file"))

	Cmd.AddCommand(run.Cmd, imagesCmd, volumeCmd, tokenCmd, dbCmd)
	Cmd.CompletionOptions.HiddenDefaultCmd = true
}
