package run

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/stablegen/gateway/internal/app"
	"github.com/stablegen/gateway/internal/config"
	"github.com/stablegen/gateway/internal/server"
	"github.com/stablegen/gateway/pkg/logger"
)

var Cmd = &cobra.Command{
	Use:   "run",
	Short: "Start the stablegen gateway",
	RunE:  runApp,
}

func init() {
	flags := Cmd.Flags()

	flags.Int("port", config.DefaultPort, "Port to run the server on")
	flags.String("host", "localhost", "Host to run the server on")
	flags.String("environment", "dev", "Environment configuration: dev, test or prod")
	flags.String("storage-type", config.StorageLocal, "Artifact storage: 'local' or 's3'")
	flags.String("volume-dir", "", "Directory generated images are written to")
	flags.String("public-dir", "", "Extra static files to serve. Relative paths are relative to the current working directory.")
	flags.String("worker-type", config.WorkerPlaceholder, "Remote worker: 'http', 'tcp' or 'placeholder'")
	flags.String("worker-url", "", "URL of the hosted GPU endpoint (http worker)")
	flags.String("worker-address", "", "host:port of the gen-server socket (tcp worker)")

	viper.BindPFlag("port", flags.Lookup("port"))
	viper.BindPFlag("host", flags.Lookup("host"))
	viper.BindPFlag("environment", flags.Lookup("environment"))
	viper.BindPFlag("storage_type", flags.Lookup("storage-type"))
	viper.BindPFlag("volume_dir", flags.Lookup("volume-dir"))
	viper.BindPFlag("public_dir", flags.Lookup("public-dir"))
	viper.BindPFlag("worker.type", flags.Lookup("worker-type"))
	viper.BindPFlag("worker.url", flags.Lookup("worker-url"))
	viper.BindPFlag("worker.address", flags.Lookup("worker-address"))
}

func runApp(_ *cobra.Command, _ []string) error {
	cfg := config.MustGetConfig()

	log, err := logger.NewLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	application, err := app.NewApp(cfg,
		app.WithLogger(log),
		app.WithStorage(),
		app.WithWorker(),
		app.WithHistory(),
		app.WithSafetyFilter(),
	)
	if err != nil {
		return err
	}
	defer application.Close()

	srv, err := server.NewServer(cfg, log)
	if err != nil {
		return err
	}
	srv.SetupRoutes(application.Handler())

	errc := make(chan error, 1)
	go func() {
		errc <- srv.Start()
	}()

	if sweeper := application.Sweeper(); sweeper != nil {
		log.Info("retention sweeper enabled",
			zap.Duration("ttl", cfg.Retention.TTL),
			zap.Duration("interval", cfg.Retention.Interval),
		)
		go sweeper.Run(application.Context())
	}

	log.Info("gateway ready",
		zap.String("worker", cfg.Worker.Type),
		zap.String("storage", cfg.StorageType),
		zap.Bool("history", cfg.HistoryEnabled()),
	)

	signalc := make(chan os.Signal, 1)
	signal.Notify(signalc, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errc:
		return err
	case <-signalc:
		return srv.Stop(context.Background())
	}
}
