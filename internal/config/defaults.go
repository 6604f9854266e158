package config

import (
	"errors"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

const DefaultHomeDir = "~/.stablegen"

const (
	DefaultPort          = 8881
	DefaultWorkerTimeout = 900 * time.Second
	DefaultSweepInterval = time.Hour
)

var (
	ErrHomeExpandFailed    = errors.New("failed to expand home directory")
	ErrVolumeDirNotSet     = errors.New("volume directory is not set")
	ErrWorkerNotConfigured = errors.New("remote worker is not configured")
)

// SetDefaults registers every known key with viper so that environment
// variables are picked up for nested keys as well.
func SetDefaults(homeDir string) {
	viper.SetDefault("port", DefaultPort)
	viper.SetDefault("host", "localhost")
	viper.SetDefault("environment", "dev")
	viper.SetDefault("public_dir", "")
	viper.SetDefault("log_file", "")
	viper.SetDefault("volume_dir", filepath.Join(homeDir, "images"))
	viper.SetDefault("models_dir", filepath.Join(homeDir, "models"))
	viper.SetDefault("storage_type", StorageLocal)
	viper.SetDefault("safety_filter", false)

	viper.SetDefault("s3.folder", "images")
	viper.SetDefault("s3.region_name", "auto")
	viper.SetDefault("s3.bucket_name", "")
	viper.SetDefault("s3.access_key", "")
	viper.SetDefault("s3.secret_key", "")
	viper.SetDefault("s3.endpoint_url", "")
	viper.SetDefault("s3.public_url", "")

	viper.SetDefault("worker.type", WorkerPlaceholder)
	viper.SetDefault("worker.url", "")
	viper.SetDefault("worker.address", "")
	viper.SetDefault("worker.token", "")
	viper.SetDefault("worker.timeout", DefaultWorkerTimeout)
	viper.SetDefault("worker.max_in_flight", 0)
	viper.SetDefault("worker.max_retries", 0)

	viper.SetDefault("retention.ttl", time.Duration(0))
	viper.SetDefault("retention.interval", DefaultSweepInterval)

	viper.SetDefault("db.driver", DriverSQLite)
	viper.SetDefault("db.dsn", "")

	viper.SetDefault("openai.api_key", "")
}

// Default returns a config usable without any file or environment, rooted
// at homeDir. Mostly useful for tests and the placeholder worker.
func Default(homeDir string) *Config {
	return &Config{
		Port:        DefaultPort,
		Host:        "localhost",
		Environment: "dev",
		HomeDir:     homeDir,
		VolumeDir:   filepath.Join(homeDir, "images"),
		ModelsDir:   filepath.Join(homeDir, "models"),
		StorageType: StorageLocal,
		S3:          &S3Config{Folder: "images", Region: "auto"},
		Worker: &WorkerConfig{
			Type:    WorkerPlaceholder,
			Timeout: DefaultWorkerTimeout,
		},
		Retention: &RetentionConfig{Interval: DefaultSweepInterval},
		DB:        &DBConfig{Driver: DriverSQLite},
		OpenAI:    &OpenAIConfig{},
	}
}
