package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/stablegen/gateway/internal/utils/pathutil"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

const (
	WorkerHTTP        = "http"
	WorkerTCP         = "tcp"
	WorkerPlaceholder = "placeholder"
)

const (
	DriverSQLite = "sqlite"
	DriverLibSQL = "libsql"
	DriverPG     = "pg"
)

const EnvPrefix = "STABLEGEN"

type Config struct {
	Port         int              `mapstructure:"port"`
	Host         string           `mapstructure:"host"`
	Environment  string           `mapstructure:"environment"`
	HomeDir      string           `mapstructure:"home_dir"`
	PublicDir    string           `mapstructure:"public_dir"`
	LogFile      string           `mapstructure:"log_file"`
	VolumeDir    string           `mapstructure:"volume_dir"`
	ModelsDir    string           `mapstructure:"models_dir"`
	StorageType  string           `mapstructure:"storage_type"`
	SafetyFilter bool             `mapstructure:"safety_filter"`
	S3           *S3Config        `mapstructure:"s3"`
	Worker       *WorkerConfig    `mapstructure:"worker"`
	Retention    *RetentionConfig `mapstructure:"retention"`
	DB           *DBConfig        `mapstructure:"db"`
	OpenAI       *OpenAIConfig    `mapstructure:"openai"`
}

type S3Config struct {
	Folder      string `mapstructure:"folder"`
	Region      string `mapstructure:"region_name"`
	Bucket      string `mapstructure:"bucket_name"`
	AccessKey   string `mapstructure:"access_key"`
	SecretKey   string `mapstructure:"secret_key"`
	EndpointUrl string `mapstructure:"endpoint_url"`
	PublicUrl   string `mapstructure:"public_url"`
}

type WorkerConfig struct {
	Type        string        `mapstructure:"type"`
	URL         string        `mapstructure:"url"`
	Address     string        `mapstructure:"address"`
	Token       string        `mapstructure:"token"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxInFlight int           `mapstructure:"max_in_flight"`
	MaxRetries  int           `mapstructure:"max_retries"`
}

type RetentionConfig struct {
	TTL      time.Duration `mapstructure:"ttl"`
	Interval time.Duration `mapstructure:"interval"`
}

type DBConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type OpenAIConfig struct {
	APIKey string `mapstructure:"api_key"`
}

var config *Config

// InitConfig resolves the home directory, loads <home>/.env and
// <home>/config.yaml when present and unmarshals the result.
func InitConfig() error {
	homeDir, err := getHomeDir()
	if err != nil {
		return err
	}

	viper.Set("home_dir", homeDir)
	SetDefaults(homeDir)

	envFile := viper.GetString("env_file")
	if envFile == "" {
		envFile = filepath.Join(homeDir, ".env")
	}

	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("failed to load env file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat env file: %w", err)
	}

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`, `-`, `_`))
	viper.AutomaticEnv()
	bindEnvs()

	configFile := viper.GetString("config_file")
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
		viper.AddConfigPath(homeDir)
	}

	if err := viper.ReadInConfig(); err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return fmt.Errorf("error reading config: %w", err)
		}
	}

	return LoadConfig()
}

// LoadConfig unmarshals the current viper state into the package config.
func LoadConfig() error {
	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("error unmarshalling config: %w", err)
	}

	if err := cfg.expandPaths(); err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	config = cfg
	return nil
}

func GetConfig() *Config {
	return config
}

func MustGetConfig() *Config {
	if config == nil {
		panic("config not loaded")
	}

	return config
}

func (c *Config) Validate() error {
	switch strings.ToLower(c.StorageType) {
	case StorageLocal:
		if c.VolumeDir == "" {
			return ErrVolumeDirNotSet
		}
	case StorageS3:
		if c.S3 == nil || c.S3.Bucket == "" {
			return fmt.Errorf("s3 storage requires s3.bucket_name")
		}
	default:
		return fmt.Errorf("invalid storage type %q", c.StorageType)
	}

	if c.Worker == nil {
		return ErrWorkerNotConfigured
	}

	switch strings.ToLower(c.Worker.Type) {
	case WorkerHTTP:
		if c.Worker.URL == "" {
			return fmt.Errorf("http worker requires worker.url")
		}
	case WorkerTCP:
		if c.Worker.Address == "" {
			return fmt.Errorf("tcp worker requires worker.address")
		}
	case WorkerPlaceholder:
	default:
		return fmt.Errorf("invalid worker type %q", c.Worker.Type)
	}

	if c.Worker.Timeout <= 0 {
		return fmt.Errorf("worker.timeout must be positive")
	}
	if c.Worker.MaxInFlight < 0 || c.Worker.MaxRetries < 0 {
		return fmt.Errorf("worker.max_in_flight and worker.max_retries must not be negative")
	}

	if c.Retention != nil && c.Retention.TTL > 0 && c.Retention.Interval <= 0 {
		return fmt.Errorf("retention.interval must be positive when retention.ttl is set")
	}
	if c.Retention != nil && c.Retention.TTL < 0 {
		return fmt.Errorf("retention.ttl must not be negative")
	}

	if c.DB != nil && c.DB.DSN != "" {
		switch c.DB.Driver {
		case DriverSQLite, DriverLibSQL, DriverPG:
		default:
			return fmt.Errorf("invalid database driver: %s", c.DB.Driver)
		}
	}

	if c.SafetyFilter && (c.OpenAI == nil || c.OpenAI.APIKey == "") {
		return fmt.Errorf("openAI API-key is not set. Cannot enable safety filter")
	}

	return nil
}

// HistoryEnabled reports whether generation history should be recorded.
func (c *Config) HistoryEnabled() bool {
	return c.DB != nil && c.DB.DSN != ""
}

func (c *Config) expandPaths() error {
	var err error
	for _, p := range []*string{&c.HomeDir, &c.VolumeDir, &c.ModelsDir, &c.PublicDir, &c.LogFile} {
		if *p == "" {
			continue
		}
		if *p, err = pathutil.ExpandPath(*p); err != nil {
			return fmt.Errorf("failed to expand path %s: %w", *p, err)
		}
	}

	return nil
}

// Returns the home directory path.
// It attempts to retrieve it from the following sources in order:
// 1. The `home` flag (bound to viper).
// 2. The `STABLEGEN_HOME` environment variable.
// 3. The default home directory.
func getHomeDir() (string, error) {
	homeDir := viper.GetString("home")
	if homeDir == "" {
		homeDir = os.Getenv(EnvPrefix + "_HOME")
		if homeDir == "" {
			homeDir = DefaultHomeDir
		}
	}

	homeDir, err := pathutil.ExpandPath(homeDir)
	if err != nil {
		return "", ErrHomeExpandFailed
	}

	return homeDir, nil
}

func bindEnvs() {
	// External API services (does NOT use the STABLEGEN_ prefix)
	viper.BindEnv("openai.api_key", "OPENAI_API_KEY")
}
