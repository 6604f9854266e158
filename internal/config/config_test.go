package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestValidate(t *testing.T) {
	home := t.TempDir()

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:    "defaults",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "unknown storage",
			mutate:  func(c *Config) { c.StorageType = "ftp" },
			wantErr: true,
		},
		{
			name:    "s3 without bucket",
			mutate:  func(c *Config) { c.StorageType = StorageS3 },
			wantErr: true,
		},
		{
			name:    "http worker without url",
			mutate:  func(c *Config) { c.Worker.Type = WorkerHTTP },
			wantErr: true,
		},
		{
			name: "http worker with url",
			mutate: func(c *Config) {
				c.Worker.Type = WorkerHTTP
				c.Worker.URL = "https://example.test/generate"
			},
			wantErr: false,
		},
		{
			name:    "tcp worker without address",
			mutate:  func(c *Config) { c.Worker.Type = WorkerTCP },
			wantErr: true,
		},
		{
			name:    "zero timeout",
			mutate:  func(c *Config) { c.Worker.Timeout = 0 },
			wantErr: true,
		},
		{
			name:    "negative in-flight",
			mutate:  func(c *Config) { c.Worker.MaxInFlight = -1 },
			wantErr: true,
		},
		{
			name:    "retention ttl without interval",
			mutate:  func(c *Config) { c.Retention.TTL = time.Hour; c.Retention.Interval = 0 },
			wantErr: true,
		},
		{
			name:    "retention ttl with negative interval",
			mutate:  func(c *Config) { c.Retention.TTL = time.Hour; c.Retention.Interval = -time.Minute },
			wantErr: true,
		},
		{
			name:    "negative retention ttl",
			mutate:  func(c *Config) { c.Retention.TTL = -time.Hour },
			wantErr: true,
		},
		{
			name:    "retention ttl with interval",
			mutate:  func(c *Config) { c.Retention.TTL = 72 * time.Hour },
			wantErr: false,
		},
		{
			name:    "retention disabled ignores interval",
			mutate:  func(c *Config) { c.Retention.Interval = 0 },
			wantErr: false,
		},
		{
			name: "bad db driver",
			mutate: func(c *Config) {
				c.DB.Driver = "mysql"
				c.DB.DSN = "root@/db"
			},
			wantErr: true,
		},
		{
			name:    "safety filter without key",
			mutate:  func(c *Config) { c.SafetyFilter = true },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default(home)
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected error but got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestInitConfigReadsYAMLAndEnv(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	home := t.TempDir()
	yaml := []byte("port: 9000\nworker:\n  type: http\n  url: https://gpu.example.test/generate\n  timeout: 30s\n")
	if err := os.WriteFile(filepath.Join(home, "config.yaml"), yaml, 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	t.Setenv("STABLEGEN_HOME", home)
	t.Setenv("STABLEGEN_WORKER_MAX_IN_FLIGHT", "4")

	if err := InitConfig(); err != nil {
		t.Fatalf("InitConfig: %v", err)
	}

	cfg := MustGetConfig()
	if cfg.Port != 9000 {
		t.Errorf("port = %d, want 9000", cfg.Port)
	}
	if cfg.Worker.Type != WorkerHTTP {
		t.Errorf("worker.type = %q, want %q", cfg.Worker.Type, WorkerHTTP)
	}
	if cfg.Worker.Timeout != 30*time.Second {
		t.Errorf("worker.timeout = %v, want 30s", cfg.Worker.Timeout)
	}
	if cfg.Worker.MaxInFlight != 4 {
		t.Errorf("worker.max_in_flight = %d, want 4", cfg.Worker.MaxInFlight)
	}
	if cfg.VolumeDir != filepath.Join(home, "images") {
		t.Errorf("volume_dir = %q", cfg.VolumeDir)
	}
	if cfg.HistoryEnabled() {
		t.Error("history should be disabled without a dsn")
	}
}
