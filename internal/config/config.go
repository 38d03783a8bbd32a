// Package config loads process configuration from the environment, with an
// optional .env file layered underneath.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"

	"humans/internal/blob"
	"humans/internal/core"
)

// Config is the full runtime configuration of humansd.
type Config struct {
	HTTPAddr        string        `env:"HUMANS_HTTP_ADDR,default=:8080"`
	LogLevel        string        `env:"HUMANS_LOG_LEVEL,default=info"`
	ShutdownTimeout time.Duration `env:"HUMANS_SHUTDOWN_TIMEOUT,default=10s"`

	Storage Storage
	Blob    Blob
}

// Storage selects the persistent store.
type Storage struct {
	Driver      string `env:"HUMANS_STORAGE_DRIVER,default=sqlite"`
	SQLitePath  string `env:"HUMANS_SQLITE_PATH,default=humans.db"`
	PostgresDSN string `env:"HUMANS_POSTGRES_DSN"`
}

// Blob selects the report export backend.
type Blob struct {
	Driver            string `env:"HUMANS_BLOB_DRIVER,default=fs"`
	FSRoot            string `env:"HUMANS_BLOB_FS_ROOT,default=./blobdata"`
	S3Bucket          string `env:"HUMANS_BLOB_S3_BUCKET"`
	S3Region          string `env:"HUMANS_BLOB_S3_REGION,default=us-east-1"`
	S3Endpoint        string `env:"HUMANS_BLOB_S3_ENDPOINT"`
	S3PathStyle       bool   `env:"HUMANS_BLOB_S3_PATH_STYLE,default=false"`
	S3AccessKeyID     string `env:"HUMANS_BLOB_S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"HUMANS_BLOB_S3_SECRET_ACCESS_KEY"`
}

// Load reads envFiles (default .env, silently skipped when absent) and then
// decodes the environment. Variables already set win over file values.
func Load(envFiles ...string) (Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("decode environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks enumerated values and driver prerequisites.
func (c Config) Validate() error {
	switch core.StorageDriver(c.Storage.Driver) {
	case core.StorageMemory, core.StorageSQLite:
	case core.StoragePostgres:
		if c.Storage.PostgresDSN == "" {
			return errors.New("HUMANS_POSTGRES_DSN is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown HUMANS_STORAGE_DRIVER %q", c.Storage.Driver)
	}
	switch blob.Driver(c.Blob.Driver) {
	case blob.DriverFilesystem, blob.DriverMemory:
	case blob.DriverS3:
		if c.Blob.S3Bucket == "" {
			return errors.New("HUMANS_BLOB_S3_BUCKET is required for the s3 driver")
		}
	default:
		return fmt.Errorf("unknown HUMANS_BLOB_DRIVER %q", c.Blob.Driver)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("HUMANS_SHUTDOWN_TIMEOUT must be positive, got %s", c.ShutdownTimeout)
	}
	return nil
}

// Level parses LogLevel.
func (c Config) Level() (zapcore.Level, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return zapcore.InfoLevel, fmt.Errorf("HUMANS_LOG_LEVEL: %w", err)
	}
	return level, nil
}

// StorageConfig maps the storage section onto core.StorageConfig.
func (c Config) StorageConfig() core.StorageConfig {
	return core.StorageConfig{
		Driver:      core.StorageDriver(c.Storage.Driver),
		SQLitePath:  c.Storage.SQLitePath,
		PostgresDSN: c.Storage.PostgresDSN,
	}
}

// BlobConfig maps the blob section onto blob.Config.
func (c Config) BlobConfig() blob.Config {
	return blob.Config{
		Driver: blob.Driver(c.Blob.Driver),
		FSRoot: c.Blob.FSRoot,
		S3: blob.S3Config{
			Region:          c.Blob.S3Region,
			Bucket:          c.Blob.S3Bucket,
			Endpoint:        c.Blob.S3Endpoint,
			AccessKeyID:     c.Blob.S3AccessKeyID,
			SecretAccessKey: c.Blob.S3SecretAccessKey,
			PathStyle:       c.Blob.S3PathStyle,
		},
	}
}
