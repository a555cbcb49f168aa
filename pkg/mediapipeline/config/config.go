// Package config loads pipeline configuration and builds the wired
// components: stores, gateway, asset store, publisher, dispatcher and
// replicator. Everything is constructed explicitly; nothing reaches for
// ambient global clients.
package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/photovault/media-pipeline/pkg/mediapipeline"
	"github.com/photovault/media-pipeline/pkg/mediapipeline/backup"
	"github.com/photovault/media-pipeline/pkg/mediapipeline/events"
	"github.com/photovault/media-pipeline/pkg/mediapipeline/image"
	"github.com/photovault/media-pipeline/pkg/mediapipeline/metrics"
	repomemory "github.com/photovault/media-pipeline/pkg/mediapipeline/repo/memory"
	repopg "github.com/photovault/media-pipeline/pkg/mediapipeline/repo/postgres"
	fsstorage "github.com/photovault/media-pipeline/pkg/mediapipeline/storage/fs"
	memorystorage "github.com/photovault/media-pipeline/pkg/mediapipeline/storage/memory"
	s3storage "github.com/photovault/media-pipeline/pkg/mediapipeline/storage/s3"
	"github.com/photovault/media-pipeline/pkg/mediapipeline/video"
	"go.uber.org/zap"
)

// Option applies configuration to a Config instance.
type Option func(*Config) error

// Load constructs a Config by applying the supplied options on top of
// defaults, then validating the result.
func Load(opts ...Option) (*Config, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() Config {
	return Config{
		Port:        "8080",
		Environment: "development",

		DatabaseType: "memory",

		Storage: StorageConfig{Type: "memory", MemoryBucket: "media"},
		Backup: BackupConfig{
			Storage:       StorageConfig{Type: "memory", MemoryBucket: "media-backup"},
			RetentionDays: 30,
			Schedule:      "0 2 * * *",
		},

		Kafka: KafkaConfig{
			Brokers: []string{"localhost:9092"},
			GroupID: "media-pipeline",
		},
	}
}

// Config represents worker configuration for the media pipeline.
type Config struct {
	Port        string
	Environment string // development, production, testing

	// Database configuration
	DatabaseURL  string
	DatabaseType string // "memory", "postgres"

	// Primary object storage and public URL prefix
	Storage    StorageConfig
	CDNBaseURL string

	// Backup replication
	BackupEnabled bool
	Backup        BackupConfig

	// Messaging
	Kafka KafkaConfig

	// Transform stages
	Image image.Config
	Video video.Config
}

// StorageConfig selects and configures one object storage backend.
type StorageConfig struct {
	Type string // "memory", "fs", "s3"

	MemoryBucket string

	FSBaseDir   string
	FSURLPrefix string

	S3 s3storage.Config
}

// BackupConfig configures the backup replicator.
type BackupConfig struct {
	Storage       StorageConfig
	RetentionDays int
	Schedule      string // cron expression
}

// KafkaConfig configures event publishing and consumption.
type KafkaConfig struct {
	Brokers []string
	GroupID string
}

// Validate validates the worker configuration.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	if c.DatabaseType != "memory" && c.DatabaseType != "postgres" {
		return errors.New("database_type must be 'memory' or 'postgres'")
	}
	if c.DatabaseType == "postgres" && c.DatabaseURL == "" {
		return errors.New("database_url is required when using postgres")
	}

	if err := c.Storage.validate("storage"); err != nil {
		return err
	}
	if c.BackupEnabled {
		if err := c.Backup.Storage.validate("backup storage"); err != nil {
			return err
		}
	}

	if len(c.Kafka.Brokers) == 0 {
		return errors.New("at least one kafka broker is required")
	}

	return nil
}

func (s *StorageConfig) validate(label string) error {
	switch s.Type {
	case "memory":
		return nil
	case "fs":
		if s.FSBaseDir == "" {
			return fmt.Errorf("%s: base directory is required for fs backend", label)
		}
	case "s3":
		if s.S3.Bucket == "" {
			return fmt.Errorf("%s: bucket is required for s3 backend", label)
		}
	default:
		return fmt.Errorf("%s: unsupported backend type: %s", label, s.Type)
	}
	return nil
}

// BuildLogger creates a zap logger matching the configured environment.
func (c *Config) BuildLogger() (*zap.Logger, error) {
	if c.Environment == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// BuildPrimaryStore creates the primary object storage backend.
func (c *Config) BuildPrimaryStore() (mediapipeline.ObjectStore, error) {
	return c.Storage.build()
}

// BuildBackupStore creates the backup object storage backend, or nil when
// backup is disabled.
func (c *Config) BuildBackupStore() (mediapipeline.ObjectStore, error) {
	if !c.BackupEnabled {
		return nil, nil
	}
	return c.Backup.Storage.build()
}

func (s *StorageConfig) build() (mediapipeline.ObjectStore, error) {
	switch s.Type {
	case "memory":
		bucket := s.MemoryBucket
		if bucket == "" {
			bucket = "media"
		}
		return memorystorage.New(bucket), nil

	case "fs":
		return fsstorage.New(fsstorage.Config{
			BaseDir:   s.FSBaseDir,
			URLPrefix: s.FSURLPrefix,
		})

	case "s3":
		return s3storage.New(s.S3)

	default:
		return nil, fmt.Errorf("unsupported storage backend type: %s", s.Type)
	}
}

// BuildGateway creates the storage gateway over the given backend.
func (c *Config) BuildGateway(store mediapipeline.ObjectStore, logger *zap.Logger) (*mediapipeline.Gateway, error) {
	return mediapipeline.NewGateway(mediapipeline.GatewayConfig{
		Store:      store,
		CDNBaseURL: c.CDNBaseURL,
		Logger:     logger,
	})
}

// BuildAssetStore creates the asset store based on the configuration. For
// postgres it also ensures the schema exists.
func (c *Config) BuildAssetStore(ctx context.Context) (mediapipeline.AssetStore, error) {
	switch c.DatabaseType {
	case "memory":
		return repomemory.New(), nil
	case "postgres":
		pool, err := pgxpool.New(ctx, c.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create pgx pool: %w", err)
		}
		store := repopg.NewWithPool(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("failed to ensure schema: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

// BuildPublisher creates the event publisher.
func (c *Config) BuildPublisher(logger *zap.Logger, m *metrics.Metrics) *events.Publisher {
	return events.NewPublisher(events.PublisherConfig{
		Brokers: c.Kafka.Brokers,
		Logger:  logger,
		Metrics: m,
	})
}

// BuildDispatcher creates the event dispatcher with both transform stages
// wired over the gateway.
func (c *Config) BuildDispatcher(gateway *mediapipeline.Gateway, assets mediapipeline.AssetStore, logger *zap.Logger, m *metrics.Metrics) (*events.Dispatcher, error) {
	return events.NewDispatcher(events.DispatcherConfig{
		Brokers: c.Kafka.Brokers,
		GroupID: c.Kafka.GroupID,
		Assets:  assets,
		Images:  image.NewProcessor(gateway, c.Image, logger),
		Videos:  video.NewProcessor(gateway, nil, c.Video, logger),
		Logger:  logger,
		Metrics: m,
	})
}

// BuildReplicator creates the backup replicator over the two stores.
func (c *Config) BuildReplicator(primary, backupStore mediapipeline.ObjectStore, logger *zap.Logger, m *metrics.Metrics) *backup.Replicator {
	return backup.New(primary, backupStore, backup.Config{
		Enabled:       c.BackupEnabled,
		RetentionDays: c.Backup.RetentionDays,
	}, logger, m)
}
