package config

import (
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

// envConfig is the flat environment surface, read with cleanenv. Empty values
// leave the corresponding Config field untouched so defaults and programmatic
// options survive.
type envConfig struct {
	Port        string `env:"PORT"`
	Environment string `env:"ENVIRONMENT"`

	DatabaseURL string `env:"DATABASE_URL"`

	StorageType  string `env:"STORAGE_TYPE"`
	MemoryBucket string `env:"STORAGE_MEMORY_BUCKET"`
	FSBaseDir    string `env:"STORAGE_FS_BASE_DIR"`
	FSURLPrefix  string `env:"STORAGE_FS_URL_PREFIX"`

	S3Region          string `env:"S3_REGION"`
	S3Bucket          string `env:"S3_BUCKET"`
	S3AccessKeyID     string `env:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY"`
	S3Endpoint        string `env:"S3_ENDPOINT"`
	S3UsePathStyle    bool   `env:"S3_USE_PATH_STYLE"`

	CDNBaseURL string `env:"CDN_BASE_URL"`

	BackupEnabled       bool   `env:"BACKUP_ENABLED"`
	BackupStorageType   string `env:"BACKUP_STORAGE_TYPE"`
	BackupMemoryBucket  string `env:"BACKUP_STORAGE_MEMORY_BUCKET"`
	BackupFSBaseDir     string `env:"BACKUP_STORAGE_FS_BASE_DIR"`
	BackupS3Bucket      string `env:"BACKUP_S3_BUCKET"`
	BackupRetentionDays int    `env:"BACKUP_RETENTION_DAYS"`
	BackupSchedule      string `env:"BACKUP_SCHEDULE"`

	KafkaBrokers string `env:"KAFKA_BROKERS"`
	KafkaGroupID string `env:"KAFKA_GROUP_ID"`

	ImageThumbnailSize int `env:"IMAGE_THUMBNAIL_SIZE"`
	ImagePreviewSize   int `env:"IMAGE_PREVIEW_SIZE"`
	ImageOptimizedSize int `env:"IMAGE_OPTIMIZED_SIZE"`
	ImageQuality       int `env:"IMAGE_QUALITY"`

	FFmpegPath           string `env:"FFMPEG_PATH"`
	FFprobePath          string `env:"FFPROBE_PATH"`
	VideoThumbnailOffset int    `env:"VIDEO_THUMBNAIL_OFFSET"`
	VideoMaxResolution   int    `env:"VIDEO_MAX_RESOLUTION"`
	VideoQuality         int    `env:"VIDEO_QUALITY"`
}

// WithEnv applies environment variable overrides on top of the current
// configuration. Unset variables leave existing values in place.
func WithEnv() Option {
	return func(c *Config) error {
		var e envConfig
		if err := cleanenv.ReadEnv(&e); err != nil {
			return err
		}

		setString(&c.Port, e.Port)
		setString(&c.Environment, e.Environment)

		if e.DatabaseURL != "" {
			c.DatabaseURL = e.DatabaseURL
			c.DatabaseType = "postgres"
		}

		setString(&c.Storage.Type, e.StorageType)
		setString(&c.Storage.MemoryBucket, e.MemoryBucket)
		setString(&c.Storage.FSBaseDir, e.FSBaseDir)
		setString(&c.Storage.FSURLPrefix, e.FSURLPrefix)

		setString(&c.Storage.S3.Region, e.S3Region)
		setString(&c.Storage.S3.Bucket, e.S3Bucket)
		setString(&c.Storage.S3.AccessKeyID, e.S3AccessKeyID)
		setString(&c.Storage.S3.SecretAccessKey, e.S3SecretAccessKey)
		setString(&c.Storage.S3.Endpoint, e.S3Endpoint)
		if e.S3UsePathStyle {
			c.Storage.S3.UsePathStyle = true
		}

		setString(&c.CDNBaseURL, e.CDNBaseURL)

		if e.BackupEnabled {
			c.BackupEnabled = true
		}
		setString(&c.Backup.Storage.Type, e.BackupStorageType)
		setString(&c.Backup.Storage.MemoryBucket, e.BackupMemoryBucket)
		setString(&c.Backup.Storage.FSBaseDir, e.BackupFSBaseDir)
		setString(&c.Backup.Storage.S3.Bucket, e.BackupS3Bucket)
		// The backup bucket shares the primary's region and credentials unless
		// the backup store is configured programmatically.
		setString(&c.Backup.Storage.S3.Region, e.S3Region)
		setString(&c.Backup.Storage.S3.AccessKeyID, e.S3AccessKeyID)
		setString(&c.Backup.Storage.S3.SecretAccessKey, e.S3SecretAccessKey)
		setString(&c.Backup.Storage.S3.Endpoint, e.S3Endpoint)
		if e.BackupRetentionDays > 0 {
			c.Backup.RetentionDays = e.BackupRetentionDays
		}
		setString(&c.Backup.Schedule, e.BackupSchedule)

		if e.KafkaBrokers != "" {
			brokers := strings.Split(e.KafkaBrokers, ",")
			for i := range brokers {
				brokers[i] = strings.TrimSpace(brokers[i])
			}
			c.Kafka.Brokers = brokers
		}
		setString(&c.Kafka.GroupID, e.KafkaGroupID)

		setInt(&c.Image.ThumbnailSize, e.ImageThumbnailSize)
		setInt(&c.Image.PreviewSize, e.ImagePreviewSize)
		setInt(&c.Image.OptimizedSize, e.ImageOptimizedSize)
		setInt(&c.Image.Quality, e.ImageQuality)

		setString(&c.Video.FFmpegPath, e.FFmpegPath)
		setString(&c.Video.FFprobePath, e.FFprobePath)
		setInt(&c.Video.ThumbnailOffset, e.VideoThumbnailOffset)
		setInt(&c.Video.MaxResolution, e.VideoMaxResolution)
		setInt(&c.Video.Quality, e.VideoQuality)

		return nil
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}
