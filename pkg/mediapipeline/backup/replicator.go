// Package backup replicates every object in the primary store into a
// date-partitioned backup store and prunes backups past the retention window.
package backup

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/photovault/media-pipeline/pkg/mediapipeline"
	"github.com/photovault/media-pipeline/pkg/mediapipeline/metrics"
	"go.uber.org/zap"
)

// Prefix under which backup objects live: backups/{ISO-date}/{originalKey}.
// The date segment is both the retention partition key and the only index.
const backupPrefix = "backups/"

const dateLayout = "2006-01-02"

// Listing page size; memory use is bounded by this regardless of object count.
const pageSize = 1000

// Status is the final state of a backup run.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
	StatusSkipped Status = "SKIPPED"
)

// Result aggregates the outcome of one backup run.
type Result struct {
	Status       Status        `json:"status"`
	BackupDate   string        `json:"backup_date,omitempty"`
	SuccessCount int           `json:"success_count"`
	FailureCount int           `json:"failure_count"`
	TotalBytes   int64         `json:"total_bytes"`
	Duration     time.Duration `json:"duration"`
	FailedKeys   []string      `json:"failed_keys,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	PrunedCount  int           `json:"pruned_count"`
}

// Config options for the backup replicator.
type Config struct {
	Enabled       bool
	RetentionDays int // backups older than this many days are pruned (default 30)
}

// Replicator copies primary-store objects into the backup store and prunes by
// age. One Run is expected per scheduling interval; the scheduler is
// responsible for not overlapping runs.
type Replicator struct {
	primary mediapipeline.ObjectStore
	backup  mediapipeline.ObjectStore
	cfg     Config
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// New creates a backup replicator. Either store may be nil when unconfigured;
// Run then reports FAILED with a descriptive reason.
func New(primary, backup mediapipeline.ObjectStore, cfg Config, logger *zap.Logger, m *metrics.Metrics) *Replicator {
	if cfg.RetentionDays == 0 {
		cfg.RetentionDays = 30
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.NewNop()
	}
	return &Replicator{
		primary: primary,
		backup:  backup,
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// Run performs one full backup pass: ensure the backup bucket, copy every
// primary object under today's date partition, then prune expired partitions.
// Per-object copy failures are recorded and do not abort the run; listing and
// bucket failures do.
func (r *Replicator) Run(ctx context.Context) *Result {
	result := r.run(ctx)
	r.metrics.BackupRunsTotal.WithLabelValues(string(result.Status)).Inc()
	return result
}

func (r *Replicator) run(ctx context.Context) *Result {
	if !r.cfg.Enabled {
		r.logger.Info("backup is disabled")
		return &Result{Status: StatusSkipped, ErrorMessage: "backup disabled in configuration"}
	}
	if r.primary == nil {
		r.logger.Error("primary storage not configured, cannot perform backup")
		return &Result{Status: StatusFailed, ErrorMessage: "primary storage not configured"}
	}
	if r.backup == nil {
		r.logger.Error("backup storage not configured, cannot perform backup")
		return &Result{Status: StatusFailed, ErrorMessage: "backup storage not configured"}
	}

	today := r.now().UTC()
	backupDate := today.Format(dateLayout)
	start := r.now()

	result := &Result{Status: StatusSuccess, BackupDate: backupDate}
	defer func() { result.Duration = r.now().Sub(start) }()

	r.logger.Info("starting backup run", zap.String("backup_date", backupDate))

	if err := r.backup.EnsureBucket(ctx); err != nil {
		result.Status = StatusFailed
		result.ErrorMessage = fmt.Sprintf("ensure backup bucket: %v", err)
		return result
	}

	// Stream listing pages so memory stays bounded no matter how many
	// objects the primary holds.
	token := ""
	for {
		if err := ctx.Err(); err != nil {
			result.Status = StatusFailed
			result.ErrorMessage = fmt.Sprintf("backup cancelled: %v", err)
			return result
		}

		page, err := r.primary.ListPage(ctx, "", token, pageSize)
		if err != nil {
			result.Status = StatusFailed
			result.ErrorMessage = fmt.Sprintf("list primary objects: %v", err)
			return result
		}

		for _, obj := range page.Objects {
			if err := r.copyObject(ctx, obj.Key, backupDate); err != nil {
				r.logger.Error("failed to back up object",
					zap.String("key", obj.Key), zap.Error(err))
				result.FailureCount++
				result.FailedKeys = append(result.FailedKeys, obj.Key)
				r.metrics.BackupObjectsTotal.WithLabelValues("failed").Inc()
				continue
			}
			result.SuccessCount++
			result.TotalBytes += obj.Size
			r.metrics.BackupObjectsTotal.WithLabelValues("copied").Inc()
			r.metrics.BackupBytesTotal.Add(float64(obj.Size))

			if result.SuccessCount%100 == 0 {
				r.logger.Info("backup progress", zap.Int("copied", result.SuccessCount))
			}
		}

		if !page.Truncated {
			break
		}
		token = page.NextToken
	}

	pruned, err := r.prune(ctx, today)
	if err != nil {
		// Copying succeeded; a failed prune is logged but does not fail the run.
		r.logger.Error("failed to prune old backups", zap.Error(err))
	}
	result.PrunedCount = pruned

	r.logger.Info("backup run completed",
		zap.Int("succeeded", result.SuccessCount),
		zap.Int("failed", result.FailureCount),
		zap.Int64("bytes", result.TotalBytes),
		zap.Int("pruned", pruned),
		zap.Duration("duration", r.now().Sub(start)))

	return result
}

// copyObject downloads one object with its metadata from the primary store
// and uploads it under the date partition, embedding the original key and
// backup date as object metadata.
func (r *Replicator) copyObject(ctx context.Context, key, backupDate string) error {
	rc, err := r.primary.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}

	info, err := r.primary.Head(ctx, key)
	if err != nil {
		return fmt.Errorf("head: %w", err)
	}

	destKey := backupPrefix + backupDate + "/" + key
	opts := mediapipeline.PutOptions{
		ContentType: info.ContentType,
		Metadata: map[string]string{
			"original-key": key,
			"backup-date":  backupDate,
		},
	}
	if err := r.backup.Put(ctx, destKey, bytes.NewReader(data), opts); err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	return nil
}

// prune deletes backup objects whose date partition is strictly before
// today - retentionDays. Keys whose date segment does not parse are left
// alone.
func (r *Replicator) prune(ctx context.Context, today time.Time) (int, error) {
	cutoff := today.Truncate(24 * time.Hour).AddDate(0, 0, -r.cfg.RetentionDays)

	deleted := 0
	token := ""
	for {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}

		page, err := r.backup.ListPage(ctx, backupPrefix, token, pageSize)
		if err != nil {
			return deleted, fmt.Errorf("list backup objects: %w", err)
		}

		for _, obj := range page.Objects {
			date, ok := DateFromKey(obj.Key)
			if !ok {
				continue
			}
			if date.Before(cutoff) {
				if err := r.backup.Delete(ctx, obj.Key); err != nil {
					r.logger.Error("failed to delete expired backup",
						zap.String("key", obj.Key), zap.Error(err))
					continue
				}
				deleted++
				r.metrics.BackupObjectsTotal.WithLabelValues("pruned").Inc()
			}
		}

		if !page.Truncated {
			break
		}
		token = page.NextToken
	}

	r.logger.Info("pruned expired backups",
		zap.Int("deleted", deleted),
		zap.Int("retention_days", r.cfg.RetentionDays))
	return deleted, nil
}

// DateFromKey parses the date segment out of a backup key
// ("backups/YYYY-MM-DD/..."). The second return value is false when the key
// does not carry a parseable date.
func DateFromKey(key string) (time.Time, bool) {
	parts := strings.SplitN(key, "/", 3)
	if len(parts) < 3 || parts[0] != "backups" {
		return time.Time{}, false
	}
	date, err := time.Parse(dateLayout, parts[1])
	if err != nil {
		return time.Time{}, false
	}
	return date, true
}
