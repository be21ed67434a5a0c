package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/uptube/content-ingestion-go/internal/db"
	"github.com/uptube/content-ingestion-go/internal/db/models"
	"github.com/uptube/content-ingestion-go/internal/db/repository"
	"github.com/uptube/content-ingestion-go/internal/metrics"

	"go.uber.org/zap"
)

// MinTempFileTTL is the shortest staging file age the sweeper acts on.
const MinTempFileTTL = time.Hour

// SweepConfig bounds one sweep.
type SweepConfig struct {
	BatchSize   int
	MaxAttempts int
	TempDir     string
	// TempFileTTL is how old a staging file must be before it is removed.
	// Files of an upload still in progress are not distinguishable from
	// abandoned ones, so it must exceed the longest upload; values below
	// MinTempFileTTL are raised to it.
	TempFileTTL time.Duration
}

// SweepResult counts what a sweep did.
type SweepResult struct {
	Deleted          int `json:"deleted"`
	Retained         int `json:"retained"`
	Failed           int `json:"failed"`
	TempFilesRemoved int `json:"temp_files_removed"`
}

// OrphanSweeper retries blob deletes that failed earlier and clears
// abandoned upload staging files.
type OrphanSweeper struct {
	db      db.DBTX
	content repository.ContentRepository
	orphans repository.OrphanedBlobRepository
	blobs   BlobStore
	cfg     SweepConfig
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewOrphanSweeper creates an OrphanSweeper.
func NewOrphanSweeper(q db.DBTX, repos *repository.Repositories, blobs BlobStore, cfg SweepConfig, m *metrics.Metrics, logger *zap.Logger) *OrphanSweeper {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	if cfg.TempFileTTL > 0 && cfg.TempFileTTL < MinTempFileTTL {
		logger.Warn("temp file ttl below minimum; raising it",
			zap.Duration("configured", cfg.TempFileTTL),
			zap.Duration("minimum", MinTempFileTTL),
		)
		cfg.TempFileTTL = MinTempFileTTL
	}
	return &OrphanSweeper{
		db:      q,
		content: repos.Content,
		orphans: repos.Orphans,
		blobs:   blobs,
		cfg:     cfg,
		metrics: m,
		logger:  logger.Named("sweeper"),
		now:     time.Now,
	}
}

// Sweep processes one batch of orphan entries and the temp directory.
func (s *OrphanSweeper) Sweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult

	pending, err := s.orphans.ListPending(ctx, s.db, s.cfg.MaxAttempts, s.cfg.BatchSize)
	if err != nil {
		return result, fmt.Errorf("list orphaned blobs: %w", err)
	}

	for _, orphan := range pending {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		outcome, err := s.retry(ctx, orphan)
		if err != nil {
			return result, err
		}
		s.metrics.OrphansSwept.WithLabelValues(outcome).Inc()
		switch outcome {
		case "deleted":
			result.Deleted++
		case "retained":
			result.Retained++
		default:
			result.Failed++
		}
	}

	removed, err := s.sweepTempDir()
	if err != nil {
		s.logger.Warn("temp dir sweep failed", zap.Error(err), zap.String("dir", s.cfg.TempDir))
	}
	result.TempFilesRemoved = removed

	s.logger.Info("sweep complete",
		zap.Int("deleted", result.Deleted),
		zap.Int("retained", result.Retained),
		zap.Int("failed", result.Failed),
		zap.Int("temp_files_removed", result.TempFilesRemoved),
	)
	return result, nil
}

// retry deletes the orphan's blob unless a record has started using it again.
func (s *OrphanSweeper) retry(ctx context.Context, orphan *models.OrphanedBlob) (string, error) {
	refs, err := s.content.CountBlobReferences(ctx, s.db, orphan.Blob.ExternalID)
	if err != nil {
		return "", fmt.Errorf("count references for %s: %w", orphan.Blob.ExternalID, err)
	}
	if refs > 0 {
		if err := s.orphans.Delete(ctx, s.db, orphan.ID); err != nil && !db.IsNotFound(err) {
			return "", fmt.Errorf("drop orphan entry: %w", err)
		}
		return "retained", nil
	}

	if err := s.blobs.Delete(ctx, orphan.Blob); err != nil {
		s.logger.Warn("orphan delete retry failed",
			zap.Error(err),
			zap.String("external_id", orphan.Blob.ExternalID),
			zap.Int("attempts", orphan.Attempts+1),
		)
		if markErr := s.orphans.MarkAttempt(ctx, s.db, orphan.ID, err.Error()); markErr != nil && !db.IsNotFound(markErr) {
			return "", fmt.Errorf("mark orphan attempt: %w", markErr)
		}
		return "failed", nil
	}

	if err := s.orphans.Delete(ctx, s.db, orphan.ID); err != nil && !db.IsNotFound(err) {
		return "", fmt.Errorf("drop orphan entry: %w", err)
	}
	return "deleted", nil
}

func (s *OrphanSweeper) sweepTempDir() (int, error) {
	if s.cfg.TempDir == "" || s.cfg.TempFileTTL <= 0 {
		return 0, nil
	}

	entries, err := os.ReadDir(s.cfg.TempDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}

	cutoff := s.now().Add(-s.cfg.TempFileTTL)
	removed := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.cfg.TempDir, entry.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("could not remove stale temp file", zap.Error(err), zap.String("file", entry.Name()))
			continue
		}
		removed++
	}
	return removed, nil
}
