package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"studiobook/internal/config"

	"github.com/rs/zerolog"
)

const (
	snapshotPrefix = "studiobook-"
	snapshotSuffix = ".db"
	snapshotLayout = "20060102T150405.000"

	defaultSnapshotInterval = 24 * time.Hour
)

// Snapshot is one backup file of the booking database.
type Snapshot struct {
	Path    string
	TakenAt time.Time
}

// BackupService writes periodic VACUUM INTO snapshots of the booking
// database and prunes the ones older than the retention window.
type BackupService struct {
	db       *DB
	dir      string
	interval time.Duration
	keep     time.Duration
	now      func() time.Time
	logger   zerolog.Logger
}

func NewBackupService(db *DB, cfg config.BackupConfig, logger *zerolog.Logger) *BackupService {
	s := &BackupService{
		db:       db,
		dir:      cfg.StoragePath,
		interval: defaultSnapshotInterval,
		keep:     time.Duration(cfg.RetentionDays) * 24 * time.Hour,
		now:      time.Now,
		logger:   logger.With().Str("component", "backup").Logger(),
	}
	if cfg.Schedule != "" {
		d, err := time.ParseDuration(cfg.Schedule)
		if err != nil || d <= 0 {
			s.logger.Warn().Str("schedule", cfg.Schedule).Msg("invalid backup schedule, snapshotting daily")
		} else {
			s.interval = d
		}
	}
	return s
}

// Start takes a snapshot right away and then one per interval until ctx ends.
func (s *BackupService) Start(ctx context.Context) {
	s.logger.Info().Dur("interval", s.interval).Str("dir", s.dir).Msg("backup service started")

	// the startup snapshot completes even if shutdown is already underway
	s.runOnce(context.WithoutCancel(ctx))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *BackupService) runOnce(ctx context.Context) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("backup failed")
		return
	}
	s.logger.Info().Str("path", snap.Path).Msg("backup written")

	removed, err := s.Prune()
	if err != nil {
		s.logger.Warn().Err(err).Msg("backup pruning failed")
		return
	}
	if removed > 0 {
		s.logger.Info().Int("removed", removed).Msg("old backups pruned")
	}
}

// Snapshot copies the live database into a new file in the backup directory.
// VACUUM INTO reads through the open handle, so concurrent bookings see a
// consistent point-in-time copy.
func (s *BackupService) Snapshot(ctx context.Context) (Snapshot, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return Snapshot{}, fmt.Errorf("create backup dir: %w", err)
	}

	taken := s.now().UTC()
	path := filepath.Join(s.dir, snapshotPrefix+taken.Format(snapshotLayout)+snapshotSuffix)
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", path); err != nil {
		return Snapshot{}, fmt.Errorf("vacuum into %s: %w", path, err)
	}
	return Snapshot{Path: path, TakenAt: taken}, nil
}

// Snapshots lists the backups in the directory, newest first. Files that do
// not follow the snapshot naming are ignored.
func (s *BackupService) Snapshots() ([]Snapshot, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []Snapshot
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		taken, ok := parseSnapshotName(e.Name())
		if !ok {
			continue
		}
		out = append(out, Snapshot{Path: filepath.Join(s.dir, e.Name()), TakenAt: taken})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TakenAt.After(out[j].TakenAt) })
	return out, nil
}

// Prune removes snapshots older than the retention window. The newest
// snapshot is always kept. A zero retention keeps everything.
func (s *BackupService) Prune() (int, error) {
	if s.keep <= 0 {
		return 0, nil
	}

	snaps, err := s.Snapshots()
	if err != nil {
		return 0, err
	}

	cutoff := s.now().UTC().Add(-s.keep)
	removed := 0
	for i, snap := range snaps {
		if i == 0 || !snap.TakenAt.Before(cutoff) {
			continue
		}
		if err := os.Remove(snap.Path); err != nil {
			return removed, fmt.Errorf("remove %s: %w", snap.Path, err)
		}
		removed++
	}
	return removed, nil
}

func parseSnapshotName(name string) (time.Time, bool) {
	if !strings.HasPrefix(name, snapshotPrefix) || !strings.HasSuffix(name, snapshotSuffix) {
		return time.Time{}, false
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, snapshotPrefix), snapshotSuffix)
	t, err := time.Parse(snapshotLayout, stamp)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
