package ps

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nickyhof/TableDB/core"
)

const (
	DefaultBackupInterval = 5 * time.Minute
	DefaultBackupKeep     = 10

	backupPrefix     = "backup_"
	backupSuffix     = ".json"
	backupTimeLayout = "20060102_150405"
)

// SnapshotSource supplies a consistent copy of every table. db.Engine
// satisfies it.
type SnapshotSource interface {
	Enumerate() []core.TableSnapshot
}

type BackupOptions struct {
	// Dir receives backup_YYYYMMDD_HHMMSS.json files. Empty disables file
	// backups.
	Dir      string
	Interval time.Duration
	// Keep is the number of newest backup files retained in Dir.
	Keep int

	// Archive, when set, also receives each backup as a revision.
	Archive  *Persistence
	Identity core.Identity

	// UploadURL, when set, receives a copy of each backup. A URL ending in
	// "/" gets the backup file name appended.
	UploadURL string
	S3        *S3Config

	Logger *zap.Logger
	Now    func() time.Time
}

type BackupResult struct {
	Path     string
	Revision Revision
	Uploaded string
	Removed  []string
}

// BackupScheduler exports a SnapshotSource on a fixed interval.
type BackupScheduler struct {
	source SnapshotSource
	opts   BackupOptions
	logger *zap.Logger
}

func NewBackupScheduler(source SnapshotSource, opts BackupOptions) *BackupScheduler {
	if opts.Interval <= 0 {
		opts.Interval = DefaultBackupInterval
	}
	if opts.Keep <= 0 {
		opts.Keep = DefaultBackupKeep
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BackupScheduler{source: source, opts: opts, logger: logger.Named("backup")}
}

// Run backs up every Interval until ctx is done. Failed backups are logged
// and do not stop the loop.
func (s *BackupScheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	s.logger.Info("backup scheduler started",
		zap.Duration("interval", s.opts.Interval),
		zap.String("dir", s.opts.Dir),
		zap.Int("keep", s.opts.Keep))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("backup scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.BackupNow(ctx); err != nil {
				s.logger.Error("backup failed", zap.Error(err))
			}
		}
	}
}

// BackupNow takes one backup to every configured destination. Each
// destination is attempted even if an earlier one failed.
func (s *BackupScheduler) BackupNow(ctx context.Context) (BackupResult, error) {
	tables := s.source.Enumerate()
	data, err := Marshal(tables)
	if err != nil {
		return BackupResult{}, err
	}

	name := BackupFileName(s.opts.Now())
	var result BackupResult
	var errs []error

	if s.opts.Dir != "" {
		path, removed, err := s.writeFile(name, data)
		if err != nil {
			errs = append(errs, err)
		}
		result.Path = path
		result.Removed = removed
	}

	if s.opts.Archive != nil {
		rev, err := s.opts.Archive.WriteFile(DocumentPath, data, s.opts.Identity, "Automatic backup "+name)
		if err != nil {
			errs = append(errs, fmt.Errorf("archive: %w", err))
		}
		result.Revision = rev
	}

	if s.opts.UploadURL != "" {
		target := s.opts.UploadURL
		if strings.HasSuffix(target, "/") {
			target += name
		}
		if err := upload(ctx, target, data, s.opts.S3); err != nil {
			errs = append(errs, fmt.Errorf("upload %s: %w", target, err))
		} else {
			result.Uploaded = target
		}
	}

	if len(errs) > 0 {
		return result, fmt.Errorf("backup: %w", errors.Join(errs...))
	}
	s.logger.Info("backup written",
		zap.String("file", result.Path),
		zap.String("revision", result.Revision.Short()),
		zap.String("uploaded", result.Uploaded),
		zap.Int("tables", len(tables)),
		zap.Int("rotated", len(result.Removed)))
	return result, nil
}

func (s *BackupScheduler) writeFile(name string, data []byte) (string, []string, error) {
	if err := os.MkdirAll(s.opts.Dir, 0755); err != nil {
		return "", nil, err
	}
	path := filepath.Join(s.opts.Dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", nil, err
	}
	removed, err := RotateBackups(s.opts.Dir, s.opts.Keep)
	if err != nil {
		return path, removed, fmt.Errorf("rotate: %w", err)
	}
	return path, removed, nil
}

func upload(ctx context.Context, location string, data []byte, cfg *S3Config) error {
	w, err := OpenWriter(ctx, location, cfg)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func BackupFileName(t time.Time) string {
	return backupPrefix + t.Format(backupTimeLayout) + backupSuffix
}

// ListBackups returns the backup files in dir, oldest first.
func ListBackups(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.Type().IsRegular() && strings.HasPrefix(name, backupPrefix) && strings.HasSuffix(name, backupSuffix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// RotateBackups deletes all but the newest keep backup files in dir and
// returns the removed paths.
func RotateBackups(dir string, keep int) ([]string, error) {
	names, err := ListBackups(dir)
	if err != nil {
		return nil, err
	}
	if len(names) <= keep {
		return nil, nil
	}

	var removed []string
	for _, name := range names[:len(names)-keep] {
		path := filepath.Join(dir, name)
		if err := os.Remove(path); err != nil {
			return removed, err
		}
		removed = append(removed, path)
	}
	return removed, nil
}
