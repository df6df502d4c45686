// Package local persists dataset snapshots as dated CSV files.
package local

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/calfire-history/internal/incident"
)

// FileSuffix ends every snapshot file name.
const FileSuffix = "_calfire_history.csv"

// Config captures the parameters for the snapshot store.
type Config struct {
	// BaseDir is the directory holding snapshot files.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
}

// SnapshotStore keeps the newest snapshot in BaseDir.
type SnapshotStore struct {
	baseDir string
	logger  *zap.Logger
}

// New creates a snapshot store. The directory is created lazily on first save.
func New(cfg Config, logger *zap.Logger) (*SnapshotStore, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	if info, err := os.Stat(cfg.BaseDir); err == nil && !info.IsDir() {
		return nil, fmt.Errorf("base directory path is not a directory")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotStore{baseDir: cfg.BaseDir, logger: logger}, nil
}

// FileName is the snapshot file name for a capture date.
func FileName(capturedAt time.Time) string {
	return capturedAt.UTC().Format(DateLayout) + FileSuffix
}

// Load returns the newest snapshot. ok is false when none exists.
func (s *SnapshotStore) Load(_ context.Context) (incident.Snapshot, bool, error) {
	name, capturedAt, ok, err := s.newest()
	if err != nil || !ok {
		return incident.Snapshot{}, false, err
	}
	data, err := os.ReadFile(filepath.Join(s.baseDir, name))
	if err != nil {
		return incident.Snapshot{}, false, fmt.Errorf("read snapshot %s: %w", name, err)
	}
	records, err := Decode(bytes.NewReader(data))
	if err != nil {
		return incident.Snapshot{}, false, fmt.Errorf("decode snapshot %s: %w", name, err)
	}
	s.logger.Debug("snapshot loaded", zap.String("file", name), zap.Int("records", len(records)))
	return incident.Snapshot{Records: records, CapturedAt: capturedAt}, true, nil
}

// Save writes snap to a temp file, syncs, renames it into place, and then
// removes older snapshot files. It returns the path written.
func (s *SnapshotStore) Save(_ context.Context, snap incident.Snapshot) (string, error) {
	if err := os.MkdirAll(s.baseDir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create base directory: %w", err)
	}
	name := FileName(snap.CapturedAt)
	final := filepath.Join(s.baseDir, name)

	tmp, err := os.CreateTemp(s.baseDir, ".snapshot-*.csv")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if err := Encode(tmp, snap.Records); err != nil {
		_ = tmp.Close()
		cleanup()
		return "", err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return "", fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmpName, final); err != nil {
		cleanup()
		return "", fmt.Errorf("rename snapshot: %w", err)
	}

	s.removeOlder(name)
	s.logger.Info("snapshot saved", zap.String("file", final), zap.Int("records", len(snap.Records)))
	return final, nil
}

func (s *SnapshotStore) removeOlder(keep string) {
	names, err := s.snapshotNames()
	if err != nil {
		s.logger.Warn("list snapshots for cleanup failed", zap.Error(err))
		return
	}
	for _, name := range names {
		if name == keep {
			continue
		}
		if err := os.Remove(filepath.Join(s.baseDir, name)); err != nil {
			s.logger.Warn("remove old snapshot failed", zap.String("file", name), zap.Error(err))
		}
	}
}

func (s *SnapshotStore) newest() (string, time.Time, bool, error) {
	names, err := s.snapshotNames()
	if err != nil || len(names) == 0 {
		return "", time.Time{}, false, err
	}
	name := names[len(names)-1]
	capturedAt, _ := parseFileDate(name)
	return name, capturedAt, true, nil
}

// snapshotNames lists well-formed snapshot files, oldest first.
func (s *SnapshotStore) snapshotNames() ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.baseDir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := parseFileDate(e.Name()); ok {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func parseFileDate(name string) (time.Time, bool) {
	prefix, ok := strings.CutSuffix(name, FileSuffix)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(DateLayout, prefix, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
