package layout

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ErrNoBackups is returned by RollbackLast when no backups exist.
var ErrNoBackups = errors.New("layout: no backups")

const (
	defaultLayoutFile = "layout.json"
	defaultBackupDir  = ".backups/layout"
	backupPrefix      = "layout_"
	// Zero-padded so a lexical sort of backup names is chronological.
	backupTimestamp = "20060102_150405"
)

// Store persists the layout document for one project directory.
//
// Store is not safe for concurrent use and takes no file locks: the design is
// single-user, command-at-a-time, and callers serialize their own batches.
type Store struct {
	root       string
	layoutPath string
	backupDir  string
	retention  int
	logger     *slog.Logger
	now        func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLayoutFile overrides the layout filename, resolved against the root.
func WithLayoutFile(name string) StoreOption {
	return func(s *Store) { s.layoutPath = filepath.Join(s.root, name) }
}

// WithBackupDir overrides the backup directory, resolved against the root.
func WithBackupDir(dir string) StoreOption {
	return func(s *Store) { s.backupDir = filepath.Join(s.root, dir) }
}

// WithRetention caps how many backups are kept after each new one. Zero, the
// default, keeps the full audit trail; backups accumulate monotonically.
func WithRetention(n int) StoreOption {
	return func(s *Store) { s.retention = n }
}

// WithLogger sets the store's logger.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the backup timestamp source. Used in tests.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore creates a store rooted at the given project directory.
func NewStore(root string, opts ...StoreOption) *Store {
	s := &Store{
		root:       root,
		layoutPath: filepath.Join(root, defaultLayoutFile),
		backupDir:  filepath.Join(root, defaultBackupDir),
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the absolute path of the live document.
func (s *Store) Path() string { return s.layoutPath }

// Load returns the persisted document, or the synthesized default when
// nothing has been persisted yet. Loading never writes. The result is
// normalized, so command logic always sees an invariant-satisfying document.
func (s *Store) Load() (*Document, error) {
	data, err := os.ReadFile(s.layoutPath)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultDocument(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read layout: %w", err)
	}
	doc, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("parse layout %s: %w", s.layoutPath, err)
	}
	return doc, nil
}

// Save normalizes the document and persists it atomically (temp file plus
// rename), so a reader always sees either the old or the new fully-formed
// document, never a half-written file.
func (s *Store) Save(doc *Document) error {
	data, err := doc.Normalize().Encode()
	if err != nil {
		return fmt.Errorf("encode layout: %w", err)
	}
	if err := s.writeAtomic(s.layoutPath, data); err != nil {
		return fmt.Errorf("save layout: %w", err)
	}
	return nil
}

func (s *Store) writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".layout-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(name, path); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("replace file: %w", err)
	}
	_ = os.Chmod(path, 0o644)
	return nil
}

// Backup copies the current on-disk document into a timestamped immutable
// record and returns its path. When no document exists yet there is nothing
// to protect and Backup returns an empty path without error. Backups taken in
// the same second get distinct names via a zero-padded numeric suffix, so a
// lexical sort of backup names stays chronological.
func (s *Store) Backup() (string, error) {
	data, err := os.ReadFile(s.layoutPath)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read layout for backup: %w", err)
	}
	if err := os.MkdirAll(s.backupDir, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}

	ts := s.now().Format(backupTimestamp)
	dest := filepath.Join(s.backupDir, backupPrefix+ts+".json")
	for n := 1; ; n++ {
		if _, err := os.Stat(dest); errors.Is(err, os.ErrNotExist) {
			break
		}
		dest = filepath.Join(s.backupDir, fmt.Sprintf("%s%s_%03d.json", backupPrefix, ts, n))
	}

	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return "", fmt.Errorf("write backup: %w", err)
	}
	s.logger.Debug("layout backed up", "path", dest)

	if s.retention > 0 {
		s.prune()
	}
	return dest, nil
}

// prune removes the oldest backups beyond the retention count. Failures are
// logged, not fatal: a leftover backup is harmless.
func (s *Store) prune() {
	backups, err := s.ListBackups()
	if err != nil || len(backups) <= s.retention {
		return
	}
	for _, old := range backups[:len(backups)-s.retention] {
		if err := os.Remove(old); err != nil {
			s.logger.Warn("prune backup", "path", old, "error", err)
		}
	}
}

// ListBackups returns all backup paths sorted oldest first.
func (s *Store) ListBackups() ([]string, error) {
	entries, err := os.ReadDir(s.backupDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		out = append(out, filepath.Join(s.backupDir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

// RollbackLast restores the most recent backup over the live document and
// returns the backup path used. The restore is a raw byte copy that bypasses
// validation: the backup is trusted to have been valid when taken. Rollback
// itself takes no backup.
func (s *Store) RollbackLast() (string, error) {
	backups, err := s.ListBackups()
	if err != nil {
		return "", err
	}
	if len(backups) == 0 {
		return "", ErrNoBackups
	}
	last := backups[len(backups)-1]
	data, err := os.ReadFile(last)
	if err != nil {
		return "", fmt.Errorf("read backup: %w", err)
	}
	if err := s.writeAtomic(s.layoutPath, data); err != nil {
		return "", fmt.Errorf("restore backup: %w", err)
	}
	s.logger.Info("layout rolled back", "backup", last)
	return last, nil
}
