// Package store keeps documents as flat JSON files in a single directory.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"github.com/benvon/smart-docs/internal/logger"
)

const (
	// FileExt is the extension of every stored document
	FileExt = ".json"
	// UntitledFilename is used when a name has nothing usable in it
	UntitledFilename = "untitled.json"

	lockExt          = ".lock"
	tempPrefix       = ".tmp-"
	lockRetryDelay   = 25 * time.Millisecond
	defaultLockWait  = 5 * time.Second
	defaultFilePerms = 0o644
	defaultDirPerms  = 0o755
)

var (
	// ErrNotFound is returned when a named document does not exist
	ErrNotFound = errors.New("document not found")
	// ErrNoMatch is returned when no stored file is close enough to a query
	ErrNoMatch = errors.New("no matching file found")
	// ErrLocked is returned when a document lock could not be acquired in time
	ErrLocked = errors.New("document is locked by another writer")
	// ErrInvalidFilename is returned for names that are not plain *.json file names
	ErrInvalidFilename = errors.New("invalid document filename")
)

// SafeFilename turns a display name into a stored file name: lower case,
// letters, digits and underscores only, ".json" appended.
func SafeFilename(name string) string {
	s := slug.Make(strings.TrimSpace(name))
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return UntitledFilename
	}
	return s + FileExt
}

// FileStore reads and writes documents under one directory. Writes are atomic
// and serialized per file through an advisory lock, so concurrent processes
// sharing the directory never observe partial files.
type FileStore struct {
	dir      string
	logger   *zap.Logger
	lockWait time.Duration
	cutoff   float64
}

// Option configures a FileStore
type Option func(*FileStore)

// WithLockWait bounds how long a writer waits for a file lock
func WithLockWait(d time.Duration) Option {
	return func(s *FileStore) {
		if d > 0 {
			s.lockWait = d
		}
	}
}

// WithMatchCutoff sets the minimum similarity FindBestMatch accepts
func WithMatchCutoff(cutoff float64) Option {
	return func(s *FileStore) {
		if cutoff > 0 && cutoff <= 1 {
			s.cutoff = cutoff
		}
	}
}

// NewFileStore opens (and creates if needed) the document directory
func NewFileStore(dir string, log *zap.Logger, opts ...Option) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("store directory is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve store directory: %w", err)
	}
	if err := os.MkdirAll(abs, defaultDirPerms); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	s := &FileStore{
		dir:      abs,
		logger:   log,
		lockWait: defaultLockWait,
		cutoff:   DefaultMatchCutoff,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dir returns the absolute store directory
func (s *FileStore) Dir() string {
	return s.dir
}

// Path returns the absolute path of a stored file, rejecting anything that
// would escape the store directory.
func (s *FileStore) Path(filename string) (string, error) {
	if filename == "" || filename != filepath.Base(filename) || strings.HasPrefix(filename, ".") ||
		!strings.HasSuffix(filename, FileExt) || strings.ContainsAny(filename, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidFilename, filename)
	}
	return filepath.Join(s.dir, filename), nil
}

// List returns the names of all stored documents, sorted
func (s *FileStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, FileExt) {
			continue
		}
		files = append(files, name)
	}
	sort.Strings(files)
	return files, nil
}

// Exists reports whether a document file is present
func (s *FileStore) Exists(filename string) bool {
	path, err := s.Path(filename)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Read decodes a stored document into its generic JSON shape
func (s *FileStore) Read(ctx context.Context, filename string) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.Path(filename)
	if err != nil {
		return nil, err
	}
	return readJSON(path, filename)
}

// Write stores v as indented JSON, replacing any previous content
func (s *FileStore) Write(ctx context.Context, filename string, v any) error {
	path, err := s.Path(filename)
	if err != nil {
		return err
	}
	unlock, err := s.lock(ctx, path)
	if err != nil {
		return err
	}
	defer unlock()

	return s.writeAtomic(path, v)
}

// Update runs a read-modify-write cycle while holding the file lock. fn gets
// the current decoded content and returns the replacement.
func (s *FileStore) Update(ctx context.Context, filename string, fn func(current any) (any, error)) (any, error) {
	path, err := s.Path(filename)
	if err != nil {
		return nil, err
	}
	unlock, err := s.lock(ctx, path)
	if err != nil {
		return nil, err
	}
	defer unlock()

	current, err := readJSON(path, filename)
	if err != nil {
		return nil, err
	}
	next, err := fn(current)
	if err != nil {
		return nil, err
	}
	if err := s.writeAtomic(path, next); err != nil {
		return nil, err
	}
	return next, nil
}

// Ping checks that the directory is still usable
func (s *FileStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info, err := os.Stat(s.dir)
	if err != nil {
		return fmt.Errorf("store directory unavailable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("store path %s is not a directory", s.dir)
	}
	return nil
}

func (s *FileStore) lock(ctx context.Context, path string) (func(), error) {
	lockPath := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+lockExt)
	fl := flock.New(lockPath)

	lockCtx, cancel := context.WithTimeout(ctx, s.lockWait)
	defer cancel()

	locked, err := fl.TryLockContext(lockCtx, lockRetryDelay)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: %s", ErrLocked, filepath.Base(path))
		}
		return nil, fmt.Errorf("failed to lock document: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, filepath.Base(path))
	}

	return func() {
		if err := fl.Unlock(); err != nil {
			s.logger.Warn("document_unlock_failed",
				logger.File(filepath.Base(path)),
				zap.Error(err))
		}
	}, nil
}

func (s *FileStore) writeAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), tempPrefix+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write document: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to sync document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close document: %w", err)
	}
	if err := os.Chmod(tmpName, defaultFilePerms); err != nil {
		cleanup()
		return fmt.Errorf("failed to set document permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("failed to replace document: %w", err)
	}

	s.logger.Debug("document_written",
		logger.File(filepath.Base(path)),
		zap.Int("bytes", len(data)))
	return nil
}

func readJSON(path, filename string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, filename)
		}
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to decode document %s: %w", filename, err)
	}
	return v, nil
}
