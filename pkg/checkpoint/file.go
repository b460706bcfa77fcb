package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	orgerrors "github.com/matzehuels/orgraph/pkg/errors"
)

const (
	saveAttempts   = 3
	saveRetryDelay = 100 * time.Millisecond
)

// FileStore keeps the checkpoint in one JSON file of the form
// {"repo": ["dep", ...]}.
type FileStore struct {
	path   string
	logger *log.Logger
	delay  time.Duration

	mu      sync.RWMutex
	records map[string][]string

	// saveMu serializes whole-file rewrites.
	saveMu sync.Mutex
}

// NewFileStore returns a store backed by the file at path. Call Load to read
// existing records.
func NewFileStore(path string, logger *log.Logger) (*FileStore, error) {
	if path == "" {
		return nil, orgerrors.New(orgerrors.ErrCodeInvalidConfig, "checkpoint path is empty")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &FileStore{
		path:    filepath.Clean(path),
		logger:  logger,
		delay:   saveRetryDelay,
		records: make(map[string][]string),
	}, nil
}

// Path returns the checkpoint file location.
func (s *FileStore) Path() string { return s.path }

// Load reads the checkpoint file. A missing file is an empty checkpoint.
func (s *FileStore) Load(_ context.Context) (map[string][]string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.mu.Lock()
		s.records = make(map[string][]string)
		s.mu.Unlock()
		return map[string][]string{}, nil
	}
	if err != nil {
		return nil, orgerrors.Wrap(orgerrors.ErrCodePersistenceFailure, err, "read checkpoint %s", s.path)
	}

	records := make(map[string][]string)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, orgerrors.Wrap(orgerrors.ErrCodeParseFailure, err, "parse checkpoint %s", s.path)
		}
	}
	for k, v := range records {
		records[k] = normalize(v)
	}

	s.mu.Lock()
	s.records = records
	s.mu.Unlock()
	return cloneRecords(records), nil
}

// Put records deps for repo and rewrites the file, retrying failed saves.
func (s *FileStore) Put(_ context.Context, repo string, deps []string) error {
	s.mu.Lock()
	s.records[repo] = normalize(deps)
	s.mu.Unlock()

	var err error
	for attempt := 1; attempt <= saveAttempts; attempt++ {
		if err = s.save(); err == nil {
			return nil
		}
		s.logger.Warn("checkpoint save failed", "repo", repo, "attempt", attempt, "err", err)
		if attempt < saveAttempts {
			time.Sleep(s.delay * time.Duration(attempt))
		}
	}
	return orgerrors.Wrap(orgerrors.ErrCodePersistenceFailure, err, "save checkpoint after %s", repo)
}

// Has reports whether repo has been checkpointed.
func (s *FileStore) Has(repo string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[repo]
	return ok
}

// All returns a copy of every record.
func (s *FileStore) All() map[string][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneRecords(s.records)
}

// Clear forgets every record and removes the file.
func (s *FileStore) Clear(_ context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	s.records = make(map[string][]string)
	s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return orgerrors.Wrap(orgerrors.ErrCodePersistenceFailure, err, "remove checkpoint %s", s.path)
	}
	return nil
}

// Close is a no-op; every Put is already on disk.
func (s *FileStore) Close() error { return nil }

// save rewrites the whole file through a temp file and rename so readers
// never see a partial document.
func (s *FileStore) save() error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.RLock()
	data, err := json.MarshalIndent(s.records, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".checkpoint-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace checkpoint: %w", err)
	}
	return nil
}

var _ Store = (*FileStore)(nil)
