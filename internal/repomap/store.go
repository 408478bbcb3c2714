package repomap

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/clintrovert/praxis/pkg/types"
)

// Store persists the learned project-key-to-repository mapping as a flat
// JSON object, e.g. {"KAN": "acme/kan-app"}. Saves are whole-file
// overwrites serialized by an in-process mutex plus a file lock for
// cross-process safety; last writer wins. Reads are lockless, so a stale
// read racing a save is acceptable
type Store struct {
	path   string
	logger *zap.Logger
	mu     sync.Mutex
}

// NewStore creates a mapping store backed by the JSON file at path
func NewStore(path string, logger *zap.Logger) *Store {
	return &Store{
		path:   path,
		logger: logger,
	}
}

// Get returns the repository learned for a project key
func (s *Store) Get(projectKey string) (string, bool, error) {
	mapping, err := s.load()
	if err != nil {
		return "", false, err
	}
	repo, ok := mapping[projectKey]
	return repo, ok, nil
}

// All returns a copy of the whole mapping
func (s *Store) All() (map[string]string, error) {
	mapping, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(mapping))
	for k, v := range mapping {
		out[k] = v
	}
	return out, nil
}

// Save records a project-to-repository mapping and rewrites the mapping
// file. The repository must be in "owner/name" form
func (s *Store) Save(projectKey, repository string) error {
	if projectKey == "" {
		return fmt.Errorf("project key must not be empty")
	}
	if _, err := types.ParseRepository(repository); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	fileLock := flock.New(s.path + ".lock")
	if err := fileLock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire mapping lock: %w", err)
	}
	defer func() { _ = fileLock.Unlock() }()

	mapping, err := s.load()
	if err != nil {
		return err
	}
	mapping[projectKey] = repository

	if err := s.write(mapping); err != nil {
		return err
	}

	s.logger.Info("saved repository mapping",
		zap.String("project", projectKey),
		zap.String("repository", repository),
	)

	return nil
}

// load reads the mapping file; a missing file yields an empty mapping
func (s *Store) load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to read mapping file: %w", err)
	}

	mapping := map[string]string{}
	if err := json.Unmarshal(data, &mapping); err != nil {
		return nil, fmt.Errorf("failed to parse mapping file: %w", err)
	}
	return mapping, nil
}

func (s *Store) write(mapping map[string]string) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create mapping directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(mapping, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode mapping: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write mapping file: %w", err)
	}
	return nil
}
