// Package jsonstore persists the facility and history documents as JSON files.
package jsonstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/rpggio/stockcount/internal/domain/count"
	"github.com/rpggio/stockcount/internal/repository"
)

const (
	FacilityFile = "facility.json"
	HistoryFile  = "count-history.json"
)

// Store keeps one facility document and one history document in a directory.
type Store struct {
	dir string
	mu  sync.Mutex
}

// New creates the directory if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating store dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name)
}

func (s *Store) Load(ctx context.Context) (*count.State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() (*count.State, error) {
	facility := &count.Facility{}
	if err := readJSON(s.path(FacilityFile), facility); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	if err := count.ValidateFacility(facility); err != nil {
		return nil, fmt.Errorf("%s: %w", FacilityFile, err)
	}

	history := &count.History{Records: []count.HistoryRecord{}}
	if err := readJSON(s.path(HistoryFile), history); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if history.Records == nil {
		history.Records = []count.HistoryRecord{}
	}
	if err := count.ValidateHistory(history); err != nil {
		return nil, fmt.Errorf("%s: %w", HistoryFile, err)
	}
	return &count.State{Facility: facility, History: history}, nil
}

func (s *Store) storedVersion() (int, bool, error) {
	var head struct {
		Metadata count.Metadata `json:"metadata"`
	}
	if err := readJSON(s.path(FacilityFile), &head); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return head.Metadata.Version, true, nil
}

func (s *Store) SaveFacility(ctx context.Context, facility *count.Facility) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := count.ValidateFacility(facility); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok, err := s.storedVersion()
	if err != nil {
		return err
	}
	if !ok {
		return repository.ErrNotFound
	}
	if err := repository.CheckVersion(stored, facility.Metadata.Version); err != nil {
		return err
	}
	return writeJSON(s.path(FacilityFile), facility)
}

// SaveAll writes history then facility. If the facility write fails the
// previous history file is put back.
func (s *Store) SaveAll(ctx context.Context, facility *count.Facility, history *count.History) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := count.ValidateFacility(facility); err != nil {
		return err
	}
	if err := count.ValidateHistory(history); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok, err := s.storedVersion()
	if err != nil {
		return err
	}
	if ok {
		if err := repository.CheckVersion(stored, facility.Metadata.Version); err != nil {
			return err
		}
	}

	previous, readErr := os.ReadFile(s.path(HistoryFile))
	if err := writeJSON(s.path(HistoryFile), history); err != nil {
		return err
	}
	if err := writeJSON(s.path(FacilityFile), facility); err != nil {
		switch {
		case readErr == nil:
			_ = writeFile(s.path(HistoryFile), previous)
		case errors.Is(readErr, fs.ErrNotExist):
			_ = os.Remove(s.path(HistoryFile))
		}
		return err
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: decoding %s: %v", count.ErrInvalidDocument, filepath.Base(path), err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	return writeFile(path, append(data, '\n'))
}

// writeFile replaces path atomically through a temp file in the same directory.
func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replacing %s: %w", filepath.Base(path), err)
	}
	return nil
}
