// Package memstore keeps the facility and history documents in memory.
package memstore

import (
	"context"
	"sync"

	"github.com/rpggio/stockcount/internal/domain/count"
	"github.com/rpggio/stockcount/internal/repository"
)

// Store is an in-memory count.Repository. Every read and write copies the
// documents so callers never share state with the store.
type Store struct {
	mu    sync.RWMutex
	state *count.State
}

// New returns an empty store.
func New() *Store {
	return &Store{}
}

func (s *Store) Load(ctx context.Context) (*count.State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == nil {
		return nil, repository.ErrNotFound
	}
	return count.CloneState(s.state)
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
	if s.state == nil {
		return repository.ErrNotFound
	}
	if err := repository.CheckVersion(s.state.Facility.Metadata.Version, facility.Metadata.Version); err != nil {
		return err
	}
	next, err := count.CloneState(&count.State{Facility: facility, History: s.state.History})
	if err != nil {
		return err
	}
	s.state = next
	return nil
}

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
	if s.state != nil {
		if err := repository.CheckVersion(s.state.Facility.Metadata.Version, facility.Metadata.Version); err != nil {
			return err
		}
	}
	next, err := count.CloneState(&count.State{Facility: facility, History: history})
	if err != nil {
		return err
	}
	s.state = next
	return nil
}
