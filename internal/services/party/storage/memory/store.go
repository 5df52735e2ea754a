// Package memory provides the in-memory party registry. Parties are
// ephemeral, so the registry never outlives the process.
package memory

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/soundleaf/soundleaf/internal/services/party/domain"
	"github.com/soundleaf/soundleaf/internal/services/party/storage"
)

// Store is a concurrency-safe map-backed party registry.
type Store struct {
	mu      sync.RWMutex
	parties map[string]*domain.Party
}

// NewStore creates an empty registry.
func NewStore() *Store {
	return &Store{parties: make(map[string]*domain.Party)}
}

// Put registers or replaces a party.
func (s *Store) Put(ctx context.Context, party *domain.Party) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if party == nil {
		return errors.New("party is required")
	}
	if strings.TrimSpace(party.ID) == "" {
		return errors.New("party id is required")
	}
	s.mu.Lock()
	s.parties[party.ID] = party
	s.mu.Unlock()
	return nil
}

// Get returns the party with the given id or storage.ErrNotFound.
func (s *Store) Get(ctx context.Context, partyID string) (*domain.Party, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	party, ok := s.parties[partyID]
	s.mu.RUnlock()
	if !ok {
		return nil, storage.ErrNotFound
	}
	return party, nil
}

// Delete removes a party from the registry.
func (s *Store) Delete(ctx context.Context, partyID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.parties, partyID)
	s.mu.Unlock()
	return nil
}

// List returns a snapshot of all registered parties.
func (s *Store) List(ctx context.Context) ([]*domain.Party, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	parties := make([]*domain.Party, 0, len(s.parties))
	for _, party := range s.parties {
		parties = append(parties, party)
	}
	s.mu.RUnlock()
	return parties, nil
}
