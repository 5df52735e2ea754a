// Package storage defines the registry interface for open listen parties.
package storage

import (
	"context"
	"errors"

	"github.com/soundleaf/soundleaf/internal/services/party/domain"
)

// ErrNotFound indicates the requested party is not in the registry. Callers
// must treat this as distinct from "found but forbidden": a party that closed
// between lookup and use surfaces here.
var ErrNotFound = errors.New("party not found")

// PartyStore holds the authoritative registry of open parties. The store is
// only responsible for safe concurrent insert, lookup, and delete; callers
// serialize mutations of an individual party before writing it back.
type PartyStore interface {
	// Put registers or replaces a party.
	Put(ctx context.Context, party *domain.Party) error
	// Get returns the party with the given id or ErrNotFound.
	Get(ctx context.Context, partyID string) (*domain.Party, error)
	// Delete removes a party from the registry. Deleting an absent party is
	// a no-op.
	Delete(ctx context.Context, partyID string) error
	// List returns a snapshot of all registered parties in no particular
	// order.
	List(ctx context.Context) ([]*domain.Party, error)
}
