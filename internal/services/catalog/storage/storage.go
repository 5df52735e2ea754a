// Package storage defines persistence interfaces for the catalog service.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound indicates a requested catalog record is missing.
var ErrNotFound = errors.New("record not found")

// LibraryItemRecord stores one media item row.
type LibraryItemRecord struct {
	ID        string
	LibraryID string
	MediaType string
	Title     string
	Author    string
	CoverPath string
	// Duration is the playback length in seconds; nil when unknown.
	Duration *float64
}

// EpisodeRecord stores one podcast episode row.
type EpisodeRecord struct {
	ID            string
	LibraryItemID string
	Title         string
	Duration      *float64
}

// UserRecord stores one user row with library access flags.
type UserRecord struct {
	ID           string
	Username     string
	IsActive     bool
	AllLibraries bool
	LibraryIDs   []string
}

// CatalogStore resolves media metadata and user identity.
type CatalogStore interface {
	// GetLibraryItem returns the item with the given id or ErrNotFound.
	GetLibraryItem(ctx context.Context, itemID string) (LibraryItemRecord, error)
	// GetEpisode returns one episode of an item or ErrNotFound.
	GetEpisode(ctx context.Context, itemID, episodeID string) (EpisodeRecord, error)
	// GetUser returns the user with the given id or ErrNotFound.
	GetUser(ctx context.Context, userID string) (UserRecord, error)
	// ListActiveUsers returns every active user ordered by username.
	ListActiveUsers(ctx context.Context) ([]UserRecord, error)
	// ListUsersByIDs returns the users matching the given ids. Missing ids
	// are skipped, not errors.
	ListUsersByIDs(ctx context.Context, userIDs []string) ([]UserRecord, error)
}
