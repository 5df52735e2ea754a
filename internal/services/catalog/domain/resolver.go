// Package domain implements catalog resolution at the party service boundary.
package domain

import (
	"context"
	"errors"
	"slices"
	"strings"

	apperrors "github.com/soundleaf/soundleaf/internal/platform/errors"
	"github.com/soundleaf/soundleaf/internal/services/catalog/storage"
)

// Media is the immutable playback metadata snapshot resolved for a party.
// For podcast items with an episode id, the title and duration come from the
// episode row rather than the item row.
type Media struct {
	LibraryItemID string
	EpisodeID     string
	LibraryID     string
	MediaType     string
	Title         string
	Author        string
	CoverPath     string
	Duration      *float64
}

// User is a resolved user identity.
type User struct {
	ID       string
	Username string
}

// Resolver answers the media and identity questions the party request layer
// asks: what does this item look like, who is this caller, and which users
// may be invited to listen to it.
type Resolver struct {
	store storage.CatalogStore
}

// NewResolver creates a Resolver backed by the given store.
func NewResolver(store storage.CatalogStore) *Resolver {
	return &Resolver{store: store}
}

// ResolveMediaSnapshot resolves the playback metadata for an item, applying
// the episode override when an episode id is given.
func (r *Resolver) ResolveMediaSnapshot(ctx context.Context, libraryItemID, episodeID string) (Media, error) {
	if r == nil || r.store == nil {
		return Media{}, errors.New("catalog store is not configured")
	}

	item, err := r.store.GetLibraryItem(ctx, libraryItemID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Media{}, apperrors.Wrap(apperrors.CodeLibraryItemNotFound, "library item not found", err)
		}
		return Media{}, err
	}

	media := Media{
		LibraryItemID: item.ID,
		LibraryID:     item.LibraryID,
		MediaType:     item.MediaType,
		Title:         item.Title,
		Author:        item.Author,
		CoverPath:     item.CoverPath,
		Duration:      item.Duration,
	}

	episodeID = strings.TrimSpace(episodeID)
	if episodeID != "" {
		episode, err := r.store.GetEpisode(ctx, libraryItemID, episodeID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return Media{}, apperrors.Wrap(apperrors.CodeLibraryItemNotFound, "episode not found", err)
			}
			return Media{}, err
		}
		media.EpisodeID = episode.ID
		media.Title = episode.Title
		media.Duration = episode.Duration
	}
	return media, nil
}

// ResolveUser resolves an active user identity or reports not found.
func (r *Resolver) ResolveUser(ctx context.Context, userID string) (User, error) {
	if r == nil || r.store == nil {
		return User{}, errors.New("catalog store is not configured")
	}
	record, err := r.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return User{}, apperrors.Wrap(apperrors.CodeUserNotFound, "user not found", err)
		}
		return User{}, err
	}
	if !record.IsActive {
		return User{}, apperrors.New(apperrors.CodeUserNotFound, "user is not active")
	}
	return User{ID: record.ID, Username: record.Username}, nil
}

// CanAccessItem reports whether the user may play content from the item's
// library.
func (r *Resolver) CanAccessItem(ctx context.Context, userID, libraryItemID string) (bool, error) {
	if r == nil || r.store == nil {
		return false, errors.New("catalog store is not configured")
	}
	item, err := r.store.GetLibraryItem(ctx, libraryItemID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, apperrors.Wrap(apperrors.CodeLibraryItemNotFound, "library item not found", err)
		}
		return false, err
	}
	user, err := r.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return userCanAccess(user, item), nil
}

// ListInviteeOptions returns the active users other than the caller who can
// access the item, ordered by username. This feeds the invite picker.
func (r *Resolver) ListInviteeOptions(ctx context.Context, callerID, libraryItemID string) ([]User, error) {
	if r == nil || r.store == nil {
		return nil, errors.New("catalog store is not configured")
	}
	item, err := r.store.GetLibraryItem(ctx, libraryItemID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.Wrap(apperrors.CodeLibraryItemNotFound, "library item not found", err)
		}
		return nil, err
	}

	records, err := r.store.ListActiveUsers(ctx)
	if err != nil {
		return nil, err
	}

	users := make([]User, 0, len(records))
	for _, record := range records {
		if record.ID == callerID || !userCanAccess(record, item) {
			continue
		}
		users = append(users, User{ID: record.ID, Username: record.Username})
	}
	return users, nil
}

// EligibleInvitees filters the given user ids down to active users who can
// access the item. Unknown ids are skipped.
func (r *Resolver) EligibleInvitees(ctx context.Context, libraryItemID string, userIDs []string) ([]User, error) {
	if r == nil || r.store == nil {
		return nil, errors.New("catalog store is not configured")
	}
	if len(userIDs) == 0 {
		return nil, nil
	}
	item, err := r.store.GetLibraryItem(ctx, libraryItemID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.Wrap(apperrors.CodeLibraryItemNotFound, "library item not found", err)
		}
		return nil, err
	}

	records, err := r.store.ListUsersByIDs(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	users := make([]User, 0, len(records))
	for _, record := range records {
		if !record.IsActive || !userCanAccess(record, item) {
			continue
		}
		users = append(users, User{ID: record.ID, Username: record.Username})
	}
	return users, nil
}

func userCanAccess(user storage.UserRecord, item storage.LibraryItemRecord) bool {
	if user.AllLibraries {
		return true
	}
	return slices.Contains(user.LibraryIDs, item.LibraryID)
}
