package domain

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrCreatorRequired indicates a party cannot be created without a creator identity.
	ErrCreatorRequired = errors.New("party creator is required")
	// ErrLibraryItemIDRequired indicates a party cannot be created without a media item.
	ErrLibraryItemIDRequired = errors.New("library item id is required")
	// ErrClockNotConfigured indicates a clock function is required.
	ErrClockNotConfigured = errors.New("party clock is not configured")
	// ErrIDGeneratorNotConfigured indicates an id generator is required.
	ErrIDGeneratorNotConfigured = errors.New("party id generator is not configured")
)

// UserRef identifies a user by id and display name.
type UserRef struct {
	ID       string
	Username string
}

// Member is one entry in a party roster.
type Member struct {
	ID       string
	Username string
	JoinedAt time.Time
}

// MediaSnapshot captures the immutable media metadata a party is created
// against. It is resolved once from the catalog and never re-resolved.
type MediaSnapshot struct {
	LibraryItemID string
	EpisodeID     string
	LibraryID     string
	MediaType     string
	DisplayTitle  string
	DisplayAuthor string
	CoverPath     string
	// Duration is the playback length in seconds. Nil means unknown length,
	// in which case the playback clock is unbounded above.
	Duration *float64
}

// Party is a synchronized playback session. Position is the anchor value as
// of UpdatedAt, not the live position; CurrentPosition interpolates from it.
type Party struct {
	ID        string
	Media     MediaSnapshot
	CreatedBy UserRef
	CreatedAt time.Time
	UpdatedAt time.Time

	IsPlaying    bool
	PlaybackRate float64
	Position     float64

	Members        map[string]Member
	InvitedUserIDs map[string]struct{}
}

// InitialState seeds the playback anchor of a new party.
type InitialState struct {
	IsPlaying    bool
	PlaybackRate float64
	Position     float64
}

// CreatePartyInput describes one party creation request.
type CreatePartyInput struct {
	Creator        UserRef
	Media          MediaSnapshot
	InvitedUserIDs []string
	Initial        InitialState
}

// CreateParty builds a new party with the creator as its sole member. Each
// invited user id is recorded except empty ids and the creator's own id. The
// playback rate defaults to 1 unless the initial rate is a positive finite
// number, and the initial position is clamped against the media duration.
func CreateParty(input CreatePartyInput, clock func() time.Time, idGenerator func() (string, error)) (*Party, error) {
	if strings.TrimSpace(input.Creator.ID) == "" {
		return nil, ErrCreatorRequired
	}
	if strings.TrimSpace(input.Media.LibraryItemID) == "" {
		return nil, ErrLibraryItemIDRequired
	}
	if clock == nil {
		return nil, ErrClockNotConfigured
	}
	if idGenerator == nil {
		return nil, ErrIDGeneratorNotConfigured
	}

	id, err := idGenerator()
	if err != nil {
		return nil, err
	}

	now := clock()
	party := &Party{
		ID:             id,
		Media:          input.Media,
		CreatedBy:      input.Creator,
		CreatedAt:      now,
		UpdatedAt:      now,
		IsPlaying:      input.Initial.IsPlaying,
		PlaybackRate:   normalizeRate(input.Initial.PlaybackRate),
		Members:        make(map[string]Member),
		InvitedUserIDs: make(map[string]struct{}),
	}
	party.Position = party.ClampPosition(input.Initial.Position)
	party.Members[input.Creator.ID] = Member{
		ID:       input.Creator.ID,
		Username: input.Creator.Username,
		JoinedAt: now,
	}
	for _, userID := range input.InvitedUserIDs {
		userID = strings.TrimSpace(userID)
		if userID == "" || userID == input.Creator.ID {
			continue
		}
		party.InvitedUserIDs[userID] = struct{}{}
	}
	return party, nil
}

// IsMember reports whether the user is currently on the roster.
func (p *Party) IsMember(userID string) bool {
	_, ok := p.Members[userID]
	return ok
}

// IsInvited reports whether the user holds an unconsumed invite.
func (p *Party) IsInvited(userID string) bool {
	_, ok := p.InvitedUserIDs[userID]
	return ok
}

// AddInvite records an invite for the user. Members are never invited, so the
// call reports false and leaves the roster untouched when the user is already
// a member. Re-inviting an existing invitee is a no-op that still reports true.
func (p *Party) AddInvite(userID string) bool {
	if p.IsMember(userID) {
		return false
	}
	p.InvitedUserIDs[userID] = struct{}{}
	return true
}

// Join consumes the user's invite (if any) and places them on the roster.
// Joining advances the party mutation timestamp.
func (p *Party) Join(user UserRef, now time.Time) {
	delete(p.InvitedUserIDs, user.ID)
	p.Members[user.ID] = Member{
		ID:       user.ID,
		Username: user.Username,
		JoinedAt: now,
	}
	p.Touch(now)
}

// RemoveUser drops the user from both the roster and the invite set. Removal
// of an absent user is a no-op.
func (p *Party) RemoveUser(userID string) {
	delete(p.Members, userID)
	delete(p.InvitedUserIDs, userID)
}

// Empty reports whether the party has no members left. An empty party must be
// closed; it never stays in the registry.
func (p *Party) Empty() bool {
	return len(p.Members) == 0
}

// RosterUserIDs returns the deduplicated union of member and invitee ids.
// This is the notification set used when a party closes.
func (p *Party) RosterUserIDs() []string {
	ids := make([]string, 0, len(p.Members)+len(p.InvitedUserIDs))
	for userID := range p.Members {
		ids = append(ids, userID)
	}
	for userID := range p.InvitedUserIDs {
		if _, ok := p.Members[userID]; !ok {
			ids = append(ids, userID)
		}
	}
	return ids
}

// MemberUserIDs returns the ids of all current members.
func (p *Party) MemberUserIDs() []string {
	ids := make([]string, 0, len(p.Members))
	for userID := range p.Members {
		ids = append(ids, userID)
	}
	return ids
}

// Touch advances UpdatedAt. The timestamp never moves backward, so a skewed
// clock cannot break the monotonicity invariant callers interpolate against.
func (p *Party) Touch(now time.Time) {
	if now.After(p.UpdatedAt) {
		p.UpdatedAt = now
	}
}
