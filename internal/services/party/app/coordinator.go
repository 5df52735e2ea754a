package app

import (
	"context"
	"errors"
	"log"
	"time"

	apperrors "github.com/soundleaf/soundleaf/internal/platform/errors"
	"github.com/soundleaf/soundleaf/internal/platform/id"
	"github.com/soundleaf/soundleaf/internal/services/party/domain"
	"github.com/soundleaf/soundleaf/internal/services/party/storage"
)

// Coordinator owns the party registry and applies every roster change and
// control action as a serialized state transition. All side effects are
// registry mutation plus fire-and-forget notification delivery; nothing here
// blocks on I/O.
type Coordinator struct {
	store       storage.PartyStore
	notifier    Notifier
	locks       *partyLocks
	clock       func() time.Time
	idGenerator func() (string, error)
}

// NewCoordinator creates a Coordinator with default clock and id generation.
func NewCoordinator(store storage.PartyStore, notifier Notifier) *Coordinator {
	return &Coordinator{
		store:       store,
		notifier:    notifier,
		locks:       newPartyLocks(),
		clock:       time.Now,
		idGenerator: id.NewID,
	}
}

// CreateParty registers a new party with the creator as its only member.
// Initial invitees are recorded but not notified; notification happens when
// the request layer resolves invitees and calls AddInvites. There is no
// broadcast either, since nobody else is in the party yet.
func (c *Coordinator) CreateParty(ctx context.Context, creator domain.UserRef, media domain.MediaSnapshot, invitedUserIDs []string, initial domain.InitialState) (domain.View, error) {
	party, err := domain.CreateParty(domain.CreatePartyInput{
		Creator:        creator,
		Media:          media,
		InvitedUserIDs: invitedUserIDs,
		Initial:        initial,
	}, c.clock, c.idGenerator)
	if err != nil {
		if errors.Is(err, domain.ErrLibraryItemIDRequired) {
			return domain.View{}, apperrors.Wrap(apperrors.CodePartyItemRequired, "library item id is required", err)
		}
		return domain.View{}, err
	}

	// Build the view before Put; once the party is in the registry, other
	// goroutines may mutate it under its lock.
	view := party.ClientView(c.clock(), domain.ActionMeta{})
	if err := c.store.Put(ctx, party); err != nil {
		return domain.View{}, err
	}
	log.Printf("party created party_id=%s library_item_id=%s created_by=%s", party.ID, party.Media.LibraryItemID, creator.ID)
	return view, nil
}

// GetPartyView returns the current client-facing view of a party.
func (c *Coordinator) GetPartyView(ctx context.Context, partyID string) (domain.View, error) {
	c.locks.lock(partyID)
	defer c.locks.unlock(partyID)

	party, err := c.getParty(ctx, partyID)
	if err != nil {
		return domain.View{}, err
	}
	return party.ClientView(c.clock(), domain.ActionMeta{}), nil
}

// EnsureMember verifies the user is currently a member of the party. The
// request layer uses this as its authorization gate for invite and kick.
func (c *Coordinator) EnsureMember(ctx context.Context, partyID, userID string) error {
	c.locks.lock(partyID)
	defer c.locks.unlock(partyID)

	party, err := c.getParty(ctx, partyID)
	if err != nil {
		return err
	}
	if !party.IsMember(userID) {
		return apperrors.New(apperrors.CodePartyNotMember, "user is not a party member")
	}
	return nil
}

// ListInvites returns the client views of every party the user is invited to.
func (c *Coordinator) ListInvites(ctx context.Context, userID string) ([]domain.View, error) {
	parties, err := c.store.List(ctx)
	if err != nil {
		return nil, err
	}

	invites := make([]domain.View, 0)
	for _, party := range parties {
		c.locks.lock(party.ID)
		if party.IsInvited(userID) {
			invites = append(invites, party.ClientView(c.clock(), domain.ActionMeta{}))
		}
		c.locks.unlock(party.ID)
	}
	return invites, nil
}

// AddInvites records an invite for each candidate not already a member and
// sends each one a fresh invite event with the current party view. Users who
// are already members are silently skipped; re-inviting an existing invitee
// does not duplicate the entry but still emits a new notification.
func (c *Coordinator) AddInvites(ctx context.Context, partyID string, users []domain.UserRef) (domain.View, error) {
	c.locks.lock(partyID)
	defer c.locks.unlock(partyID)

	party, err := c.getParty(ctx, partyID)
	if err != nil {
		return domain.View{}, err
	}

	now := c.clock()
	for _, user := range users {
		if !party.AddInvite(user.ID) {
			continue
		}
		c.notifier.Deliver(user.ID, EventPartyInvite, partyEnvelope{Party: party.ClientView(now, domain.ActionMeta{})})
	}
	if err := c.store.Put(ctx, party); err != nil {
		return domain.View{}, err
	}
	return party.ClientView(now, domain.ActionMeta{}), nil
}

// JoinParty moves an invited (or already-member) user onto the roster and
// broadcasts the new roster to every member.
func (c *Coordinator) JoinParty(ctx context.Context, user domain.UserRef, partyID string) (domain.View, error) {
	c.locks.lock(partyID)
	defer c.locks.unlock(partyID)

	party, err := c.getParty(ctx, partyID)
	if err != nil {
		return domain.View{}, err
	}
	if !party.IsInvited(user.ID) && !party.IsMember(user.ID) {
		return domain.View{}, apperrors.New(apperrors.CodePartyNotInvited, "user is not invited to the party")
	}

	now := c.clock()
	party.Join(user, now)
	if err := c.store.Put(ctx, party); err != nil {
		return domain.View{}, err
	}
	c.broadcast(party, now, domain.ActionMeta{ActionType: "join", SourceUserID: user.ID})
	return party.ClientView(now, domain.ActionMeta{}), nil
}

// LeaveParty removes the user from the roster and the invite set. Leaving a
// party the user is no longer part of is a silent no-op. When the last member
// leaves, the party closes instead of broadcasting.
func (c *Coordinator) LeaveParty(ctx context.Context, userID, partyID string) error {
	c.locks.lock(partyID)
	defer c.locks.unlock(partyID)

	party, err := c.getParty(ctx, partyID)
	if err != nil {
		return err
	}

	if !party.IsMember(userID) && !party.IsInvited(userID) {
		return nil
	}
	return c.removeUser(ctx, party, userID)
}

// KickUser evicts a member. The target learns the party is closed from their
// point of view before the remaining members see the kick broadcast. Kicking
// a user who is not a member is a silent no-op.
func (c *Coordinator) KickUser(ctx context.Context, partyID, targetUserID string) error {
	c.locks.lock(partyID)
	defer c.locks.unlock(partyID)

	party, err := c.getParty(ctx, partyID)
	if err != nil {
		return err
	}
	if !party.IsMember(targetUserID) {
		return nil
	}

	party.RemoveUser(targetUserID)
	c.notifier.Deliver(targetUserID, EventPartyClosed, closedEnvelope{ID: party.ID})
	if party.Empty() {
		return c.closeParty(ctx, party)
	}

	now := c.clock()
	party.Touch(now)
	if err := c.store.Put(ctx, party); err != nil {
		return err
	}
	c.broadcast(party, now, domain.ActionMeta{ActionType: "kick", SourceUserID: targetUserID})
	return nil
}

// ApplyAction applies a member's control action to the playback clock and
// broadcasts the resulting state. The mutation and broadcast form a single
// serialized unit per party, so two near-simultaneous actions apply in some
// order and never interleave partial writes.
func (c *Coordinator) ApplyAction(ctx context.Context, userID, partyID string, action domain.Action) error {
	c.locks.lock(partyID)
	defer c.locks.unlock(partyID)

	party, err := c.getParty(ctx, partyID)
	if err != nil {
		return err
	}
	if !party.IsMember(userID) {
		return apperrors.New(apperrors.CodePartyNotMember, "user is not a party member")
	}

	now := c.clock()
	party.ApplyAction(action, now)
	if err := c.store.Put(ctx, party); err != nil {
		return err
	}
	c.broadcast(party, now, domain.ActionMeta{
		ActionType:   string(action.Type),
		ActionID:     action.ActionID,
		SourceUserID: userID,
	})
	return nil
}

// HandleUserDisconnected models a transport disconnect as an implicit leave
// of every party the user is currently a member of.
func (c *Coordinator) HandleUserDisconnected(ctx context.Context, userID string) {
	parties, err := c.store.List(ctx)
	if err != nil {
		log.Printf("party disconnect scan failed user_id=%s err=%v", userID, err)
		return
	}
	for _, party := range parties {
		if err := c.leaveIfMember(ctx, userID, party.ID); err != nil {
			log.Printf("party disconnect leave failed user_id=%s party_id=%s err=%v", userID, party.ID, err)
		}
	}
}

// leaveIfMember removes the user from the party only when they are currently
// a member, keeping any pending invite intact. The membership check happens
// under the party lock; other operations mutate the roster while holding it.
// Parties that close between the scan and lock acquisition are skipped.
func (c *Coordinator) leaveIfMember(ctx context.Context, userID, partyID string) error {
	c.locks.lock(partyID)
	defer c.locks.unlock(partyID)

	party, err := c.getParty(ctx, partyID)
	if err != nil {
		if apperrors.IsCode(err, apperrors.CodePartyNotFound) {
			return nil
		}
		return err
	}
	if !party.IsMember(userID) {
		return nil
	}
	return c.removeUser(ctx, party, userID)
}

// removeUser drops the user from the roster and invite set, closing the party
// when it empties and broadcasting the change otherwise. The caller must hold
// the party lock.
func (c *Coordinator) removeUser(ctx context.Context, party *domain.Party, userID string) error {
	party.RemoveUser(userID)
	if party.Empty() {
		return c.closeParty(ctx, party)
	}

	now := c.clock()
	party.Touch(now)
	if err := c.store.Put(ctx, party); err != nil {
		return err
	}
	c.broadcast(party, now, domain.ActionMeta{ActionType: "leave", SourceUserID: userID})
	return nil
}

// getParty looks up a party while the caller holds its lock. A party that
// closed between lookup and lock acquisition surfaces as not found.
func (c *Coordinator) getParty(ctx context.Context, partyID string) (*domain.Party, error) {
	party, err := c.store.Get(ctx, partyID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.Wrap(apperrors.CodePartyNotFound, "party not found", err)
		}
		return nil, err
	}
	return party, nil
}

// closeParty removes the party from the registry and tells every member and
// remaining invitee that it is gone. The caller must hold the party lock.
func (c *Coordinator) closeParty(ctx context.Context, party *domain.Party) error {
	if err := c.store.Delete(ctx, party.ID); err != nil {
		return err
	}
	payload := closedEnvelope{ID: party.ID}
	for _, userID := range party.RosterUserIDs() {
		c.notifier.Deliver(userID, EventPartyClosed, payload)
	}
	log.Printf("party closed party_id=%s", party.ID)
	return nil
}

// broadcast delivers the refreshed party view to every current member.
func (c *Coordinator) broadcast(party *domain.Party, now time.Time, meta domain.ActionMeta) {
	payload := partyEnvelope{Party: party.ClientView(now, meta)}
	for _, userID := range party.MemberUserIDs() {
		c.notifier.Deliver(userID, EventPartyUpdated, payload)
	}
}
