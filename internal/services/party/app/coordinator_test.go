package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	apperrors "github.com/soundleaf/soundleaf/internal/platform/errors"
	"github.com/soundleaf/soundleaf/internal/services/party/domain"
	"github.com/soundleaf/soundleaf/internal/services/party/storage/memory"
)

type delivery struct {
	userID  string
	event   string
	payload any
}

type recordingNotifier struct {
	deliveries []delivery
}

func (n *recordingNotifier) Deliver(userID string, event string, payload any) {
	n.deliveries = append(n.deliveries, delivery{userID: userID, event: event, payload: payload})
}

func (n *recordingNotifier) usersFor(event string) []string {
	users := make([]string, 0)
	for _, d := range n.deliveries {
		if d.event == event {
			users = append(users, d.userID)
		}
	}
	sort.Strings(users)
	return users
}

func newTestCoordinator(t *testing.T) (*Coordinator, *recordingNotifier) {
	t.Helper()
	notifier := &recordingNotifier{}
	coordinator := NewCoordinator(memory.NewStore(), notifier)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	step := 0
	coordinator.clock = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Second)
	}
	seq := 0
	coordinator.idGenerator = func() (string, error) {
		seq++
		return fmt.Sprintf("party-%d", seq), nil
	}
	return coordinator, notifier
}

func createTestParty(t *testing.T, coordinator *Coordinator, invitees ...string) domain.View {
	t.Helper()
	view, err := coordinator.CreateParty(context.Background(),
		domain.UserRef{ID: "u1", Username: "ana"},
		domain.MediaSnapshot{LibraryItemID: "item-1", DisplayTitle: "The Long Way"},
		invitees,
		domain.InitialState{Position: 100, PlaybackRate: 1},
	)
	if err != nil {
		t.Fatalf("create party: %v", err)
	}
	return view
}

func TestCreatePartyDoesNotNotify(t *testing.T) {
	coordinator, notifier := newTestCoordinator(t)

	view := createTestParty(t, coordinator, "u2")

	if len(notifier.deliveries) != 0 {
		t.Fatalf("expected no deliveries on create, got %v", notifier.deliveries)
	}
	if len(view.Members) != 1 || view.Members[0].ID != "u1" {
		t.Fatalf("expected creator as sole member, got %v", view.Members)
	}
	if len(view.InvitedUserIDs) != 1 || view.InvitedUserIDs[0] != "u2" {
		t.Fatalf("expected u2 invited, got %v", view.InvitedUserIDs)
	}
}

func TestGetPartyViewNotFound(t *testing.T) {
	coordinator, _ := newTestCoordinator(t)

	_, err := coordinator.GetPartyView(context.Background(), "missing")
	if !apperrors.IsCode(err, apperrors.CodePartyNotFound) {
		t.Fatalf("expected party not found, got %v", err)
	}
}

func TestAddInvitesNotifiesNewInvitees(t *testing.T) {
	coordinator, notifier := newTestCoordinator(t)
	view := createTestParty(t, coordinator)

	_, err := coordinator.AddInvites(context.Background(), view.ID, []domain.UserRef{
		{ID: "u2"}, {ID: "u3"}, {ID: "u1"},
	})
	if err != nil {
		t.Fatalf("add invites: %v", err)
	}

	got := notifier.usersFor(EventPartyInvite)
	want := []string{"u2", "u3"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("expected invites delivered to %v, got %v", want, got)
	}
}

func TestAddInvitesReinviteNotifiesAgain(t *testing.T) {
	coordinator, notifier := newTestCoordinator(t)
	view := createTestParty(t, coordinator, "u2")

	updated, err := coordinator.AddInvites(context.Background(), view.ID, []domain.UserRef{{ID: "u2"}})
	if err != nil {
		t.Fatalf("add invites: %v", err)
	}

	if got := notifier.usersFor(EventPartyInvite); len(got) != 1 || got[0] != "u2" {
		t.Fatalf("expected a fresh invite event for u2, got %v", notifier.deliveries)
	}
	if len(updated.InvitedUserIDs) != 1 {
		t.Fatalf("expected invite set not to duplicate, got %v", updated.InvitedUserIDs)
	}
}

func TestJoinPartyRequiresInvite(t *testing.T) {
	coordinator, _ := newTestCoordinator(t)
	view := createTestParty(t, coordinator)

	_, err := coordinator.JoinParty(context.Background(), domain.UserRef{ID: "u9"}, view.ID)
	if !apperrors.IsCode(err, apperrors.CodePartyNotInvited) {
		t.Fatalf("expected not invited error, got %v", err)
	}
}

func TestJoinPartyBroadcastsRoster(t *testing.T) {
	coordinator, notifier := newTestCoordinator(t)
	view := createTestParty(t, coordinator, "u2")

	joined, err := coordinator.JoinParty(context.Background(), domain.UserRef{ID: "u2", Username: "ben"}, view.ID)
	if err != nil {
		t.Fatalf("join party: %v", err)
	}

	if len(joined.Members) != 2 {
		t.Fatalf("expected two members, got %v", joined.Members)
	}
	if len(joined.InvitedUserIDs) != 0 {
		t.Fatalf("expected invite consumed, got %v", joined.InvitedUserIDs)
	}
	got := notifier.usersFor(EventPartyUpdated)
	want := []string{"u1", "u2"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("expected update broadcast to %v, got %v", want, got)
	}
	for _, d := range notifier.deliveries {
		if d.event != EventPartyUpdated {
			continue
		}
		envelope := d.payload.(partyEnvelope)
		if envelope.Party.State.ActionType != "join" || envelope.Party.State.SourceUserID != "u2" {
			t.Fatalf("expected join meta in broadcast, got %+v", envelope.Party.State)
		}
	}
}

func TestJoinPartyAlreadyMemberSucceeds(t *testing.T) {
	coordinator, _ := newTestCoordinator(t)
	view := createTestParty(t, coordinator)

	joined, err := coordinator.JoinParty(context.Background(), domain.UserRef{ID: "u1", Username: "ana"}, view.ID)
	if err != nil {
		t.Fatalf("expected rejoin by member to succeed, got %v", err)
	}
	if len(joined.Members) != 1 {
		t.Fatalf("expected roster unchanged, got %v", joined.Members)
	}
}

func TestLeavePartyBroadcastsToRemaining(t *testing.T) {
	coordinator, notifier := newTestCoordinator(t)
	view := createTestParty(t, coordinator, "u2")
	if _, err := coordinator.JoinParty(context.Background(), domain.UserRef{ID: "u2"}, view.ID); err != nil {
		t.Fatalf("join party: %v", err)
	}
	notifier.deliveries = nil

	if err := coordinator.LeaveParty(context.Background(), "u2", view.ID); err != nil {
		t.Fatalf("leave party: %v", err)
	}

	if got := notifier.usersFor(EventPartyUpdated); len(got) != 1 || got[0] != "u1" {
		t.Fatalf("expected update delivered only to u1, got %v", notifier.deliveries)
	}
	remaining, err := coordinator.GetPartyView(context.Background(), view.ID)
	if err != nil {
		t.Fatalf("get party: %v", err)
	}
	if len(remaining.Members) != 1 || remaining.Members[0].ID != "u1" {
		t.Fatalf("expected only u1 left, got %v", remaining.Members)
	}
}

func TestLeavePartyLastMemberCloses(t *testing.T) {
	coordinator, notifier := newTestCoordinator(t)
	view := createTestParty(t, coordinator, "u2", "u3")

	if err := coordinator.LeaveParty(context.Background(), "u1", view.ID); err != nil {
		t.Fatalf("leave party: %v", err)
	}

	got := notifier.usersFor(EventPartyClosed)
	want := []string{"u2", "u3"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("expected closed events for remaining invitees %v, got %v", want, got)
	}
	if _, err := coordinator.GetPartyView(context.Background(), view.ID); !apperrors.IsCode(err, apperrors.CodePartyNotFound) {
		t.Fatalf("expected party gone, got %v", err)
	}
}

func TestLeavePartyIsIdempotent(t *testing.T) {
	coordinator, notifier := newTestCoordinator(t)
	view := createTestParty(t, coordinator, "u2")
	if _, err := coordinator.JoinParty(context.Background(), domain.UserRef{ID: "u2"}, view.ID); err != nil {
		t.Fatalf("join party: %v", err)
	}
	if err := coordinator.LeaveParty(context.Background(), "u2", view.ID); err != nil {
		t.Fatalf("leave party: %v", err)
	}
	notifier.deliveries = nil

	if err := coordinator.LeaveParty(context.Background(), "u2", view.ID); err != nil {
		t.Fatalf("expected second leave to be a no-op, got %v", err)
	}
	if len(notifier.deliveries) != 0 {
		t.Fatalf("expected no deliveries on repeated leave, got %v", notifier.deliveries)
	}
}

func TestLeavePartyUnknownPartyIsNotFound(t *testing.T) {
	coordinator, _ := newTestCoordinator(t)

	err := coordinator.LeaveParty(context.Background(), "u1", "missing")
	if !apperrors.IsCode(err, apperrors.CodePartyNotFound) {
		t.Fatalf("expected party not found, got %v", err)
	}
}

func TestKickUserNotifiesTargetThenBroadcasts(t *testing.T) {
	coordinator, notifier := newTestCoordinator(t)
	view := createTestParty(t, coordinator, "u2")
	if _, err := coordinator.JoinParty(context.Background(), domain.UserRef{ID: "u2"}, view.ID); err != nil {
		t.Fatalf("join party: %v", err)
	}
	notifier.deliveries = nil

	if err := coordinator.KickUser(context.Background(), view.ID, "u2"); err != nil {
		t.Fatalf("kick user: %v", err)
	}

	if len(notifier.deliveries) != 2 {
		t.Fatalf("expected closed event plus one broadcast, got %v", notifier.deliveries)
	}
	first := notifier.deliveries[0]
	if first.userID != "u2" || first.event != EventPartyClosed {
		t.Fatalf("expected target closed event first, got %+v", first)
	}
	second := notifier.deliveries[1]
	if second.userID != "u1" || second.event != EventPartyUpdated {
		t.Fatalf("expected update to u1, got %+v", second)
	}
	envelope := second.payload.(partyEnvelope)
	if envelope.Party.State.ActionType != "kick" || envelope.Party.State.SourceUserID != "u2" {
		t.Fatalf("expected kick meta naming the target, got %+v", envelope.Party.State)
	}
}

func TestKickUserNonMemberIsNoop(t *testing.T) {
	coordinator, notifier := newTestCoordinator(t)
	view := createTestParty(t, coordinator, "u2")
	notifier.deliveries = nil

	if err := coordinator.KickUser(context.Background(), view.ID, "u9"); err != nil {
		t.Fatalf("expected kick of non-member to be a no-op, got %v", err)
	}
	if len(notifier.deliveries) != 0 {
		t.Fatalf("expected no deliveries, got %v", notifier.deliveries)
	}
}

func TestKickLastMemberClosesParty(t *testing.T) {
	coordinator, notifier := newTestCoordinator(t)
	view := createTestParty(t, coordinator)
	notifier.deliveries = nil

	if err := coordinator.KickUser(context.Background(), view.ID, "u1"); err != nil {
		t.Fatalf("kick user: %v", err)
	}

	got := notifier.usersFor(EventPartyClosed)
	if len(got) != 1 || got[0] != "u1" {
		t.Fatalf("expected a single closed event for u1, got %v", notifier.deliveries)
	}
	if _, err := coordinator.GetPartyView(context.Background(), view.ID); !apperrors.IsCode(err, apperrors.CodePartyNotFound) {
		t.Fatalf("expected party gone, got %v", err)
	}
}

func TestApplyActionRequiresMembership(t *testing.T) {
	coordinator, _ := newTestCoordinator(t)
	view := createTestParty(t, coordinator, "u2")

	err := coordinator.ApplyAction(context.Background(), "u2", view.ID, domain.Action{Type: domain.ActionPlay})
	if !apperrors.IsCode(err, apperrors.CodePartyNotMember) {
		t.Fatalf("expected not member error for invitee, got %v", err)
	}
}

func TestApplyActionBroadcastsWithMeta(t *testing.T) {
	coordinator, notifier := newTestCoordinator(t)
	view := createTestParty(t, coordinator)
	notifier.deliveries = nil

	position := 250.0
	err := coordinator.ApplyAction(context.Background(), "u1", view.ID, domain.Action{
		Type:     domain.ActionSeek,
		Position: &position,
		ActionID: "act-7",
	})
	if err != nil {
		t.Fatalf("apply action: %v", err)
	}

	if len(notifier.deliveries) != 1 {
		t.Fatalf("expected one broadcast, got %v", notifier.deliveries)
	}
	envelope := notifier.deliveries[0].payload.(partyEnvelope)
	state := envelope.Party.State
	if state.Position != 250 {
		t.Fatalf("expected broadcast position 250, got %v", state.Position)
	}
	if state.ActionType != "seek" || state.ActionID != "act-7" || state.SourceUserID != "u1" {
		t.Fatalf("unexpected action meta: %+v", state)
	}
}

func TestEnsureMember(t *testing.T) {
	coordinator, _ := newTestCoordinator(t)
	view := createTestParty(t, coordinator, "u2")

	if err := coordinator.EnsureMember(context.Background(), view.ID, "u1"); err != nil {
		t.Fatalf("expected member check to pass, got %v", err)
	}
	if err := coordinator.EnsureMember(context.Background(), view.ID, "u2"); !apperrors.IsCode(err, apperrors.CodePartyNotMember) {
		t.Fatalf("expected not member error for invitee, got %v", err)
	}
}

func TestListInvites(t *testing.T) {
	coordinator, _ := newTestCoordinator(t)
	first := createTestParty(t, coordinator, "u2")
	createTestParty(t, coordinator)

	invites, err := coordinator.ListInvites(context.Background(), "u2")
	if err != nil {
		t.Fatalf("list invites: %v", err)
	}
	if len(invites) != 1 || invites[0].ID != first.ID {
		t.Fatalf("expected one invite to %s, got %v", first.ID, invites)
	}
}

func TestHandleUserDisconnectedLeavesAllParties(t *testing.T) {
	coordinator, notifier := newTestCoordinator(t)
	first := createTestParty(t, coordinator, "u2")
	second := createTestParty(t, coordinator, "u2")
	for _, id := range []string{first.ID, second.ID} {
		if _, err := coordinator.JoinParty(context.Background(), domain.UserRef{ID: "u2"}, id); err != nil {
			t.Fatalf("join party %s: %v", id, err)
		}
	}
	notifier.deliveries = nil

	coordinator.HandleUserDisconnected(context.Background(), "u2")

	for _, id := range []string{first.ID, second.ID} {
		view, err := coordinator.GetPartyView(context.Background(), id)
		if err != nil {
			t.Fatalf("get party %s: %v", id, err)
		}
		if len(view.Members) != 1 || view.Members[0].ID != "u1" {
			t.Fatalf("expected u2 gone from %s, got %v", id, view.Members)
		}
	}
	if got := notifier.usersFor(EventPartyUpdated); len(got) != 2 {
		t.Fatalf("expected one update per party for u1, got %v", notifier.deliveries)
	}
}

func TestHandleUserDisconnectedIgnoresNonMemberships(t *testing.T) {
	coordinator, notifier := newTestCoordinator(t)
	createTestParty(t, coordinator, "u2")
	notifier.deliveries = nil

	coordinator.HandleUserDisconnected(context.Background(), "u2")

	if len(notifier.deliveries) != 0 {
		t.Fatalf("expected invite to survive a disconnect, got %v", notifier.deliveries)
	}
}

// countingNotifier is safe for concurrent delivery. The concurrency tests
// only care that deliveries happen without racing, not what they contain.
type countingNotifier struct {
	mu    sync.Mutex
	count int
}

func (n *countingNotifier) Deliver(string, string, any) {
	n.mu.Lock()
	n.count++
	n.mu.Unlock()
}

func TestHandleUserDisconnectedConcurrentWithRosterChanges(t *testing.T) {
	coordinator := NewCoordinator(memory.NewStore(), &countingNotifier{})
	ctx := context.Background()

	view, err := coordinator.CreateParty(ctx,
		domain.UserRef{ID: "u1", Username: "ana"},
		domain.MediaSnapshot{LibraryItemID: "item-1", DisplayTitle: "The Long Way"},
		nil,
		domain.InitialState{PlaybackRate: 1},
	)
	if err != nil {
		t.Fatalf("create party: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		guest := domain.UserRef{ID: "u2"}
		for i := 0; i < 200; i++ {
			if _, err := coordinator.AddInvites(ctx, view.ID, []domain.UserRef{guest}); err != nil {
				t.Errorf("add invite: %v", err)
				return
			}
			if _, err := coordinator.JoinParty(ctx, guest, view.ID); err != nil {
				t.Errorf("join: %v", err)
				return
			}
			if err := coordinator.LeaveParty(ctx, guest.ID, view.ID); err != nil {
				t.Errorf("leave: %v", err)
				return
			}
		}
	}()
	for i := 0; i < 200; i++ {
		coordinator.HandleUserDisconnected(ctx, "u3")
	}
	<-done

	if err := coordinator.EnsureMember(ctx, view.ID, "u1"); err != nil {
		t.Fatalf("expected creator still a member: %v", err)
	}
}

func TestCreatePartyConcurrentWithDisconnect(t *testing.T) {
	coordinator := NewCoordinator(memory.NewStore(), &countingNotifier{})
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			if _, err := coordinator.CreateParty(ctx,
				domain.UserRef{ID: "u1", Username: "ana"},
				domain.MediaSnapshot{LibraryItemID: "item-1", DisplayTitle: "The Long Way"},
				nil,
				domain.InitialState{PlaybackRate: 1},
			); err != nil {
				t.Errorf("create party: %v", err)
				return
			}
		}
	}()
	for i := 0; i < 200; i++ {
		coordinator.HandleUserDisconnected(ctx, "u1")
	}
	<-done
}
