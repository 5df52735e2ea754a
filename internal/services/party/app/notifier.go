package app

import "github.com/soundleaf/soundleaf/internal/services/party/domain"

// Event names pushed to clients over the gateway.
const (
	// EventPartyInvite tells a user they may join a party.
	EventPartyInvite = "listen_party_invite"
	// EventPartyUpdated carries the refreshed party view after a roster
	// change or control action.
	EventPartyUpdated = "listen_party_updated"
	// EventPartyClosed tells a user a party no longer exists for them.
	EventPartyClosed = "listen_party_closed"
)

// Notifier delivers an event to all active connections of one user. Delivery
// is fire-and-forget: implementations must not block the caller or report
// per-connection failures, and an offline user is not an error.
type Notifier interface {
	Deliver(userID string, event string, payload any)
}

// partyEnvelope wraps a party view for invite and update events.
type partyEnvelope struct {
	Party domain.View `json:"party"`
}

// closedEnvelope carries only the closed party's id.
type closedEnvelope struct {
	ID string `json:"id"`
}
