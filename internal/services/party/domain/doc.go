// Package domain defines the listen-party aggregate and its playback clock.
//
// A Party stores its position as an anchor: the position that was true at
// UpdatedAt. The current position is always derived on read from the anchor,
// the elapsed wall-clock time, and the playback rate, so no timer has to tick
// per party and the clock is a pure function of time.
//
// # Membership
//
// Each (party, user) pair is in exactly one of three states: unrelated,
// invited, or member. The invite set and the roster are disjoint at all
// times, and a party exists only while it has at least one member.
package domain
