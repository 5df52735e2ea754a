// Package party implements synchronized listen-party sessions.
//
// A party joins a group of users to a single logical playback clock for one
// library item. The package is organized into three subpackages:
//   - domain: the party aggregate, its membership roster, and the playback
//     clock that derives the current position from a stored anchor.
//   - app: the session coordinator that applies control actions and roster
//     changes as serialized state transitions, the HTTP request layer, and
//     the WebSocket push gateway that fans state out to members.
//   - storage: the party registry interface and its in-memory implementation.
package party
