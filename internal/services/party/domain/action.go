package domain

import (
	"errors"
	"math"
	"time"
)

// ErrInvalidActionType indicates an action type outside the closed set.
var ErrInvalidActionType = errors.New("invalid action type")

// ActionType enumerates the control actions a member can issue.
type ActionType string

const (
	// ActionPlay resumes the shared clock.
	ActionPlay ActionType = "play"
	// ActionPause freezes the shared clock.
	ActionPause ActionType = "pause"
	// ActionSeek moves the position without changing the play state.
	ActionSeek ActionType = "seek"
	// ActionRate changes the playback rate, re-anchoring the clock first.
	ActionRate ActionType = "rate"
)

// ParseActionType validates a wire action type value. Anything outside the
// closed play/pause/seek/rate set is rejected before reaching the coordinator.
func ParseActionType(value string) (ActionType, error) {
	switch ActionType(value) {
	case ActionPlay, ActionPause, ActionSeek, ActionRate:
		return ActionType(value), nil
	default:
		return "", ErrInvalidActionType
	}
}

// Action is one validated control action. Position and PlaybackRate are
// optional; ActionID is an opaque token the originator uses to correlate its
// own request with the broadcast it receives back.
type Action struct {
	Type         ActionType
	Position     *float64
	PlaybackRate *float64
	ActionID     string
}

// ApplyAction applies a control action to the playback anchor. The clock
// value is captured once before any field changes, so an action with no
// explicit position freezes or re-anchors at the interpolated "now" value.
// A rate action ignores any supplied position and only adopts the new rate
// when it is a positive finite number; either way it re-anchors the clock so
// the rate change cannot retroactively stretch already-elapsed playback.
func (p *Party) ApplyAction(action Action, now time.Time) {
	current := p.CurrentPosition(now)
	target := current
	if action.Position != nil {
		target = *action.Position
	}

	switch action.Type {
	case ActionPlay:
		p.Position = p.ClampPosition(target)
		p.IsPlaying = true
	case ActionPause:
		p.Position = p.ClampPosition(target)
		p.IsPlaying = false
	case ActionSeek:
		p.Position = p.ClampPosition(target)
	case ActionRate:
		p.Position = p.ClampPosition(current)
		if action.PlaybackRate != nil && isPositiveFinite(*action.PlaybackRate) {
			p.PlaybackRate = *action.PlaybackRate
		}
	}
	p.Touch(now)
}

func isPositiveFinite(value float64) bool {
	return !math.IsNaN(value) && !math.IsInf(value, 0) && value > 0
}
