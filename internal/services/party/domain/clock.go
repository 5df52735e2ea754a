package domain

import (
	"math"
	"time"
)

// CurrentPosition interpolates the playback position at the given instant.
// A paused party reports its stored anchor unchanged. A playing party adds
// wall-clock time elapsed since the anchor, scaled by the playback rate, and
// clamps the result. Elapsed time is floored at zero so a caller clock behind
// UpdatedAt can never rewind the position.
func (p *Party) CurrentPosition(now time.Time) float64 {
	if !p.IsPlaying {
		return p.Position
	}
	elapsed := now.Sub(p.UpdatedAt).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	return p.ClampPosition(p.Position + elapsed*p.PlaybackRate)
}

// ClampPosition bounds a position to the playable range. Non-finite input is
// treated as zero. When the media duration is known the result is capped at
// it; otherwise the position is only bounded below by zero.
func (p *Party) ClampPosition(position float64) float64 {
	if math.IsNaN(position) || math.IsInf(position, 0) {
		return 0
	}
	if position < 0 {
		return 0
	}
	if p.Media.Duration != nil && position > *p.Media.Duration {
		return *p.Media.Duration
	}
	return position
}

func normalizeRate(rate float64) float64 {
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate <= 0 {
		return 1
	}
	return rate
}
