// Package playback provides the playback controller that owns the playlist
// and drives a single media resource.
package playback

import (
	"math"

	"github.com/osa030/moodbox/internal/domain/track"
)

// State represents the playback state.
type State int

const (
	StateEmpty   State = iota // No tracks
	StatePaused               // Track loaded, not playing
	StatePlaying              // Track loaded and playing
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StatePaused:
		return "paused"
	case StatePlaying:
		return "playing"
	default:
		return "unknown"
	}
}

// Snapshot is a point-in-time copy of the controller state.
type Snapshot struct {
	Tracks       []*track.Track
	CurrentIndex int // -1 when empty
	State        State
	Position     float64 // Seconds
	Duration     float64 // Seconds, NaN until known
	Volume       float64 // Stored volume [0,1]
	Muted        bool
	Unavailable  bool // Current track failed to load
}

// IsPlaying reports whether the state is Playing.
func (s Snapshot) IsPlaying() bool {
	return s.State == StatePlaying
}

// DurationKnown reports whether the current track's duration is known.
func (s Snapshot) DurationKnown() bool {
	return !math.IsNaN(s.Duration)
}

// EffectiveVolume returns the volume applied to the media resource.
func (s Snapshot) EffectiveVolume() float64 {
	if s.Muted {
		return 0
	}
	return s.Volume
}

// CurrentTrack returns the current track.
func (s Snapshot) CurrentTrack() (*track.Track, bool) {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Tracks) {
		return nil, false
	}
	return s.Tracks[s.CurrentIndex], true
}
