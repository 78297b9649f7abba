// Package state provides session state management.
package state

import (
	"time"

	"github.com/osa030/moodbox/internal/app/emotion"
)

// Phase represents the session lifecycle phase.
type Phase int

const (
	PhaseWaiting    Phase = iota // Created, not started
	PhaseActive                  // Event loop running
	PhaseTerminated              // Closed
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseWaiting:
		return "waiting"
	case PhaseActive:
		return "active"
	case PhaseTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Mood is the emotion classification of a track.
type Mood struct {
	TrackID string
	emotion.Classification
	Source    string // provider display name, empty for the default
	UpdatedAt time.Time
}
