// Package media defines the media resource the playback controller drives,
// plus a clock-driven simulator implementation.
package media

import (
	"github.com/cockroachdb/errors"
)

// Errors
var (
	ErrNoSource = errors.New("no source loaded")
	ErrClosed   = errors.New("resource closed")
)

// Signal represents a media resource signal.
type Signal int

const (
	SignalTimeUpdate     Signal = iota // Position advanced or was set
	SignalMetadataLoaded               // Duration became known
	SignalEnded                        // Playback reached the end of the source
	SignalError                        // Source failed to load or play
)

// String returns the string representation of the signal.
func (s Signal) String() string {
	switch s {
	case SignalTimeUpdate:
		return "time_update"
	case SignalMetadataLoaded:
		return "metadata_loaded"
	case SignalEnded:
		return "ended"
	case SignalError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is a signal raised by a resource.
type Event struct {
	Signal     Signal
	Generation uint64  // Load generation the signal belongs to
	Position   float64 // Seconds
	Duration   float64 // Seconds (MetadataLoaded only)
	Err        error   // SignalError only
}

// Resource is a single media output.
//
// Signals are delivered from the resource's own goroutine, never from inside
// a call to one of its methods.
type Resource interface {
	// SetSource replaces the current source and returns the new load generation.
	// A nil source unloads. Loading is asynchronous and ends with either
	// SignalMetadataLoaded or SignalError for the returned generation.
	SetSource(src *Source) uint64
	Play() error
	Pause()
	CurrentTime() float64
	SetCurrentTime(seconds float64)
	Volume() float64
	SetVolume(v float64)
	// Subscribe registers fn for all signals and returns the unsubscribe func.
	Subscribe(fn func(Event)) func()
	Close() error
}
