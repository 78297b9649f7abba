package playback

import "github.com/osa030/moodbox/internal/domain/track"

// EventType represents a playback event type.
type EventType int

const (
	EventTrackAdded       EventType = iota // Track appended to the playlist
	EventTrackRemoved                      // Track removed from the playlist
	EventTrackChanged                      // Current index changed or current track reloaded
	EventStateChanged                      // Playing/paused changed
	EventPositionChanged                   // Position advanced or was sought
	EventDurationChanged                   // Current track metadata loaded
	EventVolumeChanged                     // Volume or mute changed
	EventTrackUnavailable                  // Current track failed to load or play
	EventPlaylistEmptied                   // Last track removed
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventTrackAdded:
		return "track_added"
	case EventTrackRemoved:
		return "track_removed"
	case EventTrackChanged:
		return "track_changed"
	case EventStateChanged:
		return "state_changed"
	case EventPositionChanged:
		return "position_changed"
	case EventDurationChanged:
		return "duration_changed"
	case EventVolumeChanged:
		return "volume_changed"
	case EventTrackUnavailable:
		return "track_unavailable"
	case EventPlaylistEmptied:
		return "playlist_emptied"
	default:
		return "unknown"
	}
}

// Event represents a playback event.
type Event struct {
	Type     EventType
	Snapshot Snapshot
	Track    *track.Track // Track the event is about (nil for some events)
	Err      error        // EventTrackUnavailable only
}
