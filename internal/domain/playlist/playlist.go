// Package playlist provides the Playlist domain entity.
package playlist

import "github.com/osa030/moodbox/internal/domain/track"

// Playlist is an ordered, duplicate-tolerant sequence of tracks.
// It is not safe for concurrent use; the playback controller owns it.
type Playlist struct {
	tracks []*track.Track
}

// New creates an empty playlist.
func New() *Playlist {
	return &Playlist{}
}

// Append adds t to the end of the playlist.
func (p *Playlist) Append(t *track.Track) {
	p.tracks = append(p.tracks, t)
}

// RemoveAt removes and returns the track at index i.
// Returns false if i is out of range.
func (p *Playlist) RemoveAt(i int) (*track.Track, bool) {
	if i < 0 || i >= len(p.tracks) {
		return nil, false
	}
	t := p.tracks[i]
	p.tracks = append(p.tracks[:i], p.tracks[i+1:]...)
	return t, true
}

// At returns the track at index i.
func (p *Playlist) At(i int) (*track.Track, bool) {
	if i < 0 || i >= len(p.tracks) {
		return nil, false
	}
	return p.tracks[i], true
}

// Len returns the number of tracks.
func (p *Playlist) Len() int {
	return len(p.tracks)
}

// IsEmpty reports whether the playlist has no tracks.
func (p *Playlist) IsEmpty() bool {
	return len(p.tracks) == 0
}

// IsLast reports whether i is the index of the last track.
func (p *Playlist) IsLast(i int) bool {
	return len(p.tracks) > 0 && i == len(p.tracks)-1
}

// IndexOf returns the index of the track with the given ID, or -1.
func (p *Playlist) IndexOf(id string) int {
	for i, t := range p.tracks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// Tracks returns a copy of the track list.
func (p *Playlist) Tracks() []*track.Track {
	out := make([]*track.Track, len(p.tracks))
	copy(out, p.tracks)
	return out
}

// Clear removes all tracks and returns them.
func (p *Playlist) Clear() []*track.Track {
	removed := p.tracks
	p.tracks = nil
	return removed
}
