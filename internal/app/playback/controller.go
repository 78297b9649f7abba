package playback

import (
	"context"
	"math"
	"net/http"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/moodbox/internal/app/media"
	"github.com/osa030/moodbox/internal/domain/playlist"
	"github.com/osa030/moodbox/internal/domain/track"
)

// Errors
var (
	ErrNoTrack          = errors.New("no track loaded")
	ErrNilTrack         = errors.New("track is nil")
	ErrIndexOutOfRange  = errors.New("track index out of range")
	ErrDurationUnknown  = errors.New("duration not known yet")
	ErrTrackUnavailable = errors.New("track unavailable")
	ErrClosed           = errors.New("controller closed")
)

const defaultEventBufferSize = 32

// Config holds controller configuration.
type Config struct {
	InitialVolume   float64      // Stored volume at startup [0,1]
	EventBufferSize int          // Event channel capacity
	HTTPClient      *http.Client // Client used to fetch remote tracks
}

// Controller owns the playlist and transport state and keeps them in sync
// with one media resource.
type Controller struct {
	mu sync.RWMutex

	playlist *playlist.Playlist
	current  int
	state    State

	// Transport
	position float64
	duration float64
	volume   float64
	muted    bool
	loadErr  error

	// Media resource
	resource    media.Resource
	generation  uint64
	unsubscribe func()
	httpClient  *http.Client

	// Events
	eventCh chan Event

	// Context
	ctx    context.Context
	cancel context.CancelFunc
	closed bool
}

// NewController creates a new playback controller driving resource.
func NewController(config Config, resource media.Resource) *Controller {
	ctx, cancel := context.WithCancel(context.Background())

	bufSize := config.EventBufferSize
	if bufSize <= 0 {
		bufSize = defaultEventBufferSize
	}

	c := &Controller{
		playlist:   playlist.New(),
		state:      StateEmpty,
		duration:   math.NaN(),
		volume:     clamp01(config.InitialVolume),
		resource:   resource,
		httpClient: config.HTTPClient,
		eventCh:    make(chan Event, bufSize),
		ctx:        ctx,
		cancel:     cancel,
	}
	resource.SetVolume(c.volume)
	c.unsubscribe = resource.Subscribe(c.onMediaEvent)
	return c
}

// Events returns the event channel.
func (c *Controller) Events() <-chan Event {
	return c.eventCh
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

// AddTrack appends t to the playlist. The first track is loaded paused.
func (c *Controller) AddTrack(t *track.Track) error {
	if t == nil {
		return ErrNilTrack
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	c.playlist.Append(t)
	zlog.Debug().Msgf("playback: track added: name=%s kind=%s len=%d", t.Name, t.Kind, c.playlist.Len())
	c.sendEventLocked(Event{Type: EventTrackAdded, Track: t})

	if c.playlist.Len() == 1 {
		c.current = 0
		c.loadLocked(false)
		c.sendEventLocked(Event{Type: EventTrackChanged, Track: t})
	}
	return nil
}

// RemoveTrack removes the track at index and revokes its local handle.
func (c *Controller) RemoveTrack(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	removed, ok := c.playlist.RemoveAt(index)
	if !ok {
		return errors.Wrapf(ErrIndexOutOfRange, "remove %d of %d", index, c.playlist.Len()+1)
	}

	zlog.Debug().Msgf("playback: track removed: name=%s index=%d current=%d", removed.Name, index, c.current)

	switch {
	case c.playlist.IsEmpty():
		c.current = 0
		c.state = StateEmpty
		c.position = 0
		c.duration = math.NaN()
		c.loadErr = nil
		c.generation = c.resource.SetSource(nil)
		c.releaseLocked(removed)
		c.sendEventLocked(Event{Type: EventTrackRemoved, Track: removed})
		c.sendEventLocked(Event{Type: EventPlaylistEmptied})
		return nil

	case index < c.current:
		c.current--
		c.releaseLocked(removed)
		c.sendEventLocked(Event{Type: EventTrackRemoved, Track: removed})
		return nil

	case index == c.current:
		wasPlaying := c.state == StatePlaying
		if c.current >= c.playlist.Len() {
			c.current = c.playlist.Len() - 1
		}
		c.loadLocked(wasPlaying)
		c.releaseLocked(removed)
		c.sendEventLocked(Event{Type: EventTrackRemoved, Track: removed})
		next, _ := c.playlist.At(c.current)
		c.sendEventLocked(Event{Type: EventTrackChanged, Track: next})
		return nil

	default:
		c.releaseLocked(removed)
		c.sendEventLocked(Event{Type: EventTrackRemoved, Track: removed})
		return nil
	}
}

// SelectTrack makes the track at index current and starts playing it.
func (c *Controller) SelectTrack(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	t, ok := c.playlist.At(index)
	if !ok {
		return errors.Wrapf(ErrIndexOutOfRange, "select %d of %d", index, c.playlist.Len())
	}

	c.current = index
	c.loadLocked(true)
	c.sendEventLocked(Event{Type: EventTrackChanged, Track: t})
	c.sendEventLocked(Event{Type: EventStateChanged, Track: t})
	return nil
}

// TogglePlay switches between Paused and Playing. It is a no-op when empty.
func (c *Controller) TogglePlay() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	switch c.state {
	case StateEmpty:
		return nil
	case StatePlaying:
		c.pauseLocked()
		return nil
	default:
		return c.playLocked()
	}
}

// Play starts playback if paused.
func (c *Controller) Play() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.state != StatePaused {
		return nil
	}
	return c.playLocked()
}

// Pause pauses playback if playing.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.state == StatePlaying {
		c.pauseLocked()
	}
	return nil
}

// Next moves to the following track. It is a no-op on the last track.
func (c *Controller) Next() error {
	return c.step(1)
}

// Previous moves to the preceding track. It is a no-op on the first track.
func (c *Controller) Previous() error {
	return c.step(-1)
}

func (c *Controller) step(delta int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.state == StateEmpty {
		return nil
	}

	target := c.current + delta
	t, ok := c.playlist.At(target)
	if !ok {
		return nil
	}

	c.current = target
	c.loadLocked(c.state == StatePlaying)
	c.sendEventLocked(Event{Type: EventTrackChanged, Track: t})
	return nil
}

// Seek moves the position to seconds, clamped to [0, duration].
func (c *Controller) Seek(seconds float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.state == StateEmpty {
		return ErrNoTrack
	}
	if math.IsNaN(c.duration) {
		return ErrDurationUnknown
	}
	if math.IsNaN(seconds) {
		seconds = 0
	}

	c.position = min(max(seconds, 0), c.duration)
	c.resource.SetCurrentTime(c.position)
	c.sendEventLocked(Event{Type: EventPositionChanged})
	return nil
}

// SetVolume sets the stored volume, clamped to [0,1]. A positive value unmutes.
func (c *Controller) SetVolume(v float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	v = clamp01(v)
	muted := c.muted
	if v > 0 {
		muted = false
	}
	if v == c.volume && muted == c.muted {
		return nil
	}

	c.volume = v
	c.muted = muted
	c.resource.SetVolume(c.effectiveVolumeLocked())
	c.sendEventLocked(Event{Type: EventVolumeChanged})
	return nil
}

// AdjustVolume changes the stored volume by delta.
func (c *Controller) AdjustVolume(delta float64) error {
	c.mu.RLock()
	v := c.volume + delta
	c.mu.RUnlock()
	return c.SetVolume(v)
}

// ToggleMute toggles the effective output volume between 0 and the stored volume.
func (c *Controller) ToggleMute() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	c.muted = !c.muted
	c.resource.SetVolume(c.effectiveVolumeLocked())
	c.sendEventLocked(Event{Type: EventVolumeChanged})
	return nil
}

// Close unsubscribes from the resource, revokes all local handles and
// closes the event channel.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.cancel()

	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
	c.generation = c.resource.SetSource(nil)

	for _, t := range c.playlist.Clear() {
		t.Release()
	}
	c.state = StateEmpty
	close(c.eventCh)
}

// onMediaEvent handles signals from the media resource.
func (c *Controller) onMediaEvent(e media.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || e.Generation != c.generation || c.state == StateEmpty {
		return
	}

	switch e.Signal {
	case media.SignalTimeUpdate:
		c.position = e.Position
		if !math.IsNaN(c.duration) {
			c.position = min(max(c.position, 0), c.duration)
		}
		c.sendEventLocked(Event{Type: EventPositionChanged})

	case media.SignalMetadataLoaded:
		c.duration = e.Duration
		c.position = min(max(c.position, 0), c.duration)
		c.sendEventLocked(Event{Type: EventDurationChanged})

	case media.SignalEnded:
		c.onTrackEndLocked()

	case media.SignalError:
		c.failLocked(e.Err)
	}
}

// onTrackEndLocked advances to the next track, or rewinds to the first
// track paused when the last one ends.
// Must be called with lock held.
func (c *Controller) onTrackEndLocked() {
	ended, _ := c.playlist.At(c.current)
	if ended != nil {
		zlog.Debug().Msgf("playback: track ended: name=%s index=%d", ended.Name, c.current)
	}

	if !c.playlist.IsLast(c.current) {
		c.current++
		c.loadLocked(true)
		next, _ := c.playlist.At(c.current)
		c.sendEventLocked(Event{Type: EventTrackChanged, Track: next})
		return
	}

	c.current = 0
	c.loadLocked(false)
	first, _ := c.playlist.At(0)
	c.sendEventLocked(Event{Type: EventTrackChanged, Track: first})
	c.sendEventLocked(Event{Type: EventStateChanged, Track: first})
}

// loadLocked points the resource at the current track.
// Must be called with lock held.
func (c *Controller) loadLocked(play bool) {
	t, ok := c.playlist.At(c.current)
	if !ok {
		return
	}

	c.position = 0
	c.duration = math.NaN()
	c.loadErr = nil
	c.state = StatePaused
	c.generation = c.resource.SetSource(media.SourceFor(t, c.httpClient))
	c.resource.SetVolume(c.effectiveVolumeLocked())

	if play {
		_ = c.startLocked()
	}
}

// playLocked resumes playback of the loaded track and emits a state change.
// Must be called with lock held.
func (c *Controller) playLocked() error {
	if c.loadErr != nil {
		return errors.WithSecondaryError(ErrTrackUnavailable, c.loadErr)
	}
	if err := c.startLocked(); err != nil {
		return errors.WithSecondaryError(ErrTrackUnavailable, err)
	}
	t, _ := c.playlist.At(c.current)
	c.sendEventLocked(Event{Type: EventStateChanged, Track: t})
	return nil
}

// startLocked asks the resource to play.
// Must be called with lock held.
func (c *Controller) startLocked() error {
	if err := c.resource.Play(); err != nil {
		c.failLocked(err)
		return err
	}
	c.state = StatePlaying
	return nil
}

// pauseLocked pauses the resource and emits a state change.
// Must be called with lock held.
func (c *Controller) pauseLocked() {
	c.resource.Pause()
	c.position = c.resource.CurrentTime()
	c.state = StatePaused
	t, _ := c.playlist.At(c.current)
	c.sendEventLocked(Event{Type: EventStateChanged, Track: t})
}

// failLocked marks the current track unavailable.
// Must be called with lock held.
func (c *Controller) failLocked(err error) {
	err = track.MarkLoadFailed(err)
	t, _ := c.playlist.At(c.current)

	name := ""
	if t != nil {
		name = t.Name
	}
	zlog.Warn().Msgf("playback: track unavailable: name=%s err=%v", name, err)

	wasPlaying := c.state == StatePlaying
	c.loadErr = err
	c.state = StatePaused
	c.resource.Pause()

	c.sendEventLocked(Event{Type: EventTrackUnavailable, Track: t, Err: err})
	if wasPlaying {
		c.sendEventLocked(Event{Type: EventStateChanged, Track: t})
	}
}

// releaseLocked revokes t's handle unless t is still in the playlist.
// Must be called with lock held.
func (c *Controller) releaseLocked(t *track.Track) {
	if c.playlist.IndexOf(t.ID) >= 0 {
		return
	}
	t.Release()
}

func (c *Controller) effectiveVolumeLocked() float64 {
	if c.muted {
		return 0
	}
	return c.volume
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{
		Tracks:       c.playlist.Tracks(),
		CurrentIndex: c.current,
		State:        c.state,
		Position:     c.position,
		Duration:     c.duration,
		Volume:       c.volume,
		Muted:        c.muted,
		Unavailable:  c.loadErr != nil,
	}
	if c.state == StateEmpty {
		s.CurrentIndex = -1
		s.Position = 0
		s.Duration = math.NaN()
	}
	return s
}

// sendEventLocked stamps e with a snapshot and sends it without blocking.
// Must be called with lock held.
func (c *Controller) sendEventLocked(e Event) {
	if c.closed {
		return
	}
	e.Snapshot = c.snapshotLocked()

	select {
	case c.eventCh <- e:
	case <-c.ctx.Done():
	default:
		zlog.Debug().Msgf("playback: event dropped: type=%s", e.Type)
	}
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return min(max(v, 0), 1)
}
