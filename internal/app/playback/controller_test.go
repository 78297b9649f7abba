package playback

import (
	"math"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/moodbox/internal/app/media"
	"github.com/osa030/moodbox/internal/domain/track"
)

// fakeResource is a synchronous media.Resource driven by the test.
type fakeResource struct {
	mu         sync.Mutex
	gen        uint64
	src        *media.Source
	playing    bool
	position   float64
	volume     float64
	playErr    error
	setSources int
	handler    func(media.Event)
	unsubbed   bool
}

func (f *fakeResource) SetSource(src *media.Source) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gen++
	f.src = src
	f.playing = false
	f.position = 0
	f.setSources++
	return f.gen
}

func (f *fakeResource) Play() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.playErr != nil {
		return f.playErr
	}
	if f.src == nil {
		return media.ErrNoSource
	}
	f.playing = true
	return nil
}

func (f *fakeResource) Pause() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playing = false
}

func (f *fakeResource) CurrentTime() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.position
}

func (f *fakeResource) SetCurrentTime(seconds float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.position = seconds
}

func (f *fakeResource) Volume() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.volume
}

func (f *fakeResource) SetVolume(v float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volume = v
}

func (f *fakeResource) Subscribe(fn func(media.Event)) func() {
	f.handler = fn
	return func() { f.unsubbed = true }
}

func (f *fakeResource) Close() error { return nil }

// fire delivers a signal for the current generation.
func (f *fakeResource) fire(e media.Event) {
	f.mu.Lock()
	if e.Generation == 0 {
		e.Generation = f.gen
	}
	if e.Signal == media.SignalTimeUpdate {
		f.position = e.Position
	}
	f.mu.Unlock()
	f.handler(e)
}

func (f *fakeResource) loadDuration(seconds float64) {
	f.fire(media.Event{Signal: media.SignalMetadataLoaded, Duration: seconds})
}

func newTestController(t *testing.T) (*Controller, *fakeResource) {
	t.Helper()
	res := &fakeResource{}
	c := NewController(Config{InitialVolume: 0.7}, res)
	t.Cleanup(c.Close)
	return c, res
}

func newTrack(name string) *track.Track {
	return track.NewLocal(name, "mp3", []byte(name))
}

func drain(c *Controller) []Event {
	var out []Event
	for {
		select {
		case e, ok := <-c.Events():
			if !ok {
				return out
			}
			out = append(out, e)
		default:
			return out
		}
	}
}

func eventTypes(events []Event) []EventType {
	out := make([]EventType, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}

func TestController_AddTrack(t *testing.T) {
	c, res := newTestController(t)

	snap := c.Snapshot()
	assert.Equal(t, StateEmpty, snap.State)
	assert.Equal(t, -1, snap.CurrentIndex)

	for i := 0; i < 5; i++ {
		require.NoError(t, c.AddTrack(newTrack("t")))

		snap = c.Snapshot()
		assert.Len(t, snap.Tracks, i+1)
		assert.GreaterOrEqual(t, snap.CurrentIndex, 0)
		assert.Less(t, snap.CurrentIndex, len(snap.Tracks))
		assert.Equal(t, StatePaused, snap.State)
	}

	assert.Equal(t, 1, res.setSources)
	assert.ErrorIs(t, c.AddTrack(nil), ErrNilTrack)
	assert.Len(t, c.Snapshot().Tracks, 5)
}

func TestController_FirstTrackLoadedPaused(t *testing.T) {
	c, res := newTestController(t)
	a := newTrack("A")

	require.NoError(t, c.AddTrack(a))

	snap := c.Snapshot()
	assert.Equal(t, StatePaused, snap.State)
	assert.Equal(t, 0, snap.CurrentIndex)
	assert.False(t, snap.DurationKnown())
	require.NotNil(t, res.src)
	assert.Equal(t, a.ID, res.src.TrackID)
	assert.False(t, res.playing)

	assert.Equal(t, []EventType{EventTrackAdded, EventTrackChanged}, eventTypes(drain(c)))
}

func TestController_RemoveOnlyTrack(t *testing.T) {
	c, res := newTestController(t)
	a := newTrack("A")
	require.NoError(t, c.AddTrack(a))
	require.NoError(t, c.TogglePlay())

	require.NoError(t, c.RemoveTrack(0))

	snap := c.Snapshot()
	assert.Equal(t, StateEmpty, snap.State)
	assert.Equal(t, -1, snap.CurrentIndex)
	assert.Empty(t, snap.Tracks)
	assert.False(t, snap.IsPlaying())
	assert.Nil(t, res.src)
	assert.True(t, a.Handle.Revoked())

	types := eventTypes(drain(c))
	assert.Contains(t, types, EventPlaylistEmptied)
}

func TestController_RemoveTrack(t *testing.T) {
	tests := []struct {
		name          string
		size          int
		current       int
		playing       bool
		remove        int
		expectCurrent string
		expectIndex   int
		expectState   State
		expectReload  bool
	}{
		{
			name: "before current keeps current track", size: 3, current: 2, playing: true, remove: 0,
			expectCurrent: "t2", expectIndex: 1, expectState: StatePlaying, expectReload: false,
		},
		{
			name: "current not last loads following track", size: 3, current: 1, playing: true, remove: 1,
			expectCurrent: "t2", expectIndex: 1, expectState: StatePlaying, expectReload: true,
		},
		{
			name: "current not last while paused stays paused", size: 3, current: 0, playing: false, remove: 0,
			expectCurrent: "t1", expectIndex: 0, expectState: StatePaused, expectReload: true,
		},
		{
			name: "current last decrements", size: 3, current: 2, playing: true, remove: 2,
			expectCurrent: "t1", expectIndex: 1, expectState: StatePlaying, expectReload: true,
		},
		{
			name: "after current changes nothing", size: 3, current: 0, playing: false, remove: 2,
			expectCurrent: "t0", expectIndex: 0, expectState: StatePaused, expectReload: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, res := newTestController(t)
			tracks := make([]*track.Track, tt.size)
			for i := range tracks {
				tracks[i] = newTrack("t" + string(rune('0'+i)))
				require.NoError(t, c.AddTrack(tracks[i]))
			}
			require.NoError(t, c.SelectTrack(tt.current))
			if !tt.playing {
				require.NoError(t, c.TogglePlay())
			}
			loads := res.setSources

			require.NoError(t, c.RemoveTrack(tt.remove))

			snap := c.Snapshot()
			cur, ok := snap.CurrentTrack()
			require.True(t, ok)
			assert.Equal(t, tt.expectCurrent, cur.Name)
			assert.Equal(t, tt.expectIndex, snap.CurrentIndex)
			assert.Equal(t, tt.expectState, snap.State)
			assert.Equal(t, tt.expectReload, res.setSources > loads)
			assert.True(t, tracks[tt.remove].Handle.Revoked())
		})
	}
}

func TestController_RemoveTrackOutOfRange(t *testing.T) {
	c, _ := newTestController(t)
	require.NoError(t, c.AddTrack(newTrack("A")))

	assert.ErrorIs(t, c.RemoveTrack(1), ErrIndexOutOfRange)
	assert.ErrorIs(t, c.RemoveTrack(-1), ErrIndexOutOfRange)
	assert.Len(t, c.Snapshot().Tracks, 1)
}

func TestController_RemoveDuplicateKeepsHandle(t *testing.T) {
	c, _ := newTestController(t)
	a := newTrack("A")
	require.NoError(t, c.AddTrack(a))
	require.NoError(t, c.AddTrack(a))

	require.NoError(t, c.RemoveTrack(1))
	assert.False(t, a.Handle.Revoked())

	require.NoError(t, c.RemoveTrack(0))
	assert.True(t, a.Handle.Revoked())
}

func TestController_SelectTrack(t *testing.T) {
	c, res := newTestController(t)
	require.NoError(t, c.AddTrack(newTrack("A")))
	require.NoError(t, c.AddTrack(newTrack("B")))

	res.loadDuration(120)
	res.fire(media.Event{Signal: media.SignalTimeUpdate, Position: 30})
	assert.Equal(t, 30.0, c.Snapshot().Position)

	for _, i := range []int{1, 0, 0} {
		require.NoError(t, c.SelectTrack(i))

		snap := c.Snapshot()
		assert.True(t, snap.IsPlaying())
		assert.Equal(t, 0.0, snap.Position)
		assert.Equal(t, i, snap.CurrentIndex)
		assert.True(t, res.playing)
	}

	assert.ErrorIs(t, c.SelectTrack(2), ErrIndexOutOfRange)
}

func TestController_TogglePlay(t *testing.T) {
	c, res := newTestController(t)

	// No-op when empty.
	require.NoError(t, c.TogglePlay())
	assert.Equal(t, StateEmpty, c.Snapshot().State)

	require.NoError(t, c.AddTrack(newTrack("A")))

	require.NoError(t, c.TogglePlay())
	assert.True(t, c.Snapshot().IsPlaying())
	assert.True(t, res.playing)

	require.NoError(t, c.TogglePlay())
	assert.False(t, c.Snapshot().IsPlaying())
	assert.False(t, res.playing)
}

func TestController_PlayPause(t *testing.T) {
	c, _ := newTestController(t)
	require.NoError(t, c.AddTrack(newTrack("A")))

	require.NoError(t, c.Pause())
	assert.Equal(t, StatePaused, c.Snapshot().State)

	require.NoError(t, c.Play())
	require.NoError(t, c.Play())
	assert.Equal(t, StatePlaying, c.Snapshot().State)

	require.NoError(t, c.Pause())
	assert.Equal(t, StatePaused, c.Snapshot().State)
}

func TestController_NextPreviousClamp(t *testing.T) {
	c, _ := newTestController(t)

	// No-op when empty.
	require.NoError(t, c.Next())
	require.NoError(t, c.Previous())

	for _, name := range []string{"A", "B", "C"} {
		require.NoError(t, c.AddTrack(newTrack(name)))
	}

	require.NoError(t, c.Previous())
	assert.Equal(t, 0, c.Snapshot().CurrentIndex)

	require.NoError(t, c.Next())
	require.NoError(t, c.Next())
	assert.Equal(t, 2, c.Snapshot().CurrentIndex)
	assert.Equal(t, StatePaused, c.Snapshot().State)

	require.NoError(t, c.Next())
	assert.Equal(t, 2, c.Snapshot().CurrentIndex)

	require.NoError(t, c.TogglePlay())
	require.NoError(t, c.Previous())
	snap := c.Snapshot()
	assert.Equal(t, 1, snap.CurrentIndex)
	assert.True(t, snap.IsPlaying())
}

func TestController_Seek(t *testing.T) {
	c, res := newTestController(t)

	assert.ErrorIs(t, c.Seek(10), ErrNoTrack)

	require.NoError(t, c.AddTrack(newTrack("A")))
	assert.ErrorIs(t, c.Seek(10), ErrDurationUnknown)

	res.loadDuration(200)

	tests := []struct {
		name     string
		seek     float64
		expected float64
	}{
		{name: "within range", seek: 42.5, expected: 42.5},
		{name: "negative", seek: -5, expected: 0},
		{name: "past end", seek: 999, expected: 200},
		{name: "exact end", seek: 200, expected: 200},
		{name: "not a number", seek: math.NaN(), expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, c.Seek(tt.seek))
			snap := c.Snapshot()
			assert.Equal(t, tt.expected, snap.Position)
			assert.GreaterOrEqual(t, snap.Position, 0.0)
			assert.LessOrEqual(t, snap.Position, snap.Duration)
			assert.Equal(t, tt.expected, res.CurrentTime())
		})
	}

	// Applies while playing too.
	require.NoError(t, c.TogglePlay())
	require.NoError(t, c.Seek(50))
	assert.Equal(t, 50.0, c.Snapshot().Position)
}

func TestController_SetVolume(t *testing.T) {
	c, res := newTestController(t)

	tests := []struct {
		name     string
		volume   float64
		expected float64
	}{
		{name: "in range", volume: 0.3, expected: 0.3},
		{name: "above one", volume: 1.7, expected: 1},
		{name: "below zero", volume: -0.2, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, c.SetVolume(tt.volume))
			first := c.Snapshot()
			drain(c)

			require.NoError(t, c.SetVolume(tt.volume))
			second := c.Snapshot()

			assert.Equal(t, tt.expected, first.Volume)
			assert.Equal(t, first.Volume, second.Volume)
			assert.Equal(t, first.Muted, second.Muted)
			assert.Equal(t, tt.expected, res.Volume())
			assert.Empty(t, drain(c))
		})
	}
}

func TestController_SetVolumeClearsMute(t *testing.T) {
	c, res := newTestController(t)

	require.NoError(t, c.ToggleMute())
	assert.True(t, c.Snapshot().Muted)

	require.NoError(t, c.SetVolume(0))
	assert.True(t, c.Snapshot().Muted)

	require.NoError(t, c.SetVolume(0.4))
	snap := c.Snapshot()
	assert.False(t, snap.Muted)
	assert.Equal(t, 0.4, res.Volume())
}

func TestController_AdjustVolume(t *testing.T) {
	c, _ := newTestController(t)

	require.NoError(t, c.AdjustVolume(0.1))
	assert.InDelta(t, 0.8, c.Snapshot().Volume, 1e-9)

	require.NoError(t, c.AdjustVolume(1))
	assert.Equal(t, 1.0, c.Snapshot().Volume)
}

func TestController_ToggleMute(t *testing.T) {
	c, res := newTestController(t)
	require.NoError(t, c.AddTrack(newTrack("A")))
	assert.Equal(t, 0.7, res.Volume())

	require.NoError(t, c.ToggleMute())
	snap := c.Snapshot()
	assert.Equal(t, 0.0, res.Volume())
	assert.Equal(t, 0.0, snap.EffectiveVolume())
	assert.Equal(t, 0.7, snap.Volume)

	require.NoError(t, c.ToggleMute())
	assert.Equal(t, 0.7, res.Volume())
	assert.Equal(t, 0.7, c.Snapshot().Volume)
	assert.False(t, c.Snapshot().Muted)
}

func TestController_ScenarioAdvanceOnTrackEnd(t *testing.T) {
	c, res := newTestController(t)
	a, b := newTrack("A"), newTrack("B")

	require.NoError(t, c.AddTrack(a))
	snap := c.Snapshot()
	assert.Equal(t, StatePaused, snap.State)
	assert.Equal(t, 0, snap.CurrentIndex)

	require.NoError(t, c.TogglePlay())
	assert.True(t, c.Snapshot().IsPlaying())

	require.NoError(t, c.AddTrack(b))
	snap = c.Snapshot()
	cur, _ := snap.CurrentTrack()
	assert.Equal(t, a.ID, cur.ID)
	assert.True(t, snap.IsPlaying())
	assert.Equal(t, []*track.Track{a, b}, snap.Tracks)

	res.loadDuration(3)
	res.fire(media.Event{Signal: media.SignalTimeUpdate, Position: 3})
	res.fire(media.Event{Signal: media.SignalEnded})

	snap = c.Snapshot()
	cur, _ = snap.CurrentTrack()
	assert.Equal(t, b.ID, cur.ID)
	assert.True(t, snap.IsPlaying())
	assert.Equal(t, 0.0, snap.Position)
	assert.False(t, snap.DurationKnown())
	assert.Equal(t, b.ID, res.src.TrackID)
	assert.True(t, res.playing)
}

func TestController_LastTrackEndRewinds(t *testing.T) {
	c, res := newTestController(t)
	require.NoError(t, c.AddTrack(newTrack("A")))
	require.NoError(t, c.AddTrack(newTrack("B")))
	require.NoError(t, c.SelectTrack(1))

	res.fire(media.Event{Signal: media.SignalEnded})

	snap := c.Snapshot()
	assert.Equal(t, 0, snap.CurrentIndex)
	assert.Equal(t, StatePaused, snap.State)
	assert.Equal(t, 0.0, snap.Position)
	assert.False(t, res.playing)
}

func TestController_ScenarioRemoveBeforeCurrent(t *testing.T) {
	c, res := newTestController(t)
	a, b := newTrack("A"), newTrack("B")
	require.NoError(t, c.AddTrack(a))
	require.NoError(t, c.AddTrack(b))
	require.NoError(t, c.SelectTrack(1))
	res.loadDuration(100)
	res.fire(media.Event{Signal: media.SignalTimeUpdate, Position: 12})

	before := c.Snapshot()
	loads := res.setSources

	require.NoError(t, c.RemoveTrack(0))

	snap := c.Snapshot()
	assert.Equal(t, []*track.Track{b}, snap.Tracks)
	assert.Equal(t, 0, snap.CurrentIndex)
	assert.Equal(t, before.State, snap.State)
	assert.Equal(t, before.Position, snap.Position)
	assert.Equal(t, before.Duration, snap.Duration)
	assert.Equal(t, loads, res.setSources)
	assert.True(t, a.Handle.Revoked())
	assert.False(t, b.Handle.Revoked())
}

func TestController_TrackUnavailable(t *testing.T) {
	c, res := newTestController(t)
	a := newTrack("A")
	require.NoError(t, c.AddTrack(a))
	require.NoError(t, c.SelectTrack(0))
	drain(c)

	res.fire(media.Event{Signal: media.SignalError, Err: errors.Wrap(track.ErrUnsupportedFormat, "aac")})

	snap := c.Snapshot()
	assert.False(t, snap.IsPlaying())
	assert.True(t, snap.Unavailable)
	assert.Len(t, snap.Tracks, 1)

	events := drain(c)
	require.NotEmpty(t, events)
	assert.Equal(t, EventTrackUnavailable, events[0].Type)
	assert.Equal(t, track.CodeUnsupportedFormat, track.Code(events[0].Err))
	assert.Equal(t, a, events[0].Track)

	err := c.TogglePlay()
	assert.ErrorIs(t, err, ErrTrackUnavailable)
	assert.False(t, c.Snapshot().IsPlaying())

	// Re-selecting retries the load.
	require.NoError(t, c.SelectTrack(0))
	snap = c.Snapshot()
	assert.True(t, snap.IsPlaying())
	assert.False(t, snap.Unavailable)
}

func TestController_PlayFailureSurfacesUnavailable(t *testing.T) {
	c, res := newTestController(t)
	require.NoError(t, c.AddTrack(newTrack("A")))
	res.playErr = errors.New("device busy")

	err := c.TogglePlay()
	assert.ErrorIs(t, err, ErrTrackUnavailable)

	snap := c.Snapshot()
	assert.False(t, snap.IsPlaying())
	assert.True(t, snap.Unavailable)
}

func TestController_StaleSignalsIgnored(t *testing.T) {
	c, res := newTestController(t)
	require.NoError(t, c.AddTrack(newTrack("A")))
	require.NoError(t, c.AddTrack(newTrack("B")))
	stale := res.gen

	require.NoError(t, c.SelectTrack(1))

	res.fire(media.Event{Signal: media.SignalEnded, Generation: stale})
	res.fire(media.Event{Signal: media.SignalMetadataLoaded, Generation: stale, Duration: 10})
	res.fire(media.Event{Signal: media.SignalError, Generation: stale, Err: errors.New("late")})

	snap := c.Snapshot()
	assert.Equal(t, 1, snap.CurrentIndex)
	assert.True(t, snap.IsPlaying())
	assert.False(t, snap.DurationKnown())
	assert.False(t, snap.Unavailable)
}

func TestController_Close(t *testing.T) {
	res := &fakeResource{}
	c := NewController(Config{InitialVolume: 1}, res)
	a, b := newTrack("A"), newTrack("B")
	require.NoError(t, c.AddTrack(a))
	require.NoError(t, c.AddTrack(b))

	c.Close()
	c.Close()

	assert.True(t, a.Handle.Revoked())
	assert.True(t, b.Handle.Revoked())
	assert.True(t, res.unsubbed)
	assert.Nil(t, res.src)
	assert.ErrorIs(t, c.AddTrack(newTrack("C")), ErrClosed)

	drain(c)
	_, ok := <-c.Events()
	assert.False(t, ok)
}
