// Package speaker provides a media resource that plays through the system
// audio device using beep.
package speaker

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/speaker"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/moodbox/internal/app/media"
	"github.com/osa030/moodbox/internal/domain/track"
)

// Config holds speaker configuration.
type Config struct {
	SampleRate      int           // Output sample rate
	BufferSize      time.Duration // Speaker buffer length
	ResampleQuality int           // beep resample quality (1-64)
	MaxSourceBytes  int64         // Upper bound for a buffered source
	TickInterval    time.Duration // Position update interval
}

// Resource is a media.Resource backed by the system speaker.
type Resource struct {
	mu sync.Mutex

	config  Config
	emitter *media.Emitter

	initOnce sync.Once
	initErr  error
	rate     beep.SampleRate

	gen      uint64
	src      *media.Source
	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl
	vol      *effects.Volume

	loaded  bool
	failed  bool
	playing bool
	volume  float64

	loadCancel func()
	tickCancel func()
	closed     bool
}

// New creates a speaker resource. The device is opened on the first load.
func New(config Config) *Resource {
	if config.SampleRate <= 0 {
		config.SampleRate = 44100
	}
	if config.BufferSize <= 0 {
		config.BufferSize = 100 * time.Millisecond
	}
	if config.ResampleQuality <= 0 {
		config.ResampleQuality = 4
	}
	if config.TickInterval <= 0 {
		config.TickInterval = 250 * time.Millisecond
	}
	return &Resource{
		config:  config,
		emitter: media.NewEmitter(),
		rate:    beep.SampleRate(config.SampleRate),
		volume:  1,
	}
}

func (r *Resource) initSpeaker() error {
	r.initOnce.Do(func() {
		r.initErr = speaker.Init(r.rate, r.rate.N(r.config.BufferSize))
		if r.initErr == nil {
			zlog.Info().Msgf("speaker: initialized: sample_rate=%d buffer=%v", r.config.SampleRate, r.config.BufferSize)
		}
	})
	return r.initErr
}

// SetSource implements media.Resource.
func (r *Resource) SetSource(src *media.Source) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.unloadLocked()
	r.gen++
	r.src = src

	if src == nil || r.closed {
		return r.gen
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.loadCancel = cancel
	go r.load(ctx, r.gen, src)

	return r.gen
}

func (r *Resource) load(ctx context.Context, gen uint64, src *media.Source) {
	streamer, format, err := r.open(ctx, src)

	r.mu.Lock()
	defer r.mu.Unlock()

	if gen != r.gen || r.closed {
		if streamer != nil {
			_ = streamer.Close()
		}
		return
	}

	if err != nil {
		zlog.Warn().Msgf("speaker: load failed: track=%s err=%v", src.Name, err)
		r.failed = true
		r.playing = false
		r.emitter.Emit(media.Event{Signal: media.SignalError, Generation: gen, Err: err})
		return
	}

	r.streamer = streamer
	r.format = format
	r.loaded = true

	var s beep.Streamer = streamer
	if format.SampleRate != r.rate {
		s = beep.Resample(r.config.ResampleQuality, format.SampleRate, r.rate, streamer)
	}
	r.ctrl = &beep.Ctrl{Streamer: s, Paused: !r.playing}
	r.vol = &effects.Volume{Streamer: r.ctrl, Base: 2}
	r.applyVolumeLocked()

	speaker.Play(beep.Seq(r.vol, beep.Callback(func() {
		// Runs on the speaker goroutine with the speaker lock held.
		go r.onEnded(gen)
	})))

	duration := format.SampleRate.D(streamer.Len()).Seconds()
	r.emitter.Emit(media.Event{Signal: media.SignalMetadataLoaded, Generation: gen, Duration: duration})

	if r.playing {
		r.startTickerLocked()
	}
}

func (r *Resource) open(ctx context.Context, src *media.Source) (beep.StreamSeekCloser, beep.Format, error) {
	if err := r.initSpeaker(); err != nil {
		return nil, beep.Format{}, errors.Mark(errors.Wrap(err, "failed to initialize speaker"), track.ErrResourceLoadFailed)
	}
	if src.Open == nil {
		return nil, beep.Format{}, errors.Mark(errors.New("source has no opener"), track.ErrResourceLoadFailed)
	}

	rc, err := src.Open(ctx)
	if err != nil {
		return nil, beep.Format{}, track.MarkLoadFailed(err)
	}
	defer rc.Close()

	data, err := readAll(rc, r.config.MaxSourceBytes)
	if err != nil {
		return nil, beep.Format{}, track.MarkLoadFailed(errors.Wrap(err, "failed to read source"))
	}
	return decode(src.Ext, data)
}

func (r *Resource) onEnded(gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if gen != r.gen || !r.loaded {
		return
	}

	r.playing = false
	r.stopTickerLocked()
	pos := r.positionLocked()
	r.emitter.Emit(media.Event{Signal: media.SignalTimeUpdate, Generation: gen, Position: pos})
	r.emitter.Emit(media.Event{Signal: media.SignalEnded, Generation: gen, Position: pos})
}

// Play implements media.Resource.
func (r *Resource) Play() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return media.ErrClosed
	}
	if r.src == nil {
		return media.ErrNoSource
	}
	if r.failed {
		return errors.Mark(errors.New("source failed to load"), track.ErrResourceLoadFailed)
	}

	r.playing = true
	if r.ctrl != nil {
		speaker.Lock()
		r.ctrl.Paused = false
		speaker.Unlock()
		r.startTickerLocked()
	}
	return nil
}

// Pause implements media.Resource.
func (r *Resource) Pause() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.playing = false
	r.stopTickerLocked()
	if r.ctrl != nil {
		speaker.Lock()
		r.ctrl.Paused = true
		speaker.Unlock()
	}
}

// CurrentTime implements media.Resource.
func (r *Resource) CurrentTime() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.positionLocked()
}

// SetCurrentTime implements media.Resource.
func (r *Resource) SetCurrentTime(seconds float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.streamer == nil {
		return
	}

	n := r.format.SampleRate.N(time.Duration(seconds * float64(time.Second)))
	n = min(max(n, 0), r.streamer.Len())

	speaker.Lock()
	err := r.streamer.Seek(n)
	speaker.Unlock()
	if err != nil {
		zlog.Warn().Msgf("speaker: seek failed: err=%v", err)
		return
	}

	r.emitter.Emit(media.Event{Signal: media.SignalTimeUpdate, Generation: r.gen, Position: r.positionLocked()})
}

// Volume implements media.Resource.
func (r *Resource) Volume() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.volume
}

// SetVolume implements media.Resource.
func (r *Resource) SetVolume(v float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.volume = min(max(v, 0), 1)
	r.applyVolumeLocked()
}

// Subscribe implements media.Resource.
func (r *Resource) Subscribe(fn func(media.Event)) func() {
	return r.emitter.Subscribe(fn)
}

// Close implements media.Resource.
func (r *Resource) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.unloadLocked()
	r.mu.Unlock()

	r.emitter.Close()
	return nil
}

// unloadLocked stops output and releases the current streamer.
// Must be called with lock held.
func (r *Resource) unloadLocked() {
	r.stopTickerLocked()
	if r.loadCancel != nil {
		r.loadCancel()
		r.loadCancel = nil
	}
	if r.ctrl != nil {
		speaker.Clear()
		r.ctrl = nil
		r.vol = nil
	}
	if r.streamer != nil {
		_ = r.streamer.Close()
		r.streamer = nil
	}
	r.loaded = false
	r.failed = false
	r.playing = false
}

// applyVolumeLocked maps the linear volume onto the exponential volume effect.
// Must be called with lock held.
func (r *Resource) applyVolumeLocked() {
	if r.vol == nil {
		return
	}
	speaker.Lock()
	if r.volume <= 0 {
		r.vol.Silent = true
	} else {
		r.vol.Silent = false
		r.vol.Volume = math.Log2(r.volume)
	}
	speaker.Unlock()
}

// positionLocked must be called with lock held.
func (r *Resource) positionLocked() float64 {
	if r.streamer == nil {
		return 0
	}
	speaker.Lock()
	pos := r.streamer.Position()
	speaker.Unlock()
	return r.format.SampleRate.D(pos).Seconds()
}

// startTickerLocked starts position updates.
// Must be called with lock held.
func (r *Resource) startTickerLocked() {
	r.stopTickerLocked()

	ctx, cancel := context.WithCancel(context.Background())
	r.tickCancel = cancel
	gen := r.gen

	go func() {
		ticker := time.NewTicker(r.config.TickInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.mu.Lock()
				if ctx.Err() != nil || gen != r.gen || !r.playing {
					r.mu.Unlock()
					return
				}
				r.emitter.Emit(media.Event{Signal: media.SignalTimeUpdate, Generation: gen, Position: r.positionLocked()})
				r.mu.Unlock()
			}
		}
	}()
}

// stopTickerLocked must be called with lock held.
func (r *Resource) stopTickerLocked() {
	if r.tickCancel != nil {
		r.tickCancel()
		r.tickCancel = nil
	}
}
