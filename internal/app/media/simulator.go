package media

import (
	"context"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/moodbox/internal/domain/track"
)

// SimulatorConfig holds simulator configuration.
type SimulatorConfig struct {
	TickInterval    time.Duration // Position update interval
	BytesPerSecond  int64         // Used to estimate duration from byte size
	DefaultDuration time.Duration // Used when the byte size is zero
	Formats         []string      // Accepted extensions; empty accepts everything
}

// DefaultSimulatorConfig returns the simulator defaults.
func DefaultSimulatorConfig() SimulatorConfig {
	return SimulatorConfig{
		TickInterval:    250 * time.Millisecond,
		BytesPerSecond:  16000, // 128 kbps
		DefaultDuration: 180 * time.Second,
		Formats:         []string{"mp3", "wav", "flac", "aac", "ogg", "m4a"},
	}
}

// Simulator is a headless Resource whose clock advances in wall time.
type Simulator struct {
	mu sync.Mutex

	config  SimulatorConfig
	emitter *Emitter

	gen      uint64
	src      *Source
	loaded   bool
	failed   bool
	playing  bool
	position float64
	duration float64
	volume   float64

	clockCancel func()
	loadCancel  func()

	closed bool
}

// NewSimulator creates a simulator.
func NewSimulator(config SimulatorConfig) *Simulator {
	if config.TickInterval <= 0 {
		config.TickInterval = DefaultSimulatorConfig().TickInterval
	}
	if config.BytesPerSecond <= 0 {
		config.BytesPerSecond = DefaultSimulatorConfig().BytesPerSecond
	}
	return &Simulator{
		config:  config,
		emitter: NewEmitter(),
		volume:  1,
	}
}

// SetSource implements Resource.
func (s *Simulator) SetSource(src *Source) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopClockLocked()
	if s.loadCancel != nil {
		s.loadCancel()
		s.loadCancel = nil
	}

	s.gen++
	s.src = src
	s.loaded = false
	s.failed = false
	s.playing = false
	s.position = 0
	s.duration = 0

	if src == nil || s.closed {
		return s.gen
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.loadCancel = cancel
	go s.load(ctx, s.gen, src)

	return s.gen
}

func (s *Simulator) load(ctx context.Context, gen uint64, src *Source) {
	duration, err := s.probe(ctx, src)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen || s.closed {
		return
	}

	if err != nil {
		zlog.Debug().Msgf("media: simulator load failed: track=%s err=%v", src.Name, err)
		s.failed = true
		s.playing = false
		s.emitter.Emit(Event{Signal: SignalError, Generation: gen, Err: err})
		return
	}

	s.loaded = true
	s.duration = duration.Seconds()
	s.emitter.Emit(Event{Signal: SignalMetadataLoaded, Generation: gen, Duration: s.duration})

	if s.playing {
		s.startClockLocked()
	}
}

func (s *Simulator) probe(ctx context.Context, src *Source) (time.Duration, error) {
	if len(s.config.Formats) > 0 && !slices.Contains(s.config.Formats, src.Ext) {
		return 0, errors.Wrapf(track.ErrUnsupportedFormat, "cannot play %q", src.Ext)
	}
	if src.Open == nil {
		return 0, errors.Mark(errors.New("source has no opener"), track.ErrResourceLoadFailed)
	}

	size := src.Size
	if size <= 0 {
		rc, err := src.Open(ctx)
		if err != nil {
			return 0, track.MarkLoadFailed(err)
		}
		defer rc.Close()

		n, err := io.Copy(io.Discard, rc)
		if err != nil {
			return 0, track.MarkLoadFailed(errors.Wrap(err, "failed to read source"))
		}
		size = n
	}

	if size <= 0 {
		if s.config.DefaultDuration > 0 {
			return s.config.DefaultDuration, nil
		}
		return 0, errors.Mark(errors.New("source is empty"), track.ErrResourceLoadFailed)
	}

	return time.Duration(float64(size) / float64(s.config.BytesPerSecond) * float64(time.Second)), nil
}

// Play implements Resource.
func (s *Simulator) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.src == nil {
		return ErrNoSource
	}
	if s.failed {
		return errors.Mark(errors.New("source failed to load"), track.ErrResourceLoadFailed)
	}

	s.playing = true
	if s.loaded {
		s.startClockLocked()
	}
	return nil
}

// Pause implements Resource.
func (s *Simulator) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.playing = false
	s.stopClockLocked()
}

// CurrentTime implements Resource.
func (s *Simulator) CurrentTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

// SetCurrentTime implements Resource.
func (s *Simulator) SetCurrentTime(seconds float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return
	}
	s.position = min(max(seconds, 0), s.duration)
	s.emitter.Emit(Event{Signal: SignalTimeUpdate, Generation: s.gen, Position: s.position})
}

// Volume implements Resource.
func (s *Simulator) Volume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

// SetVolume implements Resource.
func (s *Simulator) SetVolume(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volume = min(max(v, 0), 1)
}

// Subscribe implements Resource.
func (s *Simulator) Subscribe(fn func(Event)) func() {
	return s.emitter.Subscribe(fn)
}

// Close implements Resource.
func (s *Simulator) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.playing = false
	s.stopClockLocked()
	if s.loadCancel != nil {
		s.loadCancel()
		s.loadCancel = nil
	}
	s.mu.Unlock()

	s.emitter.Close()
	return nil
}

// startClockLocked starts the position clock.
// Must be called with lock held.
func (s *Simulator) startClockLocked() {
	s.stopClockLocked()

	ctx, cancel := context.WithCancel(context.Background())
	s.clockCancel = cancel
	gen := s.gen

	go func() {
		ticker := time.NewTicker(s.config.TickInterval)
		defer ticker.Stop()

		last := time.Now()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if !s.tick(ctx, gen, now.Sub(last)) {
					return
				}
				last = now
			}
		}
	}()
}

// tick advances the clock. Returns false when the clock should stop.
func (s *Simulator) tick(ctx context.Context, gen uint64, elapsed time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ctx.Err() != nil || gen != s.gen || !s.playing {
		return false
	}

	s.position += elapsed.Seconds()
	if s.position >= s.duration {
		s.position = s.duration
		s.playing = false
		s.stopClockLocked()
		s.emitter.Emit(Event{Signal: SignalTimeUpdate, Generation: gen, Position: s.position})
		s.emitter.Emit(Event{Signal: SignalEnded, Generation: gen, Position: s.position})
		return false
	}

	s.emitter.Emit(Event{Signal: SignalTimeUpdate, Generation: gen, Position: s.position})
	return true
}

// stopClockLocked stops the position clock.
// Must be called with lock held.
func (s *Simulator) stopClockLocked() {
	if s.clockCancel != nil {
		s.clockCancel()
		s.clockCancel = nil
	}
}
