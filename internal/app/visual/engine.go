package visual

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/moodbox/internal/app/emotion"
)

// Config represents visual engine configuration.
type Config struct {
	Interval        time.Duration
	Bins            int
	Particles       int
	ParticleRefresh time.Duration
	DefaultBPM      float64
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Interval:        100 * time.Millisecond,
		Bins:            256,
		Particles:       30,
		ParticleRefresh: 8 * time.Second,
		DefaultBPM:      120,
	}
}

// Frame is one rendered visual state.
type Frame struct {
	At        time.Time       `json:"at"`
	Playing   bool            `json:"playing"`
	Bins      []byte          `json:"bins,omitempty"`
	Intensity float64         `json:"intensity"`
	Emotion   emotion.Emotion `json:"emotion"`
	BPM       float64         `json:"bpm"`
	Palette   Palette         `json:"palette"`
	Breath    Breath          `json:"breath"`
	Particles []Particle      `json:"particles,omitempty"`
}

// Engine produces frames while playback is running.
// The ticker runs only between SetPlaying(true) and SetPlaying(false) or Close.
type Engine struct {
	mu       sync.Mutex
	config   Config
	spectrum *Spectrum
	rng      *rand.Rand
	onFrame  func(Frame)
	now      func() time.Time

	playing     bool
	mood        emotion.Classification
	bins        []byte
	phase       int
	phaseAt     time.Time
	particles   []Particle
	particlesAt time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool
}

// NewEngine creates an engine. onFrame is called from the ticker goroutine
// and must not block for long.
func NewEngine(config Config, onFrame func(Frame)) *Engine {
	d := DefaultConfig()
	if config.Interval <= 0 {
		config.Interval = d.Interval
	}
	if config.Bins <= 0 {
		config.Bins = d.Bins
	}
	if config.ParticleRefresh <= 0 {
		config.ParticleRefresh = d.ParticleRefresh
	}
	if config.DefaultBPM <= 0 {
		config.DefaultBPM = d.DefaultBPM
	}
	if onFrame == nil {
		onFrame = func(Frame) {}
	}

	rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x6d6f6f64))
	return &Engine{
		config:   config,
		spectrum: NewSpectrum(config.Bins, rng),
		rng:      rng,
		onFrame:  onFrame,
		now:      time.Now,
		mood:     emotion.Default(),
	}
}

// SetMood sets the classification of the current track.
func (e *Engine) SetMood(c emotion.Classification) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mood = c
}

// SetPlaying starts or stops the frame ticker.
func (e *Engine) SetPlaying(playing bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || e.playing == playing {
		return
	}
	e.playing = playing

	if !playing {
		e.stopLocked()
		e.bins = nil
		return
	}

	now := e.now()
	e.phaseAt = now
	e.particles = NewParticles(e.config.Particles, e.rng)
	e.particlesAt = now

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.wg.Add(1)
	go e.run(ctx)
	zlog.Debug().Msgf("visual: ticker started: interval=%s", e.config.Interval)
}

// Frame returns the current frame without advancing it.
func (e *Engine) Frame() Frame {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frameLocked(e.now())
}

// Running reports whether the ticker is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancel != nil
}

// Close stops the ticker and waits for it to exit.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	e.playing = false
	e.stopLocked()
	e.mu.Unlock()
	e.wg.Wait()
}

// stopLocked cancels the ticker.
// Must be called with lock held.
func (e *Engine) stopLocked() {
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
		zlog.Debug().Msg("visual: ticker stopped")
	}
}

func (e *Engine) run(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			frame, ok := e.tick(ctx)
			if !ok {
				return
			}
			e.onFrame(frame)
		}
	}
}

func (e *Engine) tick(ctx context.Context) (Frame, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if ctx.Err() != nil {
		return Frame{}, false
	}

	now := e.now()
	e.advanceLocked(now)
	return e.frameLocked(now), true
}

// advanceLocked samples the spectrum and steps the breathing phase and particles.
// Must be called with lock held.
func (e *Engine) advanceLocked(now time.Time) {
	e.bins = e.spectrum.Sample(now)

	step := beat(e.bpmLocked())
	for now.Sub(e.phaseAt) >= step {
		e.phase = (e.phase + 1) % 4
		e.phaseAt = e.phaseAt.Add(step)
	}

	if now.Sub(e.particlesAt) >= e.config.ParticleRefresh {
		e.particles = NewParticles(e.config.Particles, e.rng)
		e.particlesAt = now
	}
}

// Must be called with lock held.
func (e *Engine) bpmLocked() float64 {
	if e.mood.BPM > 0 {
		return e.mood.BPM
	}
	return e.config.DefaultBPM
}

// frameLocked builds a frame from the current state.
// Must be called with lock held.
func (e *Engine) frameLocked(now time.Time) Frame {
	intensity := Intensity(e.bins)
	f := Frame{
		At:        now,
		Playing:   e.playing,
		Intensity: intensity,
		Emotion:   e.mood.Emotion,
		BPM:       e.bpmLocked(),
		Palette:   PaletteFor(e.mood.Emotion, (intensity+e.mood.Intensity)/2),
		Breath:    BreathAt(e.phase, intensity),
	}
	if e.bins != nil {
		f.Bins = append([]byte(nil), e.bins...)
	}
	if e.playing {
		f.Particles = append([]Particle(nil), e.particles...)
	}
	return f
}
