// Package session provides the session manager.
package session

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/moodbox/internal/app/command"
	"github.com/osa030/moodbox/internal/app/emotion"
	"github.com/osa030/moodbox/internal/app/filter"
	"github.com/osa030/moodbox/internal/app/ingest"
	"github.com/osa030/moodbox/internal/app/media"
	"github.com/osa030/moodbox/internal/app/notification"
	"github.com/osa030/moodbox/internal/app/playback"
	"github.com/osa030/moodbox/internal/app/session/state"
	"github.com/osa030/moodbox/internal/app/visual"
	"github.com/osa030/moodbox/internal/domain/track"
	"github.com/osa030/moodbox/internal/infra/config"
)

var (
	ErrSessionNotRunning = errors.New("session is not running")
	ErrSessionStarted    = errors.New("session already started")
)

// Classifier classifies tracks into moods.
type Classifier interface {
	Classify(ctx context.Context, t *track.Track) (emotion.ClassificationWithSource, error)
}

// Manager manages the player session.
type Manager struct {
	mu sync.RWMutex

	// Configuration
	config *config.Config

	// Components
	stateMgr     *state.Manager
	playback     *playback.Controller
	ingest       *ingest.Service
	classifier   Classifier
	visual       *visual.Engine
	dispatcher   *command.Dispatcher
	gestures     *command.GestureDetector
	capability   command.Capability
	notification *notification.Manager

	// Channels
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewManager creates a new session manager driving resource.
// classifier and capability may be nil.
func NewManager(
	cfg *config.Config,
	resource media.Resource,
	classifier Classifier,
	capability command.Capability,
) (*Manager, error) {
	chain, err := filter.Build(filterSettings(cfg))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build filter chain")
	}

	if capability == nil {
		capability = command.Noop{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	httpClient := &http.Client{Timeout: cfg.Media.FetchTimeout()}
	prober := ingest.NewHTTPProber(
		&http.Client{Timeout: time.Duration(cfg.Ingest.ProbeTimeoutSec) * time.Second},
		cfg.Ingest.SniffBytes,
	)

	m := &Manager{
		config:   cfg,
		stateMgr: state.New(uuid.New().String()),
		playback: playback.NewController(playback.Config{
			InitialVolume:   cfg.Playback.InitialVolume,
			EventBufferSize: cfg.Playback.EventBufferSize,
			HTTPClient:      httpClient,
		}, resource),
		ingest:       ingest.NewService(chain, prober),
		classifier:   classifier,
		capability:   capability,
		notification: notification.NewManager(),

		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	m.dispatcher = command.NewDispatcher(m.playback, cfg.Playback.VolumeStep)
	m.gestures = command.NewGestureDetector(m.dispatcher.Handle)
	m.visual = visual.NewEngine(visual.Config{
		Interval:        cfg.Visual.FrameInterval(),
		Bins:            cfg.Visual.Bins,
		Particles:       cfg.Visual.Particles,
		ParticleRefresh: cfg.Visual.ParticleRefresh(),
		DefaultBPM:      cfg.Visual.DefaultBPM,
	}, m.onFrame)

	return m, nil
}

// filterSettings converts filter config to chain settings.
func filterSettings(cfg *config.Config) map[string]filter.Settings {
	out := make(map[string]filter.Settings, len(cfg.Filters))
	for name, f := range cfg.Filters {
		out[name] = filter.Settings{Enabled: f.Enabled, Settings: f.Settings}
	}
	return out
}

// Start starts the event loop, loads seed tracks and runs the input capability.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if phase := m.stateMgr.GetPhase(); phase != state.PhaseWaiting {
		m.mu.Unlock()
		return errors.Wrapf(ErrSessionStarted, "phase=%s", phase)
	}
	m.stateMgr.SetPhase(state.PhaseActive)
	sessionID := m.stateMgr.GetSessionID()
	m.mu.Unlock()

	zlog.Info().Msgf("phase changed: phase=ACTIVE session_id=%s", sessionID)

	m.wg.Add(1)
	go m.playbackLoop()

	m.loadSeeds(ctx)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		zlog.Info().Msgf("input capability started: name=%s", m.capability.Name())
		if err := m.capability.Run(m.ctx, m.dispatcher.Handle); err != nil {
			zlog.Warn().Msgf("input capability stopped: name=%s error=%v", m.capability.Name(), err)
		}
	}()

	return nil
}

// loadSeeds adds configured seed tracks. Failures are logged and skipped.
func (m *Manager) loadSeeds(ctx context.Context) {
	for i, seed := range m.config.Seed {
		t, err := m.AddURL(ctx, seed.URL, seed.Name)
		if err != nil {
			zlog.Warn().Msgf("seed track skipped: index=%d url=%s code=%s error=%v", i, seed.URL, ingest.Code(err), err)
			continue
		}
		zlog.Info().Msgf("seed track added: index=%d name=%s", i, t.Name)
	}
}

// Done returns a channel closed when the session has been closed.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// AddFile ingests an uploaded file and appends it to the playlist.
func (m *Manager) AddFile(ctx context.Context, fileName string, data []byte) (*track.Track, error) {
	if err := m.checkRunning(); err != nil {
		return nil, err
	}

	t, err := m.ingest.IngestFile(ctx, fileName, data)
	if err != nil {
		zlog.Warn().Msgf("file rejected: file=%s code=%s", fileName, ingest.Code(err))
		return nil, err
	}
	if err := m.playback.AddTrack(t); err != nil {
		t.Release()
		return nil, err
	}
	zlog.Info().Msgf("track added: id=%s name=%s kind=%s", t.ID, t.Name, t.Kind)
	return t, nil
}

// AddURL validates a remote URL and appends it to the playlist.
func (m *Manager) AddURL(ctx context.Context, rawURL, name string) (*track.Track, error) {
	if err := m.checkRunning(); err != nil {
		return nil, err
	}

	t, err := m.ingest.IngestURL(ctx, rawURL, name)
	if err != nil {
		zlog.Warn().Msgf("url rejected: url=%s code=%s", rawURL, ingest.Code(err))
		return nil, err
	}
	if err := m.playback.AddTrack(t); err != nil {
		return nil, err
	}
	zlog.Info().Msgf("track added: id=%s name=%s kind=%s", t.ID, t.Name, t.Kind)
	return t, nil
}

// Command dispatches a command token.
func (m *Manager) Command(tok command.Token) error {
	if err := m.checkRunning(); err != nil {
		return err
	}
	return m.dispatcher.Dispatch(tok)
}

// Gesture feeds one completed touch to the gesture detector.
// The resulting token, if any, is dispatched asynchronously.
func (m *Manager) Gesture(start, end command.Touch) error {
	if err := m.checkRunning(); err != nil {
		return err
	}
	m.gestures.Touch(start, end)
	return nil
}

// Player returns the playback controller.
func (m *Manager) Player() *playback.Controller {
	return m.playback
}

// GetNotificationManager returns the notification manager.
func (m *Manager) GetNotificationManager() *notification.Manager {
	return m.notification
}

// Status represents the current session status with all information.
type Status struct {
	SessionID   string
	Phase       state.Phase
	StartedAt   *time.Time
	Snapshot    playback.Snapshot
	Mood        state.Mood
	Frame       visual.Frame
	Subscribers int
}

// Status returns the current session status.
func (m *Manager) Status() *Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return &Status{
		SessionID:   m.stateMgr.GetSessionID(),
		Phase:       m.stateMgr.GetPhase(),
		StartedAt:   m.stateMgr.GetStartedAt(),
		Snapshot:    m.playback.Snapshot(),
		Mood:        m.stateMgr.GetMood(),
		Frame:       m.visual.Frame(),
		Subscribers: m.notification.SubscriberCount(),
	}
}

func (m *Manager) checkRunning() error {
	if m.stateMgr.GetPhase() != state.PhaseActive {
		return ErrSessionNotRunning
	}
	return nil
}

// playbackLoop handles playback events until the controller closes its channel.
func (m *Manager) playbackLoop() {
	defer m.wg.Done()

	for event := range m.playback.Events() {
		m.handlePlaybackEvent(event)
	}
}

// handlePlaybackEvent handles playback events.
func (m *Manager) handlePlaybackEvent(event playback.Event) {
	snap := event.Snapshot
	zlog.Debug().Msgf("playback event: type=%s state=%s index=%d", event.Type, snap.State, snap.CurrentIndex)

	m.visual.SetPlaying(snap.IsPlaying())

	current, _ := snap.CurrentTrack()
	m.onCurrentTrack(current)

	switch event.Type {
	case playback.EventTrackUnavailable:
		code := track.Code(event.Err)
		if code == "" {
			code = "track_unavailable"
		}
		m.notification.Broadcast(&notification.Notification{
			Kind:    notification.KindError,
			Event:   code,
			Payload: ErrorPayload{Code: code, Message: m.config.GetMessage(code), Track: event.Track},
		})

	case playback.EventPositionChanged:
		// Position ticks are frequent; subscribers read them from frames and state polls.
		return
	}

	m.notification.Broadcast(&notification.Notification{
		Kind:    notification.KindState,
		Event:   event.Type.String(),
		Payload: snap,
	})
}

// ErrorPayload is the payload of error notifications.
type ErrorPayload struct {
	Code    string
	Message string
	Track   *track.Track
}

// onCurrentTrack starts classification when the current track changes.
func (m *Manager) onCurrentTrack(t *track.Track) {
	id := ""
	if t != nil {
		id = t.ID
	}
	if !m.stateMgr.SetCurrentTrack(id) {
		return
	}

	m.visual.SetMood(m.stateMgr.GetMood().Classification)
	if t == nil || m.classifier == nil {
		return
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.classify(t)
	}()
}

func (m *Manager) classify(t *track.Track) {
	ctx, cancel := context.WithTimeout(m.ctx, time.Duration(m.config.Emotion.TimeoutSec)*time.Second)
	defer cancel()

	mood := state.Mood{TrackID: t.ID, Classification: emotion.Default()}
	result, err := m.classifier.Classify(ctx, t)
	if err != nil {
		zlog.Debug().Msgf("classification fell back to default: track=%s error=%v", t.Name, err)
	} else {
		mood.Classification = result.Classification
		mood.Source = result.DisplayName
	}

	if !m.stateMgr.ApplyMood(mood) {
		zlog.Debug().Msgf("stale classification dropped: track=%s", t.ID)
		return
	}

	m.visual.SetMood(mood.Classification)
	m.notification.Broadcast(&notification.Notification{
		Kind:    notification.KindMood,
		Event:   string(mood.Emotion),
		Payload: mood,
	})
}

func (m *Manager) onFrame(f visual.Frame) {
	m.notification.Broadcast(&notification.Notification{
		Kind:    notification.KindFrame,
		Payload: f,
	})
}

// Close closes the session manager.
// The controller releases every local handle.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.stateMgr.GetPhase() == state.PhaseTerminated {
		m.mu.Unlock()
		return
	}
	m.stateMgr.SetPhase(state.PhaseTerminated)
	m.mu.Unlock()

	m.cancel()
	m.gestures.Close()
	m.playback.Close()
	m.visual.Close()
	m.wg.Wait()
	m.notification.Close()
	close(m.done)

	zlog.Info().Msgf("phase changed: phase=TERMINATED session_id=%s", m.stateMgr.GetSessionID())
}
