package state

import (
	"sync"
	"time"

	"github.com/osa030/moodbox/internal/app/emotion"
)

// Manager manages session state with thread-safe access.
type Manager struct {
	mu sync.RWMutex

	// Session identity
	sessionID string

	// Session lifecycle
	phase     Phase
	startedAt *time.Time

	// Current track and its mood
	currentTrackID string
	mood           Mood
}

// New creates a new state manager.
func New(sessionID string) *Manager {
	return &Manager{
		sessionID: sessionID,
		phase:     PhaseWaiting,
		mood:      Mood{Classification: emotion.Default()},
	}
}

// GetSessionID returns the session ID.
func (m *Manager) GetSessionID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessionID
}

// GetPhase returns the current session phase.
func (m *Manager) GetPhase() Phase {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.phase
}

// SetPhase sets the session phase. Entering PhaseActive records the start time.
func (m *Manager) SetPhase(p Phase) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.phase = p
	if p == PhaseActive && m.startedAt == nil {
		now := time.Now()
		m.startedAt = &now
	}
}

// GetStartedAt returns when the session became active, or nil.
func (m *Manager) GetStartedAt() *time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.startedAt
}

// SetCurrentTrack records the current track ID and reports whether it changed.
// A change resets the mood to the default.
func (m *Manager) SetCurrentTrack(trackID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.currentTrackID == trackID {
		return false
	}
	m.currentTrackID = trackID
	m.mood = Mood{TrackID: trackID, Classification: emotion.Default(), UpdatedAt: time.Now()}
	return true
}

// GetCurrentTrackID returns the current track ID, or "" when there is none.
func (m *Manager) GetCurrentTrackID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentTrackID
}

// ApplyMood stores mood if it belongs to the current track.
// It reports false for a stale result.
func (m *Manager) ApplyMood(mood Mood) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if mood.TrackID == "" || mood.TrackID != m.currentTrackID {
		return false
	}
	if mood.UpdatedAt.IsZero() {
		mood.UpdatedAt = time.Now()
	}
	m.mood = mood
	return true
}

// GetMood returns the mood of the current track.
func (m *Manager) GetMood() Mood {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mood
}
