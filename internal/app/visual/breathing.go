package visual

import (
	"math"
	"math/rand/v2"
	"time"
)

// Breath is the state of the breathing overlay.
type Breath struct {
	Phase   int     `json:"phase"` // 0-3, one per beat
	Scale   float64 `json:"scale"`
	Opacity float64 `json:"opacity"`
}

// BreathAt computes the overlay for a phase at the given intensity.
func BreathAt(phase int, intensity float64) Breath {
	angle := float64(phase) * math.Pi / 2
	return Breath{
		Phase:   phase,
		Scale:   1 + math.Sin(angle)*0.1*intensity,
		Opacity: 0.3 + math.Cos(angle)*0.2*intensity,
	}
}

// beat returns the duration of one breathing phase. A full breath spans four beats.
func beat(bpm float64) time.Duration {
	if bpm <= 0 {
		bpm = 120
	}
	return time.Duration(float64(time.Minute) / bpm)
}

// Particle is one decorative particle. Positions are percentages.
type Particle struct {
	ID      int     `json:"id"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Size    float64 `json:"size"`
	Opacity float64 `json:"opacity"`
	Speed   float64 `json:"speed"`
}

// NewParticles generates n particles.
func NewParticles(n int, rng *rand.Rand) []Particle {
	out := make([]Particle, n)
	for i := range out {
		out[i] = Particle{
			ID:      i,
			X:       rng.Float64() * 100,
			Y:       rng.Float64() * 100,
			Size:    rng.Float64()*4 + 1,
			Opacity: rng.Float64()*0.6 + 0.2,
			Speed:   rng.Float64()*0.5 + 0.2,
		}
	}
	return out
}
