// Package visual produces decorative audio-reactive frames: a synthetic
// spectrum, an emotion palette, a breathing overlay and a particle field.
package visual

import (
	"math"
	"math/rand/v2"
	"time"
)

// Spectrum generates synthetic frequency data. No real audio is analysed.
type Spectrum struct {
	bins int
	rng  *rand.Rand
}

// NewSpectrum creates a generator producing the given number of bins.
func NewSpectrum(bins int, rng *rand.Rand) *Spectrum {
	if bins <= 0 {
		bins = 256
	}
	return &Spectrum{bins: bins, rng: rng}
}

// Sample returns one frame of bins for time t.
// Each bin is a slow sine wave over time and bin index plus jitter, in [0, 255].
func (s *Spectrum) Sample(t time.Time) []byte {
	ms := float64(t.UnixMilli())
	out := make([]byte, s.bins)
	for i := range out {
		v := math.Sin(ms*0.001+float64(i)*0.1)*50 + 100 + s.rng.Float64()*30
		out[i] = byte(math.Max(0, math.Min(255, v)))
	}
	return out
}

// Intensity returns the mean bin level normalised to [0, 1].
// Without data it returns 0.5.
func Intensity(bins []byte) float64 {
	if len(bins) == 0 {
		return 0.5
	}
	var sum float64
	for _, b := range bins {
		sum += float64(b)
	}
	return math.Min(sum/float64(len(bins))/255, 1)
}
