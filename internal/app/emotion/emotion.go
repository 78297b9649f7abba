// Package emotion classifies tracks into a mood used by the visual layer.
package emotion

import "strings"

// Emotion is the mood of a track.
type Emotion string

const (
	Happy     Emotion = "happy"
	Sad       Emotion = "sad"
	Energetic Emotion = "energetic"
	Calm      Emotion = "calm"
	Romantic  Emotion = "romantic"
)

// All lists every emotion in a stable order.
var All = []Emotion{Happy, Sad, Energetic, Calm, Romantic}

// Parse returns the emotion named s. Unknown names map to Calm.
func Parse(s string) Emotion {
	e := Emotion(strings.ToLower(strings.TrimSpace(s)))
	if e.Valid() {
		return e
	}
	return Calm
}

// Valid reports whether e is a known emotion.
func (e Emotion) Valid() bool {
	switch e {
	case Happy, Sad, Energetic, Calm, Romantic:
		return true
	}
	return false
}

func (e Emotion) String() string {
	return string(e)
}

// Classification is the result of classifying a track.
type Classification struct {
	Emotion   Emotion
	Intensity float64 // 0-1
	BPM       float64 // 0 when unknown
}

// Default is used when no provider could classify a track.
func Default() Classification {
	return Classification{Emotion: Calm, Intensity: 0.5}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
