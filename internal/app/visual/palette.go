package visual

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/osa030/moodbox/internal/app/emotion"
)

// Color is an RGB hex colour with alpha.
type Color struct {
	Hex   string  `json:"hex"`
	Alpha float64 `json:"alpha"`
}

// Palette is the background gradient for an emotion.
type Palette struct {
	Primary   Color `json:"primary"`
	Secondary Color `json:"secondary"`
	Accent    Color `json:"accent"`
}

// hsla describes one colour as base + intensity*delta per channel.
// Hue is in degrees, saturation/lightness/alpha in [0, 1].
type hsla struct {
	h, dh float64
	s, ds float64
	l, dl float64
	a, da float64
}

func (c hsla) at(intensity float64) Color {
	h := math.Mod(c.h+intensity*c.dh, 360)
	col := colorful.Hsl(h, clamp01(c.s+intensity*c.ds), clamp01(c.l+intensity*c.dl))
	return Color{Hex: col.Clamped().Hex(), Alpha: clamp01(c.a + intensity*c.da)}
}

type paletteSpec struct {
	primary, secondary, accent hsla
}

var palettes = map[emotion.Emotion]paletteSpec{
	emotion.Happy: {
		primary:   hsla{45, 15, 0.70, 0.20, 0.60, 0.20, 0.4, 0.3},
		secondary: hsla{25, 10, 0.80, 0.15, 0.65, 0.15, 0.3, 0.2},
		accent:    hsla{60, 20, 0.75, 0.20, 0.70, 0.10, 0.2, 0.3},
	},
	emotion.Sad: {
		primary:   hsla{220, 20, 0.40, 0.30, 0.30, 0.20, 0.5, 0.3},
		secondary: hsla{240, 15, 0.50, 0.25, 0.40, 0.15, 0.4, 0.2},
		accent:    hsla{200, 25, 0.60, 0.20, 0.50, 0.10, 0.3, 0.3},
	},
	emotion.Energetic: {
		primary:   hsla{0, 30, 0.80, 0.15, 0.60, 0.20, 0.4, 0.4},
		secondary: hsla{320, 20, 0.75, 0.20, 0.65, 0.15, 0.3, 0.3},
		accent:    hsla{40, 25, 0.85, 0.10, 0.70, 0.10, 0.2, 0.4},
	},
	emotion.Calm: {
		primary:   hsla{180, 20, 0.50, 0.25, 0.70, 0.15, 0.3, 0.3},
		secondary: hsla{160, 15, 0.45, 0.30, 0.75, 0.10, 0.2, 0.2},
		accent:    hsla{200, 25, 0.55, 0.20, 0.65, 0.15, 0.2, 0.3},
	},
	emotion.Romantic: {
		primary:   hsla{330, 15, 0.70, 0.20, 0.65, 0.15, 0.4, 0.3},
		secondary: hsla{350, 10, 0.60, 0.25, 0.70, 0.10, 0.3, 0.2},
		accent:    hsla{310, 20, 0.75, 0.15, 0.60, 0.20, 0.2, 0.4},
	},
}

// PaletteFor returns the palette for e at the given intensity.
// Unknown emotions use the calm palette.
func PaletteFor(e emotion.Emotion, intensity float64) Palette {
	ps, ok := palettes[e]
	if !ok {
		ps = palettes[emotion.Calm]
	}
	intensity = clamp01(intensity)
	return Palette{
		Primary:   ps.primary.at(intensity),
		Secondary: ps.secondary.at(intensity),
		Accent:    ps.accent.at(intensity),
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
