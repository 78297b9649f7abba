package emotion

import (
	"strings"
	"unicode"
)

// keywords maps lower-case words to the emotion they suggest.
// Multi-word tags from Last.fm are split before matching.
var keywords = map[Emotion][]string{
	Happy: {
		"happy", "joy", "joyful", "sunny", "sunshine", "summer", "fun", "cheerful",
		"upbeat", "feel-good", "feelgood", "party", "smile", "bright", "pop",
	},
	Sad: {
		"sad", "melancholy", "melancholic", "tears", "cry", "crying", "lonely",
		"blue", "blues", "heartbreak", "sorrow", "rain", "goodbye", "depressing", "emo",
	},
	Energetic: {
		"energetic", "energy", "rock", "metal", "punk", "dance", "edm", "techno",
		"workout", "power", "fast", "hardcore", "drum", "bass", "fire", "run",
	},
	Calm: {
		"calm", "chill", "chillout", "ambient", "relax", "relaxing", "sleep",
		"peaceful", "quiet", "lofi", "lo-fi", "piano", "acoustic", "meditation", "soft",
	},
	Romantic: {
		"romantic", "love", "lovers", "heart", "kiss", "sweet", "valentine",
		"darling", "forever", "wedding", "soul", "rnb", "r&b", "ballad",
	},
}

var lexicon = buildLexicon(keywords)

func buildLexicon(m map[Emotion][]string) map[string]Emotion {
	out := make(map[string]Emotion)
	for _, e := range All {
		for _, w := range m[e] {
			out[w] = e
		}
	}
	return out
}

// tokenize splits s into lower-case words.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '-' && r != '&'
	})
}

// score accumulates weight for every word of text found in lex.
func score(scores map[Emotion]float64, lex map[string]Emotion, text string, weight float64) {
	for _, w := range tokenize(text) {
		if e, ok := lex[w]; ok {
			scores[e] += weight
		}
	}
}

// best returns the highest scoring emotion and its share of the total.
// Ties resolve in the order of All.
func best(scores map[Emotion]float64) (Emotion, float64, bool) {
	var (
		top   Emotion
		topV  float64
		total float64
	)
	for _, e := range All {
		v := scores[e]
		total += v
		if v > topV {
			top, topV = e, v
		}
	}
	if topV == 0 {
		return "", 0, false
	}
	return top, topV / total, true
}
