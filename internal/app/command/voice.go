package command

import (
	"sort"
	"strings"
)

// phrases maps spoken phrases to tokens. English and Chinese are supported.
var phrases = map[string]Token{
	"play":          Play,
	"resume":        Play,
	"start":         Play,
	"pause":         Pause,
	"stop":          Pause,
	"hold on":       Pause,
	"next":          Next,
	"skip":          Next,
	"next song":     Next,
	"previous":      Previous,
	"go back":       Previous,
	"last song":     Previous,
	"previous song": Previous,
	"volume up":     SwipeUp,
	"louder":        SwipeUp,
	"volume down":   SwipeDown,
	"quieter":       SwipeDown,
	"mute":          DoubleTap,
	"unmute":        DoubleTap,
	"播放":            Play,
	"继续":            Play,
	"暂停":            Pause,
	"停止":            Pause,
	"下一首":           Next,
	"下一曲":           Next,
	"上一首":           Previous,
	"上一曲":           Previous,
	"大声":            SwipeUp,
	"小声":            SwipeDown,
	"静音":            DoubleTap,
}

// Recognizer maps utterances to tokens.
type Recognizer struct {
	keys    []string
	phrases map[string]Token
}

// NewRecognizer creates a recognizer with the built-in phrases plus extra.
func NewRecognizer(extra map[string]Token) *Recognizer {
	m := make(map[string]Token, len(phrases)+len(extra))
	for k, v := range phrases {
		m[k] = v
	}
	for k, v := range extra {
		m[strings.ToLower(k)] = v
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// Longer phrases first so "next song" wins over "next".
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	return &Recognizer{keys: keys, phrases: m}
}

// Recognize returns the token for the earliest phrase in utterance.
// One utterance yields at most one token.
func (r *Recognizer) Recognize(utterance string) (Token, bool) {
	text := " " + strings.Join(strings.Fields(strings.ToLower(utterance)), " ") + " "

	best, bestAt := "", -1
	for _, k := range r.keys {
		at := indexPhrase(text, k)
		if at < 0 {
			continue
		}
		if bestAt < 0 || at < bestAt {
			best, bestAt = k, at
		}
	}
	if bestAt < 0 {
		return "", false
	}
	return r.phrases[best], true
}

// indexPhrase finds phrase in text. Latin phrases must match whole words.
func indexPhrase(text, phrase string) int {
	if isASCII(phrase) {
		return strings.Index(text, " "+phrase+" ")
	}
	return strings.Index(text, phrase)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
