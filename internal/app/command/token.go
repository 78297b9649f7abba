// Package command turns gestures and utterances into player commands.
package command

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrUnknownToken is returned when a command token is not recognized.
var ErrUnknownToken = errors.New("unknown command token")

// Token is a discrete player command.
type Token string

const (
	SwipeLeft  Token = "swipeLeft"
	SwipeRight Token = "swipeRight"
	SwipeUp    Token = "swipeUp"
	SwipeDown  Token = "swipeDown"
	Tap        Token = "tap"
	DoubleTap  Token = "doubleTap"
	Play       Token = "play"
	Pause      Token = "pause"
	Next       Token = "next"
	Previous   Token = "previous"
)

// Tokens lists every valid token.
var Tokens = []Token{SwipeLeft, SwipeRight, SwipeUp, SwipeDown, Tap, DoubleTap, Play, Pause, Next, Previous}

// ParseToken parses a token name. Matching ignores case and "_" or "-" separators,
// so "swipe_left" and "SwipeLeft" both parse.
func ParseToken(s string) (Token, error) {
	key := normalize(s)
	for _, t := range Tokens {
		if normalize(string(t)) == key {
			return t, nil
		}
	}
	return "", errors.Wrapf(ErrUnknownToken, "%q", s)
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(s)
}

func (t Token) String() string {
	return string(t)
}
