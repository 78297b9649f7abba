package command

import (
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// Player is the subset of playback operations driven by commands.
type Player interface {
	TogglePlay() error
	Play() error
	Pause() error
	Next() error
	Previous() error
	AdjustVolume(delta float64) error
	ToggleMute() error
}

// Dispatcher maps tokens to player operations.
type Dispatcher struct {
	player     Player
	volumeStep float64
}

// NewDispatcher creates a dispatcher. volumeStep is the change applied by
// vertical swipes; non-positive values use 0.1.
func NewDispatcher(player Player, volumeStep float64) *Dispatcher {
	if volumeStep <= 0 {
		volumeStep = 0.1
	}
	return &Dispatcher{player: player, volumeStep: volumeStep}
}

// Dispatch runs the operation for tok.
//
//	swipeLeft  -> Next        swipeRight -> Previous
//	swipeUp    -> volume up   swipeDown  -> volume down
//	tap        -> TogglePlay  doubleTap  -> ToggleMute
//	play/pause/next/previous  -> the operation of the same name
func (d *Dispatcher) Dispatch(tok Token) error {
	zlog.Debug().Msgf("command: dispatch: token=%s", tok)

	switch tok {
	case SwipeLeft, Next:
		return d.player.Next()
	case SwipeRight, Previous:
		return d.player.Previous()
	case SwipeUp:
		return d.player.AdjustVolume(d.volumeStep)
	case SwipeDown:
		return d.player.AdjustVolume(-d.volumeStep)
	case Tap:
		return d.player.TogglePlay()
	case DoubleTap:
		return d.player.ToggleMute()
	case Play:
		return d.player.Play()
	case Pause:
		return d.player.Pause()
	default:
		return errors.Wrapf(ErrUnknownToken, "%q", string(tok))
	}
}

// Handle dispatches tok and logs failures. It is meant for fire-and-forget inputs.
func (d *Dispatcher) Handle(tok Token) {
	if err := d.Dispatch(tok); err != nil {
		zlog.Warn().Msgf("command: %s failed: %v", tok, err)
	}
}
