package command

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// Capability is an optional input source producing command tokens.
type Capability interface {
	// Name returns the capability name (used in config).
	Name() string
	// Run feeds tokens to handle until ctx is done or the input ends.
	Run(ctx context.Context, handle func(Token)) error
}

// Noop is the capability used when no input device is configured.
type Noop struct{}

func (Noop) Name() string { return "none" }

// Run returns immediately.
func (Noop) Run(ctx context.Context, handle func(Token)) error { return nil }

// LineVoice treats every line of its reader as one recognized utterance.
// It stands in for a speech recognizer on a terminal.
type LineVoice struct {
	r          io.Reader
	recognizer *Recognizer
}

// NewLineVoice creates a LineVoice reading from r.
func NewLineVoice(r io.Reader, recognizer *Recognizer) *LineVoice {
	if recognizer == nil {
		recognizer = NewRecognizer(nil)
	}
	return &LineVoice{r: r, recognizer: recognizer}
}

func (v *LineVoice) Name() string { return "voice" }

// Run implements Capability.
func (v *LineVoice) Run(ctx context.Context, handle func(Token)) error {
	return scanLines(ctx, v.r, func(line string) {
		tok, ok := v.recognizer.Recognize(line)
		if !ok {
			zlog.Debug().Msgf("command: utterance not recognized: %q", line)
			return
		}
		handle(tok)
	})
}

// GestureInput reads touches as JSON lines of the form
// {"start":{"x":0,"y":0,"at":"..."},"end":{...}} and classifies them.
type GestureInput struct {
	r io.Reader
}

// NewGestureInput creates a GestureInput reading from r.
func NewGestureInput(r io.Reader) *GestureInput {
	return &GestureInput{r: r}
}

func (g *GestureInput) Name() string { return "gesture" }

type touchLine struct {
	Start Touch `json:"start"`
	End   Touch `json:"end"`
}

// Run implements Capability.
func (g *GestureInput) Run(ctx context.Context, handle func(Token)) error {
	detector := NewGestureDetector(handle)
	defer detector.Close()

	return scanLines(ctx, g.r, func(line string) {
		var tl touchLine
		if err := json.Unmarshal([]byte(line), &tl); err != nil {
			zlog.Warn().Msgf("command: invalid touch line: %v", err)
			return
		}
		detector.Touch(tl.Start, tl.End)
	})
}

// scanLines calls fn for every non-empty line of r.
// The reader is drained on a separate goroutine so ctx can interrupt a blocked read.
func scanLines(ctx context.Context, r io.Reader, fn func(string)) error {
	lines := make(chan string)
	errc := make(chan error, 1)

	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-errc:
					return errors.Wrap(err, "input read failed")
				default:
					return nil
				}
			}
			if line = strings.TrimSpace(line); line != "" {
				fn(line)
			}
		}
	}
}
