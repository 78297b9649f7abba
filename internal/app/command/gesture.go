package command

import (
	"math"
	"sync"
	"time"
)

// Gesture thresholds.
const (
	MinSwipeDistance = 50.0
	MaxSwipeTime     = 500 * time.Millisecond
	MaxTapDistance   = 10.0
	MaxTapTime       = 200 * time.Millisecond
	DoubleTapWindow  = 300 * time.Millisecond
)

// Touch is a single touch point. Y grows downwards.
type Touch struct {
	X  float64   `json:"x"`
	Y  float64   `json:"y"`
	At time.Time `json:"at"`
}

// Classify returns the token for a single touch from start to end.
// Horizontal swipes win over vertical ones when |dx| > |dy|.
func Classify(start, end Touch) (Token, bool) {
	dx := end.X - start.X
	dy := end.Y - start.Y
	dt := end.At.Sub(start.At)

	if dt < 0 || dt >= MaxSwipeTime {
		return "", false
	}

	switch {
	case math.Abs(dx) > math.Abs(dy) && math.Abs(dx) > MinSwipeDistance:
		if dx > 0 {
			return SwipeRight, true
		}
		return SwipeLeft, true
	case math.Abs(dy) > MinSwipeDistance:
		if dy > 0 {
			return SwipeDown, true
		}
		return SwipeUp, true
	case math.Abs(dx) < MaxTapDistance && math.Abs(dy) < MaxTapDistance && dt < MaxTapTime:
		return Tap, true
	}
	return "", false
}

// GestureDetector emits at most one token per gesture.
// A tap is held back for DoubleTapWindow so that a second tap can turn it
// into a doubleTap instead of two taps.
type GestureDetector struct {
	mu      sync.Mutex
	emit    func(Token)
	window  time.Duration
	pending *time.Timer
	seq     uint64
	tapAt   time.Time
	closed  bool
}

// NewGestureDetector creates a detector calling emit for every token.
func NewGestureDetector(emit func(Token)) *GestureDetector {
	return &GestureDetector{emit: emit, window: DoubleTapWindow}
}

// Touch processes one completed touch.
func (g *GestureDetector) Touch(start, end Touch) {
	tok, ok := Classify(start, end)
	if !ok {
		return
	}

	var out []Token

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	switch {
	case tok != Tap:
		if g.stopPendingLocked() {
			out = append(out, Tap)
		}
		out = append(out, tok)
	case g.pending != nil && end.At.Sub(g.tapAt) <= g.window:
		g.stopPendingLocked()
		out = append(out, DoubleTap)
	default:
		if g.stopPendingLocked() {
			out = append(out, Tap)
		}
		g.tapAt = end.At
		g.seq++
		seq := g.seq
		g.pending = time.AfterFunc(g.window, func() { g.flush(seq) })
	}
	g.mu.Unlock()

	for _, t := range out {
		g.emit(t)
	}
}

// Close drops any pending tap.
func (g *GestureDetector) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	g.stopPendingLocked()
}

func (g *GestureDetector) flush(seq uint64) {
	g.mu.Lock()
	if g.pending == nil || g.seq != seq || g.closed {
		g.mu.Unlock()
		return
	}
	g.pending = nil
	g.mu.Unlock()

	g.emit(Tap)
}

// stopPendingLocked cancels the pending tap and reports whether there was one.
// Must be called with lock held.
func (g *GestureDetector) stopPendingLocked() bool {
	if g.pending == nil {
		return false
	}
	g.pending.Stop()
	g.pending = nil
	return true
}
