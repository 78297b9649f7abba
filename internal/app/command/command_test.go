package command

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseToken(t *testing.T) {
	tests := []struct {
		input    string
		expected Token
		wantErr  bool
	}{
		{input: "swipeLeft", expected: SwipeLeft},
		{input: "swipe_left", expected: SwipeLeft},
		{input: "SWIPE-UP", expected: SwipeUp},
		{input: "double tap", expected: DoubleTap},
		{input: " play ", expected: Play},
		{input: "previous", expected: Previous},
		{input: "pinch", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			tok, err := ParseToken(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownToken)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, tok)
		})
	}
}

type fakePlayer struct {
	calls []string
	delta float64
	err   error
}

func (f *fakePlayer) record(name string) error {
	f.calls = append(f.calls, name)
	return f.err
}

func (f *fakePlayer) TogglePlay() error { return f.record("toggle") }
func (f *fakePlayer) Play() error       { return f.record("play") }
func (f *fakePlayer) Pause() error      { return f.record("pause") }
func (f *fakePlayer) Next() error       { return f.record("next") }
func (f *fakePlayer) Previous() error   { return f.record("previous") }
func (f *fakePlayer) ToggleMute() error { return f.record("mute") }

func (f *fakePlayer) AdjustVolume(delta float64) error {
	f.delta += delta
	return f.record("volume")
}

func TestDispatcher(t *testing.T) {
	tests := []struct {
		token    Token
		expected string
		delta    float64
	}{
		{token: SwipeLeft, expected: "next"},
		{token: SwipeRight, expected: "previous"},
		{token: SwipeUp, expected: "volume", delta: 0.1},
		{token: SwipeDown, expected: "volume", delta: -0.1},
		{token: Tap, expected: "toggle"},
		{token: DoubleTap, expected: "mute"},
		{token: Play, expected: "play"},
		{token: Pause, expected: "pause"},
		{token: Next, expected: "next"},
		{token: Previous, expected: "previous"},
	}

	for _, tt := range tests {
		t.Run(tt.token.String(), func(t *testing.T) {
			p := &fakePlayer{}
			d := NewDispatcher(p, 0)

			require.NoError(t, d.Dispatch(tt.token))
			assert.Equal(t, []string{tt.expected}, p.calls)
			assert.InDelta(t, tt.delta, p.delta, 1e-9)
		})
	}
}

func TestDispatcher_Errors(t *testing.T) {
	p := &fakePlayer{err: errors.New("no track")}
	d := NewDispatcher(p, 0.25)

	assert.Error(t, d.Dispatch(Next))
	assert.ErrorIs(t, d.Dispatch("pinch"), ErrUnknownToken)

	// Handle swallows errors.
	d.Handle(Next)
	assert.Len(t, p.calls, 2)

	require.Error(t, d.Dispatch(SwipeUp))
	assert.InDelta(t, 0.25, p.delta, 1e-9)
}

func touch(x, y float64, ms int) Touch {
	return Touch{X: x, Y: y, At: time.Unix(0, 0).Add(time.Duration(ms) * time.Millisecond)}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		start    Touch
		end      Touch
		expected Token
		ok       bool
	}{
		{name: "swipe right", start: touch(0, 0, 0), end: touch(80, 10, 200), expected: SwipeRight, ok: true},
		{name: "swipe left", start: touch(100, 0, 0), end: touch(10, 20, 300), expected: SwipeLeft, ok: true},
		{name: "swipe down", start: touch(0, 0, 0), end: touch(5, 70, 100), expected: SwipeDown, ok: true},
		{name: "swipe up", start: touch(0, 100, 0), end: touch(20, 10, 100), expected: SwipeUp, ok: true},
		{name: "tap", start: touch(0, 0, 0), end: touch(3, 4, 100), expected: Tap, ok: true},
		{name: "slow tap", start: touch(0, 0, 0), end: touch(3, 4, 250), ok: false},
		{name: "too slow swipe", start: touch(0, 0, 0), end: touch(200, 0, 500), ok: false},
		{name: "short drag", start: touch(0, 0, 0), end: touch(30, 0, 100), ok: false},
		{name: "exactly threshold", start: touch(0, 0, 0), end: touch(50, 0, 100), ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok, ok := Classify(tt.start, tt.end)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, tok)
		})
	}
}

type tokenRecorder struct {
	mu     sync.Mutex
	tokens []Token
}

func (r *tokenRecorder) handle(tok Token) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens = append(r.tokens, tok)
}

func (r *tokenRecorder) get() []Token {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Token(nil), r.tokens...)
}

func TestGestureDetector_SingleTapDeferred(t *testing.T) {
	rec := &tokenRecorder{}
	g := NewGestureDetector(rec.handle)
	g.window = 20 * time.Millisecond
	defer g.Close()

	g.Touch(touch(0, 0, 0), touch(1, 1, 50))
	assert.Empty(t, rec.get(), "tap is held back")

	require.Eventually(t, func() bool { return len(rec.get()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, []Token{Tap}, rec.get())
}

func TestGestureDetector_DoubleTap(t *testing.T) {
	rec := &tokenRecorder{}
	g := NewGestureDetector(rec.handle)
	defer g.Close()

	g.Touch(touch(0, 0, 0), touch(1, 1, 50))
	g.Touch(touch(0, 0, 200), touch(1, 1, 250))

	assert.Equal(t, []Token{DoubleTap}, rec.get())

	// The first tap must not fire later.
	time.Sleep(DoubleTapWindow + 50*time.Millisecond)
	assert.Equal(t, []Token{DoubleTap}, rec.get())
}

func TestGestureDetector_SwipeFlushesPendingTap(t *testing.T) {
	rec := &tokenRecorder{}
	g := NewGestureDetector(rec.handle)
	defer g.Close()

	g.Touch(touch(0, 0, 0), touch(1, 1, 50))
	g.Touch(touch(0, 0, 100), touch(90, 0, 200))

	assert.Equal(t, []Token{Tap, SwipeRight}, rec.get())
}

func TestGestureDetector_TapsOutsideWindow(t *testing.T) {
	rec := &tokenRecorder{}
	g := NewGestureDetector(rec.handle)
	defer g.Close()

	g.Touch(touch(0, 0, 0), touch(1, 1, 50))
	g.Touch(touch(0, 0, 600), touch(1, 1, 650))

	// The second tap flushes the first and is itself pending.
	assert.Equal(t, []Token{Tap}, rec.get())
}

func TestRecognizer(t *testing.T) {
	r := NewRecognizer(map[string]Token{"banger": SwipeUp})

	tests := []struct {
		utterance string
		expected  Token
		ok        bool
	}{
		{utterance: "Play", expected: Play, ok: true},
		{utterance: "please skip this one", expected: Next, ok: true},
		{utterance: "go back", expected: Previous, ok: true},
		{utterance: "previous song please", expected: Previous, ok: true},
		{utterance: "pause and then play", expected: Pause, ok: true},
		{utterance: "volume   UP", expected: SwipeUp, ok: true},
		{utterance: "this is a banger", expected: SwipeUp, ok: true},
		{utterance: "请播放音乐", expected: Play, ok: true},
		{utterance: "暂停一下", expected: Pause, ok: true},
		{utterance: "下一首", expected: Next, ok: true},
		{utterance: "上一首歌", expected: Previous, ok: true},
		{utterance: "display settings", ok: false},
		{utterance: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.utterance, func(t *testing.T) {
			tok, ok := r.Recognize(tt.utterance)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, tok)
		})
	}
}

func TestLineVoice_Run(t *testing.T) {
	rec := &tokenRecorder{}
	v := NewLineVoice(strings.NewReader("play\n\nmumble\nnext song\n下一首\n"), nil)

	require.NoError(t, v.Run(context.Background(), rec.handle))
	assert.Equal(t, []Token{Play, Next, Next}, rec.get())
	assert.Equal(t, "voice", v.Name())
}

func TestGestureInput_Run(t *testing.T) {
	input := `{"start":{"x":0,"y":0,"at":"2024-01-01T00:00:00Z"},"end":{"x":-90,"y":0,"at":"2024-01-01T00:00:00.2Z"}}
not json
{"start":{"x":0,"y":0,"at":"2024-01-01T00:00:01Z"},"end":{"x":1,"y":1,"at":"2024-01-01T00:00:01.05Z"}}
{"start":{"x":0,"y":0,"at":"2024-01-01T00:00:01.1Z"},"end":{"x":1,"y":1,"at":"2024-01-01T00:00:01.15Z"}}
`
	rec := &tokenRecorder{}
	g := NewGestureInput(strings.NewReader(input))

	require.NoError(t, g.Run(context.Background(), rec.handle))
	assert.Equal(t, []Token{SwipeLeft, DoubleTap}, rec.get())
}

func TestNoop(t *testing.T) {
	var c Capability = Noop{}
	assert.Equal(t, "none", c.Name())
	assert.NoError(t, c.Run(context.Background(), func(Token) { t.Fatal("unexpected token") }))
}

func TestScanLines_ContextCancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- NewLineVoice(pr, nil).Run(ctx, func(Token) {})
	}()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
