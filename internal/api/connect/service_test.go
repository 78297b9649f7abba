package connect

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/osa030/moodbox/internal/app/media"
	"github.com/osa030/moodbox/internal/app/session"
	"github.com/osa030/moodbox/internal/infra/config"
)

const testConfig = `
control:
  token: secret
visual:
  frame_interval_ms: 20
filters:
  format_filter:
    enabled: true
  url_scheme_filter:
    enabled: true
`

var mp3Bytes = bytes.Repeat([]byte{0xff, 0xfb, 0x90, 0x00}, 2000)

type testEnv struct {
	session *session.Manager
	server  *httptest.Server
	audio   *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg, err := config.Parse([]byte(testConfig))
	require.NoError(t, err)

	sim := media.NewSimulator(media.SimulatorConfig{
		TickInterval:   10 * time.Millisecond,
		BytesPerSecond: 1000,
	})
	m, err := session.NewManager(cfg, sim, nil, nil)
	require.NoError(t, err)
	require.NoError(t, m.Start(context.Background()))

	mux := http.NewServeMux()
	mux.Handle(NewPlayerService(m, cfg).Handler(connect.WithInterceptors(NewControlAuthInterceptor(cfg))))
	mux.Handle(NewViewerService(m).Handler())
	server := httptest.NewServer(mux)

	audio := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		http.ServeContent(w, r, "a.mp3", time.Time{}, bytes.NewReader(mp3Bytes))
	}))

	t.Cleanup(func() {
		server.Close()
		audio.Close()
		m.Close()
		_ = sim.Close()
	})
	return &testEnv{session: m, server: server, audio: audio}
}

func (e *testEnv) client(token string) *Client {
	return NewClient(e.server.Client(), e.server.URL, token)
}

func TestPlayerService_RequiresToken(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name  string
		token string
	}{
		{name: "missing", token: ""},
		{name: "wrong", token: "nope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.client(tt.token).Call(context.Background(), PlayerServicePlayProcedure, nil)
			require.Error(t, err)
			assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
		})
	}
}

func TestPlayerService_AddTrackURL(t *testing.T) {
	env := newTestEnv(t)
	client := env.client("secret")
	ctx := context.Background()

	resp, err := client.Call(ctx, PlayerServiceAddTrackURLProcedure, map[string]any{
		"url": env.audio.URL + "/music/Night%20Drive.mp3",
	})
	require.NoError(t, err)

	success, code, message := Result(resp)
	assert.True(t, success)
	assert.Equal(t, CodeSuccess, code)
	assert.Equal(t, "OK", message)
	tr := resp.GetFields()["track"].GetStructValue()
	assert.Equal(t, "Night Drive", tr.GetFields()["name"].GetStringValue())
	assert.Equal(t, "REMOTE_URL", tr.GetFields()["kind"].GetStringValue())

	assert.Len(t, env.session.Player().Snapshot().Tracks, 1)
}

func TestPlayerService_Rejections(t *testing.T) {
	env := newTestEnv(t)
	client := env.client("secret")
	ctx := context.Background()

	tests := []struct {
		name      string
		procedure string
		fields    map[string]any
		code      string
		message   string
	}{
		{
			name:      "invalid url",
			procedure: PlayerServiceAddTrackURLProcedure,
			fields:    map[string]any{"url": "ftp://example.com/a.mp3"},
			code:      "invalid_url",
			message:   "Please enter a valid audio URL",
		},
		{
			name:      "unsupported file",
			procedure: PlayerServiceAddTrackFileProcedure,
			fields:    map[string]any{"file_name": "notes.txt", "data": base64.StdEncoding.EncodeToString([]byte("hello"))},
			code:      "unsupported_format",
			message:   "This audio format is not supported",
		},
		{
			name:      "seek without track",
			procedure: PlayerServiceSeekProcedure,
			fields:    map[string]any{"position": 10},
			code:      CodeNoTrack,
			message:   "The playlist is empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := client.Call(ctx, tt.procedure, tt.fields)
			require.NoError(t, err)

			success, code, message := Result(resp)
			assert.False(t, success)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.message, message)
		})
	}
}

func TestPlayerService_InvalidArguments(t *testing.T) {
	env := newTestEnv(t)
	client := env.client("secret")

	tests := []struct {
		name      string
		procedure string
		fields    map[string]any
	}{
		{name: "missing volume", procedure: PlayerServiceSetVolumeProcedure},
		{name: "volume not a number", procedure: PlayerServiceSetVolumeProcedure, fields: map[string]any{"volume": "loud"}},
		{name: "fractional index", procedure: PlayerServiceSelectTrackProcedure, fields: map[string]any{"index": 0.5}},
		{name: "index out of range", procedure: PlayerServiceRemoveTrackProcedure, fields: map[string]any{"index": 3}},
		{name: "unknown command", procedure: PlayerServiceSendCommandProcedure, fields: map[string]any{"command": "rewind"}},
		{name: "bad base64", procedure: PlayerServiceAddTrackFileProcedure, fields: map[string]any{"file_name": "a.mp3", "data": "!!!"}},
		{name: "missing gesture end", procedure: PlayerServiceSendGestureProcedure, fields: map[string]any{
			"start": map[string]any{"x": 0, "y": 0, "at_ms": 0},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Call(context.Background(), tt.procedure, tt.fields)
			require.Error(t, err)
			assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
		})
	}
}

func TestPlayerService_Transport(t *testing.T) {
	env := newTestEnv(t)
	client := env.client("secret")
	ctx := context.Background()

	resp, err := client.Call(ctx, PlayerServiceAddTrackFileProcedure, map[string]any{
		"file_name": "Morning.mp3",
		"data":      base64.StdEncoding.EncodeToString(mp3Bytes),
	})
	require.NoError(t, err)
	success, _, _ := Result(resp)
	require.True(t, success)

	resp, err = client.Call(ctx, PlayerServiceTogglePlayProcedure, nil)
	require.NoError(t, err)
	st := resp.GetFields()["state"].GetStructValue().GetFields()
	assert.True(t, st["playing"].GetBoolValue())
	assert.Equal(t, "Morning", st["current_track"].GetStructValue().GetFields()["name"].GetStringValue())

	resp, err = client.Call(ctx, PlayerServiceSetVolumeProcedure, map[string]any{"volume": 0.25})
	require.NoError(t, err)
	st = resp.GetFields()["state"].GetStructValue().GetFields()
	assert.InDelta(t, 0.25, st["volume"].GetNumberValue(), 1e-9)

	resp, err = client.Call(ctx, PlayerServiceToggleMuteProcedure, nil)
	require.NoError(t, err)
	st = resp.GetFields()["state"].GetStructValue().GetFields()
	assert.True(t, st["muted"].GetBoolValue())
	assert.Zero(t, st["effective_volume"].GetNumberValue())

	resp, err = client.Call(ctx, PlayerServiceSendCommandProcedure, map[string]any{"command": "pause"})
	require.NoError(t, err)
	st = resp.GetFields()["state"].GetStructValue().GetFields()
	assert.False(t, st["playing"].GetBoolValue())
}

func TestPlayerService_SendGesture(t *testing.T) {
	env := newTestEnv(t)
	client := env.client("secret")

	resp, err := client.Call(context.Background(), PlayerServiceSendGestureProcedure, map[string]any{
		"start": map[string]any{"x": 200, "y": 100, "at_ms": 1000},
		"end":   map[string]any{"x": 50, "y": 110, "at_ms": 1200},
	})
	require.NoError(t, err)
	assert.Equal(t, "swipeLeft", resp.GetFields()["gesture"].GetStringValue())
}

func TestViewerService_GetState(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.client("").Call(context.Background(), ViewerServiceGetStateProcedure, nil)
	require.NoError(t, err)

	f := resp.GetFields()
	assert.Equal(t, "active", f["phase"].GetStringValue())
	assert.NotEmpty(t, f["session_id"].GetStringValue())

	pb := f["playback"].GetStructValue().GetFields()
	assert.Equal(t, "empty", pb["state"].GetStringValue())
	assert.Equal(t, float64(-1), pb["current_index"].GetNumberValue())
	assert.False(t, pb["duration_known"].GetBoolValue())
	_, isNull := pb["duration"].GetKind().(*structpb.Value_NullValue)
	assert.True(t, isNull)

	assert.Equal(t, "calm", f["mood"].GetStructValue().GetFields()["emotion"].GetStringValue())
}

func TestViewerService_Watch(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan *structpb.Struct, 64)
	done := make(chan error, 1)
	go func() {
		done <- env.client("").Watch(ctx, []string{"state"}, func(msg *structpb.Struct) error {
			received <- msg
			return nil
		})
	}()

	select {
	case msg := <-received:
		assert.Equal(t, KindInitial, msg.GetFields()["kind"].GetStringValue())
		assert.NotNil(t, msg.GetFields()["payload"].GetStructValue())
	case <-time.After(2 * time.Second):
		t.Fatal("no initial message")
	}

	require.Eventually(t, func() bool {
		return env.session.GetNotificationManager().SubscriberCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	_, err := env.session.AddURL(context.Background(), env.audio.URL+"/a.mp3", "")
	require.NoError(t, err)

	select {
	case msg := <-received:
		f := msg.GetFields()
		assert.Equal(t, "state", f["kind"].GetStringValue())
		assert.Equal(t, "track_added", f["event"].GetStringValue())
		assert.Positive(t, f["sequence_no"].GetNumberValue())
	case <-time.After(2 * time.Second):
		t.Fatal("no state notification")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestViewerService_WatchRejectsUnknownKind(t *testing.T) {
	env := newTestEnv(t)

	err := env.client("").Watch(context.Background(), []string{"gossip"}, func(*structpb.Struct) error {
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}
