package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zmb3/spotify/v2"
)

func TestExtractTrackID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		ok       bool
	}{
		{name: "Spotify URI format", input: "spotify:track:4uLU6hMCjMI75M1A2tKUQC", expected: "4uLU6hMCjMI75M1A2tKUQC", ok: true},
		{name: "Spotify URL format", input: "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC", expected: "4uLU6hMCjMI75M1A2tKUQC", ok: true},
		{name: "Spotify URL with query params", input: "https://open.spotify.com/track/abc123?si=xyz", expected: "abc123", ok: true},
		{name: "Localized URL", input: "https://open.spotify.com/intl-ja/track/abc123/", expected: "abc123", ok: true},
		{name: "Plain text query", input: "Night Drive", expected: "", ok: false},
		{name: "Playlist URL", input: "https://open.spotify.com/playlist/abc", expected: "", ok: false},
		{name: "Empty string", input: "", expected: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := extractTrackID(tt.input)
			assert.Equal(t, tt.expected, id)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil error", err: nil, expected: false},
		{name: "rate limit error with 429", err: errors.New("Error 429: rate limit exceeded"), expected: true},
		{name: "server error 503", err: errors.New("503 Service Unavailable"), expected: true},
		{name: "client error 400", err: errors.New("400 Bad Request"), expected: false},
		{name: "generic error", err: errors.New("something went wrong"), expected: false},
		{name: "api error too many requests", err: spotify.Error{Message: "slow down", Status: http.StatusTooManyRequests}, expected: true},
		{name: "api error server", err: spotify.Error{Message: "oops", Status: http.StatusBadGateway}, expected: true},
		{name: "api error not found", err: spotify.Error{Message: "missing", Status: http.StatusNotFound}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isRetryable(tt.err))
		})
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	c := newClient(server.Client(), "JP", spotify.WithBaseURL(server.URL+"/"))
	c.retryDelay = 0
	return c
}

func TestFindAudioFeatures_Search(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/search":
			assert.Equal(t, "Night Drive", r.URL.Query().Get("q"))
			assert.Equal(t, "track", r.URL.Query().Get("type"))
			fmt.Fprint(w, `{"tracks": {"items": [{"id": "trk1", "name": "Night Drive", "artists": [{"name": "Someone"}]}]}}`)
		case "/audio-features":
			assert.Equal(t, "trk1", r.URL.Query().Get("ids"))
			fmt.Fprint(w, `{"audio_features": [{"id": "trk1", "valence": 0.25, "energy": 0.75, "danceability": 0.5, "tempo": 128}]}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	f, err := c.FindAudioFeatures(context.Background(), "Night Drive")
	require.NoError(t, err)

	assert.Equal(t, "trk1", f.TrackID)
	assert.Equal(t, "Someone", f.Artist)
	assert.InDelta(t, 0.25, f.Valence, 1e-6)
	assert.InDelta(t, 0.75, f.Energy, 1e-6)
	assert.InDelta(t, 128, f.Tempo, 1e-6)
}

func TestFindAudioFeatures_TrackURI(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/search" {
			t.Error("search should not be called for a track uri")
		}
		fmt.Fprint(w, `{"audio_features": [{"id": "xyz", "valence": 0.9, "energy": 0.9, "tempo": 140}]}`)
	})

	f, err := c.FindAudioFeatures(context.Background(), "spotify:track:xyz")
	require.NoError(t, err)
	assert.Equal(t, "xyz", f.TrackID)
	assert.InDelta(t, 0.9, f.Valence, 1e-6)
}

func TestFindAudioFeatures_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"tracks": {"items": []}}`)
	})

	_, err := c.FindAudioFeatures(context.Background(), "nothing matches")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.FindAudioFeatures(context.Background(), "  ")
	assert.Error(t, err)
}

func TestNew_RequiresCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{ClientID: "id"})
	assert.Error(t, err)

	c, err := New(context.Background(), Config{ClientID: "id", ClientSecret: "secret"})
	require.NoError(t, err)
	assert.NotNil(t, c)
}
