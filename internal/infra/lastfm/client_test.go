package lastfm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestGetTopTags(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "track.getTopTags", r.URL.Query().Get("method"))
		assert.Equal(t, "test_artist", r.URL.Query().Get("artist"))
		assert.Equal(t, "test_track", r.URL.Query().Get("track"))
		assert.Equal(t, "test_key", r.URL.Query().Get("api_key"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))

		response := `{
			"toptags": {
				"tag": [
					{"name": "Chillout", "count": 100, "url": "http://last.fm/tag/chillout"},
					{"name": "ambient", "count": 80, "url": "http://last.fm/tag/ambient"},
					{"name": "sad", "count": 20, "url": "http://last.fm/tag/sad"}
				]
			}
		}`
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, response)
	}))
	defer server.Close()

	client, err := New(Config{APIKey: "test_key"})
	require.NoError(t, err)
	client.baseURL = server.URL + "/"

	ctx := context.Background()
	tags, err := client.GetTopTags(ctx, "test_track", "test_artist", 2)
	require.NoError(t, err)
	assert.Equal(t, []Tag{{Name: "chillout", Count: 100}, {Name: "ambient", Count: 80}}, tags)

	// Cached result is served with a different limit.
	all, err := client.GetTopTags(ctx, "test_track", "TEST_ARTIST", 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetArtistTopTags(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "artist.getTopTags", r.URL.Query().Get("method"))
		assert.Equal(t, "Someone", r.URL.Query().Get("artist"))
		fmt.Fprint(w, `{"toptags": {"tag": [{"name": "dance", "count": 90}]}}`)
	}))
	defer server.Close()

	client, err := New(Config{APIKey: "k"})
	require.NoError(t, err)
	client.baseURL = server.URL + "/"

	tags, err := client.GetArtistTopTags(context.Background(), "Someone", 5)
	require.NoError(t, err)
	assert.Equal(t, []Tag{{Name: "dance", Count: 90}}, tags)
}

func TestGetTopTags_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error": 6, "message": "Track not found"}`)
	}))
	defer server.Close()

	client, err := New(Config{APIKey: "k"})
	require.NoError(t, err)
	client.baseURL = server.URL + "/"

	_, err = client.GetTopTags(context.Background(), "t", "a", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Track not found")
}

func TestGetTopTags_RequiresNames(t *testing.T) {
	client, err := New(Config{APIKey: "k"})
	require.NoError(t, err)

	_, err = client.GetTopTags(context.Background(), "", "artist", 5)
	assert.Error(t, err)
	_, err = client.GetArtistTopTags(context.Background(), "", 5)
	assert.Error(t, err)
}
