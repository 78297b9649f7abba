// Package spotify provides a client for the Spotify Web API audio features.
package spotify

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"
)

// ErrNotFound is returned when no track matches a query.
var ErrNotFound = errors.New("no matching spotify track")

// Client is a Spotify API client.
type Client struct {
	client     *spotify.Client
	market     string
	maxRetries int
	retryDelay time.Duration
}

// Config represents Spotify client configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	Market       string
}

// AudioFeatures holds the audio features of a matched track.
type AudioFeatures struct {
	TrackID      string
	Name         string
	Artist       string
	Valence      float64 // 0 (sad) - 1 (happy)
	Energy       float64 // 0 (calm) - 1 (energetic)
	Danceability float64
	Tempo        float64 // BPM
}

// New creates a new Spotify client using the client credentials flow.
// No user authorization is needed for search and audio features.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("spotify credentials are required")
	}

	creds := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}

	return newClient(creds.Client(ctx), cfg.Market), nil
}

func newClient(httpClient *http.Client, market string, opts ...spotify.ClientOption) *Client {
	return &Client{
		client:     spotify.New(httpClient, opts...),
		market:     market,
		maxRetries: 3,
		retryDelay: time.Second,
	}
}

// FindAudioFeatures looks up the audio features of the best match for query.
// A Spotify track URL or URI skips the search.
func (c *Client) FindAudioFeatures(ctx context.Context, query string) (*AudioFeatures, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("search query is required")
	}

	result := &AudioFeatures{}
	if id, ok := extractTrackID(query); ok {
		result.TrackID = id
	} else {
		t, err := c.searchTrack(ctx, query)
		if err != nil {
			return nil, err
		}
		result.TrackID = string(t.ID)
		result.Name = t.Name
		if len(t.Artists) > 0 {
			result.Artist = t.Artists[0].Name
		}
	}

	var features []*spotify.AudioFeatures
	err := c.retry(func() error {
		f, err := c.client.GetAudioFeatures(ctx, spotify.ID(result.TrackID))
		if err != nil {
			return err
		}
		features = f
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get audio features")
	}
	if len(features) == 0 || features[0] == nil {
		return nil, errors.Wrapf(ErrNotFound, "no audio features for %s", result.TrackID)
	}

	f := features[0]
	result.Valence = float64(f.Valence)
	result.Energy = float64(f.Energy)
	result.Danceability = float64(f.Danceability)
	result.Tempo = float64(f.Tempo)
	return result, nil
}

func (c *Client) searchTrack(ctx context.Context, query string) (*spotify.FullTrack, error) {
	opts := []spotify.RequestOption{spotify.Limit(1)}
	if c.market != "" {
		opts = append(opts, spotify.Market(c.market))
	}

	var result *spotify.SearchResult
	err := c.retry(func() error {
		r, err := c.client.Search(ctx, query, spotify.SearchTypeTrack, opts...)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to search")
	}

	if result.Tracks == nil || len(result.Tracks.Tracks) == 0 {
		return nil, errors.Wrapf(ErrNotFound, "query %q", query)
	}
	return &result.Tracks.Tracks[0], nil
}

// retry retries an operation with linear backoff.
func (c *Client) retry(fn func() error) error {
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}

		if i < c.maxRetries-1 {
			time.Sleep(c.retryDelay * time.Duration(i+1))
		}
	}
	return errors.Wrap(lastErr, "max retries exceeded")
}

// isRetryable checks if an error is retryable.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	var apiErr spotify.Error
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusTooManyRequests || apiErr.Status >= http.StatusInternalServerError
	}

	// Rate limit errors and server errors are retryable
	errStr := err.Error()
	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504")
}

// extractTrackID extracts the track ID from a Spotify track URL or URI.
func extractTrackID(input string) (string, bool) {
	input = strings.TrimSpace(input)
	// Handle Spotify URI format: spotify:track:TRACK_ID
	if strings.HasPrefix(input, "spotify:track:") {
		return strings.TrimPrefix(input, "spotify:track:"), true
	}

	// Handle URL format: https://open.spotify.com/track/TRACK_ID or https://open.spotify.com/intl-XX/track/TRACK_ID
	if strings.Contains(input, "open.spotify.com") && strings.Contains(input, "/track/") {
		parts := strings.Split(input, "/track/")
		id := strings.Split(parts[len(parts)-1], "?")[0]
		id = strings.TrimRight(id, "/")
		return id, id != ""
	}

	return "", false
}
