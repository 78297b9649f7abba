package emotion

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/moodbox/internal/domain/track"
	"github.com/osa030/moodbox/internal/infra/lastfm"
)

// LastFmClient defines the interface for Last.fm operations.
type LastFmClient interface {
	GetTopTags(ctx context.Context, trackName, artistName string, limit int) ([]lastfm.Tag, error)
	GetArtistTopTags(ctx context.Context, artistName string, limit int) ([]lastfm.Tag, error)
}

type LastFmProviderConfig struct {
	APIKey   string `mapstructure:"api_key" validate:"required"`
	TagCount int    `mapstructure:"tag_count" default:"10" validate:"gte=1,lte=50"`
	MinCount int    `mapstructure:"min_count" default:"1" validate:"gte=0,lte=100"`
}

// LastFmProvider classifies tracks from their Last.fm community tags.
// Track tags are preferred; artist tags are used when the track has none.
type LastFmProvider struct {
	lastfm LastFmClient
	config *LastFmProviderConfig
}

// NewLastFmProvider creates a new LastFmProvider.
func NewLastFmProvider(settings map[string]any) (*LastFmProvider, error) {
	if len(settings) == 0 {
		return nil, errors.New("settings are required")
	}

	var config LastFmProviderConfig
	if err := mapstructure.WeakDecode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}

	client, err := lastfm.New(lastfm.Config{APIKey: config.APIKey})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create last.fm client")
	}

	return newLastFmProvider(client, &config), nil
}

func newLastFmProvider(client LastFmClient, config *LastFmProviderConfig) *LastFmProvider {
	return &LastFmProvider{lastfm: client, config: config}
}

// Classify implements Provider.
func (p *LastFmProvider) Classify(ctx context.Context, t *track.Track) (Classification, error) {
	if t == nil || t.Artist == "" {
		// Last.fm lookups are keyed by artist.
		return Classification{}, ErrNoMatch
	}

	tags, err := p.lastfm.GetTopTags(ctx, t.Name, t.Artist, p.config.TagCount)
	if err != nil {
		zlog.Debug().Msgf("lastfm: track tags failed, trying artist: track=%s artist=%s error=%v", t.Name, t.Artist, err)
	}
	if len(tags) == 0 {
		tags, err = p.lastfm.GetArtistTopTags(ctx, t.Artist, p.config.TagCount)
		if err != nil {
			return Classification{}, errors.Wrap(err, "failed to get artist tags")
		}
	}

	scores := make(map[Emotion]float64)
	var total float64
	for _, tag := range tags {
		if tag.Count < p.config.MinCount {
			continue
		}
		weight := float64(tag.Count)
		if weight == 0 {
			weight = 1
		}
		total += weight
		score(scores, lexicon, tag.Name, weight)
	}

	e, share, ok := best(scores)
	if !ok {
		return Classification{}, ErrNoMatch
	}

	// Intensity grows with how much of the tag weight agrees.
	intensity := share
	if total > 0 {
		intensity = clamp01(0.3 + 0.7*scores[e]/total)
	}

	zlog.Debug().Msgf("lastfm: classified: track=%s emotion=%s intensity=%.2f tags=%d", t.Name, e, intensity, len(tags))
	return Classification{Emotion: e, Intensity: intensity}, nil
}

// Name implements Provider.
func (p *LastFmProvider) Name() string {
	return "lastfm"
}
