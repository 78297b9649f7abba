package emotion

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/osa030/moodbox/internal/domain/track"
	"github.com/osa030/moodbox/internal/infra/spotify"
)

// SpotifyClient defines the interface for Spotify operations needed by the provider.
type SpotifyClient interface {
	FindAudioFeatures(ctx context.Context, query string) (*spotify.AudioFeatures, error)
}

// SpotifyProviderConfig holds the thresholds mapping audio features to emotions.
type SpotifyProviderConfig struct {
	EnergeticEnergy float64 `mapstructure:"energetic_energy" default:"0.7" validate:"gt=0,lte=1"`
	HappyValence    float64 `mapstructure:"happy_valence" default:"0.6" validate:"gt=0,lte=1"`
	SadValence      float64 `mapstructure:"sad_valence" default:"0.35" validate:"gt=0,lte=1"`
	CalmEnergy      float64 `mapstructure:"calm_energy" default:"0.4" validate:"gt=0,lte=1"`
}

// SpotifyProvider classifies tracks from Spotify valence, energy and tempo.
type SpotifyProvider struct {
	spotify SpotifyClient
	config  *SpotifyProviderConfig
}

// NewSpotifyProvider creates a new SpotifyProvider.
func NewSpotifyProvider(client SpotifyClient, settings map[string]any) (*SpotifyProvider, error) {
	if client == nil {
		return nil, errors.New("spotify client is required")
	}

	var config SpotifyProviderConfig
	if err := mapstructure.WeakDecode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}
	if config.SadValence >= config.HappyValence {
		return nil, errors.New("sad_valence must be below happy_valence")
	}

	return &SpotifyProvider{spotify: client, config: &config}, nil
}

// Classify implements Provider.
func (p *SpotifyProvider) Classify(ctx context.Context, t *track.Track) (Classification, error) {
	if t == nil || t.Name == "" || t.Name == track.UnknownName {
		return Classification{}, ErrNoMatch
	}

	query := t.Name
	if t.Artist != "" {
		query = strings.Join([]string{t.Name, t.Artist}, " ")
	}

	f, err := p.spotify.FindAudioFeatures(ctx, query)
	if err != nil {
		if errors.Is(err, spotify.ErrNotFound) {
			return Classification{}, ErrNoMatch
		}
		return Classification{}, errors.Wrap(err, "failed to get audio features")
	}

	return p.classify(f), nil
}

func (p *SpotifyProvider) classify(f *spotify.AudioFeatures) Classification {
	c := Classification{BPM: f.Tempo}

	switch {
	case f.Energy >= p.config.EnergeticEnergy:
		c.Emotion = Energetic
		c.Intensity = f.Energy
	case f.Valence >= p.config.HappyValence:
		c.Emotion = Happy
		c.Intensity = f.Valence
	case f.Valence <= p.config.SadValence:
		c.Emotion = Sad
		c.Intensity = 1 - f.Valence
	case f.Energy <= p.config.CalmEnergy:
		c.Emotion = Calm
		c.Intensity = 1 - f.Energy
	default:
		c.Emotion = Romantic
		c.Intensity = (f.Valence + f.Danceability) / 2
	}

	c.Intensity = clamp01(c.Intensity)
	return c
}

// Name implements Provider.
func (p *SpotifyProvider) Name() string {
	return "spotify"
}
