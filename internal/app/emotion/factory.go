package emotion

import (
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/moodbox/internal/infra/config"
)

// NewProviderChainFromConfig creates a provider chain from configuration.
// spotify may be nil when no spotify provider is configured.
// Without configured providers the chain holds a single keyword provider.
func NewProviderChainFromConfig(cfg *config.Config, spotify SpotifyClient) (*ProviderChain, error) {
	if len(cfg.Emotion.Providers) == 0 {
		kp, err := NewKeywordProvider(nil)
		if err != nil {
			return nil, err
		}
		return NewProviderChain([]ProviderWithMetadata{{Provider: kp, DisplayName: "Keywords"}}), nil
	}

	var providers []ProviderWithMetadata

	for i, pcfg := range cfg.Emotion.Providers {
		var provider Provider
		var err error
		zlog.Debug().Msgf("creating emotion provider: index=%d type=%s", i+1, pcfg.Type)
		switch pcfg.Type {
		case "spotify":
			if spotify == nil {
				return nil, errors.Newf("spotify provider requires a spotify client (provider index %d)", i)
			}
			provider, err = NewSpotifyProvider(spotify, pcfg.Settings)

		case "lastfm":
			provider, err = NewLastFmProvider(pcfg.Settings)

		case "keyword":
			provider, err = NewKeywordProvider(pcfg.Settings)

		default:
			return nil, errors.Newf("unsupported provider type: %s (provider index %d)", pcfg.Type, i)
		}

		if err != nil {
			return nil, errors.Wrapf(err, "failed to create provider (index %d, type %s)", i, pcfg.Type)
		}

		providers = append(providers, ProviderWithMetadata{
			Provider:    provider,
			DisplayName: pcfg.DisplayName,
		})

		zlog.Info().Msgf("registered emotion provider: index=%d type=%s display_name=%s", i+1, pcfg.Type, pcfg.DisplayName)
	}

	return NewProviderChain(providers), nil
}
