package emotion

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/moodbox/internal/domain/track"
)

// ClassificationWithSource is a classification with its source provider info.
type ClassificationWithSource struct {
	Classification
	DisplayName string
}

// ProviderWithMetadata wraps a provider with its metadata.
type ProviderWithMetadata struct {
	Provider    Provider
	DisplayName string
}

// ProviderChain tries multiple providers in order until one classifies the track.
type ProviderChain struct {
	providers []ProviderWithMetadata
}

// NewProviderChain creates a new provider chain.
func NewProviderChain(providers []ProviderWithMetadata) *ProviderChain {
	return &ProviderChain{
		providers: providers,
	}
}

// Classify returns the first successful classification.
// Provider failures are logged and skipped.
func (c *ProviderChain) Classify(ctx context.Context, t *track.Track) (ClassificationWithSource, error) {
	for i, pm := range c.providers {
		if err := ctx.Err(); err != nil {
			return ClassificationWithSource{}, err
		}

		zlog.Debug().Msgf("trying emotion provider: index=%d total=%d name=%s provider_type=%s",
			i+1, len(c.providers), pm.DisplayName, pm.Provider.Name())

		result, err := pm.Provider.Classify(ctx, t)
		if err != nil {
			if errors.Is(err, ErrNoMatch) {
				zlog.Debug().Msgf("emotion provider had no match: provider=%s", pm.DisplayName)
			} else {
				zlog.Warn().Msgf("emotion provider failed, trying next: provider=%s error=%v", pm.DisplayName, err)
			}
			continue
		}

		zlog.Info().Msgf("emotion classified: provider=%s track=%s emotion=%s intensity=%.2f bpm=%.0f",
			pm.DisplayName, t.Name, result.Emotion, result.Intensity, result.BPM)
		return ClassificationWithSource{Classification: result, DisplayName: pm.DisplayName}, nil
	}

	return ClassificationWithSource{}, errors.Wrap(ErrNoMatch, "all providers failed to classify")
}

// Len returns the number of providers.
func (c *ProviderChain) Len() int {
	return len(c.providers)
}

// Name returns the chain name.
func (c *ProviderChain) Name() string {
	return "provider_chain"
}
