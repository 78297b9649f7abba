package emotion

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/osa030/moodbox/internal/domain/track"
)

// ErrNoMatch is returned by a provider that has no opinion about a track.
var ErrNoMatch = errors.New("no emotion match")

// Provider is the interface for emotion classifiers.
// Implementations may call remote APIs, so Classify must honor ctx.
type Provider interface {
	// Classify returns the classification of t, or ErrNoMatch.
	Classify(ctx context.Context, t *track.Track) (Classification, error)

	// Name returns the provider name (used in config).
	Name() string
}
