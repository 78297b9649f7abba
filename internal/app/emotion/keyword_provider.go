package emotion

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/osa030/moodbox/internal/domain/track"
)

// KeywordProviderConfig holds keyword provider settings.
type KeywordProviderConfig struct {
	// Extra maps an emotion name to additional keywords.
	Extra     map[string][]string `mapstructure:"extra"`
	Fallback  string              `mapstructure:"fallback" default:"calm" validate:"omitempty,oneof=happy sad energetic calm romantic none"`
	Intensity float64             `mapstructure:"intensity" default:"0.5" validate:"gte=0,lte=1"`
}

// KeywordProvider classifies tracks by words in their name, artist and album.
// It needs no network access and is normally the last provider of a chain.
type KeywordProvider struct {
	lexicon map[string]Emotion
	config  KeywordProviderConfig
}

// NewKeywordProvider creates a KeywordProvider. settings may be nil.
func NewKeywordProvider(settings map[string]any) (*KeywordProvider, error) {
	var config KeywordProviderConfig
	if err := mapstructure.WeakDecode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}

	lex := make(map[string]Emotion, len(lexicon))
	for w, e := range lexicon {
		lex[w] = e
	}
	for name, words := range config.Extra {
		e := Emotion(strings.ToLower(name))
		if !e.Valid() {
			return nil, errors.Newf("unknown emotion in extra keywords: %s", name)
		}
		for _, w := range words {
			lex[strings.ToLower(w)] = e
		}
	}

	return &KeywordProvider{lexicon: lex, config: config}, nil
}

// Classify implements Provider.
func (p *KeywordProvider) Classify(ctx context.Context, t *track.Track) (Classification, error) {
	if t == nil {
		return Classification{}, ErrNoMatch
	}

	scores := make(map[Emotion]float64)
	score(scores, p.lexicon, t.Name, 2)
	score(scores, p.lexicon, t.Album, 1)
	score(scores, p.lexicon, t.Artist, 1)

	if e, share, ok := best(scores); ok {
		return Classification{Emotion: e, Intensity: clamp01(0.4 + share*0.5)}, nil
	}

	if p.config.Fallback == "none" {
		return Classification{}, ErrNoMatch
	}
	return Classification{Emotion: Parse(p.config.Fallback), Intensity: p.config.Intensity}, nil
}

// Name implements Provider.
func (p *KeywordProvider) Name() string {
	return "keyword"
}
