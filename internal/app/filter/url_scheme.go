package filter

import (
	"context"
	"slices"
	"strings"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/moodbox/internal/domain/track"
)

// URLSchemeConfig represents the configuration for URLSchemeFilter.
type URLSchemeConfig struct {
	Schemes []string `mapstructure:"schemes" default:"[\"http\",\"https\"]" validate:"min=1,dive,required"`
}

// URLSchemeFilter requires an absolute URL with an allowed scheme and a host.
type URLSchemeFilter struct {
	schemes []string
}

// NewURLSchemeFilter creates a URL scheme filter.
func NewURLSchemeFilter(schemes ...string) *URLSchemeFilter {
	return &URLSchemeFilter{schemes: schemes}
}

func (f *URLSchemeFilter) Name() string {
	return "url_scheme_filter"
}

func (f *URLSchemeFilter) Description() string {
	return "Requires an absolute URL with an allowed scheme"
}

func (f *URLSchemeFilter) ReturnCodes() []string {
	return []string{CodeInvalidURL}
}

func (f *URLSchemeFilter) ValidateConfig(settings map[string]any) error {
	var config URLSchemeConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}
	f.schemes = config.Schemes
	zlog.Info().Msgf("url scheme filter config: %+v", config)
	return nil
}

func (f *URLSchemeFilter) AppliesTo(kind track.Kind) bool {
	return kind == track.KindRemoteURL
}

func (f *URLSchemeFilter) Check(_ context.Context, c Candidate) Result {
	u := c.URL
	if u == nil || !u.IsAbs() || u.Host == "" {
		return Reject(CodeInvalidURL)
	}
	if !slices.Contains(f.schemes, strings.ToLower(u.Scheme)) {
		return Reject(CodeInvalidURL)
	}
	return Accept()
}

func init() {
	Register("url_scheme_filter", func() Filter {
		return &URLSchemeFilter{}
	})
}
