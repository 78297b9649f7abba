package filter

import (
	"context"
	"slices"
	"strings"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/moodbox/internal/domain/track"
)

// FormatConfig represents the configuration for FormatFilter.
type FormatConfig struct {
	Extensions []string `mapstructure:"extensions" default:"[\"mp3\",\"wav\",\"flac\",\"aac\",\"ogg\",\"m4a\"]" validate:"min=1,dive,required"`
}

// FormatFilter checks the file extension against an allow-list.
type FormatFilter struct {
	extensions []string
}

// NewFormatFilter creates a format filter with the given extensions.
func NewFormatFilter(extensions ...string) *FormatFilter {
	f := &FormatFilter{}
	for _, ext := range extensions {
		f.extensions = append(f.extensions, strings.ToLower(strings.TrimPrefix(ext, ".")))
	}
	return f
}

func (f *FormatFilter) Name() string {
	return "format_filter"
}

func (f *FormatFilter) Description() string {
	return "Checks the file extension against the allowed audio formats"
}

func (f *FormatFilter) ReturnCodes() []string {
	return []string{CodeUnsupportedFormat}
}

func (f *FormatFilter) ValidateConfig(settings map[string]any) error {
	var config FormatConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}
	*f = *NewFormatFilter(config.Extensions...)
	zlog.Info().Msgf("format filter config: %+v", config)
	return nil
}

func (f *FormatFilter) AppliesTo(kind track.Kind) bool {
	return kind == track.KindLocalFile
}

func (f *FormatFilter) Check(_ context.Context, c Candidate) Result {
	if slices.Contains(f.extensions, c.Ext) {
		return Accept()
	}
	return Reject(CodeUnsupportedFormat)
}

func init() {
	Register("format_filter", func() Filter {
		return &FormatFilter{}
	})
}
