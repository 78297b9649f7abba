package filter

import (
	"context"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/moodbox/internal/domain/track"
)

// SizeLimitConfig represents the configuration for SizeLimitFilter.
type SizeLimitConfig struct {
	MaxMB float64 `mapstructure:"max_mb" default:"50" validate:"gt=0"`
}

// SizeLimitFilter rejects files larger than the configured size.
type SizeLimitFilter struct {
	config *SizeLimitConfig
}

// NewSizeLimitFilter creates a new size limit filter.
func NewSizeLimitFilter() *SizeLimitFilter {
	return &SizeLimitFilter{}
}

func (f *SizeLimitFilter) Name() string {
	return "size_limit_filter"
}

func (f *SizeLimitFilter) Description() string {
	return "Rejects files larger than the configured size"
}

func (f *SizeLimitFilter) ReturnCodes() []string {
	return []string{CodeFileTooLarge}
}

func (f *SizeLimitFilter) ValidateConfig(settings map[string]any) error {
	var config SizeLimitConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}
	f.config = &config
	zlog.Info().Msgf("size limit filter config: %+v", config)
	return nil
}

func (f *SizeLimitFilter) AppliesTo(kind track.Kind) bool {
	return kind == track.KindLocalFile
}

func (f *SizeLimitFilter) Check(_ context.Context, c Candidate) Result {
	// If config is not set, accept all files
	if f.config == nil {
		return Accept()
	}

	size := c.Size
	if size == 0 {
		size = int64(len(c.Data))
	}
	if float64(size) > f.config.MaxMB*1024*1024 {
		return Reject(CodeFileTooLarge)
	}
	return Accept()
}

func init() {
	Register("size_limit_filter", func() Filter {
		return &SizeLimitFilter{}
	})
}
