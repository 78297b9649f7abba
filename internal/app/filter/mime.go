package filter

import (
	"context"
	"mime"
	"slices"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/moodbox/internal/domain/track"
)

// MimeConfig represents the configuration for MimeFilter.
type MimeConfig struct {
	Allowed []string `mapstructure:"allowed" default:"[\"audio/\",\"application/ogg\"]" validate:"min=1,dive,required"`
}

// MimeFilter checks the sniffed MIME type of the content.
// For URLs the declared Content-Type is used when no bytes were sniffed.
type MimeFilter struct {
	allowed []string
}

// NewMimeFilter creates a MIME filter. Entries ending in "/" match a whole
// top-level type.
func NewMimeFilter(allowed ...string) *MimeFilter {
	return &MimeFilter{allowed: allowed}
}

func (f *MimeFilter) Name() string {
	return "mime_filter"
}

func (f *MimeFilter) Description() string {
	return "Checks the sniffed MIME type of the audio content"
}

func (f *MimeFilter) ReturnCodes() []string {
	return []string{CodeUnsupportedFormat, CodeResourceLoadFailed}
}

func (f *MimeFilter) ValidateConfig(settings map[string]any) error {
	var config MimeConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}
	f.allowed = config.Allowed
	zlog.Info().Msgf("mime filter config: %+v", config)
	return nil
}

func (f *MimeFilter) AppliesTo(kind track.Kind) bool {
	return kind == track.KindLocalFile || kind == track.KindRemoteURL
}

func (f *MimeFilter) Check(_ context.Context, c Candidate) Result {
	code := CodeUnsupportedFormat
	if c.Kind == track.KindRemoteURL {
		code = CodeResourceLoadFailed
	}

	if len(c.Data) > 0 {
		for m := mimetype.Detect(c.Data); m != nil; m = m.Parent() {
			if f.allows(m.String()) {
				return Accept()
			}
		}
		zlog.Debug().Msgf("mime filter: sniffed type not allowed: file=%s url=%s", c.FileName, c.RawURL)
		return Reject(code)
	}

	if c.ContentType != "" {
		mediaType, _, err := mime.ParseMediaType(c.ContentType)
		if err == nil && f.allows(mediaType) {
			return Accept()
		}
	}
	return Reject(code)
}

// allows reports whether the MIME type is allowed.
func (f *MimeFilter) allows(mimeType string) bool {
	mimeType = strings.ToLower(mimeType)
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	return slices.ContainsFunc(f.allowed, func(a string) bool {
		if strings.HasSuffix(a, "/") {
			return strings.HasPrefix(mimeType, a)
		}
		return mimeType == a
	})
}

func init() {
	Register("mime_filter", func() Filter {
		return &MimeFilter{}
	})
}
