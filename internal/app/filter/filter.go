// Package filter provides the filter chain for ingestion validation.
package filter

import (
	"context"
	"net/url"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/osa030/moodbox/internal/domain/track"
)

// Rejection codes.
const (
	CodeUnsupportedFormat  = track.CodeUnsupportedFormat
	CodeInvalidURL         = track.CodeInvalidURL
	CodeResourceLoadFailed = track.CodeResourceLoadFailed
	CodeFileTooLarge       = "file_too_large"
)

// Candidate represents a file or URL offered for ingestion.
type Candidate struct {
	Kind        track.Kind
	FileName    string   // Original file name (LocalFile)
	Ext         string   // Lower-case extension without dot
	Data        []byte   // File bytes (LocalFile) or sniffed prefix (RemoteURL)
	Size        int64    // Total byte size if known
	RawURL      string   // As supplied (RemoteURL)
	URL         *url.URL // Parsed URL, nil if unparsable (RemoteURL)
	ContentType string   // Declared content type, if any
}

// Result represents the result of a filter check.
type Result struct {
	Accepted bool
	Code     string // e.g., "unsupported_format", "invalid_url", "file_too_large"
}

// Accept returns an accepted result.
func Accept() Result {
	return Result{Accepted: true}
}

// Reject returns a rejected result with the given code.
func Reject(code string) Result {
	return Result{Accepted: false, Code: code}
}

// Filter is the interface for ingestion filters.
type Filter interface {
	// Name returns the filter name (used in config).
	Name() string
	// Description returns a human-readable description.
	Description() string
	// ReturnCodes returns the codes this filter can return.
	ReturnCodes() []string
	// ValidateConfig validates and applies the filter configuration.
	ValidateConfig(settings map[string]any) error
	// AppliesTo returns true if this filter should be applied to the given source kind.
	AppliesTo(kind track.Kind) bool
	// Check performs the filter check.
	Check(ctx context.Context, c Candidate) Result
}

// registry holds registered filter factories.
var registry = make(map[string]func() Filter)

// Register registers a filter factory.
func Register(name string, factory func() Filter) {
	registry[name] = factory
}

// GetRegistered returns all registered filter factories.
func GetRegistered() map[string]func() Filter {
	return registry
}

// decodeSettings decodes settings into out, applies defaults and validates.
func decodeSettings(settings map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create decoder")
	}

	if err := decoder.Decode(settings); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}

	if err := defaults.Set(out); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}

	if err := validator.New().Struct(out); err != nil {
		return errors.Wrap(err, "validation failed")
	}
	return nil
}
