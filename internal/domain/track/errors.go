package track

import "github.com/cockroachdb/errors"

// User-facing failure taxonomy. All are recoverable.
var (
	ErrUnsupportedFormat  = errors.New("unsupported format")
	ErrResourceLoadFailed = errors.New("resource load failed")
	ErrInvalidURL         = errors.New("invalid url")
)

// Message codes for the failure taxonomy.
const (
	CodeUnsupportedFormat  = "unsupported_format"
	CodeResourceLoadFailed = "resource_load_failed"
	CodeInvalidURL         = "invalid_url"
)

// Code returns the message code for err, or "" if err is not part of the taxonomy.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnsupportedFormat):
		return CodeUnsupportedFormat
	case errors.Is(err, ErrInvalidURL):
		return CodeInvalidURL
	case errors.Is(err, ErrResourceLoadFailed):
		return CodeResourceLoadFailed
	default:
		return ""
	}
}

// MarkLoadFailed marks err as a ResourceLoadFailed error unless it already
// belongs to the taxonomy.
func MarkLoadFailed(err error) error {
	if err == nil || Code(err) != "" {
		return err
	}
	return errors.Mark(err, ErrResourceLoadFailed)
}
