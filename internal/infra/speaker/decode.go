package speaker

import (
	"bytes"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep"
	"github.com/gopxl/beep/flac"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/vorbis"
	"github.com/gopxl/beep/wav"

	"github.com/osa030/moodbox/internal/domain/track"
)

// Formats lists the extensions this package can decode.
var Formats = []string{"mp3", "wav", "flac", "ogg"}

type readSeekNopCloser struct {
	*bytes.Reader
}

func (readSeekNopCloser) Close() error { return nil }

// decode decodes in-memory audio by extension.
func decode(ext string, data []byte) (beep.StreamSeekCloser, beep.Format, error) {
	r := readSeekNopCloser{bytes.NewReader(data)}

	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
		err      error
	)
	switch ext {
	case "mp3":
		streamer, format, err = mp3.Decode(r)
	case "wav":
		streamer, format, err = wav.Decode(r)
	case "flac":
		streamer, format, err = flac.Decode(r)
	case "ogg":
		streamer, format, err = vorbis.Decode(r)
	default:
		return nil, beep.Format{}, errors.Wrapf(track.ErrUnsupportedFormat, "no decoder for %q", ext)
	}
	if err != nil {
		return nil, beep.Format{}, errors.Mark(errors.Wrapf(err, "failed to decode %s", ext), track.ErrResourceLoadFailed)
	}
	return streamer, format, nil
}

// readAll reads at most limit bytes from r.
func readAll(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, errors.Newf("source exceeds %d bytes", limit)
	}
	return data, nil
}
