package media

import (
	"context"
	"io"
	"net/http"

	"github.com/cockroachdb/errors"

	"github.com/osa030/moodbox/internal/domain/track"
)

// Source describes what a resource should load.
type Source struct {
	TrackID string
	Name    string
	Ext     string // Lower-case extension, selects the decoder
	Locator string
	Size    int64 // Byte size if known, 0 otherwise
	Open    func(ctx context.Context) (io.ReadCloser, error)
}

// SourceFor builds a Source for t. Remote tracks are fetched with client.
func SourceFor(t *track.Track, client *http.Client) *Source {
	src := &Source{
		TrackID: t.ID,
		Name:    t.Name,
		Ext:     t.Ext,
		Locator: t.Locator(),
	}

	switch t.Kind {
	case track.KindLocalFile:
		h := t.Handle
		if h != nil {
			src.Size = int64(h.Size())
		}
		src.Open = func(_ context.Context) (io.ReadCloser, error) {
			if h == nil {
				return nil, errors.Mark(errors.New("track has no local handle"), track.ErrResourceLoadFailed)
			}
			rc, err := h.Open()
			if err != nil {
				return nil, errors.Mark(err, track.ErrResourceLoadFailed)
			}
			return rc, nil
		}
	case track.KindRemoteURL:
		src.Open = func(ctx context.Context) (io.ReadCloser, error) {
			return openRemote(ctx, client, t.URL)
		}
	}
	return src
}

func openRemote(ctx context.Context, client *http.Client, rawURL string) (io.ReadCloser, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "failed to create request"), track.ErrInvalidURL)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, track.MarkLoadFailed(errors.Wrap(err, "failed to fetch source"))
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, track.MarkLoadFailed(errors.Newf("unexpected status fetching source: %d", resp.StatusCode))
	}
	return resp.Body, nil
}
