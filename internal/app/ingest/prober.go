package ingest

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/osa030/moodbox/internal/domain/track"
)

// ProbeResult describes a remote resource.
type ProbeResult struct {
	ContentType string
	Size        int64  // Total size, 0 if unknown
	Head        []byte // First bytes of the body
}

// Prober loads remote resource metadata before a URL is accepted.
type Prober interface {
	Probe(ctx context.Context, u *url.URL) (ProbeResult, error)
}

// HTTPProber probes URLs with a ranged GET request.
type HTTPProber struct {
	client    *http.Client
	sniffSize int
}

// NewHTTPProber creates a prober that reads the first sniffSize bytes.
func NewHTTPProber(client *http.Client, sniffSize int) *HTTPProber {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if sniffSize <= 0 {
		sniffSize = 4096
	}
	return &HTTPProber{client: client, sniffSize: sniffSize}
}

// Probe implements Prober.
func (p *HTTPProber) Probe(ctx context.Context, u *url.URL) (ProbeResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return ProbeResult{}, errors.Mark(errors.Wrap(err, "failed to create request"), track.ErrInvalidURL)
	}
	req.Header.Set("Range", "bytes=0-"+strconv.Itoa(p.sniffSize-1))

	resp, err := p.client.Do(req)
	if err != nil {
		return ProbeResult{}, track.MarkLoadFailed(errors.Wrap(err, "failed to probe url"))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return ProbeResult{}, track.MarkLoadFailed(errors.Newf("unexpected status: %d", resp.StatusCode))
	}

	head, err := io.ReadAll(io.LimitReader(resp.Body, int64(p.sniffSize)))
	if err != nil {
		return ProbeResult{}, track.MarkLoadFailed(errors.Wrap(err, "failed to read response"))
	}

	return ProbeResult{
		ContentType: resp.Header.Get("Content-Type"),
		Size:        totalSize(resp),
		Head:        head,
	}, nil
}

// totalSize returns the full resource size from Content-Range or Content-Length.
func totalSize(resp *http.Response) int64 {
	if cr := resp.Header.Get("Content-Range"); cr != "" {
		if i := strings.LastIndex(cr, "/"); i >= 0 {
			if n, err := strconv.ParseInt(cr[i+1:], 10, 64); err == nil {
				return n
			}
		}
		return 0
	}
	if resp.StatusCode == http.StatusOK && resp.ContentLength > 0 {
		return resp.ContentLength
	}
	return 0
}
