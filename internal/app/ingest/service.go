// Package ingest creates tracks from uploaded files and remote URLs.
package ingest

import (
	"bytes"
	"context"
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/dhowden/tag"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/moodbox/internal/app/filter"
	"github.com/osa030/moodbox/internal/domain/track"
)

// ErrFileTooLarge is returned when an upload exceeds the size limit.
var ErrFileTooLarge = errors.New("file too large")

// RejectionError is returned when a filter rejects a candidate.
type RejectionError struct {
	Code   string
	Filter string
	cause  error
}

func (e *RejectionError) Error() string {
	return "rejected: " + e.Code
}

// Unwrap returns the taxonomy error matching the code.
func (e *RejectionError) Unwrap() error {
	return e.cause
}

func reject(code string) error {
	var cause error
	switch code {
	case filter.CodeUnsupportedFormat:
		cause = track.ErrUnsupportedFormat
	case filter.CodeInvalidURL:
		cause = track.ErrInvalidURL
	case filter.CodeFileTooLarge:
		cause = ErrFileTooLarge
	default:
		cause = track.ErrResourceLoadFailed
	}
	return &RejectionError{Code: code, cause: cause}
}

// Code returns the message code for an ingestion error.
func Code(err error) string {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej.Code
	}
	if errors.Is(err, ErrFileTooLarge) {
		return filter.CodeFileTooLarge
	}
	return track.Code(err)
}

// Service creates tracks after running them through the filter chain.
type Service struct {
	chain  *filter.Chain
	prober Prober
}

// NewService creates a new ingestion service.
func NewService(chain *filter.Chain, prober Prober) *Service {
	if chain == nil {
		chain = filter.NewChain()
	}
	return &Service{chain: chain, prober: prober}
}

// IngestFile validates an uploaded file and creates a LocalFile track that
// owns data.
func (s *Service) IngestFile(ctx context.Context, fileName string, data []byte) (*track.Track, error) {
	cand := filter.Candidate{
		Kind:     track.KindLocalFile,
		FileName: fileName,
		Ext:      track.Ext(fileName),
		Data:     data,
		Size:     int64(len(data)),
	}

	if result := s.chain.Execute(ctx, cand); !result.Accepted {
		zlog.Info().Msgf("ingest: file rejected: file=%s code=%s", fileName, result.Code)
		return nil, reject(result.Code)
	}

	t := track.NewLocal(track.NameFromFile(fileName), cand.Ext, data)
	applyTags(t, data)

	zlog.Info().Msgf("ingest: file accepted: id=%s name=%s size=%d", t.ID, t.Name, len(data))
	return t, nil
}

// IngestURL validates and probes a URL and creates a RemoteURL track.
// An empty name defaults to the last URL path component without extension.
func (s *Service) IngestURL(ctx context.Context, rawURL, name string) (*track.Track, error) {
	rawURL = strings.TrimSpace(rawURL)
	u, err := url.Parse(rawURL)
	if err != nil {
		u = nil
	}

	cand := filter.Candidate{
		Kind:   track.KindRemoteURL,
		RawURL: rawURL,
		URL:    u,
	}
	if u != nil {
		cand.Ext = track.Ext(u.Path)
	}

	// Scheme checks run before any network access.
	if u == nil || !u.IsAbs() || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, reject(filter.CodeInvalidURL)
	}

	if s.prober != nil {
		probe, err := s.prober.Probe(ctx, u)
		if err != nil {
			zlog.Info().Msgf("ingest: url probe failed: url=%s err=%v", rawURL, err)
			return nil, track.MarkLoadFailed(err)
		}
		cand.ContentType = probe.ContentType
		cand.Data = probe.Head
		cand.Size = probe.Size
	}

	if result := s.chain.Execute(ctx, cand); !result.Accepted {
		zlog.Info().Msgf("ingest: url rejected: url=%s code=%s", rawURL, result.Code)
		return nil, reject(result.Code)
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = track.NameFromURL(u)
	}
	t := track.NewRemote(name, u)
	applyTags(t, cand.Data)

	zlog.Info().Msgf("ingest: url accepted: id=%s name=%s", t.ID, t.Name)
	return t, nil
}

// applyTags fills artist and album from embedded tags, if readable.
func applyTags(t *track.Track, data []byte) {
	if len(data) == 0 {
		return
	}
	m, err := tag.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return
	}
	t.Artist = strings.TrimSpace(m.Artist())
	t.Album = strings.TrimSpace(m.Album())
}
