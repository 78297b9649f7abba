// Package upload provides the multipart upload endpoint for local audio files.
package upload

import (
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	apiconnect "github.com/osa030/moodbox/internal/api/connect"
	"github.com/osa030/moodbox/internal/app/ingest"
	"github.com/osa030/moodbox/internal/domain/track"
	"github.com/osa030/moodbox/internal/infra/config"
)

// Path is the mount path of the handler.
const Path = "/upload"

const (
	formField     = "file"
	formOverhead  = 1 << 20
	maxFormMemory = 32 << 20
)

// Adder adds uploaded files to the playlist.
type Adder interface {
	AddFile(ctx context.Context, fileName string, data []byte) (*track.Track, error)
}

// Handler accepts multipart uploads. Every part named "file" is added in order;
// a rejected file does not prevent the remaining files from being added.
type Handler struct {
	adder  Adder
	config *config.Config
}

// NewHandler creates an upload handler.
func NewHandler(adder Adder, cfg *config.Config) *Handler {
	return &Handler{adder: adder, config: cfg}
}

// FileResult is the outcome for one uploaded file.
type FileResult struct {
	FileName string `json:"file_name"`
	Success  bool   `json:"success"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	TrackID  string `json:"track_id,omitempty"`
	Name     string `json:"name,omitempty"`
}

// Response is the JSON response body.
type Response struct {
	Success bool         `json:"success"`
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Files   []FileResult `json:"files,omitempty"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		h.write(w, http.StatusMethodNotAllowed, h.failure(apiconnect.CodeError))
		return
	}
	if !apiconnect.ValidToken(h.config, r.Header.Get(apiconnect.ControlTokenHeader)) {
		h.write(w, http.StatusUnauthorized, h.failure("unauthorized"))
		return
	}

	maxBytes := int64(h.config.Server.MaxUploadMB) << 20
	if r.ContentLength > maxBytes+formOverhead {
		h.write(w, http.StatusRequestEntityTooLarge, h.failure("file_too_large"))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+formOverhead)
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.write(w, http.StatusRequestEntityTooLarge, h.failure("file_too_large"))
			return
		}
		zlog.Debug().Msgf("upload: bad form: error=%v", err)
		h.write(w, http.StatusBadRequest, h.failure(apiconnect.CodeError))
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	headers := r.MultipartForm.File[formField]
	if len(headers) == 0 {
		h.write(w, http.StatusBadRequest, h.failure(apiconnect.CodeError))
		return
	}

	resp := Response{Success: true, Code: apiconnect.CodeSuccess}
	for _, fh := range headers {
		result := h.addFile(r.Context(), fh, maxBytes)
		if !result.Success {
			resp.Success = false
		}
		resp.Files = append(resp.Files, result)
	}
	if !resp.Success {
		// Report the first failure at the top level
		for _, f := range resp.Files {
			if !f.Success {
				resp.Code = f.Code
				break
			}
		}
	}
	resp.Message = h.config.GetMessage(resp.Code)

	h.write(w, http.StatusOK, resp)
}

func (h *Handler) addFile(ctx context.Context, fh *multipart.FileHeader, maxBytes int64) FileResult {
	result := FileResult{FileName: fh.Filename}

	data, err := readPart(fh, maxBytes)
	if err == nil {
		var t *track.Track
		t, err = h.adder.AddFile(ctx, fh.Filename, data)
		if err == nil {
			result.Success = true
			result.Code = apiconnect.CodeSuccess
			result.TrackID = t.ID
			result.Name = t.Name
		}
	}
	if err != nil {
		result.Code = ingest.Code(err)
		if result.Code == "" {
			result.Code = apiconnect.CodeError
		}
		zlog.Info().Msgf("upload: file rejected: file=%s code=%s error=%v", fh.Filename, result.Code, err)
	}
	result.Message = h.config.GetMessage(result.Code)
	return result
}

func readPart(fh *multipart.FileHeader, maxBytes int64) ([]byte, error) {
	if fh.Size > maxBytes {
		return nil, ingest.ErrFileTooLarge
	}
	f, err := fh.Open()
	if err != nil {
		return nil, errors.Wrap(err, "failed to open part")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read part")
	}
	if int64(len(data)) > maxBytes {
		return nil, ingest.ErrFileTooLarge
	}
	return data, nil
}

func (h *Handler) failure(code string) Response {
	return Response{Code: code, Message: h.config.GetMessage(code)}
}

func (h *Handler) write(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		zlog.Debug().Msgf("upload: failed to write response: error=%v", err)
	}
}
