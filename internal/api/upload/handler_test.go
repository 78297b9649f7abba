package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apiconnect "github.com/osa030/moodbox/internal/api/connect"
	"github.com/osa030/moodbox/internal/domain/track"
	"github.com/osa030/moodbox/internal/infra/config"
)

type stubAdder struct {
	added []string
}

func (a *stubAdder) AddFile(_ context.Context, fileName string, data []byte) (*track.Track, error) {
	if track.Ext(fileName) != "mp3" {
		return nil, track.ErrUnsupportedFormat
	}
	a.added = append(a.added, fileName)
	return track.NewLocal(track.NameFromFile(fileName), "mp3", data), nil
}

func newConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte("control:\n  token: secret\nserver:\n  max_upload_mb: 1\n"))
	require.NoError(t, err)
	return cfg
}

func multipartBody(t *testing.T, files map[string][]byte, order ...string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, name := range order {
		part, err := mw.CreateFormFile("file", name)
		require.NoError(t, err)
		_, err = part.Write(files[name])
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func doUpload(t *testing.T, h http.Handler, token string, body *bytes.Buffer, contentType string) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, Path, body)
	req.Header.Set("Content-Type", contentType)
	if token != "" {
		req.Header.Set(apiconnect.ControlTokenHeader, token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func TestHandler_Upload(t *testing.T) {
	adder := &stubAdder{}
	h := NewHandler(adder, newConfig(t))

	body, ct := multipartBody(t, map[string][]byte{
		"one.mp3": {0xff, 0xfb, 0x90, 0x00},
		"two.mp3": {0xff, 0xfb, 0x90, 0x00},
	}, "one.mp3", "two.mp3")
	rec, resp := doUpload(t, h, "secret", body, ct)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, apiconnect.CodeSuccess, resp.Code)
	assert.Equal(t, "OK", resp.Message)
	require.Len(t, resp.Files, 2)
	assert.Equal(t, "one", resp.Files[0].Name)
	assert.NotEmpty(t, resp.Files[0].TrackID)
	assert.Equal(t, []string{"one.mp3", "two.mp3"}, adder.added)
}

func TestHandler_PartialRejection(t *testing.T) {
	adder := &stubAdder{}
	h := NewHandler(adder, newConfig(t))

	body, ct := multipartBody(t, map[string][]byte{
		"notes.txt": []byte("hello"),
		"song.mp3":  {0xff, 0xfb, 0x90, 0x00},
	}, "notes.txt", "song.mp3")
	rec, resp := doUpload(t, h, "secret", body, ct)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, track.CodeUnsupportedFormat, resp.Code)
	assert.Equal(t, "This audio format is not supported", resp.Message)
	require.Len(t, resp.Files, 2)
	assert.False(t, resp.Files[0].Success)
	assert.True(t, resp.Files[1].Success)
	assert.Equal(t, []string{"song.mp3"}, adder.added)
}

func TestHandler_Unauthorized(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{name: "missing", token: ""},
		{name: "wrong", token: "nope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adder := &stubAdder{}
			h := NewHandler(adder, newConfig(t))

			body, ct := multipartBody(t, map[string][]byte{"a.mp3": {1}}, "a.mp3")
			rec, resp := doUpload(t, h, tt.token, body, ct)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "unauthorized", resp.Code)
			assert.Empty(t, adder.added)
		})
	}
}

func TestHandler_TooLarge(t *testing.T) {
	adder := &stubAdder{}
	h := NewHandler(adder, newConfig(t))

	body, ct := multipartBody(t, map[string][]byte{"big.mp3": make([]byte, 3<<20)}, "big.mp3")
	rec, resp := doUpload(t, h, "secret", body, ct)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "file_too_large", resp.Code)
	assert.Empty(t, adder.added)
}

func TestHandler_OversizedPart(t *testing.T) {
	adder := &stubAdder{}
	h := NewHandler(adder, newConfig(t))

	// Fits in the form overhead but exceeds the per-file limit
	body, ct := multipartBody(t, map[string][]byte{"big.mp3": make([]byte, (1<<20)+512)}, "big.mp3")
	rec, resp := doUpload(t, h, "secret", body, ct)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, "file_too_large", resp.Code)
	assert.Empty(t, adder.added)
}

func TestHandler_MethodAndForm(t *testing.T) {
	h := NewHandler(&stubAdder{}, newConfig(t))

	req := httptest.NewRequest(http.MethodGet, Path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	body, ct := multipartBody(t, nil)
	rec, resp := doUpload(t, h, "secret", body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, resp.Success)
}
