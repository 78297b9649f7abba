// Package track provides the AudioTrack domain entity.
package track

import (
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind represents where the audio of a track comes from.
type Kind string

const (
	KindLocalFile Kind = "LOCAL_FILE"
	KindRemoteURL Kind = "REMOTE_URL"
)

// UnknownName is used when no display name can be derived.
const UnknownName = "Unknown Track"

// Track represents one playable audio item.
type Track struct {
	ID      string    // Time-ordered unique ID
	Name    string    // Display name
	Artist  string    // Artist from embedded tags (optional)
	Album   string    // Album from embedded tags (optional)
	Kind    Kind      // Source kind
	Ext     string    // Lower-case format extension without dot
	URL     string    // Absolute URL (RemoteURL only)
	Handle  *Handle   // Revocable local handle (LocalFile only)
	AddedAt time.Time // Creation time
}

// NewLocal creates a LocalFile track that takes ownership of data.
func NewLocal(name, ext string, data []byte) *Track {
	id := newID()
	return &Track{
		ID:      id,
		Name:    name,
		Kind:    KindLocalFile,
		Ext:     strings.ToLower(ext),
		Handle:  NewHandle(id, data),
		AddedAt: time.Now(),
	}
}

// NewRemote creates a RemoteURL track.
func NewRemote(name string, u *url.URL) *Track {
	return &Track{
		ID:      newID(),
		Name:    name,
		Kind:    KindRemoteURL,
		Ext:     Ext(u.Path),
		URL:     u.String(),
		AddedAt: time.Now(),
	}
}

// Locator returns the string form of the track's audio locator.
func (t *Track) Locator() string {
	if t.Kind == KindLocalFile && t.Handle != nil {
		return t.Handle.URI()
	}
	return t.URL
}

// Release revokes the local handle, if any.
// Safe to call on RemoteURL tracks and on already-released tracks.
func (t *Track) Release() {
	if t.Handle == nil || t.Handle.Revoked() {
		return
	}
	_ = t.Handle.Revoke()
}

// NameFromFile returns the file name without directory and extension.
func NameFromFile(fileName string) string {
	base := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	name := strings.TrimSuffix(base, path.Ext(base))
	if name == "" || name == "." || name == "/" {
		return UnknownName
	}
	return name
}

// NameFromURL returns the last path component of u without extension.
func NameFromURL(u *url.URL) string {
	if u == nil {
		return UnknownName
	}
	p := strings.TrimSuffix(u.Path, "/")
	if p == "" {
		return UnknownName
	}
	unescaped, err := url.PathUnescape(path.Base(p))
	if err != nil {
		unescaped = path.Base(p)
	}
	return NameFromFile(unescaped)
}

// Ext returns the lower-case extension of name without the leading dot.
func Ext(name string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
