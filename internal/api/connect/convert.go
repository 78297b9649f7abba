package connect

import (
	"math"
	"time"

	"github.com/cockroachdb/errors"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/osa030/moodbox/internal/app/notification"
	"github.com/osa030/moodbox/internal/app/playback"
	"github.com/osa030/moodbox/internal/app/session"
	"github.com/osa030/moodbox/internal/app/session/state"
	"github.com/osa030/moodbox/internal/app/visual"
	"github.com/osa030/moodbox/internal/domain/track"
)

// Request field errors
var (
	errMissingField = errors.New("missing field")
	errInvalidField = errors.New("invalid field")
)

func timestamp(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// number drops values protojson cannot encode.
func number(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

func trackValue(t *track.Track) any {
	if t == nil {
		return nil
	}
	m := map[string]any{
		"id":       t.ID,
		"name":     t.Name,
		"kind":     string(t.Kind),
		"ext":      t.Ext,
		"added_at": timestamp(t.AddedAt),
	}
	if t.Artist != "" {
		m["artist"] = t.Artist
	}
	if t.Album != "" {
		m["album"] = t.Album
	}
	if t.URL != "" {
		m["url"] = t.URL
	}
	return m
}

func snapshotMap(s playback.Snapshot) map[string]any {
	tracks := make([]any, 0, len(s.Tracks))
	for _, t := range s.Tracks {
		tracks = append(tracks, trackValue(t))
	}
	current, _ := s.CurrentTrack()

	return map[string]any{
		"tracks":           tracks,
		"current_index":    s.CurrentIndex,
		"current_track":    trackValue(current),
		"state":            s.State.String(),
		"playing":          s.IsPlaying(),
		"position":         number(s.Position),
		"duration":         number(s.Duration),
		"duration_known":   s.DurationKnown(),
		"volume":           s.Volume,
		"effective_volume": s.EffectiveVolume(),
		"muted":            s.Muted,
		"unavailable":      s.Unavailable,
	}
}

func moodMap(m state.Mood) map[string]any {
	return map[string]any{
		"track_id":   m.TrackID,
		"emotion":    m.Emotion.String(),
		"intensity":  number(m.Intensity),
		"bpm":        number(m.BPM),
		"source":     m.Source,
		"updated_at": timestamp(m.UpdatedAt),
	}
}

func colorMap(c visual.Color) map[string]any {
	return map[string]any{"hex": c.Hex, "alpha": c.Alpha}
}

func frameMap(f visual.Frame) map[string]any {
	bins := make([]any, len(f.Bins))
	for i, b := range f.Bins {
		bins[i] = int(b)
	}
	particles := make([]any, len(f.Particles))
	for i, p := range f.Particles {
		particles[i] = map[string]any{
			"id":      p.ID,
			"x":       p.X,
			"y":       p.Y,
			"size":    p.Size,
			"opacity": p.Opacity,
			"speed":   p.Speed,
		}
	}

	return map[string]any{
		"at":        timestamp(f.At),
		"playing":   f.Playing,
		"bins":      bins,
		"intensity": number(f.Intensity),
		"emotion":   f.Emotion.String(),
		"bpm":       number(f.BPM),
		"palette": map[string]any{
			"primary":   colorMap(f.Palette.Primary),
			"secondary": colorMap(f.Palette.Secondary),
			"accent":    colorMap(f.Palette.Accent),
		},
		"breath": map[string]any{
			"phase":   f.Breath.Phase,
			"scale":   f.Breath.Scale,
			"opacity": f.Breath.Opacity,
		},
		"particles": particles,
	}
}

func statusMap(s *session.Status) map[string]any {
	var startedAt any
	if s.StartedAt != nil {
		startedAt = timestamp(*s.StartedAt)
	}
	return map[string]any{
		"session_id":  s.SessionID,
		"phase":       s.Phase.String(),
		"started_at":  startedAt,
		"subscribers": s.Subscribers,
		"playback":    snapshotMap(s.Snapshot),
		"mood":        moodMap(s.Mood),
		"frame":       frameMap(s.Frame),
	}
}

func payloadValue(payload any) any {
	switch p := payload.(type) {
	case playback.Snapshot:
		return snapshotMap(p)
	case visual.Frame:
		return frameMap(p)
	case state.Mood:
		return moodMap(p)
	case session.ErrorPayload:
		return map[string]any{
			"code":    p.Code,
			"message": p.Message,
			"track":   trackValue(p.Track),
		}
	case *session.Status:
		return statusMap(p)
	default:
		return nil
	}
}

func notificationStruct(n *notification.Notification) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"sequence_no": n.SequenceNo,
		"kind":        string(n.Kind),
		"event":       n.Event,
		"at":          timestamp(n.At),
		"payload":     payloadValue(n.Payload),
	})
}

func stringField(s *structpb.Struct, name string) string {
	return s.GetFields()[name].GetStringValue()
}

func requiredString(s *structpb.Struct, name string) (string, error) {
	v, ok := s.GetFields()[name]
	if !ok {
		return "", errors.Wrapf(errMissingField, "%s", name)
	}
	str, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok || str.StringValue == "" {
		return "", errors.Wrapf(errInvalidField, "%s must be a non-empty string", name)
	}
	return str.StringValue, nil
}

func requiredNumber(s *structpb.Struct, name string) (float64, error) {
	v, ok := s.GetFields()[name]
	if !ok {
		return 0, errors.Wrapf(errMissingField, "%s", name)
	}
	num, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, errors.Wrapf(errInvalidField, "%s must be a number", name)
	}
	return num.NumberValue, nil
}

func requiredIndex(s *structpb.Struct, name string) (int, error) {
	v, err := requiredNumber(s, name)
	if err != nil {
		return 0, err
	}
	if v != math.Trunc(v) {
		return 0, errors.Wrapf(errInvalidField, "%s must be an integer", name)
	}
	return int(v), nil
}

func requiredStruct(s *structpb.Struct, name string) (*structpb.Struct, error) {
	v, ok := s.GetFields()[name]
	if !ok {
		return nil, errors.Wrapf(errMissingField, "%s", name)
	}
	sv, ok := v.GetKind().(*structpb.Value_StructValue)
	if !ok {
		return nil, errors.Wrapf(errInvalidField, "%s must be an object", name)
	}
	return sv.StructValue, nil
}
