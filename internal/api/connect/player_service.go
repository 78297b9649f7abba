package connect

import (
	"context"
	"encoding/base64"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/osa030/moodbox/internal/app/command"
	"github.com/osa030/moodbox/internal/app/ingest"
	"github.com/osa030/moodbox/internal/app/playback"
	"github.com/osa030/moodbox/internal/app/session"
	"github.com/osa030/moodbox/internal/infra/config"
)

// Result codes that are not part of the ingestion taxonomy.
const (
	CodeSuccess          = "success"
	CodeNoTrack          = "no_track"
	CodeDurationUnknown  = "duration_unknown"
	CodeTrackUnavailable = "track_unavailable"
	CodeError            = "error"
)

// PlayerService implements the PlayerService RPC.
// Every method responds with success, code and message fields; user-facing
// failures are reported in the body rather than as RPC errors.
type PlayerService struct {
	session *session.Manager
	config  *config.Config
}

// NewPlayerService creates a new PlayerService.
func NewPlayerService(session *session.Manager, cfg *config.Config) *PlayerService {
	return &PlayerService{
		session: session,
		config:  cfg,
	}
}

type unaryFunc func(ctx context.Context, req *structpb.Struct) (map[string]any, error)

// Handler returns the service path and its handler.
func (s *PlayerService) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	procedures := map[string]unaryFunc{
		PlayerServiceAddTrackURLProcedure:  s.AddTrackURL,
		PlayerServiceAddTrackFileProcedure: s.AddTrackFile,
		PlayerServiceRemoveTrackProcedure:  s.RemoveTrack,
		PlayerServiceSelectTrackProcedure:  s.SelectTrack,
		PlayerServiceTogglePlayProcedure:   s.transport(s.session.Player().TogglePlay),
		PlayerServicePlayProcedure:         s.transport(s.session.Player().Play),
		PlayerServicePauseProcedure:        s.transport(s.session.Player().Pause),
		PlayerServiceNextProcedure:         s.transport(s.session.Player().Next),
		PlayerServicePreviousProcedure:     s.transport(s.session.Player().Previous),
		PlayerServiceToggleMuteProcedure:   s.transport(s.session.Player().ToggleMute),
		PlayerServiceSeekProcedure:         s.Seek,
		PlayerServiceSetVolumeProcedure:    s.SetVolume,
		PlayerServiceAdjustVolumeProcedure: s.AdjustVolume,
		PlayerServiceSendCommandProcedure:  s.SendCommand,
		PlayerServiceSendGestureProcedure:  s.SendGesture,
	}

	mux := http.NewServeMux()
	for procedure, fn := range procedures {
		mux.Handle(procedure, connect.NewUnaryHandler(procedure, s.unary(procedure, fn), opts...))
	}
	return "/" + PlayerServiceName + "/", mux
}

func (s *PlayerService) unary(procedure string, fn unaryFunc) func(context.Context, *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	return func(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
		fields, err := fn(ctx, req.Msg)
		if err != nil {
			if cerr := rpcError(err); cerr != nil {
				zlog.Debug().Msgf("rpc failed: procedure=%s error=%v", procedure, err)
				return nil, cerr
			}
			code := resultCode(err)
			zlog.Debug().Msgf("rpc rejected: procedure=%s code=%s error=%v", procedure, code, err)
			fields = map[string]any{
				"success": false,
				"code":    code,
				"message": s.config.GetMessage(code),
			}
		} else {
			if fields == nil {
				fields = map[string]any{}
			}
			fields["success"] = true
			fields["code"] = CodeSuccess
			fields["message"] = s.config.GetMessage(CodeSuccess)
		}

		msg, err := structpb.NewStruct(fields)
		if err != nil {
			return nil, connect.NewError(connect.CodeInternal, err)
		}
		return connect.NewResponse(msg), nil
	}
}

// rpcError maps errors that are not user-facing results to RPC errors.
func rpcError(err error) *connect.Error {
	switch {
	case errors.Is(err, errMissingField), errors.Is(err, errInvalidField),
		errors.Is(err, playback.ErrIndexOutOfRange), errors.Is(err, playback.ErrNilTrack),
		errors.Is(err, command.ErrUnknownToken):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, session.ErrSessionNotRunning), errors.Is(err, playback.ErrClosed):
		return connect.NewError(connect.CodeUnavailable, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	default:
		return nil
	}
}

// resultCode maps a user-facing failure to its message code.
func resultCode(err error) string {
	switch {
	case errors.Is(err, playback.ErrNoTrack):
		return CodeNoTrack
	case errors.Is(err, playback.ErrDurationUnknown):
		return CodeDurationUnknown
	case errors.Is(err, playback.ErrTrackUnavailable):
		return CodeTrackUnavailable
	}
	if code := ingest.Code(err); code != "" {
		return code
	}
	return CodeError
}

// snapshot returns the current playback state as response fields.
func (s *PlayerService) snapshot() map[string]any {
	return map[string]any{"state": snapshotMap(s.session.Player().Snapshot())}
}

func (s *PlayerService) transport(op func() error) unaryFunc {
	return func(context.Context, *structpb.Struct) (map[string]any, error) {
		if err := op(); err != nil {
			return nil, err
		}
		return s.snapshot(), nil
	}
}

// AddTrackURL appends a remote track. Fields: url, name (optional).
func (s *PlayerService) AddTrackURL(ctx context.Context, req *structpb.Struct) (map[string]any, error) {
	rawURL, err := requiredString(req, "url")
	if err != nil {
		return nil, err
	}

	t, err := s.session.AddURL(ctx, rawURL, stringField(req, "name"))
	if err != nil {
		return nil, err
	}
	return map[string]any{"track": trackValue(t)}, nil
}

// AddTrackFile appends an uploaded file. Fields: file_name, data (base64).
func (s *PlayerService) AddTrackFile(ctx context.Context, req *structpb.Struct) (map[string]any, error) {
	fileName, err := requiredString(req, "file_name")
	if err != nil {
		return nil, err
	}
	encoded, err := requiredString(req, "data")
	if err != nil {
		return nil, err
	}

	maxBytes := s.config.Server.MaxUploadMB << 20
	if base64.StdEncoding.DecodedLen(len(encoded)) > maxBytes+2 {
		return nil, ingest.ErrFileTooLarge
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.Wrap(errInvalidField, "data must be standard base64")
	}
	if len(data) > maxBytes {
		return nil, ingest.ErrFileTooLarge
	}

	t, err := s.session.AddFile(ctx, fileName, data)
	if err != nil {
		return nil, err
	}
	return map[string]any{"track": trackValue(t)}, nil
}

// RemoveTrack removes the track at index.
func (s *PlayerService) RemoveTrack(ctx context.Context, req *structpb.Struct) (map[string]any, error) {
	index, err := requiredIndex(req, "index")
	if err != nil {
		return nil, err
	}
	if err := s.session.Player().RemoveTrack(index); err != nil {
		return nil, err
	}
	return s.snapshot(), nil
}

// SelectTrack makes the track at index current and plays it.
func (s *PlayerService) SelectTrack(ctx context.Context, req *structpb.Struct) (map[string]any, error) {
	index, err := requiredIndex(req, "index")
	if err != nil {
		return nil, err
	}
	if err := s.session.Player().SelectTrack(index); err != nil {
		return nil, err
	}
	return s.snapshot(), nil
}

// Seek moves the position of the current track. Fields: position (seconds).
func (s *PlayerService) Seek(ctx context.Context, req *structpb.Struct) (map[string]any, error) {
	position, err := requiredNumber(req, "position")
	if err != nil {
		return nil, err
	}
	if err := s.session.Player().Seek(position); err != nil {
		return nil, err
	}
	return s.snapshot(), nil
}

// SetVolume sets the stored volume. Fields: volume in [0, 1].
func (s *PlayerService) SetVolume(ctx context.Context, req *structpb.Struct) (map[string]any, error) {
	volume, err := requiredNumber(req, "volume")
	if err != nil {
		return nil, err
	}
	if err := s.session.Player().SetVolume(volume); err != nil {
		return nil, err
	}
	return s.snapshot(), nil
}

// AdjustVolume changes the stored volume by delta.
func (s *PlayerService) AdjustVolume(ctx context.Context, req *structpb.Struct) (map[string]any, error) {
	delta, err := requiredNumber(req, "delta")
	if err != nil {
		return nil, err
	}
	if err := s.session.Player().AdjustVolume(delta); err != nil {
		return nil, err
	}
	return s.snapshot(), nil
}

// SendCommand dispatches a command token such as "next" or "swipe_up".
func (s *PlayerService) SendCommand(ctx context.Context, req *structpb.Struct) (map[string]any, error) {
	name, err := requiredString(req, "command")
	if err != nil {
		return nil, err
	}
	tok, err := command.ParseToken(name)
	if err != nil {
		return nil, err
	}
	if err := s.session.Command(tok); err != nil {
		return nil, err
	}
	return s.snapshot(), nil
}

// SendGesture feeds one touch to the gesture detector.
// Fields: start and end, each {x, y, at_ms}.
func (s *PlayerService) SendGesture(ctx context.Context, req *structpb.Struct) (map[string]any, error) {
	start, err := touchField(req, "start")
	if err != nil {
		return nil, err
	}
	end, err := touchField(req, "end")
	if err != nil {
		return nil, err
	}

	gesture := ""
	if tok, ok := command.Classify(start, end); ok {
		gesture = tok.String()
	}
	if err := s.session.Gesture(start, end); err != nil {
		return nil, err
	}
	return map[string]any{"gesture": gesture}, nil
}

func touchField(req *structpb.Struct, name string) (command.Touch, error) {
	v, err := requiredStruct(req, name)
	if err != nil {
		return command.Touch{}, err
	}
	x, err := requiredNumber(v, "x")
	if err != nil {
		return command.Touch{}, errors.Wrap(err, name)
	}
	y, err := requiredNumber(v, "y")
	if err != nil {
		return command.Touch{}, errors.Wrap(err, name)
	}
	at, err := requiredNumber(v, "at_ms")
	if err != nil {
		return command.Touch{}, errors.Wrap(err, name)
	}
	return command.Touch{X: x, Y: y, At: time.UnixMilli(int64(at))}, nil
}
