package connect

import (
	"context"
	"net/http"
	"sync"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/osa030/moodbox/internal/app/notification"
	"github.com/osa030/moodbox/internal/app/session"
)

// KindInitial is the kind of the first message of every Watch stream.
const KindInitial = "initial"

// ViewerService implements the read-only ViewerService RPC.
type ViewerService struct {
	session *session.Manager
}

// NewViewerService creates a new ViewerService.
func NewViewerService(session *session.Manager) *ViewerService {
	return &ViewerService{session: session}
}

// Handler returns the service path and its handler.
func (s *ViewerService) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(ViewerServiceGetStateProcedure, connect.NewUnaryHandler(ViewerServiceGetStateProcedure, s.GetState, opts...))
	mux.Handle(ViewerServiceWatchProcedure, connect.NewServerStreamHandler(ViewerServiceWatchProcedure, s.Watch, opts...))
	return "/" + ViewerServiceName + "/", mux
}

// GetState returns the current session status.
func (s *ViewerService) GetState(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	msg, err := structpb.NewStruct(statusMap(s.session.Status()))
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}

// Watch streams notifications. The optional "kinds" field restricts the
// stream to the listed kinds (state, frame, mood, error).
func (s *ViewerService) Watch(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
	stream *connect.ServerStream[structpb.Struct],
) error {
	kinds, err := watchKinds(req.Msg)
	if err != nil {
		return connect.NewError(connect.CodeInvalidArgument, err)
	}

	// 1. Send the current state
	initial, err := notificationStruct(&notification.Notification{
		Kind:    KindInitial,
		Payload: s.session.Status(),
	})
	if err != nil {
		return connect.NewError(connect.CodeInternal, err)
	}
	if err := stream.Send(initial); err != nil {
		return err
	}

	// 2. Start the notification stream
	notifManager := s.session.GetNotificationManager()
	adapter := &notificationStreamAdapter{stream: stream}
	subscriptionID := notifManager.Subscribe(adapter, kinds...)
	zlog.Debug().Msgf("watch started: subscription_id=%s kinds=%v", subscriptionID, kinds)

	// Wait for context cancellation or session end
	select {
	case <-ctx.Done():
	case <-s.session.Done():
	}

	notifManager.Unsubscribe(subscriptionID)
	adapter.close()
	zlog.Debug().Msgf("watch ended: subscription_id=%s", subscriptionID)

	return nil
}

func watchKinds(req *structpb.Struct) ([]notification.Kind, error) {
	var kinds []notification.Kind
	for _, v := range req.GetFields()["kinds"].GetListValue().GetValues() {
		k := notification.Kind(v.GetStringValue())
		switch k {
		case notification.KindState, notification.KindFrame, notification.KindMood, notification.KindError:
			kinds = append(kinds, k)
		default:
			return nil, errors.Wrapf(errInvalidField, "unknown kind %q", v.GetStringValue())
		}
	}
	return kinds, nil
}

// notificationStreamAdapter adapts connect.ServerStream to notification.Stream.
// Broadcasts may overlap, so sends are serialized. The stream must not be
// used once the handler returns, so close waits for an in-flight send.
type notificationStreamAdapter struct {
	mu     sync.Mutex
	stream *connect.ServerStream[structpb.Struct]
	closed bool
}

var errStreamClosed = errors.New("stream closed")

func (a *notificationStreamAdapter) Send(n *notification.Notification) error {
	msg, err := notificationStruct(n)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return errStreamClosed
	}
	return a.stream.Send(msg)
}

func (a *notificationStreamAdapter) close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
}
