package connect

import (
	"context"
	"crypto/subtle"

	"connectrpc.com/connect"

	"github.com/osa030/moodbox/internal/infra/config"
)

const (
	// ControlTokenHeader is the header name for the control token.
	ControlTokenHeader = "X-Control-Token"
)

// ValidToken reports whether token matches the configured control token.
func ValidToken(cfg *config.Config, token string) bool {
	if token == "" || cfg.Control.Token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(cfg.Control.Token)) == 1
}

// NewControlAuthInterceptor creates an interceptor that validates the control
// token from request headers for PlayerService methods.
func NewControlAuthInterceptor(cfg *config.Config) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if !ValidToken(cfg, req.Header().Get(ControlTokenHeader)) {
				return nil, connect.NewError(connect.CodeUnauthenticated, nil)
			}
			return next(ctx, req)
		}
	}
}

// NewControlTokenInterceptor creates a client interceptor that attaches token
// to outgoing requests.
func NewControlTokenInterceptor(token string) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if req.Spec().IsClient && token != "" {
				req.Header().Set(ControlTokenHeader, token)
			}
			return next(ctx, req)
		}
	}
}
