package connect

import (
	"context"
	"strings"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls the player and viewer services.
type Client struct {
	httpClient connect.HTTPClient
	baseURL    string
	opts       []connect.ClientOption
}

// NewClient creates a client for the server at baseURL. A non-empty token is
// sent with every unary call.
func NewClient(httpClient connect.HTTPClient, baseURL, token string, opts ...connect.ClientOption) *Client {
	if token != "" {
		opts = append(opts, connect.WithInterceptors(NewControlTokenInterceptor(token)))
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		opts:       opts,
	}
}

// Call invokes a unary procedure with the given request fields.
func (c *Client) Call(ctx context.Context, procedure string, fields map[string]any) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build request")
	}

	client := connect.NewClient[structpb.Struct, structpb.Struct](c.httpClient, c.baseURL+procedure, c.opts...)
	resp, err := client.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

// Watch streams notifications to fn until ctx is done, the stream ends or fn
// returns an error.
func (c *Client) Watch(ctx context.Context, kinds []string, fn func(*structpb.Struct) error) error {
	list := make([]any, len(kinds))
	for i, k := range kinds {
		list[i] = k
	}
	req, err := structpb.NewStruct(map[string]any{"kinds": list})
	if err != nil {
		return errors.Wrap(err, "failed to build request")
	}

	client := connect.NewClient[structpb.Struct, structpb.Struct](c.httpClient, c.baseURL+ViewerServiceWatchProcedure, c.opts...)
	stream, err := client.CallServerStream(ctx, connect.NewRequest(req))
	if err != nil {
		return err
	}
	defer stream.Close()

	for stream.Receive() {
		if err := fn(stream.Msg()); err != nil {
			return err
		}
	}
	return stream.Err()
}

// Result extracts the success, code and message fields of a PlayerService response.
func Result(msg *structpb.Struct) (success bool, code, message string) {
	f := msg.GetFields()
	return f["success"].GetBoolValue(), f["code"].GetStringValue(), f["message"].GetStringValue()
}
