package rpc

import (
	"context"
	"fmt"
	"strings"

	"connectrpc.com/connect"
	"github.com/tailored-agentic-units/statebox/snapshot"
	"github.com/tailored-agentic-units/statebox/store"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls a remote store served by Service.
type Client struct {
	dispatch *connect.Client[structpb.Struct, structpb.Struct]
	snapshot *connect.Client[emptypb.Empty, structpb.Struct]
}

// NewClient creates a Client for the server at baseURL.
func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	return &Client{
		dispatch: connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+DispatchProcedure, opts...),
		snapshot: connect.NewClient[emptypb.Empty, structpb.Struct](httpClient, baseURL+SnapshotProcedure, opts...),
	}
}

// Dispatch runs subtree.action remotely and returns the state after the
// chain completed. param must be representable as a protobuf Value.
func (c *Client) Dispatch(ctx context.Context, subtree, action string, param any) (store.State, error) {
	fields := map[string]any{
		"subtree": subtree,
		"action":  action,
	}
	if param != nil {
		fields["param"] = param
	}

	msg, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to encode dispatch request: %w", err)
	}

	res, err := c.dispatch.CallUnary(ctx, connect.NewRequest(msg))
	if err != nil {
		return nil, err
	}
	return snapshot.Decode(res.Msg), nil
}

// Snapshot fetches the current remote state.
func (c *Client) Snapshot(ctx context.Context) (store.State, error) {
	res, err := c.snapshot.CallUnary(ctx, connect.NewRequest(&emptypb.Empty{}))
	if err != nil {
		return nil, err
	}
	return snapshot.Decode(res.Msg), nil
}
