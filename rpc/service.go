// Package rpc serves a store over Connect. The service is built from
// generic unary handlers over well-known protobuf types, so it needs no
// generated code:
//
//	svc := rpc.NewService(s, cfg)
//	path, handler := svc.Handler()
//	mux.Handle(path, handler)
package rpc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/tailored-agentic-units/statebox/observability"
	"github.com/tailored-agentic-units/statebox/snapshot"
	"github.com/tailored-agentic-units/statebox/store"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// ServicePath is the URL prefix every procedure lives under.
	ServicePath = "/statebox.v1.StoreService/"

	DispatchProcedure = ServicePath + "Dispatch"
	SnapshotProcedure = ServicePath + "Snapshot"
)

// RPC event types.
const (
	EventDispatch         observability.EventType = "rpc.dispatch"
	EventDispatchComplete observability.EventType = "rpc.dispatch.complete"
	EventDispatchError    observability.EventType = "rpc.dispatch.error"
)

// Option configures a Service.
type Option func(*Service)

// WithObserver sets the observer for RPC events. Defaults to NoOpObserver.
func WithObserver(o observability.Observer) Option {
	return func(s *Service) { s.observer = o }
}

// Service exposes Dispatch and Snapshot for one store.
type Service struct {
	store    *store.Store
	timeout  time.Duration
	observer observability.Observer
}

// NewService creates a Service for s.
func NewService(s *store.Store, cfg Config, opts ...Option) *Service {
	svc := &Service{
		store:    s,
		timeout:  time.Duration(cfg.DispatchTimeout),
		observer: observability.NoOpObserver{},
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Handler returns the path prefix and the handler serving every procedure.
func (svc *Service) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(DispatchProcedure, connect.NewUnaryHandler(DispatchProcedure, svc.Dispatch, opts...))
	mux.Handle(SnapshotProcedure, connect.NewUnaryHandler(SnapshotProcedure, svc.Snapshot, opts...))
	return ServicePath, mux
}

// Dispatch runs an action and waits for its chain to complete. The request
// carries "subtree", "action" and an optional "param"; the response is the
// state snapshot taken after completion.
func (svc *Service) Dispatch(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	fields := req.Msg.GetFields()
	subtree := fields["subtree"].GetStringValue()
	action := fields["action"].GetStringValue()

	var param any
	if v, ok := fields["param"]; ok {
		param = v.AsInterface()
	}

	svc.emit(ctx, EventDispatch, observability.LevelInfo, subtree, action, nil)
	start := time.Now()

	if svc.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, svc.timeout)
		defer cancel()
	}

	done := make(chan struct{})
	if err := svc.store.Dispatch(subtree, action, param, func() { close(done) }); err != nil {
		connectErr := connect.NewError(dispatchCode(err), err)
		svc.emit(ctx, EventDispatchError, observability.LevelWarning, subtree, action, map[string]any{
			"code":  connectErr.Code().String(),
			"error": err.Error(),
		})
		return nil, connectErr
	}

	select {
	case <-done:
	case <-ctx.Done():
		err := fmt.Errorf("%s.%s did not complete: %w", subtree, action, ctx.Err())
		svc.emit(ctx, EventDispatchError, observability.LevelWarning, subtree, action, map[string]any{
			"code":  connect.CodeDeadlineExceeded.String(),
			"error": err.Error(),
		})
		return nil, connect.NewError(connect.CodeDeadlineExceeded, err)
	}

	state, err := snapshot.Encode(svc.store.Snapshot())
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	svc.emit(ctx, EventDispatchComplete, observability.LevelInfo, subtree, action, map[string]any{
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return connect.NewResponse(state), nil
}

// Snapshot returns the current state.
func (svc *Service) Snapshot(ctx context.Context, _ *connect.Request[emptypb.Empty]) (*connect.Response[structpb.Struct], error) {
	state, err := snapshot.Encode(svc.store.Snapshot())
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(state), nil
}

func dispatchCode(err error) connect.Code {
	var actionErr *store.ActionError
	switch {
	case errors.Is(err, store.ErrUnknownSubtree), errors.Is(err, store.ErrUnknownAction):
		return connect.CodeNotFound
	case errors.As(err, &actionErr):
		return connect.CodeFailedPrecondition
	default:
		return connect.CodeInternal
	}
}

func (svc *Service) emit(ctx context.Context, eventType observability.EventType, level observability.Level, subtree, action string, data map[string]any) {
	if data == nil {
		data = make(map[string]any, 2)
	}
	data["subtree"] = subtree
	data["action"] = action

	svc.observer.OnEvent(ctx, observability.Event{
		Type:      eventType,
		Level:     level,
		Timestamp: time.Now(),
		Source:    "rpc.Dispatch",
		Data:      data,
	})
}
