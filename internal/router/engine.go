// Package router implements the DHT routing engine: per-key routing by
// finger table for REGISTER, and all-member fan-out/gather for IS_READY,
// LOOKUP_BY_TOPIC and LOOKUP_ALL.
package router

import (
	"context"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"discofabric/internal/client"
	"discofabric/internal/ctxutil"
	"discofabric/internal/logger"
	"discofabric/internal/registry"
	"discofabric/internal/ring"
	"discofabric/internal/wire"
)

// maxHops bounds the hop counter routeKeyed reads from the request context
// before it refuses to continue. A correctly built finger table never
// needs more than ring.Bits hops. The counter is a context value and is not
// carried in a forwarded envelope, so it counts only the hops taken within
// one process; forwards between nodes are not bounded by it.
const maxHops = ring.Bits

// Engine is the per-node request router: it decides whether an incoming
// envelope is handled locally by the registry, or forwarded to the next
// hop on the finger table.
type Engine struct {
	logger logger.Logger
	table  *ring.Table
	store  *registry.Store
	pool   *client.Pool
}

// Option customizes Engine construction.
type Option func(*Engine)

// WithLogger attaches a structured logger to the engine.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New builds a routing engine over the given finger table, local registry
// store, and outbound connection pool.
func New(table *ring.Table, store *registry.Store, pool *client.Pool, opts ...Option) *Engine {
	e := &Engine{
		logger: &logger.NopLogger{},
		table:  table,
		store:  store,
		pool:   pool,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Dispatch is the engine's single entry point for both client-originated
// requests and inter-node forwards, disambiguated by req.Mode.
func (e *Engine) Dispatch(ctx context.Context, req *wire.Envelope) (*wire.Reply, error) {
	if err := ctxutil.CheckContext(ctx); err != nil {
		return nil, err
	}

	switch req.Type {
	case wire.MessageRegister:
		if req.Mode == wire.RoutingInitial && !req.HasKey {
			return e.fanOutRegister(ctx, req)
		}
		return e.routeKeyed(ctx, req)

	case wire.MessageIsReady:
		if req.Mode == wire.RoutingInitial {
			return e.fanOutIsReady(ctx, req)
		}
		return &wire.Reply{
			Type:    wire.MessageIsReady,
			Status:  wire.StatusSuccess,
			IsReady: wire.IsReadyReply{Ready: e.store.LocalReady()},
		}, nil

	case wire.MessageLookupByTopic:
		if req.Mode == wire.RoutingInitial {
			return e.fanOutLookupByTopic(ctx, req)
		}
		return &wire.Reply{
			Type:   wire.MessageLookupByTopic,
			Status: wire.StatusSuccess,
			Lookup: wire.LookupReply{Registrants: e.store.LookupByTopic(req.LookupByTopic.Topics)},
		}, nil

	case wire.MessageLookupAll:
		if req.Mode == wire.RoutingInitial {
			return e.fanOutLookupAll(ctx, req)
		}
		regs, err := e.store.LookupAll()
		if err != nil {
			return &wire.Reply{Type: wire.MessageLookupAll, Status: wire.StatusFailure, Reason: err.Error()}, nil
		}
		return &wire.Reply{Type: wire.MessageLookupAll, Status: wire.StatusSuccess, Lookup: wire.LookupReply{Registrants: regs}}, nil

	default:
		return nil, status.Errorf(codes.Internal, "router: unknown message type %d", req.Type)
	}
}

// routeKeyed handles a single-key REGISTER sub-request: if the key falls
// in this node's range it is applied to the local registry; otherwise the
// envelope is re-tagged and forwarded to the closest preceding finger.
func (e *Engine) routeKeyed(ctx context.Context, req *wire.Envelope) (*wire.Reply, error) {
	if !req.HasKey {
		return nil, status.Error(codes.Internal, "router: keyed dispatch without a key")
	}
	if hops := ctxutil.HopsFromContext(ctx); hops > maxHops {
		return nil, status.Errorf(codes.Internal, "router: exceeded %d hops routing key %s", maxHops, req.Key.ToHexString())
	}
	ctx = ctxutil.IncHops(ctx)

	if e.table.InRange(req.Key) {
		err := e.store.Register(req.Register.Role, req.Register.Info, req.Register.Topics)
		if err != nil {
			return &wire.Reply{Type: wire.MessageRegister, Status: wire.StatusFailure, Reason: err.Error()}, nil
		}
		return &wire.Reply{Type: wire.MessageRegister, Status: wire.StatusSuccess}, nil
	}

	finger := e.table.ClosestPrecedingFinger(req.Key)
	mode := wire.RoutingForwardPred
	if finger.ID.Equal(e.table.Successor().ID) {
		mode = wire.RoutingForwardSucc
	}

	fwd := *req
	fwd.Mode = mode
	e.logger.Debug("router: forwarding register sub-request",
		logger.F("key", req.Key.ToHexString()),
		logger.F("next_hop", finger.Name),
		logger.F("mode", mode.String()),
	)
	hopCtx, cancel := context.WithTimeout(ctx, THop)
	defer cancel()
	reply, err := e.pool.Dispatch(hopCtx, finger.HostPort(), &fwd)
	if err != nil {
		return nil, fmt.Errorf("router: forward to %s: %w", finger.Name, err)
	}
	return reply, nil
}
