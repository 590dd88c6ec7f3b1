// Package ctxutil provides the request-scoped context helpers shared by
// the router and server packages: trace id propagation, hop counting for
// the routing-upper-bound invariant, and deadline/cancellation checks.
package ctxutil

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"discofabric/internal/ring"
)

// unexported keys to avoid collisions
type traceKey struct{}
type hopsKey struct{}

// ContextOption configures the behavior of NewContext.
// Multiple options can be combined.
type ContextOption func(*ctxConfig)

type ctxConfig struct {
	withTrace bool
	withHops  bool
	nodeID    ring.ID
	timeout   time.Duration
}

// WithTrace enables attaching a fresh trace id to the created context, for
// correlating a client request with the internal fan-out it produces.
func WithTrace(nodeID ring.ID) ContextOption {
	return func(cfg *ctxConfig) {
		cfg.withTrace = true
		cfg.nodeID = nodeID
	}
}

// WithTimeout sets a timeout duration for the created context.
// The caller must defer the cancel function returned by NewContext.
func WithTimeout(d time.Duration) ContextOption {
	return func(cfg *ctxConfig) {
		cfg.timeout = d
	}
}

// WithHops initializes the hop counter at 0 in the context.
func WithHops() ContextOption {
	return func(cfg *ctxConfig) {
		cfg.withHops = true
	}
}

// NewContext creates a new context configured according to the provided options.
func NewContext(opts ...ContextOption) (context.Context, context.CancelFunc) {
	cfg := &ctxConfig{}
	for _, o := range opts {
		o(cfg)
	}

	var ctx context.Context
	var cancel context.CancelFunc
	if cfg.timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), cfg.timeout)
	} else {
		ctx = context.Background()
	}
	if cfg.withTrace {
		ctx = attachTraceID(ctx, cfg.nodeID)
	}
	if cfg.withHops {
		ctx = context.WithValue(ctx, hopsKey{}, 0)
	}

	return ctx, cancel
}

func attachTraceID(ctx context.Context, nodeID ring.ID) context.Context {
	return context.WithValue(ctx, traceKey{}, nodeID.ToHexString()+"/"+uuid.NewString())
}

// TraceIDFromContext extracts the trace id from ctx, or "" if not present.
func TraceIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(traceKey{}).(string)
	return id
}

// EnsureTraceID checks if the context already carries a trace id.
// If not, it attaches a new one derived from the provided nodeID.
// Returns the updated context (may be the same as input).
func EnsureTraceID(ctx context.Context, nodeID ring.ID) context.Context {
	if TraceIDFromContext(ctx) == "" {
		return attachTraceID(ctx, nodeID)
	}
	return ctx
}

// StartHops attaches a hop counter initialized to 0 to an existing
// context, for callers (like the router) that already have a context from
// elsewhere and just want hop tracking added to it.
func StartHops(ctx context.Context) context.Context {
	return context.WithValue(ctx, hopsKey{}, 0)
}

// HopsFromContext returns the current hop counter from the context.
// If not present, it returns -1 to indicate "not set".
func HopsFromContext(ctx context.Context) int {
	val := ctx.Value(hopsKey{})
	if hops, ok := val.(int); ok {
		return hops
	}
	return -1
}

// IncHops increments the hop counter in the context if present.
// If no hop counter is set, the original context is returned unchanged.
// Special case: if the hop counter is -1 ("don't track"), it remains -1.
func IncHops(ctx context.Context) context.Context {
	val := ctx.Value(hopsKey{})
	if hops, ok := val.(int); ok {
		if hops == -1 {
			return ctx
		}
		return context.WithValue(ctx, hopsKey{}, hops+1)
	}
	return ctx
}

// CheckContext verifies whether the provided context has been canceled
// or its deadline has expired.
//
// This helper is typically invoked at the beginning of an RPC handler
// to ensure that the request is still valid before performing any work.
func CheckContext(ctx context.Context) error {
	switch err := ctx.Err(); {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request was canceled by client")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "request deadline exceeded")
	default:
		return nil
	}
}
