package server

import (
	"context"
	"strings"
	"sync/atomic"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// ProtocolGuard counts malformed-envelope (PROTOCOL) errors across every
// inbound Dispatch call and calls onExceeded once the running count reaches
// threshold, matching spec.md §7's "counted toward exit code 2 if
// repeated" rule for a single, isolated bad frame versus a misbehaving
// peer hammering the endpoint with garbage.
type ProtocolGuard struct {
	threshold  int64
	count      int64
	onExceeded func(count int64)
}

// NewProtocolGuard builds a guard that fires onExceeded the first time the
// violation count reaches threshold. onExceeded may be called more than
// once if violations keep arriving; callers that only want a single
// shutdown trigger should guard with sync.Once.
func NewProtocolGuard(threshold int64, onExceeded func(count int64)) *ProtocolGuard {
	return &ProtocolGuard{threshold: threshold, onExceeded: onExceeded}
}

// Count returns the current violation count.
func (g *ProtocolGuard) Count() int64 {
	return atomic.LoadInt64(&g.count)
}

// UnaryInterceptor wraps handler, inspecting the returned error for the
// "decode envelope" marker dispatchHandler attaches to malformed frames.
func (g *ProtocolGuard) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		resp, err := handler(ctx, req)
		if isProtocolViolation(err) {
			n := atomic.AddInt64(&g.count, 1)
			if n >= g.threshold && g.onExceeded != nil {
				g.onExceeded(n)
			}
		}
		return resp, err
	}
}

func isProtocolViolation(err error) bool {
	if err == nil {
		return false
	}
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	return strings.Contains(st.Message(), "decode envelope")
}
