package server

import (
	"context"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/peer"
)

// Sequencer enforces spec.md §5's ordering guarantee: responses on a given
// inbound endpoint are emitted in the order their requests arrived on
// that endpoint, even when handling itself runs concurrently across
// requests (a fan-out in flight for one request must not block, or be
// overtaken in response order by, a later request on the same endpoint).
//
// Each endpoint gets its own baton, implemented as a chain of channels:
// Enter hands the caller the previous request's "done" channel (its
// turn-to-respond signal) and a release func that signals the next
// request in line once this one has written its response.
type Sequencer struct {
	mu   sync.Mutex
	last map[string]chan struct{}
}

// NewSequencer creates an empty sequencer.
func NewSequencer() *Sequencer {
	return &Sequencer{last: make(map[string]chan struct{})}
}

// Enter reserves the next turn for key (typically the inbound endpoint's
// remote address). turn closes once every earlier request on this key has
// released; release must be called exactly once, after the response has
// been written, to let the next request take its turn.
func (s *Sequencer) Enter(key string) (turn <-chan struct{}, release func()) {
	s.mu.Lock()
	prev, ok := s.last[key]
	mine := make(chan struct{})
	s.last[key] = mine
	s.mu.Unlock()

	if !ok {
		closed := make(chan struct{})
		close(closed)
		prev = closed
	}
	var once sync.Once
	return prev, func() { once.Do(func() { close(mine) }) }
}

// UnaryInterceptor returns a grpc.UnaryServerInterceptor that lets handler
// invocations run concurrently but serializes the point at which their
// responses are returned to gRPC, per remote endpoint, in arrival order.
func (s *Sequencer) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		key := peerKey(ctx)
		turn, release := s.Enter(key)
		defer release()

		resp, err := handler(ctx, req)

		select {
		case <-turn:
		case <-ctx.Done():
		}
		return resp, err
	}
}

func peerKey(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return "unknown"
	}
	return p.Addr.String()
}
