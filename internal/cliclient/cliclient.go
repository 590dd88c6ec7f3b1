// Package cliclient holds the register/poll-ready/lookup sequence shared
// by the publisher, subscriber, and broker command-line clients: each
// walks through the same three calls against a directory node, differing
// only in role and in what it does with a lookup once ready.
package cliclient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"discofabric/internal/client"
	"discofabric/internal/wire"
)

// SplitTopics parses a comma-separated topic list from a CLI flag,
// trimming whitespace and dropping empty entries.
func SplitTopics(csv string) []string {
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// PollInterval is how often a client re-sends IS_READY while waiting for
// the directory to reach its configured exp_pub/exp_sub counts.
const PollInterval = 500 * time.Millisecond

// Register sends a single REGISTER request for info/topics under role to
// the directory node at addr.
func Register(ctx context.Context, pool *client.Pool, addr string, role wire.Role, info wire.RegistrantInfo, topics []string) error {
	req := &wire.Envelope{
		Type: wire.MessageRegister,
		Mode: wire.RoutingInitial,
		Register: wire.RegisterPayload{
			Role:   role,
			Info:   info,
			Topics: topics,
		},
	}
	reply, err := pool.Dispatch(ctx, addr, req)
	if err != nil {
		return fmt.Errorf("cliclient: register: %w", err)
	}
	if reply.Status != wire.StatusSuccess {
		return fmt.Errorf("cliclient: register failed: %s", reply.Reason)
	}
	return nil
}

// WaitReady polls IS_READY at PollInterval until the directory reports
// ready or ctx is done.
func WaitReady(ctx context.Context, pool *client.Pool, addr string) error {
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()
	for {
		req := &wire.Envelope{Type: wire.MessageIsReady, Mode: wire.RoutingInitial}
		reply, err := pool.Dispatch(ctx, addr, req)
		if err != nil {
			return fmt.Errorf("cliclient: is_ready: %w", err)
		}
		if reply.Status == wire.StatusSuccess && reply.IsReady.Ready {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// LookupByTopic asks the directory for every registrant matching topics.
func LookupByTopic(ctx context.Context, pool *client.Pool, addr string, topics []string) ([]wire.RegistrantInfo, error) {
	req := &wire.Envelope{
		Type:          wire.MessageLookupByTopic,
		Mode:          wire.RoutingInitial,
		LookupByTopic: wire.LookupByTopicPayload{Topics: topics},
	}
	reply, err := pool.Dispatch(ctx, addr, req)
	if err != nil {
		return nil, fmt.Errorf("cliclient: lookup_by_topic: %w", err)
	}
	if reply.Status != wire.StatusSuccess {
		return nil, fmt.Errorf("cliclient: lookup_by_topic failed: %s", reply.Reason)
	}
	return reply.Lookup.Registrants, nil
}

// LookupAll asks the directory for every registered publisher. Only valid
// under Broker dissemination; a Direct-mode directory answers NOT_ALLOWED.
func LookupAll(ctx context.Context, pool *client.Pool, addr string) ([]wire.RegistrantInfo, error) {
	req := &wire.Envelope{Type: wire.MessageLookupAll, Mode: wire.RoutingInitial}
	reply, err := pool.Dispatch(ctx, addr, req)
	if err != nil {
		return nil, fmt.Errorf("cliclient: lookup_all: %w", err)
	}
	if reply.Status != wire.StatusSuccess {
		return nil, fmt.Errorf("cliclient: lookup_all failed: %s", reply.Reason)
	}
	return reply.Lookup.Registrants, nil
}
