package router

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"discofabric/internal/ctxutil"
	"discofabric/internal/logger"
	"discofabric/internal/ring"
	"discofabric/internal/wire"
)

// THop bounds a single routed hop (either a finger-table forward or a
// direct fan-out message to one ring member).
const THop = 2 * time.Second

// TReady bounds the aggregate wait for a global readiness or lookup
// fan-out to settle across every ring member.
const TReady = 5 * time.Second

// fanOutRegister decomposes a client REGISTER into one keyed sub-request
// per topic (or a single broker-slot key for role BOTH), routes each
// independently via the finger table, and aggregates: SUCCESS only if
// every sub-request succeeds. A sub-request that errors or times out is
// reported as a FAILURE reply carrying the error text.
func (e *Engine) fanOutRegister(ctx context.Context, req *wire.Envelope) (*wire.Reply, error) {
	role := req.Register.Role
	info := req.Register.Info

	if role == wire.RoleBoth {
		key := brokerKey(info.ID)
		sub := &wire.Envelope{
			Type:        wire.MessageRegister,
			Mode:        wire.RoutingInitial,
			HasKey:      true,
			Key:         key,
			Correlation: req.Correlation,
			Register:    wire.RegisterPayload{Role: role, Info: info, Topics: req.Register.Topics},
		}
		return e.dispatchOneKeyed(ctxutil.StartHops(ctx), sub)
	}

	topics := req.Register.Topics
	type outcome struct {
		reply *wire.Reply
		err   error
	}
	outcomes := make([]outcome, len(topics))

	var wg sync.WaitGroup
	for i, topic := range topics {
		wg.Add(1)
		go func(i int, topic string) {
			defer wg.Done()
			hopCtx := ctxutil.StartHops(ctx)

			sub := &wire.Envelope{
				Type:        wire.MessageRegister,
				Mode:        wire.RoutingInitial,
				HasKey:      true,
				Key:         topicKey(topic, info.ID),
				Correlation: uuid.NewString(),
				Register:    wire.RegisterPayload{Role: role, Info: info, Topics: []string{topic}},
			}
			reply, err := e.dispatchOneKeyed(hopCtx, sub)
			outcomes[i] = outcome{reply: reply, err: err}
		}(i, topic)
	}
	wg.Wait()

	for _, o := range outcomes {
		if o.err != nil {
			return &wire.Reply{Type: wire.MessageRegister, Status: wire.StatusFailure, Reason: o.err.Error()}, nil
		}
		if o.reply.Status != wire.StatusSuccess {
			return o.reply, nil
		}
	}
	return &wire.Reply{Type: wire.MessageRegister, Status: wire.StatusSuccess}, nil
}

func (e *Engine) dispatchOneKeyed(ctx context.Context, sub *wire.Envelope) (*wire.Reply, error) {
	return e.routeKeyed(ctx, sub)
}

func topicKey(topic, id string) ring.ID {
	return ring.HashID(topic + ":" + id)
}

func brokerKey(id string) ring.ID {
	return ring.HashID("broker:" + id)
}

// fanOutIsReady asks every ring member (including itself) for its local
// readiness and ANDs the results together, bounded by TReady.
func (e *Engine) fanOutIsReady(ctx context.Context, req *wire.Envelope) (*wire.Reply, error) {
	ctx, cancel := context.WithTimeout(ctx, TReady)
	defer cancel()

	replies, err := e.gatherAll(ctx, req)
	if err != nil {
		return nil, err
	}

	ready := true
	for _, r := range replies {
		if r == nil || r.Status != wire.StatusSuccess || !r.IsReady.Ready {
			ready = false
			break
		}
	}
	return &wire.Reply{Type: wire.MessageIsReady, Status: wire.StatusSuccess, IsReady: wire.IsReadyReply{Ready: ready}}, nil
}

// fanOutLookupByTopic asks every ring member for its local view of the
// requested topics and returns the deduplicated union.
func (e *Engine) fanOutLookupByTopic(ctx context.Context, req *wire.Envelope) (*wire.Reply, error) {
	ctx, cancel := context.WithTimeout(ctx, TReady)
	defer cancel()

	replies, err := e.gatherAll(ctx, req)
	if err != nil {
		return nil, err
	}

	type regKey struct {
		id   string
		addr string
		port int
	}
	seen := make(map[regKey]struct{})
	var out []wire.RegistrantInfo
	for _, r := range replies {
		if r == nil || r.Status != wire.StatusSuccess {
			continue
		}
		for _, reg := range r.Lookup.Registrants {
			k := regKey{reg.ID, reg.Addr, reg.Port}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, reg)
		}
	}
	return &wire.Reply{Type: wire.MessageLookupByTopic, Status: wire.StatusSuccess, Lookup: wire.LookupReply{Registrants: out}}, nil
}

// fanOutLookupAll checks this node's own dissemination mode first: in
// direct mode every member would refuse identically, so the failure is
// returned without fanning out at all.
func (e *Engine) fanOutLookupAll(ctx context.Context, req *wire.Envelope) (*wire.Reply, error) {
	if _, err := e.store.LookupAll(); err != nil {
		return &wire.Reply{Type: wire.MessageLookupAll, Status: wire.StatusFailure, Reason: err.Error()}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, TReady)
	defer cancel()

	replies, err := e.gatherAll(ctx, req)
	if err != nil {
		return nil, err
	}

	var out []wire.RegistrantInfo
	for _, r := range replies {
		if r == nil || r.Status != wire.StatusSuccess {
			continue
		}
		out = append(out, r.Lookup.Registrants...)
	}
	return &wire.Reply{Type: wire.MessageLookupAll, Status: wire.StatusSuccess, Lookup: wire.LookupReply{Registrants: out}}, nil
}

// gatherAll sends req (re-tagged FORWARD_SUCC, meaning "answer from your
// own local store, do not fan out further") to every ring member,
// including this node, and collects whatever replies arrive before ctx is
// done. A member that errors or times out is simply omitted from the
// result, per spec.md's "best effort within the deadline" failure
// semantics for these message types.
func (e *Engine) gatherAll(ctx context.Context, req *wire.Envelope) ([]*wire.Reply, error) {
	members := e.table.Members()
	replies := make([]*wire.Reply, len(members))

	sub := *req
	sub.Mode = wire.RoutingForwardSucc
	if sub.Correlation == "" {
		sub.Correlation = uuid.NewString()
	}

	var wg sync.WaitGroup
	for i, m := range members {
		wg.Add(1)
		go func(i int, m ring.Node) {
			defer wg.Done()
			hopCtx, cancel := context.WithTimeout(ctx, THop)
			defer cancel()

			if m.ID.Equal(e.table.Self().ID) {
				reply, err := e.Dispatch(hopCtx, &sub)
				if err != nil {
					e.logger.Warn("router: local fan-out handler failed", logger.F("err", err.Error()))
					return
				}
				replies[i] = reply
				return
			}

			reply, err := e.pool.Dispatch(hopCtx, m.HostPort(), &sub)
			if err != nil {
				e.logger.Warn("router: fan-out hop failed",
					logger.F("peer", m.Name),
					logger.F("err", err.Error()),
				)
				return
			}
			replies[i] = reply
		}(i, m)
	}
	wg.Wait()

	return replies, nil
}
