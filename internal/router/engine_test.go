package router

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"discofabric/internal/client"
	"discofabric/internal/registry"
	"discofabric/internal/ring"
	"discofabric/internal/wire"
)

// testNode bundles the pieces a real ring member needs: its finger table,
// local registry, and a gRPC server exposing the engine over an actual
// loopback listener, so fan-out and finger-forwarding exercise the wire
// codec exactly as production would.
type testNode struct {
	node   ring.Node
	table  *ring.Table
	store  *registry.Store
	engine *Engine
	server *grpc.Server
}

// buildRing stands up n directory nodes on real loopback listeners, wires
// each with a finger table over the full membership, and returns them
// along with a shutdown func.
func buildRing(t *testing.T, n int, dissemination registry.Dissemination, expPub, expSub int) ([]*testNode, func()) {
	t.Helper()

	listeners := make([]net.Listener, n)
	members := make([]ring.Node, n)
	for i := 0; i < n; i++ {
		lis, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		listeners[i] = lis
		port := lis.Addr().(*net.TCPAddr).Port
		name := fmt.Sprintf("node-%d", i)
		members[i] = ring.Node{
			ID:   ring.HashID(fmt.Sprintf("%s:%d", name, port)),
			Name: name,
			Addr: "127.0.0.1",
			Port: port,
		}
	}

	pool := client.New()
	nodes := make([]*testNode, n)
	for i := 0; i < n; i++ {
		table, err := ring.NewTable(members[i], members)
		require.NoError(t, err)
		store := registry.New(dissemination, expPub, expSub)
		engine := New(table, store, pool)
		srv := grpc.NewServer()
		wire.RegisterDirectoryServer(srv, engine)

		nodes[i] = &testNode{node: members[i], table: table, store: store, engine: engine, server: srv}
		go srv.Serve(listeners[i])
	}

	// Give the listeners a moment to start accepting before the first dial.
	time.Sleep(20 * time.Millisecond)

	cleanup := func() {
		for _, n := range nodes {
			n.server.Stop()
		}
		pool.CloseAll()
	}
	return nodes, cleanup
}

func TestRouteKeyedLocalHandlingSingleNode(t *testing.T) {
	nodes, cleanup := buildRing(t, 1, registry.Direct, 1, 0)
	defer cleanup()

	req := &wire.Envelope{
		Type: wire.MessageRegister,
		Mode: wire.RoutingInitial,
		Register: wire.RegisterPayload{
			Role:   wire.RolePublisher,
			Info:   wire.RegistrantInfo{ID: "p1", Addr: "10.0.0.1", Port: 6000},
			Topics: []string{"weather"},
		},
	}
	reply, err := nodes[0].engine.Dispatch(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, wire.StatusSuccess, reply.Status)
}

func TestFanOutRegisterAcrossRingAndLookup(t *testing.T) {
	nodes, cleanup := buildRing(t, 4, registry.Direct, 1, 1)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	registerReq := &wire.Envelope{
		Type: wire.MessageRegister,
		Mode: wire.RoutingInitial,
		Register: wire.RegisterPayload{
			Role:   wire.RolePublisher,
			Info:   wire.RegistrantInfo{ID: "p1", Addr: "10.0.0.1", Port: 6000},
			Topics: []string{"weather", "sports"},
		},
	}
	reply, err := nodes[0].engine.Dispatch(ctx, registerReq)
	require.NoError(t, err)
	require.Equal(t, wire.StatusSuccess, reply.Status, reply.Reason)

	lookupReq := &wire.Envelope{
		Type:          wire.MessageLookupByTopic,
		Mode:          wire.RoutingInitial,
		LookupByTopic: wire.LookupByTopicPayload{Topics: []string{"weather"}},
	}
	// Any node may be asked; the fan-out must find the registrant regardless
	// of which node owns the "weather:p1" key.
	reply, err = nodes[2].engine.Dispatch(ctx, lookupReq)
	require.NoError(t, err)
	require.Equal(t, wire.StatusSuccess, reply.Status)
	require.Equal(t, []wire.RegistrantInfo{{ID: "p1", Addr: "10.0.0.1", Port: 6000}}, reply.Lookup.Registrants)
}

func TestFanOutRegisterNameCollisionPropagates(t *testing.T) {
	nodes, cleanup := buildRing(t, 3, registry.Direct, 2, 0)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	info := wire.RegistrantInfo{ID: "p1", Addr: "10.0.0.1", Port: 6000}
	first := &wire.Envelope{
		Type:     wire.MessageRegister,
		Mode:     wire.RoutingInitial,
		Register: wire.RegisterPayload{Role: wire.RolePublisher, Info: info, Topics: []string{"a"}},
	}
	reply, err := nodes[0].engine.Dispatch(ctx, first)
	require.NoError(t, err)
	require.Equal(t, wire.StatusSuccess, reply.Status)

	second := &wire.Envelope{
		Type:     wire.MessageRegister,
		Mode:     wire.RoutingInitial,
		Register: wire.RegisterPayload{Role: wire.RoleSubscriber, Info: info, Topics: []string{"a"}},
	}
	reply, err = nodes[1].engine.Dispatch(ctx, second)
	require.NoError(t, err)
	require.Equal(t, wire.StatusFailure, reply.Status)
	require.Equal(t, "name already exists", reply.Reason)
}

// Readiness per spec.md's resolved open question is strictly per-node:
// each node compares its own local counters against the shared exp_pub/
// exp_sub totals, and global IS_READY is the AND across every node's local
// verdict. With more than one ring member, which node ends up owning a
// given registrant's key is a hash-placement detail, so this case pins a
// single-node ring where every registration is necessarily local.
func TestFanOutIsReadyRequiresEveryNode(t *testing.T) {
	nodes, cleanup := buildRing(t, 1, registry.Direct, 1, 1)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	readyReq := &wire.Envelope{Type: wire.MessageIsReady, Mode: wire.RoutingInitial}
	reply, err := nodes[0].engine.Dispatch(ctx, readyReq)
	require.NoError(t, err)
	require.False(t, reply.IsReady.Ready)

	reg := &wire.Envelope{
		Type: wire.MessageRegister,
		Mode: wire.RoutingInitial,
		Register: wire.RegisterPayload{
			Role:   wire.RolePublisher,
			Info:   wire.RegistrantInfo{ID: "p1", Addr: "10.0.0.1", Port: 1},
			Topics: []string{"only-topic"},
		},
	}
	r, err := nodes[0].engine.Dispatch(ctx, reg)
	require.NoError(t, err)
	require.Equal(t, wire.StatusSuccess, r.Status)

	sub := &wire.Envelope{
		Type: wire.MessageRegister,
		Mode: wire.RoutingInitial,
		Register: wire.RegisterPayload{
			Role:   wire.RoleSubscriber,
			Info:   wire.RegistrantInfo{ID: "s1", Addr: "10.0.0.2", Port: 2},
			Topics: []string{"only-topic"},
		},
	}
	r, err = nodes[0].engine.Dispatch(ctx, sub)
	require.NoError(t, err)
	require.Equal(t, wire.StatusSuccess, r.Status)

	reply, err = nodes[0].engine.Dispatch(ctx, readyReq)
	require.NoError(t, err)
	require.True(t, reply.IsReady.Ready)
}

func TestFanOutLookupAllNotAllowedInDirectMode(t *testing.T) {
	nodes, cleanup := buildRing(t, 2, registry.Direct, 0, 0)
	defer cleanup()

	reply, err := nodes[0].engine.Dispatch(context.Background(), &wire.Envelope{Type: wire.MessageLookupAll, Mode: wire.RoutingInitial})
	require.NoError(t, err)
	require.Equal(t, wire.StatusFailure, reply.Status)
	require.Equal(t, "lookall not permitted in direct mode", reply.Reason)
}
