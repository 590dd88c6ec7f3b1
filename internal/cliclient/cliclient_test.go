package cliclient

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"discofabric/internal/client"
	"discofabric/internal/wire"
)

// fakeDirectory is a minimal wire.DirectoryServer stub exercising exactly
// the register/is_ready/lookup sequence cliclient drives, without pulling
// in the full router/registry stack.
type fakeDirectory struct {
	registered []wire.RegistrantInfo
	readyAfter int
	calls      int
}

func (f *fakeDirectory) Dispatch(ctx context.Context, req *wire.Envelope) (*wire.Reply, error) {
	switch req.Type {
	case wire.MessageRegister:
		f.registered = append(f.registered, req.Register.Info)
		return &wire.Reply{Type: wire.MessageRegister, Status: wire.StatusSuccess}, nil
	case wire.MessageIsReady:
		f.calls++
		return &wire.Reply{Type: wire.MessageIsReady, Status: wire.StatusSuccess, IsReady: wire.IsReadyReply{Ready: f.calls > f.readyAfter}}, nil
	case wire.MessageLookupByTopic:
		return &wire.Reply{Type: wire.MessageLookupByTopic, Status: wire.StatusSuccess, Lookup: wire.LookupReply{Registrants: f.registered}}, nil
	default:
		return &wire.Reply{Type: req.Type, Status: wire.StatusFailure, Reason: "unsupported"}, nil
	}
}

func startFakeDirectory(t *testing.T, f *fakeDirectory) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := grpc.NewServer()
	wire.RegisterDirectoryServer(s, f)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)
	return lis.Addr().String()
}

func TestRegisterWaitReadyLookupByTopicSequence(t *testing.T) {
	f := &fakeDirectory{readyAfter: 2}
	addr := startFakeDirectory(t, f)
	pool := client.New()
	t.Cleanup(func() { _ = pool.CloseAll() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	info := wire.RegistrantInfo{ID: "sub1", Addr: "127.0.0.1", Port: 6000}
	require.NoError(t, Register(ctx, pool, addr, wire.RoleSubscriber, info, []string{"weather"}))
	require.NoError(t, WaitReady(ctx, pool, addr))
	require.Greater(t, f.calls, f.readyAfter)

	registrants, err := LookupByTopic(ctx, pool, addr, []string{"weather"})
	require.NoError(t, err)
	require.Equal(t, []wire.RegistrantInfo{info}, registrants)
}
