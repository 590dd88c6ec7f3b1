package registry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"discofabric/internal/wire"
)

func TestRegisterDuplicateIsNameCollision(t *testing.T) {
	s := New(Direct, 1, 1)
	info := wire.RegistrantInfo{ID: "p1", Addr: "10.0.0.1", Port: 6000}

	require.NoError(t, s.Register(wire.RolePublisher, info, []string{"weather"}))
	err := s.Register(wire.RolePublisher, info, []string{"weather"})
	require.ErrorIs(t, err, ErrNameCollision)
}

func TestRegisterSameIDSameRoleTwiceIsNameCollision(t *testing.T) {
	s := New(Direct, 1, 1)
	info := wire.RegistrantInfo{ID: "p1", Addr: "10.0.0.1", Port: 6000}
	require.NoError(t, s.Register(wire.RolePublisher, info, []string{"weather"}))

	err := s.Register(wire.RolePublisher, info, []string{"sports"})
	require.ErrorIs(t, err, ErrNameCollision)
}

func TestRegisterCrossRoleSameIDIsNameCollision(t *testing.T) {
	s := New(Direct, 1, 1)
	addr := wire.RegistrantInfo{ID: "p1", Addr: "10.0.0.1", Port: 6000}

	require.NoError(t, s.Register(wire.RolePublisher, addr, []string{"weather"}))
	err := s.Register(wire.RoleSubscriber, addr, []string{"weather"})
	require.ErrorIs(t, err, ErrNameCollision)
}

func TestBrokerUniqueness(t *testing.T) {
	s := New(Broker, 1, 1)
	b1 := wire.RegistrantInfo{ID: "b1", Addr: "10.0.0.9", Port: 7000}
	b2 := wire.RegistrantInfo{ID: "b2", Addr: "10.0.0.10", Port: 7001}

	require.NoError(t, s.Register(wire.RoleBoth, b1, nil))
	err := s.Register(wire.RoleBoth, b2, nil)
	require.ErrorIs(t, err, ErrBrokerCollision)
}

func TestReadinessRequiresCountsAndBroker(t *testing.T) {
	s := New(Broker, 1, 1)
	require.False(t, s.LocalReady())

	require.NoError(t, s.Register(wire.RolePublisher, wire.RegistrantInfo{ID: "p1", Addr: "a", Port: 1}, []string{"sports"}))
	require.NoError(t, s.Register(wire.RoleSubscriber, wire.RegistrantInfo{ID: "s1", Addr: "b", Port: 2}, []string{"sports"}))
	require.False(t, s.LocalReady(), "broker slot still empty")

	require.NoError(t, s.Register(wire.RoleBoth, wire.RegistrantInfo{ID: "b1", Addr: "c", Port: 3}, nil))
	require.True(t, s.LocalReady())
}

func TestLookupByTopicDirectMode(t *testing.T) {
	s := New(Direct, 1, 1)
	require.NoError(t, s.Register(wire.RolePublisher, wire.RegistrantInfo{ID: "p1", Addr: "10.0.0.1", Port: 6000}, []string{"sports", "weather"}))

	got := s.LookupByTopic([]string{"sports"})
	require.Equal(t, []wire.RegistrantInfo{{ID: "p1", Addr: "10.0.0.1", Port: 6000}}, got)
}

func TestLookupByTopicBrokerModeReturnsBrokerOnly(t *testing.T) {
	s := New(Broker, 1, 1)
	require.NoError(t, s.Register(wire.RolePublisher, wire.RegistrantInfo{ID: "p1", Addr: "10.0.0.1", Port: 6000}, []string{"sports"}))
	require.NoError(t, s.Register(wire.RoleBoth, wire.RegistrantInfo{ID: "b1", Addr: "10.0.0.9", Port: 7000}, nil))

	got := s.LookupByTopic([]string{"sports"})
	require.Equal(t, []wire.RegistrantInfo{{ID: "b1", Addr: "10.0.0.9", Port: 7000}}, got)
}

func TestLookupByTopicBrokerModeEmptySlotReturnsEmpty(t *testing.T) {
	s := New(Broker, 1, 1)
	got := s.LookupByTopic([]string{"sports"})
	require.Empty(t, got)
}

func TestLookupAllNotAllowedInDirectMode(t *testing.T) {
	s := New(Direct, 1, 1)
	_, err := s.LookupAll()
	require.ErrorIs(t, err, ErrNotAllowed)
}

func TestLookupAllEnumeratesPublishersInBrokerMode(t *testing.T) {
	s := New(Broker, 2, 0)
	require.NoError(t, s.Register(wire.RolePublisher, wire.RegistrantInfo{ID: "p1", Addr: "a", Port: 1}, []string{"x"}))
	require.NoError(t, s.Register(wire.RolePublisher, wire.RegistrantInfo{ID: "p2", Addr: "b", Port: 2}, []string{"y"}))

	got, err := s.LookupAll()
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestFanOutIdempotence(t *testing.T) {
	s := New(Direct, 1, 1)
	require.NoError(t, s.Register(wire.RolePublisher, wire.RegistrantInfo{ID: "p1", Addr: "a", Port: 1}, []string{"sports"}))

	first := s.LookupByTopic([]string{"sports"})
	second := s.LookupByTopic([]string{"sports"})
	require.Equal(t, first, second)
}
