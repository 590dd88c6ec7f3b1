package wire

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"discofabric/internal/ring"
)

func TestEnvelopeRoundTripRegister(t *testing.T) {
	e := &Envelope{
		Type:        MessageRegister,
		Mode:        RoutingInitial,
		HasKey:      true,
		Key:         ring.HashID("weather:p1"),
		Correlation: uuid.NewString(),
		Register: RegisterPayload{
			Role:   RolePublisher,
			Info:   RegistrantInfo{ID: "p1", Addr: "10.0.0.1", Port: 6000},
			Topics: []string{"weather", "sports"},
		},
	}
	data, err := e.Marshal()
	require.NoError(t, err)

	got, err := UnmarshalEnvelope(data)
	require.NoError(t, err)
	require.Equal(t, e, got)
}

func TestEnvelopeRoundTripLookupByTopic(t *testing.T) {
	e := &Envelope{
		Type:          MessageLookupByTopic,
		Mode:          RoutingForwardPred,
		Correlation:   uuid.NewString(),
		LookupByTopic: LookupByTopicPayload{Topics: []string{"sports"}},
	}
	data, err := e.Marshal()
	require.NoError(t, err)

	got, err := UnmarshalEnvelope(data)
	require.NoError(t, err)
	require.Equal(t, e, got)
}

func TestEnvelopeRoundTripEmptyPayloads(t *testing.T) {
	for _, typ := range []MessageType{MessageIsReady, MessageLookupAll} {
		e := &Envelope{Type: typ, Mode: RoutingForwardSucc, Correlation: uuid.NewString()}
		data, err := e.Marshal()
		require.NoError(t, err)
		got, err := UnmarshalEnvelope(data)
		require.NoError(t, err)
		require.Equal(t, e, got)
	}
}

func TestReplyRoundTrip(t *testing.T) {
	cases := []*Reply{
		{Type: MessageRegister, Status: StatusSuccess},
		{Type: MessageRegister, Status: StatusFailure, Reason: "name already exists"},
		{Type: MessageIsReady, Status: StatusSuccess, IsReady: IsReadyReply{Ready: true}},
		{
			Type:   MessageLookupByTopic,
			Status: StatusSuccess,
			Lookup: LookupReply{Registrants: []RegistrantInfo{
				{ID: "p1", Addr: "10.0.0.1", Port: 6000},
				{ID: "p2", Addr: "10.0.0.2", Port: 6001},
			}},
		},
		{Type: MessageLookupAll, Status: StatusSuccess, Lookup: LookupReply{}},
	}
	for _, want := range cases {
		data, err := want.Marshal()
		require.NoError(t, err)
		got, err := UnmarshalReply(data)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}
