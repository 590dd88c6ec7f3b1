package server

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestProtocolGuardFiresAtThreshold(t *testing.T) {
	var fired []int64
	guard := NewProtocolGuard(2, func(n int64) { fired = append(fired, n) })
	interceptor := guard.UnaryInterceptor()

	badHandler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, status.Errorf(codes.Internal, "wire: decode envelope: unexpected EOF")
	}
	info := &grpc.UnaryServerInfo{FullMethod: "/discofabric.wire.Directory/Dispatch"}

	_, _ = interceptor(context.Background(), nil, info, badHandler)
	require.Empty(t, fired)
	_, _ = interceptor(context.Background(), nil, info, badHandler)
	require.Equal(t, []int64{2}, fired)
}

func TestProtocolGuardIgnoresUnrelatedErrors(t *testing.T) {
	var fired []int64
	guard := NewProtocolGuard(1, func(n int64) { fired = append(fired, n) })
	interceptor := guard.UnaryInterceptor()

	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, status.Errorf(codes.FailedPrecondition, "name already exists")
	}
	info := &grpc.UnaryServerInfo{FullMethod: "/discofabric.wire.Directory/Dispatch"}

	_, _ = interceptor(context.Background(), nil, info, handler)
	require.Empty(t, fired)
	require.Equal(t, int64(0), guard.Count())
}
