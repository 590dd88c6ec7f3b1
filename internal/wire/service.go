package wire

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ServiceName is the fully-qualified gRPC service name, in the shape
// protoc-gen-go-grpc emits for a package-qualified service.
const ServiceName = "discofabric.wire.Directory"

// DirectoryServer is the interface a directory node implements to answer
// Dispatch calls, whether they arrive from a client or from another ring
// member as a forward.
type DirectoryServer interface {
	Dispatch(ctx context.Context, req *Envelope) (*Reply, error)
}

// DirectoryClient is the interface generated client stubs satisfy.
type DirectoryClient interface {
	Dispatch(ctx context.Context, req *Envelope, opts ...grpc.CallOption) (*Reply, error)
}

type directoryClient struct {
	cc grpc.ClientConnInterface
}

// NewDirectoryClient builds a client stub bound to cc, forcing the
// discofabric binary codec as the call's content-subtype so gRPC never
// attempts to treat the payload as protobuf.
func NewDirectoryClient(cc grpc.ClientConnInterface) DirectoryClient {
	return &directoryClient{cc: cc}
}

func (c *directoryClient) Dispatch(ctx context.Context, req *Envelope, opts ...grpc.CallOption) (*Reply, error) {
	out := new(Reply)
	opts = append(opts, grpc.CallContentSubtype(codecName))
	err := c.cc.Invoke(ctx, "/"+ServiceName+"/Dispatch", req, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func dispatchHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(Envelope)
	if err := dec(in); err != nil {
		decodeErr := status.Errorf(codes.Internal, "wire: decode envelope: %v", err)
		if interceptor == nil {
			return nil, decodeErr
		}
		// Pass the failure through the interceptor chain so server
		// interceptors (such as a protocol-violation counter) see it.
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Dispatch"}
		return interceptor(ctx, in, info, func(context.Context, any) (any, error) { return nil, decodeErr })
	}
	if interceptor == nil {
		return srv.(DirectoryServer).Dispatch(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Dispatch"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DirectoryServer).Dispatch(ctx, req.(*Envelope))
	}
	return interceptor(ctx, in, info, handler)
}

// ServiceDesc mirrors the grpc.ServiceDesc a .proto-driven codegen pass
// would produce for a service with one unary method, Dispatch.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DirectoryServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Dispatch",
			Handler:    dispatchHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "discofabric/wire/directory.proto",
}

// RegisterDirectoryServer registers srv with s. It does not force a codec:
// the server decodes each call with the registered codec named by the
// call's content-subtype, which NewDirectoryClient sets to the discofabric
// binary codec.
func RegisterDirectoryServer(s grpc.ServiceRegistrar, srv DirectoryServer) {
	s.RegisterService(&ServiceDesc, srv)
}
