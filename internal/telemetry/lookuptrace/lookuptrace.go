// Package lookuptrace adds OpenTelemetry spans to the lookup path only
// (LOOKUP_BY_TOPIC, LOOKUP_ALL, and the IS_READY polling clients use to wait
// for them), leaving REGISTER traffic untraced. Every call on the wire goes
// through the same single Dispatch RPC, so this package discriminates by
// the envelope's MessageType rather than by gRPC method name.
package lookuptrace

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"discofabric/internal/wire"
)

const (
	lookupMetaKey = "x-discofabric-lookup"
	tracerName    = "discofabric/lookuptrace"
)

var tracer = otel.Tracer(tracerName)

func traced(t wire.MessageType) bool {
	switch t {
	case wire.MessageLookupByTopic, wire.MessageLookupAll, wire.MessageIsReady:
		return true
	default:
		return false
	}
}

// WithLookup marks the outgoing context as belonging to a traced call.
func WithLookup(ctx context.Context) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	md.Set(lookupMetaKey, "true")
	return metadata.NewOutgoingContext(ctx, md)
}

// IsLookup reports whether the incoming context belongs to a traced call.
func IsLookup(ctx context.Context) bool {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return false
	}
	values := md.Get(lookupMetaKey)
	return len(values) > 0 && values[0] == "true"
}

// ServerInterceptor creates spans only for Dispatch calls carrying a
// LOOKUP_BY_TOPIC, LOOKUP_ALL, or IS_READY envelope, including their
// fan-out forwards (tagged by IsLookup, propagated from the initial call).
func ServerInterceptor() grpc.UnaryServerInterceptor {
	propagator := otel.GetTextMapPropagator()

	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			ctx = propagator.Extract(ctx, metadataCarrier(md))
		}

		env, ok := req.(*wire.Envelope)
		if !ok || (!traced(env.Type) && !IsLookup(ctx)) {
			return handler(ctx, req)
		}

		ctx = WithLookup(ctx)
		ctx, span := tracer.Start(ctx, info.FullMethod+"/"+env.Type.String(), trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()
		return handler(ctx, req)
	}
}

// ClientInterceptor propagates the lookup flag and OTEL trace context on
// outbound Dispatch calls already marked traced by ServerInterceptor or by
// WithLookup at the client entrypoint.
func ClientInterceptor() grpc.UnaryClientInterceptor {
	propagator := otel.GetTextMapPropagator()

	return func(
		ctx context.Context,
		method string,
		req, reply interface{},
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		traceThis := IsLookup(ctx)
		if env, ok := req.(*wire.Envelope); ok && traced(env.Type) {
			traceThis = true
		}
		if !traceThis {
			return invoker(ctx, method, req, reply, cc, opts...)
		}

		ctx = WithLookup(ctx)
		ctx, span := tracer.Start(ctx, method, trace.WithSpanKind(trace.SpanKindClient))
		defer span.End()

		md, _ := metadata.FromOutgoingContext(ctx)
		md = md.Copy()
		propagator.Inject(ctx, metadataCarrier(md))
		ctx = metadata.NewOutgoingContext(ctx, md)

		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

type metadataCarrier metadata.MD

func (mc metadataCarrier) Get(key string) string {
	vals := metadata.MD(mc).Get(key)
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}

func (mc metadataCarrier) Set(key, value string) {
	metadata.MD(mc).Set(key, value)
}

func (mc metadataCarrier) Keys() []string {
	out := make([]string, 0, len(mc))
	for k := range mc {
		out = append(out, k)
	}
	return out
}
