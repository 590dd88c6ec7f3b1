// Package server wraps a directory node's gRPC listener: binding,
// registering the wire.Directory service, and graceful shutdown.
package server

import (
	"fmt"
	"net"

	"google.golang.org/grpc"

	"discofabric/internal/logger"
	"discofabric/internal/wire"
)

// Server hosts the discofabric.wire.Directory service over one gRPC
// listener.
type Server struct {
	grpcServer *grpc.Server
	listener   net.Listener
	lgr        logger.Logger
}

// Option customizes Server construction.
type Option func(*Server)

// WithLogger attaches a structured logger to the server.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) { s.lgr = l }
}

// New creates a gRPC server bound to lis, registering srv as the
// Directory service handler. grpcOpts are passed through to
// grpc.NewServer (e.g. keepalive policy, interceptors).
func New(lis net.Listener, srv wire.DirectoryServer, grpcOpts []grpc.ServerOption, opts ...Option) *Server {
	s := &Server{
		grpcServer: grpc.NewServer(grpcOpts...),
		listener:   lis,
		lgr:        &logger.NopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	wire.RegisterDirectoryServer(s.grpcServer, srv)
	return s
}

// Start runs the gRPC server and blocks until it stops.
func (s *Server) Start() error {
	s.lgr.Info("server: listening", logger.F("addr", s.listener.Addr().String()))
	if err := s.grpcServer.Serve(s.listener); err != nil {
		return fmt.Errorf("server: serve stopped: %w", err)
	}
	return nil
}

// Stop immediately stops the server, closing all active connections.
func (s *Server) Stop() {
	s.grpcServer.Stop()
}

// GracefulStop waits for in-flight RPCs to complete before stopping.
func (s *Server) GracefulStop() {
	s.grpcServer.GracefulStop()
}
