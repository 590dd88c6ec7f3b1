// Package client manages reusable gRPC connections from one directory node
// to its ring peers, and to the nodes a publisher/subscriber/broker client
// talks to.
package client

import (
	"context"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"discofabric/internal/logger"
	"discofabric/internal/wire"
)

// Pool holds one *grpc.ClientConn per remote address, created lazily and
// reused across requests.
type Pool struct {
	logger        logger.Logger
	mu            sync.RWMutex
	conns         map[string]*grpc.ClientConn
	configOptions []grpc.DialOption
}

// Option customizes Pool construction.
type Option func(*Pool)

// WithLogger attaches a structured logger to the pool.
func WithLogger(l logger.Logger) Option {
	return func(p *Pool) { p.logger = l }
}

// WithDialOptions overrides the default (insecure) dial options.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(p *Pool) { p.configOptions = opts }
}

// DefaultDialOptions returns the dial options Pool uses when WithDialOptions
// is not supplied, so callers that want to add to the defaults (e.g. a
// tracing interceptor) rather than replace them can build on top of it.
func DefaultDialOptions() []grpc.DialOption {
	return []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
}

// New creates an empty connection pool. By default connections are
// unencrypted: spec.md's non-goals exclude transport encryption.
func New(opts ...Option) *Pool {
	p := &Pool{
		logger: &logger.NopLogger{},
		conns:  make(map[string]*grpc.ClientConn),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.configOptions == nil {
		p.configOptions = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	return p
}

// conn returns a connection to addr, creating one if none exists yet.
func (p *Pool) conn(addr string) (*grpc.ClientConn, error) {
	p.mu.RLock()
	c, ok := p.conns[addr]
	p.mu.RUnlock()
	if ok {
		return c, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok = p.conns[addr]; ok {
		return c, nil
	}
	c, err := grpc.NewClient(addr, p.configOptions...)
	if err != nil {
		return nil, err
	}
	p.conns[addr] = c
	p.logger.Info("client: connection opened", logger.F("addr", addr))
	return c, nil
}

// Dispatch sends req to the directory node at addr and returns its reply.
func (p *Pool) Dispatch(ctx context.Context, addr string, req *wire.Envelope) (*wire.Reply, error) {
	conn, err := p.conn(addr)
	if err != nil {
		return nil, err
	}
	return wire.NewDirectoryClient(conn).Dispatch(ctx, req)
}

// Close closes and forgets the connection to addr, if any.
func (p *Pool) Close(addr string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.conns[addr]
	if !ok {
		return nil
	}
	if err := c.Close(); err != nil {
		return err
	}
	delete(p.conns, addr)
	p.logger.Info("client: connection closed", logger.F("addr", addr))
	return nil
}

// CloseAll closes every pooled connection.
func (p *Pool) CloseAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for addr, c := range p.conns {
		if err := c.Close(); err != nil {
			return err
		}
		delete(p.conns, addr)
	}
	p.logger.Info("client: all connections closed")
	return nil
}
