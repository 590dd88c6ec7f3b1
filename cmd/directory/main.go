// Command directory runs a single discovery-fabric ring member: it loads
// the static ring manifest and the dissemination/discovery strategy, binds
// its client-facing endpoint, and serves REGISTER/IS_READY/LOOKUP_BY_TOPIC/
// LOOKUP_ALL requests from clients and forwards from ring peers until
// signaled to shut down.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"discofabric/internal/client"
	"discofabric/internal/config"
	"discofabric/internal/logger"
	zapfactory "discofabric/internal/logger/zap"
	"discofabric/internal/registry"
	"discofabric/internal/ring"
	"discofabric/internal/router"
	"discofabric/internal/server"
	"discofabric/internal/telemetry"
	"discofabric/internal/telemetry/lookuptrace"
)

// protocolViolationThreshold is the number of malformed-envelope errors,
// counted across all inbound calls, at which the process exits with code 2.
const protocolViolationThreshold = 5

func main() {
	name := flag.String("name", "discovery", "node name; must match a manifest entry together with -port")
	bind := flag.String("bind", "localhost", "bind address and advertised host")
	port := flag.Int("port", 5555, "bind port; must match a manifest entry together with -name")
	expPub := flag.Int("exp-pub", 1, "expected publisher count for readiness")
	expSub := flag.Int("exp-sub", 1, "expected subscriber count for readiness")
	manifestPath := flag.String("manifest", "dht.json", "path to the ring manifest")
	configPath := flag.String("config", "config.ini", "path to the dissemination/discovery strategy config")
	obsPath := flag.String("observability", "observability.yaml", "path to the observability config")
	logLevel := flag.String("log-level", "", "override observability.yaml's logger.level")
	flag.Parse()

	manifest, err := ring.Load(*manifestPath, *name, *port)
	if err != nil {
		log.Printf("fatal: invalid manifest: %v", err)
		os.Exit(1)
	}

	strategy, err := config.LoadStrategyConfig(*configPath)
	if err != nil {
		log.Printf("fatal: invalid strategy config: %v", err)
		os.Exit(1)
	}
	if strategy.Discovery == config.DiscoveryCentralized && len(manifest.Nodes) != 1 {
		log.Printf("fatal: Discovery.Strategy=Centralized requires exactly one manifest entry, got %d", len(manifest.Nodes))
		os.Exit(1)
	}

	obs, err := config.LoadObservability(*obsPath)
	if err != nil {
		log.Printf("fatal: invalid observability config: %v", err)
		os.Exit(1)
	}
	obs.ApplyEnvOverrides()
	if *logLevel != "" {
		obs.Logger.Level = *logLevel
	}
	if err := obs.Validate(); err != nil {
		log.Printf("fatal: %v", err)
		os.Exit(1)
	}

	var lgr logger.Logger
	if obs.Logger.Active {
		zapLog, err := zapfactory.New(obs.Logger)
		if err != nil {
			log.Printf("fatal: failed to initialize logger: %v", err)
			os.Exit(1)
		}
		defer func() { _ = zapLog.Sync() }()
		lgr = zapfactory.NewZapAdapter(zapLog)
	} else {
		lgr = &logger.NopLogger{}
	}
	lgr = lgr.Named("directory").With(logger.F("node", *name), logger.F("port", *port))
	obs.LogConfig(lgr)

	table, err := ring.NewTable(manifest.Self, manifest.Nodes, ring.WithLogger(lgr.Named("ring")))
	if err != nil {
		lgr.Error("fatal: failed to build ring table", logger.F("err", err))
		os.Exit(1)
	}
	lgr.Info("ring table built", logger.F("self", table.Self()), logger.F("members", len(table.Members())))

	shutdownTracer := telemetry.InitTracer(obs.Tracing, "discofabric-directory", table.Self().ID)
	defer func() { _ = shutdownTracer(context.Background()) }()

	dissemination, err := registry.ParseDissemination(string(strategy.Dissemination))
	if err != nil {
		lgr.Error("fatal: invalid dissemination strategy", logger.F("err", err))
		os.Exit(1)
	}
	store := registry.New(dissemination, *expPub, *expSub, registry.WithLogger(lgr.Named("registry")))
	store.Advance(registry.StateConfigure)

	poolOpts := []client.Option{client.WithLogger(lgr.Named("clientpool"))}
	if obs.Tracing.Enabled {
		dialOpts := append(client.DefaultDialOptions(), grpc.WithChainUnaryInterceptor(lookuptrace.ClientInterceptor()))
		poolOpts = append(poolOpts, client.WithDialOptions(dialOpts...))
	}
	pool := client.New(poolOpts...)

	engine := router.New(table, store, pool, router.WithLogger(lgr.Named("router")))

	lis, advertised, err := server.Listen("private", *bind, *bind, *port)
	if err != nil {
		lgr.Error("fatal: failed to bind listener", logger.F("err", err))
		os.Exit(1)
	}
	defer func() { _ = lis.Close() }()
	lgr.Info("listening", logger.F("addr", advertised))
	store.Advance(registry.StatePending)

	seq := server.NewSequencer()
	guard := server.NewProtocolGuard(protocolViolationThreshold, func(n int64) {
		lgr.Error("protocol violation threshold exceeded, exiting", logger.F("count", n))
		os.Exit(2)
	})
	interceptors := []grpc.UnaryServerInterceptor{seq.UnaryInterceptor(), guard.UnaryInterceptor()}
	if obs.Tracing.Enabled {
		interceptors = append(interceptors, lookuptrace.ServerInterceptor())
	}
	grpcOpts := []grpc.ServerOption{grpc.ChainUnaryInterceptor(interceptors...)}

	srv := server.New(lis, engine, grpcOpts, server.WithLogger(lgr.Named("server")))

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Start() }()
	lgr.Info("server started")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		lgr.Info("shutdown signal received, stopping gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		done := make(chan struct{})
		go func() { srv.GracefulStop(); close(done) }()
		select {
		case <-done:
			lgr.Info("server stopped gracefully")
		case <-shutdownCtx.Done():
			lgr.Warn("graceful stop timed out, forcing shutdown")
			srv.Stop()
		}
		_ = pool.CloseAll()
		os.Exit(0)
	case err := <-serveErr:
		lgr.Error("gRPC server terminated unexpectedly", logger.F("err", err))
		_ = pool.CloseAll()
		os.Exit(1)
	}
}
