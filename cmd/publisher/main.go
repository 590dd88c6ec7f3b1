// Command publisher is a thin client over the directory core: it
// registers a set of topics as a publisher, waits for the directory to
// report readiness, then exits. Non-goals exclude the data plane that
// would follow (actual publication transport), so the command stops once
// the contract with the directory has been demonstrated.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"discofabric/internal/client"
	"discofabric/internal/cliclient"
	"discofabric/internal/wire"
)

func main() {
	name := flag.String("name", "", "unique publisher id (required)")
	addr := flag.String("addr", "localhost:5555", "directory node address to register with")
	advertise := flag.String("advertise", "localhost", "address this publisher would accept data-plane connections on")
	port := flag.Int("port", 6000, "port this publisher would accept data-plane connections on")
	topics := flag.String("topics", "", "comma-separated list of topics to publish")
	timeout := flag.Duration("timeout", 30*time.Second, "overall deadline for register+ready")
	flag.Parse()

	if *name == "" || *topics == "" {
		log.Fatal("publisher: -name and -topics are required")
	}
	topicList := cliclient.SplitTopics(*topics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	pool := client.New()
	defer func() { _ = pool.CloseAll() }()

	info := wire.RegistrantInfo{ID: *name, Addr: *advertise, Port: *port}
	if err := cliclient.Register(ctx, pool, *addr, wire.RolePublisher, info, topicList); err != nil {
		log.Fatalf("publisher: %v", err)
	}
	log.Printf("publisher %s registered for topics %v", *name, topicList)

	if err := cliclient.WaitReady(ctx, pool, *addr); err != nil {
		log.Fatalf("publisher: %v", err)
	}
	log.Printf("publisher %s: directory ready", *name)
}
