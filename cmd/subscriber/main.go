// Command subscriber is a thin client over the directory core: it
// registers interest in a set of topics, waits for the directory to
// report readiness, then looks up the matching publishers (or the broker,
// under Broker dissemination) and prints them. The data-plane connection
// to those publishers is out of scope; this command only exercises the
// directory contract.
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
	name := flag.String("name", "", "unique subscriber id (required)")
	addr := flag.String("addr", "localhost:5555", "directory node address to register with")
	topics := flag.String("topics", "", "comma-separated list of topics of interest")
	timeout := flag.Duration("timeout", 30*time.Second, "overall deadline for register+ready+lookup")
	flag.Parse()

	if *name == "" || *topics == "" {
		log.Fatal("subscriber: -name and -topics are required")
	}
	topicList := cliclient.SplitTopics(*topics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	pool := client.New()
	defer func() { _ = pool.CloseAll() }()

	info := wire.RegistrantInfo{ID: *name}
	if err := cliclient.Register(ctx, pool, *addr, wire.RoleSubscriber, info, topicList); err != nil {
		log.Fatalf("subscriber: %v", err)
	}
	log.Printf("subscriber %s registered for topics %v", *name, topicList)

	if err := cliclient.WaitReady(ctx, pool, *addr); err != nil {
		log.Fatalf("subscriber: %v", err)
	}
	log.Printf("subscriber %s: directory ready", *name)

	registrants, err := cliclient.LookupByTopic(ctx, pool, *addr, topicList)
	if err != nil {
		log.Fatalf("subscriber: %v", err)
	}
	log.Printf("subscriber %s: %d matching registrant(s):", *name, len(registrants))
	for _, r := range registrants {
		log.Printf("  %s at %s:%d", r.ID, r.Addr, r.Port)
	}
}
