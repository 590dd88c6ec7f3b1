// Command broker is a thin client over the directory core: under Broker
// dissemination it registers as the single broker slot (role BOTH), waits
// for readiness, then looks up every registered publisher once and logs
// them, so it knows who to relay data from. The actual relay (data plane) is out
// of scope; this command only exercises the directory contract.
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
	name := flag.String("name", "", "unique broker id (required)")
	addr := flag.String("addr", "localhost:5555", "directory node address to register with")
	advertise := flag.String("advertise", "localhost", "address this broker accepts relay connections on")
	port := flag.Int("port", 6100, "port this broker accepts relay connections on")
	timeout := flag.Duration("timeout", 30*time.Second, "overall deadline for register+ready+lookup")
	flag.Parse()

	if *name == "" {
		log.Fatal("broker: -name is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	pool := client.New()
	defer func() { _ = pool.CloseAll() }()

	info := wire.RegistrantInfo{ID: *name, Addr: *advertise, Port: *port}
	if err := cliclient.Register(ctx, pool, *addr, wire.RoleBoth, info, nil); err != nil {
		log.Fatalf("broker: %v", err)
	}
	log.Printf("broker %s registered", *name)

	if err := cliclient.WaitReady(ctx, pool, *addr); err != nil {
		log.Fatalf("broker: %v", err)
	}
	log.Printf("broker %s: directory ready", *name)

	registrants, err := cliclient.LookupAll(ctx, pool, *addr)
	if err != nil {
		log.Fatalf("broker: %v", err)
	}
	log.Printf("broker %s: %d publisher(s) to relay:", *name, len(registrants))
	for _, r := range registrants {
		log.Printf("  %s at %s:%d", r.ID, r.Addr, r.Port)
	}
}
