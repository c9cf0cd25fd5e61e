// Command astrobus-ctl is an interactive hub client. It connects to a hub
// over TCP (directly or via mDNS resolution), streams bus events to the
// console and lets the operator inspect and change device properties.
//
// Usage:
//
//	astrobus-ctl [-addr host:7624] [-resolve instance-name]
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/astrobus-protocol/astrobus-go/pkg/discovery"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "astrobus-ctl: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "", "hub address (host:port)")
	resolve := flag.String("resolve", "", "resolve the hub via mDNS by instance name")
	timeout := flag.Duration("timeout", 5*time.Second, "mDNS resolution timeout")
	flag.Parse()

	target := *addr
	if target == "" && *resolve != "" {
		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		defer cancel()

		svc, err := discovery.Resolve(ctx, *resolve)
		if err != nil {
			return err
		}
		target = svc.Addr()
		fmt.Printf("resolved %s to %s\n", *resolve, target)
	}
	if target == "" {
		target = fmt.Sprintf("127.0.0.1:%d", 7624)
	}

	conn, err := net.Dial("tcp", target)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", target, err)
	}
	defer conn.Close()

	session, err := newSession(conn)
	if err != nil {
		return err
	}
	return session.run()
}
