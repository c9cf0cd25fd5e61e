// Command astrobus-server runs a hub: it hosts the bus, loads device
// drivers, serves protocol clients over TCP and announces itself via mDNS.
//
// Usage:
//
//	astrobus-server [-config hub.yaml] [-listen :7624] [-stdio]
//
// Without a config file the server starts with the simulator driver on the
// default port. With -stdio it serves a single protocol session over
// stdin/stdout instead of listening, for use as a subprocess.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/astrobus-protocol/astrobus-go/internal/config"
	"github.com/astrobus-protocol/astrobus-go/pkg/adapter"
	"github.com/astrobus-protocol/astrobus-go/pkg/bus"
	"github.com/astrobus-protocol/astrobus-go/pkg/buslog"
	"github.com/astrobus-protocol/astrobus-go/pkg/discovery"
	"github.com/astrobus-protocol/astrobus-go/pkg/driver"
	"github.com/astrobus-protocol/astrobus-go/pkg/transport"
	"github.com/astrobus-protocol/astrobus-go/pkg/version"

	// Register bundled drivers.
	_ "github.com/astrobus-protocol/astrobus-go/pkg/drivers/simulator"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "astrobus-server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to the configuration file")
	listen := flag.String("listen", "", "listen address (overrides config)")
	stdio := flag.Bool("stdio", false, "serve one protocol session over stdin/stdout instead of TCP")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			return err
		}
	}
	if *listen != "" {
		cfg.Listen = *listen
	}

	level, err := cfg.SlogLevel()
	if err != nil {
		return err
	}
	console := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	console.Info("starting hub", "protocol", version.Current)

	loggers := []buslog.Logger{buslog.NewSlogAdapter(console)}
	if cfg.Log.TraceFile != "" {
		trace, err := buslog.OpenFileLogger(cfg.Log.TraceFile)
		if err != nil {
			return err
		}
		defer trace.Close()
		loggers = append(loggers, trace)
	}
	logger := buslog.NewMultiLogger(loggers...)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	b := bus.New(bus.Config{Logger: logger, QueueCapacity: cfg.QueueCapacity})
	if err := b.Start(ctx); err != nil {
		return err
	}
	defer b.Stop()

	manager := driver.NewManager(b, logger)
	for _, name := range cfg.Drivers {
		if err := manager.Load(ctx, name); err != nil {
			return err
		}
		console.Info("driver loaded", "driver", name)
	}
	defer func() {
		if err := manager.UnloadAll(context.Background()); err != nil {
			console.Warn("driver unload failed", "err", err)
		}
	}()

	if *stdio {
		console.Info("serving on stdio")
		return adapter.Serve(ctx, b, transport.Stdio(), logger)
	}

	server, adapters := newServer(ctx, cfg, b, logger)
	if err := server.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = server.Stop() }()
	console.Info("listening", "addr", server.Addr().String())

	if cfg.Discovery {
		announcer := discovery.NewAnnouncer(discovery.AnnouncerConfig{})
		if err := announcer.Announce(cfg.ServiceName, listenPort(server)); err != nil {
			console.Warn("mDNS announcement failed", "err", err)
		} else {
			defer announcer.Stop()
			console.Info("announced", "service", cfg.ServiceName)
		}
	}

	<-ctx.Done()
	console.Info("shutting down")

	adapters.closeAll()
	return nil
}

// adapterSet tracks the adapter of each live connection.
type adapterSet struct {
	mu       sync.Mutex
	adapters map[string]*adapter.Adapter
}

func (s *adapterSet) put(id string, a *adapter.Adapter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adapters[id] = a
}

func (s *adapterSet) take(id string) *adapter.Adapter {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.adapters[id]
	delete(s.adapters, id)
	return a
}

func (s *adapterSet) get(id string) *adapter.Adapter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adapters[id]
}

func (s *adapterSet) closeAll() {
	s.mu.Lock()
	all := make([]*adapter.Adapter, 0, len(s.adapters))
	for _, a := range s.adapters {
		all = append(all, a)
	}
	s.adapters = make(map[string]*adapter.Adapter)
	s.mu.Unlock()

	for _, a := range all {
		a.Close()
	}
}

// newServer wires the TCP server's connection callbacks to per-connection
// bus adapters.
func newServer(ctx context.Context, cfg config.Config, b *bus.Bus, logger buslog.Logger) (*transport.Server, *adapterSet) {
	adapters := &adapterSet{adapters: make(map[string]*adapter.Adapter)}

	server := transport.NewServer(transport.ServerConfig{
		Address:     cfg.Listen,
		MaxLineSize: cfg.MaxLineSize,
		Logger:      logger,
		OnConnect: func(conn *transport.ServerConn) {
			a := adapter.New(adapter.Config{
				Bus:    b,
				Send:   conn.Send,
				ConnID: conn.ConnID(),
				Logger: logger,
			})
			if err := a.Start(); err != nil {
				_ = conn.Close()
				return
			}
			adapters.put(conn.ConnID(), a)
		},
		OnMessage: func(conn *transport.ServerConn, line []byte) {
			if a := adapters.get(conn.ConnID()); a != nil {
				a.HandleLine(ctx, line)
			}
		},
		OnDisconnect: func(conn *transport.ServerConn) {
			if a := adapters.take(conn.ConnID()); a != nil {
				a.Close()
			}
		},
	})
	return server, adapters
}

// listenPort extracts the bound TCP port.
func listenPort(server *transport.Server) int {
	if tcp, ok := server.Addr().(*net.TCPAddr); ok {
		return tcp.Port
	}
	return transport.DefaultPort
}
