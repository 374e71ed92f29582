// Command relyc is the client half of rely: it reads a byte stream from
// stdin, carries it reliably over UDP to a relys server, and writes
// whatever the server sends back to stdout. Its shape — load config, build
// a cancellable context off OS signals, run the workload, wait — is
// grounded on the feeder command's main.go; session wiring and the event
// loop are this project's own (see DESIGN.md).
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/netip"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cs144/rely/config"
	"github.com/cs144/rely/ioconn"
	"github.com/cs144/rely/session"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "relyc:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "path to a TOML config file (optional)")
		remote     = flag.String("remote", "", "server address, host:port (required)")
		window     = flag.Int("window", 0, "override the flow-control window size")
		timeout    = flag.Duration("timeout", 0, "override the retransmission timeout")
	)
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
	}
	var opts []config.Option
	if *window > 0 {
		opts = append(opts, config.WithWindow(*window))
	}
	if *timeout > 0 {
		opts = append(opts, config.WithTimeout(*timeout))
	}
	cfg = config.Apply(cfg, opts...)

	if *remote == "" {
		return fmt.Errorf("-remote is required")
	}
	peer, err := netip.ParseAddrPort(*remote)
	if err != nil {
		return fmt.Errorf("parsing -remote: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel(cfg.Log.Level)}))

	if err := ioconn.SetNonblocking(int(os.Stdin.Fd())); err != nil {
		return fmt.Errorf("stdin nonblock: %w", err)
	}
	if err := ioconn.SetNonblocking(int(os.Stdout.Fd())); err != nil {
		return fmt.Errorf("stdout nonblock: %w", err)
	}

	sock, err := ioconn.NewDatagramSocket(netip.AddrPortFrom(netip.IPv4Unspecified(), 0))
	if err != nil {
		return fmt.Errorf("opening socket: %w", err)
	}
	defer sock.Close()

	stdio := ioconn.NewStdio(int(os.Stdin.Fd()), int(os.Stdout.Fd()), 64*1024)
	conn := ioconn.NewPeerConn(stdio, sock, peer)

	engine, err := session.New(conn, session.Config{
		Window:  cfg.Window,
		Timeout: time.Duration(cfg.Timeout),
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}

	loop := ioconn.NewClientLoop(int(os.Stdin.Fd()), int(os.Stdout.Fd()), sock, time.Duration(cfg.TickInterval),
		ioconn.ClientSession{Engine: engine, Stdio: stdio})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, _ := errgroup.WithContext(ctx)
	stop := make(chan struct{})
	g.Go(func() error {
		return loop.Run(stop)
	})
	g.Go(func() error {
		<-ctx.Done()
		close(stop)
		return nil
	})
	return g.Wait()
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
