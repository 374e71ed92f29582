// Command relys is the server half of rely: it listens for UDP datagrams
// from any number of clients, admits one Session per peer address, and
// echoes back whatever each client sends. Optionally exposes Prometheus
// metrics over HTTP. Grounded the same way as relyc's main (feeder's
// config-then-context-then-run shape) plus the exporter_example2 pattern
// for wiring promhttp.Handler against a custom Collector.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/xid"
	"golang.org/x/sync/errgroup"

	"github.com/cs144/rely/config"
	"github.com/cs144/rely/ioconn"
	"github.com/cs144/rely/metrics"
	"github.com/cs144/rely/registry"
	"github.com/cs144/rely/session"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "relys:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath       = flag.String("config", "", "path to a TOML config file (optional)")
		listen           = flag.String("listen", "", "override the UDP listen address")
		metricsAddr      = flag.String("metrics", "", "override the Prometheus listen address (also enables the metrics endpoint)")
		echoBufBytes     = flag.Int("echo-buffer", 64*1024, "per-session loopback buffer size, in bytes")
		singleConnection = flag.Bool("single-connection", false, "terminate the process after the first session closes")
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
	if *listen != "" {
		opts = append(opts, config.WithListen(*listen))
	}
	if *metricsAddr != "" {
		opts = append(opts, config.WithMetrics(true, *metricsAddr))
	}
	if *singleConnection {
		opts = append(opts, config.WithSingleConnection(true))
	}
	cfg = config.Apply(cfg, opts...)

	local, err := netip.ParseAddrPort(withDefaultHost(cfg.Listen))
	if err != nil {
		return fmt.Errorf("parsing listen address %q: %w", cfg.Listen, err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel(cfg.Log.Level)}))

	sock, err := ioconn.NewDatagramSocket(local)
	if err != nil {
		return fmt.Errorf("opening socket: %w", err)
	}
	defer sock.Close()

	stop := make(chan struct{})
	var stopOnce sync.Once

	sessCfg := session.Config{
		Window:  cfg.Window,
		Timeout: time.Duration(cfg.Timeout),
		Logger:  logger,
	}
	if cfg.SingleConnection {
		// single_connection: the first session to tear down stops the
		// event loop, terminating the process after it.
		sessCfg.OnDestroy = func() {
			logger.Info("relys: single-connection session closed, stopping")
			stopOnce.Do(func() { close(stop) })
		}
	}

	reg := registry.New(func(peer netip.AddrPort) session.Conn {
		id := xid.New().String()
		logger.Info("relys: admitting peer", slog.String("peer", peer.String()), slog.String("session_id", id))
		return ioconn.NewPeerEchoConn(*echoBufBytes, sock, peer)
	}, sessCfg)

	loop := ioconn.NewServerLoop(sock, time.Duration(cfg.TickInterval), reg)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		return loop.Run(stop)
	})
	g.Go(func() error {
		<-ctx.Done()
		stopOnce.Do(func() { close(stop) })
		return nil
	})

	if cfg.Metrics.Enabled {
		collector := metrics.NewCollector(reg, "rely")
		promReg := prometheus.NewRegistry()
		if err := promReg.Register(collector); err != nil {
			return fmt.Errorf("registering collector: %w", err)
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
		server := &http.Server{Addr: cfg.Metrics.Listen, Handler: mux}
		g.Go(func() error {
			<-ctx.Done()
			return server.Close()
		})
		g.Go(func() error {
			logger.Info("relys: metrics listening", slog.String("addr", cfg.Metrics.Listen))
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
	}

	return g.Wait()
}

func withDefaultHost(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "0.0.0.0" + addr
	}
	return addr
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
