// Command p2p-supplicant runs the simulated Wi-Fi P2P engine behind the
// P2PIface and Supplicant gRPC services.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/signalsfoundry/p2p-supplicant/internal/config"
	"github.com/signalsfoundry/p2p-supplicant/internal/engine"
	"github.com/signalsfoundry/p2p-supplicant/internal/logging"
	"github.com/signalsfoundry/p2p-supplicant/internal/observability"
	"github.com/signalsfoundry/p2p-supplicant/internal/rpc"
	"github.com/signalsfoundry/p2p-supplicant/internal/supplicant"
	"github.com/signalsfoundry/p2p-supplicant/kb"
	"github.com/signalsfoundry/p2p-supplicant/timectrl"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

// shutdownTimeout bounds graceful shutdown of the gRPC and metrics servers.
var shutdownTimeout = 5 * time.Second

func main() {
	configPath := flag.String("config", "", "Path to a YAML configuration file")
	grpcAddr := flag.String("grpc-addr", "", "TCP address the gRPC server listens on (overrides config)")
	metricsAddr := flag.String("metrics-addr", "", "HTTP address for Prometheus /metrics, empty string in config disables it")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg.ApplyEnv()
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "grpc-addr":
			cfg.GRPCAddr = *grpcAddr
		case "metrics-addr":
			cfg.MetricsAddr = *metricsAddr
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.Log)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Error(ctx, "failed to listen for gRPC", logging.String("addr", cfg.GRPCAddr), logging.Err(err))
		os.Exit(1)
	}

	if err := run(ctx, cfg, log, lis); err != nil {
		log.Error(ctx, "p2p-supplicant exited", logging.Err(err))
		os.Exit(1)
	}
}

// run serves until ctx is cancelled. It owns lis.
func run(ctx context.Context, cfg *config.Config, log logging.Logger, lis net.Listener) error {
	defer lis.Close()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector, err := observability.NewCollector(reg)
	if err != nil {
		return fmt.Errorf("metrics collector: %w", err)
	}
	schedCollector, err := observability.NewSchedulerCollector(reg)
	if err != nil {
		return fmt.Errorf("scheduler metrics: %w", err)
	}

	root, clock, err := newEngine(cfg, log, collector, schedCollector)
	if err != nil {
		return err
	}
	defer root.Close()

	sup := supplicant.New(root,
		supplicant.WithLogger(log),
		supplicant.WithCallbackRecorder(collector),
	)
	for _, name := range cfg.Interfaces {
		if _, err := sup.AddP2PInterface(ctx, name); err != nil {
			_ = sup.Close(context.Background())
			return fmt.Errorf("bring up %s: %w", name, err)
		}
		log.Info(ctx, "interface up", logging.Ifname(name))
	}

	server := rpc.NewGRPCServer(sup, log, collector)
	metricsSrv := newMetricsServer(cfg.MetricsAddr, collector)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info(gctx, "starting gRPC server", logging.String("addr", lis.Addr().String()))
		if err := server.Serve(lis); err != nil {
			return fmt.Errorf("grpc serve: %w", err)
		}
		return nil
	})
	if metricsSrv != nil {
		g.Go(func() error {
			log.Info(gctx, "serving Prometheus metrics", logging.String("addr", metricsSrv.Addr))
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics serve: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		root.Run(gctx, clock)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info(context.Background(), "shutting down p2p-supplicant")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// Closing the manager ends callback streams so GracefulStop can
		// drain.
		closeErr := sup.Close(shutdownCtx)
		gracefulStop(shutdownCtx, server)
		if metricsSrv != nil {
			_ = metricsSrv.Shutdown(shutdownCtx)
		}
		return closeErr
	})
	return g.Wait()
}

// newEngine builds the engine root, its clock and the seeded peer table.
func newEngine(cfg *config.Config, log logging.Logger, collector *observability.Collector, schedCollector *observability.SchedulerCollector) (*engine.Global, *timectrl.TimeController, error) {
	peers, err := kb.NewKnowledgeBase(cfg.Engine.PeerTableSize)
	if err != nil {
		return nil, nil, fmt.Errorf("peer table: %w", err)
	}
	for i := range cfg.Peers {
		p, err := cfg.Peers[i].Peer()
		if err != nil {
			return nil, nil, fmt.Errorf("peers[%d]: %w", i, err)
		}
		peers.UpsertPeer(p)
	}
	table, err := cfg.ChannelTable()
	if err != nil {
		return nil, nil, err
	}

	clock := timectrl.NewTimeController(time.Now(), cfg.Engine.Tick, cfg.TimeMode())
	root := engine.NewGlobal(clock, peers,
		engine.WithLogger(log),
		engine.WithLimits(cfg.Limits()),
		engine.WithChannelTable(table),
		engine.WithMetricsRecorder(collector),
		engine.WithSchedulerObserver(schedCollector),
	)
	return root, clock, nil
}

func newMetricsServer(addr string, collector *observability.Collector) *http.Server {
	if addr == "" || collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// gracefulStop falls back to Stop when draining outlives ctx.
func gracefulStop(ctx context.Context, server *grpc.Server) {
	done := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		server.Stop()
		<-done
	}
}
