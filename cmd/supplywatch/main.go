// Command supplywatch serves the room supply registry: dashboard CRUD, device
// reports and a live event stream, backed by the configured storage driver.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"supplywatch/internal/adapters/gateway"
	"supplywatch/internal/config"
	"supplywatch/internal/core"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "supplywatch: %v\n", err)
		os.Exit(1)
	}
}

type flags struct {
	envFile  string
	logLevel string
	addr     string
}

func parseFlags(args []string) (flags, error) {
	var f flags
	fs := pflag.NewFlagSet("supplywatch", pflag.ContinueOnError)
	fs.StringVar(&f.envFile, "env-file", "", "dotenv file filling unset SUPPLYWATCH_* variables (default: .env when present)")
	fs.StringVar(&f.logLevel, "log-level", "", "override SUPPLYWATCH_LOG_LEVEL (DEBUG, INFO, WARN, ERROR)")
	fs.StringVar(&f.addr, "addr", "", "override listen address host:port")
	if err := fs.Parse(args); err != nil {
		return flags{}, err
	}
	return f, nil
}

func loadConfig(f flags) (config.Config, error) {
	cfg, err := config.Load(f.envFile)
	if err != nil {
		return config.Config{}, err
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	if f.addr != "" {
		host, port, err := net.SplitHostPort(f.addr)
		if err != nil {
			return config.Config{}, fmt.Errorf("invalid --addr: %w", err)
		}
		cfg.Host = host
		if _, err := fmt.Sscanf(port, "%d", &cfg.Port); err != nil {
			return config.Config{}, fmt.Errorf("invalid --addr port %q", port)
		}
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// run wires the process and blocks until ctx is cancelled or the server fails.
func run(ctx context.Context, args []string) error {
	f, err := parseFlags(args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(f)
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(cfg.LogLevel)

	backend, err := core.OpenBackend(ctx, cfg.Storage())
	if err != nil {
		return err
	}
	defer func() {
		if err := backend.Close(); err != nil {
			log.Warn("closing backend", "error", err)
		}
	}()

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := core.NewPrometheusMetrics(promReg)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	broadcaster := core.NewBroadcaster(cfg.SubscriberBuffer, log, metrics)
	registry, err := core.NewRegistry(ctx, backend, broadcaster,
		core.WithLogger(log),
		core.WithMetricsRecorder(metrics),
		core.WithTracer(core.NewOtelTracer(nil)),
		core.WithPersistTimeout(cfg.PersistTimeout),
	)
	if err != nil {
		return fmt.Errorf("load rooms from %s backend: %w", backend.Driver(), err)
	}

	handler := gateway.NewHandler(registry, broadcaster, gateway.Options{
		Logger:      log,
		ReportRate:  cfg.ReportRate,
		ReportBurst: cfg.ReportBurst,
		Metrics:     promhttp.HandlerFor(promReg, promhttp.HandlerOpts{Registry: promReg}),
	})

	listener, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Addr(), err)
	}
	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	banner(log, cfg, registry, listener.Addr().String())

	errChan := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		broadcaster.Close()
		return err
	}

	// End event streams first so Shutdown does not wait on them.
	broadcaster.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("Program stopped cleanly")
	return nil
}

func banner(log *slog.Logger, cfg config.Config, registry *core.Registry, addr string) {
	health := registry.Health()
	log.Info("supplywatch started",
		"address", addr,
		"driver", health.Driver,
		"remote", health.Driver.Remote(),
		"rooms", health.Rooms,
		"log_level", cfg.LogLevel,
	)
	log.Info("endpoints",
		"dashboard_api", "/api/rooms",
		"events", "/api/events",
		"device_report", "POST /report",
		"device_lookup", "GET /room/{id}",
		"health", "/healthz",
		"metrics", "/metrics",
	)
}
