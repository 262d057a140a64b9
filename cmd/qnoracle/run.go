package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/dnscache"
	"go.opentelemetry.io/otel/trace"

	"github.com/zeralabs/qnoracle/internal/config"
	"github.com/zeralabs/qnoracle/internal/peg"
	"github.com/zeralabs/qnoracle/internal/proxy"
	"github.com/zeralabs/qnoracle/internal/proxy/budget"
	"github.com/zeralabs/qnoracle/internal/proxy/clock"
	"github.com/zeralabs/qnoracle/internal/proxy/gate"
	"github.com/zeralabs/qnoracle/internal/proxy/hotset"
	"github.com/zeralabs/qnoracle/internal/proxy/l1"
	"github.com/zeralabs/qnoracle/internal/proxy/popularity"
	"github.com/zeralabs/qnoracle/internal/proxy/singleflight"
	"github.com/zeralabs/qnoracle/internal/proxy/upstream"
	"github.com/zeralabs/qnoracle/internal/server"
	"github.com/zeralabs/qnoracle/internal/server/adminauth"
	"github.com/zeralabs/qnoracle/internal/server/broadcast"
	"github.com/zeralabs/qnoracle/internal/server/writelimit"
	"github.com/zeralabs/qnoracle/internal/storage/sqlite"
	"github.com/zeralabs/qnoracle/internal/telemetry"
	"github.com/zeralabs/qnoracle/internal/worker"
)

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	slog.Info("starting qnoracle", "version", version, "addr", cfg.Server.Addr)

	store, err := sqlite.New(cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer store.Close()
	slog.Info("database opened", "dsn", cfg.Database.DSN)

	// Shared DNS cache for the upstream HTTP clients.
	dnsResolver := &dnscache.Resolver{}
	go func() {
		t := time.NewTicker(5 * time.Minute)
		defer t.Stop()
		for range t.C {
			dnsResolver.Refresh(true)
		}
	}()

	proxyCfg := proxy.LoadConfigFromEnv()
	if proxyCfg.UpstreamBaseURL == "" {
		slog.Warn("UPSTREAM_BASE_URL not set, cache proxy will reject every request with bad config")
	}

	sysClock := clock.System{}

	l1Cache, err := l1.New(proxyCfg.HotsetSize)
	if err != nil {
		return err
	}

	upstreamClient := upstream.New(upstream.Config{
		BaseURL:      proxyCfg.UpstreamBaseURL,
		APIKey:       proxyCfg.UpstreamAPIKey,
		Bearer:       proxyCfg.UpstreamBearer,
		ExtraHeaders: proxyCfg.UpstreamExtraHeaders,
		Timeout:      proxyCfg.Timeout,
		Resolver:     dnsResolver,
	})

	// Prometheus metrics.
	var metrics *telemetry.Metrics
	var metricsHandler http.Handler
	if cfg.Telemetry.Metrics.Enabled {
		promRegistry := prometheus.NewRegistry()
		promRegistry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		promRegistry.MustRegister(collectors.NewGoCollector())
		metrics = telemetry.NewMetrics(promRegistry)
		metricsHandler = promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{})
		slog.Info("prometheus metrics enabled")
	}

	// OpenTelemetry tracing.
	var tracer trace.Tracer
	var tracingShutdown func(context.Context) error
	ctx := context.Background()
	if cfg.Telemetry.Tracing.Enabled {
		endpoint := cfg.Telemetry.Tracing.Endpoint
		if endpoint == "" {
			endpoint = "localhost:4317"
		}
		sampleRate := cfg.Telemetry.Tracing.SampleRate
		if sampleRate == 0 {
			sampleRate = 0.1
		}
		shutdown, err := telemetry.SetupTracing(ctx, endpoint, sampleRate)
		if err != nil {
			slog.Warn("tracing setup failed, continuing without tracing", "error", err)
		} else {
			tracingShutdown = shutdown
			tracer = telemetry.Tracer("qnoracle/server")
			slog.Info("opentelemetry tracing enabled", "endpoint", endpoint, "sample_rate", sampleRate)
		}
	}

	// Shared across the coordinator and the hot-set refresher: the budget
	// bounds total upstream calls per window regardless of which caller
	// consumes them.
	sharedBudget := budget.New(sysClock, proxyCfg.BudgetPerMinute, time.Minute)

	coordDeps := proxy.Deps{
		L1:           l1Cache,
		Popularity:   popularity.New(),
		Budget:       sharedBudget,
		Gate:         gate.New(proxyCfg.Concurrency),
		SingleFlight: singleflight.New(),
		Upstream:     upstreamClient,
		Clock:        sysClock,
		TTLs:         proxyCfg.TTLs(),
		PopHot:       proxyCfg.PopHot,
		PopWarm:      proxyCfg.PopWarm,
		MaxStale:     proxyCfg.MaxStale,
		Tracer:       tracer,
		Metrics:      metrics,
	}
	if proxyCfg.L2Enabled {
		coordDeps.L2 = store
	}
	coordinator := proxy.New(coordDeps)

	// Admin auth, write limiter, and the audit-write broadcaster.
	authIssuer := adminauth.New(cfg.Admin.JWTSecret, cfg.Admin.JWTTTL)
	writeLimiter := writelimit.New(sysClock, cfg.Admin.WriteLimitPerMin)
	eventBus := broadcast.New()

	// Peg-source client and poller.
	pegSourceURL := os.Getenv("PEG_SOURCE_URL")
	var pegClient *peg.Client
	var pegWorker worker.Worker
	if pegSourceURL != "" {
		pegClient = peg.NewClient(pegSourceURL, proxyCfg.Timeout)
		mints := splitNonEmpty(os.Getenv("PEG_WATCH_MINTS"))
		interval := getenvSeconds("PEG_POLL_INTERVAL_SECS", 30)
		pegWorker = peg.NewPoller(peg.Config{
			Client:      pegClient,
			Prices:      store,
			Broadcaster: eventBus,
			Mints:       mints,
			Interval:    interval,
		})
		slog.Info("peg source configured", "mints", len(mints), "interval", interval)
	}

	// Hot-set refresher.
	hotsetRefresher := hotset.New(hotset.Config{
		L2:          store,
		Coordinator: coordinator,
		Budget:      sharedBudget,
		Clock:       sysClock,
		TopK:        proxyCfg.HotsetSize,
		SweepBatch:  200,
		MaxStale:    proxyCfg.MaxStale,
		Metrics:     metrics,
	})

	workers := []worker.Worker{hotsetRefresher}
	if pegWorker != nil {
		workers = append(workers, pegWorker)
	}
	runner := worker.NewRunner(workers...)

	handler := server.New(server.Deps{
		Coordinator:       coordinator,
		Store:             store,
		Auth:              authIssuer,
		Broadcast:         eventBus,
		WriteLimiter:      writeLimiter,
		Peg:               pegClient,
		BootstrapUser:     cfg.Admin.BootstrapUser,
		BootstrapPassword: cfg.Admin.BootstrapPassword,
		Metrics:           metrics,
		MetricsHandler:    metricsHandler,
		Tracer:            tracer,
		ReadyCheck:        store.Ping,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	workerDone := make(chan error, 1)
	go func() {
		workerDone <- runner.Run(workerCtx)
	}()

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	slog.Info("qnoracle ready", "addr", cfg.Server.Addr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("shutting down", "signal", sig)
	case err := <-errCh:
		workerCancel()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		workerCancel()
		return err
	}

	workerCancel()
	if err := <-workerDone; err != nil {
		slog.Error("worker shutdown error", "error", err)
	}

	if tracingShutdown != nil {
		if err := tracingShutdown(shutdownCtx); err != nil {
			slog.Error("tracing shutdown error", "error", err)
		}
	}

	slog.Info("qnoracle stopped")
	return nil
}

// splitNonEmpty splits a comma-separated list, dropping empty entries.
func splitNonEmpty(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func getenvSeconds(key string, defSecs int64) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return time.Duration(defSecs) * time.Second
	}
	n, err := time.ParseDuration(v + "s")
	if err != nil {
		return time.Duration(defSecs) * time.Second
	}
	return n
}
