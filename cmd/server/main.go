package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"regform/internal/platform/config"
	"regform/internal/platform/httpserver"
	"regform/internal/platform/logger"
	"regform/internal/platform/metrics"
	"regform/internal/platform/ratelimit"
	"regform/internal/platform/tracing"
	"regform/internal/registration/form"
	"regform/internal/registration/handler"
	regmetrics "regform/internal/registration/metrics"
	"regform/internal/registration/service"
	"regform/internal/registration/store"
	"regform/internal/registration/upload"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal packages.
func main() {
	cfg, err := config.Load(os.Getenv("REGFORM_CONFIG"))
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	tp, err := tracing.NewProvider(ctx, tracing.Config{
		Exporter:     cfg.Tracing.Exporter,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		SampleRate:   cfg.Tracing.SampleRate,
		ServiceName:  "regform",
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.Warn("tracer shutdown failed", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	httpMetrics := metrics.NewWithRegistry(reg)

	records, err := store.Open(ctx, cfg.Store, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := records.Close(); err != nil {
			log.Warn("failed to close record store", "error", err)
		}
	}()

	auditing, err := openAudit(ctx, cfg.Kafka, log)
	if err != nil {
		return err
	}
	defer auditing.close()

	guard := upload.New(upload.WithMaxMB(cfg.Form.MaxUploadMB))
	opts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(regmetrics.NewWithRegistry(reg)),
		service.WithAuditPublisher(auditing.publisher),
		service.WithResetDelay(cfg.Form.ResetDelay),
		service.WithUploadGuard(guard),
		service.WithStoreKey(cfg.Store.Key),
		service.WithTracer(tp.Tracer()),
	}
	if cfg.Form.SealPasswords {
		opts = append(opts, service.WithSealer(service.NewBcryptSealer(cfg.Form.BcryptCost)))
	}
	svc := service.New(records.Records, opts...)

	var sessions *form.Sessions
	sessions = form.NewSessions(
		form.WithTTL(cfg.Form.SessionTTL),
		form.WithOnEvicted(func(id string) {
			svc.Forget(id)
			httpMetrics.SetActiveForms(sessions.Count())
		}),
	)

	limiter := ratelimit.New(cfg.Limits.FormsPerWindow, cfg.Limits.Window)

	hopts := []handler.Option{
		handler.WithLogger(log),
		handler.WithMetrics(httpMetrics),
		handler.WithRequestTimeout(cfg.Server.RequestTimeout),
		handler.WithMaxUploadBytes(guard.MaxBodyBytes()),
		handler.WithRateLimiter(limiter),
	}
	for name, check := range records.Checks {
		hopts = append(hopts, handler.WithHealthCheck(name, check))
	}
	if auditing.check != nil {
		hopts = append(hopts, handler.WithHealthCheck("audit", auditing.check))
	}

	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	handler.New(svc, sessions, hopts...).Register(r)

	srv := httpserver.New(cfg.Server.Addr, r)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Returns once the inbox is closed below.
		return auditing.worker.Run(context.WithoutCancel(gctx))
	})
	if limiter != nil {
		g.Go(func() error {
			return limiter.Run(gctx, cfg.Limits.Window)
		})
	}
	g.Go(func() error {
		defer auditing.closeInbox()
		defer svc.Close()
		log.Info("starting regform", "addr", cfg.Server.Addr, "store", cfg.Store.Backend)
		return httpserver.Run(gctx, srv, cfg.Server.ShutdownTimeout)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
