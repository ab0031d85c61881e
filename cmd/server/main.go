package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"propbridge/internal/directory"
	"propbridge/internal/entitlement"
	"propbridge/internal/events"
	"propbridge/internal/geo"
	interesthandler "propbridge/internal/interest/handler"
	interestmetrics "propbridge/internal/interest/metrics"
	interestservice "propbridge/internal/interest/service"
	intereststore "propbridge/internal/interest/store"
	jwttoken "propbridge/internal/jwt_token"
	matchinghandler "propbridge/internal/matching/handler"
	matchingmetrics "propbridge/internal/matching/metrics"
	matchingservice "propbridge/internal/matching/service"
	matchingstore "propbridge/internal/matching/store"
	"propbridge/internal/notify"
	"propbridge/internal/platform/config"
	"propbridge/internal/platform/httpserver"
	"propbridge/internal/platform/logger"
	"propbridge/internal/platform/middleware"
	"propbridge/internal/platform/postgres"
	redisplatform "propbridge/internal/platform/redis"
	"propbridge/internal/property"
	"propbridge/migrations"
)

// main wires dependencies and owns the process lifecycle. Business logic
// lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	db, err := postgres.Open(ctx, cfg.PostgresURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migrations.Apply(ctx, db); err != nil {
		return err
	}

	redisClient, err := redisplatform.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Identity and subscription collaborators. Redis caching is layered on
	// only when configured; both decorators fall through on cache errors.
	var dir directory.Directory = directory.NewPostgres(db)
	var ent entitlement.Service = entitlement.NewPostgres(db)
	if redisClient != nil {
		dir = directory.NewCached(dir, redisClient.Client, log)
		ent = entitlement.NewCached(ent, redisClient.Client, cfg.EntitlementTTL, log)
	}

	properties := property.NewPostgres(db)

	var normalizer geo.Normalizer = geo.Noop{}
	if cfg.GeocoderURL != "" {
		normalizer = geo.NewResilient(geo.NewHTTPNormalizer(cfg.GeocoderURL), log)
	}

	dispatcher := notify.NewAsyncDispatcher(
		notify.NewLogSender(log),
		cfg.NotifyWorkers, cfg.NotifyBuffer,
		log, notify.NewMetrics(),
	)
	defer dispatcher.Close()

	// Match events go through the transactional outbox; the worker drains
	// them to Kafka. Without brokers the entries queue up in Postgres and
	// ship once a broker is configured.
	outbox := events.NewOutbox(db)
	if len(cfg.Kafka.Brokers) > 0 {
		sink, err := events.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return err
		}
		defer sink.Close()
		if err := sink.EnsureTopic(ctx); err != nil {
			return err
		}
		go func() {
			if err := events.NewWorker(outbox, sink, log).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("outbox worker stopped", "error", err)
			}
		}()
	} else {
		log.Warn("no kafka brokers configured, match events stay queued in the outbox")
	}

	matchingSvc := matchingservice.New(
		matchingstore.NewPostgresRequirementStore(db),
		matchingstore.NewPostgresMatchStore(db),
		properties, dir, dispatcher, outbox, normalizer,
		db, log, matchingmetrics.New(),
	)
	interestSvc := interestservice.New(
		intereststore.NewPostgresInterestStore(db),
		intereststore.NewPostgresMediationStore(db),
		intereststore.NewPostgresSessionStore(db),
		properties, dir, ent, matchingSvc, dispatcher,
		db, log, interestmetrics.New(),
	)

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, "propbridge", "propbridge-api")

	router := chi.NewRouter()
	router.Use(
		middleware.Recovery(log),
		middleware.RequestID,
		middleware.RequestTime,
		middleware.Logger(log),
		middleware.Timeout(30*time.Second),
		middleware.ContentTypeJSON,
	)

	router.Get("/healthz", healthHandler(db, redisClient))
	router.Handle("/metrics", promhttp.Handler())

	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(jwttoken.NewMiddlewareAdapter(jwtService), log))
		matchinghandler.New(matchingSvc, log).Register(r)
		interesthandler.New(interestSvc, dir, log).Register(r)
	})

	srv := httpserver.New(cfg.Addr, router)

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func healthHandler(db interface{ PingContext(context.Context) error }, redisClient *redisplatform.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			http.Error(w, `{"status":"degraded","postgres":"down"}`, http.StatusServiceUnavailable)
			return
		}
		if redisClient != nil {
			if err := redisClient.Health(ctx); err != nil {
				http.Error(w, `{"status":"degraded","redis":"down"}`, http.StatusServiceUnavailable)
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}
