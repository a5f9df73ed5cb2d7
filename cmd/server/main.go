package main

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sevagate/internal/artifact"
	"sevagate/internal/platform/config"
	"sevagate/internal/platform/httpserver"
	"sevagate/internal/platform/logger"
	platformredis "sevagate/internal/platform/redis"
	"sevagate/internal/roleguard"
	"sevagate/internal/workflow/cache"
	"sevagate/internal/workflow/export"
	"sevagate/internal/workflow/handler"
	"sevagate/internal/workflow/metrics"
	"sevagate/internal/workflow/service"
	certstore "sevagate/internal/workflow/store/certificate"
	docstore "sevagate/internal/workflow/store/document"
	errstore "sevagate/internal/workflow/store/errorrequest"

	"sevagate/pkg/platform/audit/publisher"
	kafkasink "sevagate/pkg/platform/audit/sink/kafka"
	auditmem "sevagate/pkg/platform/audit/store/memory"
	"sevagate/pkg/platform/middleware/request"
	"sevagate/pkg/platform/middleware/requesttime"
)

// objectStore is what both the minio and the in-memory artifact backends
// provide: writes for the registries, reads for the exporter.
type objectStore interface {
	Put(ctx context.Context, objectName string, upload artifact.Upload) (string, error)
	Fetch(ctx context.Context, objectName string) (io.ReadCloser, error)
}

// stores groups the three persistence backends so the postgres/memory switch
// stays in one place.
type stores struct {
	documents    service.DocumentStore
	certificates interface {
		artifact.CertificateStore
		export.CertificateFinder
	}
	requests service.ErrorRequestStore
}

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx := context.Background()

	st, db, err := buildStores(cfg)
	if err != nil {
		log.Error("store initialization failed", "error", err)
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
	}

	objects, err := buildObjectStore(ctx, cfg, log)
	if err != nil {
		log.Error("object store initialization failed", "error", err)
		os.Exit(1)
	}

	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("redis initialization failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	m := metrics.New()

	var documentCache *cache.DocumentCache
	if redisClient != nil {
		documentCache = cache.NewDocumentCache(redisClient.Client, cfg.RedisCacheTTL, m)
	}

	auditOpts := []publisher.Option{
		publisher.WithAsyncBuffer(256),
		publisher.WithLogger(log),
	}
	kafka, err := kafkasink.New(cfg.KafkaBrokers, cfg.KafkaAuditTopic)
	if err != nil {
		log.Error("kafka audit sink initialization failed", "error", err)
		os.Exit(1)
	}
	if kafka != nil {
		defer kafka.Close()
		auditOpts = append(auditOpts, publisher.WithSink(kafka))
	}
	auditPublisher := publisher.NewPublisher(auditmem.NewInMemoryStore(), auditOpts...)
	defer auditPublisher.Close()

	registry := artifact.NewRegistry(st.documents, st.certificates, objects, log)
	svc := service.New(st.documents, st.requests, registry,
		service.WithLogger(log),
		service.WithMetrics(m),
		service.WithAudit(auditPublisher),
		service.WithCache(documentCache),
	)
	exporter := export.NewExporter(st.documents, st.certificates, objects, log)
	tokens := roleguard.NewTokenService(cfg.JWTSigningKey, "sevagate", "sevagate-api")

	router := chi.NewRouter()
	router.Use(chimiddleware.Recoverer)
	router.Use(request.Middleware)
	router.Use(requesttime.Middleware)

	handler.New(svc, exporter, tokens, log).Register(router)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", healthz(db, redisClient))

	srv := httpserver.New(cfg.Addr, router)

	go func() {
		log.Info("sevagate listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}

// buildStores selects postgres when DATABASE_URL is set and in-memory stores
// otherwise. The returned *sql.DB is nil in memory mode.
func buildStores(cfg config.Server) (stores, *sql.DB, error) {
	if cfg.DatabaseURL == "" {
		return stores{
			documents:    docstore.NewInMemory(),
			certificates: certstore.NewInMemory(),
			requests:     errstore.NewInMemory(),
		}, nil, nil
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return stores{}, nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return stores{}, nil, err
	}
	return stores{
		documents:    docstore.NewPostgres(db),
		certificates: certstore.NewPostgres(db),
		requests:     errstore.NewPostgres(db),
	}, db, nil
}

// buildObjectStore selects minio when an endpoint is configured and the
// in-memory store otherwise.
func buildObjectStore(ctx context.Context, cfg config.Server, log *slog.Logger) (objectStore, error) {
	if cfg.MinioEndpoint == "" {
		log.Warn("no object store configured, artifacts held in memory")
		return artifact.NewMemoryObjectStore(cfg.PublicBaseURL + "/artifacts"), nil
	}

	store, err := artifact.NewMinioStore(artifact.MinioConfig{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		UseSSL:    cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, err
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func healthz(db *sql.DB, redisClient *platformredis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if db != nil {
			if err := db.PingContext(ctx); err != nil {
				http.Error(w, "database unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		if redisClient != nil {
			if err := redisClient.Health(ctx); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
