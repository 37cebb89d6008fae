package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"product-attribute-service/internal/api"
	"product-attribute-service/internal/config"
	"product-attribute-service/internal/domain"
	"product-attribute-service/internal/events"
	"product-attribute-service/internal/logger"
	"product-attribute-service/internal/metrics"
	"product-attribute-service/internal/query"
	"product-attribute-service/internal/saga"
	"product-attribute-service/internal/store"
	"product-attribute-service/internal/workflow"
)

// relationStore is what the process needs from either store driver.
type relationStore interface {
	store.RelationStore
	Close() error
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("INFO: No .env file found or failed to load, relying on system environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: Error loading configuration: %v", err)
	}

	zlog, err := logger.New(logger.LogConfig{
		Level:       cfg.LogLevel,
		Environment: cfg.AppEnv,
		ServiceName: cfg.ServiceName,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to build logger: %v", err)
	}
	defer zlog.Sync() //nolint:errcheck
	zap.ReplaceGlobals(zlog)
	zlog.Info("Starting service", zap.String("store_driver", cfg.StoreDriver))

	relStore, ping, err := openStore(cfg, zlog)
	if err != nil {
		zlog.Fatal("Failed to open relation store", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	var collectorsSet *metrics.Collectors
	if cfg.Metrics.Enabled {
		collectorsSet = metrics.New(cfg.Metrics.Prefix, registry)
	}

	var emitter events.Emitter = events.Nop{}
	if cfg.Events.Enabled {
		emitter = events.NewLogEmitter(zlog)
	}
	service := workflow.NewService(relStore, saga.NewRunner(collectorsSet), emitter)

	httpAPIHandler := api.NewHTTPHandler(service,
		query.DefaultStatus(domain.ProductStatusPublished),
		query.SalesChannels(nil),
		query.Categories(),
	)

	httpRouter := chi.NewRouter()
	setupBaseMiddleware(httpRouter, zlog, collectorsSet, cfg.HttpServer.RequestTimeout)
	registerHealthCheck(httpRouter, cfg.ServiceName, ping)
	if cfg.Metrics.Enabled {
		httpRouter.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}
	httpAPIHandler.RegisterRoutes(httpRouter)

	httpServer := &http.Server{
		Addr:         ":" + cfg.HttpServer.Port,
		Handler:      httpRouter,
		ReadTimeout:  cfg.HttpServer.TimeoutRead,
		WriteTimeout: cfg.HttpServer.TimeoutWrite,
		IdleTimeout:  cfg.HttpServer.TimeoutIdle,
	}

	go func() {
		zlog.Info("HTTP server listening", zap.String("port", cfg.HttpServer.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("HTTP server ListenAndServe error", zap.Error(err))
		}
		zlog.Info("HTTP server has stopped")
	}()

	grpcServer, healthServer := setupGRPCServer(zlog)
	grpcListener, err := net.Listen("tcp", ":"+cfg.GrpcServer.Port)
	if err != nil {
		zlog.Fatal("Failed to listen for gRPC", zap.String("port", cfg.GrpcServer.Port), zap.Error(err))
	}

	go func() {
		zlog.Info("gRPC health server listening", zap.String("port", cfg.GrpcServer.Port))
		if err := grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			zlog.Fatal("gRPC server Serve error", zap.Error(err))
		}
		zlog.Info("gRPC server has stopped")
	}()

	shutdownComplete := make(chan struct{})
	go waitForShutdown(zlog, httpServer, grpcServer, healthServer, relStore, shutdownComplete)

	<-shutdownComplete
	zlog.Info("Service shutdown sequence finished")
}

// openStore returns the configured relation store and a liveness check for
// it.
func openStore(cfg *config.Config, zlog *zap.Logger) (relationStore, func(context.Context) error, error) {
	if cfg.StoreDriver == "memory" {
		zlog.Warn("Using in-memory relation store, data is lost on restart")
		return store.NewMemoryStore(), func(context.Context) error { return nil }, nil
	}

	db, err := sql.Open("postgres", cfg.Postgres.DSN())
	if err != nil {
		return nil, nil, err
	}
	db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Postgres.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	pg := store.NewPostgresStore(db)
	if err := pg.Ping(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	if cfg.Postgres.Migrate {
		if err := pg.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		zlog.Info("Database schema applied")
	}
	zlog.Info("Database connection established")
	return pg, pg.Ping, nil
}

func setupBaseMiddleware(router *chi.Mux, zlog *zap.Logger, m *metrics.Collectors, timeout time.Duration) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(logger.Middleware(zlog))
	router.Use(m.Middleware)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(timeout))
}

func registerHealthCheck(router *chi.Mux, serviceName string, ping func(context.Context) error) {
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		storeStatus := "healthy"
		if err := ping(ctx); err != nil {
			storeStatus = "unhealthy"
			logger.FromContext(r.Context()).Warn("Health check store ping failed", zap.Error(err))
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":      "healthy",
			"serviceName": serviceName,
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
			"store":       storeStatus,
		})
	})
}

func setupGRPCServer(zlog *zap.Logger) (*grpc.Server, *health.Server) {
	s := grpc.NewServer()

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	grpc_health_v1.RegisterHealthServer(s, healthServer)

	reflection.Register(s)
	zlog.Debug("gRPC health and reflection services registered")
	return s, healthServer
}

func waitForShutdown(
	zlog *zap.Logger,
	httpServer *http.Server,
	grpcServer *grpc.Server,
	healthServer *health.Server,
	relStore relationStore,
	shutdownComplete chan struct{},
) {
	defer close(shutdownComplete)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	receivedSignal := <-sigChan
	zlog.Info("Received signal, starting graceful shutdown", zap.String("signal", receivedSignal.String()))

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	healthServer.Shutdown()
	stoppedGrpc := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stoppedGrpc)
	}()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zlog.Warn("HTTP server graceful shutdown failed", zap.Error(err))
	} else {
		zlog.Info("HTTP server gracefully shut down")
	}

	select {
	case <-stoppedGrpc:
		zlog.Info("gRPC server gracefully shut down")
	case <-shutdownCtx.Done():
		zlog.Warn("gRPC server graceful shutdown timed out, forcing stop", zap.Error(shutdownCtx.Err()))
		grpcServer.Stop()
	}

	if err := relStore.Close(); err != nil {
		zlog.Warn("Error closing relation store", zap.Error(err))
	}
	zlog.Info("Graceful shutdown sequence completed")
}
