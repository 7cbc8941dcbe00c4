// Cascade gateway — HTTP-вход системы: принимает запросы на запуск
// pipelines, выполняет их через executor и отдаёт историю runs.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Cascade/internal/activity"
	"github.com/shaiso/Cascade/internal/api"
	"github.com/shaiso/Cascade/internal/config"
	"github.com/shaiso/Cascade/internal/discovery"
	"github.com/shaiso/Cascade/internal/mq"
	"github.com/shaiso/Cascade/internal/pipeline"
	"github.com/shaiso/Cascade/internal/repo"
	"github.com/shaiso/Cascade/internal/scheduler"
	"github.com/shaiso/Cascade/internal/telemetry"
	"github.com/shaiso/Cascade/internal/transform"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	_ = godotenv.Load()

	logger := telemetry.SetupLogger()
	logger.Info("starting cascade-gateway", "version", version)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// RabbitMQ
	amqpURL := os.Getenv("AMQP_URL")
	if amqpURL == "" {
		amqpURL = mq.DefaultURL()
	}
	conn, err := mq.NewConnection(amqpURL, logger)
	if err != nil {
		logger.Error("failed to connect to rabbitmq", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	if err := mq.SetupTopology(ctx, conn); err != nil {
		logger.Error("failed to setup topology", "error", err)
		os.Exit(1)
	}

	caller, err := mq.NewCaller(conn, logger)
	if err != nil {
		logger.Error("failed to create caller", "error", err)
		os.Exit(1)
	}
	if err := caller.Start(ctx); err != nil {
		logger.Error("failed to start caller", "error", err)
		os.Exit(1)
	}
	defer caller.Stop()

	// История runs опциональна: без БД gateway работает,
	// просто не сохраняет прошлое.
	var runRepo *repo.RunRepo
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Warn("run history disabled, database unavailable", "error", err)
	} else {
		defer pool.Close()
		runRepo = repo.NewRunRepo(pool)
		logger.Info("connected to database")
	}

	// Transforms и local activities
	transforms := transform.DefaultRegistry(logger)

	registry := activity.NewRegistry()
	registry.Register(activity.NewChunkDocuments(logger))
	registry.Register(activity.NewHealthCheck(version))

	// Конфигурация: статический файл или деривация из discovery
	store := config.NewStore(nil)
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		snap, err := config.LoadStatic(path, transforms)
		if err != nil {
			logger.Error("failed to load configuration", "path", path, "error", err)
			os.Exit(1)
		}
		store.Swap(snap)
		logger.Info("static configuration loaded",
			"path", path,
			"pipelines", snap.PipelineNames(),
		)
	}

	// Discovery
	endpoints := splitList(os.Getenv("WORKER_ENDPOINTS"))
	disc := discovery.NewService(
		discovery.NewAMQPControlPlane(conn),
		endpoints,
		logger,
		discovery.Options{},
	)

	if _, err := store.Current(); err != nil {
		// Статической конфигурации нет — пробуем вывести из discovery
		catalog, err := disc.Refresh(ctx)
		if err != nil {
			logger.Warn("initial discovery failed, starting without configuration", "error", err)
		} else {
			store.Swap(config.FromCatalog(logger, catalog, os.Getenv("DEFAULT_COLLECTION")))
		}
	}

	executor := pipeline.NewExecutor(
		store,
		transforms,
		pipeline.NewLocalInvoker(registry, logger),
		pipeline.NewRemoteInvoker(caller, logger),
		logger,
	)

	// Периодический discovery refresh
	if len(endpoints) > 0 {
		refreshCron := os.Getenv("DISCOVERY_REFRESH_CRON")
		if refreshCron == "" {
			refreshCron = "* * * * *"
		}
		sched := scheduler.New(logger)
		if err := sched.AddJob("discovery-refresh", refreshCron,
			scheduler.DiscoveryRefreshJob(disc, store, logger)); err != nil {
			logger.Error("invalid discovery refresh cron", "error", err)
			os.Exit(1)
		}
		go sched.Run(ctx)
	}

	// HTTP
	handler := api.NewHandler(api.HandlerConfig{
		Executor:  executor,
		Store:     store,
		Discovery: disc,
		Runs:      runRepo,
		Logger:    logger,
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	handler.RegisterRoutes(mux)

	addr := ":8080"
	if v := os.Getenv("API_PORT"); v != "" {
		addr = ":" + v
	}

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
}

// splitList разбирает список значений через запятую.
func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var values []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			values = append(values, part)
		}
	}
	return values
}
