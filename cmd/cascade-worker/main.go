// Cascade worker — процесс, поллящий свою task queue и выполняющий
// activities: chunking, embedding, индексацию и поиск. Самоописание
// для discovery отдаётся по HTTP (GET /metadata).
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Cascade/internal/activity"
	"github.com/shaiso/Cascade/internal/embedding"
	"github.com/shaiso/Cascade/internal/mq"
	"github.com/shaiso/Cascade/internal/telemetry"
	"github.com/shaiso/Cascade/internal/vectorstore"
	"github.com/shaiso/Cascade/internal/worker"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	_ = godotenv.Load()

	logger := telemetry.SetupLogger()
	logger.Info("starting cascade-worker", "version", version)

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

	// Embedder и векторное хранилище
	embedder := buildEmbedder()
	store := buildStore()
	logger.Info("collaborators ready",
		"embedder", embedder.Name(),
		"dimension", embedder.Dimension(),
	)

	// Activities этого worker
	registry := activity.NewRegistry()
	registry.Register(activity.NewChunkDocuments(logger))
	registry.Register(activity.NewEmbedAndIndex(logger, embedder, store))
	registry.Register(activity.NewSearchDocuments(logger, embedder, store))
	registry.Register(activity.NewHealthCheck(version))

	serviceName := envOr("SERVICE_NAME", "embedding-service")
	taskQueue := envOr("TASK_QUEUE", serviceName+"-task-queue")

	hostname, _ := os.Hostname()
	w := worker.New(worker.Config{
		ServiceName: serviceName,
		TaskQueue:   taskQueue,
		Identity:    fmt.Sprintf("%s@%d", hostname, os.Getpid()),
		Version:     version,
		Registry:    registry,
		Conn:        conn,
		Publisher:   mq.NewPublisher(conn, logger),
		Prefetch:    envInt("WORKER_PREFETCH", 0),
		Logger:      logger,
	})

	if err := w.Start(ctx); err != nil {
		logger.Error("failed to start worker", "error", err)
		os.Exit(1)
	}

	// Metadata endpoint для discovery
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	worker.NewMetadataServer(w, logger).RegisterRoutes(mux)

	addr := ":" + envOr("WORKER_HTTP_PORT", "8090")
	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		logger.Info("metadata endpoint listening", "addr", addr)
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
	w.Stop()

	logger.Info("stopped")
}

// buildEmbedder выбирает реализацию embedder по окружению.
// EMBEDDER=openai требует OPENAI_BASE_URL; всё остальное — hashing.
func buildEmbedder() embedding.Embedder {
	if os.Getenv("EMBEDDER") == "openai" {
		return embedding.NewOpenAI(embedding.OpenAIConfig{
			BaseURL:   os.Getenv("OPENAI_BASE_URL"),
			APIKey:    os.Getenv("OPENAI_API_KEY"),
			Model:     envOr("EMBEDDING_MODEL", "text-embedding-3-small"),
			Dimension: envInt("EMBEDDING_DIM", 0),
		})
	}
	return embedding.NewHashing(envInt("EMBEDDING_DIM", 0))
}

// buildStore выбирает векторное хранилище по окружению.
// QDRANT_URL включает Qdrant; без него — in-memory store.
func buildStore() vectorstore.Store {
	if url := os.Getenv("QDRANT_URL"); url != "" {
		return vectorstore.NewQdrant(vectorstore.QdrantConfig{
			URL:    url,
			APIKey: os.Getenv("QDRANT_API_KEY"),
		})
	}
	return vectorstore.NewMemory()
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
