package worker

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/shaiso/Cascade/internal/domain"
)

// Metadata — самоописание worker, которое читает discovery.
type Metadata struct {
	ServiceName    string                    `json:"service_name"`
	TaskQueue      string                    `json:"task_queue"`
	WorkerIdentity string                    `json:"worker_identity"`
	Health         string                    `json:"health"`
	Version        string                    `json:"version"`
	Activities     []domain.ActivityMetadata `json:"activities"`
}

// MetadataServer отдаёт самоописание worker по HTTP.
//
// GET /metadata — каталог activities с таймаутами и retry-политиками.
// GET /health   — живость процесса.
type MetadataServer struct {
	worker *Worker
	logger *slog.Logger
}

// NewMetadataServer создаёт HTTP-слой discovery для worker.
func NewMetadataServer(w *Worker, logger *slog.Logger) *MetadataServer {
	return &MetadataServer{worker: w, logger: logger}
}

// RegisterRoutes регистрирует маршруты metadata endpoint.
func (s *MetadataServer) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /metadata", s.handleMetadata)
	mux.HandleFunc("GET /health", s.handleHealth)
}

func (s *MetadataServer) handleMetadata(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, s.worker.Metadata())
}

func (s *MetadataServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, map[string]string{"status": "healthy"})
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}
