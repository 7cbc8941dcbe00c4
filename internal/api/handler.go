package api

import (
	"log/slog"

	"github.com/shaiso/Cascade/internal/config"
	"github.com/shaiso/Cascade/internal/discovery"
	"github.com/shaiso/Cascade/internal/pipeline"
	"github.com/shaiso/Cascade/internal/repo"
)

// Handler — HTTP-обработчики gateway.
type Handler struct {
	executor  *pipeline.Executor
	store     *config.Store
	discovery *discovery.Service
	runs      *repo.RunRepo
	logger    *slog.Logger
}

// HandlerConfig — зависимости Handler.
type HandlerConfig struct {
	Executor  *pipeline.Executor
	Store     *config.Store
	Discovery *discovery.Service

	// Runs — репозиторий runs. Nil допустим: gateway без БД
	// просто не сохраняет историю.
	Runs *repo.RunRepo

	Logger *slog.Logger
}

// NewHandler создаёт Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		executor:  cfg.Executor,
		store:     cfg.Store,
		discovery: cfg.Discovery,
		runs:      cfg.Runs,
		logger:    logger,
	}
}
