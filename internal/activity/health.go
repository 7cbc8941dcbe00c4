package activity

import (
	"context"
	"time"

	"github.com/shaiso/Cascade/internal/domain"
)

// HealthCheck — тривиальная activity для проверки живости worker.
type HealthCheck struct {
	version string
}

// NewHealthCheck создаёт health-check activity.
func NewHealthCheck(version string) *HealthCheck {
	return &HealthCheck{version: version}
}

// Name возвращает имя activity.
func (h *HealthCheck) Name() string { return domain.ActivityHealthCheck }

// Metadata возвращает самоописание activity.
func (h *HealthCheck) Metadata() domain.ActivityMetadata {
	return domain.ActivityMetadata{
		Name:           domain.ActivityHealthCheck,
		Description:    "Reports worker liveness",
		TimeoutSeconds: 30,
		RetryAttempts:  1,
		Returns:        &domain.ReturnSpec{Type: "object", Description: "health status"},
	}
}

// Execute возвращает статус живости.
func (h *HealthCheck) Execute(_ context.Context, _ []any) (any, error) {
	return map[string]any{
		"status":    "healthy",
		"version":   h.version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}, nil
}
