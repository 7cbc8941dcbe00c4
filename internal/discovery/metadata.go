package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/shaiso/Cascade/internal/domain"
)

// metadataPath — well-known путь самоописания worker.
const metadataPath = "/metadata"

// metadataResponse — ответ worker на GET /metadata.
type metadataResponse struct {
	ServiceName    string                    `json:"service_name"`
	TaskQueue      string                    `json:"task_queue"`
	WorkerIdentity string                    `json:"worker_identity"`
	Health         string                    `json:"health"`
	Version        string                    `json:"version"`
	Activities     []domain.ActivityMetadata `json:"activities"`
}

// fetchMetadata запрашивает самоописание одного worker endpoint.
func fetchMetadata(ctx context.Context, client *http.Client, endpoint string) (*metadataResponse, error) {
	url := endpoint
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "http://" + url
	}
	url = strings.TrimSuffix(url, "/") + metadataPath

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("metadata request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("metadata request: status %d", resp.StatusCode)
	}

	var meta metadataResponse
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	if meta.ServiceName == "" {
		return nil, fmt.Errorf("metadata has no service_name")
	}
	return &meta, nil
}

// serviceInfo конвертирует ответ metadata в запись каталога.
func (m *metadataResponse) serviceInfo(endpoint string) domain.ServiceInfo {
	activities := make(map[string]domain.ActivityMetadata, len(m.Activities))
	for _, a := range m.Activities {
		activities[a.Name] = a
	}
	return domain.ServiceInfo{
		Name:           m.ServiceName,
		TaskQueue:      m.TaskQueue,
		Endpoint:       endpoint,
		WorkerIdentity: m.WorkerIdentity,
		Health:         m.Health,
		Version:        m.Version,
		Activities:     activities,
		QueueStatus:    domain.ServiceStatusInactive,
	}
}
