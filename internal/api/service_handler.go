package api

import (
	"net/http"

	"github.com/shaiso/Cascade/internal/config"
)

// ListServices возвращает каталог сервисов по данным discovery.
// Внутри TTL-окна отдаётся кэшированный каталог.
func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	if h.discovery == nil {
		Unavailable(w, "discovery is not configured")
		return
	}

	catalog, err := h.discovery.Hybrid(r.Context())
	if err != nil {
		Unavailable(w, err.Error())
		return
	}
	Success(w, catalog)
}

// RefreshDiscovery принудительно перестраивает каталог и заменяет
// снимок конфигурации целиком.
//
// Ошибка discovery не трогает текущий снимок: идущие runs продолжают
// работать на той конфигурации, с которой стартовали.
func (h *Handler) RefreshDiscovery(w http.ResponseWriter, r *http.Request) {
	if h.discovery == nil {
		Unavailable(w, "discovery is not configured")
		return
	}

	catalog, err := h.discovery.Refresh(r.Context())
	if err != nil {
		Unavailable(w, err.Error())
		return
	}

	defaultCollection := ""
	if snap, err := h.store.Current(); err == nil {
		defaultCollection = snap.DefaultCollection
	}

	snap := config.FromCatalog(h.logger, catalog, defaultCollection)
	h.store.Swap(snap)

	Success(w, map[string]any{
		"services":  len(catalog.Services),
		"pipelines": snap.PipelineNames(),
	})
}
