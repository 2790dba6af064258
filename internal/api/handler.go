package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/openclaw/gateway/internal/manager"
	"github.com/openclaw/gateway/internal/syncer"
)

// Handler is the gateway ops API: read-mostly endpoints over the tenant
// manager and sync service, consumed by openclawctl and operators. It is
// meant to be bound to a loopback or otherwise trusted interface.
type Handler struct {
	mgr     *manager.Manager
	sync    *syncer.Service
	metrics http.Handler // Prometheus exposition, optional
}

func New(mgr *manager.Manager, sync *syncer.Service, metrics http.Handler) *Handler {
	return &Handler{mgr: mgr, sync: sync, metrics: metrics}
}

// Router returns the chi router with all routes registered.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/healthz", h.Healthz)
	r.Get("/stats", h.Stats)
	r.Get("/tenants", h.ListTenants)
	r.Get("/tenants/{userID}", h.GetTenant)
	r.Post("/tenants/{userID}/evict", h.EvictTenant)
	r.Post("/sync", h.SyncNow)
	if h.metrics != nil {
		r.Handle("/metrics", h.metrics)
	}

	return r
}

// Healthz returns 200 OK.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// StatsResponse combines manager counters with sync state.
type StatsResponse struct {
	Manager manager.Stats `json:"manager"`
	Sync    syncer.Status `json:"sync"`
}

// Stats returns current manager and sync counters.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatsResponse{
		Manager: h.mgr.Stats(),
		Sync:    h.sync.Status(),
	})
}

// ListTenants returns snapshots of all cached instances. Snapshots never
// carry credentials.
func (h *Handler) ListTenants(w http.ResponseWriter, r *http.Request) {
	instances := h.mgr.Instances()
	if instances == nil {
		instances = []manager.Snapshot{}
	}
	writeJSON(w, http.StatusOK, instances)
}

// GetTenant returns one tenant snapshot, loading it from disk if needed.
func (h *Handler) GetTenant(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	snap, err := h.mgr.GetInstance(userID)
	if err != nil {
		http.Error(w, "bad user id", http.StatusBadRequest)
		return
	}
	if snap == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// EvictTenant removes a tenant from the cache. ?force=true overrides the
// pending-request guard.
func (h *Handler) EvictTenant(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	force := r.URL.Query().Get("force") == "true"

	evicted := h.mgr.ForceEvict(userID, force)
	if !evicted {
		slog.Warn("evict request refused or not found", "user", userID, "force", force)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"evicted": evicted})
}

// SyncNow triggers an immediate incremental sync that drains all pages. A
// sync already in flight yields
// 409 with the sync_in_progress marker.
func (h *Handler) SyncNow(w http.ResponseWriter, r *http.Request) {
	res := h.sync.SyncNow(r.Context())
	status := http.StatusOK
	if !res.Success {
		if res.Error == "sync_in_progress" {
			status = http.StatusConflict
		} else {
			status = http.StatusBadGateway
		}
	}
	writeJSON(w, status, res)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
