package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sarkariwatch/scraper-http-service/common/db"
	"github.com/sarkariwatch/scraper-http-service/common/utils"
)

// HealthHandler reports dependency health.
type HealthHandler struct {
	db     *db.DB
	router *chi.Mux
}

func NewHealthHandler(db *db.DB) *HealthHandler {
	router := chi.NewRouter()

	h := &HealthHandler{
		db:     db,
		router: router,
	}

	router.Get("/", h.handleHealth)
	return h
}

func (h *HealthHandler) Router() *chi.Mux {
	return h.router
}

func (h *HealthHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{
		"database": "ok",
		"redis":    "ok",
	}
	healthy := true

	if err := h.db.Ping(r.Context()); err != nil {
		checks["database"] = err.Error()
		healthy = false
	}

	if _, err := h.db.Redis.Exists(r.Context(), "health-probe"); err != nil {
		checks["redis"] = err.Error()
		healthy = false
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	utils.WriteJSON(w, status, checks)
}
