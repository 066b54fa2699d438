package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sarkariwatch/scraper-http-service/common/db"
	"github.com/sarkariwatch/scraper-http-service/common/services"
	"github.com/sarkariwatch/scraper-http-service/common/utils"
	"github.com/sarkariwatch/scraper-http-service/repository"
)

// SourceHandler manages the source registry.
type SourceHandler struct {
	db      *db.DB
	sources *services.SourceService
	jobs    *services.JobStoreService
	router  *chi.Mux
}

func NewSourceHandler(db *db.DB) *SourceHandler {
	router := chi.NewRouter()

	h := &SourceHandler{
		db:      db,
		sources: services.NewSourceService(db.Queries),
		jobs:    services.NewJobStoreService(db.Queries),
		router:  router,
	}

	router.Get("/", h.handleList)
	router.Put("/", h.handleUpsert)
	router.Get("/{sourceID}", h.handleGet)
	return h
}

func (h *SourceHandler) Router() *chi.Mux {
	return h.router
}

// SourceParams is the upsert payload.
type SourceParams struct {
	ID             string          `json:"id"`
	Name           string          `json:"name" validate:"required"`
	BaseUrl        string          `json:"base_url" validate:"required,url"`
	Config         json.RawMessage `json:"config"`
	FrequencyHours int32           `json:"frequency_hours" validate:"gte=1"`
	IsActive       bool            `json:"is_active"`
}

func (h *SourceHandler) handleList(w http.ResponseWriter, r *http.Request) {
	sources, err := h.sources.ListActiveRows(r.Context())
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Failed to list sources")
		return
	}
	utils.WriteJSON(w, http.StatusOK, sources)
}

func (h *SourceHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "sourceID")

	source, err := h.sources.GetRow(r.Context(), sourceID)
	if err != nil {
		if errors.Is(err, repository.ErrNoRows) {
			utils.WriteError(w, http.StatusNotFound, "Source not found")
			return
		}
		utils.WriteError(w, http.StatusInternalServerError, "Failed to load source")
		return
	}

	count, err := h.jobs.CountBySource(r.Context(), sourceID)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Failed to count jobs")
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]any{
		"source":    source,
		"job_count": count,
	})
}

func (h *SourceHandler) handleUpsert(w http.ResponseWriter, r *http.Request) {
	var p SourceParams
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	validate := validator.New()
	if err := validate.Struct(p); err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	source := repository.Source{
		ID:             p.ID,
		Name:           p.Name,
		BaseUrl:        p.BaseUrl,
		Config:         p.Config,
		FrequencyHours: p.FrequencyHours,
		IsActive:       p.IsActive,
	}

	if err := h.sources.Upsert(r.Context(), source); err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]string{"id": p.ID})
}
