package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
	"github.com/sarkariwatch/scraper-http-service/common/db"
	"github.com/sarkariwatch/scraper-http-service/common/messaging"
	"github.com/sarkariwatch/scraper-http-service/common/services"
	"github.com/sarkariwatch/scraper-http-service/common/utils"
	"github.com/sarkariwatch/scraper-http-service/repository"
	"github.com/sarkariwatch/scraper-http-service/scraper"
)

// ScraperHandler exposes scrape-run operations: trigger, status, cancel.
type ScraperHandler struct {
	db     *db.DB
	broker *messaging.NatsBroker
	engine *scraper.Engine
	audit  *services.AuditService
	router *chi.Mux
}

func NewScraperHandler(db *db.DB, broker *messaging.NatsBroker, engine *scraper.Engine) *ScraperHandler {
	router := chi.NewRouter()

	h := &ScraperHandler{
		db:     db,
		broker: broker,
		engine: engine,
		audit:  services.NewAuditService(db.Queries),
		router: router,
	}

	router.Post("/run-all", h.handleRunAll)
	router.Post("/{sourceID}/run", h.handleRunSource)
	router.Post("/{sourceID}/cancel", h.handleCancel)
	router.Get("/{sourceID}/runs", h.handleListRuns)
	router.Get("/runs/{runID}", h.handleGetRun)
	router.Get("/runs/{runID}/errors", h.handleListErrors)
	return h
}

func (h *ScraperHandler) Router() *chi.Mux {
	return h.router
}

// handleRunSource starts a run for one source immediately and returns its
// run ID.
func (h *ScraperHandler) handleRunSource(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "sourceID")
	force := r.URL.Query().Get("force") == "true"

	runID, err := h.engine.TriggerSource(r.Context(), sourceID, force)
	if err != nil {
		switch {
		case errors.Is(err, scraper.ErrRunInProgress):
			utils.WriteError(w, http.StatusConflict, err.Error())
		case errors.Is(err, scraper.ErrSourceNotDue), errors.Is(err, scraper.ErrSourceInactive):
			utils.WriteError(w, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, repository.ErrNoRows):
			utils.WriteError(w, http.StatusNotFound, "Source not found")
		default:
			log.Error().Err(err).Str("sourceID", sourceID).Msg("Failed to trigger scrape run")
			utils.WriteError(w, http.StatusInternalServerError, "Failed to trigger scrape run")
		}
		return
	}

	utils.WriteJSON(w, http.StatusAccepted, map[string]string{
		"run_id":    runID,
		"source_id": sourceID,
	})
}

// handleRunAll queues a sweep over all due sources through NATS so the
// request returns immediately and the trigger survives a restart.
func (h *ScraperHandler) handleRunAll(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force") == "true"

	payload, err := json.Marshal(messaging.ScrapeAllMessage{Force: force})
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Failed to encode message")
		return
	}

	if err := h.broker.PublishSync(r.Context(), messaging.SubjectScrapeAll, payload); err != nil {
		log.Error().Err(err).Msg("Failed to publish sweep trigger")
		utils.WriteError(w, http.StatusInternalServerError, "Failed to queue sweep")
		return
	}

	utils.WriteMessage(w, http.StatusAccepted, "Sweep queued")
}

func (h *ScraperHandler) handleCancel(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "sourceID")

	runID, err := h.engine.CancelRun(r.Context(), sourceID)
	if err != nil {
		utils.WriteError(w, http.StatusNotFound, err.Error())
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]string{
		"run_id": runID,
		"status": "cancellation requested",
	})
}

func (h *ScraperHandler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	run, err := h.audit.GetRun(r.Context(), runID)
	if err != nil {
		if errors.Is(err, repository.ErrNoRows) {
			utils.WriteError(w, http.StatusNotFound, "Run not found")
			return
		}
		utils.WriteError(w, http.StatusInternalServerError, "Failed to load run")
		return
	}

	utils.WriteJSON(w, http.StatusOK, run)
}

func (h *ScraperHandler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "sourceID")

	runs, err := h.audit.ListRuns(r.Context(), sourceID, 50)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}

	utils.WriteJSON(w, http.StatusOK, runs)
}

func (h *ScraperHandler) handleListErrors(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	errs, err := h.audit.ListErrors(r.Context(), runID)
	if err != nil {
		utils.WriteError(w, http.StatusInternalServerError, "Failed to list errors")
		return
	}

	utils.WriteJSON(w, http.StatusOK, errs)
}

// RegisterScrapeConsumers wires the JetStream trigger subjects to the
// engine. Returned contexts keep consuming until stopped.
func RegisterScrapeConsumers(broker *messaging.NatsBroker, engine *scraper.Engine) error {
	_, err := messaging.ConsumeSubject(broker, messaging.StreamScrape, messaging.SubjectScrapeSource,
		func(msg jetstream.Msg) error {
			var m messaging.ScrapeSourceMessage
			if err := json.Unmarshal(msg.Data(), &m); err != nil {
				log.Error().Err(err).Msg("Invalid scrape.source.run payload")
				return nil // malformed messages are not redeliverable
			}
			_, err := engine.TriggerSource(context.Background(), m.SourceID, m.Force)
			if err != nil && !errors.Is(err, scraper.ErrRunInProgress) && !errors.Is(err, scraper.ErrSourceNotDue) {
				return err
			}
			return nil
		})
	if err != nil {
		return err
	}

	_, err = messaging.ConsumeSubject(broker, messaging.StreamScrape, messaging.SubjectScrapeAll,
		func(msg jetstream.Msg) error {
			var m messaging.ScrapeAllMessage
			if err := json.Unmarshal(msg.Data(), &m); err != nil {
				log.Error().Err(err).Msg("Invalid scrape.all.run payload")
				return nil
			}
			_, err := engine.TriggerDue(context.Background(), m.Force)
			return err
		})
	return err
}
