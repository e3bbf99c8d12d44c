package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/nidhogg/emergence/internal/agent"
	"github.com/nidhogg/emergence/internal/archive"
	"github.com/nidhogg/emergence/internal/experiment"
	"github.com/nidhogg/emergence/internal/memory"
	"github.com/nidhogg/emergence/internal/trust"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	roster  *agent.Roster
	arena   *memory.Arena
	matrix  *trust.Matrix
	runner  *experiment.Runner
	arch    *archive.Archive
	cluster float64
	logger  *zap.Logger
}

// NewHandler creates a new API handler. arch may be nil when no vector
// store is configured.
func NewHandler(
	roster *agent.Roster,
	arena *memory.Arena,
	matrix *trust.Matrix,
	runner *experiment.Runner,
	arch *archive.Archive,
	clusterThreshold float64,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		roster:  roster,
		arena:   arena,
		matrix:  matrix,
		runner:  runner,
		arch:    arch,
		cluster: clusterThreshold,
		logger:  logger,
	}
}

// Router builds the chi router with all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.healthCheck)

		r.Get("/agents", h.listAgents)
		r.Get("/agents/{name}", h.getAgent)
		r.Get("/agents/{name}/memory", h.getAgentMemory)

		r.Get("/trust", h.trustMatrix)
		r.Get("/trust/clusters", h.trustClusters)
		r.Get("/trust/{name}/recommend", h.recommendPartner)

		r.Post("/route", h.routeMessage)
		r.Post("/phases", h.runPhase)
		r.Post("/integrate", h.integrate)

		r.Get("/snapshot", h.snapshot)
		r.Get("/status", h.status)

		r.Get("/archive/search", h.searchArchive)
	})

	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "experiment": h.runner.ExperimentID()})
}

func (h *Handler) listAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.roster.List())
}

func (h *Handler) getAgent(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	p, ok := h.roster.Get(name)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "agent not found"})
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) getAgentMemory(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	mem, ok := h.arena.Get(name)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "agent not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"agent":           name,
		"size":            mem.Len(),
		"direct_partners": mem.DirectPartners(),
		"history":         mem.History(),
	})
}

func (h *Handler) trustMatrix(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.matrix.Snapshot())
}

func (h *Handler) trustClusters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.matrix.Clusters(h.cluster))
}

func (h *Handler) recommendPartner(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, ok := h.roster.Get(name); !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "agent not found"})
		return
	}
	partner := h.matrix.RecommendPartner(name, nil)
	writeJSON(w, http.StatusOK, map[string]string{"agent": name, "partner": partner})
}

type routeRequest struct {
	Speaker    string   `json:"speaker"`
	Content    string   `json:"content"`
	Recipients []string `json:"recipients"`
}

// routeMessage delivers a message from one agent to the named recipients.
// Routing failures for individual recipients do not fail the request; they
// are reported alongside the delivered message.
func (h *Handler) routeMessage(w http.ResponseWriter, r *http.Request) {
	var req routeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.Speaker == "" || req.Content == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "speaker and content are required"})
		return
	}
	if _, ok := h.roster.Get(req.Speaker); !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "speaker not found"})
		return
	}

	msg, routeErrs := h.arena.Route(req.Speaker, req.Content, req.Recipients)
	failed := make([]string, 0, len(routeErrs))
	for _, e := range routeErrs {
		failed = append(failed, e.Error())
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": msg,
		"failed":  failed,
	})
}

type phaseRequest struct {
	Name  string `json:"name"`
	Turns int    `json:"turns"`
}

func (h *Handler) runPhase(w http.ResponseWriter, r *http.Request) {
	var req phaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.Name == "" || req.Turns <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name and a positive turn count are required"})
		return
	}

	phase := experiment.Phase{Name: req.Name, Turns: req.Turns}
	if err := h.runner.RunPhase(r.Context(), phase); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"phase": req.Name,
		"turns": h.runner.TurnCount(),
	})
}

type integrateRequest struct {
	Topic string `json:"topic"`
}

func (h *Handler) integrate(w http.ResponseWriter, r *http.Request) {
	var req integrateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.Topic == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "topic is required"})
		return
	}

	result := h.runner.Integrate(r.Context(), req.Topic)

	if h.arch != nil {
		if err := h.arch.Store(r.Context(), result); err != nil {
			h.logger.Warn("failed to archive integration result", zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.runner.Snapshot())
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"experiment_id": h.runner.ExperimentID(),
		"agent_count":   h.roster.Len(),
		"turn_count":    h.runner.TurnCount(),
	})
}

func (h *Handler) searchArchive(w http.ResponseWriter, r *http.Request) {
	if h.arch == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "archive not configured"})
		return
	}
	query := r.URL.Query().Get("q")
	if query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query parameter q is required"})
		return
	}
	results, err := h.arch.Search(r.Context(), query, 5)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
