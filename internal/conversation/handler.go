package conversation

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/mindbridge-triage/internal/events"
	"github.com/wolfman30/mindbridge-triage/pkg/logging"
)

// maxTurnBodyBytes caps a turn request body.
const maxTurnBodyBytes = 64 << 10

// EventPublisher queues domain events for asynchronous delivery.
type EventPublisher interface {
	Append(aggregate, correlationID string, evt events.CanonicalEvent) (events.Envelope, error)
}

// TurnRequest is the body of POST /v1/sessions/{sessionID}/turns.
type TurnRequest struct {
	Message string `json:"message"`
}

// Handler wires HTTP requests to the conversation service.
type Handler struct {
	service   Service
	publisher EventPublisher
	logger    *logging.Logger
}

// NewHandler creates a conversation handler. publisher may be nil, in which
// case escalations are only logged.
func NewHandler(service Service, publisher EventPublisher, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		service:   service,
		publisher: publisher,
		logger:    logger,
	}
}

// Routes mounts the session endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.StartSession)
	r.Route("/{sessionID}", func(r chi.Router) {
		r.Post("/turns", h.SubmitTurn)
		r.Get("/summary", h.Summary)
		r.Delete("/", h.EndSession)
	})
}

// StartSession handles POST /v1/sessions.
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.StartSession(r.Context())
	if err != nil {
		h.logger.Error("failed to start session", "error", err)
		http.Error(w, "Failed to start session", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusCreated, resp)
}

// SubmitTurn handles POST /v1/sessions/{sessionID}/turns.
func (h *Handler) SubmitTurn(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req TurnRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxTurnBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode turn request", "session", logging.SessionRef(sessionID), "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.service.SubmitTurn(r.Context(), sessionID, req.Message)
	if err != nil {
		h.writeServiceError(w, "failed to submit turn", sessionID, err)
		return
	}
	if result.NewlyEscalated {
		h.publishEscalation(r, result)
	}
	h.writeJSON(w, http.StatusOK, result)
}

// Summary handles GET /v1/sessions/{sessionID}/summary.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	summary, err := h.service.GetSummary(r.Context(), sessionID)
	if err != nil {
		h.writeServiceError(w, "failed to load summary", sessionID, err)
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}

// EndSession handles DELETE /v1/sessions/{sessionID}.
func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := h.service.EndSession(r.Context(), sessionID); err != nil {
		h.writeServiceError(w, "failed to end session", sessionID, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) publishEscalation(r *http.Request, result *TurnResult) {
	ref := logging.SessionRef(result.SessionID)
	if h.publisher == nil {
		h.logger.Warn("session escalated with no notifier configured", "session", ref)
		return
	}
	env, err := h.publisher.Append(events.SessionAggregate(ref), middleware.GetReqID(r.Context()), events.SessionEscalatedV1{
		SessionRef: ref,
		Turn:       result.Turn,
		Severity:   result.Severity.String(),
		Labels:     result.Assessment.Labels,
		OccurredAt: result.Timestamp,
	})
	if err != nil {
		h.logger.Error("failed to queue escalation event", "session", ref, "error", err)
		return
	}
	h.logger.Info("escalation event queued", "session", ref, "event_id", env.EventID)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, msg, sessionID string, err error) {
	if errors.Is(err, ErrSessionNotFound) {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	h.logger.Error(msg, "session", logging.SessionRef(sessionID), "error", err)
	http.Error(w, "Internal error", http.StatusInternalServerError)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
