/*
handlers.go - HTTP API handlers for the subscription engine

PURPOSE:
  Exposes report computation over HTTP. Handles request/response JSON and
  delegates to the subscription package; every computed report is handed
  to the configured ReportStore.

ENDPOINTS:
  POST   /api/subscriptions   Compute a report from accounts + partner data
  GET    /api/health          Liveness probe

REQUEST FLOW:
  1. Decode the JSON body
  2. Build the Subscription (shape errors -> 400)
  3. Compute the report (bad records are logged, never fail the request)
  4. Archive the run
  5. Serialize response

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed body, invalid account directory or partner list
  - 500: Archive failure

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/warp/subscription-engine/generic"
	"github.com/warp/subscription-engine/subscription"
)

// Handler holds the API dependencies.
type Handler struct {
	store   generic.ReportStore
	logger  *zap.Logger
	workers int
	now     func() time.Time
}

type HandlerOption func(*Handler)

// WithWorkers sets resolver parallelism for each request.
func WithWorkers(n int) HandlerOption {
	return func(h *Handler) {
		h.workers = n
	}
}

// WithClock replaces time.Now for run timestamps.
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.now = now
	}
}

// NewHandler creates a handler archiving into store.
func NewHandler(store generic.ReportStore, logger *zap.Logger, opts ...HandlerOption) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{
		store:   store,
		logger:  logger,
		workers: 1,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// =============================================================================
// SUBSCRIPTION ENDPOINTS
// =============================================================================

// ComputeSubscriptions computes and archives one report.
func (h *Handler) ComputeSubscriptions(w http.ResponseWriter, r *http.Request) {
	var req ComputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	sub, err := subscription.New(req.accounts(), req.specs(),
		subscription.WithLogger(h.logger.Sugar()),
		subscription.WithWorkers(h.workers),
	)
	if err != nil {
		if generic.IsValidation(err) {
			writeError(w, http.StatusBadRequest, "invalid input", err)
			return
		}
		h.logger.Error("build subscription", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to compute subscriptions", err)
		return
	}

	partners := sub.Partners()
	names := make([]generic.PartnerName, len(partners))
	for i, p := range partners {
		names[i] = p.Name
	}

	run := generic.NewRun(sub.Subscriptions(), names, h.now())
	if err := h.store.Save(r.Context(), run); err != nil {
		h.logger.Error("archive report", zap.String("run_id", string(run.ID)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to archive report", err)
		return
	}

	h.logger.Info("report computed",
		zap.String("run_id", string(run.ID)),
		zap.Int("beneficiaries", len(run.Report.Subscriptions)),
		zap.Int("partners", len(names)),
	)
	writeJSON(w, http.StatusCreated, toComputeResponse(run, sub.LoadStats()))
}

// Health answers liveness probes.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
