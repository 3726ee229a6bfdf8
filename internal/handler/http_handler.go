package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/pesio-ai/be-fund-distributions/internal/approval"
	"github.com/pesio-ai/be-fund-distributions/internal/common/errors"
	"github.com/pesio-ai/be-fund-distributions/internal/common/logger"
	"github.com/pesio-ai/be-fund-distributions/internal/domain"
	"github.com/pesio-ai/be-fund-distributions/internal/engine"
	"github.com/pesio-ai/be-fund-distributions/internal/service"
)

// UserIDHeader carries the authenticated user id set by the API gateway.
const UserIDHeader = "X-User-ID"

// HTTPHandler handles HTTP requests
type HTTPHandler struct {
	distributions *service.DistributionService
	routing       *service.ApprovalRoutingService
	log           *logger.Logger
}

// NewHTTPHandler creates a new HTTP handler
func NewHTTPHandler(distributions *service.DistributionService, routing *service.ApprovalRoutingService, log *logger.Logger) *HTTPHandler {
	return &HTTPHandler{
		distributions: distributions,
		routing:       routing,
		log:           log,
	}
}

// Register mounts every route on mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	mux.HandleFunc("/api/v1/distributions/wizard/start", h.StartWizard)
	mux.HandleFunc("/api/v1/distributions/wizard/apply", h.ApplyAction)
	mux.HandleFunc("/api/v1/distributions/wizard/advance", h.AdvanceWizard)
	mux.HandleFunc("/api/v1/distributions/drafts", h.SaveDraft)
	mux.HandleFunc("/api/v1/distributions/submit", h.Submit)
	mux.HandleFunc("/api/v1/distributions/decide", h.DecideStep)
	mux.HandleFunc("/api/v1/distributions/outcome", h.ApplyOutcome)
	mux.HandleFunc("/api/v1/distributions/reopen", h.Reopen)
	mux.HandleFunc("/api/v1/distributions/complete", h.Complete)
	mux.HandleFunc("/api/v1/distributions/get", h.GetDistribution)
	mux.HandleFunc("/api/v1/distributions/steps", h.GetActionableSteps)
	mux.HandleFunc("/api/v1/distributions/audit", h.GetAuditTrail)
	mux.HandleFunc("/api/v1/waterfall/preview", h.PreviewWaterfall)

	mux.HandleFunc("/api/v1/approval-rules", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			h.ListRules(w, r)
		case http.MethodPost:
			h.CreateRule(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/v1/approval-rules/update", h.UpdateRule)
	mux.HandleFunc("/api/v1/approval-rules/delete", h.DeleteRule)
}

// ── Wizard ────────────────────────────────────────────────────────────────────

// StartWizard opens a wizard session over a new or saved draft
func (h *HTTPHandler) StartWizard(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}

	var req struct {
		FundID         string `json:"fundId"`
		DistributionID string `json:"distributionId"`
	}
	if !decode(w, r, &req) {
		return
	}

	state, err := h.distributions.StartSession(r.Context(), req.FundID, req.DistributionID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// ApplyAction applies one wizard action to the posted session
func (h *HTTPHandler) ApplyAction(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}

	var req struct {
		State  engine.WizardState `json:"state"`
		Action struct {
			Type    string          `json:"type"`
			Payload json.RawMessage `json:"payload"`
		} `json:"action"`
	}
	if !decode(w, r, &req) {
		return
	}

	state, err := h.distributions.Apply(r.Context(), req.State, req.Action.Type, req.Action.Payload)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// AdvanceWizard validates the current step and moves forward when it is clean
func (h *HTTPHandler) AdvanceWizard(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}

	var req struct {
		State engine.WizardState `json:"state"`
	}
	if !decode(w, r, &req) {
		return
	}

	state, err := h.distributions.Advance(r.Context(), req.State)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// SaveDraft persists the session as a draft
func (h *HTTPHandler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}

	var req struct {
		State engine.WizardState `json:"state"`
	}
	if !decode(w, r, &req) {
		return
	}

	d, err := h.distributions.SaveDraft(r.Context(), req.State, r.Header.Get(UserIDHeader))
	if err != nil {
		h.writeError(w, err)
		return
	}

	// Later saves of this session update the stored draft.
	req.State.Distribution.ID = d.ID
	req.State.Distribution.CreatedAt = d.CreatedAt
	req.State.Distribution.CreatedBy = d.CreatedBy

	writeJSON(w, http.StatusOK, map[string]any{
		"distribution": d,
		"state":        req.State,
	})
}

// Submit routes the session to its approval chain
func (h *HTTPHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}

	var req struct {
		State   engine.WizardState `json:"state"`
		Comment string             `json:"comment"`
	}
	if !decode(w, r, &req) {
		return
	}

	res, err := h.distributions.Submit(r.Context(), req.State, r.Header.Get(UserIDHeader), req.Comment)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if res.Distribution == nil {
		writeJSON(w, http.StatusUnprocessableEntity, res)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// PreviewWaterfall runs an unsaved what-if scenario
func (h *HTTPHandler) PreviewWaterfall(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}

	var req struct {
		SessionID string                   `json:"sessionId"`
		Scenario  domain.WaterfallScenario `json:"scenario"`
	}
	if !decode(w, r, &req) {
		return
	}

	res, err := h.distributions.PreviewWaterfall(r.Context(), req.SessionID, req.Scenario)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ── Approval workflow ─────────────────────────────────────────────────────────

// DecideStep records an approver decision
func (h *HTTPHandler) DecideStep(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}

	var req struct {
		DistributionID string          `json:"distributionId"`
		StepID         string          `json:"stepId"`
		Action         approval.Action `json:"action"`
		Comment        string          `json:"comment"`
	}
	if !decode(w, r, &req) {
		return
	}

	d, outcome, err := h.routing.DecideStep(r.Context(), req.DistributionID, approval.Decision{
		StepID:  req.StepID,
		Action:  req.Action,
		Comment: req.Comment,
		Actor:   r.Header.Get(UserIDHeader),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"distribution": d,
		"outcome":      outcome,
	})
}

// ApplyOutcome moves a halted distribution to rejected or returned
func (h *HTTPHandler) ApplyOutcome(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.routing.ApplyOutcome)
}

// Reopen moves a returned distribution back to draft
func (h *HTTPHandler) Reopen(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.routing.Reopen)
}

// Complete marks an approved distribution as paid out
func (h *HTTPHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.routing.Complete)
}

type transitionFunc func(ctx context.Context, distributionID, actor string) (*domain.Distribution, error)

func (h *HTTPHandler) transition(w http.ResponseWriter, r *http.Request, fn transitionFunc) {
	if !allow(w, r, http.MethodPost) {
		return
	}

	var req struct {
		DistributionID string `json:"distributionId"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.DistributionID == "" {
		h.writeError(w, errors.InvalidInput("distributionId", "distribution id is required"))
		return
	}

	d, err := fn(r.Context(), req.DistributionID, r.Header.Get(UserIDHeader))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// GetDistribution returns a stored distribution
func (h *HTTPHandler) GetDistribution(w http.ResponseWriter, r *http.Request) {
	id, ok := queryID(w, r)
	if !ok {
		return
	}

	d, err := h.distributions.GetDistribution(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// GetActionableSteps returns the steps awaiting a decision
func (h *HTTPHandler) GetActionableSteps(w http.ResponseWriter, r *http.Request) {
	id, ok := queryID(w, r)
	if !ok {
		return
	}

	steps, err := h.routing.GetActionableSteps(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"steps": steps})
}

// GetAuditTrail returns the approval audit trail
func (h *HTTPHandler) GetAuditTrail(w http.ResponseWriter, r *http.Request) {
	id, ok := queryID(w, r)
	if !ok {
		return
	}

	trail, err := h.routing.GetAuditTrail(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trail)
}

// ── Approval rules ────────────────────────────────────────────────────────────

// ListRules lists the approval rules of a fund
func (h *HTTPHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	fundID := r.URL.Query().Get("fund_id")
	activeOnly, _ := strconv.ParseBool(r.URL.Query().Get("active_only"))

	rules, err := h.routing.ListRules(r.Context(), fundID, activeOnly)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if rules == nil {
		rules = []domain.ApprovalRule{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"rules": rules})
}

// CreateRule creates an approval rule
func (h *HTTPHandler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var rule domain.ApprovalRule
	if !decode(w, r, &rule) {
		return
	}
	rule.ID = ""

	if err := h.routing.CreateRule(r.Context(), &rule); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

// UpdateRule replaces an approval rule
func (h *HTTPHandler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}

	var rule domain.ApprovalRule
	if !decode(w, r, &rule) {
		return
	}
	if rule.ID == "" {
		h.writeError(w, errors.InvalidInput("id", "rule id is required"))
		return
	}

	if err := h.routing.UpdateRule(r.Context(), &rule); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// DeleteRule deletes an approval rule
func (h *HTTPHandler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodDelete) {
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Rule ID is required", http.StatusBadRequest)
		return
	}

	if err := h.routing.DeleteRule(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func allow(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func queryID(w http.ResponseWriter, r *http.Request) (string, bool) {
	if !allow(w, r, http.MethodGet) {
		return "", false
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Distribution ID is required", http.StatusBadRequest)
		return "", false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Int("status", status).Msg("Request failed")
	}

	body := map[string]string{
		"code":  string(errors.CodeOf(err)),
		"error": err.Error(),
	}
	var appErr *errors.Error
	if errors.As(err, &appErr) && appErr.Field != "" {
		body["field"] = appErr.Field
	}
	writeJSON(w, status, body)
}
