package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pesio-ai/be-fund-distributions/internal/common/logger"
	"github.com/pesio-ai/be-fund-distributions/internal/engine"
)

func newServer(t *testing.T, f *fixture) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	NewHTTPHandler(f.distributions, f.routing, logger.Nop()).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func call(t *testing.T, srv *httptest.Server, method, path, user string, body any) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	if user != "" {
		req.Header.Set(UserIDHeader, user)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, out.Bytes()
}

func applyHTTP(t *testing.T, srv *httptest.Server, state engine.WizardState, kind string, payload any) engine.WizardState {
	t.Helper()
	resp, body := call(t, srv, http.MethodPost, "/api/v1/distributions/wizard/apply", "alice", map[string]any{
		"state":  state,
		"action": map[string]any{"type": kind, "payload": payload},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var next engine.WizardState
	require.NoError(t, json.Unmarshal(body, &next))
	return next
}

func TestHTTPWizardSubmitAndDecide(t *testing.T) {
	f := newFixture()
	srv := newServer(t, f)

	resp, body := call(t, srv, http.MethodPost, "/api/v1/distributions/wizard/start", "alice", map[string]string{"fundId": "fund-1"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var state engine.WizardState
	require.NoError(t, json.Unmarshal(body, &state))
	assert.Len(t, state.Directories.Profiles, 2)

	state = applyHTTP(t, srv, state, "set-event-details", map[string]any{
		"name": "Q1 dividend", "eventType": "dividend", "eventDate": "2026-03-31T00:00:00Z", "grossProceeds": "500000",
	})
	state = applyHTTP(t, srv, state, "seed-allocations", nil)
	state = applyHTTP(t, srv, state, "set-statement-settings", map[string]any{
		"templateId": "tpl-std", "emailSubject": "Q1", "emailBody": "Attached.",
	})
	assert.True(t, state.Distribution.TotalDistributed.Equal(state.Distribution.NetProceeds))

	resp, body = call(t, srv, http.MethodPost, "/api/v1/distributions/submit", "alice", map[string]any{"state": state, "comment": "Ready"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var submitted struct {
		Distribution struct {
			ID            string `json:"id"`
			Status        string `json:"status"`
			ApprovalSteps []struct {
				ID         string `json:"id"`
				ApproverID string `json:"approverId"`
			} `json:"approvalSteps"`
		} `json:"distribution"`
	}
	require.NoError(t, json.Unmarshal(body, &submitted))
	assert.Equal(t, "pending-approval", submitted.Distribution.Status)
	require.Len(t, submitted.Distribution.ApprovalSteps, 2)

	resp, body = call(t, srv, http.MethodPost, "/api/v1/distributions/decide", "cfo", map[string]any{
		"distributionId": submitted.Distribution.ID,
		"stepId":         submitted.Distribution.ApprovalSteps[0].ID,
		"action":         "approve",
		"comment":        "Looks right",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Contains(t, string(body), `"outcome":"pending"`)

	resp, body = call(t, srv, http.MethodGet, "/api/v1/distributions/audit?id="+submitted.Distribution.ID, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"submitted"`)
	assert.Contains(t, string(body), `"approved"`)
}

func TestHTTPSubmitWithErrors(t *testing.T) {
	f := newFixture()
	srv := newServer(t, f)

	state, err := f.distributions.StartSession(t.Context(), "fund-1", "")
	require.NoError(t, err)

	resp, body := call(t, srv, http.MethodPost, "/api/v1/distributions/submit", "alice", map[string]any{"state": state})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, string(body), `"event-details"`)
	assert.Empty(t, f.dists.rows)
}

func TestHTTPErrorMapping(t *testing.T) {
	srv := newServer(t, newFixture(pendingDistribution()))

	tests := []struct {
		name   string
		method string
		path   string
		user   string
		body   any
		status int
		code   string
	}{
		{"not found", http.MethodGet, "/api/v1/distributions/get?id=missing", "", nil, http.StatusNotFound, "NOT_FOUND"},
		{"wrong method", http.MethodGet, "/api/v1/distributions/submit", "", nil, http.StatusMethodNotAllowed, ""},
		{"missing id", http.MethodGet, "/api/v1/distributions/get", "", nil, http.StatusBadRequest, ""},
		{"not halted", http.MethodPost, "/api/v1/distributions/outcome", "alice", map[string]string{"distributionId": "dist-1"}, http.StatusConflict, "CONFLICT"},
		{"comment required", http.MethodPost, "/api/v1/distributions/decide", "cfo", map[string]string{"distributionId": "dist-1", "stepId": "x", "action": "approve"}, http.StatusBadRequest, "INVALID_INPUT"},
		{"overlapping rule", http.MethodPost, "/api/v1/approval-rules", "", map[string]any{
			"fundId": "fund-1", "name": "Overlap", "isActive": true, "minAmount": "0",
			"approvers": []map[string]any{{"id": "cfo", "order": 1}},
		}, http.StatusConflict, "CONFLICT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := call(t, srv, tt.method, tt.path, tt.user, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode, string(body))
			if tt.code != "" {
				assert.Contains(t, string(body), `"code":"`+tt.code+`"`)
			}
		})
	}
}

func TestHTTPHealthAndRules(t *testing.T) {
	srv := newServer(t, newFixture())

	resp, body := call(t, srv, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"healthy"}`, string(body))

	resp, body = call(t, srv, http.MethodGet, "/api/v1/approval-rules?fund_id=fund-1&active_only=true", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"All amounts"`)
}
