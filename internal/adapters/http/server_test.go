package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencivic/sdcrs"
	httpAdapter "github.com/opencivic/sdcrs/internal/adapters/http"
	"github.com/opencivic/sdcrs/internal/adapters/memory"
	"github.com/opencivic/sdcrs/internal/logging"
	"github.com/opencivic/sdcrs/internal/metrics"
	"github.com/opencivic/sdcrs/pkg/domain"
)

// Testing against the real facade on the in-memory store keeps this an
// honest end-to-end test of decode, apply, commit and response mapping.
func newTestServer(t *testing.T) (*httptest.Server, *sdcrs.Service) {
	t.Helper()

	registry := prometheus.NewRegistry()
	svc, err := sdcrs.New(
		sdcrs.WithStore(memory.NewStore()),
		sdcrs.WithMetrics(metrics.New(registry)),
	)
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	handler := httpAdapter.NewHandler(svc, logging.NewNop(), registry, svc)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, svc
}

func submitReport(t *testing.T, svc *sdcrs.Service) string {
	t.Helper()
	instance, err := svc.SubmitReport(context.Background(), "R1", domain.ReporterCitizen)
	require.NoError(t, err)
	return instance.CaseID
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, into any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
}

func TestServer_SubmitReport(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/cases", map[string]any{
		"reporter_id":   "R1",
		"reporter_role": "CITIZEN",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var instance struct {
		CaseID  string `json:"case_id"`
		State   string `json:"state"`
		Context struct {
			TrackingID string `json:"tracking_id"`
		} `json:"context"`
	}
	decodeBody(t, resp, &instance)

	assert.Regexp(t, `^DJ-SDCRS-\d{4}-\d{6}$`, instance.CaseID)
	assert.Equal(t, "pendingValidation", instance.State)
	assert.Regexp(t, `^[A-Z]{3}[0-9]{3}$`, instance.Context.TrackingID)
}

func TestServer_SubmitReportRequiresReporter(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/cases", map[string]any{})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_SubmitEvent(t *testing.T) {
	srv, svc := newTestServer(t)
	caseID := submitReport(t, svc)

	resp := postJSON(t, srv.URL+"/cases/"+caseID+"/events", map[string]any{
		"type":       "AUTO_VALIDATE_PASS",
		"actor_id":   "auto-validator",
		"actor_role": "SYSTEM",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var outcome struct {
		Applied bool   `json:"applied"`
		State   string `json:"state"`
	}
	decodeBody(t, resp, &outcome)
	assert.True(t, outcome.Applied)
	assert.Equal(t, "pendingVerification", outcome.State)
}

func TestServer_SubmitEventRejectionIs422(t *testing.T) {
	srv, svc := newTestServer(t)
	caseID := submitReport(t, svc)

	// VERIFY is not declared for pendingValidation.
	resp := postJSON(t, srv.URL+"/cases/"+caseID+"/events", map[string]any{
		"type":     "VERIFY",
		"actor_id": "V1",
		"payload":  map[string]any{"verifier_id": "V1"},
	})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var outcome struct {
		Applied bool   `json:"applied"`
		Kind    string `json:"kind"`
	}
	decodeBody(t, resp, &outcome)
	assert.False(t, outcome.Applied)
	assert.Equal(t, "INVALID_EVENT_FOR_STATE", outcome.Kind)
}

func TestServer_UnknownCaseIs404(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/cases/DJ-SDCRS-2026-999999/events", map[string]any{
		"type": "COMMENT",
		"payload": map[string]any{
			"author_id": "V1",
			"text":      "hello",
		},
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	getResp, err := http.Get(srv.URL + "/cases/DJ-SDCRS-2026-999999")
	require.NoError(t, err)
	defer getResp.Body.Close()
	assert.Equal(t, http.StatusNotFound, getResp.StatusCode)
}

func TestServer_GetAndListCases(t *testing.T) {
	srv, svc := newTestServer(t)
	caseID := submitReport(t, svc)

	resp, err := http.Get(srv.URL + "/cases/" + caseID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var instance struct {
		CaseID string `json:"case_id"`
	}
	decodeBody(t, resp, &instance)
	assert.Equal(t, caseID, instance.CaseID)

	listResp, err := http.Get(srv.URL + "/cases/")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, listResp.StatusCode)
	var list struct {
		CaseIDs []string `json:"case_ids"`
	}
	decodeBody(t, listResp, &list)
	assert.Contains(t, list.CaseIDs, caseID)
}

func TestServer_HealthGraphAndMetrics(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	graphResp, err := http.Get(srv.URL + "/graph")
	require.NoError(t, err)
	defer graphResp.Body.Close()
	assert.Equal(t, http.StatusOK, graphResp.StatusCode)

	metricsResp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	metricsResp.Body.Close()
	assert.Equal(t, http.StatusOK, metricsResp.StatusCode)
}

func TestServer_BadEventPayloadIs400(t *testing.T) {
	srv, svc := newTestServer(t)
	caseID := submitReport(t, svc)

	// RETRY_PAYOUT declares no payload; sending one is a decode error.
	resp := postJSON(t, srv.URL+"/cases/"+caseID+"/events", map[string]any{
		"type":    "RETRY_PAYOUT",
		"payload": map[string]any{"unexpected": true},
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
