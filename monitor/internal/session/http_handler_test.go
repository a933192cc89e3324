package session

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Krimson/eda-forensics/internal/audit"
)

func newTestRouter(t *testing.T) (*mux.Router, *managerFixture) {
	t.Helper()

	f := newManagerFixture(t)
	_, client := newStubClient(t)

	router := mux.NewRouter()
	NewHTTPHandler(f.manager, client).RegisterRoutes(router)
	return router, f
}

func doRequest(t *testing.T, router http.Handler, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeSession(t *testing.T, rec *httptest.ResponseRecorder) SessionResponse {
	t.Helper()

	var resp SessionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotNil(t, resp.Session)
	return resp
}

func TestHTTPHandler_SessionFlow(t *testing.T) {
	router, f := newTestRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/api/sessions", `{"notes":"ward 4"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeSession(t, rec)
	id := created.Session.ID
	assert.Equal(t, StageLocked, created.Session.Stage)

	f.source(id).push(1.0, 2.4, 1.1)
	require.Eventually(t, func() bool {
		st, ok := f.manager.Station(id)
		return ok && st.Session().TotalSamples == 3 && len(st.Snapshot().Matrix) == 1
	}, 2*time.Second, 5*time.Millisecond)

	rec = doRequest(t, router, http.MethodGet, "/api/sessions/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeSession(t, rec)
	require.NotNil(t, got.Snapshot)
	assert.Equal(t, StageOperational, got.Session.Stage)
	assert.Len(t, got.Snapshot.Raw, 120)

	rec = doRequest(t, router, http.MethodPost, "/api/sessions/"+id+"/reset", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/api/sessions/"+id+"/stop", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StageForensic, decodeSession(t, rec).Session.Stage)

	st, _ := f.manager.Station(id)
	st.WaitBenchmark()

	rec = doRequest(t, router, http.MethodGet, "/api/sessions/"+id+"/ledger", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var ledger struct {
		Ranking []audit.Trial       `json:"ranking"`
		Verdict audit.LedgerVerdict `json:"verdict"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&ledger))
	require.NotEmpty(t, ledger.Ranking)
	assert.Equal(t, "B-1", ledger.Ranking[0].ID)
	assert.Equal(t, audit.VerdictVerified, ledger.Verdict.Status)

	rec = doRequest(t, router, http.MethodGet, "/api/sessions/"+id+"/trail", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Security Tunnel Established")

	rec = doRequest(t, router, http.MethodGet, "/api/sessions/"+id+"/dossier?format=csv", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "dossier_"+id+".csv")
	assert.True(t, strings.HasPrefix(rec.Body.String(), "id,timestamp,epoch,raw"))

	rec = doRequest(t, router, http.MethodGet, "/api/sessions/"+id+"/dossier", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var dossier Dossier
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&dossier))
	assert.Len(t, dossier.Findings, 3)

	rec = doRequest(t, router, http.MethodGet, "/api/sessions/"+id+"/dossier?format=pdf", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/api/sessions/"+id+"/save", `{"notes":"signed off"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "signed off", decodeSession(t, rec).Session.Notes)

	rec = doRequest(t, router, http.MethodDelete, "/api/sessions/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/api/sessions/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHTTPHandler_RejectsLongNotes(t *testing.T) {
	router, _ := newTestRouter(t)

	body, err := json.Marshal(CreateSessionRequest{Notes: strings.Repeat("x", 600)})
	require.NoError(t, err)

	rec := doRequest(t, router, http.MethodPost, "/api/sessions", string(body))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHTTPHandler_CreateWithoutBody(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/api/sessions", "")
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/api/sessions?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)
}

func TestHTTPHandler_UnknownSession(t *testing.T) {
	router, _ := newTestRouter(t)

	for _, tc := range []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/sessions/nope"},
		{http.MethodPost, "/api/sessions/nope/stop"},
		{http.MethodPost, "/api/sessions/nope/reset"},
		{http.MethodPost, "/api/sessions/nope/save"},
		{http.MethodGet, "/api/sessions/nope/dossier"},
		{http.MethodGet, "/api/sessions/nope/trail"},
		{http.MethodGet, "/api/sessions/nope/ledger"},
	} {
		rec := doRequest(t, router, tc.method, tc.path, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, "%s %s", tc.method, tc.path)
	}
}

func TestHTTPHandler_BackendCSVProxy(t *testing.T) {
	_, client := newStubClient(t)
	// строка появляется в CSV бэкенда после /log_telemetry
	require.NoError(t, client.LogTelemetry(context.Background(), map[string]any{"User_ID": "S1", "EDA_Mean": 1.5}))

	router := mux.NewRouter()
	NewHTTPHandler(NewManager(ManagerConfig{Backend: client}), client).RegisterRoutes(router)

	rec := doRequest(t, router, http.MethodGet, "/api/backend/csv", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t, "EDA_Mean,User_ID\n1.5,S1\n", rec.Body.String())

	noBackend := mux.NewRouter()
	NewHTTPHandler(NewManager(ManagerConfig{Backend: client}), nil).RegisterRoutes(noBackend)
	rec = doRequest(t, noBackend, http.MethodGet, "/api/backend/csv", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
