package handler

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Krimson/eda-forensics/forge/internal/repository"
	"github.com/Krimson/eda-forensics/forge/internal/service"
	"github.com/Krimson/eda-forensics/forge/pkg/models"
	"github.com/Krimson/eda-forensics/forge/stubs"
	"github.com/Krimson/eda-forensics/internal/profile"
	"github.com/Krimson/eda-forensics/internal/reconstruct"
)

const featureCSV = "User_ID,Age,Gen,BSR,Win,EDA_Mean,EDA_Std,SCL_Tonic,SCR_Peaks,SCR_Amp,Slope_Max,HF_Energy,Entropy,Motion\n" +
	"S1,30,M,1.2,1,0.81,0.01,0.8,0,0.01,0.02,0.3,0.2,0\n" +
	"S1,30,M,1.2,2,0.82,0.01,0.8,0,0.01,0.02,0.3,0.2,0\n" +
	"S1,30,M,1.2,3,3.10,0.40,0.8,1,2.20,0.90,1.1,0.9,1\n"

func newTestMux(t *testing.T) *http.ServeMux {
	t.Helper()

	srv := httptest.NewServer(stubs.NewLabStub())
	t.Cleanup(srv.Close)

	labService := service.NewLabService(
		reconstruct.NewClient(srv.URL, 5*time.Second),
		repository.NewRedisStub(time.Hour),
		repository.NewPostgresStub(),
		profile.Default(),
		5*time.Second,
	)

	mux := http.NewServeMux()
	NewHTTPHandler(labService, 0).RegisterRoutes(mux)
	return mux
}

func uploadRequest(t *testing.T, sessionID, content string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "features.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	if sessionID != "" {
		require.NoError(t, writer.WriteField("session_id", sessionID))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func serve(mux http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestHTTPHandler_LabFlow(t *testing.T) {
	mux := newTestMux(t)

	rec := serve(mux, uploadRequest(t, "lab-7", featureCSV))
	require.Equal(t, http.StatusOK, rec.Code)
	var upload models.UploadResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&upload))
	assert.Equal(t, "lab-7", upload.SessionID)
	assert.Len(t, upload.Rows, 3)

	rec = serve(mux, postJSON("/clean", `{"session_id":"lab-7","mode":"solo","techniques":["pca"]}`))
	require.Equal(t, http.StatusOK, rec.Code)
	var clean models.CleanResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&clean))
	assert.True(t, clean.Applied)

	rec = serve(mux, postJSON("/benchmark", `{"session_id":"lab-7"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	var bench models.SessionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&bench))
	assert.Len(t, bench.Ranking, 127)

	rec = serve(mux, httptest.NewRequest(http.MethodGet, "/session?session_id=lab-7", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"B-1"`)

	rec = serve(mux, httptest.NewRequest(http.MethodGet, "/download?session_id=lab-7", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "cleaned_lab-7.csv")
	assert.True(t, strings.HasPrefix(rec.Body.String(), "User_ID,"))

	rec = serve(mux, postJSON("/decision", `{"session_id":"lab-7","save":true}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"saved"`)
}

func TestHTTPHandler_GeneratesSessionID(t *testing.T) {
	mux := newTestMux(t)

	rec := serve(mux, uploadRequest(t, "", featureCSV))
	require.Equal(t, http.StatusOK, rec.Code)

	var upload models.UploadResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&upload))
	assert.Len(t, upload.SessionID, 36)
}

func TestHTTPHandler_Errors(t *testing.T) {
	mux := newTestMux(t)

	for _, tc := range []struct {
		name string
		req  *http.Request
		code int
	}{
		{"method", httptest.NewRequest(http.MethodGet, "/upload", nil), http.StatusMethodNotAllowed},
		{"empty file", uploadRequest(t, "x", ""), http.StatusBadRequest},
		{"bad json", postJSON("/clean", `{`), http.StatusBadRequest},
		{"missing session", postJSON("/clean", `{"mode":"solo"}`), http.StatusBadRequest},
		{"bad mode", postJSON("/clean", `{"session_id":"x","mode":"turbo"}`), http.StatusBadRequest},
		{"unknown session", postJSON("/clean", `{"session_id":"nope"}`), http.StatusNotFound},
		{"unknown benchmark", postJSON("/benchmark", `{"session_id":"nope"}`), http.StatusNotFound},
		{"no query", httptest.NewRequest(http.MethodGet, "/session", nil), http.StatusBadRequest},
		{"download unknown", httptest.NewRequest(http.MethodGet, "/download?session_id=nope", nil), http.StatusNotFound},
		{"decision unknown", postJSON("/decision", `{"session_id":"nope","save":false}`), http.StatusNotFound},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.code, serve(mux, tc.req).Code)
		})
	}
}

func TestHTTPHandler_UnknownTechniqueIsBadRequest(t *testing.T) {
	mux := newTestMux(t)
	require.Equal(t, http.StatusOK, serve(mux, uploadRequest(t, "lab-1", featureCSV)).Code)

	rec := serve(mux, postJSON("/clean", `{"session_id":"lab-1","techniques":["quantum"]}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
