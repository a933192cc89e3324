package relay

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Krimson/eda-forensics/monitor/internal/telemetry"
)

func newRelayServer(t *testing.T) *httptest.Server {
	t.Helper()
	router := mux.NewRouter()
	NewHandler(NewMemoryStore()).RegisterRoutes(router)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func put(t *testing.T, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPut, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestRelay_EmptyReturnsNull(t *testing.T) {
	srv := newRelayServer(t)

	resp, err := http.Get(srv.URL + "/telemetry.json")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "null", string(body))
}

func TestRelay_PutThenPoll(t *testing.T) {
	srv := newRelayServer(t)

	resp := put(t, srv.URL+"/telemetry.json", `{"handshake":"482913","eda":1.25,"subject":"S-7","age":"24","sex":"F","node":"N","ts":99}`)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// дашборд читает тот же пакет через HTTP источник
	pkt, err := telemetry.NewHTTPSource(srv.URL+"/telemetry.json", time.Second).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "482913", pkt.Handshake)
	assert.Equal(t, 1.25, pkt.EDA)
	assert.Equal(t, "S-7", pkt.Subject)
}

func TestRelay_RejectsInvalidPacket(t *testing.T) {
	srv := newRelayServer(t)

	for _, body := range []string{`{"eda":1}`, `{"handshake":"1","eda":-3}`, `not json`} {
		resp := put(t, srv.URL+"/telemetry.json", body)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	}

	resp, err := http.Get(srv.URL + "/telemetry.json")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "null", string(body))
}

func TestRelay_StoresEndedPacket(t *testing.T) {
	srv := newRelayServer(t)

	resp := put(t, srv.URL+"/telemetry.json", `{"handshake":"482913","status":"ENDED","ts":5}`)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	pkt, err := telemetry.NewHTTPSource(srv.URL+"/telemetry.json", time.Second).Fetch(context.Background())
	require.NoError(t, err)
	assert.True(t, pkt.Ended())
}
