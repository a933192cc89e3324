package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

// CSVSource выгрузка накопленного бэкендом CSV (GET /download_csv)
type CSVSource interface {
	DownloadCSV(ctx context.Context) (io.ReadCloser, string, error)
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func requestValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// HTTPHandler обрабатывает HTTP запросы для управления сессиями
type HTTPHandler struct {
	manager *Manager
	csv     CSVSource
}

// NewHTTPHandler создает новый HTTP обработчик. csv может быть nil.
func NewHTTPHandler(manager *Manager, csv CSVSource) *HTTPHandler {
	return &HTTPHandler{
		manager: manager,
		csv:     csv,
	}
}

// RegisterRoutes регистрирует маршруты в роутере
func (h *HTTPHandler) RegisterRoutes(router *mux.Router) {
	api := router.PathPrefix("/api/sessions").Subrouter()

	api.HandleFunc("", h.CreateSession).Methods("POST")
	api.HandleFunc("", h.ListSessions).Methods("GET")
	api.HandleFunc("/{id}", h.GetSession).Methods("GET")
	api.HandleFunc("/{id}/stop", h.StopSession).Methods("POST")
	api.HandleFunc("/{id}/reset", h.ResetSession).Methods("POST")
	api.HandleFunc("/{id}/save", h.SaveSession).Methods("POST")
	api.HandleFunc("/{id}", h.DeleteSession).Methods("DELETE")
	api.HandleFunc("/{id}/dossier", h.GetDossier).Methods("GET")
	api.HandleFunc("/{id}/trail", h.GetTrail).Methods("GET")
	api.HandleFunc("/{id}/ledger", h.GetLedger).Methods("GET")

	router.HandleFunc("/api/backend/csv", h.DownloadBackendCSV).Methods("GET")
}

// CreateSession создает новую сессию
// @Summary      Create session
// @Description  Creates a LOCKED station with a fresh 6-digit handshake code and starts polling the uplink
// @Tags         sessions
// @Accept       json
// @Produce      json
// @Param        request  body      CreateSessionRequest  false  "Session notes"
// @Success      201      {object}  SessionResponse
// @Failure      400      {object}  map[string]interface{}
// @Failure      500      {object}  map[string]interface{}
// @Router       /api/sessions [post]
func (h *HTTPHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := decodeOptional(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	session, err := h.manager.CreateSession(r.Context(), &req)
	if err != nil {
		log.Printf("[ERROR] Failed to create session: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	respondJSON(w, http.StatusCreated, SessionResponse{Session: session})
}

// ListSessions возвращает список сессий
// @Summary      List sessions
// @Tags         sessions
// @Produce      json
// @Param        limit   query     int  false  "Limit"   default(50)
// @Param        offset  query     int  false  "Offset"  default(0)
// @Success      200     {object}  map[string]interface{}
// @Router       /api/sessions [get]
func (h *HTTPHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	limit := getQueryInt(r, "limit", 50)
	offset := getQueryInt(r, "offset", 0)

	sessions, err := h.manager.ListSessions(r.Context(), limit, offset)
	if err != nil {
		log.Printf("[ERROR] Failed to list sessions: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
		"limit":    limit,
		"offset":   offset,
		"count":    len(sessions),
	})
}

// GetSession получает информацию о сессии
// @Summary      Get session
// @Description  Returns the session and, for a live station, its snapshot (windows, matrix, diagnostics, verdict)
// @Tags         sessions
// @Produce      json
// @Param        id   path      string  true  "Session ID"
// @Success      200  {object}  SessionResponse
// @Failure      404  {object}  map[string]interface{}
// @Router       /api/sessions/{id} [get]
func (h *HTTPHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	resp, err := h.manager.GetSession(r.Context(), sessionID)
	if err != nil {
		respondError(w, http.StatusNotFound, "Session not found")
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

// StopSession завершает сессию
// @Summary      Stop session
// @Description  Moves the station to FORENSIC, stops polling and runs the brute-force benchmark
// @Tags         sessions
// @Produce      json
// @Param        id   path      string  true  "Session ID"
// @Success      200  {object}  SessionResponse
// @Failure      404  {object}  map[string]interface{}
// @Failure      409  {object}  map[string]interface{}
// @Router       /api/sessions/{id}/stop [post]
func (h *HTTPHandler) StopSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	session, err := h.manager.StopSession(r.Context(), sessionID)
	if err != nil {
		log.Printf("[ERROR] Failed to stop session %s: %v", sessionID, err)
		respondManagerError(w, err, "Failed to stop session")
		return
	}

	respondJSON(w, http.StatusOK, SessionResponse{Session: session})
}

// ResetSession сбрасывает завершенную сессию
// @Summary      Reset session
// @Description  Returns a FORENSIC station to LOCKED with a new handshake code and cleared buffers
// @Tags         sessions
// @Produce      json
// @Param        id   path      string  true  "Session ID"
// @Success      200  {object}  SessionResponse
// @Failure      404  {object}  map[string]interface{}
// @Failure      409  {object}  map[string]interface{}
// @Router       /api/sessions/{id}/reset [post]
func (h *HTTPHandler) ResetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	session, err := h.manager.ResetSession(r.Context(), sessionID)
	if err != nil {
		log.Printf("[ERROR] Failed to reset session %s: %v", sessionID, err)
		respondManagerError(w, err, "Failed to reset session")
		return
	}

	respondJSON(w, http.StatusOK, SessionResponse{Session: session})
}

// SaveSession сохраняет досье в базу данных
// @Summary      Save dossier
// @Tags         sessions
// @Accept       json
// @Produce      json
// @Param        id       path      string              true   "Session ID"
// @Param        request  body      SaveSessionRequest  false  "Operator notes"
// @Success      200      {object}  SessionResponse
// @Failure      404      {object}  map[string]interface{}
// @Failure      409      {object}  map[string]interface{}
// @Router       /api/sessions/{id}/save [post]
func (h *HTTPHandler) SaveSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var req SaveSessionRequest
	if err := decodeOptional(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	session, err := h.manager.SaveSession(r.Context(), sessionID, req.Notes)
	if err != nil {
		log.Printf("[ERROR] Failed to save session %s: %v", sessionID, err)
		respondManagerError(w, err, "Failed to save session")
		return
	}

	respondJSON(w, http.StatusOK, SessionResponse{Session: session})
}

// DeleteSession удаляет сессию
// @Summary      Delete session
// @Tags         sessions
// @Produce      json
// @Param        id   path      string  true  "Session ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}
// @Router       /api/sessions/{id} [delete]
func (h *HTTPHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	if err := h.manager.DeleteSession(r.Context(), sessionID); err != nil {
		log.Printf("[ERROR] Failed to delete session %s: %v", sessionID, err)
		respondManagerError(w, err, "Failed to delete session")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":    "Session deleted successfully",
		"session_id": sessionID,
	})
}

// GetDossier выгружает досье
// @Summary      Export dossier
// @Description  Dossier with verdict, findings, matrix and ledger ranking as JSON, CSV (matrix rows) or YAML
// @Tags         sessions
// @Produce      json,text/csv,application/yaml
// @Param        id      path   string  true   "Session ID"
// @Param        format  query  string  false  "json | csv | yaml"  default(json)
// @Success      200     {object}  Dossier
// @Failure      400     {object}  map[string]interface{}
// @Failure      404     {object}  map[string]interface{}
// @Router       /api/sessions/{id}/dossier [get]
func (h *HTTPHandler) GetDossier(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	format, err := ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	dossier, err := h.manager.Dossier(r.Context(), sessionID)
	if err != nil {
		respondError(w, http.StatusNotFound, "Session not found")
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	if format != FormatJSON {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", format.Filename(sessionID)))
	}
	w.WriteHeader(http.StatusOK)

	if err := dossier.Export(w, format); err != nil {
		log.Printf("[ERROR] Failed to export dossier %s: %v", sessionID, err)
	}
}

// GetTrail журнал станции
// @Summary      Station trail
// @Tags         sessions
// @Produce      json
// @Param        id   path      string  true  "Session ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}
// @Router       /api/sessions/{id}/trail [get]
func (h *HTTPHandler) GetTrail(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	station, ok := h.manager.Station(sessionID)
	if !ok {
		respondError(w, http.StatusNotFound, "Session not found")
		return
	}

	entries := station.Trail()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": sessionID,
		"entries":    entries,
		"count":      len(entries),
	})
}

// GetLedger ранжированный журнал испытаний
// @Summary      Audit ledger
// @Tags         sessions
// @Produce      json
// @Param        id   path      string  true  "Session ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}
// @Router       /api/sessions/{id}/ledger [get]
func (h *HTTPHandler) GetLedger(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	station, ok := h.manager.Station(sessionID)
	if !ok {
		respondError(w, http.StatusNotFound, "Session not found")
		return
	}

	ranking, verdict := station.Ledger()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": sessionID,
		"ranking":    ranking,
		"verdict":    verdict,
		"count":      len(ranking),
	})
}

// DownloadBackendCSV проксирует CSV бэкенда без разбора
// @Summary      Download backend CSV
// @Tags         backend
// @Produce      text/csv
// @Success      200
// @Failure      502  {object}  map[string]interface{}
// @Router       /api/backend/csv [get]
func (h *HTTPHandler) DownloadBackendCSV(w http.ResponseWriter, r *http.Request) {
	if h.csv == nil {
		respondError(w, http.StatusServiceUnavailable, "Backend is not configured")
		return
	}

	body, contentType, err := h.csv.DownloadCSV(r.Context())
	if err != nil {
		log.Printf("[ERROR] [ML_SERVICE] CSV download failed: %v", err)
		respondError(w, http.StatusBadGateway, "Backend CSV unavailable")
		return
	}
	defer body.Close()

	if contentType == "" {
		contentType = "text/csv"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename=telemetry.csv")
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, body); err != nil {
		log.Printf("[WARN] [ML_SERVICE] CSV proxy interrupted: %v", err)
	}
}

// ===== Утилиты =====

// decodeOptional разбирает необязательное тело и проверяет его
func decodeOptional(r *http.Request, dst interface{}) error {
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
	}
	return requestValidator().Struct(dst)
}

func respondManagerError(w http.ResponseWriter, err error, message string) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		respondError(w, http.StatusNotFound, "Session not found")
	case errors.Is(err, ErrInvalidTransition):
		respondError(w, http.StatusConflict, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, message)
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[ERROR] Failed to encode JSON response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]interface{}{
		"error":  message,
		"status": status,
	})
}

func getQueryInt(r *http.Request, key string, defaultValue int) int {
	valueStr := r.URL.Query().Get(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
