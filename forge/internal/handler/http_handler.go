package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/Krimson/eda-forensics/forge/internal/service"
	"github.com/Krimson/eda-forensics/forge/pkg/models"
	"github.com/Krimson/eda-forensics/internal/ingest"
	"github.com/Krimson/eda-forensics/internal/reconstruct"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func requestValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

type HTTPHandler struct {
	labService     *service.LabService
	maxUploadBytes int64
}

func NewHTTPHandler(labService *service.LabService, maxUploadBytes int64) *HTTPHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 32 << 20
	}
	return &HTTPHandler{
		labService:     labService,
		maxUploadBytes: maxUploadBytes,
	}
}

// RegisterRoutes регистрирует маршруты лаборатории
func (h *HTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/upload", h.UploadCSV)
	mux.HandleFunc("/clean", h.Clean)
	mux.HandleFunc("/benchmark", h.Benchmark)
	mux.HandleFunc("/session", h.GetSessionData)
	mux.HandleFunc("/decision", h.HandleDecision)
	mux.HandleFunc("/download", h.Download)
	mux.HandleFunc("/debug/stats", h.Stats)
}

// UploadCSV загружает файл признаков EDA
// @Summary Загрузить CSV файл признаков
// @Description Разбирает 14-колоночный файл признаков EDA и кэширует его как лабораторную сессию
// @Tags Laboratory
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV файл признаков"
// @Param session_id formData string false "ID сессии (генерируется автоматически если не указан)"
// @Success 200 {object} models.UploadResponse "Разобранные строки"
// @Failure 400 {object} map[string]string "Неверный запрос"
// @Failure 500 {object} map[string]string "Ошибка обработки"
// @Router /upload [post]
func (h *HTTPHandler) UploadCSV(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "Method not allowed", nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "Failed to parse form", err)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Failed to get file", err)
		return
	}
	defer file.Close()

	sessionID := r.FormValue("session_id")
	if sessionID == "" {
		sessionID = generateSessionID()
	}

	response, err := h.labService.ProcessUpload(r.Context(), file, header.Filename, sessionID)
	if err != nil {
		if errors.Is(err, ingest.ErrEmptyFile) {
			respondError(w, http.StatusBadRequest, "Processing failed", err)
			return
		}
		respondError(w, http.StatusInternalServerError, "Processing failed", err)
		return
	}

	respondJSON(w, http.StatusOK, response)
}

// Clean запускает реконструкцию над сессией
// @Summary Очистить сигнал
// @Description Отправляет колонку EDA_Mean в /analyze; при успехе пересчитывает SCL_Tonic и Motion
// @Tags Laboratory
// @Accept json
// @Produce json
// @Param request body models.CleanRequest true "Режим и алгоритмы"
// @Success 200 {object} models.CleanResponse "Испытание и строки"
// @Failure 400 {object} map[string]string "Неверный запрос"
// @Failure 404 {object} map[string]string "Сессия не найдена"
// @Router /clean [post]
func (h *HTTPHandler) Clean(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "Method not allowed", nil)
		return
	}

	var req models.CleanRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	response, err := h.labService.Clean(r.Context(), &req)
	if err != nil {
		respondServiceError(w, err, "Clean failed")
		return
	}

	respondJSON(w, http.StatusOK, response)
}

// Benchmark полный перебор комбинаций
// @Summary Перебрать все комбинации
// @Description Запускает /benchmark по исходной колонке EDA_Mean, результаты B-1..B-n заменяют журнал
// @Tags Laboratory
// @Accept json
// @Produce json
// @Param request body models.BenchmarkRequest true "Сессия"
// @Success 200 {object} models.SessionResponse "Рейтинг"
// @Failure 404 {object} map[string]string "Сессия не найдена"
// @Failure 502 {object} map[string]string "Бэкенд недоступен"
// @Router /benchmark [post]
func (h *HTTPHandler) Benchmark(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "Method not allowed", nil)
		return
	}

	var req models.BenchmarkRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	response, err := h.labService.Benchmark(r.Context(), req.SessionID)
	if err != nil {
		respondServiceError(w, err, "Benchmark failed")
		return
	}

	respondJSON(w, http.StatusOK, response)
}

// HandleDecision обрабатывает решение о сохранении данных сессии
// @Summary Принять решение о сохранении
// @Description Сохраняет сессию в базу данных или удаляет ее из кэша
// @Tags Laboratory
// @Accept json
// @Produce json
// @Param request body models.SaveDecision true "Решение о сохранении"
// @Success 200 {object} models.DecisionResponse "Результат операции"
// @Failure 400 {object} map[string]string "Неверный запрос"
// @Failure 500 {object} map[string]string "Ошибка обработки"
// @Router /decision [post]
func (h *HTTPHandler) HandleDecision(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "Method not allowed", nil)
		return
	}

	var decision models.SaveDecision
	if !decodeRequest(w, r, &decision) {
		return
	}

	response, err := h.labService.HandleDecision(r.Context(), &decision)
	if err != nil {
		respondServiceError(w, err, "Decision processing failed")
		return
	}

	respondJSON(w, http.StatusOK, response)
}

// GetSessionData получает данные сессии
// @Summary Получить данные сессии
// @Tags Laboratory
// @Produce json
// @Param session_id query string true "ID сессии"
// @Success 200 {object} models.SessionResponse "Строки и рейтинг"
// @Failure 400 {object} map[string]string "Неверный запрос"
// @Failure 404 {object} map[string]string "Сессия не найдена"
// @Router /session [get]
func (h *HTTPHandler) GetSessionData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "Method not allowed", nil)
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "session_id parameter is required", nil)
		return
	}

	response, err := h.labService.GetSession(r.Context(), sessionID)
	if err != nil {
		respondServiceError(w, err, "Failed to get session")
		return
	}

	respondJSON(w, http.StatusOK, response)
}

// Download выгружает строки сессии
// @Summary Скачать CSV
// @Tags Laboratory
// @Produce text/csv
// @Param session_id query string true "ID сессии"
// @Success 200
// @Failure 404 {object} map[string]string "Сессия не найдена"
// @Router /download [get]
func (h *HTTPHandler) Download(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "Method not allowed", nil)
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "session_id parameter is required", nil)
		return
	}

	// Проверяем сессию до записи заголовков
	if _, err := h.labService.GetSession(r.Context(), sessionID); err != nil {
		respondServiceError(w, err, "Failed to get session")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="cleaned_%s.csv"`, sessionID))
	if err := h.labService.Export(r.Context(), sessionID, w); err != nil {
		log.Printf("[ERROR] Failed to export session %s: %v", sessionID, err)
	}
}

func (h *HTTPHandler) Stats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.labService.Stats())
}

func decodeRequest(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := requestValidator().Struct(dst); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

func respondServiceError(w http.ResponseWriter, err error, message string) {
	switch {
	case errors.Is(err, models.ErrSessionNotFound), errors.Is(err, models.ErrSessionExpired):
		respondError(w, http.StatusNotFound, message, err)
	case errors.Is(err, reconstruct.ErrUnknownTechnique):
		respondError(w, http.StatusBadRequest, message, err)
	case errors.Is(err, reconstruct.ErrBackendUnavailable), errors.Is(err, reconstruct.ErrSchemaMismatch):
		respondError(w, http.StatusBadGateway, message, err)
	default:
		respondError(w, http.StatusInternalServerError, message, err)
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[ERROR] Failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]string{"error": message}
	if err != nil {
		response["details"] = err.Error()
	}
	respondJSON(w, status, response)
}

func generateSessionID() string {
	return uuid.New().String()
}
