package relay

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Krimson/eda-forensics/internal/uplink"
)

// maxPacketBytes верхняя граница тела PUT
const maxPacketBytes = 16 * 1024

// Handler ретранслятор realtime-канала: датчик пишет PUT, дашборд читает GET.
// Пустой канал отвечает JSON null, как realtime-база.
type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes регистрирует /telemetry.json
func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/telemetry.json", h.Put).Methods(http.MethodPut)
	router.HandleFunc("/telemetry.json", h.Get).Methods(http.MethodGet)
}

// Put принимает пакет датчика
// @Summary      Write uplink packet
// @Description  Stores the latest sensor packet for the dashboard poller
// @Tags         relay
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  map[string]interface{}
// @Router       /telemetry.json [put]
func (h *Handler) Put(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPacketBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Failed to read body")
		return
	}

	pkt, err := uplink.Decode(body)
	if err != nil {
		log.Printf("[WARN] [RELAY] Rejected packet: %v", err)
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	// сохраняем нормализованную форму пакета
	normalized, err := pkt.Encode()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to encode packet")
		return
	}

	if err := h.store.Put(r.Context(), normalized); err != nil {
		log.Printf("[ERROR] [RELAY] %v", err)
		respondError(w, http.StatusServiceUnavailable, "Relay store unavailable")
		return
	}

	if pkt.Ended() {
		log.Printf("[RELAY] Termination packet stored for handshake %s", pkt.Handshake)
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "stored"})
}

// Get отдает последний пакет
// @Summary      Read uplink packet
// @Description  Returns the latest sensor packet or null when the channel is empty
// @Tags         relay
// @Produce      json
// @Success      200  {object}  uplink.Packet
// @Router       /telemetry.json [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	data, err := h.store.Get(r.Context())
	if err != nil {
		if errors.Is(err, ErrEmpty) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte("null"))
			return
		}
		log.Printf("[ERROR] [RELAY] %v", err)
		respondError(w, http.StatusServiceUnavailable, "Relay store unavailable")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
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
