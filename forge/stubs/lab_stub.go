package stubs

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strconv"
	"sync"
)

// LabStub HTTP-заглушка ML бэкенда лаборатории: /analyze, /benchmark,
// /log_telemetry, /download_csv, /live_reconstruct
type LabStub struct {
	engine *labEngine
	mux    *http.ServeMux

	mu        sync.Mutex
	failing   bool
	malformed bool
	logged    []map[string]any
	calls     map[string]int
}

// NewLabStub создает заглушку со свежим состоянием якоря CUL
func NewLabStub() *LabStub {
	s := &LabStub{
		engine: &labEngine{},
		mux:    http.NewServeMux(),
		calls:  make(map[string]int),
	}

	s.mux.HandleFunc("/", s.handleRoot)
	s.mux.HandleFunc("/analyze", s.handleAnalyze)
	s.mux.HandleFunc("/benchmark", s.handleBenchmark)
	s.mux.HandleFunc("/log_telemetry", s.handleLogTelemetry)
	s.mux.HandleFunc("/download_csv", s.handleDownloadCSV)
	s.mux.HandleFunc("/live_reconstruct", s.handleLiveReconstruct)

	return s
}

func (s *LabStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.calls[r.URL.Path]++
	s.mu.Unlock()

	s.mux.ServeHTTP(w, r)
}

// SetFailing переводит /analyze и /benchmark в режим ответа 500
func (s *LabStub) SetFailing(failing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing = failing
}

// SetMalformed заставляет /analyze и /benchmark отвечать JSON без обязательных полей
func (s *LabStub) SetMalformed(malformed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.malformed = malformed
}

// Calls число обращений к пути
func (s *LabStub) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

// Logged строки, принятые /log_telemetry
func (s *LabStub) Logged() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]any(nil), s.logged...)
}

// ResetAnchor сбрасывает якорь CUL, как при перезапуске бэкенда
func (s *LabStub) ResetAnchor() {
	s.engine.resetAnchor()
}

func (s *LabStub) faults() (failing, malformed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failing, s.malformed
}

func (s *LabStub) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "Forensic Lab Node Active", "version": "4.0.0"})
}

type analysisInput struct {
	RawData    []float64 `json:"raw_data"`
	Mode       string    `json:"mode"`
	Techniques []string  `json:"techniques"`
}

func (s *LabStub) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	failing, malformed := s.faults()
	if failing {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "engine offline"})
		return
	}

	var in analysisInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": err.Error()})
		return
	}

	if malformed {
		writeJSON(w, http.StatusOK, map[string]any{"refined": in.RawData})
		return
	}

	var refined []float64
	if in.Mode == "solo" {
		tech := "cul"
		if len(in.Techniques) > 0 {
			tech = in.Techniques[0]
		}
		refined = s.engine.runSolo(tech, in.RawData)
	} else {
		refined = s.engine.runHybrid(in.Techniques, in.RawData)
	}

	log.Printf("[LAB_STUB] analyze mode=%s techs=%v samples=%d", in.Mode, in.Techniques, len(in.RawData))

	writeJSON(w, http.StatusOK, map[string]any{
		"refined_data": refined,
		"metrics":      calculateMetrics(in.RawData, refined),
		"mode_used":    in.Mode,
		"algorithms":   in.Techniques,
	})
}

func (s *LabStub) handleBenchmark(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	failing, malformed := s.faults()
	if failing {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "engine offline"})
		return
	}

	var in struct {
		RawData []float64 `json:"raw_data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": err.Error()})
		return
	}

	if malformed {
		writeJSON(w, http.StatusOK, map[string]any{"results": []map[string]any{{"mode": "quantum"}}})
		return
	}

	results := s.engine.benchmark(in.RawData)
	log.Printf("[LAB_STUB] benchmark samples=%d combinations=%d", len(in.RawData), len(results))

	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *LabStub) handleLogTelemetry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var row map[string]any
	if err := json.NewDecoder(r.Body).Decode(&row); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": err.Error()})
		return
	}

	s.mu.Lock()
	s.logged = append(s.logged, row)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "logged"})
}

func (s *LabStub) handleDownloadCSV(w http.ResponseWriter, r *http.Request) {
	rows := s.Logged()

	columns := make([]string, 0)
	seen := make(map[string]bool)
	for _, row := range rows {
		for key := range row {
			if !seen[key] {
				seen[key] = true
				columns = append(columns, key)
			}
		}
	}
	sort.Strings(columns)

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=telemetry_log.csv")

	writer := csv.NewWriter(w)
	writer.Write(columns)
	for _, row := range rows {
		record := make([]string, len(columns))
		for i, col := range columns {
			record[i] = formatCell(row[col])
		}
		writer.Write(record)
	}
	writer.Flush()
}

func (s *LabStub) handleLiveReconstruct(w http.ResponseWriter, r *http.Request) {
	var in struct {
		RawVal  float64   `json:"raw_val"`
		History []float64 `json:"history"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": err.Error()})
		return
	}

	window := append(append([]float64(nil), in.History...), in.RawVal)
	refined := s.engine.runSolo("cul", window)
	writeJSON(w, http.StatusOK, map[string]float64{"refined": refined[len(refined)-1]})
}

func formatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
