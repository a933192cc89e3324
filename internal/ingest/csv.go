package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrEmptyFile в файле нет ни одной строки данных
	ErrEmptyFile = errors.New("empty feature CSV")
	// ErrSchemaMismatch длина результата реконструкции не совпадает с числом строк
	ErrSchemaMismatch = errors.New("reconstruction length does not match rows")
)

// Columns порядок колонок файла признаков
var Columns = []string{
	"User_ID", "Age", "Gen", "BSR", "Win",
	"EDA_Mean", "EDA_Std", "SCL_Tonic", "SCR_Peaks", "SCR_Amp",
	"Slope_Max", "HF_Energy", "Entropy", "Motion",
}

// Row строка признаков EDA из загруженного файла
type Row struct {
	UserID   string  `json:"User_ID" yaml:"user_id"`
	Age      string  `json:"Age" yaml:"age"`
	Gen      string  `json:"Gen" yaml:"gen"`
	BSR      string  `json:"BSR" yaml:"bsr"`
	Win      string  `json:"Win" yaml:"win"`
	EDAMean  float64 `json:"EDA_Mean" yaml:"eda_mean"`
	EDAStd   float64 `json:"EDA_Std" yaml:"eda_std"`
	SCLTonic float64 `json:"SCL_Tonic" yaml:"scl_tonic"`
	SCRPeaks float64 `json:"SCR_Peaks" yaml:"scr_peaks"`
	SCRAmp   float64 `json:"SCR_Amp" yaml:"scr_amp"`
	SlopeMax float64 `json:"Slope_Max" yaml:"slope_max"`
	HFEnergy float64 `json:"HF_Energy" yaml:"hf_energy"`
	Entropy  float64 `json:"Entropy" yaml:"entropy"`
	Motion   int     `json:"Motion" yaml:"motion"`

	// ReportedMotion значение колонки Motion из файла, для сверки
	ReportedMotion int `json:"Reported_Motion" yaml:"reported_motion"`
}

// Summary сводка по разобранному файлу
type Summary struct {
	Rows      int     `json:"rows"`
	Skipped   int     `json:"skipped"`
	Artifacts int     `json:"artifacts"`
	MeanEDA   float64 `json:"mean_eda"`
}

// Parse читает файл признаков. Битые числовые поля приводятся к 0, битая
// строка не останавливает разбор. Motion пересчитывается по artifactThreshold.
func Parse(r io.Reader, artifactThreshold float64) ([]Row, Summary, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows := make([]Row, 0)
	summary := Summary{}
	first := true

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}

		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				log.Printf("[WARN] Feature CSV line %d skipped: %v", parseErr.Line, err)
				summary.Skipped++
				continue
			}
			return nil, summary, fmt.Errorf("failed to read feature CSV: %w", err)
		}

		if isSeparator(record) {
			continue
		}

		if first {
			first = false
			if isHeader(record) {
				continue
			}
		}

		row := parseRecord(record, artifactThreshold)
		if row.Motion == 1 {
			summary.Artifacts++
		}
		summary.MeanEDA += row.EDAMean
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, summary, ErrEmptyFile
	}

	summary.Rows = len(rows)
	summary.MeanEDA /= float64(len(rows))

	return rows, summary, nil
}

func parseRecord(c []string, artifactThreshold float64) Row {
	field := func(i int) string {
		if i < len(c) {
			return strings.TrimSpace(c[i])
		}
		return ""
	}

	row := Row{
		UserID:         field(0),
		Age:            field(1),
		Gen:            field(2),
		BSR:            field(3),
		Win:            field(4),
		EDAMean:        number(field(5)),
		EDAStd:         number(field(6)),
		SCLTonic:       number(field(7)),
		SCRPeaks:       number(field(8)),
		SCRAmp:         number(field(9)),
		SlopeMax:       number(field(10)),
		HFEnergy:       number(field(11)),
		Entropy:        number(field(12)),
		ReportedMotion: integer(field(13)),
	}

	if row.EDAMean > artifactThreshold {
		row.Motion = 1
	}
	return row
}

// number разбирает число; при ошибке, NaN или бесконечности возвращает 0
func number(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func integer(s string) int {
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return int(math.Trunc(number(s)))
}

// isSeparator строки-разделители вида "----" пропускаются
func isSeparator(record []string) bool {
	for _, cell := range record {
		if strings.Contains(cell, "---") {
			return true
		}
	}
	return false
}

// isHeader первая строка считается заголовком, если колонка EDA_Mean не число
func isHeader(record []string) bool {
	if len(record) == 0 {
		return false
	}

	firstCell := strings.ToLower(strings.TrimSpace(record[0]))
	if firstCell == "user_id" {
		return true
	}

	if len(record) > 5 {
		_, err := strconv.ParseFloat(strings.TrimSpace(record[5]), 64)
		return err != nil
	}
	return false
}

// EDAMeans колонка EDA_Mean, по которой работает реконструкция
func EDAMeans(rows []Row) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = r.EDAMean
	}
	return out
}

// Apply возвращает копию строк с SCL_Tonic = refined[i] и Motion по расхождению
// реконструкции с EDA_Mean больше delta
func Apply(rows []Row, refined []float64, delta float64) ([]Row, error) {
	if len(refined) != len(rows) {
		return nil, fmt.Errorf("%w: %d rows, %d refined values", ErrSchemaMismatch, len(rows), len(refined))
	}

	out := make([]Row, len(rows))
	for i, r := range rows {
		r.SCLTonic = refined[i]
		r.Motion = 0
		if math.Abs(refined[i]-r.EDAMean) > delta {
			r.Motion = 1
		}
		out[i] = r
	}
	return out, nil
}

// Write выгружает строки в CSV с заголовком
func Write(w io.Writer, rows []Row) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(Columns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, r := range rows {
		record := []string{
			r.UserID, r.Age, r.Gen, r.BSR, r.Win,
			formatFloat(r.EDAMean), formatFloat(r.EDAStd), formatFloat(r.SCLTonic),
			formatFloat(r.SCRPeaks), formatFloat(r.SCRAmp), formatFloat(r.SlopeMax),
			formatFloat(r.HFEnergy), formatFloat(r.Entropy), strconv.Itoa(r.Motion),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
