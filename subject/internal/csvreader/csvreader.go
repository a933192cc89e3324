package csvreader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ErrNoSamples в записи нет ни одной выборки
var ErrNoSamples = errors.New("recording has no samples")

// DataPoint одна выборка записи: смещение от начала и проводимость, мкСм
type DataPoint struct {
	TimeSec float64
	Value   float64
}

// имена колонок, которые принимаются за время и за EDA
var (
	timeColumns = []string{"time_sec", "time", "t", "timestamp"}
	edaColumns  = []string{"eda", "eda_us", "eda_mean", "value", "raw"}
)

// ReadCSVFile читает запись сигнала с диска
func ReadCSVFile(filename string) ([]DataPoint, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open recording %s: %w", filename, err)
	}
	defer file.Close()

	points, err := Read(file, 0)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return points, nil
}

// Read разбирает запись с заголовком. Колонки ищутся по имени; запись из
// одной колонки EDA получает время по номеру строки с шагом period секунд.
func Read(r io.Reader, period float64) ([]DataPoint, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrNoSamples
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	timeIdx, edaIdx := locate(header)
	if edaIdx < 0 {
		return nil, fmt.Errorf("no EDA column in header %v", header)
	}
	if period <= 0 {
		period = 1
	}

	var points []DataPoint
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if edaIdx >= len(record) {
			return nil, fmt.Errorf("line %d: missing EDA column", line)
		}

		value, err := strconv.ParseFloat(strings.TrimSpace(record[edaIdx]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid EDA value: %w", line, err)
		}

		at := float64(len(points)) * period
		if timeIdx >= 0 && timeIdx < len(record) {
			if at, err = strconv.ParseFloat(strings.TrimSpace(record[timeIdx]), 64); err != nil {
				return nil, fmt.Errorf("line %d: invalid time value: %w", line, err)
			}
		}

		points = append(points, DataPoint{TimeSec: at, Value: value})
	}

	if len(points) == 0 {
		return nil, ErrNoSamples
	}
	return points, nil
}

func locate(header []string) (timeIdx, edaIdx int) {
	timeIdx, edaIdx = -1, -1
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		if timeIdx < 0 && contains(timeColumns, name) {
			timeIdx = i
		}
		if edaIdx < 0 && contains(edaColumns, name) {
			edaIdx = i
		}
	}
	if edaIdx >= 0 {
		return timeIdx, edaIdx
	}
	// EDA не названа: первая колонка, не занятая временем; без имен время идет первым
	if timeIdx < 0 && len(header) >= 2 {
		return 0, 1
	}
	for i := range header {
		if i != timeIdx {
			return timeIdx, i
		}
	}
	return timeIdx, -1
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
