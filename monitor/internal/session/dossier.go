package session

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnknownFormat формат экспорта не поддерживается
var ErrUnknownFormat = errors.New("unknown dossier format")

// Format формат экспорта досье
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatYAML Format = "yaml"
)

// ParseFormat разбирает формат из строки запроса; пустая строка означает JSON
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, s)
	}
}

// ContentType MIME тип формата
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatYAML:
		return "application/yaml"
	default:
		return "application/json"
	}
}

// Filename имя файла выгрузки
func (f Format) Filename(sessionID string) string {
	return fmt.Sprintf("dossier_%s.%s", sessionID, f)
}

// Export пишет досье в выбранном формате
func (d *Dossier) Export(w io.Writer, f Format) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(d); err != nil {
			return fmt.Errorf("failed to encode dossier yaml: %w", err)
		}
		return enc.Close()
	case FormatCSV:
		return d.writeCSV(w)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, f)
	}
}

var matrixHeader = []string{
	"id", "timestamp", "epoch", "raw", "refined", "tonic_mean", "signal_entropy", "stability_index", "is_artifact", "degraded",
}

// writeCSV выгружает матрицу в хронологическом порядке
func (d *Dossier) writeCSV(w io.Writer) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(matrixHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for i := len(d.Matrix) - 1; i >= 0; i-- {
		f := d.Matrix[i]
		record := []string{
			f.ID,
			f.Timestamp,
			strconv.FormatInt(f.Epoch, 10),
			formatFloat(f.Raw),
			formatFloat(f.Refined),
			formatFloat(f.TonicMean),
			formatFloat(f.SignalEntropy),
			formatFloat(f.StabilityIndex),
			strconv.FormatBool(f.IsArtifact),
			strconv.FormatBool(f.Degraded),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
