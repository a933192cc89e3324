package senders

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Krimson/eda-forensics/internal/logging"
	"github.com/Krimson/eda-forensics/internal/uplink"
)

// WriteStats содержит статистику записи
type WriteStats struct {
	TotalLines    int64     `json:"total_lines"`
	TotalBytes    int64     `json:"total_bytes"`
	LastWriteTime time.Time `json:"last_write_time"`
	ErrorsCount   int64     `json:"errors_count"`
}

// JSONLRecorder пишет каждый пакет строкой JSON в файл с ротацией
type JSONLRecorder struct {
	mu    sync.Mutex
	out   io.WriteCloser
	stats WriteStats
}

// recordRotation записи датчика крупнее журналов сервиса
var recordRotation = logging.Rotation{
	MaxSizeMB:  50,
	MaxBackups: 10,
	MaxAgeDays: 30,
	Compress:   true,
}

func NewJSONLRecorder(path string) *JSONLRecorder {
	return NewJSONLRecorderTo(logging.NewRotatingFile(path, recordRotation))
}

// NewJSONLRecorderTo пишет в произвольный приемник
func NewJSONLRecorderTo(out io.WriteCloser) *JSONLRecorder {
	return &JSONLRecorder{out: out}
}

func (j *JSONLRecorder) Send(_ context.Context, p *uplink.Packet) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.out == nil {
		return ErrClosed
	}

	line, err := json.Marshal(p)
	if err != nil {
		j.stats.ErrorsCount++
		return fmt.Errorf("JSON marshaling failed: %w", err)
	}
	line = append(line, '\n')

	n, err := j.out.Write(line)
	if err != nil {
		j.stats.ErrorsCount++
		return fmt.Errorf("write failed: %w", err)
	}

	j.stats.TotalLines++
	j.stats.TotalBytes += int64(n)
	j.stats.LastWriteTime = time.Now()
	return nil
}

func (j *JSONLRecorder) GetStats() WriteStats {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.stats
}

func (j *JSONLRecorder) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.out == nil {
		return nil
	}
	err := j.out.Close()
	j.out = nil
	if err != nil {
		return fmt.Errorf("file close failed: %w", err)
	}
	return nil
}
