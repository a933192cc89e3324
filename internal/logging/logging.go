package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation параметры ротации файла журнала
type Rotation struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// DefaultRotation 20 МБ на файл, 5 архивов, 14 дней
var DefaultRotation = Rotation{
	MaxSizeMB:  20,
	MaxBackups: 5,
	MaxAgeDays: 14,
	Compress:   true,
}

// NewRotatingFile открывает файл с ротацией по размеру
func NewRotatingFile(path string, r Rotation) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    r.MaxSizeMB,
		MaxBackups: r.MaxBackups,
		MaxAge:     r.MaxAgeDays,
		Compress:   r.Compress,
		LocalTime:  true,
	}
}

// Setup дублирует стандартный log в файл с ротацией, если путь задан.
// Возвращенный io.Closer нужно закрыть при завершении процесса.
func Setup(path string) io.Closer {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if path == "" {
		return io.NopCloser(nil)
	}

	file := NewRotatingFile(path, DefaultRotation)
	log.SetOutput(io.MultiWriter(os.Stdout, file))
	log.Printf("[INFO] Logging to %s", path)

	return file
}
