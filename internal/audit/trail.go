package audit

import (
	"log"
	"sync"
	"time"
)

// Level уровень строки журнала станции
type Level string

const (
	LevelSys   Level = "SYS"
	LevelData  Level = "DATA"
	LevelWarn  Level = "WARN"
	LevelCrit  Level = "CRIT"
	LevelStamp Level = "STAMP"
)

// Entry строка журнала станции, видимая оператору
type Entry struct {
	Time    time.Time `json:"time" yaml:"time"`
	Level   Level     `json:"level" yaml:"level"`
	Message string    `json:"message" yaml:"message"`
}

// Trail ограниченный журнал станции, новые записи первыми
type Trail struct {
	mu      sync.RWMutex
	entries []Entry
	limit   int
	now     func() time.Time
	onPush  func(Entry)
}

// NewTrail создает журнал на limit строк
func NewTrail(limit int) *Trail {
	if limit <= 0 {
		limit = 60
	}
	return &Trail{
		entries: make([]Entry, 0, limit),
		limit:   limit,
		now:     time.Now,
	}
}

// OnPush подписывает наблюдателя на новые строки (вебсокет-трансляция)
func (t *Trail) OnPush(fn func(Entry)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onPush = fn
}

// Push добавляет строку и вытесняет самые старые при переполнении
func (t *Trail) Push(level Level, message string) Entry {
	entry := Entry{Time: t.now(), Level: level, Message: message}

	t.mu.Lock()
	t.entries = append([]Entry{entry}, t.entries...)
	if len(t.entries) > t.limit {
		t.entries = t.entries[:t.limit]
	}
	observer := t.onPush
	t.mu.Unlock()

	log.Printf("[AUDIT] [%s] %s", level, message)

	if observer != nil {
		observer(entry)
	}
	return entry
}

// Entries возвращает копию журнала, новые строки первыми
func (t *Trail) Entries() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]Entry(nil), t.entries...)
}

func (t *Trail) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = t.entries[:0]
}
