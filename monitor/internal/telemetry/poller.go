package telemetry

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/Krimson/eda-forensics/internal/uplink"
)

// Handler получает результат каждого тика опроса. Возврат true останавливает опрос
// (терминальный пакет ENDED).
type Handler interface {
	HandlePoll(ctx context.Context, pkt *uplink.Packet, err error) bool
}

// HandlerFunc адаптер функции к Handler
type HandlerFunc func(ctx context.Context, pkt *uplink.Packet, err error) bool

func (f HandlerFunc) HandlePoll(ctx context.Context, pkt *uplink.Packet, err error) bool {
	return f(ctx, pkt, err)
}

// Poller опрашивает источник с фиксированным интервалом. Ошибки сети не
// останавливают цикл, следующий тик пробует снова.
type Poller struct {
	name     string
	source   Source
	handler  Handler
	interval time.Duration
	timeout  time.Duration

	stats struct {
		mu       sync.RWMutex
		polled   int64
		failed   int64
		accepted int64
	}
}

// NewPoller создает опросчик. Таймаут одного запроса не превышает интервал.
func NewPoller(name string, source Source, handler Handler, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = 150 * time.Millisecond
	}

	timeout := interval
	if timeout < 100*time.Millisecond {
		timeout = 100 * time.Millisecond
	}

	return &Poller{
		name:     name,
		source:   source,
		handler:  handler,
		interval: interval,
		timeout:  timeout,
	}
}

// Run крутит цикл до отмены ctx или до сигнала остановки от обработчика
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	log.Printf("[POLL] %s started, interval=%v", p.name, p.interval)
	defer func() {
		p.logStats()
		log.Printf("[POLL] %s stopped", p.name)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if p.tick(ctx) {
				return
			}
		}
	}
}

func (p *Poller) tick(ctx context.Context) bool {
	fetchCtx, cancel := context.WithTimeout(ctx, p.timeout)
	pkt, err := p.source.Fetch(fetchCtx)
	cancel()

	// отмена во время запроса не считается сбоем канала
	if ctx.Err() != nil {
		return true
	}

	p.record(err)

	return p.handler.HandlePoll(ctx, pkt, err)
}

func (p *Poller) record(err error) {
	p.stats.mu.Lock()
	defer p.stats.mu.Unlock()

	p.stats.polled++
	if err != nil {
		p.stats.failed++
	} else {
		p.stats.accepted++
	}
}

func (p *Poller) logStats() {
	p.stats.mu.RLock()
	defer p.stats.mu.RUnlock()

	log.Printf("[STATS] poller=%s polled=%d accepted=%d failed=%d",
		p.name, p.stats.polled, p.stats.accepted, p.stats.failed)
}

// GetStats возвращает счетчики опроса
func (p *Poller) GetStats() (polled, accepted, failed int64) {
	p.stats.mu.RLock()
	defer p.stats.mu.RUnlock()
	return p.stats.polled, p.stats.accepted, p.stats.failed
}
