package reconstruct

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/Krimson/eda-forensics/internal/audit"
)

// Job одна заявка на реконструкцию окна
type Job struct {
	Window     []float64
	Mode       audit.Mode
	Techniques []string

	// Apply вызывается воркером с результатом, строго в порядке постановки
	Apply func(Result)
}

// Queue однопоточная FIFO-очередь реконструкций: в работе не больше одной заявки,
// результаты применяются в порядке постановки
type Queue struct {
	rec     *Reconstructor
	timeout time.Duration

	jobs     chan Job
	stopChan chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	stats struct {
		mu        sync.RWMutex
		submitted int64
		completed int64
		degraded  int64
		dropped   int64
	}
}

// NewQueue запускает воркер. depth ограничивает число ожидающих заявок.
func NewQueue(rec *Reconstructor, depth int, timeout time.Duration) *Queue {
	if depth <= 0 {
		depth = 1
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	q := &Queue{
		rec:      rec,
		timeout:  timeout,
		jobs:     make(chan Job, depth),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}

	go q.worker()

	return q
}

// Submit ставит заявку без блокировки. Переполненная очередь возвращает ErrQueueFull.
func (q *Queue) Submit(job Job) error {
	select {
	case <-q.stopChan:
		return ErrQueueStopped
	default:
	}

	select {
	case q.jobs <- job:
		q.incrementSubmitted()
		return nil
	default:
		q.incrementDropped()
		log.Printf("[WARN] Reconstruction queue full, latch skipped")
		return ErrQueueFull
	}
}

func (q *Queue) worker() {
	defer close(q.done)

	for {
		select {
		case job := <-q.jobs:
			q.run(job)

		case <-q.stopChan:
			// дорабатываем уже принятые заявки, чтобы не нарушить порядок применения
			for {
				select {
				case job := <-q.jobs:
					q.run(job)
				default:
					return
				}
			}
		}
	}
}

func (q *Queue) run(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	result := q.rec.Reconstruct(ctx, job.Window, job.Mode, job.Techniques)
	cancel()

	q.incrementCompleted(result.Degraded)

	if job.Apply != nil {
		job.Apply(result)
	}
}

// Stop дожидается завершения принятых заявок
func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		close(q.stopChan)
	})
	<-q.done
	q.logStats()
}

func (q *Queue) incrementSubmitted() {
	q.stats.mu.Lock()
	q.stats.submitted++
	q.stats.mu.Unlock()
}

func (q *Queue) incrementDropped() {
	q.stats.mu.Lock()
	q.stats.dropped++
	q.stats.mu.Unlock()
}

func (q *Queue) incrementCompleted(degraded bool) {
	q.stats.mu.Lock()
	q.stats.completed++
	if degraded {
		q.stats.degraded++
	}
	q.stats.mu.Unlock()
}

func (q *Queue) logStats() {
	q.stats.mu.RLock()
	defer q.stats.mu.RUnlock()

	log.Printf("[STATS] reconstruction submitted=%d completed=%d degraded=%d dropped=%d",
		q.stats.submitted, q.stats.completed, q.stats.degraded, q.stats.dropped)
}

// GetStats возвращает счетчики очереди
func (q *Queue) GetStats() (submitted, completed, degraded, dropped int64) {
	q.stats.mu.RLock()
	defer q.stats.mu.RUnlock()
	return q.stats.submitted, q.stats.completed, q.stats.degraded, q.stats.dropped
}
