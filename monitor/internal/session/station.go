package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/Krimson/eda-forensics/internal/audit"
	"github.com/Krimson/eda-forensics/internal/features"
	"github.com/Krimson/eda-forensics/internal/profile"
	"github.com/Krimson/eda-forensics/internal/reconstruct"
	"github.com/Krimson/eda-forensics/internal/uplink"
	"github.com/Krimson/eda-forensics/internal/verdict"
	"github.com/Krimson/eda-forensics/internal/window"
	"github.com/Krimson/eda-forensics/monitor/internal/telemetry"
)

const (
	benchmarkTimeout = 2 * time.Minute
	sinkTimeout      = 5 * time.Second
	cacheTimeout     = time.Second
)

// Deps внешние зависимости станции
type Deps struct {
	Backend   reconstruct.Backend
	Logger    TelemetryLogger
	Publisher Publisher
	Cache     CacheStore

	QueueDepth int
	MLTimeout  time.Duration
}

// Sample событие ленты на каждый принятый отсчет
type Sample struct {
	Value       float64              `json:"value"`
	IsArtifact  bool                 `json:"isArtifact"`
	Diagnostics features.Diagnostics `json:"diagnostics"`
	Verdict     verdict.Verdict      `json:"verdict"`
	Epoch       int64                `json:"epoch"`
}

// Station рабочее состояние одной сессии дашборда: окна, матрица, журналы и стадия.
// Все мутации идут под mu; сетевые вызовы выполняются вне блокировки.
type Station struct {
	mu   sync.RWMutex
	id   string
	prof *profile.Profile
	deps Deps
	now  func() time.Time

	code         string
	fingerprint  string
	stage        Stage
	passport     Passport
	notes        string
	startedAt    time.Time
	terminatedAt *time.Time
	savedAt      *time.Time
	samples      int64

	raw         *window.SlidingWindow[float64]
	refined     *window.SlidingWindow[float64]
	full        []float64
	matrix      []ForensicFrame
	reports     []AuditReport
	diagnostics features.Diagnostics
	lastLatch   time.Time
	benchmarked bool

	ledger *audit.Ledger
	trail  *audit.Trail
	rec    *reconstruct.Reconstructor
	queue  *reconstruct.Queue

	// generation растет на каждом Reset; результаты старых заявок отбрасываются
	generation int

	volatility *rate.Limiter
	missing    *rate.Limiter
	discarded  *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc
	bench  sync.WaitGroup
}

// NewStation создает станцию в стадии LOCKED с новым кодом рукопожатия
func NewStation(id string, prof *profile.Profile, deps Deps) (*Station, error) {
	if deps.Backend == nil {
		return nil, errors.New("station requires an ml backend")
	}
	if deps.Publisher == nil {
		deps.Publisher = LogPublisher{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Station{
		id:         id,
		prof:       prof.Clone(),
		deps:       deps,
		now:        time.Now,
		volatility: rate.NewLimiter(rate.Every(time.Second), 1),
		missing:    rate.NewLimiter(rate.Every(5*time.Second), 1),
		discarded:  rate.NewLimiter(rate.Every(time.Second), 1),
		ctx:        ctx,
		cancel:     cancel,
	}

	s.trail = audit.NewTrail(s.prof.TrailLimit)
	s.trail.OnPush(func(e audit.Entry) {
		s.deps.Publisher.Publish(s.id, EventTrail, e)
	})

	if err := s.rearm(); err != nil {
		cancel()
		return nil, err
	}
	s.startedAt = s.now()

	log.Printf("[SESSION] Station %s created, node=%s", s.id, s.prof.StationNode)
	return s, nil
}

// rearm выдает новый код и чистые буферы. Вызывается под mu (или до публикации станции).
func (s *Station) rearm() error {
	code, err := NewCode()
	if err != nil {
		return err
	}
	fingerprint, err := Fingerprint(code, s.prof.StationNode, s.id)
	if err != nil {
		return err
	}

	s.code = code
	s.fingerprint = fingerprint
	s.stage = StageLocked
	s.passport = Passport{
		Subject:     DefaultSubject,
		Age:         DefaultUnknown,
		Sex:         DefaultUnknown,
		Node:        s.prof.StationNode,
		SessionHash: code,
	}
	s.terminatedAt = nil
	s.savedAt = nil
	s.samples = 0

	s.raw = window.New(s.prof.GraphBufferLimit, s.prof.BaseBaseline)
	s.refined = window.New(s.prof.GraphBufferLimit, s.prof.BaseBaseline)
	s.full = nil
	s.matrix = nil
	s.reports = nil
	s.diagnostics = features.Diagnostics{}
	if d, err := features.ComputeDiagnostics(s.raw.Snapshot(), s.prof.EntropyScale); err == nil {
		s.diagnostics = d
	}
	s.lastLatch = time.Time{}
	s.benchmarked = false

	s.ledger = audit.NewLedger(s.prof.LedgerLimit)
	s.rec = reconstruct.NewReconstructor(s.deps.Backend, reconstruct.FallbackParams{
		ArtifactThreshold: s.prof.ArtifactThreshold,
		Floor:             s.prof.FallbackFloor,
		Jitter:            s.prof.FallbackJitter,
	}, s.ledger)
	s.queue = reconstruct.NewQueue(s.rec, s.deps.QueueDepth, s.deps.MLTimeout)
	s.generation++

	return nil
}

// ID идентификатор сессии
func (s *Station) ID() string {
	return s.id
}

// Code текущий код рукопожатия
func (s *Station) Code() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.code
}

// Stage текущая стадия
func (s *Station) Stage() Stage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stage
}

// PollingRate интервал опроса из профиля станции
func (s *Station) PollingRate() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prof.PollingRate
}

// SetNotes заметки оператора для досье
func (s *Station) SetNotes(notes string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes = notes
}

// ApplyProfile подхватывает пороги и интервалы нового профиля.
// Емкости окон меняются только после Reset.
func (s *Station) ApplyProfile(p *profile.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := p.Clone()
	next.GraphBufferLimit = s.prof.GraphBufferLimit
	next.LedgerLimit = s.prof.LedgerLimit
	next.TrailLimit = s.prof.TrailLimit
	s.prof = next
}

// HandlePoll реализует telemetry.Handler. Возвращает true, когда опрос нужно остановить.
func (s *Station) HandlePoll(ctx context.Context, pkt *uplink.Packet, err error) bool {
	if err != nil {
		switch {
		case errors.Is(err, telemetry.ErrUplinkMissing):
			if s.missing.Allow() {
				s.trail.Push(audit.LevelWarn, "Uplink Missing: Searching for Node...")
			}
		case errors.Is(err, uplink.ErrInvalidPacket):
			if s.discarded.Allow() {
				log.Printf("[WARN] [POLL] %s: packet discarded: %v", s.id, err)
			}
		}
		return s.Stage() == StageForensic
	}
	if pkt == nil {
		return s.Stage() == StageForensic
	}

	s.mu.Lock()
	if s.stage == StageForensic {
		s.mu.Unlock()
		return true
	}

	if !pkt.Matches(s.code) {
		stage := s.stage
		s.mu.Unlock()
		if s.discarded.Allow() {
			log.Printf("[WARN] [POLL] %s: handshake mismatch in %s, packet discarded", s.id, stage)
		}
		// оператор видит сбой только на открытом канале
		if stage == StageOperational && s.volatility.Allow() {
			s.trail.Push(audit.LevelWarn, "Link Volatility: Sync Failure.")
		}
		return false
	}

	if pkt.Ended() {
		s.mu.Unlock()
		s.trail.Push(audit.LevelCrit, "Remote Termination Detected. Syncing Dossier...")
		if err := s.terminate(); err != nil {
			log.Printf("[WARN] [SESSION] %s: %v", s.id, err)
		}
		return true
	}

	var opened bool
	if s.stage == StageLocked {
		s.stage = StageOperational
		opened = true
	}
	s.refreshPassport(pkt)
	s.mu.Unlock()

	if opened {
		s.trail.Push(audit.LevelSys, "Security Tunnel Established. Session Active.")
		s.publishStage(StageOperational)
		s.persistSession()
	}

	s.ingest(pkt)
	return false
}

func (s *Station) refreshPassport(pkt *uplink.Packet) {
	s.passport = Passport{
		Subject:     orDefault(pkt.Subject, DefaultSubject),
		Age:         orDefault(pkt.Age, DefaultUnknown),
		Sex:         orDefault(pkt.Sex, DefaultUnknown),
		Node:        orDefault(pkt.Node, s.prof.StationNode),
		SessionHash: s.code,
	}
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// latchInput состояние на момент защелкивания, до добавления текущего отсчета
type latchInput struct {
	generation int
	current    float64
	buffer     []float64
	entropy    float64
	passport   Passport
	at         time.Time
}

// ingest добавляет отсчет в окна и при наступлении интервала ставит защелку в очередь
func (s *Station) ingest(pkt *uplink.Packet) {
	now := s.now()
	value := pkt.EDA

	s.mu.Lock()
	buffer := s.raw.Snapshot()
	entropy := features.EntropyIndex(buffer, s.prof.EntropyScale)

	var job *reconstruct.Job
	if now.Sub(s.lastLatch) > s.prof.MatrixUpdateInterval {
		// интервал отсчитывается от постановки, чтобы медленный бэкенд не плодил заявки
		s.lastLatch = now
		in := latchInput{
			generation: s.generation,
			current:    value,
			buffer:     buffer,
			entropy:    entropy,
			passport:   s.passport,
			at:         now,
		}
		latchWindow := append(s.raw.Last(s.prof.MLWindow), value)
		job = &reconstruct.Job{
			Window:     latchWindow,
			Mode:       audit.Mode(s.prof.MLMode),
			Techniques: append([]string(nil), s.prof.MLTechniques...),
			Apply: func(res reconstruct.Result) {
				s.applyLatch(in, res)
			},
		}
	}

	s.raw.Push(value)
	s.full = append(s.full, value)
	s.samples++
	if d, err := features.ComputeDiagnostics(s.raw.Snapshot(), s.prof.EntropyScale); err == nil {
		s.diagnostics = d
	}

	sample := Sample{
		Value:       value,
		IsArtifact:  pkt.IsArtifact || value > s.prof.ArtifactThreshold,
		Diagnostics: s.diagnostics,
		Verdict:     s.verdictLocked(),
		Epoch:       now.UnixMilli(),
	}
	queue := s.queue
	s.mu.Unlock()

	s.deps.Publisher.Publish(s.id, EventSample, sample)

	if job != nil {
		if err := queue.Submit(*job); err != nil {
			log.Printf("[WARN] [LATCH] %s: latch skipped: %v", s.id, err)
		}
	}
}

// applyLatch вызывается воркером очереди строго в порядке постановки
func (s *Station) applyLatch(in latchInput, res reconstruct.Result) {
	s.mu.Lock()
	if in.generation != s.generation {
		s.mu.Unlock()
		return
	}

	s.refined.Push(res.Refined)

	mean := features.Mean(in.buffer)
	isArtifact := in.current > s.prof.ArtifactThreshold
	frame := ForensicFrame{
		ID:             frameID(),
		Raw:            in.current,
		Refined:        res.Refined,
		TonicMean:      mean,
		Mean:           mean,
		SignalEntropy:  in.entropy,
		StabilityIndex: res.Metrics.StabilityIndex,
		IsArtifact:     isArtifact,
		Timestamp:      in.at.Format("15:04:05"),
		Epoch:          in.at.UnixMilli(),
		Degraded:       res.Degraded,
	}
	s.matrix = prependBounded(s.matrix, frame, s.prof.MatrixTableLimit)

	report := AuditReport{
		ID:         len(s.reports) + 1,
		Timestamp:  frame.Timestamp,
		Mode:       res.Mode,
		Techniques: append([]string(nil), res.Techniques...),
		Metrics:    res.Metrics,
		Degraded:   res.Degraded,
	}
	s.reports = prependBounded(s.reports, report, s.prof.AuditReportLimit)

	row := features.BuildRow(features.RowInput{
		UserID:            in.passport.Subject,
		Age:               in.passport.Age,
		Gen:               in.passport.Sex,
		Current:           in.current,
		Buffer:            in.buffer,
		Entropy:           in.entropy,
		WindowSeconds:     int(s.prof.MatrixUpdateInterval / time.Second),
		ArtifactThreshold: s.prof.ArtifactThreshold,
		HFEnergyScale:     s.prof.HFEnergyScale,
		At:                in.at,
	})
	matrixLimit := s.prof.MatrixTableLimit
	s.mu.Unlock()

	level := audit.LevelData
	if isArtifact {
		level = audit.LevelWarn
	}
	s.trail.Push(level, fmt.Sprintf("Matrix Latch: %.4fμS [STABILITY: %.1f] // Persistence: SECTOR_CSV",
		in.current, res.Metrics.StabilityIndex))

	s.deps.Publisher.Publish(s.id, EventFrame, frame)
	if res.Trial != nil {
		s.deps.Publisher.Publish(s.id, EventLedger, *res.Trial)
	}

	if s.deps.Cache != nil {
		ctx, cancel := context.WithTimeout(s.ctx, cacheTimeout)
		if err := s.deps.Cache.PushFrame(ctx, s.id, frame, matrixLimit); err != nil {
			log.Printf("[WARN] [LATCH] %s: failed to cache frame: %v", s.id, err)
		}
		cancel()
	}

	if s.deps.Logger != nil {
		go s.logRow(row)
	}
}

// logRow отправляет строку признаков; сбой приемника не влияет на сессию
func (s *Station) logRow(row features.Row) {
	ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
	defer cancel()

	if err := s.deps.Logger.LogTelemetry(ctx, row); err != nil {
		log.Printf("[WARN] [LATCH] %s: log node offline: %v", s.id, err)
	}
}

// Stop завершение сессии оператором
func (s *Station) Stop() error {
	s.mu.RLock()
	stage := s.stage
	s.mu.RUnlock()

	if !canTransition(stage, StageForensic) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, stage, StageForensic)
	}

	s.trail.Push(audit.LevelSys, "Operator Termination. Syncing Dossier...")
	return s.terminate()
}

// terminate переводит станцию в FORENSIC и однократно запускает полный перебор
func (s *Station) terminate() error {
	s.mu.Lock()
	if !canTransition(s.stage, StageForensic) {
		stage := s.stage
		s.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, stage, StageForensic)
	}

	now := s.now()
	s.stage = StageForensic
	s.terminatedAt = &now

	full := append([]float64(nil), s.full...)
	rec := s.rec
	queue := s.queue
	generation := s.generation
	s.mu.Unlock()

	log.Printf("[SESSION] %s terminated, samples=%d", s.id, len(full))
	s.publishStage(StageForensic)
	s.persistSession()

	if len(full) > 0 {
		s.bench.Add(1)
		go s.runBenchmark(rec, queue, generation, full)
	}
	return nil
}

func (s *Station) runBenchmark(rec *reconstruct.Reconstructor, queue *reconstruct.Queue, generation int, full []float64) {
	defer s.bench.Done()

	// защелки, принятые до завершения, пишутся в журнал раньше перебора
	queue.Stop()

	s.trail.Push(audit.LevelSys, fmt.Sprintf("Initializing brute-force ML benchmarking (%d combinations)...",
		reconstruct.MaxBenchmarkResults))

	ctx, cancel := context.WithTimeout(s.ctx, benchmarkTimeout)
	defer cancel()

	trials, err := rec.Benchmark(ctx, full)
	if err != nil {
		log.Printf("[WARN] [LEDGER] %s: %v", s.id, err)
		s.trail.Push(audit.LevelCrit, "Benchmark Protocol Failed: Connection Latency.")
		return
	}

	s.mu.Lock()
	if generation != s.generation {
		s.mu.Unlock()
		return
	}
	s.benchmarked = true
	ledgerVerdict := s.ledger.Verdict()
	s.mu.Unlock()

	s.trail.Push(audit.LevelSys, "Brute-force analysis complete. All combinations ranked.")
	s.deps.Publisher.Publish(s.id, EventVerdict, ledgerVerdict)

	if s.deps.Cache != nil {
		cctx, ccancel := context.WithTimeout(s.ctx, cacheTimeout)
		defer ccancel()
		if err := s.deps.Cache.SetTrials(cctx, s.id, trials); err != nil {
			log.Printf("[WARN] [LEDGER] %s: failed to cache trials: %v", s.id, err)
		}
	}
}

// WaitBenchmark ждет завершения запущенного перебора
func (s *Station) WaitBenchmark() {
	s.bench.Wait()
}

// Reset возвращает станцию из FORENSIC в LOCKED с новым кодом и пустыми буферами
func (s *Station) Reset() error {
	s.mu.Lock()
	if s.stage != StageForensic {
		stage := s.stage
		s.mu.Unlock()
		return fmt.Errorf("%w: reset from %s", ErrInvalidTransition, stage)
	}

	old := s.queue
	if err := s.rearm(); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to reset station: %w", err)
	}
	s.mu.Unlock()

	// принятые старой очередью заявки отбрасываются по generation
	old.Stop()

	s.trail.Reset()
	s.trail.Push(audit.LevelSys, "Session Reset. Awaiting Handshake.")
	s.publishStage(StageLocked)
	s.persistSession()

	log.Printf("[SESSION] %s reset", s.id)
	return nil
}

// Close останавливает очередь и перебор
func (s *Station) Close() {
	s.cancel()
	s.bench.Wait()

	s.mu.RLock()
	queue := s.queue
	s.mu.RUnlock()
	queue.Stop()
}

// MarkSaved отмечает сохранение досье
func (s *Station) MarkSaved(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.savedAt = &at
}

// Session сводка сессии
func (s *Station) Session() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionLocked()
}

func (s *Station) sessionLocked() Session {
	return Session{
		ID:           s.id,
		Stage:        s.stage,
		Code:         s.code,
		Fingerprint:  s.fingerprint,
		Passport:     s.passport,
		StartedAt:    s.startedAt,
		TerminatedAt: s.terminatedAt,
		SavedAt:      s.savedAt,
		TotalSamples: s.samples,
		Notes:        s.notes,
	}
}

func (s *Station) verdictLocked() verdict.Verdict {
	return verdict.Classify(s.statsLocked(), s.prof.VerdictThresholds)
}

func (s *Station) statsLocked() verdict.Stats {
	return verdict.Stats{
		Mean:    s.diagnostics.Mean,
		Peak:    s.diagnostics.Peak,
		Entropy: s.diagnostics.Entropy,
	}
}

// Snapshot живое состояние для API
func (s *Station) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Snapshot{
		Session:     s.sessionLocked(),
		Diagnostics: s.diagnostics,
		Verdict:     s.verdictLocked(),
		Raw:         s.raw.Snapshot(),
		Refined:     s.refined.Snapshot(),
		Matrix:      append([]ForensicFrame(nil), s.matrix...),
		Reports:     append([]AuditReport(nil), s.reports...),
		Benchmarked: s.benchmarked,
	}
}

// Trail журнал станции, новые строки первыми
func (s *Station) Trail() []audit.Entry {
	return s.trail.Entries()
}

// Ledger ранжированный журнал испытаний и вывод аудитора
func (s *Station) Ledger() ([]audit.Trial, audit.LedgerVerdict) {
	s.mu.RLock()
	ledger := s.ledger
	s.mu.RUnlock()
	return ledger.Rank(), ledger.Verdict()
}

// FullSession копия полного буфера сессии
func (s *Station) FullSession() []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]float64(nil), s.full...)
}

// Dossier собирает досье. Доступно на любой стадии, итоговое после FORENSIC.
func (s *Station) Dossier() *Dossier {
	s.mu.RLock()
	sess := s.sessionLocked()
	stats := s.statsLocked()
	v := s.verdictLocked()
	diagnostics := s.diagnostics
	matrix := append([]ForensicFrame(nil), s.matrix...)
	reports := append([]AuditReport(nil), s.reports...)
	ledger := s.ledger
	s.mu.RUnlock()

	return &Dossier{
		Session:       sess,
		Verdict:       v,
		Diagnostics:   diagnostics,
		Findings:      verdict.Findings(stats),
		Summary:       verdict.Summary(v),
		Matrix:        matrix,
		Reports:       reports,
		Ranking:       ledger.Rank(),
		LedgerVerdict: ledger.Verdict(),
		Trail:         s.trail.Entries(),
		GeneratedAt:   s.now(),
	}
}

func (s *Station) publishStage(stage Stage) {
	s.deps.Publisher.Publish(s.id, EventStage, s.Session())
	log.Printf("[SESSION] %s stage=%s", s.id, stage)
}

func (s *Station) persistSession() {
	if s.deps.Cache == nil {
		return
	}

	ctx, cancel := context.WithTimeout(s.ctx, cacheTimeout)
	defer cancel()

	sess := s.Session()
	if err := s.deps.Cache.SetSession(ctx, &sess); err != nil {
		log.Printf("[WARN] [SESSION] %s: failed to cache session: %v", s.id, err)
	}
}

func frameID() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
}

func prependBounded[T any](items []T, item T, limit int) []T {
	out := make([]T, 0, len(items)+1)
	out = append(out, item)
	out = append(out, items...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
