package emulator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Krimson/eda-forensics/internal/audit"
	"github.com/Krimson/eda-forensics/internal/features"
	"github.com/Krimson/eda-forensics/internal/uplink"
	"github.com/Krimson/eda-forensics/internal/window"
	"github.com/Krimson/eda-forensics/subject/internal/config"
	"github.com/Krimson/eda-forensics/subject/internal/generators"
	"github.com/Krimson/eda-forensics/subject/internal/models"
	"github.com/Krimson/eda-forensics/subject/internal/senders"
)

// waveformLimit выборок на графике лаборатории
const waveformLimit = 300

// Stats счетчики узла
type Stats struct {
	Packets    int64 `json:"packets"`
	SendErrors int64 `json:"send_errors"`
	Artifacts  int64 `json:"artifacts"`
	Alarms     int64 `json:"alarms"`
	Stamps     int   `json:"stamps"`
}

// Laboratory локальный аудит записи после остановки
type Laboratory struct {
	Stamps    []models.WindowStamp `json:"stamps"`
	Mean      float64              `json:"mean"`
	PeakSpan  float64              `json:"peak_span"`
	Artifacts int                  `json:"artifacts"`
	Samples   int                  `json:"samples"`
}

type Emulator struct {
	gen     generators.EDAGenerator
	motion  generators.MotionSource
	sender  senders.DataSender
	machine *Machine
	trail   *audit.Trail
	config  config.EmulatorConfig
	kernel  config.KernelConfig

	alarm *rate.Limiter

	mu             sync.Mutex
	last           models.Reading
	artifact       bool
	waveform       *window.SlidingWindow[float64]
	stamps         []models.WindowStamp
	lastStamp      time.Time
	telemetryStart time.Time
	stats          Stats
}

func NewEmulator(
	gen generators.EDAGenerator,
	motion generators.MotionSource,
	sender senders.DataSender,
	machine *Machine,
	trail *audit.Trail,
	cfg config.EmulatorConfig,
	kernel config.KernelConfig,
) *Emulator {
	return &Emulator{
		gen:      gen,
		motion:   motion,
		sender:   sender,
		machine:  machine,
		trail:    trail,
		config:   cfg,
		kernel:   kernel,
		alarm:    rate.NewLimiter(rate.Every(kernel.AlarmInterval), 1),
		waveform: window.New[float64](waveformLimit),
	}
}

// Run проводит узел через все этапы: идентификация, загрузка, паспорт,
// рукопожатие и телеметрия до истечения Duration или отмены ctx
func (e *Emulator) Run(ctx context.Context, sessionID string, passport models.Passport) error {
	if err := e.machine.Identify(sessionID, passport.Handshake, time.Now()); err != nil {
		return err
	}

	log.Printf("[SUBJECT] Node %s booting, session %s", passport.Node, sessionID)

	tickCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	clock := NewSampleClock(e.config.SampleRate, e.config.Jitter, e.config.Seed)
	ticks := clock.Start(tickCtx)
	defer func() {
		if n := clock.Dropped(); n > 0 {
			log.Printf("[WARN] %d sample ticks dropped, uplink slower than %v", n, e.config.SampleRate)
		}
	}()

	for now := range ticks {
		switch e.machine.Advance(now) {
		case PhaseProfile:
			if err := e.machine.Register(passport); err != nil {
				return err
			}
			// без сенсорного экрана оба электрода замкнуты сразу
			e.machine.SetLeads(true, true, now)

		case PhaseTelemetry:
			if e.telemetryElapsed(now) {
				return e.Terminate(context.Background())
			}
			if err := e.Step(ctx, now); err != nil {
				if errors.Is(err, generators.ErrReplayFinished) {
					log.Printf("[SUBJECT] Replay finished")
					return e.Terminate(context.Background())
				}
				return err
			}
		}
	}

	return e.Terminate(context.Background())
}

func (e *Emulator) telemetryElapsed(now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.telemetryStart.IsZero() {
		e.telemetryStart = now
		e.lastStamp = now
		e.trail.Push(audit.LevelData, "UPLINK ESTABLISHED: "+e.machine.Passport().Node)
		log.Printf("[SUBJECT] Telemetry started at %v", e.config.SampleRate)
		return false
	}
	return e.config.Duration > 0 && now.Sub(e.telemetryStart) >= e.config.Duration
}

// Step одна выборка телеметрии: модель сигнала, трансляция, отметки окна и тревоги
func (e *Emulator) Step(ctx context.Context, now time.Time) error {
	if e.machine.Phase() != PhaseTelemetry {
		return fmt.Errorf("%w: step in %s", ErrWrongPhase, e.machine.Phase())
	}

	reading, err := e.gen.Next(e.motion.NextMotion())
	if err != nil {
		return err
	}
	reading.Timestamp = now

	contact := e.machine.Contact()
	passport := e.machine.Passport()

	e.mu.Lock()
	if reading.IsArtifact && !e.artifact {
		e.trail.Push(audit.LevelWarn, "KINETIC ARTIFACT RECORDED")
	}
	e.artifact = reading.IsArtifact
	if reading.IsArtifact {
		e.stats.Artifacts++
	}
	e.last = reading
	e.waveform.Push(reading.EDA)
	e.stats.Packets++

	switch {
	case e.lastStamp.IsZero():
		e.lastStamp = now
	case contact && now.Sub(e.lastStamp) >= e.kernel.WindowSize:
		e.stampLocked(now)
	}
	e.mu.Unlock()

	if !contact && e.alarm.AllowN(now, 1) {
		e.mu.Lock()
		e.stats.Alarms++
		e.mu.Unlock()
		e.trail.Push(audit.LevelCrit, "ALARM: CONTACT LOST")
	}

	if err := e.sender.Send(ctx, reading.Packet(passport)); err != nil {
		e.mu.Lock()
		e.stats.SendErrors++
		failures := e.stats.SendErrors
		e.mu.Unlock()
		// канал может быть недоступен, запись продолжается
		if failures == 1 || failures%100 == 0 {
			log.Printf("[WARN] Uplink send failed (%d total): %v", failures, err)
		}
	}
	return nil
}

func (e *Emulator) stampLocked(now time.Time) {
	e.lastStamp = now
	stability := models.StabilityStable
	if e.artifact {
		stability = models.StabilityArtifact
	}
	e.stamps = append([]models.WindowStamp{{Time: now, EDA: e.last.EDA, Stability: stability}}, e.stamps...)
	e.stats.Stamps = len(e.stamps)
	e.trail.Push(audit.LevelStamp, fmt.Sprintf("WINDOW STAMP: %.4fμS", e.last.EDA))
}

// SetLeads имитирует касание электродов
func (e *Emulator) SetLeads(lead1, lead2 bool, now time.Time) {
	e.machine.SetLeads(lead1, lead2, now)
}

// Terminate останавливает узел и отправляет пакет ENDED
func (e *Emulator) Terminate(ctx context.Context) error {
	if e.machine.Phase() == PhaseLaboratory {
		return nil
	}
	e.machine.Terminate()

	handshake := e.machine.Passport().Handshake
	if handshake == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := e.sender.Send(ctx, uplink.NewEnded(handshake, time.Now().UnixMilli())); err != nil {
		log.Printf("[WARN] Failed to broadcast session end: %v", err)
		return fmt.Errorf("failed to broadcast session end: %w", err)
	}
	log.Printf("[SUBJECT] Session %s ended, %d packets sent", handshake, e.Stats().Packets)
	return nil
}

// Laboratory сводка записи для локального аудита
func (e *Emulator) Laboratory() Laboratory {
	e.mu.Lock()
	defer e.mu.Unlock()

	samples := e.waveform.Snapshot()
	return Laboratory{
		Stamps:    append([]models.WindowStamp(nil), e.stamps...),
		Mean:      features.Mean(samples),
		PeakSpan:  features.PeakToPeak(samples),
		Artifacts: features.ArtifactCount(samples, e.kernel.ArtifactLevel),
		Samples:   len(samples),
	}
}

func (e *Emulator) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

func (e *Emulator) Trail() []audit.Entry {
	return e.trail.Entries()
}
