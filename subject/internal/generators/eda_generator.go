package generators

import (
	"math/rand"
	"sync"
	"time"

	"github.com/Krimson/eda-forensics/subject/internal/config"
	"github.com/Krimson/eda-forensics/subject/internal/models"
)

type edaGenerator struct {
	rand   *rand.Rand
	kernel config.KernelConfig
	state  float64
	seq    int64
	stats  GeneratorStats
	now    func() time.Time
	mu     sync.Mutex
}

// NewEDAGenerator модель проводимости с удержанием артефактов:
// встряска добавляет скачок, затем сигнал релаксирует к тоническому уровню
func NewEDAGenerator(kernel config.KernelConfig, seed int64) (EDAGenerator, error) {
	if kernel.RecoveryAlpha <= 0 || kernel.RecoveryAlpha > 1 || kernel.HardCeiling <= 0 {
		return nil, ErrInvalidConfig
	}
	return &edaGenerator{
		rand:   rand.New(rand.NewSource(seed)),
		kernel: kernel,
		state:  kernel.TonicTarget,
		now:    time.Now,
	}, nil
}

func (g *edaGenerator) Next(motion models.Motion) (models.Reading, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	k := g.kernel
	force := motion.Force()
	shake := force > k.KineticLimit

	amplitude := k.NoiseCalm
	if shake {
		amplitude = k.NoiseShake
	}
	raw := g.state + (g.rand.Float64()-0.5)*amplitude
	if shake {
		raw += k.SpikeDelta
	}

	// потолок: скачки не накапливаются выше 10 мкСм
	if raw > k.HardCeiling {
		raw = 9.4 + g.rand.Float64()*0.4
	}

	recovered := k.TonicTarget + (raw-k.TonicTarget)*k.RecoveryAlpha

	value := recovered
	if value > k.BroadcastClamp {
		value = k.BroadcastClamp
	}

	g.seq++
	reading := models.Reading{
		Timestamp:  g.now(),
		Seq:        g.seq,
		Raw:        raw,
		EDA:        value,
		Force:      force,
		Shake:      shake,
		IsArtifact: recovered > k.ArtifactLevel || shake,
	}

	g.state = value
	if g.state < k.Floor {
		g.state = k.FloorValue
	}

	g.stats.update(reading)
	return reading, nil
}

func (g *edaGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.state = g.kernel.TonicTarget
	g.seq = 0
	g.stats = GeneratorStats{}
}

func (g *edaGenerator) GetStats() GeneratorStats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stats
}

// SimulatedMotion акселерометр телефона в покое с периодическими встрясками
type SimulatedMotion struct {
	rand       *rand.Rand
	shakeEvery int
	count      int
	mu         sync.Mutex
}

func NewSimulatedMotion(seed int64, shakeEvery int) *SimulatedMotion {
	return &SimulatedMotion{
		rand:       rand.New(rand.NewSource(seed)),
		shakeEvery: shakeEvery,
	}
}

func (m *SimulatedMotion) NextMotion() models.Motion {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.count++
	jitter := func(scale float64) float64 { return (m.rand.Float64() - 0.5) * scale }

	if m.shakeEvery > 0 && m.count%m.shakeEvery == 0 {
		return models.Motion{X: 1.2 + jitter(0.4), Y: -1.1 + jitter(0.4), Z: 1.4 + jitter(0.4)}
	}
	// гравитация по оси Z и дрожание руки
	return models.Motion{X: jitter(0.1), Y: jitter(0.1), Z: 1.0 + jitter(0.1)}
}
