package generators

import (
	"sync"
	"time"

	"github.com/Krimson/eda-forensics/subject/internal/config"
	"github.com/Krimson/eda-forensics/subject/internal/csvreader"
	"github.com/Krimson/eda-forensics/subject/internal/models"
)

type replayGenerator struct {
	points []csvreader.DataPoint
	kernel config.KernelConfig
	pos    int
	stats  GeneratorStats
	now    func() time.Time
	mu     sync.Mutex
}

// NewReplayGenerator воспроизводит записанный сигнал; акселерометр игнорируется
func NewReplayGenerator(points []csvreader.DataPoint, kernel config.KernelConfig) EDAGenerator {
	return &replayGenerator{points: points, kernel: kernel, now: time.Now}
}

func (g *replayGenerator) Next(_ models.Motion) (models.Reading, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.pos >= len(g.points) {
		return models.Reading{}, ErrReplayFinished
	}
	p := g.points[g.pos]
	g.pos++

	value := p.Value
	if value > g.kernel.BroadcastClamp {
		value = g.kernel.BroadcastClamp
	}
	if value < 0 {
		value = 0
	}

	reading := models.Reading{
		Timestamp:  g.now(),
		Seq:        int64(g.pos),
		Raw:        p.Value,
		EDA:        value,
		IsArtifact: value > g.kernel.ArtifactLevel,
	}
	g.stats.update(reading)
	return reading, nil
}

func (g *replayGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pos = 0
	g.stats = GeneratorStats{}
}

func (g *replayGenerator) GetStats() GeneratorStats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stats
}
