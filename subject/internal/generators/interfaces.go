package generators

import (
	"errors"

	"github.com/Krimson/eda-forensics/subject/internal/models"
)

var (
	ErrInvalidConfig  = errors.New("invalid generator configuration")
	ErrReplayFinished = errors.New("replay finished")
)

// EDAGenerator источник выборок проводимости кожи
type EDAGenerator interface {
	// Next продвигает модель сигнала на одну выборку акселерометра
	Next(motion models.Motion) (models.Reading, error)

	// Reset возвращает модель к тоническому уровню
	Reset()

	// GetStats возвращает статистику работы генератора
	GetStats() GeneratorStats
}

// MotionSource источник выборок акселерометра
type MotionSource interface {
	NextMotion() models.Motion
}

// GeneratorStats содержит статистику генератора
type GeneratorStats struct {
	TotalValuesGenerated int
	ArtifactCount        int
	ShakeCount           int
	MinValueGenerated    float64
	MaxValueGenerated    float64
	AverageValue         float64
	LastValue            float64
}

func (s *GeneratorStats) update(r models.Reading) {
	s.TotalValuesGenerated++
	s.LastValue = r.EDA
	if r.IsArtifact {
		s.ArtifactCount++
	}
	if r.Shake {
		s.ShakeCount++
	}

	if s.TotalValuesGenerated == 1 || r.EDA < s.MinValueGenerated {
		s.MinValueGenerated = r.EDA
	}
	if r.EDA > s.MaxValueGenerated {
		s.MaxValueGenerated = r.EDA
	}

	totalSum := s.AverageValue * float64(s.TotalValuesGenerated-1)
	s.AverageValue = (totalSum + r.EDA) / float64(s.TotalValuesGenerated)
}
