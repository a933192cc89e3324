package features

import (
	"errors"
	"math"
)

// EntropyWindow количество последних отсчетов, по которым считается индекс энтропии
const EntropyWindow = 30

// ErrEmptyWindow возвращается, когда агрегат не определен на пустом окне
var ErrEmptyWindow = errors.New("empty window")

// Mean среднее арифметическое; для пустого среза 0
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Variance популяционная дисперсия
func Variance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	m := Mean(values)
	acc := 0.0
	for _, v := range values {
		d := v - m
		acc += d * d
	}
	return acc / float64(len(values))
}

func StdDev(values []float64) float64 {
	return math.Sqrt(Variance(values))
}

// EntropyIndex прокси энтропии: sqrt(дисперсии последних 30 отсчетов) * scale
func EntropyIndex(values []float64, scale float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return StdDev(tail(values, EntropyWindow)) * scale
}

// PeakToPeak размах max - min
func PeakToPeak(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return hi - lo
}

// ArtifactCount количество отсчетов строго выше порога
func ArtifactCount(values []float64, threshold float64) int {
	n := 0
	for _, v := range values {
		if v > threshold {
			n++
		}
	}
	return n
}

// SlopeMax максимальный модуль разности соседних отсчетов, не меньше 0
func SlopeMax(values []float64) float64 {
	maxSlope := 0.0
	for i := 1; i < len(values); i++ {
		maxSlope = math.Max(maxSlope, math.Abs(values[i]-values[i-1]))
	}
	return maxSlope
}

func tail(values []float64, n int) []float64 {
	if len(values) <= n {
		return values
	}
	return values[len(values)-n:]
}
