package stubs

import (
	"math"
	"sort"
	"sync"
)

// labTechniques порядок перебора комбинаций
var labTechniques = []string{"cul", "gmm", "kmeans", "dbscan", "iso_forest", "lof", "pca"}

type labMetrics struct {
	SmoothnessScore  float64 `json:"smoothness_score"`
	NoiseSuppression float64 `json:"noise_suppression"`
	StabilityIndex   float64 `json:"stability_index"`
}

type benchmarkResult struct {
	Mode       string     `json:"mode"`
	Techs      []string   `json:"techs"`
	Metrics    labMetrics `json:"metrics"`
	TotalScore float64    `json:"total_score"`
}

// labEngine детерминированная замена ML движка лаборатории.
// Кластеризация сведена к одномерным эвристикам, метрики совпадают с оригинальными формулами.
type labEngine struct {
	mu     sync.Mutex
	anchor *float64
}

func (e *labEngine) resetAnchor() {
	e.mu.Lock()
	e.anchor = nil
	e.mu.Unlock()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func scrub(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// calculateMetrics: гладкость по рывку, подавление шума, стабильность по энтропии гистограммы
func calculateMetrics(raw, refined []float64) labMetrics {
	if len(refined) < 3 {
		return labMetrics{}
	}

	jerk := 0.0
	for i := 2; i < len(refined); i++ {
		d2 := (refined[i] - refined[i-1]) - (refined[i-1] - refined[i-2])
		jerk += math.Abs(d2)
	}
	jerk /= float64(len(refined) - 2)

	reduction := 0.0
	for i := range refined {
		if i < len(raw) {
			reduction += math.Abs(raw[i] - refined[i])
		}
	}

	entropy := histogramEntropy(refined, 10)

	return labMetrics{
		SmoothnessScore:  scrub(round2(math.Max(0, 100-jerk*1000))),
		NoiseSuppression: scrub(round2(reduction)),
		StabilityIndex:   scrub(round2(10 / (1 + entropy))),
	}
}

// histogramEntropy энтропия Шеннона (log2) равномерной гистограммы
func histogramEntropy(values []float64, bins int) float64 {
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo == hi {
		lo -= 0.5
		hi += 0.5
	}

	counts := make([]int, bins)
	width := (hi - lo) / float64(bins)
	for _, v := range values {
		idx := int((v - lo) / width)
		if idx >= bins {
			idx = bins - 1
		}
		if idx < 0 {
			idx = 0
		}
		counts[idx]++
	}

	entropy := 0.0
	total := float64(len(values))
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / total
		entropy -= p * math.Log2(p)
	}
	return entropy
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func std(values []float64) float64 {
	m := mean(values)
	acc := 0.0
	for _, v := range values {
		acc += (v - m) * (v - m)
	}
	return math.Sqrt(acc / float64(len(values)))
}

// cul контрастное сравнение окна с глобальным якорем, якорь медленно дрейфует
func (e *labEngine) cul(data []float64) []float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := append([]float64(nil), data...)
	if e.anchor == nil {
		a := mean(data)
		e.anchor = &a
		return out
	}

	anchor := *e.anchor
	threshold := std(data)*2 + 0.1
	for i, v := range data {
		if math.Abs(v-anchor) > threshold {
			out[i] = anchor
		}
	}

	next := 0.95*anchor + 0.05*mean(out)
	e.anchor = &next
	return out
}

// twoCentroids одномерный k-means на два кластера; точки вне нижнего кластера
// заменяются его центром
func twoCentroids(data []float64) []float64 {
	out := append([]float64(nil), data...)
	if len(data) < 2 {
		return out
	}

	lo, hi := data[0], data[0]
	for _, v := range data {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo == hi {
		return out
	}

	c0, c1 := lo, hi
	labels := make([]int, len(data))
	for iter := 0; iter < 50; iter++ {
		var s0, s1 float64
		var n0, n1 int
		for i, v := range data {
			if math.Abs(v-c0) <= math.Abs(v-c1) {
				labels[i] = 0
				s0 += v
				n0++
			} else {
				labels[i] = 1
				s1 += v
				n1++
			}
		}
		if n0 == 0 || n1 == 0 {
			break
		}
		nc0, nc1 := s0/float64(n0), s1/float64(n1)
		if nc0 == c0 && nc1 == c1 {
			break
		}
		c0, c1 = nc0, nc1
	}

	for i := range data {
		if labels[i] != 0 {
			out[i] = c0
		}
	}
	return out
}

// dbscan шум (eps=0.3, min_samples=2) заменяется медианой
func dbscan(data []float64) []float64 {
	const eps = 0.3

	core := make([]bool, len(data))
	for i, v := range data {
		n := 0
		for _, w := range data {
			if math.Abs(v-w) <= eps {
				n++
			}
		}
		core[i] = n >= 2
	}

	med := median(data)
	out := append([]float64(nil), data...)
	for i, v := range data {
		if core[i] {
			continue
		}
		reachable := false
		for j, w := range data {
			if core[j] && math.Abs(v-w) <= eps {
				reachable = true
				break
			}
		}
		if !reachable {
			out[i] = med
		}
	}
	return out
}

// replaceTopScores заменяет медианой долю contamination точек с наибольшей оценкой аномальности
func replaceTopScores(data []float64, scores []float64, contamination float64) []float64 {
	out := append([]float64(nil), data...)
	k := int(contamination * float64(len(data)))
	if k == 0 {
		return out
	}

	idx := make([]int, len(data))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] > scores[idx[b]] })

	med := median(data)
	for _, i := range idx[:k] {
		out[i] = med
	}
	return out
}

// isoForest аномальность по удаленности от медианы, contamination 0.1
func isoForest(data []float64) []float64 {
	med := median(data)
	scores := make([]float64, len(data))
	for i, v := range data {
		scores[i] = math.Abs(v - med)
	}
	return replaceTopScores(data, scores, 0.1)
}

// lof аномальность по среднему расстоянию до 5 ближайших соседей, contamination 0.1
func lof(data []float64) []float64 {
	const neighbours = 5

	scores := make([]float64, len(data))
	for i, v := range data {
		dists := make([]float64, 0, len(data)-1)
		for j, w := range data {
			if i != j {
				dists = append(dists, math.Abs(v-w))
			}
		}
		sort.Float64s(dists)
		k := neighbours
		if k > len(dists) {
			k = len(dists)
		}
		scores[i] = mean(dists[:k])
	}
	return replaceTopScores(data, scores, 0.1)
}

func (e *labEngine) runSolo(technique string, data []float64) []float64 {
	switch technique {
	case "cul":
		return e.cul(data)
	case "gmm", "kmeans":
		return twoCentroids(data)
	case "dbscan":
		return dbscan(data)
	case "iso_forest":
		return isoForest(data)
	case "lof":
		return lof(data)
	default:
		// pca с одной компонентой над одномерным сигналом восстанавливает его без потерь
		return append([]float64(nil), data...)
	}
}

// runHybrid голосование большинством: точка, измененная более чем половиной моделей
// (отклонение > 0.1), заменяется медианой моделей
func (e *labEngine) runHybrid(techniques []string, data []float64) []float64 {
	if len(techniques) == 0 {
		return append([]float64(nil), data...)
	}

	results := make([][]float64, len(techniques))
	for i, t := range techniques {
		results[i] = e.runSolo(t, data)
	}

	out := append([]float64(nil), data...)
	consensus := float64(len(techniques)) / 2
	column := make([]float64, len(techniques))
	for i, v := range data {
		votes := 0
		for m := range results {
			column[m] = results[m][i]
			if math.Abs(results[m][i]-v) > 0.1 {
				votes++
			}
		}
		if float64(votes) > consensus {
			out[i] = median(column)
		}
	}
	return out
}

// combinations все непустые подмножества в порядке itertools.combinations по размеру
func combinations(items []string) [][]string {
	var out [][]string
	var build func(start, size int, current []string)
	build = func(start, size int, current []string) {
		if len(current) == size {
			out = append(out, append([]string(nil), current...))
			return
		}
		for i := start; i < len(items); i++ {
			build(i+1, size, append(current, items[i]))
		}
	}
	for size := 1; size <= len(items); size++ {
		build(0, size, nil)
	}
	return out
}

func (e *labEngine) benchmark(data []float64) []benchmarkResult {
	combos := combinations(labTechniques)
	results := make([]benchmarkResult, 0, len(combos))

	for _, combo := range combos {
		var refined []float64
		mode := "solo"
		if len(combo) == 1 {
			refined = e.runSolo(combo[0], data)
		} else {
			refined = e.runHybrid(combo, data)
			mode = "hybrid"
		}

		m := calculateMetrics(data, refined)
		results = append(results, benchmarkResult{
			Mode:       mode,
			Techs:      combo,
			Metrics:    m,
			TotalScore: m.StabilityIndex*10 + m.SmoothnessScore,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].TotalScore > results[j].TotalScore
	})
	return results
}
