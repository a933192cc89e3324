package features

import (
	"math"
	"time"
)

// ValidSampleFloor отсчеты не выше этого значения считаются обрывом контакта
const ValidSampleFloor = 0.1

// Diagnostics живая сводка по окну сырых отсчетов
type Diagnostics struct {
	Peak    float64 `json:"peak" yaml:"peak"`
	Floor   float64 `json:"floor" yaml:"floor"`
	Mean    float64 `json:"mean" yaml:"mean"`
	Entropy float64 `json:"entropy" yaml:"entropy"`
	Samples int     `json:"samples" yaml:"samples"`
}

// ComputeDiagnostics считает пик, минимум и среднее по отсчетам > 0.1.
// Энтропия берется по всему окну. Если валидных отсчетов нет, возвращает ErrEmptyWindow
// и предыдущее значение следует оставить без изменений.
func ComputeDiagnostics(raw []float64, entropyScale float64) (Diagnostics, error) {
	valid := make([]float64, 0, len(raw))
	for _, v := range raw {
		if v > ValidSampleFloor {
			valid = append(valid, v)
		}
	}

	if len(valid) == 0 {
		return Diagnostics{}, ErrEmptyWindow
	}

	d := Diagnostics{
		Peak:    valid[0],
		Floor:   valid[0],
		Mean:    Mean(valid),
		Entropy: EntropyIndex(raw, entropyScale),
		Samples: len(valid),
	}
	for _, v := range valid[1:] {
		d.Peak = math.Max(d.Peak, v)
		d.Floor = math.Min(d.Floor, v)
	}

	return d, nil
}

// Row строка признаков, отправляемая в /log_telemetry на каждом защелкивании матрицы
type Row struct {
	UserID    string  `json:"User_ID"`
	Age       string  `json:"Age"`
	Gen       string  `json:"Gen"`
	BSR       float64 `json:"BSR"`
	Win       int     `json:"Win"`
	EDAMean   float64 `json:"EDA_Mean"`
	EDAStd    float64 `json:"EDA_Std"`
	SCLTonic  float64 `json:"SCL_Tonic"`
	SCRPeaks  int     `json:"SCR_Peaks"`
	SCRAmp    float64 `json:"SCR_Amp"`
	SlopeMax  float64 `json:"Slope_Max"`
	HFEnergy  float64 `json:"HF_Energy"`
	Entropy   float64 `json:"Entropy"`
	Motion    float64 `json:"Motion"`
	Timestamp string  `json:"Timestamp"`
}

// RowInput входные данные для построения строки признаков
type RowInput struct {
	UserID string
	Age    string
	Gen    string

	// Current текущий отсчет, Buffer окно сырых отсчетов до его добавления
	Current float64
	Buffer  []float64

	Entropy           float64
	WindowSeconds     int
	ArtifactThreshold float64
	HFEnergyScale     float64
	At                time.Time
}

// BuildRow собирает строку признаков. Среднее и СКО считаются по всему буферу,
// пики, амплитуда и крутизна по последним 30 отсчетам.
func BuildRow(in RowInput) Row {
	recent := tail(in.Buffer, EntropyWindow)

	bsrBase := in.Current
	if bsrBase == 0 {
		bsrBase = 0.1
	}

	motion := 0.0
	if in.Current > in.ArtifactThreshold {
		motion = 1.0
	}

	mean := Mean(in.Buffer)

	return Row{
		UserID:    in.UserID,
		Age:       in.Age,
		Gen:       in.Gen,
		BSR:       1.0 / bsrBase,
		Win:       in.WindowSeconds,
		EDAMean:   mean,
		EDAStd:    StdDev(in.Buffer),
		SCLTonic:  mean,
		SCRPeaks:  ArtifactCount(recent, in.ArtifactThreshold),
		SCRAmp:    PeakToPeak(recent),
		SlopeMax:  SlopeMax(recent),
		HFEnergy:  in.Entropy * in.HFEnergyScale,
		Entropy:   in.Entropy,
		Motion:    motion,
		Timestamp: in.At.Format("02/01/2006, 15:04:05"),
	}
}
