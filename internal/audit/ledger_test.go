package audit

import (
	"strconv"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var at = time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)

func ids(trials []Trial) []string {
	out := make([]string, len(trials))
	for i, t := range trials {
		out[i] = t.ID
	}
	return out
}

func TestLedger_BenchmarkRanking(t *testing.T) {
	l := NewLedger(50)
	l.ReplaceAll([]Trial{
		{ID: "B-1", Mode: ModeSolo, TotalScore: 12.5, Timestamp: BenchmarkTimestamp},
		{ID: "B-2", Mode: ModeHybrid, TotalScore: 40.0, Timestamp: BenchmarkTimestamp},
		{ID: "B-3", Mode: ModeSolo, TotalScore: 8.0, Timestamp: BenchmarkTimestamp},
	})

	ranked := l.Rank()
	scores := make([]float64, len(ranked))
	for i, tr := range ranked {
		scores[i] = tr.Score()
	}
	assert.Equal(t, []float64{40.0, 12.5, 8.0}, scores)

	best, ok := l.BestTrial()
	require.True(t, ok)
	assert.Equal(t, "B-2", best.ID)
}

func TestLedger_StableTieBreak(t *testing.T) {
	l := NewLedger(50)
	m := Metrics{SmoothnessScore: 50, StabilityIndex: 2}

	first := l.Record(NewTrial(ModeSolo, []string{"cul"}, m, at))
	second := l.Record(NewTrial(ModeSolo, []string{"pca"}, m, at))
	top := l.Record(NewTrial(ModeHybrid, []string{"cul", "lof"}, Metrics{SmoothnessScore: 90, StabilityIndex: 3}, at))

	if diff := cmp.Diff([]string{top.ID, first.ID, second.ID}, ids(l.Rank())); diff != "" {
		t.Errorf("ranking mismatch (-want +got):\n%s", diff)
	}
}

func TestLedger_ComputedScoreWhenBackendOmitsIt(t *testing.T) {
	tr := NewTrial(ModeSolo, nil, Metrics{SmoothnessScore: 80, StabilityIndex: 2.5}, at)
	assert.InDelta(t, 105.0, tr.Score(), 1e-12)

	tr.TotalScore = 12
	tr.Scored = true
	assert.Equal(t, 12.0, tr.Score())
}

func TestLedger_BestTrialSkipsFailed(t *testing.T) {
	l := NewLedger(50)
	l.Record(FailedTrial(ModeSolo, []string{"cul"}, at))
	ok := l.Record(NewTrial(ModeSolo, []string{"pca"}, Metrics{SmoothnessScore: 1}, at))
	l.Record(FailedTrial(ModeHybrid, []string{"cul", "gmm"}, at))

	best, found := l.BestTrial()
	require.True(t, found)
	assert.Equal(t, ok.ID, best.ID)

	v := l.Verdict()
	assert.Equal(t, VerdictVerified, v.Status)
	require.NotNil(t, v.Best)
	assert.Contains(t, v.Message, "SOLO champion")
}

func TestLedger_AllFailedIsSyncError(t *testing.T) {
	l := NewLedger(50)
	l.Record(FailedTrial(ModeSolo, []string{"cul"}, at))
	l.Record(FailedTrial(ModeSolo, []string{"lof"}, at))

	_, found := l.BestTrial()
	assert.False(t, found)

	v := l.Verdict()
	assert.Equal(t, VerdictSyncError, v.Status)
	assert.Nil(t, v.Best)
}

func TestLedger_EmptyAwaits(t *testing.T) {
	l := NewLedger(50)

	_, found := l.BestTrial()
	assert.False(t, found)
	assert.Equal(t, VerdictAwaiting, l.Verdict().Status)
}

func TestLedger_BoundedAndSequentialIDs(t *testing.T) {
	l := NewLedger(3)
	for i := 0; i < 5; i++ {
		l.Record(NewTrial(ModeSolo, []string{"cul"}, Metrics{SmoothnessScore: float64(i)}, at))
	}

	assert.Equal(t, 3, l.Len())
	assert.Equal(t, []string{"3", "4", "5"}, ids(l.Trials()))
	assert.Equal(t, []string{"5", "4"}, ids(l.Recent(2)))

	l.Reset()
	assert.Equal(t, "1", l.Record(NewTrial(ModeSolo, nil, Metrics{}, at)).ID)
}

func TestLedger_ReplaceAllKeepsFullBenchmark(t *testing.T) {
	l := NewLedger(50)
	trials := make([]Trial, 130)
	for i := range trials {
		trials[i] = Trial{ID: "B-" + strconv.Itoa(i+1), TotalScore: float64(200 - i), Scored: true}
	}

	l.ReplaceAll(trials)
	assert.Equal(t, MaxBenchmarkTrials, l.Len())
	assert.Equal(t, "B-1", l.Rank()[0].ID)

	// новые записи дописываются к перебору, чемпион остается
	l.Record(NewTrial(ModeSolo, nil, Metrics{}, at))
	assert.Equal(t, MaxBenchmarkTrials+1, l.Len())

	best, ok := l.BestTrial()
	require.True(t, ok)
	assert.Equal(t, "B-1", best.ID)
}

func TestLedger_LimitAppliesToIncrementalOnly(t *testing.T) {
	l := NewLedger(3)
	l.ReplaceAll([]Trial{
		{ID: "B-1", TotalScore: 90, Scored: true},
		{ID: "B-2", TotalScore: 80, Scored: true},
	})
	for i := 0; i < 5; i++ {
		l.Record(NewTrial(ModeSolo, []string{"cul"}, Metrics{SmoothnessScore: float64(i)}, at))
	}

	assert.Equal(t, []string{"B-1", "B-2", "5", "6", "7"}, ids(l.Trials()))

	restored := RestoreLedger(3, append(l.Trials(), NewTrial(ModeSolo, nil, Metrics{}, at)), l.Counter())
	assert.Equal(t, []string{"B-1", "B-2", "6", "7", ""}, ids(restored.Trials()))
}

func TestTrial_ZeroBackendScoreIsKept(t *testing.T) {
	tr := NewTrial(ModeSolo, nil, Metrics{SmoothnessScore: 80, StabilityIndex: 2}, at)
	tr.Scored = true
	assert.Equal(t, 0.0, tr.Score())

	bench := Trial{ID: "B-1", Metrics: Metrics{SmoothnessScore: 50}, Timestamp: BenchmarkTimestamp}
	assert.Equal(t, 0.0, bench.Score())
	assert.True(t, bench.Benchmark())
}

func TestRestoreLedger_ContinuesNumbering(t *testing.T) {
	saved := []Trial{
		NewTrial(ModeSolo, []string{"cul"}, Metrics{StabilityIndex: 1}, at),
		NewTrial(ModeHybrid, []string{"cul", "gmm"}, Metrics{StabilityIndex: 2}, at),
	}
	saved[0].ID, saved[1].ID = "1", "2"

	l := RestoreLedger(50, saved, 2)
	assert.Equal(t, 2, l.Counter())
	assert.Equal(t, "3", l.Record(NewTrial(ModeSolo, nil, Metrics{}, at)).ID)
	assert.Equal(t, []string{"1", "2", "3"}, ids(l.Trials()))

	// счетчик не может отставать от числа записей
	assert.Equal(t, 2, RestoreLedger(50, saved, 0).Counter())
}

func TestTrail_BoundedNewestFirst(t *testing.T) {
	tr := NewTrail(2)

	var observed []Entry
	tr.OnPush(func(e Entry) { observed = append(observed, e) })

	tr.Push(LevelSys, "one")
	tr.Push(LevelWarn, "two")
	tr.Push(LevelCrit, "three")

	entries := tr.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "three", entries[0].Message)
	assert.Equal(t, LevelCrit, entries[0].Level)
	assert.Equal(t, "two", entries[1].Message)
	assert.Len(t, observed, 3)
}
