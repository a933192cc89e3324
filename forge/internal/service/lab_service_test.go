package service

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Krimson/eda-forensics/forge/internal/repository"
	"github.com/Krimson/eda-forensics/forge/pkg/models"
	"github.com/Krimson/eda-forensics/forge/stubs"
	"github.com/Krimson/eda-forensics/internal/audit"
	"github.com/Krimson/eda-forensics/internal/ingest"
	"github.com/Krimson/eda-forensics/internal/profile"
	"github.com/Krimson/eda-forensics/internal/reconstruct"
)

const featureCSV = "User_ID,Age,Gen,BSR,Win,EDA_Mean,EDA_Std,SCL_Tonic,SCR_Peaks,SCR_Amp,Slope_Max,HF_Energy,Entropy,Motion\n" +
	"S1,30,M,1.2,1,0.81,0.01,0.8,0,0.01,0.02,0.3,0.2,0\n" +
	"S1,30,M,1.2,2,0.82,0.01,0.8,0,0.01,0.02,0.3,0.2,0\n" +
	"S1,30,M,1.2,3,0.80,0.01,0.8,0,0.01,0.02,0.3,0.2,0\n" +
	"S1,30,M,1.2,4,0.83,0.01,0.8,0,0.01,0.02,0.3,0.2,0\n" +
	"S1,30,M,1.2,5,4.50,0.90,0.8,1,3.70,1.20,2.1,1.4,1\n" +
	"S1,30,M,1.2,6,0.81,0.01,0.8,0,0.01,0.02,0.3,0.2,0\n"

type fixture struct {
	service *LabService
	lab     *stubs.LabStub
	cache   *repository.RedisStub
	db      *repository.PostgresStub
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	lab := stubs.NewLabStub()
	srv := httptest.NewServer(lab)
	t.Cleanup(srv.Close)

	f := &fixture{
		lab:   lab,
		cache: repository.NewRedisStub(time.Hour),
		db:    repository.NewPostgresStub(),
	}
	f.service = NewLabService(reconstruct.NewClient(srv.URL, 5*time.Second), f.cache, f.db, profile.Default(), 5*time.Second)
	return f
}

func (f *fixture) upload(t *testing.T, id string) *models.UploadResponse {
	t.Helper()

	resp, err := f.service.ProcessUpload(context.Background(), strings.NewReader(featureCSV), "features.csv", id)
	require.NoError(t, err)
	return resp
}

func TestProcessUpload(t *testing.T) {
	f := newFixture(t)

	resp := f.upload(t, "lab-1")
	assert.Equal(t, models.StatusPending, resp.Status)
	require.Len(t, resp.Rows, 6)
	assert.Equal(t, 1, resp.Summary.Artifacts)
	assert.Equal(t, 4.50, resp.Rows[4].EDAMean)

	_, err := f.service.ProcessUpload(context.Background(), strings.NewReader(""), "empty.csv", "lab-2")
	assert.True(t, errors.Is(err, ingest.ErrEmptyFile))
}

func TestClean_AppliesReconstruction(t *testing.T) {
	f := newFixture(t)
	f.upload(t, "lab-1")

	// pca восстанавливает одномерный сигнал без изменений
	resp, err := f.service.Clean(context.Background(), &models.CleanRequest{
		SessionID:  "lab-1",
		Mode:       "solo",
		Techniques: []string{"pca"},
	})
	require.NoError(t, err)
	assert.True(t, resp.Applied)
	assert.Equal(t, "1", resp.Trial.ID)
	assert.False(t, resp.Trial.Failed)

	for _, row := range resp.Rows {
		assert.Equal(t, row.EDAMean, row.SCLTonic)
		assert.Zero(t, row.Motion)
	}

	session, err := f.service.GetSession(context.Background(), "lab-1")
	require.NoError(t, err)
	assert.True(t, session.Cleaned)
	require.Len(t, session.Ranking, 1)
	assert.Equal(t, audit.VerdictVerified, session.Verdict.Status)
}

func TestClean_BackendFailureRecordsFailedTrial(t *testing.T) {
	f := newFixture(t)
	f.upload(t, "lab-1")
	f.lab.SetFailing(true)

	resp, err := f.service.Clean(context.Background(), &models.CleanRequest{SessionID: "lab-1"})
	require.NoError(t, err)
	assert.False(t, resp.Applied)
	assert.True(t, resp.Trial.Failed)
	assert.Equal(t, 0.8, resp.Rows[0].SCLTonic)

	session, err := f.service.GetSession(context.Background(), "lab-1")
	require.NoError(t, err)
	assert.False(t, session.Cleaned)
	assert.Equal(t, audit.VerdictSyncError, session.Verdict.Status)
}

func TestClean_UnknownTechnique(t *testing.T) {
	f := newFixture(t)
	f.upload(t, "lab-1")

	_, err := f.service.Clean(context.Background(), &models.CleanRequest{
		SessionID:  "lab-1",
		Techniques: []string{"quantum"},
	})
	assert.True(t, errors.Is(err, reconstruct.ErrUnknownTechnique))
	assert.Zero(t, f.lab.Calls("/analyze"))
}

func TestBenchmark_ReplacesLedger(t *testing.T) {
	f := newFixture(t)
	f.upload(t, "lab-1")

	_, err := f.service.Clean(context.Background(), &models.CleanRequest{SessionID: "lab-1"})
	require.NoError(t, err)

	resp, err := f.service.Benchmark(context.Background(), "lab-1")
	require.NoError(t, err)
	require.Len(t, resp.Ranking, reconstruct.MaxBenchmarkResults)
	assert.Equal(t, "B-1", resp.Ranking[0].ID)
	assert.Equal(t, audit.VerdictVerified, resp.Verdict.Status)

	// нумерация инкрементальных испытаний продолжается после перебора
	next, err := f.service.Clean(context.Background(), &models.CleanRequest{SessionID: "lab-1"})
	require.NoError(t, err)
	assert.Equal(t, "128", next.Trial.ID)

	// очистка после перебора не вытесняет его результаты
	after, err := f.service.GetSession(context.Background(), "lab-1")
	require.NoError(t, err)
	assert.Len(t, after.Ranking, reconstruct.MaxBenchmarkResults+1)
	ids := make(map[string]bool, len(after.Ranking))
	for _, tr := range after.Ranking {
		ids[tr.ID] = true
	}
	assert.True(t, ids["B-1"])
	assert.True(t, ids["128"])
}

func TestBenchmark_FailureLeavesLedger(t *testing.T) {
	f := newFixture(t)
	f.upload(t, "lab-1")

	_, err := f.service.Clean(context.Background(), &models.CleanRequest{SessionID: "lab-1"})
	require.NoError(t, err)

	f.lab.SetMalformed(true)
	_, err = f.service.Benchmark(context.Background(), "lab-1")
	assert.True(t, errors.Is(err, reconstruct.ErrSchemaMismatch))

	session, err := f.service.GetSession(context.Background(), "lab-1")
	require.NoError(t, err)
	require.Len(t, session.Ranking, 1)
	assert.Equal(t, "1", session.Ranking[0].ID)
}

func TestHandleDecision(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.upload(t, "keep")
	resp, err := f.service.HandleDecision(ctx, &models.SaveDecision{SessionID: "keep", Save: true})
	require.NoError(t, err)
	assert.Equal(t, models.StatusSaved, resp.Status)

	saved, ok := f.db.GetLabSession("keep")
	require.True(t, ok)
	assert.Len(t, saved.Rows, 6)

	f.upload(t, "drop")
	resp, err = f.service.HandleDecision(ctx, &models.SaveDecision{SessionID: "drop", Save: false})
	require.NoError(t, err)
	assert.Equal(t, "cancelled", resp.Status)

	_, err = f.service.GetSession(ctx, "drop")
	assert.True(t, errors.Is(err, models.ErrSessionNotFound))
	_, ok = f.db.GetLabSession("drop")
	assert.False(t, ok)
}

func TestExport(t *testing.T) {
	f := newFixture(t)
	f.upload(t, "lab-1")

	var buf bytes.Buffer
	require.NoError(t, f.service.Export(context.Background(), "lab-1", &buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 7)
	assert.True(t, strings.HasPrefix(lines[0], "User_ID,Age,Gen"))
}
