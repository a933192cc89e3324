package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Krimson/eda-forensics/forge/pkg/models"
)

func TestRedisStub_TTL(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	stub := NewRedisStub(time.Minute)
	stub.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, stub.SaveSession(ctx, "s1", &models.LabSession{SessionID: "s1", FileName: "a.csv"}))

	got, err := stub.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "a.csv", got.FileName)

	now = now.Add(2 * time.Minute)
	_, err = stub.GetSession(ctx, "s1")
	assert.True(t, errors.Is(err, models.ErrSessionExpired))

	_, err = stub.GetSession(ctx, "s1")
	assert.True(t, errors.Is(err, models.ErrSessionNotFound))
}

func TestRedisStub_Delete(t *testing.T) {
	stub := NewRedisStub(0)
	ctx := context.Background()

	require.NoError(t, stub.SaveSession(ctx, "s1", &models.LabSession{SessionID: "s1"}))
	assert.Equal(t, 1, stub.GetStats()["active_sessions"])

	require.NoError(t, stub.DeleteSession(ctx, "s1"))
	assert.True(t, errors.Is(stub.DeleteSession(ctx, "s1"), models.ErrSessionNotFound))
}

func TestPostgresStub_MarksSaved(t *testing.T) {
	stub := NewPostgresStub()
	session := &models.LabSession{SessionID: "s1", Status: models.StatusPending}

	require.NoError(t, stub.SaveLabSession(context.Background(), session))

	saved, ok := stub.GetLabSession("s1")
	require.True(t, ok)
	assert.Equal(t, models.StatusSaved, saved.Status)
	assert.Equal(t, models.StatusPending, session.Status)
}
