package service

import (
	"context"

	"github.com/Krimson/eda-forensics/forge/pkg/models"
)

type CacheRepository interface {
	SaveSession(ctx context.Context, sessionID string, data *models.LabSession) error
	GetSession(ctx context.Context, sessionID string) (*models.LabSession, error)
	DeleteSession(ctx context.Context, sessionID string) error
	GetStats() map[string]interface{}
	CheckConnection(ctx context.Context) error
	Close() error
}

type DBRepository interface {
	SaveLabSession(ctx context.Context, session *models.LabSession) error
	GetStats() map[string]interface{}
	Close() error
}
