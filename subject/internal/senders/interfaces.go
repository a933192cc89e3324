package senders

import (
	"context"
	"errors"
	"log"

	"github.com/Krimson/eda-forensics/internal/uplink"
)

// Ошибки отправителей
var (
	ErrSendFailed = errors.New("failed to send data")
	ErrClosed     = errors.New("sender closed")
)

// DataSender интерфейс для отправки пакетов канала
type DataSender interface {
	// Send отправляет один пакет
	Send(ctx context.Context, p *uplink.Packet) error

	// Close освобождает ресурсы
	Close() error
}

// CompositeSender рассылает пакет во все подключенные отправители
type CompositeSender struct {
	senders []DataSender
}

func NewCompositeSender(senders ...DataSender) *CompositeSender {
	return &CompositeSender{senders: senders}
}

// Send не останавливается на первой ошибке; возвращает все ошибки вместе
func (cs *CompositeSender) Send(ctx context.Context, p *uplink.Packet) error {
	var errs []error
	for _, s := range cs.senders {
		if err := s.Send(ctx, p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (cs *CompositeSender) Close() error {
	var errs []error
	for _, s := range cs.senders {
		if err := s.Close(); err != nil {
			log.Printf("[ERROR] Failed to close sender: %v", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
