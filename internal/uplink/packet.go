package uplink

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

// StatusEnded статус терминального пакета удаленной остановки сессии
const StatusEnded = "ENDED"

var (
	// ErrHandshakeMismatch пакет принадлежит другой сессии или не содержит кода
	ErrHandshakeMismatch = errors.New("handshake mismatch")
	// ErrInvalidPacket пакет не прошел валидацию
	ErrInvalidPacket = errors.New("invalid uplink packet")
)

// Packet одно сообщение realtime-канала между датчиком и дашбордом.
// Поля subject/age/sex/node могут отсутствовать, тогда применяются значения паспорта по умолчанию.
type Packet struct {
	Handshake  string  `json:"handshake" validate:"required,max=64"`
	EDA        float64 `json:"eda" validate:"gte=0,lte=100"`
	IsArtifact bool    `json:"isArtifact,omitempty"`
	Subject    string  `json:"subject,omitempty" validate:"max=128"`
	Age        string  `json:"age,omitempty" validate:"max=16"`
	Sex        string  `json:"sex,omitempty" validate:"max=16"`
	Node       string  `json:"node,omitempty" validate:"max=128"`
	Status     string  `json:"status,omitempty" validate:"omitempty,oneof=ENDED ACTIVE"`
	TS         int64   `json:"ts,omitempty"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func packetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate проверяет поля пакета
func (p *Packet) Validate() error {
	if err := packetValidator().Struct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPacket, err)
	}
	return nil
}

// Ended сообщает, является ли пакет сигналом удаленной остановки
func (p *Packet) Ended() bool {
	return p.Status == StatusEnded
}

// Matches проверяет принадлежность пакета сессии с кодом code
func (p *Packet) Matches(code string) bool {
	return p.Handshake != "" && p.Handshake == code
}

// Decode разбирает и валидирует пакет. Пустое тело (null) означает, что канал еще пуст.
func Decode(data []byte) (*Packet, error) {
	var p *Packet
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPacket, err)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidPacket)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Encode сериализует пакет в JSON
func (p *Packet) Encode() ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal packet: %w", err)
	}
	return data, nil
}

// NewEnded формирует пакет удаленной остановки
func NewEnded(handshake string, ts int64) *Packet {
	return &Packet{
		Handshake: handshake,
		Status:    StatusEnded,
		TS:        ts,
	}
}
