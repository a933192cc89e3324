package models

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/Krimson/eda-forensics/internal/uplink"
)

var (
	ErrInvalidEDA       = errors.New("invalid EDA value")
	ErrInvalidTimestamp = errors.New("invalid timestamp")
)

// Motion одна выборка акселерометра
type Motion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Force суммарная сила |x|+|y|+|z|
func (m Motion) Force() float64 {
	return abs(m.X) + abs(m.Y) + abs(m.Z)
}

// Reading одна точка проводимости кожи, готовая к трансляции
type Reading struct {
	Timestamp  time.Time `json:"timestamp"`
	Seq        int64     `json:"seq"`
	Raw        float64   `json:"raw"`
	EDA        float64   `json:"eda"` // значение после ограничения, уходит в канал
	Force      float64   `json:"force"`
	Shake      bool      `json:"shake,omitempty"`
	IsArtifact bool      `json:"isArtifact"`
}

// ToJSON преобразует Reading в JSON строку
func (r Reading) ToJSON() string {
	data, _ := json.Marshal(r)
	return string(data)
}

// Validate проверяет корректность выборки
func (r Reading) Validate() error {
	if r.EDA < 0 || r.EDA > 10 {
		return ErrInvalidEDA
	}
	if r.Timestamp.IsZero() {
		return ErrInvalidTimestamp
	}
	return nil
}

// Passport данные испытуемого, которые уходят с каждым пакетом
type Passport struct {
	Subject   string `json:"subject"`
	Age       string `json:"age"`
	Sex       string `json:"sex"`
	Node      string `json:"node"`
	Handshake string `json:"handshake"`
}

// Packet пакет канала для выборки
func (r Reading) Packet(p Passport) *uplink.Packet {
	return &uplink.Packet{
		Handshake:  p.Handshake,
		EDA:        r.EDA,
		IsArtifact: r.IsArtifact,
		Subject:    p.Subject,
		Age:        p.Age,
		Sex:        p.Sex,
		Node:       p.Node,
		TS:         r.Timestamp.UnixMilli(),
	}
}

// WindowStamp отметка окна для локальной лабораторной таблицы
type WindowStamp struct {
	Time      time.Time `json:"time"`
	EDA       float64   `json:"eda"`
	Stability string    `json:"stability"`
}

const (
	StabilityStable   = "STABLE"
	StabilityArtifact = "ARTIFACT"
)

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
