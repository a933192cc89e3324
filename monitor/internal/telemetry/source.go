package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Krimson/eda-forensics/internal/uplink"
)

// ErrUplinkMissing канал не вернул пакет: сеть недоступна или ключ еще пуст
var ErrUplinkMissing = errors.New("uplink missing")

// Source источник одного отсчета за тик опроса
type Source interface {
	Fetch(ctx context.Context) (*uplink.Packet, error)
}

// HTTPSource читает последний пакет из realtime-эндпоинта (GET <endpoint>)
type HTTPSource struct {
	endpoint string
	client   *http.Client
}

// NewHTTPSource создает HTTP источник
func NewHTTPSource(endpoint string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (s *HTTPSource) Fetch(ctx context.Context) (*uplink.Packet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build uplink request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUplinkMissing, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUplinkMissing, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUplinkMissing, err)
	}

	return uplink.Decode(body)
}

// RedisSource читает пакет напрямую из ключа ретранслятора
type RedisSource struct {
	client *redis.Client
	key    string
}

// NewRedisSource создает Redis источник
func NewRedisSource(client *redis.Client, key string) *RedisSource {
	return &RedisSource{client: client, key: key}
}

func (s *RedisSource) Fetch(ctx context.Context) (*uplink.Packet, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("%w: key %s is empty", ErrUplinkMissing, s.key)
		}
		return nil, fmt.Errorf("%w: %v", ErrUplinkMissing, err)
	}
	return uplink.Decode(data)
}

// SimulatedSource демо-режим удаленной связи: генерирует отсчеты вокруг тонической базы
// с редкими фазическими всплесками. Код рукопожатия берется у сессии через codeFn.
type SimulatedSource struct {
	codeFn   func() string
	baseline float64
	node     string

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulatedSource создает генератор
func NewSimulatedSource(codeFn func() string, baseline float64, node string, seed int64) *SimulatedSource {
	return &SimulatedSource{
		codeFn:   codeFn,
		baseline: baseline,
		node:     node,
		rng:      rand.New(rand.NewSource(seed)),
	}
}

func (s *SimulatedSource) Fetch(ctx context.Context) (*uplink.Packet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	value := s.baseline + (s.rng.Float64()-0.5)*0.02
	spike := s.rng.Float64() < 0.02
	if spike {
		value += 2 + s.rng.Float64()*3
	}
	s.mu.Unlock()

	return &uplink.Packet{
		Handshake:  s.codeFn(),
		EDA:        value,
		IsArtifact: spike,
		Subject:    "SIMULATED_SUBJECT",
		Node:       s.node,
		TS:         time.Now().UnixMilli(),
	}, nil
}
