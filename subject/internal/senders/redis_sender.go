package senders

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/Krimson/eda-forensics/internal/uplink"
)

// RedisSender кладет последний пакет в ключ Redis, который читает дашборд
type RedisSender struct {
	client *redis.Client
	key    string
}

func NewRedisSender(client *redis.Client, key string) *RedisSender {
	return &RedisSender{client: client, key: key}
}

func (s *RedisSender) Send(ctx context.Context, p *uplink.Packet) error {
	data, err := p.Encode()
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	return nil
}

func (s *RedisSender) Close() error {
	return s.client.Close()
}
