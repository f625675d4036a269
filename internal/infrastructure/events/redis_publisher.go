package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/pkg/config"
)

var _ inventory.EventPublisher = (*RedisPublisher)(nil)

// RedisPublisher publica eventos como JSON en un canal pub/sub de Redis.
type RedisPublisher struct {
	rdb     *goredis.Client
	channel string
}

// NewRedisPublisher conecta con Redis y verifica la conexión con PING.
func NewRedisPublisher(ctx context.Context, cfg config.EventsConfig) (*RedisPublisher, error) {
	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("redis: REDIS_ADDR vacío")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.RedisAddr,
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisPublisherWithClient(rdb, cfg.Channel), nil
}

// NewRedisPublisherWithClient usa un cliente ya construido.
func NewRedisPublisherWithClient(rdb *goredis.Client, channel string) *RedisPublisher {
	if channel == "" {
		channel = "stock-ledger.events"
	}
	return &RedisPublisher{rdb: rdb, channel: channel}
}

// Publish serializa el evento y lo publica en el canal.
func (p *RedisPublisher) Publish(ctx context.Context, event inventory.Event) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.rdb.Publish(ctx, p.channel, raw).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Close cierra el cliente.
func (p *RedisPublisher) Close() error {
	return p.rdb.Close()
}
