// Package redis mirrors live bot state into Redis so dashboards and other
// processes can follow the bot without touching the exchange: the latest
// candle per pair, a capped stream of signals, and a capped stream of
// order outcomes.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"nobitex-trader/internal/bus"
	"nobitex-trader/internal/model"
)

const (
	signalStreamMaxLen = 10000
	orderStreamMaxLen  = 10000
	latestTTL          = 30 * time.Minute
)

// Config configures the Redis connection.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Publisher writes bot state to Redis. All writes are best effort; a Redis
// outage never stalls the trading pipeline.
type Publisher struct {
	client *goredis.Client
	log    *logrus.Entry
}

// New connects and pings the server.
func New(cfg Config, log *logrus.Entry) (*Publisher, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	log.WithField("addr", cfg.Addr).Info("redis connected")
	return &Publisher{client: client, log: log}, nil
}

// Close releases the connection.
func (p *Publisher) Close() error { return p.client.Close() }

// PublishCandle stores the newest candle under candle:latest:<symbol>:<res>.
func (p *Publisher) PublishCandle(ctx context.Context, symbol, resolution string, c model.Candle) {
	key := fmt.Sprintf("candle:latest:%s:%s", symbol, resolution)
	fields := map[string]any{
		"ts":     c.Unix(),
		"open":   c.Open,
		"high":   c.High,
		"low":    c.Low,
		"close":  c.Close,
		"volume": c.Volume,
	}
	pipe := p.client.Pipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, latestTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		p.log.WithError(err).Warn("redis candle publish failed")
	}
}

// Attach subscribes the publisher to the bus events worth mirroring.
func (p *Publisher) Attach(b *bus.Bus) error {
	streams := map[string]struct {
		stream string
		maxLen int64
	}{
		bus.NewSignal:        {"stream:signals", signalStreamMaxLen},
		bus.LateSignal:       {"stream:signals", signalStreamMaxLen},
		bus.ValidEntrySignal: {"stream:signals", signalStreamMaxLen},
		bus.OrderPlaced:      {"stream:orders", orderStreamMaxLen},
		bus.OrderRejected:    {"stream:orders", orderStreamMaxLen},
	}
	for event, dst := range streams {
		event, dst := event, dst
		err := b.Attach(event, func(ctx context.Context, payload bus.Payload) {
			values := map[string]any{"event": event}
			for k, v := range payload {
				values[k] = toRedisValue(v)
			}
			err := p.client.XAdd(ctx, &goredis.XAddArgs{
				Stream: dst.stream,
				MaxLen: dst.maxLen,
				Approx: true,
				Values: values,
			}).Err()
			if err != nil {
				p.log.WithError(err).WithField("event", event).Warn("redis stream publish failed")
			}
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func toRedisValue(v any) any {
	switch t := v.(type) {
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return fmt.Sprint(t)
	}
}
