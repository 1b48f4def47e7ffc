// Package redis publishes job status and caches finished results so other
// processes can follow a backtest without sharing memory with the runner.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/sony/gobreaker"

	"trading-backtestv1/internal/jobs"
)

// ErrNotFound is returned by LoadResult when no result is cached.
var ErrNotFound = errors.New("redis: result not found")

const defaultTTL = 24 * time.Hour

// Config configures the Redis publisher.
type Config struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
	TTL      time.Duration // lifetime of status and result keys
	Breaker  BreakerSettings
}

// Publisher writes job snapshots and results to Redis behind a circuit
// breaker.
type Publisher struct {
	client  *goredis.Client
	ttl     time.Duration
	breaker *gobreaker.CircuitBreaker

	// OnStateChange, when set, observes breaker transitions.
	OnStateChange func(from, to gobreaker.State)
}

// StatusKey is the key holding the latest snapshot of job id.
func StatusKey(id string) string { return "job:" + id + ":status" }

// ResultKey is the key holding the finished result of job id.
func ResultKey(id string) string { return "job:" + id + ":result" }

// Channel is the pub/sub channel carrying snapshot updates of job id.
func Channel(id string) string { return "pub:job:" + id }

// New connects to Redis and pings the server.
func New(cfg Config) (*Publisher, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return NewWithClient(client, cfg.TTL, cfg.Breaker), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *goredis.Client, ttl time.Duration, bs BreakerSettings) *Publisher {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if bs.ResetTimeout <= 0 {
		bs = DefaultBreakerSettings()
	}
	p := &Publisher{client: client, ttl: ttl}
	p.breaker = newBreaker("redis-publisher", bs, func(from, to gobreaker.State) {
		if p.OnStateChange != nil {
			p.OnStateChange(from, to)
		}
	})
	return p
}

// Client returns the underlying client for health checks.
func (p *Publisher) Client() *goredis.Client { return p.client }

// BreakerState reports the breaker state.
func (p *Publisher) BreakerState() gobreaker.State { return p.breaker.State() }

// PublishStatus stores v as the latest status of job id and announces it on
// the job channel.
func (p *Publisher) PublishStatus(ctx context.Context, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("redis marshal status: %w", err)
	}
	payload := string(data)

	return p.execute(func() error {
		_, err := p.client.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, StatusKey(id), payload, p.ttl)
			pipe.Publish(ctx, Channel(id), payload)
			return nil
		})
		if err != nil {
			return fmt.Errorf("redis publish status %s: %w", id, err)
		}
		return nil
	})
}

// SaveResult caches the finished result of job id.
func (p *Publisher) SaveResult(ctx context.Context, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("redis marshal result: %w", err)
	}
	return p.execute(func() error {
		if err := p.client.Set(ctx, ResultKey(id), string(data), p.ttl).Err(); err != nil {
			return fmt.Errorf("redis save result %s: %w", id, err)
		}
		return nil
	})
}

// LoadResult returns the raw JSON result of job id.
func (p *Publisher) LoadResult(ctx context.Context, id string) ([]byte, error) {
	var out []byte
	err := p.execute(func() error {
		b, err := p.client.Get(ctx, ResultKey(id)).Bytes()
		if errors.Is(err, goredis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("redis load result %s: %w", id, err)
		}
		out = b
		return nil
	})
	return out, err
}

// LoadStatus returns the raw JSON status of job id.
func (p *Publisher) LoadStatus(ctx context.Context, id string) ([]byte, error) {
	var out []byte
	err := p.execute(func() error {
		b, err := p.client.Get(ctx, StatusKey(id)).Bytes()
		if errors.Is(err, goredis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("redis load status %s: %w", id, err)
		}
		out = b
		return nil
	})
	return out, err
}

// Close closes the client.
func (p *Publisher) Close() error {
	return p.client.Close()
}

// execute runs fn through the breaker. A miss is not a failure.
func (p *Publisher) execute(fn func() error) error {
	var miss bool
	_, err := p.breaker.Execute(func() (any, error) {
		err := fn()
		if errors.Is(err, ErrNotFound) {
			miss = true
			return nil, nil
		}
		return nil, err
	})
	if miss {
		return ErrNotFound
	}
	return err
}

// Listen is a jobs.Listener publishing every transition and caching
// completed results. Failures are logged; publication is best effort.
func (p *Publisher) Listen(ev jobs.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	id := ev.Snapshot.ID
	if err := p.PublishStatus(ctx, id, ev.Snapshot); err != nil {
		log.Printf("[redis] publish status %s: %v", id, err)
		return
	}
	if ev.Snapshot.Status == jobs.StatusCompleted && ev.Result != nil {
		if err := p.SaveResult(ctx, id, ev.Result); err != nil {
			log.Printf("[redis] save result %s: %v", id, err)
		}
	}
}
