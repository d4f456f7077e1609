// Package redis provides the latest-price cache and the PubSub progress
// channel used by the pivot-generation pipeline.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"swing-systemv1/internal/task"

	goredis "github.com/go-redis/redis/v8"
)

const (
	latestPriceTTL    = 30 * time.Minute
	progressChanPref  = "pub:swingjob:"
	latestPricePrefix = "price:latest:"
)

// Config configures the Redis cache.
type Config struct {
	Addr     string // e.g. "localhost:6379"
	Password string
	DB       int
}

// Cache wraps the Redis client for price caching and progress PubSub.
type Cache struct {
	client *goredis.Client
}

// Client returns the underlying Redis client for health checks.
func (c *Cache) Client() *goredis.Client { return c.client }

// New connects to Redis and pings the server.
func New(cfg Config) (*Cache, error) {
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

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Cache{client: client}, nil
}

// Close closes the underlying client.
func (c *Cache) Close() error { return c.client.Close() }

// SetLatestPrice caches the most recently observed price for a symbol.
func (c *Cache) SetLatestPrice(ctx context.Context, symbol string, price float64) error {
	return c.client.Set(ctx, latestPricePrefix+symbol, price, latestPriceTTL).Err()
}

// LatestPrice returns the cached latest price for a symbol, false if the
// key is absent or unreadable.
func (c *Cache) LatestPrice(ctx context.Context, symbol string) (float64, bool) {
	v, err := c.client.Get(ctx, latestPricePrefix+symbol).Float64()
	if err != nil {
		return 0, false
	}
	return v, true
}

// PublishProgress broadcasts a progress event on the task's channel.
func (c *Cache) PublishProgress(ctx context.Context, ev task.ProgressEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return c.client.Publish(ctx, progressChanPref+ev.TaskID, payload).Err()
}

// ProgressSource returns the push-backed progress source reading the
// task's PubSub channel.
func (c *Cache) ProgressSource() task.ProgressSource {
	return &pubsubSource{client: c.client}
}

// pubsubSource subscribes to pub:swingjob:{taskID} and decodes events.
type pubsubSource struct {
	client *goredis.Client
}

func (s *pubsubSource) Subscribe(ctx context.Context, taskID string) (<-chan task.ProgressEvent, func(), error) {
	sub := s.client.Subscribe(ctx, progressChanPref+taskID)
	// force the SUBSCRIBE round-trip so a dead server refuses here,
	// letting the watcher fall back to polling
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, nil, fmt.Errorf("redis subscribe: %w", err)
	}

	out := make(chan task.ProgressEvent, 8)
	var once sync.Once
	closed := make(chan struct{})
	stop := func() {
		once.Do(func() {
			close(closed)
			sub.Close()
		})
	}

	go func() {
		defer close(out)
		ch := sub.Channel()
		for {
			select {
			case <-closed:
				return
			case <-ctx.Done():
				stop()
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev task.ProgressEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					log.Printf("[redis] bad progress payload on %s: %v", msg.Channel, err)
					continue
				}
				select {
				case out <- ev:
				case <-closed:
					return
				}
				if ev.Terminal() {
					stop()
					return
				}
			}
		}
	}()

	return out, stop, nil
}
