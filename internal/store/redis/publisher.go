package redis

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"zonesniper/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const (
	// Stream trimming: keep the most recent zone events per pair.
	eventStreamMaxLen = 10000
	defaultLatestTTL  = 30 * time.Minute
	diagnosticsKey    = "zone:diagnostics"

	breakerMaxFailures  = 5
	breakerResetTimeout = 10 * time.Second
	maxBufferedEvents   = 10000
)

// PublisherConfig configures the Redis publisher.
type PublisherConfig struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
}

// Publisher writes zone events and trigger diagnostics to Redis. Writes go
// through a circuit breaker; events arriving while the circuit is open are
// buffered locally and flushed once Redis recovers.
type Publisher struct {
	client *goredis.Client
	cb     *CircuitBreaker

	mu     sync.Mutex
	buffer []model.ZoneEvent

	// Optional metric hooks.
	OnPublish func(elapsed time.Duration)
	OnBuffer  func()
	OnFlush   func(count int)
}

// Client returns the underlying Redis client for health checks.
func (p *Publisher) Client() *goredis.Client { return p.client }

// NewPublisher creates a Publisher and pings the server.
func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
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

	p := &Publisher{
		client: client,
		cb:     NewCircuitBreaker(breakerMaxFailures, breakerResetTimeout),
		buffer: make([]model.ZoneEvent, 0, 256),
	}
	p.cb.OnStateChange = func(from, to State) {
		log.Printf("[redis] circuit breaker %s -> %s", from, to)
		if to == StateClosed {
			go p.flush(context.Background())
		}
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return p, nil
}

// RunZoneEvents drains eventCh and publishes each event.
// Blocks until ctx is cancelled or the channel is closed.
func (p *Publisher) RunZoneEvents(ctx context.Context, eventCh <-chan model.ZoneEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-eventCh:
			if !ok {
				return
			}
			p.publishEvent(ctx, ev)
		}
	}
}

// publishEvent writes one event through the breaker, buffering on open.
func (p *Publisher) publishEvent(ctx context.Context, ev model.ZoneEvent) {
	err := p.cb.Execute(func() error {
		return p.writeEvent(ctx, ev)
	})
	if err == ErrCircuitOpen {
		p.bufferEvent(ev)
		return
	}
	if err != nil {
		log.Printf("[redis] zone event publish error for %s: %v", ev.Pair, err)
	}
}

// writeEvent performs the pipelined XADD + SET + PUBLISH for one event.
func (p *Publisher) writeEvent(ctx context.Context, ev model.ZoneEvent) error {
	start := time.Now()
	jsonData := string(ev.JSON())

	pipe := p.client.Pipeline()

	// XADD to the per-pair event stream with auto-trimming
	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: ev.StreamKey(),
		MaxLen: eventStreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{"data": jsonData},
	})

	// SET latest event with TTL
	pipe.Set(ctx, "zone:latest:"+ev.Pair, jsonData, defaultLatestTTL)

	// PUBLISH for real-time subscribers (dashboard, signal bots)
	pipe.Publish(ctx, ev.PubSubChannel(), jsonData)

	_, err := pipe.Exec(ctx)
	if err == nil && p.OnPublish != nil {
		p.OnPublish(time.Since(start))
	}
	return err
}

func (p *Publisher) bufferEvent(ev model.ZoneEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.buffer) >= maxBufferedEvents {
		// Buffer full, drop oldest
		p.buffer = p.buffer[1:]
	}
	p.buffer = append(p.buffer, ev)

	if p.OnBuffer != nil {
		p.OnBuffer()
	}
}

// flush replays all buffered events once the circuit closes.
func (p *Publisher) flush(ctx context.Context) {
	p.mu.Lock()
	if len(p.buffer) == 0 {
		p.mu.Unlock()
		return
	}
	toFlush := p.buffer
	p.buffer = make([]model.ZoneEvent, 0, 256)
	p.mu.Unlock()

	for _, ev := range toFlush {
		if err := p.writeEvent(ctx, ev); err != nil {
			log.Printf("[redis] flush error: %v", err)
		}
	}

	log.Printf("[redis] flushed %d buffered zone events", len(toFlush))
	if p.OnFlush != nil {
		p.OnFlush(len(toFlush))
	}
}

// PendingCount returns the number of buffered events waiting to be flushed.
func (p *Publisher) PendingCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buffer)
}

// PublishDiagnostics writes the trigger-state snapshot for all pairs: one
// hash field per pair plus a pub/sub notification.
func (p *Publisher) PublishDiagnostics(ctx context.Context, diags []model.TriggerDiagnostics) {
	if len(diags) == 0 {
		return
	}
	err := p.cb.Execute(func() error {
		pipe := p.client.Pipeline()
		for i := range diags {
			d := &diags[i]
			pipe.HSet(ctx, diagnosticsKey, d.Pair, string(d.JSON()))
		}
		pipe.Publish(ctx, "pub:"+diagnosticsKey, "updated")
		_, err := pipe.Exec(ctx)
		return err
	})
	if err != nil && err != ErrCircuitOpen {
		log.Printf("[redis] diagnostics publish error: %v", err)
	}
}

// Close closes the Redis client.
func (p *Publisher) Close() error {
	return p.client.Close()
}
