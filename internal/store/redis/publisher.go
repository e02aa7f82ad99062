// Package redis publishes engine events — bars, signals, exits, and open
// position snapshots — to Redis Streams and PubSub for external consumers
// (dashboards, alerting, audit tails).
//
// Publishing is fire-and-forget telemetry: the engine's decisions never
// depend on Redis, and a circuit breaker sheds writes while the server is
// unreachable instead of stalling the pipeline.
package redis

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"adx-systemv1/internal/model"
)

const (
	// Stream trimming: a full session of 5-minute bars is 75 entries, so
	// these bounds keep several days of tail.
	barStreamMaxLen   = 2000
	eventStreamMaxLen = 1000
	defaultLatestTTL  = 30 * time.Minute
)

// PublisherConfig configures the Redis publisher.
type PublisherConfig struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
}

// Publisher writes engine events to Redis through a circuit breaker.
type Publisher struct {
	client *goredis.Client
	cb     *CircuitBreaker
}

// Client returns the underlying Redis client for health checks.
func (p *Publisher) Client() *goredis.Client { return p.client }

// New creates a Publisher and pings the server.
func New(cfg PublisherConfig) (*Publisher, error) {
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

	cb := NewCircuitBreaker(5, 10*time.Second)
	cb.OnStateChange = func(from, to State) {
		log.Printf("[redis] circuit breaker %s -> %s", from, to)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Publisher{client: client, cb: cb}, nil
}

// Breaker exposes the circuit breaker for health reporting.
func (p *Publisher) Breaker() *CircuitBreaker { return p.cb }

// PublishSignal writes a qualified signal: XADD to its stream, SET the
// latest key, and PUBLISH for live subscribers.
func (p *Publisher) PublishSignal(ctx context.Context, sig *model.Signal) {
	data := string(sig.JSON())
	p.publish(ctx, "signal "+sig.Symbol, func(pipe goredis.Pipeliner) {
		pipe.XAdd(ctx, &goredis.XAddArgs{
			Stream: sig.StreamKey(),
			MaxLen: eventStreamMaxLen,
			Approx: true,
			Values: map[string]interface{}{"data": data},
		})
		pipe.Set(ctx, "signal:latest:"+sig.Symbol, data, defaultLatestTTL)
		pipe.Publish(ctx, "pub:signal:"+sig.Symbol, data)
	})
}

// PublishExit writes an exit event to its stream and PubSub channel.
func (p *Publisher) PublishExit(ctx context.Context, ev *model.ExitEvent) {
	data := string(ev.JSON())
	p.publish(ctx, "exit "+ev.Position.Symbol, func(pipe goredis.Pipeliner) {
		pipe.XAdd(ctx, &goredis.XAddArgs{
			Stream: ev.StreamKey(),
			MaxLen: eventStreamMaxLen,
			Approx: true,
			Values: map[string]interface{}{"data": data},
		})
		pipe.Publish(ctx, "pub:exit:"+ev.Position.Symbol, data)
	})
}

// PublishPositions refreshes open-position snapshot keys for status display.
func (p *Publisher) PublishPositions(ctx context.Context, positions []model.Position) {
	p.publish(ctx, "positions", func(pipe goredis.Pipeliner) {
		for i := range positions {
			pos := &positions[i]
			pipe.Set(ctx, "position:open:"+pos.Symbol, string(pos.JSON()), defaultLatestTTL)
		}
	})
}

// PublishBar writes one finalized bar to its stream.
func (p *Publisher) PublishBar(ctx context.Context, bar *model.Bar) {
	data := string(bar.JSON())
	p.publish(ctx, "bar "+bar.Symbol, func(pipe goredis.Pipeliner) {
		pipe.XAdd(ctx, &goredis.XAddArgs{
			Stream: bar.StreamKey(),
			MaxLen: barStreamMaxLen,
			Approx: true,
			Values: map[string]interface{}{"data": data},
		})
	})
}

// RunBars consumes finalized bars and publishes them until ctx is cancelled
// or barCh is closed.
func (p *Publisher) RunBars(ctx context.Context, barCh <-chan model.Bar) {
	for {
		select {
		case <-ctx.Done():
			return
		case bar, ok := <-barCh:
			if !ok {
				return
			}
			p.PublishBar(ctx, &bar)
		}
	}
}

// RunCloseCommands listens on the "cmd:close" PubSub channel and closes
// the named position through closeFn. The payload is the bare symbol;
// operators square off a position by hand with
//
//	redis-cli PUBLISH cmd:close SBIN
func (p *Publisher) RunCloseCommands(ctx context.Context, closeFn func(ctx context.Context, symbol string) bool) {
	sub := p.client.Subscribe(ctx, "cmd:close")
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Channel():
			if !ok {
				return
			}
			symbol := strings.TrimSpace(msg.Payload)
			if symbol == "" {
				continue
			}
			if closeFn(ctx, symbol) {
				log.Printf("[redis] manual close executed: %s", symbol)
			} else {
				log.Printf("[redis] manual close ignored, %s has no open position", symbol)
			}
		}
	}
}

// RunExits consumes exit events and publishes them until ctx is cancelled
// or exitCh is closed.
func (p *Publisher) RunExits(ctx context.Context, exitCh <-chan model.ExitEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-exitCh:
			if !ok {
				return
			}
			p.PublishExit(ctx, &ev)
		}
	}
}

// publish runs a pipelined write through the circuit breaker. Writes shed
// while the breaker is open are dropped, not queued.
func (p *Publisher) publish(ctx context.Context, what string, fill func(pipe goredis.Pipeliner)) {
	err := p.cb.Execute(func() error {
		pipe := p.client.Pipeline()
		fill(pipe)
		_, err := pipe.Exec(ctx)
		return err
	})
	if err == ErrCircuitOpen {
		return
	}
	if err != nil {
		log.Printf("[redis] publish %s failed: %v", what, err)
	}
}

// Close closes the Redis client.
func (p *Publisher) Close() error {
	return p.client.Close()
}
