// Package feed provides the live WebSocket tick ingest.
//
// The expected JSON message format on the wire is identical to model.Tick:
//
//	{"symbol":"SBIN","price":24500500,"qty":10,"tick_ts":"..."}
//
// Disconnects trigger automatic reconnection with exponential backoff; the
// feed is non-restartable in the replay sense — missed ticks are gone.
package feed

import (
	"context"
	"encoding/json"
	"log"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"adx-systemv1/internal/model"
)

// Config holds configuration for the live tick feed.
type Config struct {
	// URL of the tick WebSocket server, e.g. "ws://localhost:9001/ws"
	URL string

	// ReconnectDelay is the initial delay before reconnection attempts.
	// Defaults to 2 seconds if zero.
	ReconnectDelay time.Duration

	// MaxReconnectDelay caps the exponential backoff. Defaults to 30s.
	MaxReconnectDelay time.Duration
}

func (c *Config) defaults() {
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = 2 * time.Second
	}
	if c.MaxReconnectDelay == 0 {
		c.MaxReconnectDelay = 30 * time.Second
	}
}

// Feed connects to a JSON WebSocket tick server and pushes model.Tick
// values into tickCh.
type Feed struct {
	cfg Config

	// OnReconnect fires on each reconnection attempt. Optional.
	OnReconnect func()
}

// New creates a Feed. Returns an error if the URL is unparseable.
func New(cfg Config) (*Feed, error) {
	cfg.defaults()
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, err
	}
	return &Feed{cfg: cfg}, nil
}

// Start connects and streams ticks into tickCh. Blocks until ctx is
// cancelled. Reconnects automatically on disconnect.
func (f *Feed) Start(ctx context.Context, tickCh chan<- model.Tick) error {
	delay := f.cfg.ReconnectDelay

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		err := f.runOnce(ctx, tickCh)
		if err == nil {
			// Context cancelled cleanly
			return nil
		}

		log.Printf("[feed] disconnected (%v), reconnecting in %s...", err, delay)
		if f.OnReconnect != nil {
			f.OnReconnect()
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		delay *= 2
		if delay > f.cfg.MaxReconnectDelay {
			delay = f.cfg.MaxReconnectDelay
		}
	}
}

// runOnce makes a single connection attempt and reads until disconnect or ctx cancel.
func (f *Feed) runOnce(ctx context.Context, tickCh chan<- model.Tick) error {
	dialer := websocket.DefaultDialer
	conn, _, err := dialer.DialContext(ctx, f.cfg.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	log.Printf("[feed] connected to %s", f.cfg.URL)

	// Per-connection watcher — closes the connection when ctx is
	// cancelled, and exits with this connection so reconnects don't
	// accumulate parked goroutines.
	connCtx, connDone := context.WithCancel(ctx)
	defer connDone()
	go func() {
		<-connCtx.Done()
		if ctx.Err() != nil {
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"))
		}
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return err
		}

		var tick model.Tick
		if err := json.Unmarshal(raw, &tick); err != nil {
			log.Printf("[feed] parse error: %v (raw: %s)", err, raw)
			continue
		}

		if tick.Symbol == "" {
			log.Printf("[feed] skipping tick with empty symbol")
			continue
		}

		select {
		case tickCh <- tick:
		default:
			log.Println("[feed] tickCh full, dropping tick")
		}
	}
}
