// cmd/ticksim — Demo WebSocket tick server.
// Broadcasts simulated tick data so cmd/trader can run without broker
// credentials.
//
// Tick JSON shape is identical to model.Tick:
//
//	{"symbol":"SBIN","price":245000,"qty":10,"tick_ts":"..."}
//
// Price is in paise (1 INR = 100 paise), same as the live feed.
//
// Config (env vars):
//
//	TICKSIM_ADDR      — listen address  (default: ":8081")
//	SYMBOLS           — comma-separated symbols (default: "SBIN,TCS,RELIANCE")
//	TICK_INTERVAL_MS  — broadcast interval milliseconds (default: "100")
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"adx-systemv1/internal/model"
)

// instrument holds per-symbol simulation state.
type instrument struct {
	Symbol string
	Price  int64 // current simulated price in paise
}

// ─── Hub ──────────────────────────────────────────────────────────────────────

type hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]chan []byte
}

func newHub() *hub {
	return &hub{clients: make(map[*websocket.Conn]chan []byte)}
}

func (h *hub) register(conn *websocket.Conn) chan []byte {
	ch := make(chan []byte, 256)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()
	return ch
}

func (h *hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	if ch, ok := h.clients[conn]; ok {
		close(ch)
		delete(h.clients, conn)
	}
	h.mu.Unlock()
}

func (h *hub) broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.clients {
		select {
		case ch <- msg:
		default: // slow client — drop tick
		}
	}
}

// ─── WebSocket handler ────────────────────────────────────────────────────────

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

func wsHandler(h *hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[ticksim] upgrade error: %v", err)
			return
		}
		log.Printf("[ticksim] client connected: %s", r.RemoteAddr)

		ch := h.register(conn)
		defer func() {
			h.unregister(conn)
			conn.Close()
			log.Printf("[ticksim] client disconnected: %s", r.RemoteAddr)
		}()

		// Write pump: sends tick JSON to this client.
		for msg := range ch {
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

// ─── Tick generator ──────────────────────────────────────────────────────────

// walkPrice applies a tiny random walk (±0.1%) to simulate price movement.
func walkPrice(price int64) int64 {
	pct := (rand.Float64()*0.2 - 0.1) / 100.0
	delta := int64(float64(price) * pct)
	newPrice := price + delta
	if newPrice < 100 { // floor at 1 rupee
		newPrice = 100
	}
	return newPrice
}

func runGenerator(h *hub, instruments []instrument, intervalMs int) {
	ticker := time.NewTicker(time.Duration(intervalMs) * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		for i := range instruments {
			instruments[i].Price = walkPrice(instruments[i].Price)
			msg := model.Tick{
				Symbol: instruments[i].Symbol,
				Price:  instruments[i].Price,
				Qty:    int64(rand.Intn(100) + 1),
				TickTS: time.Now().UTC(),
			}
			b, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			h.broadcast(b)
		}
	}
}

// ─── main ─────────────────────────────────────────────────────────────────────

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[ticksim] starting demo tick server...")

	addr := envOrDefault("TICKSIM_ADDR", ":8081")
	symbolsEnv := envOrDefault("SYMBOLS", "SBIN,TCS,RELIANCE")
	intervalMs := envIntOrDefault("TICK_INTERVAL_MS", 100)

	instruments := parseInstruments(symbolsEnv)
	if len(instruments) == 0 {
		log.Fatalf("[ticksim] no symbols configured via SYMBOLS")
	}
	log.Printf("[ticksim] instruments: %+v", instruments)
	log.Printf("[ticksim] broadcast interval: %dms", intervalMs)

	h := newHub()
	go runGenerator(h, instruments, intervalMs)

	http.HandleFunc("/ws", wsHandler(h))
	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, `{"status":"ok","service":"ticksim"}`)
	})

	log.Printf("[ticksim] listening on %s  (WebSocket: ws://localhost%s/ws)", addr, addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatalf("[ticksim] server error: %v", err)
	}
}

// ─── helpers ──────────────────────────────────────────────────────────────────

func parseInstruments(s string) []instrument {
	// Starting prices in paise for the usual demo symbols.
	defaultPrices := map[string]int64{
		"SBIN":     80000,    // ₹800.00
		"TCS":      420000,   // ₹4200.00
		"RELIANCE": 290000,   // ₹2900.00
		"INFY":     185000,   // ₹1850.00
		"NIFTY":    2566000,  // ₹25660.00
	}

	var result []instrument
	for _, part := range strings.Split(s, ",") {
		sym := strings.TrimSpace(part)
		if sym == "" {
			continue
		}
		price := defaultPrices[sym]
		if price == 0 {
			price = 100000 // default ₹1000.00
		}
		result = append(result, instrument{Symbol: sym, Price: price})
	}
	return result
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOrDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
