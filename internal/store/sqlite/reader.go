package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"adx-systemv1/internal/indicator"
	"adx-systemv1/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Reader provides read-only access to SQLite for replay and snapshot restore.
type Reader struct {
	db *sql.DB
}

// NewReader opens a SQLite connection for reading.
func NewReader(dbPath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	log.Printf("[sqlite-reader] opened %s", dbPath)
	return &Reader{db: db}, nil
}

// ReadSymbolBars reads bars for one symbol and interval, ordered by
// timestamp ascending.
func (r *Reader) ReadSymbolBars(symbol string, interval int, afterTS int64) ([]model.Bar, error) {
	return r.queryBars(`
		SELECT symbol, interval, ts, open, high, low, close, volume, ticks_count
		FROM bars
		WHERE symbol = ? AND interval = ? AND ts >= ?
		ORDER BY ts ASC, symbol ASC
	`, symbol, interval, afterTS)
}

// ReadAllBars reads all bars for an interval across symbols, ordered by
// timestamp then symbol for deterministic replay.
func (r *Reader) ReadAllBars(interval int, afterTS int64) ([]model.Bar, error) {
	return r.queryBars(`
		SELECT symbol, interval, ts, open, high, low, close, volume, ticks_count
		FROM bars
		WHERE interval = ? AND ts >= ?
		ORDER BY ts ASC, symbol ASC
	`, interval, afterTS)
}

func (r *Reader) queryBars(query string, args ...interface{}) ([]model.Bar, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite query bars: %w", err)
	}
	defer rows.Close()

	var bars []model.Bar
	for rows.Next() {
		var b model.Bar
		var tsUnix int64
		if err := rows.Scan(&b.Symbol, &b.Interval, &tsUnix, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &b.TicksCount); err != nil {
			return nil, fmt.Errorf("sqlite scan bars: %w", err)
		}
		b.TS = time.Unix(tsUnix, 0).UTC()
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// ReadLatestSnapshot loads the most recent indicator engine snapshot.
// Returns (nil, nil) when no snapshot exists.
func (r *Reader) ReadLatestSnapshot() (*indicator.EngineSnapshot, error) {
	var data string
	err := r.db.QueryRow(`
		SELECT data FROM indicator_snapshots
		ORDER BY created_at DESC
		LIMIT 1
	`).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("sqlite read snapshot: %w", err)
	}

	var snap indicator.EngineSnapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}

	return &snap, nil
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}

// Source adapts a Reader to the replay bar source contract for one
// interval. A non-empty Symbol restricts the replay to that symbol.
type Source struct {
	Reader   *Reader
	Interval int
	Symbol   string
}

// ReadBars returns the source's bars at or after fromTS.
func (s *Source) ReadBars(fromTS int64) ([]model.Bar, error) {
	if s.Symbol != "" {
		return s.Reader.ReadSymbolBars(s.Symbol, s.Interval, fromTS)
	}
	return s.Reader.ReadAllBars(s.Interval, fromTS)
}
