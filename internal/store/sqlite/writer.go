package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"adx-systemv1/internal/indicator"
	"adx-systemv1/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

const (
	defaultBatchSize  = 100
	defaultFlushDelay = 200 * time.Millisecond
)

// WriterConfig configures the SQLite writer.
type WriterConfig struct {
	DBPath string // path to SQLite database file, e.g. "data/bars.db"
}

// Writer is a single-goroutine SQLite writer with transaction batching.
type Writer struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

// New creates a new SQLite Writer, initializes the database with WAL mode and schema.
func New(cfg WriterConfig) (*Writer, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Set connection pool for single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Writer{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS bars (
			symbol     TEXT    NOT NULL,
			interval   INTEGER NOT NULL,
			ts         INTEGER NOT NULL,
			open       INTEGER NOT NULL,
			high       INTEGER NOT NULL,
			low        INTEGER NOT NULL,
			close      INTEGER NOT NULL,
			volume     INTEGER,
			ticks_count INTEGER,
			PRIMARY KEY (symbol, interval, ts)
		);

		CREATE TABLE IF NOT EXISTS indicator_snapshots (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			data       TEXT    NOT NULL,
			created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
		);
	`)
	return err
}

// Run reads bars from barCh and inserts them in batched transactions.
// Flushes every batchSize bars OR every flushDelay, whichever first.
// Blocks until ctx is cancelled or barCh is closed.
func (w *Writer) Run(ctx context.Context, barCh <-chan model.Bar) {
	batch := make([]model.Bar, 0, defaultBatchSize)
	timer := time.NewTimer(defaultFlushDelay)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		start := time.Now()
		if err := w.InsertBars(batch); err != nil {
			log.Printf("[sqlite] batch insert error: %v", err)
		} else {
			log.Printf("[sqlite] committed %d bars in %v", len(batch), time.Since(start))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case bar, ok := <-barCh:
			if !ok {
				flush()
				return
			}
			batch = append(batch, bar)
			if len(batch) >= defaultBatchSize {
				flush()
				timer.Reset(defaultFlushDelay)
			}

		case <-timer.C:
			flush()
			timer.Reset(defaultFlushDelay)
		}
	}
}

// InsertBars inserts a batch of bars in a single transaction.
func (w *Writer) InsertBars(bars []model.Bar) error {
	tx, err := w.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO bars (symbol, interval, ts, open, high, low, close, volume, ticks_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, b := range bars {
		_, err := stmt.Exec(b.Symbol, b.Interval, b.TS.Unix(), b.Open, b.High, b.Low, b.Close, b.Volume, b.TicksCount)
		if err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// GetLastTimestamp returns the last stored bar timestamp for a symbol.
// Returns 0 if no bars exist.
func (w *Writer) GetLastTimestamp(symbol string) (int64, error) {
	var ts sql.NullInt64
	err := w.db.QueryRow(
		`SELECT MAX(ts) FROM bars WHERE symbol = ?`, symbol,
	).Scan(&ts)
	if err != nil {
		return 0, err
	}
	if !ts.Valid {
		return 0, nil
	}
	return ts.Int64, nil
}

// SaveSnapshot saves an indicator engine snapshot to SQLite.
func (w *Writer) SaveSnapshot(snap *indicator.EngineSnapshot) error {
	data, err := snap.Marshal()
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	_, err = w.db.Exec(`INSERT INTO indicator_snapshots (data) VALUES (?)`, string(data))
	if err != nil {
		return fmt.Errorf("sqlite insert snapshot: %w", err)
	}

	// Prune old snapshots — keep last 10
	_, err = w.db.Exec(`DELETE FROM indicator_snapshots WHERE id NOT IN (SELECT id FROM indicator_snapshots ORDER BY created_at DESC LIMIT 10)`)
	if err != nil {
		log.Printf("[sqlite] prune snapshots warning: %v", err)
	}

	return nil
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}
