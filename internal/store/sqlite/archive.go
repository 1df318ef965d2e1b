// Package sqlite archives finalized candles. A single writer goroutine
// batches inserts into transactions; readers serve the REST history
// endpoint.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"candlesignal/internal/model"
)

const (
	batchSize  = 100
	flushDelay = 200 * time.Millisecond
)

// ArchiveConfig configures the candle archive.
type ArchiveConfig struct {
	DBPath string // e.g. "data/candles.db"
}

// Archive is a batched single-writer candle store. Implements
// model.CandleArchiver.
type Archive struct {
	db *sql.DB
}

// DB exposes the handle for health checks.
func (a *Archive) DB() *sql.DB { return a.db }

// New opens (or creates) the database with WAL mode and the candle schema.
func New(cfg ArchiveConfig) (*Archive, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single writer; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS candles (
			symbol    TEXT    NOT NULL,
			open_time INTEGER NOT NULL,
			open      REAL    NOT NULL,
			high      REAL    NOT NULL,
			low       REAL    NOT NULL,
			close     REAL    NOT NULL,
			volume    REAL    NOT NULL,
			PRIMARY KEY (symbol, open_time)
		);
	`); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Archive{db: db}, nil
}

// Run consumes finalized candles and inserts them in batched transactions.
// Flushes every batchSize candles or every flushDelay, whichever first.
// Blocks until ctx is cancelled or candleCh is closed.
func (a *Archive) Run(ctx context.Context, candleCh <-chan model.Candle) {
	batch := make([]model.Candle, 0, batchSize)
	timer := time.NewTimer(flushDelay)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		start := time.Now()
		if err := a.insertBatch(batch); err != nil {
			log.Printf("[sqlite] batch insert error: %v", err)
		} else {
			log.Printf("[sqlite] committed %d candles in %v", len(batch), time.Since(start))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case candle, ok := <-candleCh:
			if !ok {
				flush()
				return
			}
			batch = append(batch, candle)
			if len(batch) >= batchSize {
				flush()
				timer.Reset(flushDelay)
			}

		case <-timer.C:
			flush()
			timer.Reset(flushDelay)
		}
	}
}

func (a *Archive) insertBatch(candles []model.Candle) error {
	tx, err := a.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO candles (symbol, open_time, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, c := range candles {
		if _, err := stmt.Exec(c.Symbol, c.OpenTime, c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// RecentCandles returns the newest limit candles for symbol, oldest-first.
func (a *Archive) RecentCandles(ctx context.Context, symbol string, limit int) ([]model.Candle, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := a.db.QueryContext(ctx, `
		SELECT symbol, open_time, open, high, low, close, volume
		FROM candles WHERE symbol = ?
		ORDER BY open_time DESC LIMIT ?
	`, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite query candles: %w", err)
	}
	defer rows.Close()

	var out []model.Candle
	for rows.Next() {
		var c model.Candle
		if err := rows.Scan(&c.Symbol, &c.OpenTime, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("sqlite scan candle: %w", err)
		}
		c.IsFinal = true
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Newest-first from the index; callers want chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// LastOpenTime returns the newest archived open time for symbol, 0 when the
// archive holds nothing for it.
func (a *Archive) LastOpenTime(ctx context.Context, symbol string) (int64, error) {
	var ts sql.NullInt64
	err := a.db.QueryRowContext(ctx,
		`SELECT MAX(open_time) FROM candles WHERE symbol = ?`, symbol,
	).Scan(&ts)
	if err != nil {
		return 0, err
	}
	if !ts.Valid {
		return 0, nil
	}
	return ts.Int64, nil
}

// Close closes the database.
func (a *Archive) Close() error {
	return a.db.Close()
}
