// Package sqlite persists timeframe candles and generated swing points.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"swing-systemv1/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

const insertBatchSize = 500

// Config configures the SQLite store.
type Config struct {
	DBPath string // path to database file, e.g. "data/market.db"
}

// Store is a single-writer SQLite store with transaction batching.
type Store struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// New opens the database in WAL mode and ensures the schema exists.
func New(cfg Config) (*Store, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS candles (
			symbol    TEXT    NOT NULL,
			timeframe TEXT    NOT NULL,
			ts        INTEGER NOT NULL,
			open      REAL    NOT NULL,
			high      REAL    NOT NULL,
			low       REAL    NOT NULL,
			close     REAL    NOT NULL,
			volume    REAL,
			PRIMARY KEY (symbol, timeframe, ts)
		);

		CREATE TABLE IF NOT EXISTS swing_points (
			symbol    TEXT    NOT NULL,
			timeframe TEXT    NOT NULL,
			algorithm TEXT    NOT NULL,
			ts        INTEGER NOT NULL,
			price     REAL    NOT NULL,
			kind      TEXT    NOT NULL,
			PRIMARY KEY (symbol, timeframe, algorithm, ts)
		);
	`)
	return err
}

// WriteCandles upserts candles in batched transactions.
func (s *Store) WriteCandles(ctx context.Context, candles []model.Candle) error {
	for start := 0; start < len(candles); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(candles) {
			end = len(candles)
		}
		if err := s.insertCandleBatch(ctx, candles[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) insertCandleBatch(ctx context.Context, batch []model.Candle) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO candles (symbol, timeframe, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, c := range batch {
		if _, err := stmt.Exec(c.Symbol, c.Timeframe, c.TS.Unix(), c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Candles returns up to limit candles for (symbol, timeframe), most recent
// window, in chronological order.
func (s *Store) Candles(ctx context.Context, symbol, timeframe string, limit int) ([]model.Candle, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, open, high, low, close, COALESCE(volume, 0)
		FROM (
			SELECT * FROM candles
			WHERE symbol = ? AND timeframe = ?
			ORDER BY ts DESC LIMIT ?
		) ORDER BY ts ASC
	`, symbol, timeframe, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Candle
	for rows.Next() {
		c := model.Candle{Symbol: symbol, Timeframe: timeframe}
		var ts int64
		if err := rows.Scan(&ts, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, err
		}
		c.TS = time.Unix(ts, 0).UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}

// CandleCount returns the stored candle count for (symbol, timeframe).
func (s *Store) CandleCount(ctx context.Context, symbol, timeframe string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM candles WHERE symbol = ? AND timeframe = ?`,
		symbol, timeframe,
	).Scan(&n)
	return n, err
}

// ReplaceSwingPoints atomically replaces the swing points for one
// (symbol, timeframe, algorithm) run. Regeneration always writes a full
// list, never a partial update.
func (s *Store) ReplaceSwingPoints(ctx context.Context, symbol, timeframe, algorithm string, points []model.PivotPoint) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(
		`DELETE FROM swing_points WHERE symbol = ? AND timeframe = ? AND algorithm = ?`,
		symbol, timeframe, algorithm,
	); err != nil {
		tx.Rollback()
		return err
	}
	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO swing_points (symbol, timeframe, algorithm, ts, price, kind)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, p := range points {
		if _, err := stmt.Exec(symbol, timeframe, algorithm, p.Time, p.Price, p.Kind.String()); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// SwingPoints returns the stored swing points for a run, time ascending.
func (s *Store) SwingPoints(ctx context.Context, symbol, timeframe, algorithm string) ([]model.PivotPoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, price, kind FROM swing_points
		WHERE symbol = ? AND timeframe = ? AND algorithm = ?
		ORDER BY ts ASC
	`, symbol, timeframe, algorithm)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PivotPoint
	for rows.Next() {
		var p model.PivotPoint
		var kind string
		if err := rows.Scan(&p.Time, &p.Price, &kind); err != nil {
			return nil, err
		}
		p.Kind = model.ParsePivotKind(kind)
		out = append(out, p)
	}
	return out, rows.Err()
}

// LatestClose returns the most recent close price stored for a symbol on
// any timeframe, used as the measurement engine's last-resort price.
func (s *Store) LatestClose(ctx context.Context, symbol string) (float64, bool, error) {
	var close float64
	err := s.db.QueryRowContext(ctx, `
		SELECT close FROM candles WHERE symbol = ? ORDER BY ts DESC LIMIT 1
	`, symbol).Scan(&close)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return close, true, nil
}
