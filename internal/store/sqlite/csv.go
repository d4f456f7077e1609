package sqlite

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"swing-systemv1/internal/model"
)

// ImportCandlesCSV loads OHLC rows from a CSV export into the candle
// table. Expected columns: timestamp, open, high, low, close[, volume];
// a non-numeric first row is treated as a header. Rows that fail to
// parse are skipped and counted.
func (s *Store) ImportCandlesCSV(ctx context.Context, path, symbol, timeframe string) (imported, skipped int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("csv open: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	batch := make([]model.Candle, 0, insertBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := s.WriteCandles(ctx, batch); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return imported, skipped, fmt.Errorf("csv read: %w", err)
		}
		c, ok := parseCandleRow(rec, symbol, timeframe)
		if !ok {
			skipped++
			continue
		}
		batch = append(batch, c)
		imported++
		if len(batch) >= insertBatchSize {
			if err := flush(); err != nil {
				return imported, skipped, err
			}
		}
	}
	if err := flush(); err != nil {
		return imported, skipped, err
	}

	log.Printf("[sqlite] imported %d candles for %s %s (%d rows skipped)", imported, symbol, timeframe, skipped)
	return imported, skipped, nil
}

func parseCandleRow(rec []string, symbol, timeframe string) (model.Candle, bool) {
	if len(rec) < 5 {
		return model.Candle{}, false
	}
	ts, ok := parseCSVTime(rec[0])
	if !ok {
		return model.Candle{}, false
	}
	vals := make([]float64, 4)
	for i := 0; i < 4; i++ {
		v, err := strconv.ParseFloat(rec[i+1], 64)
		if err != nil {
			return model.Candle{}, false
		}
		vals[i] = v
	}
	c := model.Candle{
		Symbol:    symbol,
		Timeframe: timeframe,
		TS:        ts,
		Open:      vals[0],
		High:      vals[1],
		Low:       vals[2],
		Close:     vals[3],
	}
	if len(rec) >= 6 {
		if v, err := strconv.ParseFloat(rec[5], 64); err == nil {
			c.Volume = v
		}
	}
	return c, true
}

func parseCSVTime(s string) (time.Time, bool) {
	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006.01.02 15:04:05",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && n > model.EpochThreshold {
		return time.Unix(n, 0).UTC(), true
	}
	return time.Time{}, false
}
