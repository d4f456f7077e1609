// cmd/swinggen generates swing points for stored candles from the command
// line, without the HTTP gateway. It can also import base candles from CSV
// and rebuild the higher timeframes first.
//
// Usage:
//
//	go run ./cmd/swinggen --symbol=XAUUSD --tf=H1 --deviation=5 --depth=12
//	go run ./cmd/swinggen --symbol=XAUUSD --import=xauusd_m1.csv --rebuild
//
// Progress is written to stdout as "PROGRESS <percent>" lines so a
// wrapping process can track the run.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"swing-systemv1/internal/jobs"
	"swing-systemv1/internal/model"
	"swing-systemv1/internal/resample"
	sqlitestore "swing-systemv1/internal/store/sqlite"
	"swing-systemv1/internal/timeframe"
)

const genBatchSize = 10000

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	symbol := flag.String("symbol", "XAUUSD", "Instrument symbol")
	tfStr := flag.String("tf", "", "Timeframes to process (comma-separated; default: all enabled)")
	deviation := flag.Float64("deviation", 5.0, "Minimum reversal percent")
	depth := flag.Int("depth", 12, "Minimum bars between pivots")
	limit := flag.Int("limit", 0, "Max candles per timeframe (0=all)")
	dbPath := flag.String("db", "data/candles.db", "Path to SQLite database")
	importCSV := flag.String("import", "", "CSV file of base-timeframe candles to import first")
	importTF := flag.String("import-tf", "M1", "Timeframe of the imported CSV")
	rebuild := flag.Bool("rebuild", false, "Rebuild higher timeframes from the import timeframe")
	dryRun := flag.Bool("dry-run", false, "Compute pivots without storing them")
	flag.Parse()

	store, err := sqlitestore.New(sqlitestore.Config{DBPath: *dbPath})
	if err != nil {
		log.Fatalf("[swinggen] sqlite open failed: %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	baseTF, err := timeframe.Parse(*importTF)
	if err != nil {
		log.Fatalf("[swinggen] %v", err)
	}

	if *importCSV != "" {
		imported, skipped, err := store.ImportCandlesCSV(ctx, *importCSV, *symbol, string(baseTF))
		if err != nil {
			log.Fatalf("[swinggen] csv import failed: %v", err)
		}
		log.Printf("[swinggen] imported %d candles from %s (%d rows skipped)", imported, *importCSV, skipped)
	}

	tfs := timeframe.All()
	if *tfStr != "" {
		tfs = timeframe.ParseList(*tfStr)
		if len(tfs) == 0 {
			log.Fatal("[swinggen] no valid timeframes specified")
		}
	}

	if *rebuild {
		if err := rebuildTimeframes(ctx, store, *symbol, baseTF, tfs); err != nil {
			log.Fatalf("[swinggen] rebuild failed: %v", err)
		}
	}

	params := jobs.ZigZagParams{Deviation: *deviation, Depth: *depth}
	completed, failed := 0, 0
	for _, tf := range tfs {
		if ctx.Err() != nil {
			break
		}
		if err := generate(ctx, store, *symbol, tf, params, *limit, *dryRun); err != nil {
			log.Printf("[swinggen] %s %s: %v", *symbol, tf, err)
			failed++
			continue
		}
		completed++
	}

	log.Printf("[swinggen] finished: %d completed, %d failed", completed, failed)
	if failed > 0 {
		os.Exit(1)
	}
}

// generate runs one symbol/timeframe pass, streaming PROGRESS lines.
func generate(ctx context.Context, store *sqlitestore.Store, symbol string, tf timeframe.Timeframe, params jobs.ZigZagParams, limit int, dryRun bool) error {
	if limit <= 0 {
		limit = 1_000_000
	}
	candles, err := store.Candles(ctx, symbol, string(tf), limit)
	if err != nil {
		return err
	}
	if len(candles) == 0 {
		return fmt.Errorf("no candles stored")
	}

	pivots := computeInBatches(candles, params)

	if dryRun {
		log.Printf("[swinggen] %s %s: %d pivots (dry run, not stored)", symbol, tf, len(pivots))
		return nil
	}
	if err := store.ReplaceSwingPoints(ctx, symbol, string(tf), "zigzag", pivots); err != nil {
		return err
	}
	log.Printf("[swinggen] %s %s: stored %d pivots from %d candles", symbol, tf, len(pivots), len(candles))
	return nil
}

// computeInBatches feeds candles through the detector in fixed batches,
// printing a PROGRESS line after each.
func computeInBatches(candles []model.Candle, params jobs.ZigZagParams) []model.PivotPoint {
	total := len(candles)
	det := jobs.NewDetector(params)
	processed := 0
	for processed < total {
		end := processed + genBatchSize
		if end > total {
			end = total
		}
		for _, c := range candles[processed:end] {
			det.Feed(c)
		}
		processed = end
		fmt.Printf("PROGRESS %.2f\n", float64(processed)/float64(total)*100)
	}
	return det.Finish()
}

func rebuildTimeframes(ctx context.Context, store *sqlitestore.Store, symbol string, from timeframe.Timeframe, targets []timeframe.Timeframe) error {
	base, err := store.Candles(ctx, symbol, string(from), 10_000_000)
	if err != nil {
		return err
	}
	if len(base) == 0 {
		return fmt.Errorf("no %s candles to rebuild from", from)
	}

	rebuilt, errs := resample.RebuildAll(base, from, targets)
	for _, err := range errs {
		log.Printf("[swinggen] %v", err)
	}
	var names []string
	for tf, candles := range rebuilt {
		if err := store.WriteCandles(ctx, candles); err != nil {
			return fmt.Errorf("write %s candles: %w", tf, err)
		}
		names = append(names, string(tf))
	}
	log.Printf("[swinggen] rebuilt timeframes from %s: %s", from, strings.Join(names, ","))
	return nil
}
