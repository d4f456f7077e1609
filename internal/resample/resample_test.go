package resample

import (
	"testing"
	"time"

	"swing-systemv1/internal/model"
	"swing-systemv1/internal/timeframe"
)

func m1Candles(t *testing.T, start time.Time, ohlcv [][5]float64) []model.Candle {
	t.Helper()
	out := make([]model.Candle, len(ohlcv))
	for i, v := range ohlcv {
		out[i] = model.Candle{
			Symbol: "XAUUSD", Timeframe: "M1",
			TS:   start.Add(time.Duration(i) * time.Minute),
			Open: v[0], High: v[1], Low: v[2], Close: v[3], Volume: v[4],
		}
	}
	return out
}

func TestResampleM1ToM5(t *testing.T) {
	start := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	candles := m1Candles(t, start, [][5]float64{
		{2000, 2005, 1999, 2002, 10},
		{2002, 2010, 2001, 2008, 20},
		{2008, 2009, 1995, 1998, 5},
		{1998, 2003, 1997, 2001, 8},
		{2001, 2004, 2000, 2003, 7},
		// next bucket
		{2003, 2006, 2002, 2005, 12},
	})

	out, err := Resample(candles, timeframe.M1, timeframe.M5)
	if err != nil {
		t.Fatalf("resample: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d candles, want 2", len(out))
	}

	first := out[0]
	if first.Timeframe != "M5" {
		t.Fatalf("timeframe = %q", first.Timeframe)
	}
	if !first.TS.Equal(start) {
		t.Fatalf("bucket start = %v, want %v", first.TS, start)
	}
	if first.Open != 2000 || first.Close != 2003 {
		t.Fatalf("open/close = %v/%v", first.Open, first.Close)
	}
	if first.High != 2010 || first.Low != 1995 {
		t.Fatalf("high/low = %v/%v", first.High, first.Low)
	}
	if first.Volume != 50 {
		t.Fatalf("volume = %v, want 50", first.Volume)
	}

	second := out[1]
	if !second.TS.Equal(start.Add(5 * time.Minute)) {
		t.Fatalf("second bucket start = %v", second.TS)
	}
	if second.Volume != 12 {
		t.Fatalf("second volume = %v", second.Volume)
	}
}

func TestResampleUnorderedInput(t *testing.T) {
	start := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
	candles := m1Candles(t, start, [][5]float64{
		{2000, 2005, 1999, 2002, 10},
		{2002, 2010, 2001, 2008, 20},
		{2008, 2009, 1995, 1998, 5},
	})
	shuffled := []model.Candle{candles[2], candles[0], candles[1]}

	out, err := Resample(shuffled, timeframe.M1, timeframe.M5)
	if err != nil {
		t.Fatalf("resample: %v", err)
	}
	if len(out) != 1 || out[0].Open != 2000 || out[0].Close != 1998 {
		t.Fatalf("unexpected aggregate: %+v", out)
	}
}

func TestResampleRejectsNonMultiple(t *testing.T) {
	if _, err := Resample(nil, timeframe.M5, timeframe.M1); err == nil {
		t.Fatal("expected error downsampling M5 to M1")
	}
}

func TestRebuildAllSkipsBase(t *testing.T) {
	start := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	candles := m1Candles(t, start, [][5]float64{
		{2000, 2005, 1999, 2002, 10},
	})
	targets := []timeframe.Timeframe{timeframe.M1, timeframe.M5, timeframe.H1}
	out, errs := RebuildAll(candles, timeframe.M1, targets)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if _, ok := out[timeframe.M1]; ok {
		t.Fatal("base timeframe should be skipped")
	}
	if len(out[timeframe.M5]) != 1 || len(out[timeframe.H1]) != 1 {
		t.Fatalf("unexpected rebuild output: %+v", out)
	}
}
