package config

import (
	"testing"

	"swing-systemv1/internal/timeframe"
)

func TestParseBands(t *testing.T) {
	c := &Config{PriceBands: "XAUUSD:1000:3000, XAGUSD:10:60, bad, FLIP:9:1"}
	bands := c.ParseBands()
	if len(bands) != 2 {
		t.Fatalf("got %d bands, want 2", len(bands))
	}
	b := bands["XAUUSD"]
	if b.Min != 1000 || b.Max != 3000 {
		t.Fatalf("XAUUSD band = %+v", b)
	}
	if !b.Contains(2000) || b.Contains(50000) {
		t.Fatal("band containment wrong")
	}
}

func TestParseTFsSkipsInvalid(t *testing.T) {
	c := &Config{EnabledTFs: "M1, H1, M7,,d1"}
	tfs := c.ParseTFs()
	want := []timeframe.Timeframe{timeframe.M1, timeframe.H1, timeframe.D1}
	if len(tfs) != len(want) {
		t.Fatalf("got %v, want %v", tfs, want)
	}
	for i := range want {
		if tfs[i] != want[i] {
			t.Fatalf("got %v, want %v", tfs, want)
		}
	}
}

func TestParseSymbols(t *testing.T) {
	c := &Config{Symbols: " XAUUSD ,XAGUSD,,"}
	got := c.ParseSymbols()
	if len(got) != 2 || got[0] != "XAUUSD" || got[1] != "XAGUSD" {
		t.Fatalf("got %v", got)
	}
}
