package jobs

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"swing-systemv1/internal/store/sqlite"
	"swing-systemv1/internal/task"
)

type capturePublisher struct {
	events chan task.ProgressEvent
}

func (p *capturePublisher) PublishProgress(ctx context.Context, ev task.ProgressEvent) error {
	p.events <- ev
	return nil
}

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	st, err := sqlite.New(sqlite.Config{DBPath: filepath.Join(t.TempDir(), "jobs.db")})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func waitTerminal(t *testing.T, events chan task.ProgressEvent) []task.ProgressEvent {
	t.Helper()
	var got []task.ProgressEvent
	for {
		select {
		case ev := <-events:
			got = append(got, ev)
			if ev.Terminal() {
				return got
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("no terminal event after %d events", len(got))
		}
	}
}

func TestManagerRunPublishesProgressAndStoresPivots(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	closes := []float64{100}
	for i := 0; i < 20; i++ {
		closes = append(closes, closes[len(closes)-1]+8)
	}
	for i := 0; i < 20; i++ {
		closes = append(closes, closes[len(closes)-1]-8)
	}
	if err := st.WriteCandles(ctx, wave(closes)); err != nil {
		t.Fatalf("seed candles: %v", err)
	}

	pub := &capturePublisher{events: make(chan task.ProgressEvent, 64)}
	m := NewManager(ctx, st, pub, nil)

	taskID, err := m.Start(Request{
		Symbol:    "XAUUSD",
		Timeframe: "M1",
		Deviation: 5,
		Depth:     3,
		BatchSize: 10,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !strings.HasPrefix(taskID, "swingjob") {
		t.Fatalf("unexpected task id %q", taskID)
	}

	events := waitTerminal(t, pub.events)
	last := events[len(events)-1]
	if !last.Done || last.Error != "" {
		t.Fatalf("expected success, got %+v", last)
	}
	if last.Percent != 100 {
		t.Fatalf("final percent = %v, want 100", last.Percent)
	}

	// Percent never decreases across the run.
	prev := 0.0
	for _, ev := range events {
		if ev.Percent < prev {
			t.Fatalf("percent went backwards: %v after %v", ev.Percent, prev)
		}
		if ev.Percent > 0 {
			prev = ev.Percent
		}
	}

	pivots, err := st.SwingPoints(ctx, "XAUUSD", "M1", "zigzag")
	if err != nil {
		t.Fatalf("load swing points: %v", err)
	}
	if len(pivots) < 2 {
		t.Fatalf("expected stored pivots, got %d", len(pivots))
	}

	snap, ok := m.Status(taskID)
	if !ok || !snap.Done {
		t.Fatalf("status snapshot not terminal: ok=%v ev=%+v", ok, snap)
	}
}

func TestManagerFailsWithoutCandles(t *testing.T) {
	st := newTestStore(t)
	pub := &capturePublisher{events: make(chan task.ProgressEvent, 16)}
	m := NewManager(context.Background(), st, pub, nil)

	taskID, err := m.Start(Request{Symbol: "XAUUSD", Timeframe: "H1"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	events := waitTerminal(t, pub.events)
	last := events[len(events)-1]
	if last.Error == "" || last.Done {
		t.Fatalf("expected failure event, got %+v", last)
	}
	if !strings.Contains(last.Error, "no candles") {
		t.Fatalf("unexpected error text %q", last.Error)
	}
	if _, ok := m.Status(taskID); !ok {
		t.Fatal("failure snapshot missing")
	}
}

func TestManagerRejectsBadRequests(t *testing.T) {
	m := NewManager(context.Background(), newTestStore(t), nil, nil)

	cases := []Request{
		{Timeframe: "M1"},                                         // no symbol
		{Symbol: "XAUUSD", Timeframe: "M7"},                       // bad timeframe
		{Symbol: "XAUUSD", Timeframe: "M1", Algorithm: "fractal"}, // unknown algo
	}
	for _, req := range cases {
		if _, err := m.Start(req); err == nil {
			t.Fatalf("expected error for %+v", req)
		}
	}
}
