package swing

import (
	"encoding/json"
	"reflect"
	"testing"

	"swing-systemv1/internal/chart"
	"swing-systemv1/internal/model"
)

func fp(v float64) *float64 { return &v }

func rawPivot(ts string, price float64, kind string) model.RawPivot {
	return model.RawPivot{Timestamp: ts, Price: fp(price), Kind: kind}
}

func TestBuildLegs_AdjacentPairs(t *testing.T) {
	pivots := []model.PivotPoint{
		{Time: 1, Price: 100, Kind: model.PivotHigh},
		{Time: 2, Price: 90, Kind: model.PivotLow},
		{Time: 3, Price: 110, Kind: model.PivotHigh},
	}
	legs := BuildLegs(pivots)
	if len(legs) != 2 {
		t.Fatalf("expected 2 legs, got %d", len(legs))
	}
	if legs[0].StartPrice != 100 || legs[0].EndPrice != 90 || legs[0].PriceDelta != -10 {
		t.Errorf("leg0 = %+v, want 100→90 delta -10", legs[0])
	}
	if legs[1].StartPrice != 90 || legs[1].EndPrice != 110 || legs[1].PriceDelta != 20 {
		t.Errorf("leg1 = %+v, want 90→110 delta +20", legs[1])
	}
}

func TestBuildLegs_CountAndOrdering(t *testing.T) {
	for _, n := range []int{0, 1, 2, 5, 50} {
		pivots := make([]model.PivotPoint, n)
		for i := range pivots {
			pivots[i] = model.PivotPoint{Time: int64(1700000000 + i*3600), Price: float64(2000 + i)}
		}
		legs := BuildLegs(pivots)
		want := n - 1
		if want < 0 {
			want = 0
		}
		if len(legs) != want {
			t.Errorf("n=%d: expected %d legs, got %d", n, want, len(legs))
		}
		for i, leg := range legs {
			if leg.StartTime > leg.EndTime {
				t.Errorf("n=%d leg %d: start %d after end %d", n, i, leg.StartTime, leg.EndTime)
			}
		}
	}
}

func TestBuildLegs_SameDirectionRunsPreserved(t *testing.T) {
	// two consecutive highs: upstream anomaly, still paired
	pivots := []model.PivotPoint{
		{Time: 1, Price: 100, Kind: model.PivotHigh},
		{Time: 2, Price: 105, Kind: model.PivotHigh},
		{Time: 3, Price: 90, Kind: model.PivotLow},
	}
	legs := BuildLegs(pivots)
	if len(legs) != 2 {
		t.Fatalf("expected 2 legs for same-direction run, got %d", len(legs))
	}
}

func TestBuildLegs_DayDelta(t *testing.T) {
	legs := BuildLegs([]model.PivotPoint{
		{Time: 1700000000, Price: 2000},
		{Time: 1700000000 + 3*86400 + 3600, Price: 2100}, // 3 days and an hour
	})
	if legs[0].DayDelta != 3 {
		t.Errorf("DayDelta = %d, want 3 (floored)", legs[0].DayDelta)
	}
}

func TestCleanPivots_DropsMalformed(t *testing.T) {
	raw := []model.RawPivot{
		rawPivot("2024-01-03T00:00:00Z", 2060, "High"),
		{Timestamp: "", Price: fp(1990), Kind: "Low"}, // null timestamp
		rawPivot("not-a-date", 2010, "High"),
		{Timestamp: "2024-01-02T00:00:00Z", Price: nil, Kind: "Low"}, // missing price
		rawPivot("2024-01-01T00:00:00Z", 2000, "Low"),
	}
	cleaned, dropped := CleanPivots(raw)
	if dropped != 3 {
		t.Errorf("dropped = %d, want 3", dropped)
	}
	if len(cleaned) != 2 {
		t.Fatalf("kept = %d, want 2", len(cleaned))
	}
	// sorted ascending despite reversed input order
	if cleaned[0].Price != 2000 || cleaned[1].Price != 2060 {
		t.Errorf("not sorted: %+v", cleaned)
	}
	if legs := BuildLegs(cleaned); len(legs) != 1 {
		t.Errorf("legs from cleaned = %d, want 1", len(legs))
	}
}

func TestCleanPivots_EpochTimestamps(t *testing.T) {
	cleaned, dropped := CleanPivots([]model.RawPivot{
		rawPivot("1700000000", 2000, "Low"),
		rawPivot("1700003600000", 2050, "High"), // milliseconds
	})
	if dropped != 0 {
		t.Fatalf("dropped = %d, want 0", dropped)
	}
	if cleaned[0].Time != 1700000000 || cleaned[1].Time != 1700003600 {
		t.Errorf("epoch parsing wrong: %d, %d", cleaned[0].Time, cleaned[1].Time)
	}
}

func TestEngine_LoadPivotsIdempotentOnSortedInput(t *testing.T) {
	unsorted := []model.RawPivot{
		rawPivot("2024-01-03T00:00:00Z", 2060, "High"),
		rawPivot("2024-01-01T00:00:00Z", 2000, "Low"),
		rawPivot("2024-01-02T00:00:00Z", 2100, "High"),
	}
	sorted := []model.RawPivot{unsorted[1], unsorted[2], unsorted[0]}

	a := NewEngine(chart.NewCanvas())
	a.LoadPivots(unsorted)
	b := NewEngine(chart.NewCanvas())
	b.LoadPivots(sorted)

	if !reflect.DeepEqual(a.Pivots(), b.Pivots()) {
		t.Errorf("load not idempotent on re-sorted input:\n%+v\n%+v", a.Pivots(), b.Pivots())
	}
}

func TestEngine_LoadReplacesPriorList(t *testing.T) {
	e := NewEngine(chart.NewCanvas())
	e.LoadPivots([]model.RawPivot{
		rawPivot("2024-01-01T00:00:00Z", 2000, "Low"),
		rawPivot("2024-01-02T00:00:00Z", 2100, "High"),
	})
	e.LoadPivots([]model.RawPivot{
		rawPivot("2024-02-01T00:00:00Z", 1900, "Low"),
	})
	got := e.Pivots()
	if len(got) != 1 || got[0].Price != 1900 {
		t.Errorf("prior list not replaced: %+v", got)
	}
}

func TestEngine_RenderOverlayTeardown(t *testing.T) {
	canvas := chart.NewCanvas()
	e := NewEngine(canvas)
	e.LoadPivots([]model.RawPivot{
		rawPivot("2024-01-01T00:00:00Z", 2000, "Low"),
		rawPivot("2024-01-02T00:00:00Z", 2100, "High"),
		rawPivot("2024-01-03T00:00:00Z", 1950, "Low"),
	})

	// repeated renders must not accumulate artifacts
	e.RenderOverlay()
	e.RenderOverlay()
	e.RenderOverlay()

	m, s := canvas.Counts()
	if m != 3 || s != 2 {
		t.Errorf("overlay: %d markers, %d segments, want 3/2", m, s)
	}
}

func TestEngine_VisibilityDecoupledFromPairing(t *testing.T) {
	canvas := chart.NewCanvas()
	e := NewEngine(canvas)
	e.LoadPivots([]model.RawPivot{
		rawPivot("2024-01-01T00:00:00Z", 2000, "Low"),
		rawPivot("2024-01-02T00:00:00Z", 2100, "High"),
	})
	e.RenderOverlay()

	e.SetVisible(false)
	if m, s := canvas.Counts(); m != 0 || s != 0 {
		t.Errorf("hidden layer left artifacts: %d/%d", m, s)
	}
	// pivot list untouched by visibility
	if len(e.Pivots()) != 2 {
		t.Errorf("visibility toggle mutated pivots: %d", len(e.Pivots()))
	}

	e.SetVisible(true)
	if m, s := canvas.Counts(); m != 2 || s != 1 {
		t.Errorf("re-shown layer wrong: %d markers %d segments, want 2/1", m, s)
	}
}

func TestToListRows_Formatting(t *testing.T) {
	rows := ToListRows([]model.SwingLeg{
		{
			StartTime: 1704067200, StartPrice: 2000, // 2024-01-01
			EndTime: 1704412800, EndPrice: 1950.5, // 2024-01-05
			PriceDelta: -49.5, DayDelta: 4,
		},
		{
			StartTime: 1704412800, StartPrice: 1950.5,
			EndTime: 1704499200, EndPrice: 1950.5,
			PriceDelta: 0, DayDelta: 1,
		},
	})
	if rows[0].StartDate != "2024/01/01" || rows[0].EndDate != "2024/01/05" {
		t.Errorf("dates = %q/%q", rows[0].StartDate, rows[0].EndDate)
	}
	if rows[0].PriceDelta != "-49.50" {
		t.Errorf("PriceDelta = %q, want \"-49.50\"", rows[0].PriceDelta)
	}
	if rows[0].DayDelta != "4天" {
		t.Errorf("DayDelta = %q, want \"4天\"", rows[0].DayDelta)
	}
	// zero delta still gets the explicit plus
	if rows[1].PriceDelta != "+0.00" {
		t.Errorf("zero delta = %q, want \"+0.00\"", rows[1].PriceDelta)
	}
}

func TestRawPivot_UnmarshalLooseTimestamps(t *testing.T) {
	var pts []model.RawPivot
	data := `[
		{"timestamp": "2024-01-01T00:00:00Z", "price": 2000, "kind": "Low"},
		{"timestamp": 1700000000, "price": 2050, "kind": "High"},
		{"timestamp": null, "price": 2100, "kind": "High"}
	]`
	if err := json.Unmarshal([]byte(data), &pts); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	cleaned, dropped := CleanPivots(pts)
	if dropped != 1 {
		t.Errorf("dropped = %d, want 1 (null timestamp)", dropped)
	}
	if len(cleaned) != 2 {
		t.Errorf("kept = %d, want 2", len(cleaned))
	}
}
