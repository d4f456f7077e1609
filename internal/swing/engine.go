// Package swing normalizes externally computed pivot points, drives the
// chart overlay layer for them, and derives the tabular swing-leg listing.
package swing

import (
	"log"
	"sort"
	"sync"

	"swing-systemv1/internal/chart"
	"swing-systemv1/internal/model"
)

const (
	highMarkerColor = "#00CC00"
	lowMarkerColor  = "#CC0000"
	legColor        = "#888888"
)

// Engine owns the cleaned pivot list and its overlay artifacts. The pivot
// list is replaced wholesale on every load, never merged.
type Engine struct {
	overlay chart.Overlay

	mu      sync.Mutex
	pivots  []model.PivotPoint
	handles []chart.Handle
	visible bool
}

// NewEngine creates a swing engine drawing on the given overlay. The swing
// layer starts visible.
func NewEngine(overlay chart.Overlay) *Engine {
	return &Engine{overlay: overlay, visible: true}
}

// LoadPivots cleans and installs a fresh pivot list, replacing any prior
// one. Records with missing or unparseable timestamps or non-finite prices
// are dropped; the dropped count is returned for logging.
func (e *Engine) LoadPivots(raw []model.RawPivot) int {
	cleaned, dropped := CleanPivots(raw)
	if dropped > 0 {
		log.Printf("[swing] dropped %d malformed pivot records (%d kept)", dropped, len(cleaned))
	}

	e.mu.Lock()
	e.pivots = cleaned
	e.mu.Unlock()
	return dropped
}

// Pivots returns a copy of the current cleaned, sorted pivot list.
func (e *Engine) Pivots() []model.PivotPoint {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]model.PivotPoint, len(e.pivots))
	copy(out, e.pivots)
	return out
}

// Legs returns the adjacent-pair legs for the current pivot list.
func (e *Engine) Legs() []model.SwingLeg {
	return BuildLegs(e.Pivots())
}

// Visible reports whether the swing layer is shown.
func (e *Engine) Visible() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.visible
}

// SetVisible toggles the swing layer and redraws accordingly. Toggling
// never re-fetches or re-pairs; it only changes what is drawn.
func (e *Engine) SetVisible(visible bool) {
	e.mu.Lock()
	e.visible = visible
	e.mu.Unlock()
	e.RenderOverlay()
}

// RenderOverlay tears down all previously drawn swing artifacts and, if
// the layer is visible, draws a marker per pivot and a connector segment
// per consecutive pair. Teardown completes before any redraw so a failed
// or repeated call never duplicates artifacts.
func (e *Engine) RenderOverlay() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, h := range e.handles {
		e.overlay.Remove(h)
	}
	e.handles = e.handles[:0]

	if !e.visible {
		return
	}

	for i, p := range e.pivots {
		color := highMarkerColor
		shape := "arrowDown"
		if p.Kind == model.PivotLow {
			color = lowMarkerColor
			shape = "arrowUp"
		}
		e.handles = append(e.handles, e.overlay.AddMarker(chart.Marker{
			Time:  p.Time,
			Price: p.Price,
			Color: color,
			Shape: shape,
		}))
		if i > 0 {
			prev := e.pivots[i-1]
			e.handles = append(e.handles, e.overlay.AddSegment(chart.Segment{
				StartTime:  prev.Time,
				StartPrice: prev.Price,
				EndTime:    p.Time,
				EndPrice:   p.Price,
				Color:      legColor,
			}))
		}
	}
}

// Clear drops the pivot list and removes all swing artifacts.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pivots = nil
	for _, h := range e.handles {
		e.overlay.Remove(h)
	}
	e.handles = e.handles[:0]
}

// CleanPivots filters, sorts, and normalizes raw pivot records. It is a
// pure function: records with a missing/unparseable timestamp or a
// missing/non-finite price are dropped, survivors are stable-sorted by
// time ascending.
func CleanPivots(raw []model.RawPivot) (cleaned []model.PivotPoint, dropped int) {
	cleaned = make([]model.PivotPoint, 0, len(raw))
	for _, r := range raw {
		ts, ok := parsePivotTime(r.Timestamp)
		if !ok {
			dropped++
			continue
		}
		price, ok := pivotPrice(r.Price)
		if !ok {
			dropped++
			continue
		}
		cleaned = append(cleaned, model.PivotPoint{
			Time:  ts,
			Price: price,
			Kind:  model.ParsePivotKind(r.Kind),
		})
	}
	sort.SliceStable(cleaned, func(i, j int) bool {
		return cleaned[i].Time < cleaned[j].Time
	})
	return cleaned, dropped
}

// BuildLegs pairs temporally-adjacent pivots: N pivots yield N-1 legs.
// Pairing is pure index adjacency after the chronological sort, with no
// alternation check, so same-direction pivot runs from upstream pass
// through untouched.
func BuildLegs(pivots []model.PivotPoint) []model.SwingLeg {
	if len(pivots) < 2 {
		return nil
	}
	legs := make([]model.SwingLeg, 0, len(pivots)-1)
	for i := 0; i+1 < len(pivots); i++ {
		a, b := pivots[i], pivots[i+1]
		legs = append(legs, model.SwingLeg{
			StartTime:  a.Time,
			StartPrice: a.Price,
			EndTime:    b.Time,
			EndPrice:   b.Price,
			PriceDelta: b.Price - a.Price,
			DayDelta:   (b.Time - a.Time) / 86400,
		})
	}
	return legs
}
