// Package chart abstracts the charting-widget surface the engines draw on:
// an overlay layer for markers and connector segments, and a price scale
// for pixel-to-price inversion. The real widget lives in the browser; a
// thin adapter mirrors the overlay state onto it.
package chart

// Handle identifies one drawn artifact so its owner can remove it later.
type Handle int64

// Marker is a single point annotation on the chart.
type Marker struct {
	Time  int64   `json:"time"` // epoch seconds or logical index, as drawn
	Price float64 `json:"price"`
	Color string  `json:"color"`
	Shape string  `json:"shape"` // "circle", "arrowUp", "arrowDown"
	Text  string  `json:"text,omitempty"`
}

// Segment is a straight connector between two chart points.
type Segment struct {
	StartTime  int64   `json:"startTime"`
	StartPrice float64 `json:"startPrice"`
	EndTime    int64   `json:"endTime"`
	EndPrice   float64 `json:"endPrice"`
	Color      string  `json:"color"`
	Dashed     bool    `json:"dashed"`
}

// Overlay is the drawing surface consumed by the measurement and swing
// engines. Implementations must be safe for concurrent use.
type Overlay interface {
	AddMarker(m Marker) Handle
	AddSegment(s Segment) Handle
	Remove(h Handle)
	SetVisible(visible bool)
}

// PriceScale exposes the widget's currently visible price range and pixel
// height, enough to invert a click's y coordinate into a price estimate.
type PriceScale interface {
	// VisibleRange returns the visible min/max price. ok is false when
	// the widget has no range yet (empty chart).
	VisibleRange() (min, max float64, ok bool)
	// Height returns the pane height in pixels, 0 if unknown.
	Height() float64
}

// InvertY estimates the price at pixel row y given a visible range and
// pane height. y grows downward, so y=0 maps to max.
func InvertY(y, min, max, height float64) (float64, bool) {
	if height <= 0 || max <= min {
		return 0, false
	}
	return min + (max-min)*(1-y/height), true
}
