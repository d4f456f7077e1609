package chart

import "sync"

// Canvas is an in-memory Overlay and PriceScale. It records every drawn
// artifact so the gateway can serve the overlay state to the front-end
// adapter, and stands in for the widget in tests.
type Canvas struct {
	mu       sync.RWMutex
	next     Handle
	markers  map[Handle]Marker
	segments map[Handle]Segment
	visible  bool

	min, max, height float64
	hasRange         bool
}

// NewCanvas creates an empty, visible canvas with no price scale set.
func NewCanvas() *Canvas {
	return &Canvas{
		markers:  make(map[Handle]Marker),
		segments: make(map[Handle]Segment),
		visible:  true,
	}
}

func (c *Canvas) AddMarker(m Marker) Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next++
	c.markers[c.next] = m
	return c.next
}

func (c *Canvas) AddSegment(s Segment) Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next++
	c.segments[c.next] = s
	return c.next
}

// Remove deletes an artifact; unknown handles are ignored so teardown is
// idempotent.
func (c *Canvas) Remove(h Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.markers, h)
	delete(c.segments, h)
}

func (c *Canvas) SetVisible(visible bool) {
	c.mu.Lock()
	c.visible = visible
	c.mu.Unlock()
}

// SetPriceScale records the visible price range and pane height reported
// by the widget.
func (c *Canvas) SetPriceScale(min, max, height float64) {
	c.mu.Lock()
	c.min, c.max, c.height = min, max, height
	c.hasRange = max > min
	c.mu.Unlock()
}

func (c *Canvas) VisibleRange() (float64, float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.min, c.max, c.hasRange
}

func (c *Canvas) Height() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.height
}

// Snapshot is a point-in-time copy of the canvas contents.
type Snapshot struct {
	Visible  bool      `json:"visible"`
	Markers  []Marker  `json:"markers"`
	Segments []Segment `json:"segments"`
}

// Snapshot returns the current overlay contents for serving to the
// front-end adapter.
func (c *Canvas) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap := Snapshot{
		Visible:  c.visible,
		Markers:  make([]Marker, 0, len(c.markers)),
		Segments: make([]Segment, 0, len(c.segments)),
	}
	for _, m := range c.markers {
		snap.Markers = append(snap.Markers, m)
	}
	for _, s := range c.segments {
		snap.Segments = append(snap.Segments, s)
	}
	return snap
}

// Counts returns the number of markers and segments currently drawn.
func (c *Canvas) Counts() (markers, segments int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.markers), len(c.segments)
}
