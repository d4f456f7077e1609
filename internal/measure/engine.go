// Package measure implements the two-click distance measurement tool:
// it resolves ambiguous chart-click signals into price points, keeps a
// session of at most two points, and derives price/time deltas.
package measure

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"swing-systemv1/internal/chart"
	"swing-systemv1/internal/model"
	"swing-systemv1/internal/timeframe"
)

// Measurement tool colors: first click blue, second click red.
const (
	firstPointColor  = "#0066CC"
	secondPointColor = "#CC0000"
	connectorColor   = "#0066CC"
)

// ErrNoPrice is returned when every price-resolution strategy fails for a
// click. The session is left untouched; callers may ignore it.
var ErrNoPrice = errors.New("measure: no price resolvable for click")

// LastPriceFunc returns the most recently observed price for the active
// instrument, the last-resort resolution source.
type LastPriceFunc func(ctx context.Context) (float64, bool)

// Config parameterizes an Engine for one instrument/series.
type Config struct {
	// SeriesID keys the engine's series in click-signal price maps.
	SeriesID string
	// Timeframe drives the logical-index time-delta approximation.
	Timeframe timeframe.Timeframe
	// Band rejects implausible pixel-inversion estimates. Zero accepts all.
	Band model.PriceBand
	// SettleDelay defers result delivery after the second click so the
	// connector paints before the popup. Zero delivers synchronously.
	SettleDelay time.Duration
}

// Engine owns a measurement session and its overlay artifacts. All state
// transitions go through its methods; the session and handles are never
// mutated from outside.
type Engine struct {
	cfg       Config
	overlay   chart.Overlay
	scale     chart.PriceScale
	lastPrice LastPriceFunc
	onResult  func(model.MeasurementResult)

	mu      sync.Mutex
	active  bool
	points  []model.PricePoint // invariant: len <= 2
	handles []chart.Handle
}

// NewEngine builds a measurement engine. scale, lastPrice and onResult
// may be nil; the corresponding resolution step or delivery is skipped.
func NewEngine(cfg Config, overlay chart.Overlay, scale chart.PriceScale, lastPrice LastPriceFunc, onResult func(model.MeasurementResult)) *Engine {
	if cfg.Timeframe == "" {
		cfg.Timeframe = timeframe.M1
	}
	return &Engine{
		cfg:       cfg,
		overlay:   overlay,
		scale:     scale,
		lastPrice: lastPrice,
		onResult:  onResult,
	}
}

// Active reports whether measurement mode is on.
func (e *Engine) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// SetTimeframe switches the timeframe used for logical-index deltas.
func (e *Engine) SetTimeframe(tf timeframe.Timeframe) {
	e.mu.Lock()
	e.cfg.Timeframe = tf
	e.mu.Unlock()
}

// ToggleMode flips measurement mode. Turning it off clears the session and
// removes any drawn markers and connector. Returns the new mode.
func (e *Engine) ToggleMode() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.active = !e.active
	if !e.active {
		e.clearLocked()
	}
	return e.active
}

// Clear drops the session and tears down the overlay artifacts. Mode is
// left as-is.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clearLocked()
}

func (e *Engine) clearLocked() {
	e.points = e.points[:0]
	for _, h := range e.handles {
		e.overlay.Remove(h)
	}
	e.handles = e.handles[:0]
}

// PointCount returns the current session length (0, 1, or 2).
func (e *Engine) PointCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.points)
}

// HandleClick processes one chart click. Ignored while mode is off. If the
// session already holds two points the engine clears them and starts a
// fresh session with this click. A click whose price cannot be resolved
// returns ErrNoPrice without touching the session.
//
// Result delivery happens after the engine lock is released, so the
// onResult callback may call back into the engine.
func (e *Engine) HandleClick(ctx context.Context, sig model.ClickSignal) error {
	deliver, err := e.applyClick(ctx, sig)
	if deliver != nil {
		deliver()
	}
	return err
}

func (e *Engine) applyClick(ctx context.Context, sig model.ClickSignal) (func(), error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.active {
		return nil, nil
	}

	tv, ok := e.resolveTime(sig)
	if !ok {
		return nil, ErrNoPrice
	}
	price, ok := e.resolvePrice(ctx, sig)
	if !ok {
		log.Printf("[measure] click dropped: price unresolvable (t=%d)", tv.Value)
		return nil, ErrNoPrice
	}

	// Third click rolls the session over: tear everything down, then
	// start fresh with this point.
	if len(e.points) >= 2 {
		e.clearLocked()
	}

	p := model.PricePoint{Time: tv, Price: price}
	e.points = append(e.points, p)

	color := firstPointColor
	if len(e.points) == 2 {
		color = secondPointColor
	}
	e.handles = append(e.handles, e.overlay.AddMarker(chart.Marker{
		Time:  tv.Value,
		Price: price,
		Color: color,
		Shape: "circle",
	}))

	if len(e.points) == 2 {
		a, b := e.points[0], e.points[1]
		e.handles = append(e.handles, e.overlay.AddSegment(chart.Segment{
			StartTime:  a.Time.Value,
			StartPrice: a.Price,
			EndTime:    b.Time.Value,
			EndPrice:   b.Price,
			Color:      connectorColor,
			Dashed:     true,
		}))
		return e.deliveryLocked(), nil
	}
	return nil, nil
}

// deliveryLocked snapshots the completed session and returns the delivery
// step, which the caller runs once the engine lock is released.
func (e *Engine) deliveryLocked() func() {
	if e.onResult == nil {
		return nil
	}
	if e.cfg.SettleDelay <= 0 {
		res := Compute(e.points[0], e.points[1], e.cfg.Timeframe)
		return func() { e.onResult(res) }
	}
	delay := e.cfg.SettleDelay
	return func() {
		time.AfterFunc(delay, func() {
			if res, ok := e.ComputeResult(); ok {
				e.onResult(res)
			}
		})
	}
}

// ComputeResult derives the measurement for a complete session. Returns
// false when the session does not hold exactly two points.
func (e *Engine) ComputeResult() (model.MeasurementResult, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.points) != 2 {
		return model.MeasurementResult{}, false
	}
	return Compute(e.points[0], e.points[1], e.cfg.Timeframe), true
}

// resolvePrice walks the resolution chain: series-data map, series-prices
// map, pixel inversion bounded by the plausible band, then last known
// price. First success wins.
func (e *Engine) resolvePrice(ctx context.Context, sig model.ClickSignal) (float64, bool) {
	if p, ok := sig.SeriesData[e.cfg.SeriesID]; ok {
		return p, true
	}
	if p, ok := sig.SeriesPrices[e.cfg.SeriesID]; ok {
		return p, true
	}
	if sig.Y >= 0 && e.scale != nil {
		if min, max, ok := e.scale.VisibleRange(); ok {
			if p, ok := chart.InvertY(sig.Y, min, max, e.scale.Height()); ok {
				if e.cfg.Band.Contains(p) {
					return p, true
				}
				log.Printf("[measure] y-estimate %.2f outside band [%.2f, %.2f], discarded",
					p, e.cfg.Band.Min, e.cfg.Band.Max)
			}
		}
	}
	if e.lastPrice != nil {
		if p, ok := e.lastPrice(ctx); ok {
			return p, true
		}
	}
	return 0, false
}

// resolveTime prefers the signal's real timestamp and falls back to the
// logical index; the value is classified once here.
func (e *Engine) resolveTime(sig model.ClickSignal) (model.TimeValue, bool) {
	if sig.Time > 0 {
		return model.ClassifyTime(sig.Time), true
	}
	if sig.Logical >= 0 {
		return model.LogicalIndex(sig.Logical), true
	}
	return model.TimeValue{}, false
}
