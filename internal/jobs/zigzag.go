// Package jobs runs asynchronous swing-point generation: the ZigZag pivot
// algorithm over stored candles, with progress reporting over a publish
// channel and results persisted for the pivot API.
package jobs

import (
	"swing-systemv1/internal/model"
)

// ZigZagParams tune the pivot detector.
type ZigZagParams struct {
	// Deviation is the minimum reversal in percent before a new pivot
	// is confirmed.
	Deviation float64 `json:"deviation"`
	// Depth is the minimum bar distance between confirmed pivots.
	Depth int `json:"depth"`
}

// DefaultZigZagParams mirror the generator's long-standing defaults.
func DefaultZigZagParams() ZigZagParams {
	return ZigZagParams{Deviation: 5.0, Depth: 12}
}

func (p ZigZagParams) normalized() ZigZagParams {
	if p.Deviation <= 0 {
		p.Deviation = 5.0
	}
	if p.Depth <= 0 {
		p.Depth = 12
	}
	return p
}

// ZigZag detects alternating swing highs and lows over chronological
// candles. A candidate extreme becomes a pivot once price retraces by at
// least Deviation percent against it and the candidate sits at least
// Depth bars from the previous pivot. The trailing unconfirmed extreme is
// emitted as a final provisional pivot so the last leg is never lost.
func ZigZag(candles []model.Candle, params ZigZagParams) []model.PivotPoint {
	z := newZigZag(params)
	for i := range candles {
		z.feed(candles[i])
	}
	return z.finish()
}

// zigzag is the streaming form of the detector so the batch runner can
// feed candles incrementally and report progress between batches.
type zigzag struct {
	p ZigZagParams

	bar          int // bars seen so far
	up           bool
	candBar      int
	candTS       int64
	candPrice    float64
	lastPivotBar int
	pivots       []model.PivotPoint
}

// Detector is the incremental form of ZigZag for pipelines that feed
// candles in batches and report progress between them.
type Detector struct {
	z *zigzag
}

// NewDetector creates an incremental detector.
func NewDetector(params ZigZagParams) *Detector {
	return &Detector{z: newZigZag(params)}
}

// Feed advances the detector by one candle.
func (d *Detector) Feed(c model.Candle) { d.z.feed(c) }

// Finish emits the trailing provisional pivot and returns all pivots.
func (d *Detector) Finish() []model.PivotPoint { return d.z.finish() }

func newZigZag(params ZigZagParams) *zigzag {
	return &zigzag{p: params.normalized(), up: true, lastPivotBar: -1}
}

func (z *zigzag) commit(kind model.PivotKind) {
	z.pivots = append(z.pivots, model.PivotPoint{
		Time:  z.candTS,
		Price: z.candPrice,
		Kind:  kind,
	})
	z.lastPivotBar = z.candBar
}

func (z *zigzag) depthOK() bool {
	return z.lastPivotBar < 0 || z.candBar-z.lastPivotBar >= z.p.Depth
}

func (z *zigzag) setCandidate(c model.Candle, price float64) {
	z.candBar = z.bar
	z.candTS = c.TS.Unix()
	z.candPrice = price
}

func (z *zigzag) feed(c model.Candle) {
	if z.bar == 0 {
		// start tracking a rising extreme from the first bar's high;
		// the first committed pivot corrects the guess if price falls
		z.setCandidate(c, c.High)
		z.bar++
		return
	}

	if z.up {
		if c.High > z.candPrice {
			z.setCandidate(c, c.High)
		} else if z.candPrice > 0 &&
			(z.candPrice-c.Low)/z.candPrice*100 >= z.p.Deviation && z.depthOK() {
			z.commit(model.PivotHigh)
			z.up = false
			z.setCandidate(c, c.Low)
		}
	} else {
		if c.Low < z.candPrice {
			z.setCandidate(c, c.Low)
		} else if z.candPrice > 0 &&
			(c.High-z.candPrice)/z.candPrice*100 >= z.p.Deviation && z.depthOK() {
			z.commit(model.PivotLow)
			z.up = true
			z.setCandidate(c, c.High)
		}
	}
	z.bar++
}

// finish emits the trailing provisional pivot and returns the full list.
func (z *zigzag) finish() []model.PivotPoint {
	if z.bar == 0 {
		return nil
	}
	if z.candBar > z.lastPivotBar {
		kind := model.PivotHigh
		if !z.up {
			kind = model.PivotLow
		}
		z.commit(kind)
	}
	return z.pivots
}
