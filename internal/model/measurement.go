package model

// PricePoint is a resolved chart selection: a classified time plus a price.
type PricePoint struct {
	Time  TimeValue
	Price float64
}

// ClickSignal carries the raw fields a charting widget hands over on a
// click or crosshair event. Every field is optional; the measurement
// engine resolves price and time from whichever are present.
type ClickSignal struct {
	// Time is the bar's Unix timestamp in seconds, 0 if the widget did
	// not supply one.
	Time int64 `json:"time,omitempty"`
	// Logical is the bar's logical index along the visible sequence.
	// Negative means absent.
	Logical int64 `json:"logical"`
	// SeriesData maps series ID to the bar price at the click
	// (primary lookup, most authoritative).
	SeriesData map[string]float64 `json:"seriesData,omitempty"`
	// SeriesPrices is the secondary per-series price map some chart
	// builds expose instead of SeriesData.
	SeriesPrices map[string]float64 `json:"seriesPrices,omitempty"`
	// Y is the raw pixel y coordinate of the click, negative if absent.
	Y float64 `json:"y"`
}

// Direction classifies a two-point price move.
type Direction int

const (
	DirectionFlat Direction = iota
	DirectionUp
	DirectionDown
)

// Glyph returns the display arrow for the direction.
func (d Direction) Glyph() string {
	switch d {
	case DirectionUp:
		return "↑"
	case DirectionDown:
		return "↓"
	default:
		return "→"
	}
}

func (d Direction) String() string {
	switch d {
	case DirectionUp:
		return "Up"
	case DirectionDown:
		return "Down"
	default:
		return "Flat"
	}
}

// MeasurementResult is derived from a complete two-point session. It is
// computed on demand and never stored back into the session.
type MeasurementResult struct {
	PriceDiff          float64   `json:"priceDiff"`          // absolute
	PriceChangePercent float64   `json:"priceChangePercent"` // signed, 2-decimal
	PercentText        string    `json:"percentText"`        // "+2.50", "-1.10", "0.00"
	TimeDeltaText      string    `json:"timeDeltaText"`      // "0天1時0分"
	Direction          Direction `json:"-"`
	DirectionText      string    `json:"direction"`
	DirectionGlyph     string    `json:"directionGlyph"`
}

// PriceBand is the plausible price range for an instrument, used to reject
// nonsense estimates from pixel inversion. A zero band accepts everything.
type PriceBand struct {
	Min float64
	Max float64
}

// Contains reports whether p falls inside the band.
func (b PriceBand) Contains(p float64) bool {
	if b.Min == 0 && b.Max == 0 {
		return true
	}
	return p >= b.Min && p <= b.Max
}
