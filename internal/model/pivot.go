package model

import (
	"bytes"
	"encoding/json"
)

// PivotKind marks a swing point as a price-high or price-low turn.
type PivotKind int

const (
	PivotHigh PivotKind = iota
	PivotLow
)

func (k PivotKind) String() string {
	if k == PivotLow {
		return "Low"
	}
	return "High"
}

// ParsePivotKind maps a loose kind string to a PivotKind. Anything that is
// not recognizably a low is treated as a high.
func ParsePivotKind(s string) PivotKind {
	switch s {
	case "Low", "low", "LOW", "L":
		return PivotLow
	}
	return PivotHigh
}

// PivotPoint is a normalized swing point: epoch-seconds time, numeric price.
type PivotPoint struct {
	Time  int64     `json:"time"`
	Price float64   `json:"price"`
	Kind  PivotKind `json:"-"`
}

// MarshalJSON emits the kind as its display string.
func (p PivotPoint) MarshalJSON() ([]byte, error) {
	type alias PivotPoint
	return json.Marshal(struct {
		alias
		Kind string `json:"kind"`
	}{alias(p), p.Kind.String()})
}

// RawPivot is a loosely-typed pivot record as delivered by upstream swing
// algorithms. Timestamps arrive as ISO-8601 strings or bare epoch numbers,
// and not every algorithm guarantees a price on every record.
type RawPivot struct {
	Timestamp string   `json:"timestamp"`
	Price     *float64 `json:"price"`
	Kind      string   `json:"kind"`
}

// UnmarshalJSON accepts both string and numeric timestamps.
func (r *RawPivot) UnmarshalJSON(data []byte) error {
	var loose struct {
		Timestamp json.RawMessage `json:"timestamp"`
		Price     *float64        `json:"price"`
		Kind      string          `json:"kind"`
	}
	if err := json.Unmarshal(data, &loose); err != nil {
		return err
	}
	r.Price = loose.Price
	r.Kind = loose.Kind
	r.Timestamp = ""
	if len(loose.Timestamp) > 0 && !bytes.Equal(loose.Timestamp, []byte("null")) {
		var s string
		if err := json.Unmarshal(loose.Timestamp, &s); err == nil {
			r.Timestamp = s
		} else {
			// bare number: keep the raw token, the cleaner parses it
			r.Timestamp = string(loose.Timestamp)
		}
	}
	return nil
}

// SwingLeg pairs two temporally-adjacent pivots after chronological sort.
type SwingLeg struct {
	StartTime  int64   `json:"startTime"`
	StartPrice float64 `json:"startPrice"`
	EndTime    int64   `json:"endTime"`
	EndPrice   float64 `json:"endPrice"`
	PriceDelta float64 `json:"priceDelta"` // end - start, signed
	DayDelta   int64   `json:"dayDelta"`   // whole days, floored
}
