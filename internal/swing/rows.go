package swing

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"swing-systemv1/internal/model"
)

// ListRow is one display row of the swing table. All fields are
// pre-formatted strings; no business logic lives here beyond sign
// handling.
type ListRow struct {
	StartDate  string `json:"startDate"`
	EndDate    string `json:"endDate"`
	StartPrice string `json:"startPrice"`
	EndPrice   string `json:"endPrice"`
	PriceDelta string `json:"priceDelta"` // explicit "+" for non-negative
	DayDelta   string `json:"dayDelta"`   // integer count with 天 suffix
}

// ToListRows formats legs for the swing list view: short dates, 2-decimal
// prices, signed deltas, day counts.
func ToListRows(legs []model.SwingLeg) []ListRow {
	rows := make([]ListRow, 0, len(legs))
	for _, leg := range legs {
		rows = append(rows, ListRow{
			StartDate:  shortDate(leg.StartTime),
			EndDate:    shortDate(leg.EndTime),
			StartPrice: strconv.FormatFloat(leg.StartPrice, 'f', 2, 64),
			EndPrice:   strconv.FormatFloat(leg.EndPrice, 'f', 2, 64),
			PriceDelta: fmt.Sprintf("%+.2f", leg.PriceDelta),
			DayDelta:   fmt.Sprintf("%d天", leg.DayDelta),
		})
	}
	return rows
}

func shortDate(epochSec int64) string {
	return time.Unix(epochSec, 0).UTC().Format("2006/01/02")
}

// parsePivotTime parses the loose timestamp encodings upstream algorithms
// emit: ISO-8601 variants, plain dates, or bare epoch numbers (seconds or
// milliseconds, split at 1e12).
func parsePivotTime(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Unix(), true
		}
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(n) && !math.IsInf(n, 0) {
		if n > 1e12 { // milliseconds
			return int64(n / 1000), true
		}
		if n > 0 {
			return int64(n), true
		}
	}
	return 0, false
}

func pivotPrice(p *float64) (float64, bool) {
	if p == nil || math.IsNaN(*p) || math.IsInf(*p, 0) {
		return 0, false
	}
	return *p, true
}
