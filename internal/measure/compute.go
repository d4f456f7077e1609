package measure

import (
	"fmt"
	"math"

	"swing-systemv1/internal/model"
	"swing-systemv1/internal/timeframe"
)

// Compute derives the measurement between two resolved points. It is a
// pure function of the points and the timeframe.
func Compute(p1, p2 model.PricePoint, tf timeframe.Timeframe) model.MeasurementResult {
	change := p2.Price - p1.Price

	var pct float64
	if p1.Price != 0 {
		pct = math.Round(change/p1.Price*100*100) / 100
	}

	dir := model.DirectionFlat
	switch {
	case change > 0:
		dir = model.DirectionUp
	case change < 0:
		dir = model.DirectionDown
	}

	return model.MeasurementResult{
		PriceDiff:          math.Abs(change),
		PriceChangePercent: pct,
		PercentText:        formatSignedPercent(pct),
		TimeDeltaText:      timeDeltaText(p1.Time, p2.Time, tf),
		Direction:          dir,
		DirectionText:      dir.String(),
		DirectionGlyph:     dir.Glyph(),
	}
}

// timeDeltaText renders the elapsed time between the pair as 天/時/分.
//
// Classification is pairwise: only when both values are epoch timestamps is
// the diff exact. Otherwise both are treated as logical bar indices and the
// bar distance is scaled by the timeframe duration. That is a best-effort
// approximation, since the true bar-to-time mapping stays inside the chart
// widget. Callers should pass real epoch times whenever available.
func timeDeltaText(t1, t2 model.TimeValue, tf timeframe.Timeframe) string {
	var deltaMs int64
	if t1.Kind == model.TimeEpochSeconds && t2.Kind == model.TimeEpochSeconds {
		deltaMs = abs64(t2.Value-t1.Value) * 1000
	} else {
		deltaMs = abs64(t2.Value-t1.Value) * tf.Millis()
	}

	days := deltaMs / 86_400_000
	hours := (deltaMs % 86_400_000) / 3_600_000
	minutes := (deltaMs % 3_600_000) / 60_000
	return fmt.Sprintf("%d天%d時%d分", days, hours, minutes)
}

// formatSignedPercent renders a percent with an explicit sign, except for
// zero which stays "0.00".
func formatSignedPercent(pct float64) string {
	if pct == 0 {
		return "0.00"
	}
	return fmt.Sprintf("%+.2f", pct)
}

func abs64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
