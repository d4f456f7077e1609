// Package resample rebuilds higher-timeframe candles from a lower
// timeframe by bucket aggregation. It backs the CSV import path, where
// only base-timeframe bars exist and every enabled timeframe has to be
// derived from them.
package resample

import (
	"fmt"
	"sort"
	"time"

	"swing-systemv1/internal/model"
	"swing-systemv1/internal/timeframe"
)

// Resample aggregates candles of timeframe from into timeframe to.
// Input order does not matter; output is chronological. The target must
// be a strict multiple of the source.
func Resample(candles []model.Candle, from, to timeframe.Timeframe) ([]model.Candle, error) {
	fromSec, toSec := from.Seconds(), to.Seconds()
	if toSec <= fromSec || toSec%fromSec != 0 {
		return nil, fmt.Errorf("resample: %s does not divide into %s", from, to)
	}
	if len(candles) == 0 {
		return nil, nil
	}

	sorted := make([]model.Candle, len(candles))
	copy(sorted, candles)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].TS.Before(sorted[j].TS) })

	var out []model.Candle
	var cur *model.Candle
	var curBucket int64 = -1

	for _, c := range sorted {
		ts := c.TS.Unix()
		bucket := ts - ts%toSec

		if cur == nil || bucket != curBucket {
			if cur != nil {
				out = append(out, *cur)
			}
			nc := c
			nc.Timeframe = string(to)
			nc.TS = time.Unix(bucket, 0).UTC()
			cur = &nc
			curBucket = bucket
			continue
		}

		if c.High > cur.High {
			cur.High = c.High
		}
		if c.Low < cur.Low {
			cur.Low = c.Low
		}
		cur.Close = c.Close
		cur.Volume += c.Volume
	}
	if cur != nil {
		out = append(out, *cur)
	}
	return out, nil
}

// RebuildAll derives every target timeframe from the base candles.
// Targets that the base cannot divide into are reported as errors but do
// not stop the others.
func RebuildAll(base []model.Candle, from timeframe.Timeframe, targets []timeframe.Timeframe) (map[timeframe.Timeframe][]model.Candle, []error) {
	out := make(map[timeframe.Timeframe][]model.Candle, len(targets))
	var errs []error
	for _, to := range targets {
		if to == from {
			continue
		}
		resampled, err := Resample(base, from, to)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out[to] = resampled
	}
	return out, errs
}
