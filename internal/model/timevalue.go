package model

// EpochThreshold separates Unix-seconds timestamps from logical bar indices.
// Chart clicks deliver both through the same numeric field: real timestamps
// are always above 1e9 (2001-09-09), logical indices never get close.
const EpochThreshold = 1_000_000_000

// TimeKind tags how a TimeValue's raw number is to be interpreted.
type TimeKind int

const (
	// TimeEpochSeconds means the value is a Unix timestamp in seconds.
	TimeEpochSeconds TimeKind = iota
	// TimeLogicalIndex means the value is a bar position along the
	// visible sequence. Positions only approximate real time.
	TimeLogicalIndex
)

// TimeValue is a time encoding classified once at the chart boundary and
// never re-guessed downstream.
type TimeValue struct {
	Kind  TimeKind
	Value int64
}

// ClassifyTime resolves a raw numeric time from a chart event into a tagged
// TimeValue using the magnitude threshold.
func ClassifyTime(raw int64) TimeValue {
	if raw > EpochThreshold {
		return TimeValue{Kind: TimeEpochSeconds, Value: raw}
	}
	return TimeValue{Kind: TimeLogicalIndex, Value: raw}
}

// EpochSeconds builds an epoch-tagged TimeValue.
func EpochSeconds(ts int64) TimeValue {
	return TimeValue{Kind: TimeEpochSeconds, Value: ts}
}

// LogicalIndex builds a logical-index-tagged TimeValue.
func LogicalIndex(idx int64) TimeValue {
	return TimeValue{Kind: TimeLogicalIndex, Value: idx}
}
