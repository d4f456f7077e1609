package gateway

import (
	"swing-systemv1/internal/model"
	"swing-systemv1/internal/swing"
	"swing-systemv1/internal/task"
)

// jobStarted is the response to POST /api/pivot-jobs.
type jobStarted struct {
	TaskID string `json:"taskId"`
}

// jobStatus is the poll snapshot for GET /api/pivot-jobs/{id}.
type jobStatus struct {
	task.ProgressEvent
	State string `json:"state"`
}

func statusOf(ev task.ProgressEvent) jobStatus {
	st := task.Requested
	switch {
	case ev.Error != "":
		st = task.Failed
	case ev.Done:
		st = task.Done
	case ev.Percent > 0 || ev.Stage == "computing" || ev.Stage == "saving":
		st = task.Running
	}
	return jobStatus{ProgressEvent: ev, State: st.String()}
}

// clickResponse reports what a measurement click did. An unresolvable
// click is not an HTTP error; the engine just ignores it.
type clickResponse struct {
	Resolved bool                     `json:"resolved"`
	Points   int                      `json:"points"`
	Result   *model.MeasurementResult `json:"result,omitempty"`
}

// measureState is the response to GET /api/measure.
type measureState struct {
	Active bool                     `json:"active"`
	Points int                      `json:"points"`
	Result *model.MeasurementResult `json:"result,omitempty"`
}

// computeRequest is a stateless two-point measurement.
type computeRequest struct {
	Point1    pointDTO `json:"point1"`
	Point2    pointDTO `json:"point2"`
	Timeframe string   `json:"timeframe"`
}

type pointDTO struct {
	// Time is an epoch-seconds timestamp or a logical bar index; values
	// below the epoch threshold are treated as indices.
	Time  int64   `json:"time"`
	Price float64 `json:"price"`
}

func (p pointDTO) pricePoint() model.PricePoint {
	return model.PricePoint{Time: model.ClassifyTime(p.Time), Price: p.Price}
}

// pivotsResponse carries stored pivots plus the formatted leg listing.
type pivotsResponse struct {
	Symbol    string             `json:"symbol"`
	Timeframe string             `json:"timeframe"`
	Algorithm string             `json:"algorithm"`
	Pivots    []model.PivotPoint `json:"pivots"`
	Rows      []swing.ListRow    `json:"rows"`
}

// loadResponse reports a swing-overlay load.
type loadResponse struct {
	Loaded  int `json:"loaded"`
	Dropped int `json:"dropped"`
	Legs    int `json:"legs"`
}

// wsFrame is one WebSocket progress message.
type wsFrame struct {
	Type     string   `json:"type"` // "progress", "done", "failed"
	TaskID   string   `json:"taskId"`
	Percent  float64  `json:"percent,omitempty"`
	LogLines []string `json:"logLines,omitempty"`
	Reason   string   `json:"reason,omitempty"`
}
