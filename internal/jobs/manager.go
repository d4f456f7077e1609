package jobs

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"swing-systemv1/internal/logger"
	"swing-systemv1/internal/metrics"
	"swing-systemv1/internal/notification"
	"swing-systemv1/internal/store/sqlite"
	"swing-systemv1/internal/task"
	"swing-systemv1/internal/timeframe"
)

const (
	defaultCandleLimit = 100_000
	defaultBatchSize   = 10_000
)

// Publisher pushes progress events to the streaming channel. Nil disables
// push; pollers still see progress through Status.
type Publisher interface {
	PublishProgress(ctx context.Context, ev task.ProgressEvent) error
}

// Request describes one generation run.
type Request struct {
	Symbol    string  `json:"symbol"`
	Timeframe string  `json:"timeframe"`
	Algorithm string  `json:"algorithm"` // only "zigzag" is known
	Deviation float64 `json:"deviation"`
	Depth     int     `json:"depth"`
	Limit     int     `json:"limit"`     // candles to process
	BatchSize int     `json:"batchSize"` // candles per progress step
}

func (r *Request) normalize() error {
	if r.Symbol == "" {
		return fmt.Errorf("jobs: symbol is required")
	}
	tf, err := timeframe.Parse(r.Timeframe)
	if err != nil {
		return err
	}
	r.Timeframe = string(tf)
	if r.Algorithm == "" {
		r.Algorithm = "zigzag"
	}
	if r.Algorithm != "zigzag" {
		return fmt.Errorf("jobs: unknown algorithm %q", r.Algorithm)
	}
	if r.Limit <= 0 {
		r.Limit = defaultCandleLimit
	}
	if r.BatchSize <= 0 {
		r.BatchSize = defaultBatchSize
	}
	return nil
}

// Manager starts generation runs and tracks their progress snapshots for
// the polling endpoint.
type Manager struct {
	ctx   context.Context
	store *sqlite.Store
	pub   Publisher
	met   *metrics.Metrics

	// Notifier receives terminal alerts; nil skips them.
	Notifier notification.Notifier

	mu        sync.Mutex
	snapshots map[string]task.ProgressEvent
}

// NewManager builds a manager. Runs are bound to baseCtx, not to the
// request that started them, so an HTTP handler returning does not kill
// the job. pub and met may be nil.
func NewManager(baseCtx context.Context, store *sqlite.Store, pub Publisher, met *metrics.Metrics) *Manager {
	return &Manager{
		ctx:       baseCtx,
		store:     store,
		pub:       pub,
		met:       met,
		snapshots: make(map[string]task.ProgressEvent),
	}
}

// Start validates the request and launches the run. Returns the task ID
// the caller watches.
func (m *Manager) Start(req Request) (string, error) {
	if err := req.normalize(); err != nil {
		return "", err
	}
	taskID := logger.GenerateTraceID("swingjob", time.Now())

	m.publish(task.ProgressEvent{TaskID: taskID, Stage: "requested"})
	if m.met != nil {
		m.met.JobsStarted.Inc()
	}
	go m.run(taskID, req)

	log.Printf("[jobs] started %s: %s %s algo=%s deviation=%.1f depth=%d",
		taskID, req.Symbol, req.Timeframe, req.Algorithm, req.Deviation, req.Depth)
	return taskID, nil
}

// Status returns the latest progress snapshot for a task. Backs both the
// REST status endpoint and the poll-based progress source.
func (m *Manager) Status(taskID string) (task.ProgressEvent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.snapshots[taskID]
	return ev, ok
}

// publish records the snapshot and pushes the event if a publisher is set.
func (m *Manager) publish(ev task.ProgressEvent) {
	m.mu.Lock()
	m.snapshots[ev.TaskID] = ev
	m.mu.Unlock()

	if m.pub != nil {
		if err := m.pub.PublishProgress(m.ctx, ev); err != nil {
			log.Printf("[jobs] progress publish failed for %s: %v", ev.TaskID, err)
		}
	}
}

func (m *Manager) run(taskID string, req Request) {
	start := time.Now()
	fail := func(err error) {
		log.Printf("[jobs] %s failed: %v", taskID, err)
		if m.met != nil {
			m.met.JobsFailed.Inc()
		}
		m.publish(task.ProgressEvent{TaskID: taskID, Error: err.Error()})
		if m.Notifier != nil {
			m.Notifier.Send(m.ctx, notification.TaskFailed(taskID, err.Error()))
		}
	}

	m.publish(task.ProgressEvent{
		TaskID: taskID, Stage: "loading",
		LogLines: []string{fmt.Sprintf("loading candles for %s %s", req.Symbol, req.Timeframe)},
	})

	candles, err := m.store.Candles(m.ctx, req.Symbol, req.Timeframe, req.Limit)
	if err != nil {
		fail(fmt.Errorf("load candles: %w", err))
		return
	}
	if len(candles) == 0 {
		fail(fmt.Errorf("no candles stored for %s %s", req.Symbol, req.Timeframe))
		return
	}

	z := newZigZag(ZigZagParams{Deviation: req.Deviation, Depth: req.Depth})
	total := len(candles)
	for processed := 0; processed < total; {
		end := processed + req.BatchSize
		if end > total {
			end = total
		}
		for i := processed; i < end; i++ {
			z.feed(candles[i])
		}
		processed = end

		percent := float64(processed) / float64(total) * 95
		m.publish(task.ProgressEvent{
			TaskID:  taskID,
			Percent: percent,
			Stage:   "computing",
			LogLines: []string{
				fmt.Sprintf("processed %d/%d candles", processed, total),
			},
		})
	}

	pivots := z.finish()
	m.publish(task.ProgressEvent{
		TaskID: taskID, Percent: 95, Stage: "saving",
		LogLines: []string{fmt.Sprintf("saving %d swing points", len(pivots))},
	})
	if err := m.store.ReplaceSwingPoints(m.ctx, req.Symbol, req.Timeframe, req.Algorithm, pivots); err != nil {
		fail(fmt.Errorf("save swing points: %w", err))
		return
	}

	if m.met != nil {
		m.met.JobsDone.Inc()
		m.met.JobDuration.Observe(time.Since(start).Seconds())
		m.met.PivotsTotal.WithLabelValues(req.Symbol, req.Timeframe).Add(float64(len(pivots)))
	}
	log.Printf("[jobs] %s finished: %d swing points from %d candles in %v",
		taskID, len(pivots), total, time.Since(start))
	m.publish(task.ProgressEvent{TaskID: taskID, Percent: 100, Done: true})
	if m.Notifier != nil {
		m.Notifier.Send(m.ctx, notification.TaskCompleted(taskID, len(pivots)))
	}
}
