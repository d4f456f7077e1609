// Package task observes a long-running pivot-generation job: it tracks the
// Idle → Requested → Running → Done|Failed lifecycle and consumes progress
// from interchangeable push or poll backends.
package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// State is the observed lifecycle stage of a generation task.
type State int

const (
	Idle State = iota
	Requested
	Running
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Requested:
		return "requested"
	case Running:
		return "running"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return "idle"
	}
}

// ProgressEvent is one progress message from the compute backend.
type ProgressEvent struct {
	TaskID   string   `json:"taskId"`
	Percent  float64  `json:"percent"`
	LogLines []string `json:"logLines,omitempty"`
	Stage    string   `json:"stage,omitempty"`
	Done     bool     `json:"done,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// Terminal reports whether the event ends the task.
func (ev ProgressEvent) Terminal() bool {
	return ev.Done || ev.Error != ""
}

// ProgressSource delivers progress events for a task. Implementations are
// interchangeable: a push listener (PubSub/WebSocket) or a poll loop.
type ProgressSource interface {
	// Subscribe starts delivery for taskID. The returned stop function
	// ends the subscription and closes the channel; events that would
	// arrive after stop are dropped, never delivered.
	Subscribe(ctx context.Context, taskID string) (<-chan ProgressEvent, func(), error)
}

// Callbacks receive lifecycle notifications. Nil members are skipped.
type Callbacks struct {
	OnProgress func(percent float64, logs []string)
	OnDone     func()
	OnFailed   func(reason string)
}

// ErrNoSource is returned when both the push and the poll backend refuse a
// subscription.
var ErrNoSource = errors.New("task: no progress source available")

// Watcher consumes one task's progress at a time. Starting a new watch
// supersedes the previous one: a superseded subscription's late events are
// discarded rather than applied (last-watch-wins).
type Watcher struct {
	primary  ProgressSource
	fallback ProgressSource
	cb       Callbacks

	mu      sync.Mutex
	state   State
	taskID  string
	percent float64
	gen     uint64
	stop    func()
}

// NewWatcher builds a watcher with a primary (push) source and an optional
// fallback (poll) source used when the primary cannot subscribe.
func NewWatcher(primary, fallback ProgressSource, cb Callbacks) *Watcher {
	return &Watcher{primary: primary, fallback: fallback, cb: cb}
}

// State returns the current lifecycle stage.
func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Percent returns the last observed progress percent.
func (w *Watcher) Percent() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.percent
}

// TaskID returns the task being watched, "" when idle.
func (w *Watcher) TaskID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.taskID
}

// Watch starts observing taskID, superseding any in-flight watch. If the
// primary source cannot subscribe it falls back to the poll source; if
// both fail the watcher resets to Idle and the error is returned so the
// caller can surface a notification and retry.
func (w *Watcher) Watch(ctx context.Context, taskID string) error {
	w.mu.Lock()
	if w.stop != nil {
		w.stop()
		w.stop = nil
	}
	w.gen++
	gen := w.gen
	w.state = Requested
	w.taskID = taskID
	w.percent = 0
	w.mu.Unlock()

	events, stop, err := w.subscribe(ctx, taskID)
	if err != nil {
		w.mu.Lock()
		if w.gen == gen {
			w.state = Idle
			w.taskID = ""
		}
		w.mu.Unlock()
		return err
	}

	w.mu.Lock()
	if w.gen != gen {
		// superseded while subscribing
		w.mu.Unlock()
		stop()
		return nil
	}
	w.stop = stop
	w.mu.Unlock()

	go w.consume(gen, events)
	return nil
}

func (w *Watcher) subscribe(ctx context.Context, taskID string) (<-chan ProgressEvent, func(), error) {
	if w.primary != nil {
		if events, stop, err := w.primary.Subscribe(ctx, taskID); err == nil {
			return events, stop, nil
		}
	}
	if w.fallback != nil {
		if events, stop, err := w.fallback.Subscribe(ctx, taskID); err == nil {
			return events, stop, nil
		}
	}
	return nil, nil, ErrNoSource
}

// Stop ends the current watch and resets to Idle. Safe to call when idle.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stop != nil {
		w.stop()
		w.stop = nil
	}
	w.gen++
	w.state = Idle
	w.taskID = ""
	w.percent = 0
}

func (w *Watcher) consume(gen uint64, events <-chan ProgressEvent) {
	for ev := range events {
		w.mu.Lock()
		if w.gen != gen {
			// stale subscription, discard everything
			w.mu.Unlock()
			return
		}
		switch {
		case ev.Error != "":
			w.state = Failed
			w.stop = nil
			w.mu.Unlock()
			if w.cb.OnFailed != nil {
				w.cb.OnFailed(ev.Error)
			}
			return
		case ev.Done:
			w.state = Done
			w.percent = 100
			w.stop = nil
			w.mu.Unlock()
			if w.cb.OnDone != nil {
				w.cb.OnDone()
			}
			return
		default:
			w.state = Running
			w.percent = ev.Percent
			w.mu.Unlock()
			if w.cb.OnProgress != nil {
				w.cb.OnProgress(ev.Percent, ev.LogLines)
			}
		}
	}

	// channel closed without a terminal event: treat as failure
	w.mu.Lock()
	if w.gen != gen || w.state == Done || w.state == Failed || w.state == Idle {
		w.mu.Unlock()
		return
	}
	w.state = Failed
	w.stop = nil
	w.mu.Unlock()
	if w.cb.OnFailed != nil {
		w.cb.OnFailed(fmt.Sprintf("progress channel closed at %.1f%%", w.Percent()))
	}
}
