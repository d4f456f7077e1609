package task

import (
	"context"
	"sync"
	"time"
)

// StatusFunc fetches the current progress snapshot for a task, e.g. via
// GET /api/pivot-jobs/{id}.
type StatusFunc func(ctx context.Context, taskID string) (ProgressEvent, error)

// PollSource is the poll-loop ProgressSource used when the push channel is
// unavailable. It re-fetches the task status at a fixed interval and stops
// after the first terminal event.
type PollSource struct {
	Status   StatusFunc
	Interval time.Duration // default 1s
}

// NewPollSource builds a poll source around a status lookup.
func NewPollSource(status StatusFunc, interval time.Duration) *PollSource {
	if interval <= 0 {
		interval = time.Second
	}
	return &PollSource{Status: status, Interval: interval}
}

// Subscribe starts the poll loop. The first fetch happens immediately so a
// watcher gets state without waiting a full interval; an error there means
// the backend is unreachable and the subscription is refused.
func (p *PollSource) Subscribe(ctx context.Context, taskID string) (<-chan ProgressEvent, func(), error) {
	first, err := p.Status(ctx, taskID)
	if err != nil {
		return nil, nil, err
	}

	out := make(chan ProgressEvent, 8)
	pollCtx, cancel := context.WithCancel(ctx)
	var once sync.Once
	stop := func() { once.Do(cancel) }

	go func() {
		defer close(out)
		deliver := func(ev ProgressEvent) bool {
			select {
			case out <- ev:
			case <-pollCtx.Done():
				return false
			}
			return !ev.Terminal()
		}
		if !deliver(first) {
			return
		}
		ticker := time.NewTicker(p.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-pollCtx.Done():
				return
			case <-ticker.C:
				ev, err := p.Status(pollCtx, taskID)
				if err != nil {
					// transient fetch failure, try again next tick
					continue
				}
				if !deliver(ev) {
					return
				}
			}
		}
	}()

	return out, stop, nil
}
