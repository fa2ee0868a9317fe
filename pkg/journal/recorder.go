package journal

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gregLibert/hce-card/pkg/bridge"
	"github.com/gregLibert/hce-card/pkg/hce"
)

// DefaultQueueSize is the Recorder buffer when none is given.
const DefaultQueueSize = 256

// Recorder turns bridge events into journal entries off the serving
// goroutine. A full queue drops entries instead of stalling the link.
type Recorder struct {
	journal  *Journal
	classify func([]byte) hce.CommandKind
	log      *zap.Logger

	queue chan Entry
	wg    sync.WaitGroup
	once  sync.Once
}

// NewRecorder builds a Recorder. classify names the command of each exchange;
// nil uses hce.Classify.
func NewRecorder(j *Journal, classify func([]byte) hce.CommandKind, log *zap.Logger, capacity int) *Recorder {
	if classify == nil {
		classify = hce.Classify
	}
	if log == nil {
		log = zap.NewNop()
	}
	if capacity <= 0 {
		capacity = DefaultQueueSize
	}
	return &Recorder{
		journal:  j,
		classify: classify,
		log:      log,
		queue:    make(chan Entry, capacity),
	}
}

// Start launches the writer. It stops after Close has drained the queue.
func (r *Recorder) Start(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for e := range r.queue {
			r.writeWithRetry(ctx, e)
		}
	}()
}

// Observe implements bridge.Observer. It must not be called after Close.
func (r *Recorder) Observe(ev bridge.Event) {
	e := Entry{
		At:       ev.Time,
		Link:     ev.Link,
		Command:  ev.Command,
		Response: ev.Response,
		Elapsed:  ev.Elapsed,
	}
	if ev.Type == bridge.MsgDeactivated {
		e.Kind = "DEACTIVATED"
		e.Reason = ev.Reason.String()
	} else {
		e.Kind = r.classify(ev.Command).String()
	}

	select {
	case r.queue <- e:
	default:
		r.log.Warn("journal queue full, dropping entry", zap.String("kind", e.Kind))
	}
}

// Close flushes queued entries and waits for the writer.
func (r *Recorder) Close() {
	r.once.Do(func() { close(r.queue) })
	r.wg.Wait()
}

func (r *Recorder) writeWithRetry(ctx context.Context, e Entry) {
	const maxAttempts = 3
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := r.journal.Record(ctx, e)
		if err == nil {
			return
		}
		r.log.Error("journal write failed", zap.Int("attempt", attempt), zap.Error(err))
		if attempt == maxAttempts || ctx.Err() != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(attempt) * 300 * time.Millisecond):
		}
	}
}
