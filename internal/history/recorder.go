package history

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-fieldio/internal/field"
)

// Logger defines the logging interface used by the Recorder.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Saver persists a field value. SQLiteRepository implements it.
type Saver interface {
	Save(ctx context.Context, rec Record) error
}

// MetricWriter receives numeric field values for time-series storage. The
// InfluxDB client implements it.
type MetricWriter interface {
	WriteFieldValue(moniker, name string, value float64, at time.Time)
}

// DefaultQueueSize is the recorder queue length used when none is given.
const DefaultQueueSize = 1024

// saveTimeout bounds one database write.
const saveTimeout = 5 * time.Second

// Recorder persists field changes in the background. It implements
// field.Observer: FieldChanged never blocks, and changes arriving while the
// queue is full are dropped with a warning.
type Recorder struct {
	saver   Saver
	metrics MetricWriter
	logger  Logger

	queue   chan field.Snapshot
	dropped atomic.Uint64
	stopped atomic.Bool
	sendMu  sync.RWMutex // held across the stopped check and the enqueue

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewRecorder creates a recorder writing to saver. A queueSize below one
// uses DefaultQueueSize.
func NewRecorder(saver Saver, queueSize int) *Recorder {
	if queueSize < 1 {
		queueSize = DefaultQueueSize
	}
	return &Recorder{
		saver:  saver,
		logger: noopLogger{},
		queue:  make(chan field.Snapshot, queueSize),
		done:   make(chan struct{}),
	}
}

// SetLogger sets the logger for the recorder.
func (r *Recorder) SetLogger(logger Logger) {
	r.logger = logger
}

// SetMetrics adds a time-series writer for numeric fields. Call before
// Start.
func (r *Recorder) SetMetrics(m MetricWriter) {
	r.metrics = m
}

// FieldChanged implements field.Observer.
func (r *Recorder) FieldChanged(s field.Snapshot) {
	r.sendMu.RLock()
	defer r.sendMu.RUnlock()
	if r.stopped.Load() {
		r.dropped.Add(1)
		return
	}
	select {
	case r.queue <- s:
	default:
		n := r.dropped.Add(1)
		r.logger.Warn("history queue full, dropping field change",
			"moniker", s.Moniker, "field", s.Field, "dropped_total", n)
	}
}

// Dropped returns how many changes were dropped on a full queue or after Stop.
func (r *Recorder) Dropped() uint64 { return r.dropped.Load() }

// Start launches the background writer. It runs until ctx is cancelled or
// Stop is called.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started || r.stopped.Load() {
		return ErrRecorderStopped
	}
	r.started = true

	ctx, r.cancel = context.WithCancel(ctx)
	go r.run(ctx)
	r.logger.Info("history recorder started", "queue_size", cap(r.queue))
	return nil
}

// Stop stops accepting changes, writes what is already queued and waits for
// the writer to finish.
func (r *Recorder) Stop() {
	r.sendMu.Lock()
	r.stopped.Store(true)
	r.sendMu.Unlock()

	r.mu.Lock()
	started := r.started
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Unlock()

	if started {
		<-r.done
	}
}

func (r *Recorder) run(ctx context.Context) {
	defer close(r.done)
	for {
		select {
		case s := <-r.queue:
			r.record(s)
		case <-ctx.Done():
			r.drain()
			return
		}
	}
}

// drain writes whatever is still queued.
func (r *Recorder) drain() {
	for {
		select {
		case s := <-r.queue:
			r.record(s)
		default:
			return
		}
	}
}

func (r *Recorder) record(s field.Snapshot) {
	rec, err := RecordFromSnapshot(s)
	if err != nil {
		r.logger.Error("encoding field change failed", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := r.saver.Save(ctx, rec); err != nil {
		r.logger.Error("saving field change failed",
			"moniker", rec.Moniker, "field", rec.Field, "error", err)
	}

	if r.metrics != nil && !rec.InError {
		if v, ok := numeric(s.Value); ok {
			r.metrics.WriteFieldValue(rec.Moniker, rec.Field, v, rec.At)
		}
	}
}

// numeric returns the value of fields that chart as a number.
func numeric(v *field.Value) (float64, bool) {
	switch v.Type() {
	case field.TypeBool:
		if v.Bool() {
			return 1, true
		}
		return 0, true
	case field.TypeCard:
		return float64(v.Card()), true
	case field.TypeInt:
		return float64(v.Int()), true
	case field.TypeFloat:
		return v.Float(), true
	default:
		return 0, false
	}
}
