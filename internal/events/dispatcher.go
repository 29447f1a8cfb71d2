package events

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-fieldio/internal/field"
)

// Logger defines the logging interface used by the Dispatcher.
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

// Publisher sends a payload to a message bus topic. The MQTT client
// implements it.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Broadcaster pushes a payload to subscribed WebSocket clients.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// Appender stores an event durably. history.EventLog implements it.
type Appender interface {
	Append(ctx context.Context, ev field.TriggerEvent) error
}

// TopicFunc maps an event to its bus topic.
type TopicFunc func(ev field.TriggerEvent) string

const (
	// Channel is the WebSocket channel trigger events are broadcast on.
	Channel = "field.trigger"

	// DefaultQueueSize is the dispatcher queue length used when none is given.
	DefaultQueueSize = 256

	publishQoS    = 1
	appendTimeout = 5 * time.Second
)

// Dispatcher delivers trigger events to its targets in the background.
type Dispatcher struct {
	publisher   Publisher
	topic       TopicFunc
	broadcaster Broadcaster
	appender    Appender
	logger      Logger

	queue     chan field.TriggerEvent
	dropped   atomic.Uint64
	delivered atomic.Uint64
	stopped   atomic.Bool
	// sendMu makes the stopped check and the enqueue one step with respect
	// to Stop.
	sendMu sync.RWMutex

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewDispatcher creates a dispatcher with no targets. A queueSize below one
// uses DefaultQueueSize.
func NewDispatcher(queueSize int) *Dispatcher {
	if queueSize < 1 {
		queueSize = DefaultQueueSize
	}
	return &Dispatcher{
		logger: noopLogger{},
		queue:  make(chan field.TriggerEvent, queueSize),
		done:   make(chan struct{}),
	}
}

// SetLogger sets the logger for the dispatcher.
func (d *Dispatcher) SetLogger(logger Logger) {
	d.logger = logger
}

// SetPublisher adds a message bus target. topic builds the topic per event.
// Call before Start.
func (d *Dispatcher) SetPublisher(p Publisher, topic TopicFunc) {
	d.publisher = p
	d.topic = topic
}

// SetBroadcaster adds a WebSocket target. Call before Start.
func (d *Dispatcher) SetBroadcaster(b Broadcaster) {
	d.broadcaster = b
}

// SetAppender adds a durable event log target. Call before Start.
func (d *Dispatcher) SetAppender(a Appender) {
	d.appender = a
}

// FieldTriggered implements field.EventSink. Events arriving after Stop
// are counted as dropped.
func (d *Dispatcher) FieldTriggered(ev field.TriggerEvent) {
	d.sendMu.RLock()
	defer d.sendMu.RUnlock()
	if d.stopped.Load() {
		n := d.dropped.Add(1)
		d.logger.Debug("dispatcher stopped, dropping trigger event",
			"moniker", ev.Moniker, "field", ev.Field, "dropped_total", n)
		return
	}
	select {
	case d.queue <- ev:
	default:
		n := d.dropped.Add(1)
		d.logger.Warn("event queue full, dropping trigger event",
			"moniker", ev.Moniker, "field", ev.Field, "dropped_total", n)
	}
}

// Dropped returns how many events were dropped on a full queue or after Stop.
func (d *Dispatcher) Dropped() uint64 { return d.dropped.Load() }

// Delivered returns how many events have been handed to the targets.
func (d *Dispatcher) Delivered() uint64 { return d.delivered.Load() }

// Start launches the delivery goroutine.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.stopped.Load() {
		return ErrDispatcherStopped
	}
	d.started = true

	ctx, d.cancel = context.WithCancel(ctx)
	go d.run(ctx)
	d.logger.Info("event dispatcher started",
		"queue_size", cap(d.queue),
		"mqtt", d.publisher != nil,
		"websocket", d.broadcaster != nil,
		"event_log", d.appender != nil,
	)
	return nil
}

// Stop stops accepting events, delivers what is queued and waits.
func (d *Dispatcher) Stop() {
	d.sendMu.Lock()
	d.stopped.Store(true)
	d.sendMu.Unlock()

	d.mu.Lock()
	started := d.started
	if d.cancel != nil {
		d.cancel()
	}
	d.mu.Unlock()

	if started {
		<-d.done
	}
}

func (d *Dispatcher) run(ctx context.Context) {
	defer close(d.done)
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		case <-ctx.Done():
			for {
				select {
				case ev := <-d.queue:
					d.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(ev field.TriggerEvent) {
	if d.appender != nil {
		ctx, cancel := context.WithTimeout(context.Background(), appendTimeout)
		if err := d.appender.Append(ctx, ev); err != nil {
			d.logger.Error("storing trigger event failed",
				"moniker", ev.Moniker, "field", ev.Field, "error", err)
		}
		cancel()
	}

	if d.publisher != nil && d.topic != nil {
		payload, err := json.Marshal(ev)
		if err != nil {
			d.logger.Error("encoding trigger event failed", "error", err)
		} else if err := d.publisher.Publish(d.topic(ev), payload, publishQoS, false); err != nil {
			d.logger.Warn("publishing trigger event failed",
				"moniker", ev.Moniker, "field", ev.Field, "error", err)
		}
	}

	if d.broadcaster != nil {
		d.broadcaster.Broadcast(Channel, ev)
	}

	d.delivered.Add(1)
	d.logger.Debug("trigger event delivered",
		"moniker", ev.Moniker, "field", ev.Field, "value", ev.Value, "serial", ev.Serial)
}
