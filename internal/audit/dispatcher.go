package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Config controls dispatcher buffering.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull makes Emit discard events instead of waiting for buffer space.
	DropIfFull bool
	// Logger receives drop and sink-panic reports. Nil discards them.
	Logger *zap.Logger
}

// dropLogEvery throttles drop reports to the first drop and every Nth after.
const dropLogEvery = 1024

// Dispatcher relays events to a Sink from one background goroutine, so slow
// sinks never sit on the token hot path. A nil *Dispatcher is a valid no-op.
type Dispatcher struct {
	sink       Sink
	dropIfFull bool
	logger     *zap.Logger

	mu      sync.RWMutex // guards closed and sends on queue
	closed  bool
	queue   chan Event
	drained chan struct{}

	dropped atomic.Uint64
}

// NewDispatcher starts a dispatcher, or returns nil when cfg is disabled.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	d := &Dispatcher{
		sink:       sink,
		dropIfFull: cfg.DropIfFull,
		logger:     logger,
		queue:      make(chan Event, size),
		drained:    make(chan struct{}),
	}
	go d.loop()
	return d
}

func (d *Dispatcher) loop() {
	defer close(d.drained)
	for event := range d.queue {
		d.deliver(event)
	}
}

func (d *Dispatcher) deliver(event Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("audit sink panicked",
				zap.String("event_type", event.EventType),
				zap.Any("panic", r),
			)
		}
	}()
	d.sink.Emit(context.Background(), event)
}

// Emit queues event, stamping Timestamp when it is zero. After Close it does
// nothing. In blocking mode it waits for buffer space until ctx is done.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	if d.dropIfFull {
		select {
		case d.queue <- event:
		default:
			d.recordDrop(event)
		}
		return
	}

	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case d.queue <- event:
	case <-ctx.Done():
		d.recordDrop(event)
	}
}

func (d *Dispatcher) recordDrop(event Event) {
	n := d.dropped.Add(1)
	if n == 1 || n%dropLogEvery == 0 {
		d.logger.Warn("audit events dropped",
			zap.Uint64("dropped_total", n),
			zap.String("last_event_type", event.EventType),
		)
	}
}

// Close stops intake and waits until every queued event reached the sink.
// It is safe to call more than once.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.drained
}

// Dropped returns how many events were discarded.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
