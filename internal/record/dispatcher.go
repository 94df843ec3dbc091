package record

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Dispatcher defaults.
const (
	DefaultQueueSize   = 256
	DefaultSendTimeout = 3 * time.Second
)

// DispatcherConfig tunes a Dispatcher.
type DispatcherConfig struct {
	// QueueSize bounds pending events. <= 0 uses DefaultQueueSize.
	QueueSize int
	// SendTimeout bounds one sink write. <= 0 uses DefaultSendTimeout.
	SendTimeout time.Duration
	// RatePerSecond throttles sink writes. <= 0 disables throttling.
	RatePerSecond float64
}

// Stats counts what a Dispatcher did with the events it was given.
type Stats struct {
	Written int64
	Failed  int64
	Dropped int64
}

// Dispatcher is an Emitter that hands events to a Sink on a single background
// worker. Emit never blocks: a full queue drops the event. Sink failures are
// logged and otherwise ignored; there are no retries.
type Dispatcher struct {
	sink    Sink
	cfg     DispatcherConfig
	limiter *rate.Limiter
	logger  *zap.Logger
	tracer  trace.Tracer

	mu     sync.RWMutex
	closed bool
	queue  chan Event
	done   chan struct{}

	written atomic.Int64
	failed  atomic.Int64
	dropped atomic.Int64
}

// NewDispatcher starts a Dispatcher writing to sink.
//
// Precondition: sink and logger must be non-nil.
// Postcondition: The worker goroutine is running; call Close to stop it.
func NewDispatcher(sink Sink, cfg DispatcherConfig, logger *zap.Logger) *Dispatcher {
	if sink == nil {
		panic("record.NewDispatcher: sink must not be nil")
	}
	if logger == nil {
		panic("record.NewDispatcher: logger must not be nil")
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = DefaultSendTimeout
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}

	d := &Dispatcher{
		sink:    sink,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
		tracer:  otel.Tracer("github.com/cory-johannsen/montauban/internal/record"),
		queue:   make(chan Event, cfg.QueueSize),
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

// Emit enqueues e for writing. It never blocks; when the queue is full or the
// dispatcher is closed the event is dropped.
func (d *Dispatcher) Emit(e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.dropped.Add(1)
		d.logger.Debug("record: dispatcher closed, event dropped", zap.String("kind", string(e.Kind)))
		return
	}
	select {
	case d.queue <- e:
	default:
		d.dropped.Add(1)
		d.logger.Warn("record: queue full, event dropped",
			zap.String("kind", string(e.Kind)),
			zap.String("session", e.SessionID),
		)
	}
}

// Close stops intake, writes what is already queued and waits for the worker.
// Calling Close more than once is safe.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.done
}

// Stats returns a snapshot of the dispatcher counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Written: d.written.Load(),
		Failed:  d.failed.Load(),
		Dropped: d.dropped.Load(),
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for e := range d.queue {
		d.write(e)
	}
}

func (d *Dispatcher) write(e Event) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.SendTimeout)
	defer cancel()

	if err := d.limiter.Wait(ctx); err != nil {
		d.failed.Add(1)
		d.logger.Warn("record: rate limiter wait failed", zap.String("kind", string(e.Kind)), zap.Error(err))
		return
	}

	ctx, span := d.tracer.Start(ctx, "record.write",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("event.kind", string(e.Kind)),
			attribute.String("event.session", e.SessionID),
		),
	)
	defer span.End()

	if err := d.sink.Write(ctx, e); err != nil {
		d.failed.Add(1)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		d.logger.Warn("record: sink write failed",
			zap.String("kind", string(e.Kind)),
			zap.String("session", e.SessionID),
			zap.Error(err),
		)
		return
	}
	d.written.Add(1)
}
