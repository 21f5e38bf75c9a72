package usecase

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/V4T54L/devrelay/internal/adapter/metrics"
	"github.com/V4T54L/devrelay/internal/adapter/pii"
	"github.com/V4T54L/devrelay/internal/domain"
	"github.com/V4T54L/devrelay/internal/stack"
)

// Subscriber receives every record recorded after it subscribed.
type Subscriber func(record domain.LogRecord)

type subscription struct {
	id uint64
	fn Subscriber
}

// LogRelay buffers captured records for the next render and broadcasts each one to the
// registered subscribers.
//
// Records are buffered and broadcast in the order Record is called. Dispatch is serialized:
// the goroutine that finds no dispatch in progress delivers queued records one at a time,
// calling subscribers without holding the lock. A record produced while a broadcast is
// running, including one logged by a subscriber, is delivered after that broadcast completes.
type LogRelay struct {
	instanceID string
	normalizer *stack.Normalizer
	redactor   *pii.Redactor
	metrics    *metrics.RelayMetrics
	logger     *slog.Logger

	mu          sync.Mutex
	records     []domain.LogRecord
	subs        []subscription
	nextSubID   uint64
	pending     []domain.LogRecord
	dispatching bool
}

// NewLogRelay creates a relay. redactor and m may be nil.
func NewLogRelay(instanceID string, normalizer *stack.Normalizer, redactor *pii.Redactor, m *metrics.RelayMetrics, logger *slog.Logger) *LogRelay {
	return &LogRelay{
		instanceID: instanceID,
		normalizer: normalizer,
		redactor:   redactor,
		metrics:    m,
		logger:     logger.With("component", "log_relay"),
		records:    make([]domain.LogRecord, 0, 64),
	}
}

// InstanceID identifies this process as the source of its records.
func (r *LogRelay) InstanceID() string {
	return r.instanceID
}

// Capture enriches a record produced by the capture layer and records it.
// It is meant to be used as the capture.Callback.
func (r *LogRelay) Capture(record domain.LogRecord, rawStack string) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Source == "" {
		record.Source = r.instanceID
	}
	if record.Date.IsZero() {
		record.Date = time.Now()
	}
	if r.normalizer != nil {
		record.Filename, record.Stack = r.normalizer.Normalize(rawStack)
	}
	if r.redactor != nil {
		r.redactor.Redact(&record)
	}
	r.Record(record)
}

// Record appends record to the buffer and broadcasts it to every subscriber.
func (r *LogRelay) Record(record domain.LogRecord) {
	r.mu.Lock()
	r.records = append(r.records, record)
	r.pending = append(r.pending, record)
	if r.metrics != nil {
		r.metrics.RecordsCaptured.WithLabelValues(record.Type).Inc()
	}
	if r.dispatching {
		r.mu.Unlock()
		return
	}
	r.dispatching = true

	for len(r.pending) > 0 {
		next := r.pending[0]
		r.pending[0] = domain.LogRecord{}
		r.pending = r.pending[1:]
		subs := r.subs
		r.mu.Unlock()

		for _, sub := range subs {
			r.deliver(sub, next)
		}

		r.mu.Lock()
	}
	r.pending = nil
	r.dispatching = false
	r.mu.Unlock()
}

// deliver calls one subscriber, isolating the others from its failure.
func (r *LogRelay) deliver(sub subscription, record domain.LogRecord) {
	defer func() {
		if p := recover(); p != nil {
			if r.metrics != nil {
				r.metrics.HandlerPanics.Inc()
			}
			r.logger.Error("log subscriber panicked", "subscriber", sub.id, "record_id", record.ID, "panic", p)
		}
	}()
	sub.fn(record)
}

// Subscribe registers fn for all future records. The returned function removes it; calling it
// more than once is a no-op.
func (r *LogRelay) Subscribe(fn Subscriber) (unsubscribe func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextSubID++
	id := r.nextSubID
	// Copy on write: an in-flight broadcast keeps iterating its own snapshot.
	subs := make([]subscription, len(r.subs), len(r.subs)+1)
	copy(subs, r.subs)
	r.subs = append(subs, subscription{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { r.unsubscribe(id) })
	}
}

func (r *LogRelay) unsubscribe(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs := make([]subscription, 0, len(r.subs))
	for _, s := range r.subs {
		if s.id != id {
			subs = append(subs, s)
		}
	}
	r.subs = subs
}

// Flush returns the buffered records in order and empties the buffer.
// The result is never nil.
func (r *LogRelay) Flush() []domain.LogRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := r.records
	r.records = make([]domain.LogRecord, 0, cap(out))
	return out
}

// Restore puts previously journaled records back into the buffer without broadcasting them.
func (r *LogRelay) Restore(records []domain.LogRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, records...)
}

// Len returns the number of buffered records.
func (r *LogRelay) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// Subscribers returns the number of registered subscribers.
func (r *LogRelay) Subscribers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}
