package msg

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ismaiel54/futures-fix-trader/internal/events"
)

// ErrQueueFull is returned when the forwarder cannot accept more events
var ErrQueueFull = errors.New("event queue full")

// EventForwarder republishes domain events to Kafka. HandleEvent never blocks,
// so it is safe to subscribe on channels fed by the FIX session goroutine.
type EventForwarder struct {
	producer JSONProducer
	topic    string
	queue    chan events.Event
	logger   *zap.Logger
	dropped  int64
	now      func() time.Time
}

// NewEventForwarder creates a forwarder buffering up to size events
func NewEventForwarder(producer JSONProducer, topic string, size int, logger *zap.Logger) *EventForwarder {
	if size <= 0 {
		size = 1024
	}
	return &EventForwarder{
		producer: producer,
		topic:    topic,
		queue:    make(chan events.Event, size),
		logger:   logger,
		now:      time.Now,
	}
}

// HandleEvent queues ev for publication
func (f *EventForwarder) HandleEvent(ev events.Event) error {
	select {
	case f.queue <- ev:
		return nil
	default:
		atomic.AddInt64(&f.dropped, 1)
		return ErrQueueFull
	}
}

// Run publishes queued events until ctx is done
func (f *EventForwarder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-f.queue:
			m := NewEventMsg(ev, f.now())
			if err := f.producer.ProduceJSON(ctx, f.topic, m.Key, m); err != nil {
				f.logger.Error("failed to forward event",
					zap.String("channel", m.Channel),
					zap.String("key", m.Key),
					zap.Error(err),
				)
			}
		}
	}
}

// Dropped returns how many events were discarded because the queue was full
func (f *EventForwarder) Dropped() int64 {
	return atomic.LoadInt64(&f.dropped)
}
