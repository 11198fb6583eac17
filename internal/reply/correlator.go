package reply

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/ismaiel54/futures-fix-trader/internal/observability"
)

// DefaultTimeout bounds Await when the caller's context has no earlier deadline
const DefaultTimeout = 5 * time.Second

// ErrCorrelationTimeout matches every *TimeoutError
var ErrCorrelationTimeout = errors.New("correlation timeout")

// ErrAlreadyAwaited is returned when a second waiter registers for a pending id
var ErrAlreadyAwaited = errors.New("reply already awaited")

// TimeoutError reports that no reply arrived for ID in time
type TimeoutError struct {
	ID string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("no reply for %q before timeout", e.ID)
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrCorrelationTimeout
}

// Config holds correlator settings
type Config struct {
	Timeout time.Duration
	// ParkSize bounds replies held while nobody awaits them
	ParkSize int
	// ParkTTL drops parked replies nobody claimed
	ParkTTL time.Duration
}

type parked[T any] struct {
	id    string
	value T
}

// Correlator hands each reply to the single caller awaiting its id.
// Replies that arrive before anyone awaits them are parked in arrival order.
type Correlator[T any] struct {
	name    string
	timeout time.Duration
	logger  *zap.Logger

	mu      sync.Mutex
	waiters map[string]chan T
	parked  *expirable.LRU[uint64, parked[T]]
	seq     uint64
}

// New creates a correlator; name labels its logs and metrics
func New[T any](name string, cfg Config, logger *zap.Logger) *Correlator[T] {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	size := cfg.ParkSize
	if size <= 0 {
		size = 1024
	}
	ttl := cfg.ParkTTL
	if ttl <= 0 {
		ttl = time.Minute
	}

	c := &Correlator[T]{
		name:    name,
		timeout: timeout,
		logger:  logger,
		waiters: make(map[string]chan T),
	}
	c.parked = expirable.NewLRU[uint64, parked[T]](size, func(_ uint64, p parked[T]) {
		c.logger.Debug("parked reply dropped",
			zap.String("correlator", c.name),
			zap.String("id", p.id),
		)
	}, ttl)
	return c
}

// Deliver hands v to the waiter for id, or parks it when nobody is waiting.
// It reports whether a waiter received the value.
func (c *Correlator[T]) Deliver(id string, v T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ch, ok := c.waiters[id]; ok {
		delete(c.waiters, id)
		ch <- v
		return true
	}

	c.seq++
	c.parked.Add(c.seq, parked[T]{id: id, value: v})
	return false
}

// Await blocks until a reply for id arrives, ctx is done or the timeout elapses.
// A parked reply for id is returned immediately, oldest first.
func (c *Correlator[T]) Await(ctx context.Context, id string) (T, error) {
	var zero T

	c.mu.Lock()
	if v, ok := c.takeParked(id); ok {
		c.mu.Unlock()
		return v, nil
	}
	if _, exists := c.waiters[id]; exists {
		c.mu.Unlock()
		return zero, fmt.Errorf("%s %q: %w", c.name, id, ErrAlreadyAwaited)
	}
	ch := make(chan T, 1)
	c.waiters[id] = ch
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	select {
	case v := <-ch:
		return v, nil
	case <-ctx.Done():
	}

	c.mu.Lock()
	if c.waiters[id] == ch {
		delete(c.waiters, id)
	}
	c.mu.Unlock()

	// Deliver may have won the race with the deadline
	select {
	case v := <-ch:
		return v, nil
	default:
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		observability.ReplyTimeouts.WithLabelValues(c.name).Inc()
		c.logger.Warn("reply wait timed out",
			zap.String("correlator", c.name),
			zap.String("id", id),
		)
		return zero, &TimeoutError{ID: id}
	}
	return zero, fmt.Errorf("awaiting %s %q: %w", c.name, id, ctx.Err())
}

func (c *Correlator[T]) takeParked(id string) (T, bool) {
	for _, seq := range c.parked.Keys() {
		p, ok := c.parked.Peek(seq)
		if ok && p.id == id {
			c.parked.Remove(seq)
			return p.value, true
		}
	}
	var zero T
	return zero, false
}

// Parked returns the ids of parked replies, oldest first
func (c *Correlator[T]) Parked() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]string, 0, c.parked.Len())
	for _, seq := range c.parked.Keys() {
		if p, ok := c.parked.Peek(seq); ok {
			ids = append(ids, p.id)
		}
	}
	return ids
}

// Pending returns the number of registered waiters
func (c *Correlator[T]) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}
