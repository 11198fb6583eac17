package events

import (
	"fmt"
	"reflect"
	"sync"

	"go.uber.org/zap"
)

// Listener receives events published on the channels it is subscribed to
type Listener interface {
	HandleEvent(Event) error
}

type listenerFunc struct {
	fn func(Event) error
}

func (l *listenerFunc) HandleEvent(ev Event) error {
	return l.fn(ev)
}

// NewListener wraps fn. Each call returns a distinct listener, so keep the
// returned value to unsubscribe later.
func NewListener(fn func(Event) error) Listener {
	return &listenerFunc{fn: fn}
}

// Bus dispatches events to listeners by channel
type Bus struct {
	mu        sync.Mutex
	listeners map[Channel][]Listener
	logger    *zap.Logger
}

// NewBus creates an empty bus
func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		listeners: make(map[Channel][]Listener),
		logger:    logger,
	}
}

// Subscribe adds l to channel. Subscribing the same listener twice is a no-op.
func (b *Bus) Subscribe(channel Channel, l Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, existing := range b.listeners[channel] {
		if sameListener(existing, l) {
			return
		}
	}
	b.listeners[channel] = append(b.listeners[channel], l)
}

// Unsubscribe removes l from channel
func (b *Bus) Unsubscribe(channel Channel, l Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()

	current := b.listeners[channel]
	for i, existing := range current {
		if sameListener(existing, l) {
			next := make([]Listener, 0, len(current)-1)
			next = append(next, current[:i]...)
			next = append(next, current[i+1:]...)
			b.listeners[channel] = next
			return
		}
	}
}

// sameListener compares a and b with == when their dynamic type allows it,
// and by deep equality for value types that cannot be compared
func sameListener(a, b Listener) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta == nil || ta.Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

// UnsubscribeAll removes every listener from every channel
func (b *Bus) UnsubscribeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = make(map[Channel][]Listener)
}

// Publish delivers ev to the listeners of channel in subscription order.
// Listeners run on the caller's goroutine, outside the bus lock. A listener
// that fails or panics is logged and the remaining listeners still run.
func (b *Bus) Publish(channel Channel, ev Event) {
	b.mu.Lock()
	listeners := b.listeners[channel]
	b.mu.Unlock()

	for _, l := range listeners {
		if err := b.deliver(l, ev); err != nil {
			b.logger.Error("event listener failed",
				zap.String("channel", string(channel)),
				zap.String("event", fmt.Sprintf("%T", ev)),
				zap.Error(err),
			)
		}
	}
}

func (b *Bus) deliver(l Listener, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panicked: %v", r)
		}
	}()
	return l.HandleEvent(ev)
}

// Len returns the number of listeners on channel
func (b *Bus) Len(channel Channel) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners[channel])
}
