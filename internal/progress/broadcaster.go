package progress

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ErrObserverFull is returned by a ChannelObserver whose buffer is full.
	ErrObserverFull = errors.New("observer buffer full")
	// ErrObserverClosed is returned by a closed ChannelObserver.
	ErrObserverClosed = errors.New("observer closed")
)

// Observer receives events. Deliver must not block; an error removes the
// observer from the broadcaster.
type Observer interface {
	Deliver(Event) error
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event) error

// Deliver calls f(e).
func (f ObserverFunc) Deliver(e Event) error {
	return f(e)
}

// Publisher accepts events.
type Publisher interface {
	Publish(Event)
}

// Handle identifies a subscription.
type Handle uint64

// Broadcaster fans events out to every subscribed observer. There is no
// buffering or replay: observers only see events published after they join.
type Broadcaster struct {
	mu        sync.Mutex
	next      Handle
	observers map[Handle]Observer
	gauge     prometheus.Gauge
}

// Option configures a Broadcaster.
type Option func(*Broadcaster)

// WithSubscriberGauge tracks the number of observers in g.
func WithSubscriberGauge(g prometheus.Gauge) Option {
	return func(b *Broadcaster) {
		b.gauge = g
	}
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster(opts ...Option) *Broadcaster {
	b := &Broadcaster{observers: make(map[Handle]Observer)}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers o and returns its handle.
func (b *Broadcaster) Subscribe(o Observer) Handle {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.next++
	b.observers[b.next] = o
	b.updateGauge()
	return b.next
}

// Unsubscribe removes the observer registered under h. Unknown handles are ignored.
func (b *Broadcaster) Unsubscribe(h Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.observers, h)
	b.updateGauge()
}

// Publish delivers e to every observer and prunes those that fail.
// Observers are called outside the lock so they may unsubscribe themselves.
func (b *Broadcaster) Publish(e Event) {
	b.mu.Lock()
	snapshot := make(map[Handle]Observer, len(b.observers))
	for h, o := range b.observers {
		snapshot[h] = o
	}
	b.mu.Unlock()

	var failed []Handle
	for h, o := range snapshot {
		if err := o.Deliver(e); err != nil {
			failed = append(failed, h)
		}
	}
	if len(failed) == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, h := range failed {
		delete(b.observers, h)
	}
	b.updateGauge()
}

// Len returns the number of subscribed observers.
func (b *Broadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.observers)
}

func (b *Broadcaster) updateGauge() {
	if b.gauge != nil {
		b.gauge.Set(float64(len(b.observers)))
	}
}

// ChannelObserver delivers events to a buffered channel without blocking.
// A full buffer fails the delivery, which gets the observer pruned; Done is
// closed at that point so the consumer can stop reading.
type ChannelObserver struct {
	events chan Event
	done   chan struct{}
	once   sync.Once
}

// NewChannelObserver creates an observer with the given buffer size.
func NewChannelObserver(buffer int) *ChannelObserver {
	return &ChannelObserver{
		events: make(chan Event, buffer),
		done:   make(chan struct{}),
	}
}

// Deliver implements Observer.
func (c *ChannelObserver) Deliver(e Event) error {
	select {
	case <-c.done:
		return ErrObserverClosed
	default:
	}

	select {
	case c.events <- e:
		return nil
	default:
		c.Close()
		return ErrObserverFull
	}
}

// Events returns the receive side of the buffer.
func (c *ChannelObserver) Events() <-chan Event {
	return c.events
}

// Done is closed once the observer stops accepting events.
func (c *ChannelObserver) Done() <-chan struct{} {
	return c.done
}

// Close stops accepting events. It is safe to call more than once.
func (c *ChannelObserver) Close() {
	c.once.Do(func() { close(c.done) })
}
