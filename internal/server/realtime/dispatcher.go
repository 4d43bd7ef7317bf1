// Package realtime fans record zone change events out to the connected
// devices of the same account.
package realtime

import (
	"context"
	"sync"
)

const defaultBufferSize = 16

// Event tells subscribers that Origin changed Zone of account UserID.
type Event struct {
	UserID string
	Zone   string
	Origin string
}

// Dispatcher delivers events to subscribers without blocking the
// publisher: a subscriber whose buffer is full misses the event.
type Dispatcher struct {
	mu          sync.RWMutex
	subscribers map[string]map[int64]*subscriber
	nextID      int64
	bufferSize  int
}

type subscriber struct {
	id     int64
	stream chan Event
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		subscribers: make(map[string]map[int64]*subscriber),
		bufferSize:  defaultBufferSize,
	}
}

// Subscribe registers for events of userID until ctx is done or the
// returned cancel func is called. The channel is never closed.
func (d *Dispatcher) Subscribe(ctx context.Context, userID string) (<-chan Event, func()) {
	if userID == "" {
		ch := make(chan Event)
		close(ch)
		return ch, func() {}
	}

	d.mu.Lock()
	d.nextID++
	sub := &subscriber{id: d.nextID, stream: make(chan Event, d.bufferSize)}
	if _, ok := d.subscribers[userID]; !ok {
		d.subscribers[userID] = make(map[int64]*subscriber)
	}
	d.subscribers[userID][sub.id] = sub
	d.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() { d.unregister(userID, sub.id) })
	}
	go func() {
		<-ctx.Done()
		cancel()
	}()
	return sub.stream, cancel
}

func (d *Dispatcher) Publish(ev Event) {
	if ev.UserID == "" {
		return
	}

	d.mu.RLock()
	subs := make([]*subscriber, 0, len(d.subscribers[ev.UserID]))
	for _, s := range d.subscribers[ev.UserID] {
		subs = append(subs, s)
	}
	d.mu.RUnlock()

	for _, s := range subs {
		select {
		case s.stream <- ev:
		default:
		}
	}
}

// Subscribers reports how many subscriptions userID holds.
func (d *Dispatcher) Subscribers(userID string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subscribers[userID])
}

func (d *Dispatcher) unregister(userID string, id int64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	subs := d.subscribers[userID]
	if subs == nil {
		return
	}
	delete(subs, id)
	if len(subs) == 0 {
		delete(d.subscribers, userID)
	}
}
