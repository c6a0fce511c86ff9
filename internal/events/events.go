// Package events is the in-process bus the coordinator fans state changes out
// on. Delivery is asynchronous and fire-and-forget: a context without a
// listener for a topic simply never sees the event, which mirrors how tabs
// without a content script are ignored.
package events

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/deskhand/deskhand/internal/logging"
)

// Topics published by the coordinator.
const (
	TopicStateChanged   = "state.changed"
	TopicMessageUpdated = "message.updated"
	TopicKnowledgeFresh = "knowledge.refreshed"
)

// HandlerFunc is the erased form a typed handler is stored as.
type HandlerFunc func(context.Context, any) error

type event struct {
	topic   string
	message any
}

// Subscription is a handle for one subscribed handler.
type Subscription struct {
	Topic       string
	ID          string
	Handler     HandlerFunc
	Unsubscribe func()
}

type subscriberMap map[string]map[string]Subscription

// Bus routes events from emitters to topic subscribers through a single
// event-loop goroutine. Handlers run inline on that goroutine, so delivery
// order per topic matches emission order.
type Bus struct {
	subscribers atomic.Pointer[subscriberMap]
	nextSubID   int64

	events   chan event
	shutdown chan struct{}
	closed   int32
	wg       sync.WaitGroup
}

// NewBus creates a bus and starts its event loop.
func NewBus() *Bus {
	b := &Bus{
		events:   make(chan event, 256),
		shutdown: make(chan struct{}),
	}
	empty := make(subscriberMap)
	b.subscribers.Store(&empty)

	b.wg.Add(1)
	go b.eventLoop()
	return b
}

// Emit publishes value on topic. It fails only when the bus is saturated for
// a sustained period, which callers treat as best-effort loss.
func Emit[T any](b *Bus, topic string, value T) error {
	select {
	case b.events <- event{topic: topic, message: value}:
		return nil
	case <-time.After(5 * time.Second):
		return fmt.Errorf("event bus saturated, dropped %s", topic)
	}
}

// Subscribe registers a typed handler for topic and returns its subscription
// handle. Events whose payload is not a T are reported to the handler's topic
// log and skipped.
func Subscribe[T any](b *Bus, topic string, handler func(context.Context, T) error) Subscription {
	wrapped := HandlerFunc(func(ctx context.Context, data any) error {
		typed, ok := data.(T)
		if !ok {
			return fmt.Errorf("topic %s: payload is %T, want %T", topic, data, *new(T))
		}
		return handler(ctx, typed)
	})

	sub := Subscription{
		Topic:   topic,
		ID:      fmt.Sprintf("%s-%d", topic, atomic.AddInt64(&b.nextSubID, 1)),
		Handler: wrapped,
	}
	b.addSubscription(sub)
	sub.Unsubscribe = func() { b.removeSubscription(sub.Topic, sub.ID) }
	return sub
}

// Close drains the loop and stops delivery. Idempotent.
func (b *Bus) Close() {
	if atomic.CompareAndSwapInt32(&b.closed, 0, 1) {
		close(b.shutdown)
		done := make(chan struct{})
		go func() {
			b.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
		}
	}
}

func (b *Bus) eventLoop() {
	defer b.wg.Done()

	for {
		select {
		case <-b.shutdown:
			return
		case evt := <-b.events:
			subs := b.subscribers.Load()
			for _, sub := range (*subs)[evt.topic] {
				b.deliver(sub, evt)
			}
		}
	}
}

func (b *Bus) deliver(sub Subscription, evt event) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := sub.Handler(ctx, evt.message); err != nil {
		logging.Debugf("event handler error on %s (%s): %v", evt.topic, sub.ID, err)
	}
}

// addSubscription installs sub using copy-on-write so the event loop reads
// the subscriber map without locking.
func (b *Bus) addSubscription(sub Subscription) {
	for {
		old := b.subscribers.Load()
		next := copySubscribers(*old)
		if _, ok := next[sub.Topic]; !ok {
			next[sub.Topic] = make(map[string]Subscription)
		}
		next[sub.Topic][sub.ID] = sub
		if b.subscribers.CompareAndSwap(old, &next) {
			return
		}
	}
}

func (b *Bus) removeSubscription(topic, id string) {
	for {
		old := b.subscribers.Load()
		next := copySubscribers(*old)
		topicSubs, ok := next[topic]
		if !ok {
			return
		}
		if _, ok := topicSubs[id]; !ok {
			return
		}
		delete(topicSubs, id)
		if len(topicSubs) == 0 {
			delete(next, topic)
		}
		if b.subscribers.CompareAndSwap(old, &next) {
			return
		}
	}
}

func copySubscribers(original subscriberMap) subscriberMap {
	cp := make(subscriberMap, len(original))
	for topic, topicSubs := range original {
		cp[topic] = make(map[string]Subscription, len(topicSubs))
		for id, sub := range topicSubs {
			cp[topic][id] = sub
		}
	}
	return cp
}
