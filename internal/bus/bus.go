// Package bus implements the typed inbound/outbound message queues that
// decouple channel instances from the agent engine (spec §4.1). The
// teacher ships only the interfaces (types.go); this file is the concrete
// MessageBus the rest of the tree dials against.
package bus

import (
	"container/list"
	"context"
	"sync"
)

// DefaultCapacity bounds the number of inbound messages buffered before
// PublishInbound blocks the calling channel poller.
const DefaultCapacity = 256

// MessageBus is the concrete MessageRouter + EventPublisher implementation.
// Inbound delivery is fair across sessions: messages are grouped into
// per-session FIFO queues, and ConsumeInbound round-robins across sessions
// that have pending work, so one chatty session cannot starve the others.
type MessageBus struct {
	mu       sync.Mutex
	notEmpty *sync.Cond

	queues map[string]*list.List // sessionKey -> *list.List of InboundMessage
	order  *list.List            // ring of session keys with pending messages
	posOf  map[string]*list.Element

	admission chan struct{} // capacity semaphore for backpressure

	outbound chan OutboundMessage

	dedupe *DedupeCache

	subMu sync.RWMutex
	subs  map[string]EventHandler
}

// New builds a MessageBus with the given inbound capacity and outbound
// buffer size. A capacity <= 0 uses DefaultCapacity.
func New(capacity int) *MessageBus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	b := &MessageBus{
		queues:    make(map[string]*list.List),
		order:     list.New(),
		posOf:     make(map[string]*list.Element),
		admission: make(chan struct{}, capacity),
		outbound:  make(chan OutboundMessage, capacity),
		dedupe:    NewDedupeCache(defaultDedupeTTL, defaultDedupeMaxSize),
		subs:      make(map[string]EventHandler),
	}
	b.notEmpty = sync.NewCond(&b.mu)
	return b
}

// Dedupe exposes the bus's outbound idempotency cache.
func (b *MessageBus) Dedupe() *DedupeCache { return b.dedupe }

// PublishInbound enqueues msg for delivery. It blocks once the bus's
// admission capacity is exhausted, matching spec §4.1's backpressure rule.
func (b *MessageBus) PublishInbound(msg InboundMessage) {
	b.admission <- struct{}{}

	b.mu.Lock()
	key := msg.SessionKey
	if key == "" {
		// Channel messages arrive without a SessionKey; queue per chat.
		key = msg.Channel + "|" + msg.ChatID
	}
	q, ok := b.queues[key]
	if !ok {
		q = list.New()
		b.queues[key] = q
		b.posOf[key] = b.order.PushBack(key)
	}
	q.PushBack(msg)
	b.notEmpty.Signal()
	b.mu.Unlock()
}

// ConsumeInbound blocks until a message is available or ctx is done. It
// round-robins across sessions with pending messages: each call advances
// past the session it just served, so a burst from one session never
// blocks delivery for another.
func (b *MessageBus) ConsumeInbound(ctx context.Context) (InboundMessage, bool) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			b.mu.Lock()
			b.notEmpty.Broadcast()
			b.mu.Unlock()
		case <-done:
		}
	}()
	defer close(done)

	b.mu.Lock()
	defer b.mu.Unlock()

	for {
		if ctx.Err() != nil {
			return InboundMessage{}, false
		}
		if elem := b.order.Front(); elem != nil {
			key := elem.Value.(string)
			q := b.queues[key]
			front := q.Front()
			msg := q.Remove(front).(InboundMessage)

			// Rotate this session to the back of the ring so the next
			// session (if any) gets a turn before this one is revisited.
			b.order.MoveToBack(elem)
			if q.Len() == 0 {
				b.order.Remove(elem)
				delete(b.queues, key)
				delete(b.posOf, key)
			}

			b.mu.Unlock()
			<-b.admission // release one slot of backpressure capacity
			b.mu.Lock()
			return msg, true
		}
		b.notEmpty.Wait()
	}
}

// PublishOutbound enqueues an outbound delivery. If msg carries an
// idempotency key seen within the dedupe window, the publish is coalesced
// (dropped) per spec §4.1.
func (b *MessageBus) PublishOutbound(msg OutboundMessage) {
	if key := idempotencyKey(msg); key != "" {
		if !b.dedupe.CheckAndSet(key) {
			return
		}
	}
	b.outbound <- msg
}

// SubscribeOutbound blocks until an outbound message is available or ctx is
// done.
func (b *MessageBus) SubscribeOutbound(ctx context.Context) (OutboundMessage, bool) {
	select {
	case msg := <-b.outbound:
		return msg, true
	case <-ctx.Done():
		return OutboundMessage{}, false
	}
}

func idempotencyKey(msg OutboundMessage) string {
	if msg.Metadata == nil {
		return ""
	}
	return msg.Metadata["idempotency_key"]
}

// Subscribe registers an event handler under id (implements EventPublisher).
func (b *MessageBus) Subscribe(id string, handler EventHandler) {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	b.subs[id] = handler
}

// Unsubscribe removes a previously registered handler.
func (b *MessageBus) Unsubscribe(id string) {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	delete(b.subs, id)
}

// Broadcast fans event out to every subscriber.
func (b *MessageBus) Broadcast(event Event) {
	b.subMu.RLock()
	defer b.subMu.RUnlock()
	for _, h := range b.subs {
		h(event)
	}
}

var _ MessageRouter = (*MessageBus)(nil)
var _ EventPublisher = (*MessageBus)(nil)
