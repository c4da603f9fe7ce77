package bus

import (
	"strings"
	"sync"
	"time"
)

// InboundDebouncer coalesces rapid-fire inbound messages from the same
// session (a user sending several short messages in a row before the
// engine has picked up the first one) into a single merged message, so the
// engine sees one coherent turn instead of several fragments. Grounded on
// the teacher's call site `bus.NewInboundDebouncer(...)` in the inbound
// consumer loop.
type InboundDebouncer struct {
	window time.Duration
	flush  func(InboundMessage)

	mu      sync.Mutex
	pending map[string]*pendingBatch
}

type pendingBatch struct {
	msgs  []InboundMessage
	timer *time.Timer
}

// NewInboundDebouncer builds a debouncer that merges messages arriving
// within window of each other, invoking flush with the merged result once
// the window elapses with no further arrivals.
func NewInboundDebouncer(window time.Duration, flush func(InboundMessage)) *InboundDebouncer {
	return &InboundDebouncer{
		window:  window,
		flush:   flush,
		pending: make(map[string]*pendingBatch),
	}
}

// Submit adds msg to its session's pending batch, resetting that session's
// debounce timer. When the window expires the accumulated batch is merged
// (contents joined by newlines, in arrival order) and passed to flush.
func (d *InboundDebouncer) Submit(msg InboundMessage) {
	if d.window <= 0 {
		d.flush(msg)
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	// Channel messages arrive without a SessionKey; group them by
	// channel, chat and sender so different senders are never merged.
	key := msg.SessionKey
	if key == "" {
		key = msg.Channel + "|" + msg.ChatID + "|" + msg.SenderID
	}

	b, ok := d.pending[key]
	if !ok {
		b = &pendingBatch{}
		d.pending[key] = b
	}
	b.msgs = append(b.msgs, msg)

	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(d.window, func() { d.flushSession(key) })
}

// Stop cancels every pending debounce timer. Batches that have not been
// flushed yet are discarded.
func (d *InboundDebouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key, b := range d.pending {
		if b.timer != nil {
			b.timer.Stop()
		}
		delete(d.pending, key)
	}
}

func (d *InboundDebouncer) flushSession(key string) {
	d.mu.Lock()
	b, ok := d.pending[key]
	if !ok {
		d.mu.Unlock()
		return
	}
	delete(d.pending, key)
	d.mu.Unlock()

	if len(b.msgs) == 0 {
		return
	}
	merged := b.msgs[0]
	if len(b.msgs) > 1 {
		parts := make([]string, len(b.msgs))
		for i, m := range b.msgs {
			parts[i] = m.Content
		}
		merged.Content = strings.Join(parts, "\n")
		for _, m := range b.msgs[1:] {
			if len(m.Media) > 0 {
				merged.Media = append(merged.Media, m.Media...)
			}
		}
	}
	d.flush(merged)
}
