package bus

import (
	"context"
	"testing"
	"time"
)

func TestConsumeInboundFairnessAcrossSessions(t *testing.T) {
	b := New(16)

	for i := 0; i < 3; i++ {
		b.PublishInbound(InboundMessage{SessionKey: "a", Content: "a"})
	}
	b.PublishInbound(InboundMessage{SessionKey: "b", Content: "b"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	first, ok := b.ConsumeInbound(ctx)
	if !ok || first.SessionKey != "a" {
		t.Fatalf("expected first message from session a, got %+v ok=%v", first, ok)
	}

	second, ok := b.ConsumeInbound(ctx)
	if !ok || second.SessionKey != "b" {
		t.Fatalf("expected round-robin to serve session b next, got %+v ok=%v", second, ok)
	}
}

func TestConsumeInboundBlocksUntilCancel(t *testing.T) {
	b := New(4)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, ok := b.ConsumeInbound(ctx)
	if ok {
		t.Fatalf("expected ConsumeInbound to time out with no messages published")
	}
}

func TestPublishOutboundDedupe(t *testing.T) {
	b := New(4)
	msg := OutboundMessage{Channel: "telegram", ChatID: "1", Content: "hi", Metadata: map[string]string{"idempotency_key": "k1"}}

	b.PublishOutbound(msg)
	b.PublishOutbound(msg) // duplicate within window, should be coalesced

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if _, ok := b.SubscribeOutbound(ctx); !ok {
		t.Fatalf("expected first outbound delivery")
	}

	ctx2, cancel2 := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel2()
	if _, ok := b.SubscribeOutbound(ctx2); ok {
		t.Fatalf("expected duplicate publish to be coalesced, got a second delivery")
	}
}

func TestDedupeCacheExpiry(t *testing.T) {
	c := NewDedupeCache(20*time.Millisecond, 10)
	if !c.CheckAndSet("x") {
		t.Fatalf("first CheckAndSet should succeed")
	}
	if c.CheckAndSet("x") {
		t.Fatalf("second CheckAndSet within window should be a duplicate")
	}
	time.Sleep(30 * time.Millisecond)
	if !c.CheckAndSet("x") {
		t.Fatalf("CheckAndSet after TTL expiry should succeed again")
	}
}

func TestInboundDebouncerMergesBurst(t *testing.T) {
	flushed := make(chan InboundMessage, 1)
	d := NewInboundDebouncer(20*time.Millisecond, func(m InboundMessage) { flushed <- m })

	d.Submit(InboundMessage{SessionKey: "s", Content: "one"})
	d.Submit(InboundMessage{SessionKey: "s", Content: "two"})

	select {
	case m := <-flushed:
		if m.Content != "one\ntwo" {
			t.Fatalf("expected merged content, got %q", m.Content)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for debounced flush")
	}
}
