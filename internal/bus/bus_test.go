package bus

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestEmit_AllListenersExactlyOnce(t *testing.T) {
	b := New(nil)
	b.Register("evt", []string{"symbol"})

	var a, c atomic.Int32
	b.Attach("evt", func(ctx context.Context, p Payload) { a.Add(1) })
	b.Attach("evt", func(ctx context.Context, p Payload) { c.Add(1) })

	if err := b.Emit(context.Background(), "evt", Payload{"symbol": "BTCIRT"}); err != nil {
		t.Fatal(err)
	}
	if a.Load() != 1 || c.Load() != 1 {
		t.Fatalf("listener counts = %d, %d; want 1, 1", a.Load(), c.Load())
	}
}

func TestEmit_WaitsForAllListeners(t *testing.T) {
	b := New(nil)
	b.Register("evt", nil)

	var done atomic.Bool
	b.Attach("evt", func(ctx context.Context, p Payload) {
		time.Sleep(50 * time.Millisecond)
		done.Store(true)
	})

	if err := b.Emit(context.Background(), "evt", Payload{}); err != nil {
		t.Fatal(err)
	}
	if !done.Load() {
		t.Fatal("emit returned before listener completed")
	}
}

func TestEmit_MissingDeclaredKey(t *testing.T) {
	b := New(nil)
	b.Register("evt", []string{"symbol", "side"})
	if err := b.Emit(context.Background(), "evt", Payload{"symbol": "BTCIRT"}); err == nil {
		t.Fatal("expected missing-key error")
	}
}

func TestEmit_ExtraKeysAllowed(t *testing.T) {
	b := New(nil)
	b.Register("evt", []string{"symbol"})
	err := b.Emit(context.Background(), "evt", Payload{"symbol": "BTCIRT", "extra": 1})
	if err != nil {
		t.Fatal(err)
	}
}

func TestEmit_PanickingListenerDoesNotCancelSiblings(t *testing.T) {
	b := New(nil)
	b.Register("evt", nil)

	var survived atomic.Int32
	b.Attach("evt", func(ctx context.Context, p Payload) { panic("boom") })
	b.Attach("evt", func(ctx context.Context, p Payload) { survived.Add(1) })
	b.Attach("evt", func(ctx context.Context, p Payload) { survived.Add(1) })

	if err := b.Emit(context.Background(), "evt", Payload{}); err != nil {
		t.Fatal(err)
	}
	if survived.Load() != 2 {
		t.Fatalf("%d siblings ran, want 2", survived.Load())
	}
}

func TestRegister_Idempotent(t *testing.T) {
	b := New(nil)
	b.Register("evt", []string{"a"})
	b.Attach("evt", func(ctx context.Context, p Payload) {})

	// Another component declaring the same event must not reset listeners.
	b.Register("evt", []string{"a"})
	if n := b.Listeners("evt"); n != 1 {
		t.Fatalf("listeners = %d after re-register, want 1", n)
	}

	// Differing keys keep the first declaration.
	b.Register("evt", []string{"b"})
	if err := b.Emit(context.Background(), "evt", Payload{"a": 1}); err != nil {
		t.Fatalf("first declaration should still hold: %v", err)
	}
}

func TestAttach_UnregisteredEvent(t *testing.T) {
	b := New(nil)
	if err := b.Attach("nope", func(ctx context.Context, p Payload) {}); err == nil {
		t.Fatal("expected unregistered-event error")
	}
}

func TestRegisterAll_SafeTwice(t *testing.T) {
	b := New(nil)
	RegisterAll(b)
	RegisterAll(b)
	if err := b.Emit(context.Background(), NewCandles, Payload{"symbol": "BTCIRT", "resolution": "60"}); err != nil {
		t.Fatal(err)
	}
}
