// Package bus is the in-process event bus wiring polling, indicators,
// signals, validation and execution together. Channels are declared by name
// with the payload keys emitters must supply; listeners attach at startup
// and are fanned out concurrently on emit.
package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Event names.
const (
	SuccessAuthorization = "SUCCESS_AUTHORIZATION"
	NewCandles           = "NEW_CANDLES"
	IndicatorsReady      = "INDICATORS_READY"
	MarketIsValid        = "MARKET_IS_VALID"
	NewSignal            = "NEW_SIGNAL"
	LateSignal           = "LATE_SIGNAL"
	ValidEntrySignal     = "VALID_ENTRY_SIGNAL"
	ValidTPSignal        = "VALID_TP_SIGNAL"
	ValidSLSignal        = "VALID_SL_SIGNAL"
	ValidTPSLSignal      = "VALID_TP_SL_SIGNAL"
	OrderPlaced          = "ORDER_PLACED"
	OrderRejected        = "ORDER_REJECTED"
)

// Payload carries an emission's data. Listeners must treat it as immutable.
type Payload map[string]any

// Str reads a string value, "" when absent or differently typed.
func (p Payload) Str(key string) string {
	s, _ := p[key].(string)
	return s
}

// Listener handles one emission. It may block; emit waits for it.
type Listener func(ctx context.Context, p Payload)

type event struct {
	keys      []string
	listeners []Listener
}

// Bus is the event bus. Register and Attach are startup-time operations;
// attaching during an emit is not supported.
type Bus struct {
	mu     sync.RWMutex
	events map[string]*event
	log    *logrus.Entry
}

// New creates an empty bus.
func New(log *logrus.Entry) *Bus {
	return &Bus{
		events: make(map[string]*event),
		log:    log,
	}
}

// Register declares a channel and its payload schema. Multiple components
// declare the same events, so re-registering a name is a no-op; differing
// key sets keep the first declaration and log a warning.
func (b *Bus) Register(name string, keys []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ev, ok := b.events[name]; ok {
		if !sameKeys(ev.keys, keys) && b.log != nil {
			b.log.WithField("event", name).Warn("event re-registered with different keys, keeping first declaration")
		}
		return
	}
	b.events[name] = &event{keys: append([]string(nil), keys...)}
}

// Attach adds a listener to an event. Insertion order is preserved.
func (b *Bus) Attach(name string, l Listener) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	ev, ok := b.events[name]
	if !ok {
		return fmt.Errorf("attach to unregistered event %s", name)
	}
	ev.listeners = append(ev.listeners, l)
	return nil
}

// Emit dispatches the payload to all listeners attached at emit time,
// launched concurrently, and returns once all have completed. The payload
// must supply at least the declared keys; extras are allowed. A failing
// listener is logged and never cancels its siblings.
func (b *Bus) Emit(ctx context.Context, name string, p Payload) error {
	b.mu.RLock()
	ev, ok := b.events[name]
	if !ok {
		b.mu.RUnlock()
		return fmt.Errorf("emit of unregistered event %s", name)
	}
	keys := ev.keys
	listeners := append([]Listener(nil), ev.listeners...)
	b.mu.RUnlock()

	for _, k := range keys {
		if _, present := p[k]; !present {
			return fmt.Errorf("emit %s: payload missing declared key %q", name, k)
		}
	}

	var wg sync.WaitGroup
	for i, l := range listeners {
		wg.Add(1)
		go func(idx int, fn Listener) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil && b.log != nil {
					b.log.WithFields(logrus.Fields{
						"event":    name,
						"listener": idx,
						"panic":    r,
					}).Error("listener failed")
				}
			}()
			fn(ctx, p)
		}(i, l)
	}
	wg.Wait()
	return nil
}

// Listeners returns the listener count for an event, for tests and metrics.
func (b *Bus) Listeners(name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if ev, ok := b.events[name]; ok {
		return len(ev.listeners)
	}
	return 0
}

func sameKeys(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]bool, len(a))
	for _, k := range a {
		seen[k] = true
	}
	for _, k := range b {
		if !seen[k] {
			return false
		}
	}
	return true
}

// RegisterAll declares every core event with its payload contract.
// Safe to call from multiple components.
func RegisterAll(b *Bus) {
	b.Register(SuccessAuthorization, []string{"profile_id"})
	b.Register(NewCandles, []string{"symbol", "resolution"})
	b.Register(IndicatorsReady, []string{"symbol", "resolution"})
	b.Register(MarketIsValid, []string{"symbol"})
	b.Register(NewSignal, []string{"symbol", "setup", "side", "kind"})
	b.Register(LateSignal, []string{"symbol", "setup", "side", "kind"})
	b.Register(ValidEntrySignal, []string{"symbol", "setup", "side", "kind"})
	b.Register(ValidTPSignal, []string{"symbol", "setup", "side", "kind"})
	b.Register(ValidSLSignal, []string{"symbol", "setup", "side", "kind"})
	b.Register(ValidTPSLSignal, []string{"symbol", "setup", "side", "kind"})
	b.Register(OrderPlaced, []string{"symbol", "side", "amount", "price"})
	b.Register(OrderRejected, []string{"symbol", "side", "reason"})
}
