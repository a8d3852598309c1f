package plug

import (
	"errors"
	"log/slog"
	"reflect"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/james-see/midiplug/pkg/event"
)

// Subscription binds a target's handler to a kind filter and a channel filter
type Subscription struct {
	id      uint64
	target  any
	handler HandlerName
	kind    event.Kind
	channel int
	removed atomic.Bool
}

// ID returns the registration sequence number
func (s *Subscription) ID() uint64 { return s.id }

// Target returns the subscribed target
func (s *Subscription) Target() any { return s.target }

// Handler returns the receiver method invoked on the target
func (s *Subscription) Handler() HandlerName { return s.handler }

// Kind returns the kind filter
func (s *Subscription) Kind() event.Kind { return s.kind }

// Channel returns the channel filter, AnyChannel for all channels
func (s *Subscription) Channel() int { return s.channel }

// Active reports whether the subscription is still registered
func (s *Subscription) Active() bool { return !s.removed.Load() }

// Matches reports whether ev passes the subscription's kind and channel filters
func (s *Subscription) Matches(ev event.Event) bool {
	if s.kind != event.KindAny && s.kind != ev.Kind() {
		return false
	}
	if s.channel == AnyChannel || !event.IsChannelFiltered(ev) {
		return true
	}
	ch, _ := event.ChannelOf(ev)
	return int(ch) == s.channel
}

// Registry is an ordered set of subscriptions and the dispatcher over them.
// The subscription list is copy-on-write: Dispatch iterates a snapshot, so
// handlers may plug and unplug on the same registry while being invoked.
type Registry struct {
	mu     sync.Mutex
	subs   []*Subscription
	nextID uint64
	logger *slog.Logger

	dispatched atomic.Uint64
	invoked    atomic.Uint64
	failed     atomic.Uint64
	panicked   atomic.Uint64
}

// Option configures a Registry
type Option func(*Registry)

// WithLogger sets the logger for the registry
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// NewRegistry creates an empty registry
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Plug subscribes target's handler for events of kind on channel.
// It returns nil without registering when the target does not implement the
// handler, the channel is not AnyChannel or 0-15, or the kind is unknown.
func (r *Registry) Plug(target any, handler HandlerName, channel int, kind event.Kind) *Subscription {
	switch {
	case target == nil:
		r.logger.Debug("plug skipped: nil target", "handler", handler)
		return nil
	case !handler.ImplementedBy(target):
		r.logger.Debug("plug skipped: handler not implemented", "handler", handler, "target", reflect.TypeOf(target))
		return nil
	case channel < AnyChannel || channel > 15:
		r.logger.Debug("plug skipped: invalid channel", "handler", handler, "channel", channel)
		return nil
	case !kind.Valid():
		r.logger.Debug("plug skipped: invalid kind", "handler", handler, "kind", uint8(kind))
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	sub := &Subscription{
		id:      r.nextID,
		target:  target,
		handler: handler,
		kind:    kind,
		channel: channel,
	}

	subs := make([]*Subscription, len(r.subs), len(r.subs)+1)
	copy(subs, r.subs)
	r.subs = append(subs, sub)

	return sub
}

// Register subscribes target for events of kind on channel, using the
// receiver that matches the kind (EventReceiver for KindAny).
func (r *Registry) Register(target any, kind event.Kind, channel int) *Subscription {
	handler, ok := HandlerFor(kind)
	if !ok {
		r.logger.Debug("register skipped: invalid kind", "kind", uint8(kind))
		return nil
	}
	return r.Plug(target, handler, channel, kind)
}

// PlugAll registers the standard receivers target implements: note-on,
// note-off and controller on channel, program change and sysex on every channel.
func (r *Registry) PlugAll(target any, channel int) []*Subscription {
	if target == nil {
		return nil
	}

	bundle := []struct {
		handler HandlerName
		channel int
		kind    event.Kind
	}{
		{NoteOnHandler, channel, event.KindNoteOn},
		{NoteOffHandler, channel, event.KindNoteOff},
		{ControllerHandler, channel, event.KindController},
		{ProgramChangeHandler, AnyChannel, event.KindProgramChange},
		{SysexHandler, AnyChannel, event.KindSysex},
	}

	var subs []*Subscription
	for _, b := range bundle {
		if sub := r.Plug(target, b.handler, b.channel, b.kind); sub != nil {
			subs = append(subs, sub)
		}
	}
	return subs
}

// Unplug removes every subscription of target
func (r *Registry) Unplug(target any) int {
	return r.removeWhere(func(s *Subscription) bool {
		return sameTarget(s.target, target)
	}, false)
}

// UnplugChannel removes every subscription of target whose channel filter is channel
func (r *Registry) UnplugChannel(target any, channel int) int {
	return r.removeWhere(func(s *Subscription) bool {
		return s.channel == channel && sameTarget(s.target, target)
	}, false)
}

// UnplugHandler removes the earliest subscription matching target, handler and channel
func (r *Registry) UnplugHandler(target any, handler HandlerName, channel int) bool {
	return r.removeWhere(func(s *Subscription) bool {
		return s.handler == handler && s.channel == channel && sameTarget(s.target, target)
	}, true) == 1
}

// Remove removes a single subscription
func (r *Registry) Remove(sub *Subscription) bool {
	if sub == nil {
		return false
	}
	return r.removeWhere(func(s *Subscription) bool {
		return s == sub
	}, true) == 1
}

// Clear removes all subscriptions
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.subs {
		s.removed.Store(true)
	}
	r.subs = nil
}

// Len returns the number of subscriptions
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// Subscriptions returns the subscriptions in registration order
func (r *Registry) Subscriptions() []*Subscription {
	subs := r.snapshot()
	if len(subs) == 0 {
		return nil
	}
	result := make([]*Subscription, len(subs))
	copy(result, subs)
	return result
}

func (r *Registry) snapshot() []*Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.subs
}

func (r *Registry) removeWhere(match func(*Subscription) bool, first bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := make([]*Subscription, 0, len(r.subs))
	removed := 0
	for _, s := range r.subs {
		if (!first || removed == 0) && match(s) {
			s.removed.Store(true)
			removed++
			continue
		}
		kept = append(kept, s)
	}

	if removed > 0 {
		r.subs = kept
	}
	return removed
}

// Dispatch invokes every matching subscription's handler with ev, in
// registration order, on the calling goroutine. Overlapping subscriptions of
// the same target each invoke it. A failing or panicking handler does not stop
// the pass; all faults are returned joined once the pass completes.
func (r *Registry) Dispatch(ev event.Event) error {
	if ev == nil {
		return nil
	}
	r.dispatched.Add(1)

	var faults []error
	for _, sub := range r.snapshot() {
		// Removed by an earlier handler in this pass
		if !sub.Active() || !sub.Matches(ev) {
			continue
		}

		called, err := r.invoke(sub, ev)
		if called {
			r.invoked.Add(1)
		}
		if err != nil {
			faults = append(faults, err)
		}
	}

	if len(faults) > 0 {
		r.logger.Debug("dispatch completed with faults", "kind", ev.Kind(), "faults", len(faults))
	}
	return errors.Join(faults...)
}

func (r *Registry) invoke(sub *Subscription, ev event.Event) (called bool, err error) {
	defer func() {
		if v := recover(); v != nil {
			r.panicked.Add(1)
			called = true
			err = &PanicError{
				SubscriptionID: sub.id,
				Handler:        sub.handler,
				Kind:           ev.Kind(),
				Value:          v,
				Stack:          debug.Stack(),
			}
		}
	}()

	called, err = sub.handler.invoke(sub.target, ev)
	if err != nil {
		r.failed.Add(1)
		err = &HandlerError{
			SubscriptionID: sub.id,
			Handler:        sub.handler,
			Kind:           ev.Kind(),
			Err:            err,
		}
	}
	return called, err
}

// Stats contains dispatch statistics
type Stats struct {
	Subscriptions int    `json:"subscriptions"`
	Dispatched    uint64 `json:"dispatched"`
	Invoked       uint64 `json:"invoked"`
	Failed        uint64 `json:"failed"`
	Panicked      uint64 `json:"panicked"`
}

// Stats returns dispatch statistics
func (r *Registry) Stats() Stats {
	return Stats{
		Subscriptions: r.Len(),
		Dispatched:    r.dispatched.Load(),
		Invoked:       r.invoked.Load(),
		Failed:        r.failed.Load(),
		Panicked:      r.panicked.Load(),
	}
}

// sameTarget compares targets without panicking on uncomparable dynamic types
func sameTarget(a, b any) bool {
	if a == nil || b == nil {
		return false
	}
	if reflect.TypeOf(a) != reflect.TypeOf(b) || !reflect.ValueOf(a).Comparable() {
		return false
	}
	return a == b
}
