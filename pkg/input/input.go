// Package input turns raw transport chunks into dispatched MIDI events.
//
// Each chunk delivered by the transport goes through HandleRaw:
//
//	realtime (F8-FF)    -> dropped, routing continues with the next byte
//	F0, F7, data bytes  -> sysex reassembler -> dispatch each completed block
//	other status bytes  -> discard partial sysex -> classify -> dispatch
//
// Delivery is synchronous on the caller's goroutine.
package input

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"github.com/james-see/midiplug/pkg/event"
	"github.com/james-see/midiplug/pkg/plug"
	"github.com/james-see/midiplug/pkg/sysex"
)

// DefaultSysexBufferSize is the driver-side sysex buffer requested when listening
const DefaultSysexBufferSize = 4096

// Input decodes raw MIDI from one port and dispatches it to a registry
type Input struct {
	mu          sync.Mutex
	port        drivers.In
	stop        func()
	closed      bool
	reassembler *sysex.Reassembler

	registry        *plug.Registry
	logger          *slog.Logger
	onFault         func(error)
	maxSysexSize    int
	sysexBufferSize uint32

	received   atomic.Uint64
	dispatched atomic.Uint64
	skipped    atomic.Uint64
}

// Option configures an Input
type Option func(*Input)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(in *Input) {
		in.logger = logger
	}
}

// WithRegistry dispatches into an existing registry instead of a new one
func WithRegistry(r *plug.Registry) Option {
	return func(in *Input) {
		in.registry = r
	}
}

// WithFaultHandler receives handler faults raised while the transport is
// delivering. The default logs them.
func WithFaultHandler(fn func(error)) Option {
	return func(in *Input) {
		in.onFault = fn
	}
}

// WithMaxSysexSize caps the size of a reassembled sysex block, 0 for no limit
func WithMaxSysexSize(n int) Option {
	return func(in *Input) {
		in.maxSysexSize = n
	}
}

// WithSysexBufferSize sets the driver-side sysex buffer size
func WithSysexBufferSize(n uint32) Option {
	return func(in *Input) {
		in.sysexBufferSize = n
	}
}

// New creates an input that is not attached to a port. Raw chunks are fed with HandleRaw.
func New(opts ...Option) *Input {
	in := &Input{
		logger:          slog.Default(),
		sysexBufferSize: DefaultSysexBufferSize,
	}
	for _, opt := range opts {
		opt(in)
	}
	if in.registry == nil {
		in.registry = plug.NewRegistry(plug.WithLogger(in.logger))
	}
	if in.onFault == nil {
		in.onFault = func(err error) {
			in.logger.Warn("handler fault", "input", in.Name(), "error", err)
		}
	}
	in.reassembler = sysex.NewReassembler(
		sysex.WithMaxSize(in.maxSysexSize),
		sysex.WithLogger(in.logger),
	)
	return in
}

// Open opens port if needed and starts listening with sysex enabled
func Open(port drivers.In, opts ...Option) (*Input, error) {
	in := New(opts...)
	in.port = port

	stop, err := midi.ListenTo(port, in.listen,
		midi.UseSysEx(),
		midi.SysExBufferSize(in.sysexBufferSize),
		midi.HandleError(in.listenError),
	)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", port, err)
	}
	in.stop = stop

	in.logger.Info("input opened", "port", in.Name())
	return in, nil
}

func (in *Input) listen(msg midi.Message, timestampms int32) {
	if err := in.HandleRaw(msg, timestampms); err != nil {
		in.onFault(err)
	}
}

func (in *Input) listenError(err error) {
	in.logger.Warn("transport error", "input", in.Name(), "error", err)
}

// HandleRaw decodes one transport chunk and dispatches the resulting events.
// It returns the handler faults of every dispatch it performed, joined.
func (in *Input) HandleRaw(msg []byte, timestampms int32) error {
	if len(msg) == 0 {
		return nil
	}
	in.received.Add(1)

	events := in.decode(msg)
	if len(events) == 0 {
		return nil
	}

	var faults []error
	for _, ev := range events {
		in.dispatched.Add(1)
		if err := in.registry.Dispatch(ev); err != nil {
			faults = append(faults, err)
		}
	}
	return errors.Join(faults...)
}

// decode runs the chunk through the reassembler or the classifier.
// Dispatch happens outside the lock so handlers may close the input.
func (in *Input) decode(msg []byte) []event.Event {
	in.mu.Lock()
	defer in.mu.Unlock()

	// Realtime bytes may precede the message they interleave with
	rest := msg
	for len(rest) > 0 && rest[0] >= event.RealtimeFloor {
		rest = rest[1:]
	}
	if len(rest) == 0 {
		if !in.reassembler.Active() {
			in.skipped.Add(1)
		}
		return nil
	}
	msg = rest

	status := msg[0]
	switch {
	case status == event.SysexStart || status == event.SysexEnd || status < 0x80:
		return sysexEvents(in.reassembler.Feed(msg))

	default:
		if in.reassembler.Reset() {
			in.logger.Debug("partial sysex discarded", "input", in.Name(), "status", status)
		}
		ev := event.Parse(msg)
		if ev == nil {
			in.skipped.Add(1)
			in.logger.Debug("message skipped", "input", in.Name(), "status", status, "len", len(msg))
			return nil
		}
		return []event.Event{ev}
	}
}

func sysexEvents(blocks []event.Sysex) []event.Event {
	if len(blocks) == 0 {
		return nil
	}
	events := make([]event.Event, len(blocks))
	for i, b := range blocks {
		events[i] = b
	}
	return events
}

// Name returns the port name, empty for a detached input
func (in *Input) Name() string {
	if in.port == nil {
		return ""
	}
	return in.port.String()
}

// Registry returns the registry events are dispatched to
func (in *Input) Registry() *plug.Registry {
	return in.registry
}

// Plug is shorthand for Registry().PlugAll
func (in *Input) Plug(target any, channel int) []*plug.Subscription {
	return in.registry.PlugAll(target, channel)
}

// Close stops listening, discards any partial sysex block and removes all
// subscriptions. The port stays open.
func (in *Input) Close() {
	in.mu.Lock()
	stop := in.stop
	in.stop = nil
	in.closed = true
	in.reassembler.Reset()
	in.mu.Unlock()

	if stop != nil {
		stop()
	}
	in.registry.Clear()
	in.logger.Debug("input closed", "input", in.Name())
}

// CloseDevice closes the input and the underlying port
func (in *Input) CloseDevice() error {
	in.Close()
	if in.port == nil || !in.port.IsOpen() {
		return nil
	}
	if err := in.port.Close(); err != nil {
		return fmt.Errorf("close %s: %w", in.Name(), err)
	}
	return nil
}

// Closed reports whether Close has been called
func (in *Input) Closed() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.closed
}

// Stats contains pipeline counters
type Stats struct {
	Received     uint64     `json:"received"`
	Dispatched   uint64     `json:"dispatched"`
	Skipped      uint64     `json:"skipped"`
	SysexDropped uint64     `json:"sysex_dropped"`
	Registry     plug.Stats `json:"registry"`
}

// Stats returns pipeline counters
func (in *Input) Stats() Stats {
	in.mu.Lock()
	dropped := in.reassembler.Dropped()
	in.mu.Unlock()

	return Stats{
		Received:     in.received.Load(),
		Dispatched:   in.dispatched.Load(),
		Skipped:      in.skipped.Load(),
		SysexDropped: dropped,
		Registry:     in.registry.Stats(),
	}
}
