package input

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"gitlab.com/gomidi/midi/v2/drivers"

	"github.com/james-see/midiplug/pkg/event"
	"github.com/james-see/midiplug/pkg/plug"
)

// mockPort implements drivers.In for testing
type mockPort struct {
	name     string
	open     bool
	opened   int
	closed   int
	stopped  int
	onMsg    func([]byte, int32)
	config   drivers.ListenConfig
	openErr  error
	closeErr error
}

func (m *mockPort) Open() error {
	if m.openErr != nil {
		return m.openErr
	}
	m.open = true
	m.opened++
	return nil
}

func (m *mockPort) Close() error {
	m.open = false
	m.closed++
	return m.closeErr
}

func (m *mockPort) IsOpen() bool            { return m.open }
func (m *mockPort) Number() int             { return 0 }
func (m *mockPort) String() string          { return m.name }
func (m *mockPort) Underlying() interface{} { return nil }

func (m *mockPort) Listen(onMsg func([]byte, int32), config drivers.ListenConfig) (func(), error) {
	m.onMsg = onMsg
	m.config = config
	return func() {
		m.stopped++
		m.onMsg = nil
	}, nil
}

func (m *mockPort) deliver(msg ...byte) {
	if m.onMsg != nil {
		m.onMsg(msg, 0)
	}
}

// recorder collects every event
type recorder struct {
	events []event.Event
}

func (r *recorder) EventReceived(ev event.Event) error {
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) String() string {
	return fmt.Sprint(r.events)
}

func newRecorded(opts ...Option) (*Input, *recorder) {
	in := New(opts...)
	rec := &recorder{}
	in.Registry().Register(rec, event.KindAny, plug.AnyChannel)
	return in, rec
}

func TestHandleRawChannelVoice(t *testing.T) {
	tests := []struct {
		name string
		msg  []byte
		want string
	}{
		{"note on", []byte{0x93, 60, 100}, fmt.Sprint(event.NoteOn{Channel: 3, Pitch: 60, Velocity: 100})},
		{"zero velocity", []byte{0x95, 62, 0}, fmt.Sprint(event.NoteOff{Channel: 5, Pitch: 62})},
		{"note off", []byte{0x80, 1, 2}, fmt.Sprint(event.NoteOff{Channel: 0, Pitch: 1, Velocity: 2})},
		{"controller", []byte{0xB2, 7, 127}, fmt.Sprint(event.Controller{Channel: 2, Number: 7, Value: 127})},
		{"program change", []byte{0xC9, 12}, fmt.Sprint(event.ProgramChange{Channel: 9, Number: 12})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, rec := newRecorded()
			if err := in.HandleRaw(tt.msg, 0); err != nil {
				t.Fatalf("HandleRaw() error = %v", err)
			}
			if len(rec.events) != 1 || fmt.Sprint(rec.events[0]) != tt.want {
				t.Errorf("events = %v, want [%s]", rec, tt.want)
			}
		})
	}
}

func TestHandleRawSkipsUnsupported(t *testing.T) {
	in, rec := newRecorded()

	for _, msg := range [][]byte{
		{0xE0, 0x00, 0x40}, // pitch bend
		{0xA0, 60, 10},     // poly aftertouch
		{0xD0, 10},         // channel pressure
		{0xF8},             // clock
		{0xFE},             // active sensing
		{0x90, 60},         // truncated
	} {
		if err := in.HandleRaw(msg, 0); err != nil {
			t.Fatalf("HandleRaw(% X) error = %v", msg, err)
		}
	}

	if len(rec.events) != 0 {
		t.Errorf("events = %v, want none", rec)
	}
	if got := in.Stats().Skipped; got != 6 {
		t.Errorf("Skipped = %d, want 6", got)
	}
}

func TestHandleRawSysexAcrossChunks(t *testing.T) {
	in, rec := newRecorded()

	in.HandleRaw([]byte{0xF0, 0x7E, 0x01}, 0)
	if len(rec.events) != 0 {
		t.Fatalf("partial block dispatched: %v", rec)
	}
	// Clock inside an open block is ignored by the reassembler
	in.HandleRaw([]byte{0xF8}, 0)
	in.HandleRaw([]byte{0x02, 0xF7}, 0)

	if len(rec.events) != 1 {
		t.Fatalf("events = %v, want one sysex", rec)
	}
	sx, ok := rec.events[0].(event.Sysex)
	if !ok {
		t.Fatalf("event = %T, want event.Sysex", rec.events[0])
	}
	want := []byte{0xF0, 0x7E, 0x01, 0x02, 0xF7}
	if !bytes.Equal(sx.Payload, want) {
		t.Errorf("payload = % X, want % X", sx.Payload, want)
	}
}

func TestHandleRawLeadingRealtime(t *testing.T) {
	tests := []struct {
		name string
		msg  []byte
		want string
	}{
		{"clock before sysex", []byte{0xF8, 0xF0, 0x7E, 0x01, 0x02, 0xF7},
			fmt.Sprint(event.Sysex{Payload: []byte{0xF0, 0x7E, 0x01, 0x02, 0xF7}})},
		{"clock and sensing before note", []byte{0xF8, 0xFE, 0x91, 60, 100},
			fmt.Sprint(event.NoteOn{Channel: 1, Pitch: 60, Velocity: 100})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, rec := newRecorded()
			if err := in.HandleRaw(tt.msg, 0); err != nil {
				t.Fatalf("HandleRaw() error = %v", err)
			}
			if len(rec.events) != 1 || fmt.Sprint(rec.events[0]) != tt.want {
				t.Errorf("events = %v, want [%s]", rec, tt.want)
			}
			stats := in.Stats()
			if stats.Skipped != 0 || stats.SysexDropped != 0 {
				t.Errorf("Skipped = %d, SysexDropped = %d, want 0 and 0", stats.Skipped, stats.SysexDropped)
			}
		})
	}
}

func TestHandleRawStatusInterruptsSysex(t *testing.T) {
	in, rec := newRecorded()

	in.HandleRaw([]byte{0xF0, 0x01, 0x02}, 0)
	in.HandleRaw([]byte{0x90, 60, 100}, 0)
	in.HandleRaw([]byte{0x03, 0xF7}, 0)

	if len(rec.events) != 1 {
		t.Fatalf("events = %v, want only the note", rec)
	}
	if _, ok := rec.events[0].(event.NoteOn); !ok {
		t.Errorf("event = %T, want event.NoteOn", rec.events[0])
	}
	if got := in.Stats().SysexDropped; got == 0 {
		t.Error("SysexDropped = 0, want the interrupted block counted")
	}
}

func TestHandleRawChannelFilter(t *testing.T) {
	in := New()
	rec := &recorder{}
	in.Registry().Register(rec, event.KindAny, 3)

	in.HandleRaw([]byte{0x93, 60, 100}, 0)
	in.HandleRaw([]byte{0x94, 60, 100}, 0)
	in.HandleRaw([]byte{0xC4, 1}, 0)

	if len(rec.events) != 2 {
		t.Errorf("events = %v, want channel 3 note and program change", rec)
	}
}

func TestHandleRawReturnsFaults(t *testing.T) {
	in := New()
	errBoom := errors.New("boom")
	in.Registry().Register(plug.EventFunc(func(event.Event) error {
		return errBoom
	}), event.KindAny, plug.AnyChannel)

	err := in.HandleRaw([]byte{0x90, 60, 100}, 0)
	if !errors.Is(err, errBoom) {
		t.Fatalf("HandleRaw() error = %v, want errBoom", err)
	}
}

func TestOpenListens(t *testing.T) {
	port := &mockPort{name: "Test In"}
	var faults []error

	in, err := Open(port,
		WithSysexBufferSize(1024),
		WithFaultHandler(func(err error) { faults = append(faults, err) }),
	)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if port.opened != 1 {
		t.Errorf("port opened %d times, want 1", port.opened)
	}
	if !port.config.SysEx || port.config.SysExBufferSize != 1024 {
		t.Errorf("listen config = %+v, want sysex with 1024 byte buffer", port.config)
	}
	if in.Name() != "Test In" {
		t.Errorf("Name() = %q", in.Name())
	}

	in.Registry().Register(plug.EventFunc(func(event.Event) error {
		return errors.New("listener fault")
	}), event.KindAny, plug.AnyChannel)

	port.deliver(0xF0, 0x43, 0xF7)
	if len(faults) != 1 {
		t.Errorf("fault handler called %d times, want 1", len(faults))
	}

	in.Close()
	if port.stopped != 1 {
		t.Errorf("stop called %d times, want 1", port.stopped)
	}
	if in.Registry().Len() != 0 {
		t.Error("Close() should clear subscriptions")
	}
	if !port.IsOpen() {
		t.Error("Close() should leave the port open")
	}
	if !in.Closed() {
		t.Error("Closed() = false after Close()")
	}
}

func TestOpenError(t *testing.T) {
	port := &mockPort{name: "Broken", openErr: errors.New("busy")}
	if _, err := Open(port); err == nil {
		t.Fatal("Open() error = nil, want error")
	}
}

func TestCloseDevice(t *testing.T) {
	port := &mockPort{name: "Test In"}
	in, err := Open(port)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if err := in.CloseDevice(); err != nil {
		t.Fatalf("CloseDevice() error = %v", err)
	}
	if port.closed != 1 || port.IsOpen() {
		t.Error("CloseDevice() should close the port")
	}

	// Detached inputs have no device to close
	if err := New().CloseDevice(); err != nil {
		t.Errorf("CloseDevice() on detached input error = %v", err)
	}
}

func TestCloseFromHandler(t *testing.T) {
	in := New()
	in.Registry().Register(plug.EventFunc(func(event.Event) error {
		in.Close()
		return nil
	}), event.KindAny, plug.AnyChannel)

	if err := in.HandleRaw([]byte{0x90, 60, 100}, 0); err != nil {
		t.Fatalf("HandleRaw() error = %v", err)
	}
	if !in.Closed() {
		t.Error("handler should have closed the input")
	}
}
