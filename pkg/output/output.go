// Package output sends MIDI events to a gomidi output port.
package output

import (
	"errors"
	"fmt"
	"log/slog"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"github.com/james-see/midiplug/pkg/event"
	"github.com/james-see/midiplug/pkg/sysex"
)

// ErrInvalidMessage is returned for out-of-range channels or data bytes
var ErrInvalidMessage = errors.New("invalid MIDI message")

// Output sends messages to one port. An Output can be plugged into a
// registry as an event receiver to forward input events (MIDI thru).
type Output struct {
	port   drivers.Out
	send   func(msg midi.Message) error
	logger *slog.Logger
}

// Option configures an Output
type Option func(*Output)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *Output) {
		o.logger = logger
	}
}

// Open opens port if needed and returns an Output for it
func Open(port drivers.Out, opts ...Option) (*Output, error) {
	o := &Output{
		port:   port,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}

	send, err := midi.SendTo(port)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", port, err)
	}
	o.send = send

	o.logger.Info("output opened", "port", o.Name())
	return o, nil
}

// Name returns the port name
func (o *Output) Name() string {
	return o.port.String()
}

// Close closes the underlying port
func (o *Output) Close() error {
	if !o.port.IsOpen() {
		return nil
	}
	if err := o.port.Close(); err != nil {
		return fmt.Errorf("close %s: %w", o.Name(), err)
	}
	return nil
}

func (o *Output) write(msg midi.Message) error {
	if err := o.send(msg); err != nil {
		return fmt.Errorf("send to %s: %w", o.Name(), err)
	}
	o.logger.Debug("sent", "port", o.Name(), "message", msg.String())
	return nil
}

// SendNoteOn sends a note-on
func (o *Output) SendNoteOn(channel, pitch, velocity uint8) error {
	if err := check(channel, pitch, velocity); err != nil {
		return err
	}
	return o.write(midi.NoteOn(channel, pitch, velocity))
}

// SendNoteOff sends a note-off with release velocity
func (o *Output) SendNoteOff(channel, pitch, velocity uint8) error {
	if err := check(channel, pitch, velocity); err != nil {
		return err
	}
	return o.write(midi.NoteOffVelocity(channel, pitch, velocity))
}

// SendController sends a control change
func (o *Output) SendController(channel, number, value uint8) error {
	if err := check(channel, number, value); err != nil {
		return err
	}
	return o.write(midi.ControlChange(channel, number, value))
}

// SendProgramChange sends a program change
func (o *Output) SendProgramChange(channel, number uint8) error {
	if err := check(channel, number, 0); err != nil {
		return err
	}
	return o.write(midi.ProgramChange(channel, number))
}

// SendSysex sends a complete sysex block including its F0 and F7 framing
func (o *Output) SendSysex(data []byte) error {
	if err := sysex.Validate(data); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return o.write(midi.SysEx(data[1 : len(data)-1]))
}

// Send sends any event
func (o *Output) Send(ev event.Event) error {
	switch e := ev.(type) {
	case event.NoteOn:
		return o.SendNoteOn(e.Channel, e.Pitch, e.Velocity)
	case event.NoteOff:
		return o.SendNoteOff(e.Channel, e.Pitch, e.Velocity)
	case event.Controller:
		return o.SendController(e.Channel, e.Number, e.Value)
	case event.ProgramChange:
		return o.SendProgramChange(e.Channel, e.Number)
	case event.Sysex:
		return o.SendSysex(e.Payload)
	default:
		return fmt.Errorf("%w: unsupported event %T", ErrInvalidMessage, ev)
	}
}

// EventReceived forwards ev to the port
func (o *Output) EventReceived(ev event.Event) error {
	return o.Send(ev)
}

func check(channel, data1, data2 uint8) error {
	if channel > 15 {
		return fmt.Errorf("%w: channel %d", ErrInvalidMessage, channel)
	}
	if data1 > 127 || data2 > 127 {
		return fmt.Errorf("%w: data byte out of range", ErrInvalidMessage)
	}
	return nil
}
