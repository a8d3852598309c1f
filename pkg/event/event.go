// Package event provides the typed MIDI events produced from raw transport bytes
package event

// Wire constants
const (
	SysexStart    = 0xF0
	SysexEnd      = 0xF7
	RealtimeFloor = 0xF8
)

// Kind identifies an event variant. Channel-voice kinds carry the status high nibble.
type Kind uint8

const (
	KindAny           Kind = 0x00
	KindNoteOff       Kind = 0x80
	KindNoteOn        Kind = 0x90
	KindController    Kind = 0xB0
	KindProgramChange Kind = 0xC0
	KindSysex         Kind = SysexStart
)

// Kinds lists the concrete kinds in standard bundle order
var Kinds = []Kind{KindNoteOn, KindNoteOff, KindController, KindProgramChange, KindSysex}

// Valid reports whether k is a concrete kind or KindAny
func (k Kind) Valid() bool {
	switch k {
	case KindAny, KindNoteOff, KindNoteOn, KindController, KindProgramChange, KindSysex:
		return true
	}
	return false
}

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case KindAny:
		return "any"
	case KindNoteOff:
		return "note-off"
	case KindNoteOn:
		return "note-on"
	case KindController:
		return "controller"
	case KindProgramChange:
		return "program-change"
	case KindSysex:
		return "sysex"
	default:
		return "unknown"
	}
}

// ParseKind converts a kind name back to a Kind
func ParseKind(name string) (Kind, bool) {
	for _, k := range append([]Kind{KindAny}, Kinds...) {
		if k.String() == name {
			return k, true
		}
	}
	return 0, false
}

// Event is a classified MIDI event. The set of variants is closed.
type Event interface {
	Kind() Kind
	isEvent()
}

// NoteOn is a note-on with a non-zero velocity
type NoteOn struct {
	Channel  uint8 // 0-15
	Pitch    uint8 // 0-127
	Velocity uint8 // 1-127
}

// NoteOff is an explicit note-off or a zero-velocity note-on
type NoteOff struct {
	Channel  uint8
	Pitch    uint8
	Velocity uint8
}

// Controller is a control change
type Controller struct {
	Channel uint8
	Number  uint8
	Value   uint8
}

// ProgramChange selects a program
type ProgramChange struct {
	Channel uint8
	Number  uint8
}

// Sysex is one complete system-exclusive block, framing bytes included
type Sysex struct {
	Payload []byte
}

func (NoteOn) Kind() Kind        { return KindNoteOn }
func (NoteOff) Kind() Kind       { return KindNoteOff }
func (Controller) Kind() Kind    { return KindController }
func (ProgramChange) Kind() Kind { return KindProgramChange }
func (Sysex) Kind() Kind         { return KindSysex }

func (NoteOn) isEvent()        {}
func (NoteOff) isEvent()       {}
func (Controller) isEvent()    {}
func (ProgramChange) isEvent() {}
func (Sysex) isEvent()         {}

// ChannelOf returns the channel of a channel-voice event.
// The second result is false for sysex and nil events.
func ChannelOf(ev Event) (uint8, bool) {
	switch e := ev.(type) {
	case NoteOn:
		return e.Channel, true
	case NoteOff:
		return e.Channel, true
	case Controller:
		return e.Channel, true
	case ProgramChange:
		return e.Channel, true
	default:
		return 0, false
	}
}

// IsChannelFiltered reports whether subscription channel filters apply to ev.
// Program changes and sysex blocks pass every channel filter.
func IsChannelFiltered(ev Event) bool {
	switch ev.(type) {
	case NoteOn, NoteOff, Controller:
		return true
	default:
		return false
	}
}
