// Package plug routes classified MIDI events to subscribed targets.
//
// A target subscribes by implementing one or more receiver interfaces and
// plugging them into a Registry with a kind filter and a channel filter.
package plug

import (
	"github.com/james-see/midiplug/pkg/event"
)

// AnyChannel matches every channel
const AnyChannel = -1

// NoteOnReceiver handles note-on events
type NoteOnReceiver interface {
	NoteOnReceived(ev event.NoteOn) error
}

// NoteOffReceiver handles note-off events
type NoteOffReceiver interface {
	NoteOffReceived(ev event.NoteOff) error
}

// ControllerReceiver handles control changes
type ControllerReceiver interface {
	ControllerChangeReceived(ev event.Controller) error
}

// ProgramChangeReceiver handles program changes
type ProgramChangeReceiver interface {
	ProgramChangeReceived(ev event.ProgramChange) error
}

// SysexReceiver handles complete sysex blocks
type SysexReceiver interface {
	SysexReceived(ev event.Sysex) error
}

// EventReceiver handles every event variant
type EventReceiver interface {
	EventReceived(ev event.Event) error
}

// EventFunc adapts a function to EventReceiver.
// Function targets cannot be compared, so they can only be removed with Registry.Remove.
type EventFunc func(ev event.Event) error

// EventReceived calls f(ev)
func (f EventFunc) EventReceived(ev event.Event) error {
	return f(ev)
}

// HandlerName selects which receiver method a subscription invokes
type HandlerName int

const (
	NoteOnHandler HandlerName = iota
	NoteOffHandler
	ControllerHandler
	ProgramChangeHandler
	SysexHandler
	EventHandler
)

// String returns the receiver method name
func (h HandlerName) String() string {
	switch h {
	case NoteOnHandler:
		return "NoteOnReceived"
	case NoteOffHandler:
		return "NoteOffReceived"
	case ControllerHandler:
		return "ControllerChangeReceived"
	case ProgramChangeHandler:
		return "ProgramChangeReceived"
	case SysexHandler:
		return "SysexReceived"
	case EventHandler:
		return "EventReceived"
	default:
		return "unknown"
	}
}

// HandlerFor returns the handler that receives events of kind k
func HandlerFor(k event.Kind) (HandlerName, bool) {
	switch k {
	case event.KindNoteOn:
		return NoteOnHandler, true
	case event.KindNoteOff:
		return NoteOffHandler, true
	case event.KindController:
		return ControllerHandler, true
	case event.KindProgramChange:
		return ProgramChangeHandler, true
	case event.KindSysex:
		return SysexHandler, true
	case event.KindAny:
		return EventHandler, true
	default:
		return 0, false
	}
}

// ImplementedBy reports whether target has the receiver method for h
func (h HandlerName) ImplementedBy(target any) bool {
	var ok bool
	switch h {
	case NoteOnHandler:
		_, ok = target.(NoteOnReceiver)
	case NoteOffHandler:
		_, ok = target.(NoteOffReceiver)
	case ControllerHandler:
		_, ok = target.(ControllerReceiver)
	case ProgramChangeHandler:
		_, ok = target.(ProgramChangeReceiver)
	case SysexHandler:
		_, ok = target.(SysexReceiver)
	case EventHandler:
		_, ok = target.(EventReceiver)
	}
	return ok
}

// invoke calls the receiver method for h if ev is the variant it accepts.
// called is false when the variant does not fit the handler.
func (h HandlerName) invoke(target any, ev event.Event) (called bool, err error) {
	switch h {
	case NoteOnHandler:
		if e, ok := ev.(event.NoteOn); ok {
			return true, target.(NoteOnReceiver).NoteOnReceived(e)
		}
	case NoteOffHandler:
		if e, ok := ev.(event.NoteOff); ok {
			return true, target.(NoteOffReceiver).NoteOffReceived(e)
		}
	case ControllerHandler:
		if e, ok := ev.(event.Controller); ok {
			return true, target.(ControllerReceiver).ControllerChangeReceived(e)
		}
	case ProgramChangeHandler:
		if e, ok := ev.(event.ProgramChange); ok {
			return true, target.(ProgramChangeReceiver).ProgramChangeReceived(e)
		}
	case SysexHandler:
		if e, ok := ev.(event.Sysex); ok {
			return true, target.(SysexReceiver).SysexReceived(e)
		}
	case EventHandler:
		return true, target.(EventReceiver).EventReceived(ev)
	}
	return false, nil
}
