package event

import (
	"encoding/hex"
	"fmt"
	"strings"
)

func (e NoteOn) String() string {
	return fmt.Sprintf("note-on ch=%d pitch=%d velocity=%d", e.Channel, e.Pitch, e.Velocity)
}

func (e NoteOff) String() string {
	return fmt.Sprintf("note-off ch=%d pitch=%d velocity=%d", e.Channel, e.Pitch, e.Velocity)
}

func (e Controller) String() string {
	return fmt.Sprintf("controller ch=%d cc=%d value=%d", e.Channel, e.Number, e.Value)
}

func (e ProgramChange) String() string {
	return fmt.Sprintf("program-change ch=%d program=%d", e.Channel, e.Number)
}

func (e Sysex) String() string {
	return fmt.Sprintf("sysex len=%d %s", len(e.Payload), strings.ToUpper(hex.EncodeToString(e.Payload)))
}

// Bytes returns the wire encoding of ev
func Bytes(ev Event) []byte {
	switch e := ev.(type) {
	case NoteOn:
		return []byte{byte(KindNoteOn) | e.Channel&0x0F, e.Pitch & 0x7F, e.Velocity & 0x7F}
	case NoteOff:
		return []byte{byte(KindNoteOff) | e.Channel&0x0F, e.Pitch & 0x7F, e.Velocity & 0x7F}
	case Controller:
		return []byte{byte(KindController) | e.Channel&0x0F, e.Number & 0x7F, e.Value & 0x7F}
	case ProgramChange:
		return []byte{byte(KindProgramChange) | e.Channel&0x0F, e.Number & 0x7F}
	case Sysex:
		out := make([]byte, len(e.Payload))
		copy(out, e.Payload)
		return out
	default:
		return nil
	}
}
