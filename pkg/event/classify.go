package event

// Classify maps a channel-voice command and its data bytes to an Event.
// It returns nil for commands other than note-off, note-on, control change and program change.
func Classify(command, channel, data1, data2 uint8) Event {
	channel &= 0x0F
	data1 &= 0x7F
	data2 &= 0x7F

	switch Kind(command & 0xF0) {
	case KindNoteOn:
		// Zero velocity note-on is the running-status friendly note-off
		if data2 == 0 {
			return NoteOff{Channel: channel, Pitch: data1}
		}
		return NoteOn{Channel: channel, Pitch: data1, Velocity: data2}
	case KindNoteOff:
		return NoteOff{Channel: channel, Pitch: data1, Velocity: data2}
	case KindController:
		return Controller{Channel: channel, Number: data1, Value: data2}
	case KindProgramChange:
		return ProgramChange{Channel: channel, Number: data1}
	default:
		return nil
	}
}

// Parse classifies a complete short message (status byte followed by its data bytes).
// It returns nil for system messages, stray data bytes and truncated messages.
func Parse(msg []byte) Event {
	if len(msg) == 0 || msg[0] < 0x80 || msg[0] >= SysexStart {
		return nil
	}

	status := msg[0]
	command := status & 0xF0
	channel := status & 0x0F

	switch Kind(command) {
	case KindProgramChange:
		if len(msg) < 2 {
			return nil
		}
		return Classify(command, channel, msg[1], 0)
	case KindNoteOn, KindNoteOff, KindController:
		if len(msg) < 3 {
			return nil
		}
		return Classify(command, channel, msg[1], msg[2])
	default:
		return nil
	}
}
