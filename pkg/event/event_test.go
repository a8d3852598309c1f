package event

import (
	"bytes"
	"testing"
)

func TestClassifyNoteOnAllChannels(t *testing.T) {
	for c := uint8(0); c < 16; c++ {
		for _, p := range []uint8{0, 60, 127} {
			for v := uint8(1); v <= 127; v++ {
				got := Classify(0x90, c, p, v)
				want := NoteOn{Channel: c, Pitch: p, Velocity: v}
				if got != want {
					t.Fatalf("Classify(0x90, %d, %d, %d) = %v, want %v", c, p, v, got, want)
				}
			}
		}
	}
}

func TestClassifyZeroVelocityNoteOn(t *testing.T) {
	for c := uint8(0); c < 16; c++ {
		on := Classify(0x90, c, 64, 0)
		off := Classify(0x80, c, 64, 0)
		want := NoteOff{Channel: c, Pitch: 64, Velocity: 0}

		if on != want {
			t.Errorf("Classify(0x90, %d, 64, 0) = %v, want %v", c, on, want)
		}
		if off != want {
			t.Errorf("Classify(0x80, %d, 64, 0) = %v, want %v", c, off, want)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		command uint8
		channel uint8
		data1   uint8
		data2   uint8
		want    Event
	}{
		{"note off with velocity", 0x80, 3, 60, 40, NoteOff{Channel: 3, Pitch: 60, Velocity: 40}},
		{"controller", 0xB0, 15, 7, 100, Controller{Channel: 15, Number: 7, Value: 100}},
		{"program change ignores data2", 0xC0, 2, 5, 99, ProgramChange{Channel: 2, Number: 5}},
		{"status with channel nibble", 0x93, 3, 60, 1, NoteOn{Channel: 3, Pitch: 60, Velocity: 1}},
		{"poly aftertouch dropped", 0xA0, 0, 60, 10, nil},
		{"channel pressure dropped", 0xD0, 0, 10, 0, nil},
		{"pitch bend dropped", 0xE0, 0, 0, 64, nil},
		{"system dropped", 0xF0, 0, 0, 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.command, tt.channel, tt.data1, tt.data2)
			if got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		msg  []byte
		want Event
	}{
		{"scenario A", []byte{0x91, 0x40, 0x64}, NoteOn{Channel: 1, Pitch: 64, Velocity: 100}},
		{"scenario C", []byte{0xC0, 0x05}, ProgramChange{Channel: 0, Number: 5}},
		{"zero velocity", []byte{0x9F, 0x3C, 0x00}, NoteOff{Channel: 15, Pitch: 60}},
		{"controller", []byte{0xB4, 0x01, 0x7F}, Controller{Channel: 4, Number: 1, Value: 127}},
		{"truncated note", []byte{0x90, 0x40}, nil},
		{"truncated program change", []byte{0xC0}, nil},
		{"empty", nil, nil},
		{"data byte", []byte{0x40, 0x40}, nil},
		{"sysex start", []byte{0xF0, 0x7E, 0xF7}, nil},
		{"clock", []byte{0xF8}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.msg)
			if got != tt.want {
				t.Errorf("Parse(% X) = %v, want %v", tt.msg, got, tt.want)
			}
		})
	}
}

func TestChannelOf(t *testing.T) {
	tests := []struct {
		name     string
		ev       Event
		channel  uint8
		ok       bool
		filtered bool
	}{
		{"note on", NoteOn{Channel: 9}, 9, true, true},
		{"note off", NoteOff{Channel: 1}, 1, true, true},
		{"controller", Controller{Channel: 2}, 2, true, true},
		{"program change", ProgramChange{Channel: 3}, 3, true, false},
		{"sysex", Sysex{Payload: []byte{0xF0, 0xF7}}, 0, false, false},
		{"nil", nil, 0, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch, ok := ChannelOf(tt.ev)
			if ch != tt.channel || ok != tt.ok {
				t.Errorf("ChannelOf() = (%d, %v), want (%d, %v)", ch, ok, tt.channel, tt.ok)
			}
			if got := IsChannelFiltered(tt.ev); got != tt.filtered {
				t.Errorf("IsChannelFiltered() = %v, want %v", got, tt.filtered)
			}
		})
	}
}

func TestKind(t *testing.T) {
	for _, k := range Kinds {
		if !k.Valid() {
			t.Errorf("%v should be valid", k)
		}
		parsed, ok := ParseKind(k.String())
		if !ok || parsed != k {
			t.Errorf("ParseKind(%q) = (%v, %v), want %v", k.String(), parsed, ok, k)
		}
	}

	if !KindAny.Valid() {
		t.Error("KindAny should be valid")
	}
	if Kind(0xA0).Valid() {
		t.Error("0xA0 should not be a valid kind")
	}
	if _, ok := ParseKind("aftertouch"); ok {
		t.Error("ParseKind should reject unknown names")
	}
}

func TestBytes(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
		want []byte
	}{
		{"note on", NoteOn{Channel: 1, Pitch: 64, Velocity: 100}, []byte{0x91, 0x40, 0x64}},
		{"note off", NoteOff{Channel: 0, Pitch: 60}, []byte{0x80, 0x3C, 0x00}},
		{"controller", Controller{Channel: 15, Number: 7, Value: 1}, []byte{0xBF, 0x07, 0x01}},
		{"program change", ProgramChange{Number: 5}, []byte{0xC0, 0x05}},
		{"sysex", Sysex{Payload: []byte{0xF0, 0x01, 0xF7}}, []byte{0xF0, 0x01, 0xF7}},
		{"nil", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Bytes(tt.ev)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("Bytes() = % X, want % X", got, tt.want)
			}
			if tt.ev != nil && tt.ev.Kind() != KindSysex {
				if back := Parse(got); back != tt.ev {
					t.Errorf("Parse(Bytes()) = %v, want %v", back, tt.ev)
				}
			}
		})
	}
}
