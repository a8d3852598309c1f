package sysex

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/james-see/midiplug/pkg/event"
)

// Universal sysex IDs
const (
	UniversalNonRealtime = 0x7E
	UniversalRealtime    = 0x7F
	// AllCall targets every device in universal messages
	AllCall = 0x7F
)

// ErrInvalid is returned for payloads that are not a well-formed sysex block
var ErrInvalid = errors.New("invalid sysex")

// Info is the decoded header of a sysex block
type Info struct {
	Manufacturer []byte // 1 or 3 byte manufacturer ID
	Universal    bool
	Realtime     bool  // universal realtime (0x7F) rather than non-realtime (0x7E)
	DeviceID     uint8 // universal messages only
	SubID1       uint8
	SubID2       uint8
	Length       int
}

// Validate checks framing and that every body byte is 7-bit
func Validate(data []byte) error {
	if len(data) < 2 {
		return fmt.Errorf("%w: too short", ErrInvalid)
	}

	if data[0] != event.SysexStart {
		return fmt.Errorf("%w: expected start byte 0x%02X, got 0x%02X", ErrInvalid, event.SysexStart, data[0])
	}

	if data[len(data)-1] != event.SysexEnd {
		return fmt.Errorf("%w: expected end byte 0x%02X, got 0x%02X", ErrInvalid, event.SysexEnd, data[len(data)-1])
	}

	for i := 1; i < len(data)-1; i++ {
		if data[i] > 127 {
			return fmt.Errorf("%w: byte at position %d is > 127 (0x%02X)", ErrInvalid, i, data[i])
		}
	}

	return nil
}

// ManufacturerID extracts the manufacturer ID from a sysex block
func ManufacturerID(data []byte) ([]byte, error) {
	if len(data) < 3 {
		return nil, fmt.Errorf("%w: too short for manufacturer ID", ErrInvalid)
	}

	if data[0] != event.SysexStart {
		return nil, fmt.Errorf("%w: missing start byte", ErrInvalid)
	}

	// Extended manufacturer ID starts with 0x00
	if data[1] == 0x00 {
		if len(data) < 5 {
			return nil, fmt.Errorf("%w: too short for extended manufacturer ID", ErrInvalid)
		}
		return data[1:4], nil
	}

	return data[1:2], nil
}

// Describe decodes the header of a validated sysex block
func Describe(data []byte) (Info, error) {
	if err := Validate(data); err != nil {
		return Info{}, err
	}

	id, err := ManufacturerID(data)
	if err != nil {
		return Info{}, err
	}

	info := Info{Manufacturer: bytes.Clone(id), Length: len(data)}
	if id[0] == UniversalNonRealtime || id[0] == UniversalRealtime {
		info.Universal = true
		info.Realtime = id[0] == UniversalRealtime
		body := data[2 : len(data)-1]
		if len(body) > 0 {
			info.DeviceID = body[0]
		}
		if len(body) > 1 {
			info.SubID1 = body[1]
		}
		if len(body) > 2 {
			info.SubID2 = body[2]
		}
	}

	return info, nil
}

// ManufacturerName returns a display name for well-known manufacturer IDs
func (i Info) ManufacturerName() string {
	switch {
	case i.Universal && i.Realtime:
		return "Universal Realtime"
	case i.Universal:
		return "Universal Non-Realtime"
	case bytes.Equal(i.Manufacturer, []byte{0x00, 0x20, 0x32}):
		return "Behringer"
	case bytes.Equal(i.Manufacturer, []byte{0x00, 0x20, 0x29}):
		return "Novation"
	case bytes.Equal(i.Manufacturer, []byte{0x41}):
		return "Roland"
	case bytes.Equal(i.Manufacturer, []byte{0x42}):
		return "Korg"
	case bytes.Equal(i.Manufacturer, []byte{0x43}):
		return "Yamaha"
	case bytes.Equal(i.Manufacturer, []byte{0x7D}):
		return "Non-Commercial"
	default:
		return fmt.Sprintf("% X", i.Manufacturer)
	}
}

// WriteFile writes blocks back to back as a .syx dump
func WriteFile(filename string, blocks ...event.Sysex) error {
	var buf bytes.Buffer
	for i, b := range blocks {
		if err := Validate(b.Payload); err != nil {
			return fmt.Errorf("block %d: %w", i, err)
		}
		buf.Write(b.Payload)
	}
	return os.WriteFile(filename, buf.Bytes(), 0644)
}

// ReadFile reads a .syx dump and splits it into blocks
func ReadFile(filename string) ([]event.Sysex, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read syx file: %w", err)
	}

	r := NewReassembler()
	blocks := r.Feed(data)
	if r.Active() || r.Dropped() > 0 {
		return blocks, fmt.Errorf("%w: %s contains unterminated or stray data", ErrInvalid, filename)
	}
	return blocks, nil
}
