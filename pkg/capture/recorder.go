package capture

import (
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sync"
	"time"

	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/james-see/midiplug/pkg/event"
	"github.com/james-see/midiplug/pkg/sysex"
)

const (
	DefaultResolution = 480
	DefaultTempo      = 120.0
)

// Timed is an event at an offset from the start of a recording
type Timed struct {
	Offset time.Duration
	Event  event.Event
}

// Recorder collects events with their offsets for writing to a Standard MIDI File.
// Sysex blocks are kept apart, see Sysex.
type Recorder struct {
	mu         sync.Mutex
	start      time.Time
	events     []Timed
	sysex      []event.Sysex
	resolution uint16
	tempo      float64
	now        func() time.Time
}

// RecorderOption configures a Recorder
type RecorderOption func(*Recorder)

// WithResolution sets the ticks per quarter note
func WithResolution(ticks uint16) RecorderOption {
	return func(r *Recorder) {
		if ticks > 0 {
			r.resolution = ticks
		}
	}
}

// WithTempo sets the tempo in beats per minute
func WithTempo(bpm float64) RecorderOption {
	return func(r *Recorder) {
		if bpm > 0 {
			r.tempo = bpm
		}
	}
}

// NewRecorder creates an empty recorder. The clock starts at the first event.
func NewRecorder(opts ...RecorderOption) *Recorder {
	r := &Recorder{
		resolution: DefaultResolution,
		tempo:      DefaultTempo,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// EventReceived records ev
func (r *Recorder) EventReceived(ev event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sx, ok := ev.(event.Sysex); ok {
		r.sysex = append(r.sysex, sx)
		return nil
	}

	now := r.now()
	if r.start.IsZero() {
		r.start = now
	}
	r.events = append(r.events, Timed{Offset: now.Sub(r.start), Event: ev})
	return nil
}

// Events returns the recorded channel-voice events
func (r *Recorder) Events() []Timed {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Timed(nil), r.events...)
}

// Sysex returns the recorded sysex blocks
func (r *Recorder) Sysex() []event.Sysex {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event.Sysex(nil), r.sysex...)
}

// Len returns the number of recorded channel-voice events
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func (r *Recorder) ticks(d time.Duration) uint32 {
	return uint32(d.Seconds() * r.tempo / 60 * float64(r.resolution))
}

// WriteSMF writes the channel-voice events as a single-track Standard MIDI File
func (r *Recorder) WriteSMF(w io.Writer) (int64, error) {
	r.mu.Lock()
	events := append([]Timed(nil), r.events...)
	r.mu.Unlock()

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(r.resolution)

	var track smf.Track

	track.Add(0, smf.MetaTempo(r.tempo))

	var currentTick uint32
	for _, ev := range events {
		tick := r.ticks(ev.Offset)
		track.Add(tick-currentTick, event.Bytes(ev.Event))
		currentTick = tick
	}
	track.Close(0)

	if err := s.Add(track); err != nil {
		return 0, fmt.Errorf("failed to add track: %w", err)
	}

	n, err := s.WriteTo(w)
	if err != nil {
		return n, fmt.Errorf("failed to write MIDI: %w", err)
	}
	return n, nil
}

// Save writes the recording to filename, and any sysex blocks to syxFilename
// when it is not empty
func (r *Recorder) Save(filename, syxFilename string) error {
	var buf bytes.Buffer
	if _, err := r.WriteSMF(&buf); err != nil {
		return err
	}
	if err := os.WriteFile(filename, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filename, err)
	}

	blocks := r.Sysex()
	if syxFilename == "" || len(blocks) == 0 {
		return nil
	}
	return sysex.WriteFile(syxFilename, blocks...)
}

// ReadSMF decodes the supported channel-voice events of a Standard MIDI File,
// merging all tracks in time order
func ReadSMF(rd io.Reader) ([]Timed, error) {
	s, err := smf.ReadFrom(rd)
	if err != nil {
		return nil, fmt.Errorf("failed to parse MIDI: %w", err)
	}

	if _, ok := s.TimeFormat.(smf.MetricTicks); !ok {
		return nil, errors.New("only metric time format is supported")
	}

	// Tempo changes of every track apply to all tracks
	var result []Timed
	for _, track := range s.Tracks {
		var ticks int64
		for _, ev := range track {
			ticks += int64(ev.Delta)

			parsed := event.Parse(ev.Message)
			if parsed == nil {
				continue
			}
			offset := time.Duration(s.TimeAt(ticks)) * time.Microsecond
			result = append(result, Timed{Offset: offset, Event: parsed})
		}
	}

	slices.SortStableFunc(result, func(a, b Timed) int {
		return cmp.Compare(a.Offset, b.Offset)
	})
	return result, nil
}
