// Package sysex reassembles and inspects MIDI system-exclusive blocks.
//
// Transports deliver sysex in arbitrary chunks. The Reassembler turns any
// chunking of a block back into exactly one payload:
//
//	┌──────┐  0xF0 (clear, append)   ┌──────────────┐
//	│ Idle │ ──────────────────────► │ Accumulating │ ◄──┐ other bytes (append)
//	└──────┘ ◄────────────────────── └──────┬───────┘ ───┘
//	    ▲      0xF7 (append, emit)          │
//	    │                                   │ 0xF0 (restart, partial discarded)
//	    └── realtime bytes >= 0xF8 are ignored in both states
package sysex

import (
	"log/slog"

	"github.com/james-see/midiplug/pkg/event"
)

// Reassembler accumulates sysex bytes for a single input.
// It is not safe for concurrent use.
type Reassembler struct {
	active  bool
	buf     []byte
	maxSize int
	dropped uint64
	logger  *slog.Logger
}

// Option configures a Reassembler
type Option func(*Reassembler)

// WithMaxSize discards blocks that grow beyond n bytes. Zero means unlimited.
func WithMaxSize(n int) Option {
	return func(r *Reassembler) {
		r.maxSize = n
	}
}

// WithLogger sets the logger used to report discarded data
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reassembler) {
		r.logger = logger
	}
}

// NewReassembler creates an idle reassembler
func NewReassembler(opts ...Option) *Reassembler {
	r := &Reassembler{
		buf:    make([]byte, 0, 256),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Feed processes a chunk and returns every block it completed, in order.
// Blocks are copies and stay valid after later calls.
func (r *Reassembler) Feed(chunk []byte) []event.Sysex {
	var out []event.Sysex
	stray := 0

	for _, b := range chunk {
		switch {
		case b >= event.RealtimeFloor:
			continue
		case b == event.SysexStart:
			if r.active {
				r.discard("restarted before end marker")
			}
			r.buf = append(r.buf[:0], b)
			r.active = true
		case !r.active:
			stray++
		case b == event.SysexEnd:
			r.buf = append(r.buf, b)
			payload := make([]byte, len(r.buf))
			copy(payload, r.buf)
			out = append(out, event.Sysex{Payload: payload})
			r.buf = r.buf[:0]
			r.active = false
		default:
			r.buf = append(r.buf, b)
			if r.maxSize > 0 && len(r.buf) > r.maxSize {
				r.discard("block exceeds maximum size")
			}
		}
	}

	if stray > 0 {
		r.dropped++
		r.logger.Debug("dropped sysex bytes outside a block", "bytes", stray)
	}

	return out
}

// Reset discards any partial block and returns to idle.
// It reports whether a partial block was discarded.
func (r *Reassembler) Reset() bool {
	if !r.active {
		r.buf = r.buf[:0]
		return false
	}
	r.discard("interrupted")
	return true
}

// Active reports whether a block is in progress
func (r *Reassembler) Active() bool {
	return r.active
}

// Len returns the number of buffered bytes
func (r *Reassembler) Len() int {
	return len(r.buf)
}

// Dropped returns how many malformed blocks or stray runs were discarded
func (r *Reassembler) Dropped() uint64 {
	return r.dropped
}

func (r *Reassembler) discard(reason string) {
	r.logger.Debug("discarding partial sysex", "reason", reason, "bytes", len(r.buf))
	r.dropped++
	r.buf = r.buf[:0]
	r.active = false
}
