package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/james-see/midiplug/pkg/event"
	"github.com/james-see/midiplug/pkg/input"
)

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	model, ok := next.(Model)
	if !ok {
		t.Fatalf("Update() returned %T, want Model", next)
	}
	return model
}

func key(s string) tea.KeyMsg {
	switch s {
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func eventMsg(ev event.Event) EventMsg {
	return EventMsg{Time: time.Unix(0, 0), Event: ev}
}

func TestModelReceivesEvents(t *testing.T) {
	m := New("Test In", nil)
	if m.State() != StateWaiting {
		t.Fatalf("initial state = %v, want waiting", m.State())
	}
	if !strings.Contains(m.View(), "Waiting for MIDI") {
		t.Error("waiting view should show the spinner line")
	}

	m = update(t, m, eventMsg(event.NoteOn{Channel: 0, Pitch: 60, Velocity: 100}))
	m = update(t, m, eventMsg(event.Sysex{Payload: []byte{0xF0, 0x43, 0xF7}}))

	if m.State() != StateMonitoring {
		t.Errorf("state = %v, want monitoring", m.State())
	}
	if len(m.Lines()) != 2 {
		t.Fatalf("Lines() = %d, want 2", len(m.Lines()))
	}

	view := m.View()
	if !strings.Contains(view, "Test In") || !strings.Contains(view, "note-on") {
		t.Errorf("view missing port or event:\n%s", view)
	}
}

func TestModelPause(t *testing.T) {
	m := New("", nil)
	m = update(t, m, eventMsg(event.NoteOn{Channel: 0, Pitch: 60, Velocity: 100}))
	m = update(t, m, key(" "))

	if m.State() != StatePaused {
		t.Fatalf("state = %v, want paused", m.State())
	}
	m = update(t, m, eventMsg(event.NoteOn{Channel: 0, Pitch: 61, Velocity: 100}))
	if len(m.Lines()) != 1 {
		t.Errorf("paused monitor appended events: %d lines", len(m.Lines()))
	}
	if !strings.Contains(m.View(), "PAUSED") {
		t.Error("view should show paused status")
	}

	m = update(t, m, key("p"))
	if m.State() != StateMonitoring {
		t.Errorf("state = %v, want monitoring", m.State())
	}
}

func TestModelFilterAndClear(t *testing.T) {
	m := New("", nil)
	m = update(t, m, eventMsg(event.NoteOn{Channel: 0, Pitch: 60, Velocity: 100}))
	m = update(t, m, eventMsg(event.Controller{Channel: 0, Number: 1, Value: 2}))
	m = update(t, m, eventMsg(event.NoteOn{Channel: 0, Pitch: 62, Velocity: 100}))

	m = update(t, m, key("tab"))
	if m.Filter() != event.KindNoteOn {
		t.Fatalf("Filter() = %v, want note-on", m.Filter())
	}
	if len(m.Lines()) != 2 {
		t.Errorf("filtered Lines() = %d, want 2", len(m.Lines()))
	}

	// Cycling wraps back to all kinds
	for range event.Kinds {
		m = update(t, m, key("tab"))
	}
	if m.Filter() != event.KindAny {
		t.Errorf("Filter() = %v after full cycle, want any", m.Filter())
	}

	m = update(t, m, key("c"))
	if len(m.Lines()) != 0 || m.State() != StateWaiting {
		t.Errorf("clear left %d lines in state %v", len(m.Lines()), m.State())
	}
}

func TestModelStats(t *testing.T) {
	m := New("", func() input.Stats {
		return input.Stats{Skipped: 7, SysexDropped: 2}
	})
	m = update(t, m, statsTickMsg(time.Now()))

	view := m.View()
	if !strings.Contains(view, "skipped: 7") || !strings.Contains(view, "sysex dropped: 2") {
		t.Errorf("footer missing stats:\n%s", view)
	}
}

func TestModelQuit(t *testing.T) {
	m := New("", nil)
	_, cmd := m.Update(key("q"))
	if cmd == nil {
		t.Fatal("q should return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
}
