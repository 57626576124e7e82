// ABOUTME: Bubbletea model for the playback TUI
// ABOUTME: Defines playback progress state and update logic
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Model represents the TUI state
type Model struct {
	// Source
	file         string
	sourceFormat string

	// Device
	device       string
	targetFormat string
	virtual      bool
	shaping      string

	// Playback
	state    string
	played   time.Duration
	total    time.Duration
	latency  time.Duration
	chunks   int64
	silence  int64
	underrun int64
	errors   int64

	done bool
	err  error

	// Debug
	showDebug bool
	sessionID string

	ctrl *Control

	// Dimensions
	width  int
	height int
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	case DoneMsg:
		m.done = true
		m.err = msg.Err
		m.state = "stopped"
		return m, tea.Quit
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	s := ""
	s += m.renderHeader()
	s += m.renderRoute()
	s += m.renderProgress()
	s += m.renderStats()

	if m.showDebug {
		s += m.renderDebug()
	}

	s += m.renderHelp()

	return s
}

// renderHeader renders the playback state
func (m Model) renderHeader() string {
	icon := "▶"
	switch m.state {
	case "priming", "draining":
		icon = "…"
	case "stopped":
		icon = "■"
		if m.err != nil {
			icon = "✗"
		}
	case "idle", "":
		icon = "○"
	}

	state := m.state
	if state == "" {
		state = "idle"
	}

	return fmt.Sprintf(`┌─ Cablecast ──────────────────────────────────────────┐
│ State:  %s %-43s │
├──────────────────────────────────────────────────────┤
`, icon, state)
}

// renderRoute renders source and destination
func (m Model) renderRoute() string {
	cable := ""
	if m.virtual {
		cable = " (virtual cable)"
	}

	s := fmt.Sprintf("│ File:   %-44s │\n", truncate(m.file, 44))
	s += fmt.Sprintf("│ Source: %-44s │\n", truncate(m.sourceFormat, 44))
	s += fmt.Sprintf("│ Device: %-44s │\n", truncate(m.device+cable, 44))
	s += fmt.Sprintf("│ Output: %-44s │\n", truncate(m.targetFormat, 44))
	if m.shaping != "" {
		s += fmt.Sprintf("│ Shape:  %-44s │\n", truncate(m.shaping, 44))
	}
	return s
}

// renderProgress renders the played fraction
func (m Model) renderProgress() string {
	bar := renderBar(int64(m.played), int64(m.total), 30)
	return fmt.Sprintf("│                                                      │\n"+
		"│ [%s] %s / %s%-6s │\n",
		bar, formatDuration(m.played), formatDuration(m.total), "")
}

// renderStats renders playback statistics
func (m Model) renderStats() string {
	return fmt.Sprintf(`├──────────────────────────────────────────────────────┤
│ Chunks: %d  Silence: %d  Underflows: %d  Errors: %d%-4s │
│ Latency: %-44s │
`, m.chunks, m.silence, m.underrun, m.errors, "", m.latency.Round(time.Millisecond))
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	if m.done {
		msg := "Playback complete"
		if m.err != nil {
			msg = "Error: " + m.err.Error()
		}
		return fmt.Sprintf("│ %-52s │\n└──────────────────────────────────────────────────────┘\n", truncate(msg, 52))
	}
	return `│ d:Debug  q:Stop                                      │
└──────────────────────────────────────────────────────┘
`
}

// renderDebug renders debug information
func (m Model) renderDebug() string {
	return fmt.Sprintf(`│ DEBUG:                                               │
│   Session: %-41s │
`, truncate(m.sessionID, 41))
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		if m.ctrl != nil {
			m.ctrl.requestStop()
		}
		return m, tea.Quit
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.File != "" {
		m.file = msg.File
	}
	if msg.SourceFormat != "" {
		m.sourceFormat = msg.SourceFormat
	}
	if msg.Device != "" {
		m.device = msg.Device
		m.virtual = msg.Virtual
	}
	if msg.TargetFormat != "" {
		m.targetFormat = msg.TargetFormat
	}
	if msg.Shaping != "" {
		m.shaping = msg.Shaping
	}
	if msg.State != "" {
		m.state = msg.State
	}
	if msg.SessionID != "" {
		m.sessionID = msg.SessionID
	}
	if msg.Total != 0 {
		m.total = msg.Total
	}
	if msg.Played != 0 {
		m.played = msg.Played
		m.latency = msg.Latency
		m.chunks = msg.Chunks
		m.silence = msg.Silence
		m.underrun = msg.Underflows
		m.errors = msg.WriteErrors
	}
}

// StatusMsg updates TUI state. Zero fields are left unchanged.
type StatusMsg struct {
	File         string
	SourceFormat string
	Device       string
	Virtual      bool
	TargetFormat string
	Shaping      string
	State        string
	SessionID    string
	Total        time.Duration
	Played       time.Duration
	Latency      time.Duration
	Chunks       int64
	Silence      int64
	Underflows   int64
	WriteErrors  int64
}

// DoneMsg ends the TUI once playback has finished
type DoneMsg struct {
	Err error
}

// Utility functions
func renderBar(value, max int64, width int) string {
	filled := 0
	if max > 0 {
		filled = int(value * int64(width) / max)
	}
	if filled > width {
		filled = width
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%02d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}
