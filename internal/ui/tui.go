// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program and relays stop requests to the app
package ui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// Control carries user requests from the TUI to the app
type Control struct {
	Stop chan struct{}
	once sync.Once
}

// NewControl creates a new control handler
func NewControl() *Control {
	return &Control{Stop: make(chan struct{})}
}

func (c *Control) requestStop() {
	c.once.Do(func() { close(c.Stop) })
}

// NewModel creates a new TUI model
func NewModel(ctrl *Control) Model {
	return Model{
		state: "idle",
		ctrl:  ctrl,
	}
}

// Run creates the TUI program; the caller runs it
func Run(ctrl *Control) (*tea.Program, error) {
	p := tea.NewProgram(NewModel(ctrl), tea.WithAltScreen())
	return p, nil
}
