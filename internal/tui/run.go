package tui

import (
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"secscan/internal/progress"
)

type Options struct {
	Events <-chan progress.Event
}

// Run shows live sub-scan progress until the events channel is closed and
// the user quits.
func Run(opts Options) error {
	if opts.Events == nil {
		return errors.New("tui events channel is required")
	}
	p := tea.NewProgram(newModel(opts.Events), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
