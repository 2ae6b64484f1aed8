package tui

import (
	tea "github.com/charmbracelet/bubbletea"
)

const (
	chromeHeight   = 18
	minTableHeight = 4
)

func (m AnalysisModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab", "shift+tab":
			m.toggleFocus()
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.resize(msg.Height)
		return m, nil
	}

	if m.focus == logsPane {
		m.logs, cmd = m.logs.Update(msg)
	} else {
		m.events, cmd = m.events.Update(msg)
	}
	return m, cmd
}

func (m *AnalysisModel) toggleFocus() {
	if m.focus == logsPane {
		m.focus = eventsPane
		m.logs.Blur()
		m.events.Focus()
		return
	}
	m.focus = logsPane
	m.events.Blur()
	m.logs.Focus()
}

// resize splits the rows left under the header between the two tables.
func (m *AnalysisModel) resize(height int) {
	avail := height - chromeHeight
	if avail < 2*minTableHeight {
		avail = 2 * minTableHeight
	}
	m.logs.SetHeight(avail * 2 / 3)
	m.events.SetHeight(avail - avail*2/3)
}
