package tui

import (
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"capsentry/internal/models"
)

// Run opens the viewer on the alternate screen and blocks until the user
// quits, then prints a one-line summary to out.
func Run(result *models.AnalysisResult, source, runID string, out io.Writer, opts ...tea.ProgramOption) error {
	model := NewAnalysisModel(result, source, runID)
	opts = append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)

	p := tea.NewProgram(model, opts...)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running viewer: %w", err)
	}

	_, err := fmt.Fprintln(out, statusLine(result))
	return err
}
