package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"

	"capsentry/internal/models"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFF7DB")).
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1).
			Margin(0, 1)

	focusedStyle = infoStyle.
			BorderForeground(lipgloss.Color("#7D56F4"))

	partialStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFA500")).
			Bold(true)
)

func (m AnalysisModel) View() string {
	title := titleStyle.Render(fmt.Sprintf("capsentry - %s", m.source))

	status := fmt.Sprintf("Run: %s\nStatus: %s", m.runID, m.result.Status)
	if !m.result.Complete() {
		status += "\n" + partialStyle.Render("Incomplete: "+m.result.StopReason)
	}
	statusBox := infoStyle.Render(status)

	f := m.result.Frames
	frames := fmt.Sprintf("Frames: %d\nDecoded: %d\nSkipped: %d short, %d non-IPv4, %d malformed\nBytes: %d captured, %d on the wire",
		f.Total, f.Decoded, f.TooShort, f.NotIPv4, f.Malformed, f.CapturedBytes, f.WireBytes)
	if w := m.result.Window; w != nil {
		frames += fmt.Sprintf("\nSpan: %s from %s", w.Duration(), w.First.Format(time.DateTime))
	}
	framesBox := infoStyle.Render(frames)

	logsBox := m.paneStyle(logsPane).Render(
		fmt.Sprintf("Network Logs (%d)\n%s", len(m.result.NetworkLogs), m.logs.View()))

	eventsBody := "No suspicious activity detected."
	if len(m.result.SuspiciousActivity) > 0 {
		eventsBody = m.events.View()
	}
	eventsBox := m.paneStyle(eventsPane).Render(
		fmt.Sprintf("Suspicious Activity (%d)\n%s", len(m.result.SuspiciousActivity), eventsBody))

	row1 := lipgloss.JoinHorizontal(lipgloss.Top, statusBox, framesBox)
	body := lipgloss.JoinVertical(lipgloss.Left, title, row1, logsBox, eventsBox)

	return body + "\nPress tab to switch panes, q to quit."
}

func (m AnalysisModel) paneStyle(p pane) lipgloss.Style {
	if m.focus == p {
		return focusedStyle
	}
	return infoStyle
}

// statusLine summarizes a result in one line for non-interactive output.
func statusLine(r *models.AnalysisResult) string {
	return fmt.Sprintf("%s: %d logs, %d suspicious events from %d frames",
		r.Status, len(r.NetworkLogs), len(r.SuspiciousActivity), r.Frames.Total)
}
