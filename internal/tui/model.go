package tui

import (
	"strconv"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"capsentry/internal/analysis"
	"capsentry/internal/models"
)

type pane int

const (
	logsPane pane = iota
	eventsPane
)

// AnalysisModel displays one finished analysis result.
type AnalysisModel struct {
	result *models.AnalysisResult
	source string
	runID  string

	logs   table.Model
	events table.Model
	focus  pane
}

// NewAnalysisModel builds the viewer for result. source and runID are only
// shown in the header.
func NewAnalysisModel(result *models.AnalysisResult, source, runID string) AnalysisModel {
	logs := table.New(
		table.WithColumns([]table.Column{
			{Title: "#", Width: 6},
			{Title: "Source", Width: 16},
			{Title: "Destination", Width: 16},
			{Title: "Protocol", Width: 10},
			{Title: "MF", Width: 5},
			{Title: "Offset", Width: 8},
		}),
		table.WithRows(logRows(result.NetworkLogs)),
		table.WithFocused(true),
		table.WithHeight(12),
	)

	events := table.New(
		table.WithColumns([]table.Column{
			{Title: "Type", Width: 22},
			{Title: "Details", Width: 48},
		}),
		table.WithRows(eventRows(result.SuspiciousActivity)),
		table.WithFocused(false),
		table.WithHeight(8),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	logs.SetStyles(s)
	events.SetStyles(s)

	return AnalysisModel{
		result: result,
		source: source,
		runID:  runID,
		logs:   logs,
		events: events,
		focus:  logsPane,
	}
}

func (m AnalysisModel) Init() tea.Cmd {
	return nil
}

func logRows(logs []models.NetworkLog) []table.Row {
	rows := make([]table.Row, len(logs))
	for i, l := range logs {
		rows[i] = table.Row{
			strconv.Itoa(i + 1),
			l.SrcIP,
			l.DstIP,
			analysis.GetProtocolName(l.Protocol),
			strconv.FormatBool(l.MoreFragments),
			strconv.FormatUint(uint64(l.FragmentOffset), 10),
		}
	}
	return rows
}

func eventRows(events []models.SuspiciousEvent) []table.Row {
	rows := make([]table.Row, len(events))
	for i, ev := range events {
		rows[i] = table.Row{string(ev.Type), ev.Details}
	}
	return rows
}
