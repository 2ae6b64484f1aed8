package reporting

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"capsentry/internal/analysis"
	"capsentry/internal/models"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA500")).Bold(true)
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	alertStyle  = cellStyle.Foreground(lipgloss.Color("#D9534F"))
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

func renderText(r *Report) string {
	res := r.Result
	var b strings.Builder

	b.WriteString(titleStyle.Render("capsentry analysis report"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Run:    %s\n", r.RunID)
	fmt.Fprintf(&b, "Source: %s\n", r.Source)
	fmt.Fprintf(&b, "Status: %s\n", res.Status)
	if !res.Complete() {
		b.WriteString(warnStyle.Render("Incomplete: " + res.StopReason))
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Frames: %d total, %d decoded, %d too short, %d not IPv4, %d malformed\n",
		res.Frames.Total, res.Frames.Decoded, res.Frames.TooShort, res.Frames.NotIPv4, res.Frames.Malformed)
	fmt.Fprintf(&b, "Bytes:  %d captured, %d on the wire, %d clipped frames\n",
		res.Frames.CapturedBytes, res.Frames.WireBytes, res.Frames.Clipped)
	if w := res.Window; w != nil {
		fmt.Fprintf(&b, "Window: %s to %s (%s)\n",
			w.First.Format(time.RFC3339Nano), w.Last.Format(time.RFC3339Nano), w.Duration())
	}
	b.WriteString("\n")

	b.WriteString(titleStyle.Render(fmt.Sprintf("Network Logs (%d)", len(res.NetworkLogs))))
	b.WriteString("\n")
	if len(res.NetworkLogs) == 0 {
		b.WriteString("No IPv4 traffic decoded.\n")
	} else {
		b.WriteString(logsTable(res.NetworkLogs).String())
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(titleStyle.Render(fmt.Sprintf("Suspicious Activity (%d)", len(res.SuspiciousActivity))))
	b.WriteString("\n")
	if len(res.SuspiciousActivity) == 0 {
		b.WriteString("No suspicious activity detected.\n")
	} else {
		b.WriteString(eventsTable(res.SuspiciousActivity).String())
		b.WriteString("\n")
	}

	return b.String()
}

func logsTable(logs []models.NetworkLog) *table.Table {
	rows := make([][]string, len(logs))
	for i, l := range logs {
		rows[i] = []string{
			strconv.Itoa(i + 1),
			l.SrcIP,
			l.DstIP,
			analysis.GetProtocolName(l.Protocol),
			strconv.FormatBool(l.MoreFragments),
			strconv.FormatUint(uint64(l.FragmentOffset), 10),
		}
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers("#", "Source", "Destination", "Protocol", "MF", "Offset").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func eventsTable(events []models.SuspiciousEvent) *table.Table {
	rows := make([][]string, len(events))
	for i, ev := range events {
		rows[i] = []string{string(ev.Type), ev.Details}
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers("Type", "Details").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 0:
				return alertStyle
			default:
				return cellStyle
			}
		})
}
