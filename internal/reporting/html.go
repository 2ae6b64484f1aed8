package reporting

import (
	"html/template"
	"io"

	"capsentry/internal/analysis"
)

var htmlTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"protocol": analysis.GetProtocolName,
	"inc":      func(i int) int { return i + 1 },
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>capsentry Analysis Report - {{.RunID}}</title>
    <style>
        body { font-family: sans-serif; margin: 20px; color: #333; }
        h1, h2 { color: #2c3e50; }
        table { width: 100%; border-collapse: collapse; margin-bottom: 20px; }
        th, td { border: 1px solid #ddd; padding: 8px; text-align: left; }
        th { background-color: #f2f2f2; }
        tr:nth-child(even) { background-color: #f9f9f9; }
        .summary { background: #eef; padding: 15px; border-radius: 5px; margin-bottom: 20px; }
        .alert { color: #d9534f; font-weight: bold; }
        .partial { color: #f0ad4e; font-weight: bold; }
    </style>
</head>
<body>
    <h1>capsentry Analysis Report</h1>
    <div class="summary">
        <p><strong>Run:</strong> {{.RunID}}</p>
        <p><strong>Source:</strong> {{.Source}}</p>
        <p><strong>Generated:</strong> {{.GeneratedAt.Format "Mon, 02 Jan 2006 15:04:05 MST"}}</p>
        <p><strong>Status:</strong> {{.Result.Status}}</p>
        {{- if .Result.StopReason}}
        <p class="partial">Incomplete: {{.Result.StopReason}}</p>
        {{- end}}
        <p><strong>Frames:</strong> {{.Result.Frames.Total}} total, {{.Result.Frames.Decoded}} decoded, {{.Result.Frames.TooShort}} too short, {{.Result.Frames.NotIPv4}} not IPv4, {{.Result.Frames.Malformed}} malformed</p>
        <p><strong>Bytes:</strong> {{.Result.Frames.CapturedBytes}} captured, {{.Result.Frames.WireBytes}} on the wire, {{.Result.Frames.Clipped}} clipped frames</p>
        {{- with .Result.Window}}
        <p><strong>Window:</strong> {{.First.Format "2006-01-02 15:04:05.000000 MST"}} to {{.Last.Format "2006-01-02 15:04:05.000000 MST"}} ({{.Duration}})</p>
        {{- end}}
    </div>

    <h2>Suspicious Activity</h2>
    <table>
        <thead>
            <tr>
                <th>Type</th>
                <th>Details</th>
            </tr>
        </thead>
        <tbody>
{{- range .Result.SuspiciousActivity}}
            <tr><td class="alert">{{.Type}}</td><td>{{.Details}}</td></tr>
{{- else}}
            <tr><td colspan="2">No suspicious activity detected.</td></tr>
{{- end}}
        </tbody>
    </table>

    <h2>Network Logs</h2>
    <table>
        <thead>
            <tr>
                <th>#</th>
                <th>Source</th>
                <th>Destination</th>
                <th>Protocol</th>
                <th>More Fragments</th>
                <th>Fragment Offset</th>
            </tr>
        </thead>
        <tbody>
{{- range $i, $l := .Result.NetworkLogs}}
            <tr><td>{{inc $i}}</td><td>{{$l.SrcIP}}</td><td>{{$l.DstIP}}</td><td>{{protocol $l.Protocol}} ({{$l.Protocol}})</td><td>{{$l.MoreFragments}}</td><td>{{$l.FragmentOffset}}</td></tr>
{{- else}}
            <tr><td colspan="6">No IPv4 traffic decoded.</td></tr>
{{- end}}
        </tbody>
    </table>
</body>
</html>
`))

func renderHTML(w io.Writer, r *Report) error {
	return htmlTemplate.Execute(w, r)
}
