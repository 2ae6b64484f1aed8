package reporting

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"capsentry/internal/models"
)

func sampleResult() *models.AnalysisResult {
	res := models.NewAnalysisResult()
	res.NetworkLogs = append(res.NetworkLogs,
		models.NetworkLog{SrcIP: "192.168.1.10", DstIP: "192.168.1.20", Protocol: 6},
		models.NetworkLog{SrcIP: "203.0.113.7", DstIP: "192.168.1.20", Protocol: 47, FragmentOffset: 4000},
	)
	res.SuspiciousActivity = append(res.SuspiciousActivity,
		models.SuspiciousEvent{Type: models.EventUnknownProtocol, Details: "Non-standard protocol 47 from 203.0.113.7"},
		models.SuspiciousEvent{Type: models.EventLargeFragmentOffset, Details: "203.0.113.7 offset=4000"},
	)
	res.Frames = models.FrameCounts{Total: 3, Decoded: 2, TooShort: 1, CapturedBytes: 140, WireBytes: 1594, Clipped: 1}
	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	res.Window = &models.CaptureWindow{First: first, Last: first.Add(2 * time.Millisecond)}
	return res
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{
		"json": FormatJSON,
		"JSON": FormatJSON,
		"yaml": FormatYAML,
		"yml":  FormatYAML,
		"text": FormatText,
		"html": FormatHTML,
	} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseFormat("pdf")
	assert.EqualError(t, err, "unsupported format: pdf")
}

func TestNewReport(t *testing.T) {
	r := NewReport("capture.pcap", sampleResult())

	_, err := uuid.Parse(r.RunID)
	assert.NoError(t, err)
	assert.Equal(t, "capture.pcap", r.Source)
	assert.False(t, r.GeneratedAt.IsZero())
	assert.NotEqual(t, r.RunID, NewReport("capture.pcap", sampleResult()).RunID)
}

func TestRender_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, NewReport("x.pcap", sampleResult()), FormatJSON))

	var decoded struct {
		Result struct {
			NetworkLogs []map[string]any `json:"networkLogs"`
			Suspicious  []map[string]any `json:"suspiciousActivity"`
			Status      string           `json:"status"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))

	require.Len(t, decoded.Result.NetworkLogs, 2)
	assert.Equal(t, "203.0.113.7", decoded.Result.NetworkLogs[1]["srcIP"])
	assert.Equal(t, float64(4000), decoded.Result.NetworkLogs[1]["fragmentOffset"])
	assert.Equal(t, false, decoded.Result.NetworkLogs[1]["moreFragments"])
	require.Len(t, decoded.Result.Suspicious, 2)
	assert.Equal(t, "Unknown Protocol", decoded.Result.Suspicious[0]["type"])
	assert.Equal(t, "complete", decoded.Result.Status)
	assert.NotContains(t, buf.String(), "stopReason")
}

func TestRender_JSONEmptyCollections(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, NewReport("x.pcap", models.NewAnalysisResult()), FormatJSON))

	assert.Contains(t, buf.String(), `"networkLogs": []`)
	assert.Contains(t, buf.String(), `"suspiciousActivity": []`)
}

func TestRender_YAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, NewReport("x.pcap", sampleResult()), FormatYAML))

	var decoded Report
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))

	want := sampleResult()
	require.NotNil(t, decoded.Result.Window)
	assert.True(t, want.Window.First.Equal(decoded.Result.Window.First))
	assert.True(t, want.Window.Last.Equal(decoded.Result.Window.Last))

	want.Window, decoded.Result.Window = nil, nil
	assert.Equal(t, want, decoded.Result)
}

func TestRender_Text(t *testing.T) {
	res := sampleResult()
	res.Status = models.StatusPartial
	res.StopReason = "truncated capture after frame 3"

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, NewReport("x.pcap", res), FormatText))
	out := buf.String()

	assert.Contains(t, out, "Network Logs (2)")
	assert.Contains(t, out, "Suspicious Activity (2)")
	assert.Contains(t, out, "192.168.1.10")
	assert.Contains(t, out, "GRE")
	assert.Contains(t, out, "203.0.113.7 offset=4000")
	assert.Contains(t, out, "Incomplete: truncated capture after frame 3")
	assert.Contains(t, out, "140 captured, 1594 on the wire, 1 clipped frames")
	assert.Contains(t, out, "Window: 2024-01-01T00:00:00Z to 2024-01-01T00:00:00.002Z (2ms)")
}

func TestRender_TextEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, NewReport("x.pcap", models.NewAnalysisResult()), FormatText))

	assert.Contains(t, buf.String(), "No IPv4 traffic decoded.")
	assert.Contains(t, buf.String(), "No suspicious activity detected.")
	assert.NotContains(t, buf.String(), "Incomplete")
	assert.NotContains(t, buf.String(), "Window:")
}

func TestRender_HTMLEscapes(t *testing.T) {
	r := NewReport("<script>alert(1)</script>.pcap", sampleResult())

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, r, FormatHTML))
	html := buf.String()

	assert.Contains(t, html, "capsentry Analysis Report")
	assert.Contains(t, html, "Non-standard protocol 47 from 203.0.113.7")
	assert.Contains(t, html, "GRE (47)")
	assert.Contains(t, html, "1594 on the wire")
	assert.Contains(t, html, "2024-01-01 00:00:00.002000 UTC (2ms)")
	assert.NotContains(t, html, "<script>alert(1)</script>")
}

func TestRender_Unsupported(t *testing.T) {
	err := Render(&bytes.Buffer{}, NewReport("x", sampleResult()), Format("pdf"))
	assert.Error(t, err)
}

func TestGenerateSessionReport(t *testing.T) {
	dir := t.TempDir()
	r := NewReport("x.pcap", sampleResult())

	filename, err := GenerateSessionReport(r, FormatHTML, dir)
	require.NoError(t, err)

	assert.Equal(t, dir, filepath.Dir(filename))
	assert.True(t, strings.HasPrefix(filepath.Base(filename), "report_"))
	assert.True(t, strings.HasSuffix(filename, ".html"))

	content, err := os.ReadFile(filename)
	require.NoError(t, err)
	assert.Contains(t, string(content), r.RunID)
}

func TestWriteFile_TextExtension(t *testing.T) {
	assert.Equal(t, "txt", FormatText.Extension())
	assert.Equal(t, "json", FormatJSON.Extension())

	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, WriteFile(path, NewReport("x", sampleResult()), FormatJSON))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, json.Valid(data))
}
