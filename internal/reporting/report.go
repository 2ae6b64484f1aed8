package reporting

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"capsentry/internal/models"
)

// Format selects the report encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatText Format = "text"
	FormatHTML Format = "html"
)

// ParseFormat validates a user supplied format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatJSON, FormatYAML, FormatText, FormatHTML:
		return f, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported format: %s", s)
	}
}

// Extension returns the file extension used for the format.
func (f Format) Extension() string {
	if f == FormatText {
		return "txt"
	}
	return string(f)
}

// Report wraps one analysis result with run metadata.
type Report struct {
	RunID       string                 `json:"runId" yaml:"runId"`
	Source      string                 `json:"source" yaml:"source"`
	GeneratedAt time.Time              `json:"generatedAt" yaml:"generatedAt"`
	Result      *models.AnalysisResult `json:"result" yaml:"result"`
}

// NewReport stamps result with a fresh run ID and the current time.
func NewReport(source string, result *models.AnalysisResult) *Report {
	return &Report{
		RunID:       uuid.NewString(),
		Source:      source,
		GeneratedAt: time.Now().UTC(),
		Result:      result,
	}
}

// Render writes r to w in the requested format.
func Render(w io.Writer, r *Report, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	case FormatText:
		_, err := io.WriteString(w, renderText(r))
		return err
	case FormatHTML:
		return renderHTML(w, r)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// GenerateSessionReport writes r into dir under a timestamped name and
// returns the path of the new file.
func GenerateSessionReport(r *Report, format Format, dir string) (string, error) {
	timestamp := r.GeneratedAt.Format("20060102_150405")
	filename := filepath.Join(dir, fmt.Sprintf("report_%s_%s.%s", timestamp, shortID(r.RunID), format.Extension()))

	if err := WriteFile(filename, r, format); err != nil {
		return "", err
	}
	return filename, nil
}

// WriteFile renders r into the file at path, replacing any existing file.
func WriteFile(path string, r *Report, format Format) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := Render(file, r, format); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
