package models

import "time"

// EventType identifies which heuristic flagged a record.
type EventType string

const (
	EventUnknownProtocol     EventType = "Unknown Protocol"
	EventLargeFragmentOffset EventType = "Large Fragment Offset"
)

// SuspiciousEvent is a single heuristic hit.
type SuspiciousEvent struct {
	Type    EventType `json:"type" yaml:"type"`
	Details string    `json:"details" yaml:"details"`
}

// Status tells callers whether the capture was read to the end.
type Status string

const (
	StatusComplete Status = "complete"
	StatusPartial  Status = "partial"
)

// FrameCounts tallies frames by decode outcome.
type FrameCounts struct {
	Total     int `json:"total" yaml:"total"`
	Decoded   int `json:"decoded" yaml:"decoded"`
	TooShort  int `json:"tooShort" yaml:"tooShort"`
	NotIPv4   int `json:"notIPv4" yaml:"notIPv4"`
	Malformed int `json:"malformed" yaml:"malformed"`

	CapturedBytes int64 `json:"capturedBytes" yaml:"capturedBytes"`
	WireBytes     int64 `json:"wireBytes" yaml:"wireBytes"`
	Clipped       int   `json:"clipped" yaml:"clipped"` // Frames shorter than on the wire
}

// CaptureWindow is the timestamp range of the frames that were read.
type CaptureWindow struct {
	First time.Time `json:"first" yaml:"first"`
	Last  time.Time `json:"last" yaml:"last"`
}

// Duration returns the time between the first and last frame.
func (w CaptureWindow) Duration() time.Duration {
	return w.Last.Sub(w.First)
}

// AnalysisResult is everything one analysis run produces.
//
// NetworkLogs follow frame order and SuspiciousActivity follows detection
// order. A result with Status == StatusPartial stopped early; StopReason
// says why and the collections hold what was accumulated before the stop.
type AnalysisResult struct {
	NetworkLogs        []NetworkLog      `json:"networkLogs" yaml:"networkLogs"`
	SuspiciousActivity []SuspiciousEvent `json:"suspiciousActivity" yaml:"suspiciousActivity"`
	Status             Status            `json:"status" yaml:"status"`
	StopReason         string            `json:"stopReason,omitempty" yaml:"stopReason,omitempty"`
	Frames             FrameCounts       `json:"frames" yaml:"frames"`
	Window             *CaptureWindow    `json:"window,omitempty" yaml:"window,omitempty"`
}

// NewAnalysisResult returns an empty, complete result with non-nil collections.
func NewAnalysisResult() *AnalysisResult {
	return &AnalysisResult{
		NetworkLogs:        make([]NetworkLog, 0),
		SuspiciousActivity: make([]SuspiciousEvent, 0),
		Status:             StatusComplete,
	}
}

// Complete reports whether every frame of the capture was read.
func (r *AnalysisResult) Complete() bool {
	return r.Status == StatusComplete
}

// ObserveFrame folds one frame's size and timestamp into the totals. Frames
// without a timestamp leave the window untouched.
func (r *AnalysisResult) ObserveFrame(f RawFrame) {
	r.Frames.Total++
	r.Frames.CapturedBytes += int64(len(f.Data))
	r.Frames.WireBytes += int64(max(f.WireLen, len(f.Data)))
	if f.WireLen > len(f.Data) {
		r.Frames.Clipped++
	}

	if f.Timestamp.IsZero() {
		return
	}
	if r.Window == nil {
		r.Window = &CaptureWindow{First: f.Timestamp, Last: f.Timestamp}
		return
	}
	if f.Timestamp.Before(r.Window.First) {
		r.Window.First = f.Timestamp
	}
	if f.Timestamp.After(r.Window.Last) {
		r.Window.Last = f.Timestamp
	}
}
