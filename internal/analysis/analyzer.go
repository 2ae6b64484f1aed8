// Package analysis turns a stream of capture frames into network logs and
// suspicious events.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"capsentry/internal/capture"
	"capsentry/internal/decoder"
	"capsentry/internal/models"
)

// Analyzer drives one capture through decode, fragment tracking and
// classification. A single Analyzer may run many analyses concurrently;
// each run gets its own tracker and result.
type Analyzer struct {
	classifier *Classifier
	newTracker func() FragmentObserver
	logger     *slog.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the logger used for run and frame level diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithTrackerFactory replaces the fragment tracker built for each run.
func WithTrackerFactory(fn func() FragmentObserver) Option {
	return func(a *Analyzer) {
		if fn != nil {
			a.newTracker = fn
		}
	}
}

// NewAnalyzer creates an analyzer with the default rule set.
func NewAnalyzer(opts ...Option) *Analyzer {
	a := &Analyzer{
		classifier: NewClassifier(),
		newTracker: func() FragmentObserver { return NewFragmentTracker() },
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AnalyzeFile opens the capture at path, analyzes it and closes it.
func (a *Analyzer) AnalyzeFile(ctx context.Context, path string) (*models.AnalysisResult, error) {
	src, err := capture.Open(path, capture.WithLogger(a.logger))
	if err != nil {
		AnalysisRunsTotal.WithLabelValues(runFailed).Inc()
		return nil, err
	}
	defer src.Close()

	return a.Analyze(ctx, src)
}

// AnalyzeReader analyzes a capture streamed from r.
func (a *Analyzer) AnalyzeReader(ctx context.Context, r io.Reader) (*models.AnalysisResult, error) {
	src, err := capture.NewSource(r, capture.WithLogger(a.logger))
	if err != nil {
		AnalysisRunsTotal.WithLabelValues(runFailed).Inc()
		return nil, err
	}
	defer src.Close()

	return a.Analyze(ctx, src)
}

// Analyze consumes src until it is exhausted.
//
// An error is returned only when the source fails before yielding its first
// frame; the result is nil in that case. A source failure after at least one
// frame, or a cancelled ctx, ends the run early and returns the accumulated
// result with Status set to models.StatusPartial. Frames that do not decode
// are counted and skipped. Analyze does not close src.
func (a *Analyzer) Analyze(ctx context.Context, src capture.Source) (*models.AnalysisResult, error) {
	result := models.NewAnalysisResult()
	tracker := a.newTracker()

	for {
		if err := ctx.Err(); err != nil {
			a.stop(result, err)
			break
		}

		frame, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			if result.Frames.Total == 0 {
				AnalysisRunsTotal.WithLabelValues(runFailed).Inc()
				return nil, fmt.Errorf("reading first frame: %w", err)
			}
			a.stop(result, err)
			break
		}

		a.processFrame(frame, tracker, result)
	}

	a.finish(result, tracker)
	return result, nil
}

func (a *Analyzer) processFrame(frame models.RawFrame, tracker FragmentObserver, result *models.AnalysisResult) {
	result.ObserveFrame(frame)

	rec, reason := decoder.Decode(frame)
	FramesTotal.WithLabelValues(reason.String()).Inc()

	switch {
	case reason == decoder.SkipNone:
		result.Frames.Decoded++
	case reason == decoder.SkipTooShort:
		result.Frames.TooShort++
		return
	case reason == decoder.SkipNotIPv4:
		result.Frames.NotIPv4++
		return
	case reason.Malformed():
		result.Frames.Malformed++
		a.logger.Debug("skipping malformed ipv4 header",
			"seq", frame.Seq,
			"reason", reason.String(),
			"length", len(frame.Data))
		return
	}

	result.NetworkLogs = append(result.NetworkLogs, models.NewNetworkLog(rec))
	tracker.Observe(rec.Identification, rec.FragmentOffset, rec.MoreFragments)

	for _, ev := range a.classifier.Classify(rec) {
		SuspiciousEventsTotal.WithLabelValues(string(ev.Type)).Inc()
		result.SuspiciousActivity = append(result.SuspiciousActivity, ev)
	}
}

func (a *Analyzer) stop(result *models.AnalysisResult, err error) {
	result.Status = models.StatusPartial
	result.StopReason = err.Error()

	level := slog.LevelWarn
	if errors.Is(err, context.Canceled) {
		level = slog.LevelInfo
	}
	a.logger.Log(context.Background(), level, "analysis stopped early",
		"error", err,
		"frames", result.Frames.Total)
}

func (a *Analyzer) finish(result *models.AnalysisResult, tracker FragmentObserver) {
	AnalysisRunsTotal.WithLabelValues(string(result.Status)).Inc()

	groups := -1
	if ft, ok := tracker.(interface{ Len() int }); ok {
		groups = ft.Len()
		FragmentGroupsPerRun.Observe(float64(groups))
	}

	a.logger.Debug("analysis finished",
		"status", result.Status,
		"frames", result.Frames.Total,
		"decoded", result.Frames.Decoded,
		"logs", len(result.NetworkLogs),
		"suspicious", len(result.SuspiciousActivity),
		"fragment_groups", groups)
}
