package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"capsentry/internal/analysis"
	"capsentry/internal/models"
	"capsentry/internal/reporting"
)

func newAnalyzeCmd(a *app) *cobra.Command {
	var (
		format  string
		output  string
		timeout time.Duration
	)

	analyzeCmd := &cobra.Command{
		Use:   "analyze <capture>",
		Short: "Analyze a capture file and print a report",
		Long: `Analyze decodes every Ethernet/IPv4 frame in a pcap or pcapng file and
reports the observed flows and any suspicious events.

If -o names an existing directory, a timestamped report file is created in it.
Exit status is 0 when the capture was read completely, 2 when it was cut short
and 1 when it could not be analyzed at all.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := reporting.ParseFormat(format)
			if err != nil {
				return err
			}

			path := args[0]
			result, err := analyzeFile(cmd.Context(), path, timeout)
			if err != nil {
				return err
			}

			report := reporting.NewReport(path, result)
			if err := writeReport(cmd, report, f, output); err != nil {
				return err
			}
			return partialErr(result)
		},
	}

	analyzeCmd.Flags().StringVarP(&format, "format", "f", "text", "report format: text, json, yaml, html")
	analyzeCmd.Flags().StringVarP(&output, "output", "o", "", "write the report to a file or directory instead of stdout")
	analyzeCmd.Flags().DurationVar(&timeout, "timeout", 0, "stop the analysis after this long (0 disables)")

	return analyzeCmd
}

func analyzeFile(ctx context.Context, path string, timeout time.Duration) (*models.AnalysisResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	log := slog.Default().With("capture", path)
	result, err := analysis.NewAnalyzer(analysis.WithLogger(log)).AnalyzeFile(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("analyzing %s: %w", path, err)
	}

	if result.Complete() {
		log.Info("analysis complete",
			"frames", result.Frames.Total,
			"logs", len(result.NetworkLogs),
			"suspicious", len(result.SuspiciousActivity))
	} else {
		log.Warn("analysis incomplete, results are partial",
			"reason", result.StopReason,
			"frames", result.Frames.Total)
	}
	return result, nil
}

func writeReport(cmd *cobra.Command, report *reporting.Report, f reporting.Format, output string) error {
	if output == "" {
		return reporting.Render(cmd.OutOrStdout(), report, f)
	}

	if info, err := os.Stat(output); err == nil && info.IsDir() {
		filename, err := reporting.GenerateSessionReport(report, f, output)
		if err != nil {
			return err
		}
		slog.Info("report written", "path", filename)
		return nil
	}

	if err := reporting.WriteFile(output, report, f); err != nil {
		return err
	}
	slog.Info("report written", "path", output)
	return nil
}

func partialErr(result *models.AnalysisResult) error {
	if result.Complete() {
		return nil
	}
	return fmt.Errorf("%w: %s", errPartial, result.StopReason)
}
