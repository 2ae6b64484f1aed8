package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"capsentry/internal/analysis"
	"capsentry/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP analysis API",
		Long: `Serve accepts multipart capture uploads on POST /api/analyze-network and
answers with the analysis result as JSON.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv := server.New(a.cfg.Server, a.cfg.Metrics, analysis.NewAnalyzer(), nil)
			return srv.ListenAndServe(ctx)
		},
	}

	serveCmd.Flags().String("addr", ":1000", "listen address")
	serveCmd.Flags().Int64("max-upload-bytes", 64<<20, "largest accepted upload")
	serveCmd.Flags().Duration("analyze-timeout", 30*time.Second, "per-upload analysis timeout")
	serveCmd.Flags().Bool("metrics", true, "expose Prometheus metrics")
	_ = a.v.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	_ = a.v.BindPFlag("server.max_upload_bytes", serveCmd.Flags().Lookup("max-upload-bytes"))
	_ = a.v.BindPFlag("server.analyze_timeout", serveCmd.Flags().Lookup("analyze-timeout"))
	_ = a.v.BindPFlag("metrics.enabled", serveCmd.Flags().Lookup("metrics"))

	return serveCmd
}
