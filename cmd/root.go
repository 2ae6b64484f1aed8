// Package cmd wires the capsentry command line.
package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"capsentry/internal/config"
	"capsentry/internal/logger"
)

// Exit codes reported by Execute.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitPartial = 2
)

// errPartial is returned by commands that produced output from a capture
// that could not be read to the end.
var errPartial = errors.New("capture was only partially analyzed")

type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
}

// NewRootCmd builds the command tree with a fresh configuration.
func NewRootCmd() *cobra.Command {
	a := &app{v: config.New()}

	rootCmd := &cobra.Command{
		Use:           "capsentry",
		Short:         "capsentry flags suspicious IPv4 traffic in packet captures",
		Long:          `capsentry reads pcap and pcapng files, logs every IPv4 flow it can decode and flags unusual protocols and fragment offsets.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is $HOME/.config/capsentry/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "text", "log format: text or json")
	_ = a.v.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = a.v.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))

	rootCmd.AddCommand(newAnalyzeCmd(a))
	rootCmd.AddCommand(newViewCmd(a))
	rootCmd.AddCommand(newServeCmd(a))

	return rootCmd
}

// Execute runs the CLI and exits with the matching status code.
func Execute() {
	os.Exit(run(NewRootCmd()))
}

func run(rootCmd *cobra.Command) int {
	err := rootCmd.Execute()
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, errPartial):
		return ExitPartial
	default:
		fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", err)
		return ExitFailure
	}
}

func (a *app) init() error {
	path := a.cfgFile
	if path == "" {
		path = defaultConfigPath()
	}

	cfg, err := config.Load(a.v, path)
	if err != nil {
		return err
	}
	a.cfg = cfg

	if _, err := logger.Init(cfg.Log); err != nil {
		return err
	}
	return nil
}

// defaultConfigPath returns the per-user config file when it exists.
func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	path := filepath.Join(home, ".config", "capsentry", "config.yaml")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}
