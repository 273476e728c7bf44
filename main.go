package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/lexandro/assetpipe/config"
	"github.com/spf13/cobra"
)

// globalOptions holds the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath  string
	logLevel    string
	logFile     string
	metricsFile string
	excludes    []string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "assetpipe",
		Short: "Build pipeline for theme image and template assets",
		Long: `assetpipe derives responsive image variants and minified templates for a theme.

Every raster image under the source directory is written as its original
format, WebP and AVIF, each at full (@1x) and scaled (@2x) resolution. SVG
files are optimized. A content-hash cache keeps unchanged images from being
processed again.`,
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", config.DefaultPath, "Config file path")
	flags.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug|info|warn|error")
	flags.StringVar(&opts.logFile, "log-file", "", "Log file path (default: stderr)")
	flags.StringVar(&opts.metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile after every run")
	flags.StringArrayVar(&opts.excludes, "exclude", nil, "Extra ignore pattern for source images (repeatable)")

	root.AddCommand(
		newBuildCommand(opts),
		newWatchCommand(opts),
		newMinifyCommand(opts),
		newServeCommand(opts),
	)
	return root
}

// setupLogger creates an slog.Logger writing to stderr or a file.
// Logs never go to stdout, which serve mode uses for MCP stdio.
func setupLogger(level string, logFile string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	var writer *os.File
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: cannot open log file %s: %v, falling back to stderr\n", logFile, err)
			writer = os.Stderr
		} else {
			writer = f
		}
	} else {
		writer = os.Stderr
	}

	handler := slog.NewTextHandler(writer, &slog.HandlerOptions{Level: logLevel})
	return slog.New(handler)
}
