package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/lexandro/assetpipe/config"
	"github.com/lexandro/assetpipe/derive"
	"github.com/lexandro/assetpipe/ignore"
	"github.com/lexandro/assetpipe/metrics"
	"github.com/lexandro/assetpipe/minify"
	"github.com/lexandro/assetpipe/pipeline"
	"github.com/spf13/cobra"
)

// dotEnvPath is loaded before the config so ASSETPIPE_* overrides can live
// next to the theme.
const dotEnvPath = ".env"

// app is everything one invocation needs: configuration, logger, ignore
// rules, metrics and the pipeline session.
type app struct {
	cfg         *config.Config
	logger      *slog.Logger
	matcher     *ignore.Matcher
	metrics     *metrics.Recorder
	session     *pipeline.Session
	metricsFile string
	startTime   time.Time
}

func newApp(cmd *cobra.Command, opts *globalOptions, console io.Writer) (*app, error) {
	startTime := time.Now()

	if err := config.LoadDotEnv(dotEnvPath); err != nil {
		return nil, err
	}
	cfg, err := config.Load(opts.configPath, cmd.Flags().Changed("config"))
	if err != nil {
		return nil, err
	}

	srcDir, err := filepath.Abs(cfg.Images.SrcDir)
	if err != nil {
		return nil, fmt.Errorf("resolve source directory: %w", err)
	}
	cfg.Images.SrcDir = srcDir

	logger := setupLogger(opts.logLevel, opts.logFile)
	logger.Info("starting assetpipe",
		"command", cmd.Name(),
		"source", cfg.Images.SrcDir,
		"output", cfg.Images.OutDir,
		"extensions", cfg.Images.Extensions,
		"concurrency", cfg.Images.Concurrency,
	)

	a := &app{
		cfg:    cfg,
		logger: logger,
		matcher: ignore.NewMatcher(ignore.MatcherOptions{
			RootDir:        srcDir,
			CustomPatterns: opts.excludes,
		}),
		metrics:     metrics.New(),
		metricsFile: opts.metricsFile,
		startTime:   startTime,
	}
	a.session = pipeline.NewSession(cfg.PipelineConfig(),
		pipeline.WithLogger(logger),
		pipeline.WithIgnore(a.matcher),
		pipeline.WithMetrics(a.metrics),
		pipeline.WithConsole(console),
		pipeline.WithDeriver(derive.New(cfg.ImageOptions())),
		pipeline.WithAfterRun(a.afterRun),
	)
	return a, nil
}

func (a *app) afterRun(pipeline.Stats) {
	if a.metricsFile == "" {
		return
	}
	if err := a.metrics.WriteTextfile(a.metricsFile); err != nil {
		a.logger.Warn("failed to write metrics file", "path", a.metricsFile, "error", err)
	}
}

// runMinify minifies the template tree and logs every failed file.
func (a *app) runMinify() (minify.TreeStats, error) {
	mc := a.cfg.Minify
	start := time.Now()

	stats, err := minify.New(a.cfg.MinifyOptions()).Tree(mc.SrcDir, mc.OutDir, mc.Extensions)
	if err != nil {
		var joined interface{ Unwrap() []error }
		if !errors.As(err, &joined) {
			return stats, fmt.Errorf("minify %s: %w", mc.SrcDir, err)
		}
		for _, fileErr := range joined.Unwrap() {
			a.logger.Error("failed to minify template", "error", fileErr)
		}
		return stats, fmt.Errorf("minify %s: %d of %d templates failed", mc.SrcDir, stats.Failed, stats.Files+stats.Failed)
	}

	a.logger.Info("templates minified",
		"files", stats.Files,
		"inputBytes", stats.InputBytes,
		"outputBytes", stats.OutputBytes,
		"duration", time.Since(start),
	)
	return stats, nil
}
