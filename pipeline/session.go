// Package pipeline wires discovery, change detection, the manifest cache and
// the deriver into one image-processing run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lexandro/assetpipe/changes"
	"github.com/lexandro/assetpipe/derive"
	"github.com/lexandro/assetpipe/discovery"
	"github.com/lexandro/assetpipe/fingerprint"
	"github.com/lexandro/assetpipe/manifest"
	"github.com/lexandro/assetpipe/metrics"
	"golang.org/x/sync/errgroup"
)

// ErrSourceUnavailable is returned when the source root exists but cannot be
// read. It signals misconfiguration rather than a per-file problem.
var ErrSourceUnavailable = errors.New("source directory unavailable")

// Config describes where a session reads from and writes to.
type Config struct {
	SourceDir     string
	OutputDir     string
	Extensions    []string
	CacheFile     string
	TimestampFile string
	// Concurrency caps in-flight files; 0 means unbounded.
	Concurrency int
}

// Deriver writes the derived assets for one source file.
type Deriver interface {
	Derive(src discovery.SourceFile, data []byte, outRoot string) (derive.Result, error)
}

// Session owns the state of one build or dev-server invocation.
type Session struct {
	cfg      Config
	deriver  Deriver
	ignore   discovery.IgnoreChecker
	logger   *slog.Logger
	metrics  *metrics.Recorder
	console  io.Writer
	afterRun func(Stats)
	watching bool

	// runMu serializes runs so two never race on the cache file.
	runMu sync.Mutex

	triggerMu sync.Mutex
	running   bool
	pending   bool

	stateMu   sync.RWMutex
	lastStats Stats
	cache     *manifest.Cache
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// WithIgnore excludes paths during discovery.
func WithIgnore(checker discovery.IgnoreChecker) Option {
	return func(s *Session) { s.ignore = checker }
}

// WithMetrics records run and file counters.
func WithMetrics(recorder *metrics.Recorder) Option {
	return func(s *Session) { s.metrics = recorder }
}

// WithConsole sets where the end-of-run summary is printed. nil disables it.
func WithConsole(w io.Writer) Option {
	return func(s *Session) { s.console = w }
}

// WithDeriver replaces the deriver built from DefaultOptions.
func WithDeriver(d Deriver) Option {
	return func(s *Session) { s.deriver = d }
}

// WithAfterRun registers fn to be called with the stats of every run that
// reaches the end, skipped runs included.
func WithAfterRun(fn func(Stats)) Option {
	return func(s *Session) { s.afterRun = fn }
}

// NewSession creates a session for cfg.
func NewSession(cfg Config, opts ...Option) *Session {
	s := &Session{
		cfg:     cfg,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		console: os.Stdout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.deriver == nil {
		s.deriver = derive.New(derive.DefaultOptions())
	}
	return s
}

// Config returns the session configuration.
func (s *Session) Config() Config {
	return s.cfg
}

// SetWatching marks the session as serving a live-reload loop.
func (s *Session) SetWatching(watching bool) {
	s.triggerMu.Lock()
	defer s.triggerMu.Unlock()
	s.watching = watching
}

func (s *Session) isWatching() bool {
	s.triggerMu.Lock()
	defer s.triggerMu.Unlock()
	return s.watching
}

// LastStats returns the statistics of the most recent run.
func (s *Session) LastStats() Stats {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.lastStats
}

// Cache returns the cache as of the most recent run, loading it from disk
// if no run has loaded it yet.
func (s *Session) Cache() *manifest.Cache {
	s.stateMu.RLock()
	cache := s.cache
	s.stateMu.RUnlock()
	if cache != nil {
		return cache
	}
	cache, _ = manifest.Load(s.cfg.CacheFile)
	return cache
}

type fileState int

const (
	fileUpToDate fileState = iota
	fileProcessed
	fileFailed
)

type fileResult struct {
	state       fileState
	fingerprint fingerprint.Fingerprint
	sourceSize  int64
	derived     derive.Result
}

// Run executes one pass. With force false, a run whose sources are all older
// than the timestamp marker returns early without touching the cache.
// Per-file failures are logged and counted; the returned error is non-nil
// only for an unreadable source root or a cancelled context.
func (s *Session) Run(ctx context.Context, force bool) (Stats, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	start := time.Now()
	stats := Stats{RunID: uuid.NewString(), Forced: force}
	logger := s.logger.With("run", stats.RunID)

	files, err := discovery.Discover(s.cfg.SourceDir, s.cfg.Extensions, discovery.WithIgnore(s.ignore))
	if err != nil {
		s.metrics.ObserveRun(metrics.RunFailed, time.Since(start), time.Now())
		return stats, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	stats.Discovered = len(files)

	if !force {
		marker, ok := changes.ReadMarker(s.cfg.TimestampFile)
		decision := changes.ShouldProcess(files, marker, ok)
		if !decision.Process {
			logger.Info("no image changes detected, skipping", "files", len(files))
			stats.SkippedRun = true
			stats.Duration = time.Since(start)
			s.metrics.ObserveRun(metrics.RunSkipped, stats.Duration, time.Now())
			s.finish(stats, nil)
			return stats, nil
		}
		logger.Info("image changes detected", "reason", decision.Reason, "path", decision.Path)
	}

	cache, err := manifest.Load(s.cfg.CacheFile)
	if err != nil {
		logger.Warn("cache unreadable, starting from empty cache", "path", s.cfg.CacheFile, "error", err)
	}

	logger.Info("processing images",
		"files", len(files),
		"source", s.cfg.SourceDir,
		"output", s.cfg.OutputDir,
		"forced", force,
		"watching", s.isWatching(),
	)

	results := make([]fileResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	if s.cfg.Concurrency > 0 {
		g.SetLimit(s.cfg.Concurrency)
	}
	for i, file := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = s.processFile(logger, cache, file)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.metrics.ObserveRun(metrics.RunFailed, time.Since(start), time.Now())
		return stats, fmt.Errorf("image run cancelled: %w", err)
	}

	// Merge in discovery order so the outcome does not depend on completion order.
	seen := make(map[string]struct{}, len(files))
	for i, file := range files {
		seen[file.RelativePath] = struct{}{}
		r := results[i]
		switch r.state {
		case fileUpToDate:
			stats.UpToDate++
			s.metrics.ObserveFile(metrics.ResultUpToDate)
		case fileFailed:
			stats.Failed++
			s.metrics.ObserveFile(metrics.ResultFailed)
		case fileProcessed:
			cache.Record(file.RelativePath, r.fingerprint)
			stats.addProcessed(r.sourceSize, r.derived)
			s.metrics.ObserveFile(metrics.ResultProcessed)
		}
	}
	if pruned := cache.Prune(seen); pruned > 0 {
		logger.Debug("pruned cache entries for removed sources", "count", pruned)
	}
	s.metrics.AddBytes(metrics.BytesOriginal, stats.OriginalBytes)
	s.metrics.AddBytes(metrics.BytesOutput, stats.OutputBytes)
	s.metrics.AddBytes(metrics.BytesScaled, stats.ScaledBytes)

	persisted := true
	if err := cache.Persist(s.cfg.CacheFile); err != nil {
		persisted = false
		logger.Error("failed to persist cache", "path", s.cfg.CacheFile, "error", err)
	}

	// Failed files have no cache entry; leaving the marker alone keeps the
	// next non-forced run from skipping them.
	switch {
	case !persisted:
		// keep marker and cache consistent
	case stats.Failed > 0:
		logger.Warn("not updating timestamp marker, some images failed", "failed", stats.Failed)
	default:
		if err := changes.WriteMarker(s.cfg.TimestampFile, time.Now()); err != nil {
			logger.Warn("failed to update timestamp marker", "path", s.cfg.TimestampFile, "error", err)
		}
	}

	stats.Duration = time.Since(start)
	s.metrics.ObserveRun(metrics.RunCompleted, stats.Duration, time.Now())
	s.finish(stats, cache)

	logger.Info("image processing complete",
		"processed", stats.Processed,
		"upToDate", stats.UpToDate,
		"failed", stats.Failed,
		"duration", stats.Duration,
	)
	if stats.Processed > 0 && s.console != nil {
		WriteSummary(s.console, stats)
	}
	return stats, nil
}

func (s *Session) processFile(logger *slog.Logger, cache *manifest.Cache, file discovery.SourceFile) fileResult {
	data, err := os.ReadFile(file.Path)
	if err != nil {
		logger.Warn("failed to read image", "path", file.RelativePath, "error", err)
		return fileResult{state: fileFailed}
	}

	fp := fingerprint.Sum(data)
	if cache.IsUpToDate(file.RelativePath, fp, derive.ExpectedOutputs(file.RelativePath, s.cfg.OutputDir)) {
		return fileResult{state: fileUpToDate}
	}

	logger.Info("processing image", "path", file.RelativePath, "fingerprint", fp.Short())
	derived, err := s.deriver.Derive(file, data, s.cfg.OutputDir)
	if err != nil {
		logger.Warn("failed to process image", "path", file.RelativePath, "error", err)
		return fileResult{state: fileFailed}
	}
	return fileResult{
		state:       fileProcessed,
		fingerprint: fp,
		sourceSize:  int64(len(data)),
		derived:     derived,
	}
}

func (s *Session) finish(stats Stats, cache *manifest.Cache) {
	s.stateMu.Lock()
	s.lastStats = stats
	if cache != nil {
		s.cache = cache
	}
	s.stateMu.Unlock()

	if s.afterRun != nil {
		s.afterRun(stats)
	}
}
