package tools

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/lexandro/assetpipe/fingerprint"
	"github.com/lexandro/assetpipe/manifest"
	"github.com/lexandro/assetpipe/minify"
	"github.com/lexandro/assetpipe/pipeline"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("expected content in result")
	}
	return result.Content[0].(*mcp.TextContent).Text
}

func expectContains(t *testing.T, text string, checks ...string) {
	t.Helper()
	for _, check := range checks {
		if !strings.Contains(text, check) {
			t.Errorf("expected output to contain %q, got:\n%s", check, text)
		}
	}
}

// --- formatDuration ---

func Test_FormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		expected string
	}{
		{"Seconds_zero", 0, "0s"},
		{"Seconds_59", 59 * time.Second, "59s"},
		{"Minutes_5m30s", 5*time.Minute + 30*time.Second, "5m30s"},
		{"Hours_2h0m", 2 * time.Hour, "2h0m"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatDuration(tt.duration)
			if got != tt.expected {
				t.Errorf("formatDuration(%v) = %q, want %q", tt.duration, got, tt.expected)
			}
		})
	}
}

// --- BuildHandler ---

type stubRunner struct {
	stats  pipeline.Stats
	err    error
	forced []bool
}

func (r *stubRunner) Run(ctx context.Context, force bool) (pipeline.Stats, error) {
	r.forced = append(r.forced, force)
	return r.stats, r.err
}

func Test_BuildHandler_Processed(t *testing.T) {
	runner := &stubRunner{stats: pipeline.Stats{
		RunID:         "run-1",
		Forced:        true,
		Discovered:    3,
		Processed:     2,
		UpToDate:      1,
		OriginalBytes: 4096,
		OutputBytes:   1024,
		ScaledBytes:   512,
		Duration:      1500 * time.Millisecond,
	}}
	h := &BuildHandler{Runner: runner, Logger: testLogger()}

	result, _, err := h.Handle(context.Background(), nil, BuildArgs{Force: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatal("expected success, got error result")
	}
	if len(runner.forced) != 1 || !runner.forced[0] {
		t.Errorf("expected one forced run, got %v", runner.forced)
	}

	expectContains(t, resultText(t, result),
		"run-1 (forced)",
		"Processed: 2, up to date: 1, failed: 0 (of 3 sources)",
		"4.0 KB -> 1.0 KB, saved 3.0 KB (75.0%)",
		"Scaled variants: 512 B",
		"Duration: 1.5s",
	)
}

func Test_BuildHandler_Skipped(t *testing.T) {
	runner := &stubRunner{stats: pipeline.Stats{RunID: "run-2", SkippedRun: true, Discovered: 7}}
	h := &BuildHandler{Runner: runner, Logger: testLogger()}

	result, _, err := h.Handle(context.Background(), nil, BuildArgs{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectContains(t, resultText(t, result), "(incremental)", "Skipped", "7 sources checked")
}

func Test_BuildHandler_Error(t *testing.T) {
	runner := &stubRunner{err: pipeline.ErrSourceUnavailable}
	h := &BuildHandler{Runner: runner, Logger: testLogger()}

	result, _, err := h.Handle(context.Background(), nil, BuildArgs{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected IsError=true for failed build")
	}
	expectContains(t, resultText(t, result), "source directory unavailable")
}

// --- MinifyHandler ---

func Test_MinifyHandler_Success(t *testing.T) {
	h := &MinifyHandler{
		DoMinify: func() (minify.TreeStats, error) {
			return minify.TreeStats{Files: 12, InputBytes: 2048, OutputBytes: 1024}, nil
		},
		Logger: testLogger(),
	}

	result, _, err := h.Handle(context.Background(), nil, MinifyArgs{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatal("expected success, got error result")
	}
	expectContains(t, resultText(t, result), "Minify complete", "12 templates", "2.0 KB -> 1.0 KB")
}

func Test_MinifyHandler_Error(t *testing.T) {
	h := &MinifyHandler{
		DoMinify: func() (minify.TreeStats, error) {
			return minify.TreeStats{Files: 3, Failed: 1}, errors.New("header.php: permission denied")
		},
		Logger: testLogger(),
	}

	result, _, err := h.Handle(context.Background(), nil, MinifyArgs{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected IsError=true for failed minify")
	}
	expectContains(t, resultText(t, result), "3 files written, 1 failed", "permission denied")
}

// --- StatusHandler ---

type stubState struct {
	cfg   pipeline.Config
	stats pipeline.Stats
	cache *manifest.Cache
}

func (s *stubState) Config() pipeline.Config   { return s.cfg }
func (s *stubState) LastStats() pipeline.Stats { return s.stats }
func (s *stubState) Cache() *manifest.Cache    { return s.cache }

func newTestStatusHandler() (*StatusHandler, *stubState) {
	cache := manifest.New()
	cache.Record("hero.jpg", fingerprint.Sum([]byte("hero")))
	cache.Record("photos/team.jpg", fingerprint.Sum([]byte("team")))
	cache.Record("icons/logo.svg", fingerprint.Sum([]byte("logo")))

	state := &stubState{
		cfg: pipeline.Config{
			SourceDir:  "src/assets/images",
			OutputDir:  "dist/assets/images",
			Extensions: []string{"jpg", "svg"},
		},
		cache: cache,
	}
	return &StatusHandler{Session: state, StartTime: time.Now(), Logger: testLogger()}, state
}

func Test_StatusHandler_Handle(t *testing.T) {
	h, state := newTestStatusHandler()
	state.stats = pipeline.Stats{RunID: "abc", Processed: 1, Discovered: 3, UpToDate: 2}

	result, _, err := h.Handle(context.Background(), nil, StatusArgs{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatal("expected success, got error result")
	}

	text := resultText(t, result)
	expectContains(t, text,
		"assetpipe Status",
		"src/assets/images",
		"Extensions: jpg, svg",
		"Cached sources: 3",
		"  Run abc",
	)
	if strings.Contains(text, "cache entries") {
		t.Errorf("expected no entry listing without glob, got:\n%s", text)
	}
}

func Test_StatusHandler_NoRunYet(t *testing.T) {
	h, _ := newTestStatusHandler()

	result, _, _ := h.Handle(context.Background(), nil, StatusArgs{})
	expectContains(t, resultText(t, result), "none yet")
}

func Test_StatusHandler_Glob(t *testing.T) {
	h, _ := newTestStatusHandler()

	result, _, err := h.Handle(context.Background(), nil, StatusArgs{Glob: "**/*.jpg"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	text := resultText(t, result)
	expectContains(t, text,
		"Found 2 cache entries",
		fingerprint.Sum([]byte("hero")).Short()+"  hero.jpg",
		"photos/team.jpg",
	)
	if strings.Contains(text, "logo.svg") {
		t.Errorf("expected svg entry to be filtered out, got:\n%s", text)
	}
}

func Test_StatusHandler_GlobLimit(t *testing.T) {
	h, _ := newTestStatusHandler()

	result, _, _ := h.Handle(context.Background(), nil, StatusArgs{Glob: "**", MaxEntries: 1})
	expectContains(t, resultText(t, result), "Found 3 cache entries", "... 2 more")
}

func Test_StatusHandler_InvalidGlob(t *testing.T) {
	h, _ := newTestStatusHandler()

	result, _, err := h.Handle(context.Background(), nil, StatusArgs{Glob: "[unclosed"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected IsError=true for invalid glob")
	}
}
