package tools

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/lexandro/assetpipe/manifest"
	"github.com/lexandro/assetpipe/pipeline"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// StatusArgs defines the input parameters for the assets_status tool.
type StatusArgs struct {
	Glob       string `json:"glob,omitempty" jsonschema:"Optional glob over cached source paths to list with their fingerprints (e.g. photos/**/*.jpg)"`
	MaxEntries int    `json:"maxEntries,omitempty" jsonschema:"Maximum number of cache entries to list (default 100)"`
}

// SessionState is the read side of a pipeline session.
type SessionState interface {
	Config() pipeline.Config
	LastStats() pipeline.Stats
	Cache() *manifest.Cache
}

// StatusHandler holds the dependencies for the status tool.
type StatusHandler struct {
	Session   SessionState
	StartTime time.Time
	Logger    *slog.Logger
}

const defaultMaxEntries = 100

// Handle processes an assets_status request.
func (h *StatusHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args StatusArgs) (*mcp.CallToolResult, any, error) {
	cfg := h.Session.Config()
	cache := h.Session.Cache()
	last := h.Session.LastStats()
	uptime := time.Since(h.StartTime)

	var entries []string
	if args.Glob != "" {
		var err error
		entries, err = cache.Match(args.Glob)
		if err != nil {
			h.Logger.Warn("assets_status called with invalid glob", "glob", args.Glob, "error", err)
			return errorResult("Error: invalid glob %q: %v", args.Glob, err), nil, nil
		}
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	h.Logger.Info("assets_status",
		"cached", cache.Len(),
		"lastRun", last.RunID,
		"memory", memStats.Alloc,
		"uptime", uptime,
	)

	var builder strings.Builder
	builder.WriteString("=== assetpipe Status ===\n\n")
	builder.WriteString(fmt.Sprintf("Source directory: %s\n", cfg.SourceDir))
	builder.WriteString(fmt.Sprintf("Output directory: %s\n", cfg.OutputDir))
	builder.WriteString(fmt.Sprintf("Extensions: %s\n", strings.Join(cfg.Extensions, ", ")))
	builder.WriteString(fmt.Sprintf("Uptime: %s\n", formatDuration(uptime)))
	builder.WriteString(fmt.Sprintf("Cached sources: %d\n", cache.Len()))
	builder.WriteString(fmt.Sprintf("Memory usage: %s (heap: %s)\n",
		pipeline.FormatSize(int64(memStats.Alloc)),
		pipeline.FormatSize(int64(memStats.HeapAlloc)),
	))

	builder.WriteString("\nLast run:\n")
	if last.RunID == "" {
		builder.WriteString("  none yet\n")
	} else {
		builder.WriteString(indent(FormatRunStats(last), "  "))
	}

	if args.Glob != "" {
		maxEntries := args.MaxEntries
		if maxEntries <= 0 {
			maxEntries = defaultMaxEntries
		}
		builder.WriteString("\n")
		builder.WriteString(FormatCacheEntries(cache, entries, maxEntries))
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: builder.String()}},
	}, nil, nil
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	totalSeconds := int(d.Seconds())
	if totalSeconds < 60 {
		return fmt.Sprintf("%ds", totalSeconds)
	}
	totalMinutes := totalSeconds / 60
	remainderSeconds := totalSeconds % 60
	if totalMinutes < 60 {
		return fmt.Sprintf("%dm%ds", totalMinutes, remainderSeconds)
	}
	hours := totalMinutes / 60
	remainderMinutes := totalMinutes % 60
	return fmt.Sprintf("%dh%dm", hours, remainderMinutes)
}

func indent(text, prefix string) string {
	lines := strings.SplitAfter(text, "\n")
	var builder strings.Builder
	for _, line := range lines {
		if line == "" {
			continue
		}
		builder.WriteString(prefix)
		builder.WriteString(line)
	}
	return builder.String()
}
