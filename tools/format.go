package tools

import (
	"fmt"
	"strings"
	"time"

	"github.com/lexandro/assetpipe/manifest"
	"github.com/lexandro/assetpipe/pipeline"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// FormatRunStats formats the outcome of one run as human-readable text.
func FormatRunStats(st pipeline.Stats) string {
	var builder strings.Builder

	mode := "incremental"
	if st.Forced {
		mode = "forced"
	}
	builder.WriteString(fmt.Sprintf("Run %s (%s)\n", st.RunID, mode))

	if st.SkippedRun {
		builder.WriteString(fmt.Sprintf("Skipped: no image changes since last run (%d sources checked in %s)\n",
			st.Discovered, st.Duration.Round(time.Millisecond)))
		return builder.String()
	}

	builder.WriteString(fmt.Sprintf("Processed: %d, up to date: %d, failed: %d (of %d sources)\n",
		st.Processed, st.UpToDate, st.Failed, st.Discovered))
	if st.Processed > 0 {
		builder.WriteString(fmt.Sprintf("Size: %s -> %s, saved %s (%.1f%%)\n",
			pipeline.FormatSize(st.OriginalBytes),
			pipeline.FormatSize(st.OutputBytes),
			pipeline.FormatSize(st.Saved()),
			st.ReductionPercent(),
		))
		if st.ScaledBytes > 0 {
			builder.WriteString(fmt.Sprintf("Scaled variants: %s\n", pipeline.FormatSize(st.ScaledBytes)))
		}
	}
	builder.WriteString(fmt.Sprintf("Duration: %s\n", st.Duration.Round(time.Millisecond)))
	return builder.String()
}

// FormatCacheEntries lists cache entries with their short fingerprints.
func FormatCacheEntries(cache *manifest.Cache, paths []string, maxEntries int) string {
	if len(paths) == 0 {
		return "No cache entries matched.\n"
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("Found %d cache entries:\n\n", len(paths)))

	for i, path := range paths {
		if i >= maxEntries {
			builder.WriteString(fmt.Sprintf("  ... %d more\n", len(paths)-maxEntries))
			break
		}
		fp, _ := cache.Lookup(path)
		builder.WriteString(fmt.Sprintf("  %s  %s\n", fp.Short(), path))
	}
	return builder.String()
}

func errorResult(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}
