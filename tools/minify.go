package tools

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lexandro/assetpipe/minify"
	"github.com/lexandro/assetpipe/pipeline"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// MinifyArgs defines the input parameters for the assets_minify tool.
type MinifyArgs struct{}

// MinifyFunc minifies the configured template tree.
// It is provided by main.go so the tool does not depend on configuration.
type MinifyFunc func() (minify.TreeStats, error)

// MinifyHandler holds the dependencies for the minify tool.
type MinifyHandler struct {
	DoMinify MinifyFunc
	Logger   *slog.Logger
}

// Handle processes an assets_minify request.
func (h *MinifyHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args MinifyArgs) (*mcp.CallToolResult, any, error) {
	h.Logger.Info("assets_minify started")
	start := time.Now()

	stats, err := h.DoMinify()
	elapsed := time.Since(start).Round(time.Millisecond)
	if err != nil {
		h.Logger.Error("assets_minify failed", "files", stats.Files, "failed", stats.Failed, "error", err)
		return errorResult("Minify error (%d files written, %d failed): %v", stats.Files, stats.Failed, err), nil, nil
	}

	h.Logger.Info("assets_minify complete",
		"files", stats.Files,
		"inputBytes", stats.InputBytes,
		"outputBytes", stats.OutputBytes,
		"elapsed", elapsed,
	)

	output := fmt.Sprintf("Minify complete: %d templates, %s -> %s in %s",
		stats.Files,
		pipeline.FormatSize(stats.InputBytes),
		pipeline.FormatSize(stats.OutputBytes),
		elapsed,
	)
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: output}},
	}, nil, nil
}
