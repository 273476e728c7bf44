package tools

import (
	"context"
	"log/slog"

	"github.com/lexandro/assetpipe/pipeline"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// BuildArgs defines the input parameters for the assets_build tool.
type BuildArgs struct {
	Force bool `json:"force,omitempty" jsonschema:"Skip the timestamp pre-check and verify every source against the cache (default false)"`
}

// Runner runs one image pass. *pipeline.Session satisfies it.
type Runner interface {
	Run(ctx context.Context, force bool) (pipeline.Stats, error)
}

// BuildHandler holds the dependencies for the build tool.
type BuildHandler struct {
	Runner Runner
	Logger *slog.Logger
}

// Handle processes an assets_build request.
func (h *BuildHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args BuildArgs) (*mcp.CallToolResult, any, error) {
	h.Logger.Info("assets_build started", "force", args.Force)

	stats, err := h.Runner.Run(ctx, args.Force)
	if err != nil {
		h.Logger.Error("assets_build failed", "error", err)
		return errorResult("Build error: %v", err), nil, nil
	}

	h.Logger.Info("assets_build complete",
		"run", stats.RunID,
		"processed", stats.Processed,
		"failed", stats.Failed,
		"duration", stats.Duration,
	)

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: FormatRunStats(stats)}},
	}, nil, nil
}
