package server

import (
	"github.com/lexandro/assetpipe/tools"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Version is reported to MCP clients.
const Version = "0.3.0"

// Setup creates and configures the MCP server with all tool registrations.
// A nil minifyHandler leaves assets_minify unregistered.
func Setup(
	buildHandler *tools.BuildHandler,
	statusHandler *tools.StatusHandler,
	minifyHandler *tools.MinifyHandler,
) *mcp.Server {
	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "assetpipe",
			Version: Version,
		},
		&mcp.ServerOptions{
			Instructions: `This server drives the theme's asset pipeline while a watcher keeps derived images in sync with src/assets/images.

- Use assets_build after adding or replacing images outside the watched tree, or with force=true to re-verify every output.
- Use assets_status to see the last run's statistics and which sources are in the cache.
- Use assets_minify to rebuild the minified PHP templates.`,
		},
	)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name: "assets_build",
		Description: `Run the image pipeline once and report what it did.

Each changed raster source is written as original format, WebP and AVIF at full (@1x) and scaled (@2x) resolution; SVG sources are optimized in place of the six variants.

Options:
  - force: skip the "nothing changed since last run" pre-check. Sources whose fingerprint and outputs are intact are still left alone.`,
	}, buildHandler.Handle)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name: "assets_status",
		Description: `Show pipeline status: directories, cache size, last run statistics, memory usage and uptime.

Pass glob to list matching cache entries with their fingerprints:
  - "**/*.jpg" - all cached JPEG sources
  - "photos/**" - everything under photos/`,
	}, statusHandler.Handle)

	if minifyHandler != nil {
		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        "assets_minify",
			Description: "Strip comments and redundant whitespace from the PHP template tree into the output directory.",
		}, minifyHandler.Handle)
	}

	return mcpServer
}
