package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lexandro/assetpipe/server"
	"github.com/lexandro/assetpipe/tools"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
)

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func newBuildCommand(opts *globalOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Process images once, then minify templates",
		Long: `Run the image pipeline once, as at the start of a production build.

Without --force the run is skipped when no source image is newer than the
last completed run. Templates are minified afterwards when minify.enabled is
set. A single bad image is logged and skipped; an unreadable source
directory fails the build.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			a, err := newApp(cmd, opts, cmd.OutOrStdout())
			if err != nil {
				return err
			}

			stats, err := a.session.Run(ctx, force)
			if err != nil {
				a.logger.Error("image processing failed", "error", err)
				return err
			}
			if stats.Failed > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "%d image(s) failed, see log for details\n", stats.Failed)
			}

			if a.cfg.Minify.Enabled {
				if _, err := a.runMinify(); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Skip the timestamp pre-check")
	return cmd
}

func newWatchCommand(opts *globalOptions) *cobra.Command {
	var pollInterval time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Process images, then re-run on every source change",
		Long: `Run the image pipeline once, then keep derived images in sync while
developing. File changes under the source directory trigger a forced run;
triggers that arrive during a run collapse into one follow-up run. With
--poll-interval the directory is also checked periodically.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			a, err := newApp(cmd, opts, cmd.OutOrStdout())
			if err != nil {
				return err
			}

			if _, err := a.session.Run(ctx, false); err != nil {
				a.logger.Error("initial image processing failed", "error", err)
				return err
			}

			stop := a.startWatching(ctx, pollInterval)
			defer stop()

			<-ctx.Done()
			a.logger.Info("watch stopped")
			return nil
		},
	}
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", 0, "Also check for changes at this interval (0 disables polling)")
	return cmd
}

func newMinifyCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "minify",
		Short: "Minify the template tree only",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			stats, err := a.runMinify()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "minified %d templates\n", stats.Files)
			return nil
		},
	}
}

func newServeCommand(opts *globalOptions) *cobra.Command {
	var pollInterval time.Duration
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Watch sources and expose the pipeline as MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			// stdout carries MCP frames, so summaries go to stderr
			a, err := newApp(cmd, opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			if _, err := a.session.Run(ctx, false); err != nil {
				a.logger.Error("initial image processing failed", "error", err)
				return err
			}

			stop := a.startWatching(ctx, pollInterval)
			defer stop()

			buildHandler := &tools.BuildHandler{Runner: a.session, Logger: a.logger}
			statusHandler := &tools.StatusHandler{Session: a.session, StartTime: a.startTime, Logger: a.logger}
			var minifyHandler *tools.MinifyHandler
			if a.cfg.Minify.Enabled {
				minifyHandler = &tools.MinifyHandler{DoMinify: a.runMinify, Logger: a.logger}
			}

			mcpServer := server.Setup(buildHandler, statusHandler, minifyHandler)

			a.logger.Info("MCP server starting on stdio")
			if err := mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				a.logger.Error("MCP server error", "error", err)
				return err
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", 0, "Also check for changes at this interval (0 disables polling)")
	return cmd
}
