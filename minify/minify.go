// Package minify strips comments and redundant whitespace from
// server-rendered template files.
package minify

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/lexandro/assetpipe/discovery"
	"github.com/lexandro/assetpipe/fsutil"
)

// Options configures a Minifier.
type Options struct {
	// Open and Close are the template delimiters whose surrounding
	// whitespace is normalized.
	Open  string
	Close string
	// PreserveBlockComments keeps every /* */ comment, not only /*! ones.
	PreserveBlockComments bool
}

// DefaultOptions returns options for PHP templates.
func DefaultOptions() Options {
	return Options{Open: "<?php", Close: "?>"}
}

var (
	blankLines = regexp.MustCompile(`\n\s*\n`)
	leadingWS  = regexp.MustCompile(`(?m)^\s+`)
	trailingWS = regexp.MustCompile(`(?m)\s+$`)
)

// Minifier applies one set of Options.
type Minifier struct {
	opts    Options
	openRe  *regexp.Regexp
	closeRe *regexp.Regexp
}

// New compiles a Minifier. Empty delimiters fall back to the PHP defaults.
func New(opts Options) *Minifier {
	defaults := DefaultOptions()
	if opts.Open == "" {
		opts.Open = defaults.Open
	}
	if opts.Close == "" {
		opts.Close = defaults.Close
	}
	return &Minifier{
		opts:    opts,
		openRe:  regexp.MustCompile(`\s*` + regexp.QuoteMeta(opts.Open) + `\s*`),
		closeRe: regexp.MustCompile(`\s*` + regexp.QuoteMeta(opts.Close) + `\s*`),
	}
}

// Content returns src with comments and redundant whitespace removed.
func Content(src string, opts Options) string {
	return New(opts).Content(src)
}

// Content minifies one template.
func (m *Minifier) Content(src string) string {
	out := src
	if !m.opts.PreserveBlockComments {
		out = stripBlockComments(out)
	}
	out = stripHTMLComments(out)

	out = blankLines.ReplaceAllLiteralString(out, "\n")
	out = leadingWS.ReplaceAllLiteralString(out, "")
	out = trailingWS.ReplaceAllLiteralString(out, "")

	out = m.openRe.ReplaceAllLiteralString(out, m.opts.Open+" ")
	out = m.closeRe.ReplaceAllLiteralString(out, m.opts.Close)
	return out
}

// stripBlockComments drops /* */ comments unless they open with /*!.
// An unterminated comment is left in place.
func stripBlockComments(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for {
		start := strings.Index(s, "/*")
		if start < 0 {
			b.WriteString(s)
			return b.String()
		}
		if strings.HasPrefix(s[start+2:], "!") {
			b.WriteString(s[:start+2])
			s = s[start+2:]
			continue
		}
		end := strings.Index(s[start+2:], "*/")
		if end < 0 {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:start])
		s = s[start+2+end+2:]
	}
}

// stripHTMLComments drops <!-- --> comments except conditional comments.
func stripHTMLComments(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for {
		start := strings.Index(s, "<!--")
		if start < 0 {
			b.WriteString(s)
			return b.String()
		}
		rest := s[start+4:]
		if isConditional(rest) {
			b.WriteString(s[:start+4])
			s = rest
			continue
		}
		end := strings.Index(rest, "-->")
		if end < 0 {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:start])
		s = rest[end+3:]
	}
}

func isConditional(afterOpen string) bool {
	if strings.HasPrefix(afterOpen, "[if") {
		return true
	}
	return strings.HasPrefix(strings.TrimLeft(afterOpen, " \t\r\n\f\v"), "[endif")
}

// TreeStats summarises one Tree call.
type TreeStats struct {
	Files       int
	Failed      int
	InputBytes  int64
	OutputBytes int64
}

// Tree minifies every matching file under srcDir into the mirrored path
// under outDir. Files are handled independently; per-file errors are joined
// into the returned error after the whole tree has been processed.
func (m *Minifier) Tree(srcDir, outDir string, extensions []string, opts ...discovery.Option) (TreeStats, error) {
	var stats TreeStats

	files, err := discovery.Discover(srcDir, extensions, opts...)
	if err != nil {
		return stats, fmt.Errorf("discover templates: %w", err)
	}

	var errs []error
	for _, file := range files {
		data, err := os.ReadFile(file.Path)
		if err != nil {
			stats.Failed++
			errs = append(errs, fmt.Errorf("%s: %w", file.RelativePath, err))
			continue
		}
		minified := m.Content(string(data))

		outPath := filepath.Join(outDir, filepath.FromSlash(file.RelativePath))
		if err := fsutil.WriteFileAtomic(outPath, []byte(minified), 0644); err != nil {
			stats.Failed++
			errs = append(errs, fmt.Errorf("%s: %w", file.RelativePath, err))
			continue
		}
		stats.Files++
		stats.InputBytes += int64(len(data))
		stats.OutputBytes += int64(len(minified))
	}
	return stats, errors.Join(errs...)
}
