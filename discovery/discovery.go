// Package discovery enumerates source files under a root by extension.
package discovery

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// SourceFile is an immutable snapshot of one input file taken during a run.
// Content is read on demand and not retained here.
type SourceFile struct {
	Path         string    // Absolute file path
	RelativePath string    // Path relative to the source root (forward slashes)
	Ext          string    // Extension including the dot, case as on disk
	ModTime      time.Time // Last modification time
	Size         int64     // Size in bytes at discovery time
}

// IgnoreChecker excludes paths from discovery. *ignore.Matcher satisfies it.
type IgnoreChecker interface {
	ShouldIgnoreDir(absolutePath string) bool
	ShouldIgnore(absolutePath string) bool
}

// Option configures Discover.
type Option func(*Scope)

// WithIgnore excludes paths rejected by checker.
func WithIgnore(checker IgnoreChecker) Option {
	return func(s *Scope) {
		s.ignore = checker
	}
}

// Discover returns every file under root whose name ends in one of the
// extensions, sorted by relative path. A root that does not exist yields an
// empty result; a root that exists but cannot be read is an error.
func Discover(root string, extensions []string, opts ...Option) ([]SourceFile, error) {
	return NewScope(root, extensions, opts...).Discover()
}

// Scope decides which paths under a root take part in discovery and watching.
type Scope struct {
	root    string
	pattern string
	ignore  IgnoreChecker
}

// NewScope builds a scope for root and extensions.
func NewScope(root string, extensions []string, opts ...Option) *Scope {
	s := &Scope{
		root:    filepath.Clean(root),
		pattern: Pattern(extensions),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the cleaned root directory.
func (s *Scope) Root() string {
	return s.root
}

// Pattern returns the doublestar pattern matched against relative paths.
func (s *Scope) Pattern() string {
	return s.pattern
}

// Discover walks the scope's root.
func (s *Scope) Discover() ([]SourceFile, error) {
	info, err := os.Stat(s.root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stat source root %s: %w", s.root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source root %s is not a directory", s.root)
	}
	if s.pattern == "" {
		return nil, nil
	}

	var files []SourceFile
	err = filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == s.root {
				return fmt.Errorf("reading source root %s: %w", s.root, err)
			}
			return nil // Skip entries that can't be read
		}
		if d.IsDir() {
			if path != s.root && s.ignore != nil && s.ignore.ShouldIgnoreDir(path) {
				return filepath.SkipDir
			}
			return nil
		}
		relPath, ok := s.relative(path)
		if !ok || !s.matches(relPath) {
			return nil
		}
		if s.ignore != nil && s.ignore.ShouldIgnore(path) {
			return nil
		}
		fileInfo, err := d.Info()
		if err != nil {
			return nil
		}
		if !fileInfo.Mode().IsRegular() {
			return nil
		}
		files = append(files, SourceFile{
			Path:         path,
			RelativePath: relPath,
			Ext:          filepath.Ext(path),
			ModTime:      fileInfo.ModTime(),
			Size:         fileInfo.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].RelativePath < files[j].RelativePath
	})
	return files, nil
}

// Tracks reports whether the absolute path is a file this scope would discover.
// It does not touch the filesystem beyond what the ignore checker does.
func (s *Scope) Tracks(absolutePath string) bool {
	relPath, ok := s.relative(absolutePath)
	if !ok || !s.matches(relPath) {
		return false
	}
	return s.ignore == nil || !s.ignore.ShouldIgnore(absolutePath)
}

// ShouldIgnoreDir lets a Scope drive a directory watcher.
func (s *Scope) ShouldIgnoreDir(absolutePath string) bool {
	return s.ignore != nil && s.ignore.ShouldIgnoreDir(absolutePath)
}

// ShouldIgnore lets a Scope drive a directory watcher: untracked files are ignored.
func (s *Scope) ShouldIgnore(absolutePath string) bool {
	return !s.Tracks(absolutePath)
}

func (s *Scope) relative(path string) (string, bool) {
	relPath, err := filepath.Rel(s.root, path)
	if err != nil || relPath == "." || strings.HasPrefix(relPath, "..") {
		return "", false
	}
	return filepath.ToSlash(relPath), true
}

func (s *Scope) matches(relPath string) bool {
	if s.pattern == "" {
		return false
	}
	matched, err := doublestar.Match(s.pattern, relPath)
	return err == nil && matched
}

// Pattern builds a doublestar pattern matching any of the extensions at any
// depth, e.g. "**/*.{jpg,png}". Extensions may carry a leading dot. Matching
// is case-sensitive. Returns "" for an empty list.
func Pattern(extensions []string) string {
	var cleaned []string
	seen := make(map[string]bool)
	for _, ext := range extensions {
		ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
		if ext == "" || seen[ext] {
			continue
		}
		seen[ext] = true
		cleaned = append(cleaned, ext)
	}
	switch len(cleaned) {
	case 0:
		return ""
	case 1:
		return "**/*." + cleaned[0]
	default:
		return "**/*.{" + strings.Join(cleaned, ",") + "}"
	}
}
