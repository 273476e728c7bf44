package ignore

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	gitignore "github.com/denormal/go-gitignore"
)

// Matcher determines whether a path under an asset root is excluded from
// processing. It combines default patterns, .gitignore and .assetignore rules
// and custom CLI patterns.
// Reload() takes the write lock; ShouldIgnore()/ShouldIgnoreDir() take the read lock.
type Matcher struct {
	mu             sync.RWMutex
	rootDir        string
	ruleFiles      []gitignore.GitIgnore
	customPatterns []string
}

// MatcherOptions configures the ignore matcher.
type MatcherOptions struct {
	RootDir        string
	CustomPatterns []string
}

// NewMatcher creates a matcher rooted at options.RootDir.
func NewMatcher(options MatcherOptions) *Matcher {
	matcher := &Matcher{
		rootDir:        options.RootDir,
		customPatterns: options.CustomPatterns,
	}
	matcher.ruleFiles = loadRuleFiles(options.RootDir)
	return matcher
}

// RootDir returns the directory the rules are relative to.
func (m *Matcher) RootDir() string {
	return m.rootDir
}

// ShouldIgnore returns true if the given absolute path is excluded.
func (m *Matcher) ShouldIgnore(absolutePath string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	relativePath, err := filepath.Rel(m.rootDir, absolutePath)
	if err != nil {
		relativePath = absolutePath
	}
	relativePath = filepath.ToSlash(relativePath)

	if matchesDefaultPatterns(relativePath) {
		return true
	}

	isDir := false
	if info, err := os.Stat(absolutePath); err == nil {
		isDir = info.IsDir()
	}

	// Relative() does not require the path to exist on disk
	for _, rules := range m.ruleFiles {
		match := rules.Relative(relativePath, isDir)
		if match != nil && match.Ignore() {
			return true
		}
	}

	return m.matchesCustomPatterns(relativePath)
}

// ShouldIgnoreDir returns true if a directory should be skipped entirely.
func (m *Matcher) ShouldIgnoreDir(absolutePath string) bool {
	switch filepath.Base(absolutePath) {
	case ".git", ".svn", ".hg", "node_modules", ".idea", ".vscode", ".cache":
		return true
	}
	return m.ShouldIgnore(absolutePath)
}

// IsRuleFile reports whether path names one of the ignore rule files at the root.
func (m *Matcher) IsRuleFile(absolutePath string) bool {
	if filepath.Dir(absolutePath) != filepath.Clean(m.rootDir) {
		return false
	}
	base := filepath.Base(absolutePath)
	for _, name := range IgnoreFileNames {
		if base == name {
			return true
		}
	}
	return false
}

// Reload re-reads the rule files from disk.
func (m *Matcher) Reload() {
	ruleFiles := loadRuleFiles(m.rootDir)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.ruleFiles = ruleFiles
}

func matchesDefaultPatterns(relativePath string) bool {
	parts := strings.Split(relativePath, "/")
	baseName := parts[len(parts)-1]

	for _, pattern := range DefaultIgnorePatterns {
		if !strings.ContainsAny(pattern, "*?[") {
			for _, part := range parts {
				if strings.EqualFold(part, pattern) {
					return true
				}
			}
			continue
		}

		matched, err := filepath.Match(strings.ToLower(pattern), strings.ToLower(baseName))
		if err == nil && matched {
			return true
		}
	}
	return false
}

func (m *Matcher) matchesCustomPatterns(relativePath string) bool {
	baseName := filepath.Base(relativePath)
	for _, pattern := range m.customPatterns {
		if matched, err := filepath.Match(pattern, relativePath); err == nil && matched {
			return true
		}
		if matched, err := filepath.Match(pattern, baseName); err == nil && matched {
			return true
		}
	}
	return false
}

func loadRuleFiles(rootDir string) []gitignore.GitIgnore {
	var rules []gitignore.GitIgnore
	for _, name := range IgnoreFileNames {
		if gi := loadIgnoreFile(filepath.Join(rootDir, name), rootDir); gi != nil {
			rules = append(rules, gi)
		}
	}
	return rules
}

// loadIgnoreFile goes through an io.Reader so the handle is closed promptly on Windows.
func loadIgnoreFile(filePath string, baseDir string) gitignore.GitIgnore {
	f, err := os.Open(filePath)
	if err != nil {
		return nil
	}
	defer f.Close()

	return gitignore.New(f, baseDir, nil)
}
