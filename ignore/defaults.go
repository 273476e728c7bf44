package ignore

// DefaultIgnorePatterns are always skipped when scanning asset trees.
var DefaultIgnorePatterns = []string{
	// Version control
	".git",
	".svn",
	".hg",

	// Dependencies
	"node_modules",
	"vendor",

	// IDE / Editor
	".idea",
	".vscode",
	"*.swp",
	"*.swo",
	"*~",

	// OS files
	".DS_Store",
	"Thumbs.db",
	"desktop.ini",

	// Partial writes and editor scratch copies
	"*.tmp",
	"*.part",
	"*.crdownload",

	// Cache
	".cache",
}

// IgnoreFileNames are the per-tree rule files read from the root, in order.
var IgnoreFileNames = []string{".gitignore", ".assetignore"}
