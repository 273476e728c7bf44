package derive

import (
	"path/filepath"
	"strings"
)

// Format identifies an image encoding.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatGIF  Format = "gif"
	FormatWebP Format = "webp"
	FormatAVIF Format = "avif"
	FormatSVG  Format = "svg"
	FormatBMP  Format = "bmp"
	FormatTIFF Format = "tiff"
)

// ExtensionToFormat maps lower-case file extensions (without dot) to formats.
var ExtensionToFormat = map[string]Format{
	"jpg":  FormatJPEG,
	"jpeg": FormatJPEG,
	"jpe":  FormatJPEG,
	"png":  FormatPNG,
	"gif":  FormatGIF,
	"webp": FormatWebP,
	"avif": FormatAVIF,
	"svg":  FormatSVG,
	"bmp":  FormatBMP,
	"tif":  FormatTIFF,
	"tiff": FormatTIFF,
}

// DetectFormat returns the format for a file path based on its extension,
// case-insensitively.
func DetectFormat(filePath string) (Format, bool) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filePath), "."))
	format, ok := ExtensionToFormat[ext]
	return format, ok
}

// IsVector reports whether the path names an SVG.
func IsVector(filePath string) bool {
	format, ok := DetectFormat(filePath)
	return ok && format == FormatSVG
}

// isBinaryContent checks the first 512 bytes for a NUL, which never appears
// in well-formed SVG text.
func isBinaryContent(data []byte) bool {
	checkSize := 512
	if len(data) < checkSize {
		checkSize = len(data)
	}
	for i := 0; i < checkSize; i++ {
		if data[i] == 0 {
			return true
		}
	}
	return false
}
