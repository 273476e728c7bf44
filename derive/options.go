package derive

import (
	"image/png"
	"math"
)

// Compression holds the knobs for re-encoding the original format.
type Compression struct {
	Quality int // JPEG quality 1-100; 0 uses the encoder default
	Level   int // PNG compression level 0-9; negative uses the encoder default
}

// Options are the per-format quality knobs and the scaled-variant ratios.
// The same knobs apply to the full and the scaled resolution.
type Options struct {
	AVIFQuality int
	AVIFSpeed   int
	WebPQuality int
	WebPMethod  int

	// Compress is keyed by lower-case source extension without dot.
	Compress map[string]Compression

	WidthRatio  float64
	HeightRatio float64
}

// DefaultOptions mirrors the theme's build configuration.
func DefaultOptions() Options {
	return Options{
		AVIFQuality: 50,
		AVIFSpeed:   8,
		WebPQuality: 80,
		WebPMethod:  4,
		Compress: map[string]Compression{
			"jpg":  {Quality: 80, Level: -1},
			"jpeg": {Quality: 80, Level: -1},
			"png":  {Level: 8},
		},
		WidthRatio:  0.5,
		HeightRatio: 0.5,
	}
}

// ScaledSize returns round(width*wr) x round(height*hr), each at least 1px.
func ScaledSize(width, height int, wr, hr float64) (int, int) {
	w := int(math.Round(float64(width) * wr))
	h := int(math.Round(float64(height) * hr))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}

// pngCompressionLevel folds the 0-9 zlib-style level onto Go's four levels.
func pngCompressionLevel(level int) png.CompressionLevel {
	switch {
	case level < 0:
		return png.DefaultCompression
	case level == 0:
		return png.NoCompression
	case level <= 3:
		return png.BestSpeed
	case level <= 6:
		return png.DefaultCompression
	default:
		return png.BestCompression
	}
}
