package derive

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lexandro/assetpipe/discovery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSVG = `<?xml version="1.0" encoding="UTF-8"?>
<!-- exported by a design tool -->
<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 24 24" width="24" height="24">
    <g id="menu-icon">
        <rect id="bar-top" x="2.000" y="4.000" width="20" height="2"/>
        <rect id="bar-bottom" x="2.000" y="18.000" width="20" height="2"/>
    </g>
</svg>
`

func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 20), G: uint8(y * 40), B: 128, A: 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, gradient(w, h)))
	return buf.Bytes()
}

func writeSource(t *testing.T, root, rel string, data []byte) discovery.SourceFile {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, data, 0644))
	info, err := os.Stat(path)
	require.NoError(t, err)
	return discovery.SourceFile{
		Path:         path,
		RelativePath: rel,
		Ext:          filepath.Ext(path),
		ModTime:      info.ModTime(),
		Size:         info.Size(),
	}
}

func decodeSize(t *testing.T, path string) (int, int) {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	require.NoError(t, err, "decoding %s", path)
	return cfg.Width, cfg.Height
}

func Test_Derive_RasterProducesSixVariants(t *testing.T) {
	srcRoot, outRoot := t.TempDir(), t.TempDir()
	src := writeSource(t, srcRoot, "photos/hero.png", encodePNG(t, 9, 5))

	result, err := New(DefaultOptions()).Derive(src, mustRead(t, src.Path), outRoot)
	require.NoError(t, err)

	expected := []string{
		"photos/hero@1x.png", "photos/hero@1x.webp", "photos/hero@1x.avif",
		"photos/hero@2x.png", "photos/hero@2x.webp", "photos/hero@2x.avif",
	}
	require.Len(t, result.Outputs, len(expected))
	for i, rel := range expected {
		path := filepath.Join(outRoot, filepath.FromSlash(rel))
		assert.Equal(t, path, result.Outputs[i].Path)
		info, err := os.Stat(path)
		require.NoError(t, err, "missing %s", rel)
		assert.Equal(t, info.Size(), result.Outputs[i].Size)
		assert.Positive(t, info.Size())
	}

	assert.Equal(t, 3, result.FullCount())
	assert.Equal(t, result.FullBytes()+result.ScaledBytes(), sumSizes(result))
}

func Test_Derive_ScaledDimensions(t *testing.T) {
	srcRoot, outRoot := t.TempDir(), t.TempDir()
	src := writeSource(t, srcRoot, "hero.png", encodePNG(t, 9, 5))

	_, err := New(DefaultOptions()).Derive(src, mustRead(t, src.Path), outRoot)
	require.NoError(t, err)

	w, h := decodeSize(t, filepath.Join(outRoot, "hero@1x.png"))
	assert.Equal(t, [2]int{9, 5}, [2]int{w, h})

	// round(9*0.5) = 5, round(5*0.5) = 3
	w, h = decodeSize(t, filepath.Join(outRoot, "hero@2x.png"))
	assert.Equal(t, [2]int{5, 3}, [2]int{w, h})

	w, h = decodeSize(t, filepath.Join(outRoot, "hero@2x.webp"))
	assert.Equal(t, [2]int{5, 3}, [2]int{w, h})
}

func Test_Derive_CustomRatios(t *testing.T) {
	srcRoot, outRoot := t.TempDir(), t.TempDir()
	src := writeSource(t, srcRoot, "banner.png", encodePNG(t, 8, 4))

	opts := DefaultOptions()
	opts.WidthRatio = 0.25
	opts.HeightRatio = 1
	_, err := New(opts).Derive(src, mustRead(t, src.Path), outRoot)
	require.NoError(t, err)

	w, h := decodeSize(t, filepath.Join(outRoot, "banner@2x.png"))
	assert.Equal(t, [2]int{2, 4}, [2]int{w, h})
}

func Test_Derive_JPEGIsRecompressed(t *testing.T) {
	srcRoot, outRoot := t.TempDir(), t.TempDir()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, gradient(16, 8), &jpeg.Options{Quality: 100}))
	src := writeSource(t, srcRoot, "photo.JPG", buf.Bytes())

	result, err := New(DefaultOptions()).Derive(src, buf.Bytes(), outRoot)
	require.NoError(t, err)
	require.Len(t, result.Outputs, 6)

	full, err := os.ReadFile(filepath.Join(outRoot, "photo@1x.JPG"))
	require.NoError(t, err)
	assert.NotEqual(t, buf.Bytes(), full, "quality 80 output should differ from the quality 100 source")

	w, h := decodeSize(t, filepath.Join(outRoot, "photo@2x.JPG"))
	assert.Equal(t, [2]int{8, 4}, [2]int{w, h})
}

func Test_Derive_GIFCopiedThroughAtFullResolution(t *testing.T) {
	srcRoot, outRoot := t.TempDir(), t.TempDir()
	var buf bytes.Buffer
	require.NoError(t, gif.Encode(&buf, gradient(6, 6), nil))
	src := writeSource(t, srcRoot, "anim/spinner.gif", buf.Bytes())

	_, err := New(DefaultOptions()).Derive(src, buf.Bytes(), outRoot)
	require.NoError(t, err)

	full, err := os.ReadFile(filepath.Join(outRoot, "anim", "spinner@1x.gif"))
	require.NoError(t, err)
	assert.Equal(t, buf.Bytes(), full)

	w, h := decodeSize(t, filepath.Join(outRoot, "anim", "spinner@2x.gif"))
	assert.Equal(t, [2]int{3, 3}, [2]int{w, h})
}

func Test_Derive_SVGOptimizedInPlace(t *testing.T) {
	srcRoot, outRoot := t.TempDir(), t.TempDir()
	src := writeSource(t, srcRoot, "icons/menu.svg", []byte(testSVG))

	result, err := New(DefaultOptions()).Derive(src, []byte(testSVG), outRoot)
	require.NoError(t, err)
	require.Len(t, result.Outputs, 1)
	assert.Equal(t, filepath.Join(outRoot, "icons", "menu.svg"), result.Outputs[0].Path)

	out, err := os.ReadFile(result.Outputs[0].Path)
	require.NoError(t, err)
	text := string(out)
	assert.Less(t, len(out), len(testSVG))
	assert.Contains(t, text, "viewBox")
	assert.Contains(t, text, "menu-icon")
	assert.Contains(t, text, "bar-bottom")
	assert.NotContains(t, text, "exported by a design tool")
}

func Test_Derive_SVGWithBinaryData(t *testing.T) {
	srcRoot, outRoot := t.TempDir(), t.TempDir()
	data := []byte("<svg>\x00</svg>")
	src := writeSource(t, srcRoot, "broken.svg", data)

	_, err := New(DefaultOptions()).Derive(src, data, outRoot)
	assert.Error(t, err)
}

func Test_Derive_DecodeErrorWritesNothing(t *testing.T) {
	srcRoot, outRoot := t.TempDir(), t.TempDir()
	data := []byte("definitely not a png")
	src := writeSource(t, srcRoot, "bad.png", data)

	_, err := New(DefaultOptions()).Derive(src, data, outRoot)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "bad.png"))

	entries, err := os.ReadDir(outRoot)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func Test_Derive_UnsupportedExtension(t *testing.T) {
	srcRoot, outRoot := t.TempDir(), t.TempDir()
	src := writeSource(t, srcRoot, "doc.pdf", []byte("%PDF"))

	_, err := New(DefaultOptions()).Derive(src, []byte("%PDF"), outRoot)
	assert.Error(t, err)
}

func Test_ExpectedOutputs(t *testing.T) {
	out := filepath.Join("dist", "images")

	assert.Equal(t, []string{
		filepath.Join(out, "photos", "hero@1x.JPG"),
		filepath.Join(out, "photos", "hero@1x.webp"),
		filepath.Join(out, "photos", "hero@1x.avif"),
		filepath.Join(out, "photos", "hero@2x.JPG"),
		filepath.Join(out, "photos", "hero@2x.webp"),
		filepath.Join(out, "photos", "hero@2x.avif"),
	}, ExpectedOutputs("photos/hero.JPG", out))

	assert.Equal(t, []string{filepath.Join(out, "logo.svg")}, ExpectedOutputs("logo.svg", out))

	// A WebP source has no separate original-format variant
	assert.Len(t, ExpectedOutputs("a.webp", out), 4)
}

func Test_ScaledSize(t *testing.T) {
	tests := []struct {
		name         string
		w, h         int
		wr, hr       float64
		wantW, wantH int
	}{
		{"HalfOdd", 9, 5, 0.5, 0.5, 5, 3},
		{"HalfEven", 1920, 1080, 0.5, 0.5, 960, 540},
		{"ClampToOnePixel", 1, 1, 0.5, 0.5, 1, 1},
		{"Independent", 100, 50, 0.3, 0.7, 30, 35},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := ScaledSize(tt.w, tt.h, tt.wr, tt.hr)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
		})
	}
}

func Test_PNGCompressionLevel(t *testing.T) {
	assert.Equal(t, png.DefaultCompression, pngCompressionLevel(-1))
	assert.Equal(t, png.NoCompression, pngCompressionLevel(0))
	assert.Equal(t, png.BestSpeed, pngCompressionLevel(2))
	assert.Equal(t, png.DefaultCompression, pngCompressionLevel(6))
	assert.Equal(t, png.BestCompression, pngCompressionLevel(8))
}

func Test_DetectFormat(t *testing.T) {
	format, ok := DetectFormat("a/b/PHOTO.JPEG")
	assert.True(t, ok)
	assert.Equal(t, FormatJPEG, format)

	_, ok = DetectFormat("notes.txt")
	assert.False(t, ok)

	assert.True(t, IsVector("icon.SVG"))
	assert.False(t, IsVector("icon.png"))
}

func mustRead(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func sumSizes(r Result) int64 {
	var total int64
	for _, o := range r.Outputs {
		total += o.Size
	}
	return total
}
