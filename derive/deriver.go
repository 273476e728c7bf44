// Package derive turns one source image into its responsive output set:
// full and scaled resolutions in the original format, WebP and AVIF, or a
// single optimized file for SVG input.
package derive

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	"github.com/lexandro/assetpipe/discovery"
	"github.com/lexandro/assetpipe/fsutil"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/svg"
	"golang.org/x/image/draw"
)

const svgMediaType = "image/svg+xml"

// Output is one written derived asset.
type Output struct {
	Variant Variant
	Path    string
	Size    int64
}

// Result lists the outputs written for one source.
type Result struct {
	Source  discovery.SourceFile
	Outputs []Output
}

// FullBytes sums the sizes of the full-resolution outputs.
func (r Result) FullBytes() int64 {
	var total int64
	for _, o := range r.Outputs {
		if !o.Variant.Scaled() {
			total += o.Size
		}
	}
	return total
}

// ScaledBytes sums the sizes of the scaled outputs.
func (r Result) ScaledBytes() int64 {
	var total int64
	for _, o := range r.Outputs {
		if o.Variant.Scaled() {
			total += o.Size
		}
	}
	return total
}

// FullCount returns the number of full-resolution outputs.
func (r Result) FullCount() int {
	count := 0
	for _, o := range r.Outputs {
		if !o.Variant.Scaled() {
			count++
		}
	}
	return count
}

// Deriver produces derived assets. It holds no per-file state and is safe
// for concurrent use.
type Deriver struct {
	opts       Options
	targets    map[Format]encodeFunc
	recompress map[string]encodeFunc
	minifier   *minify.M
}

// New creates a Deriver with the given knobs.
func New(opts Options) *Deriver {
	targets, recompress := buildEncoders(opts)

	// Keep viewBox and ids intact; the minifier only rewrites numbers,
	// whitespace and redundant attributes.
	m := minify.New()
	m.Add(svgMediaType, &svg.Minifier{})
	m.Add("text/css", &css.Minifier{})

	return &Deriver{
		opts:       opts,
		targets:    targets,
		recompress: recompress,
		minifier:   m,
	}
}

// Derive writes every output for src, whose content is data, under outRoot.
// Any error aborts this source only; outputs already written stay on disk
// and are overwritten on the next attempt.
func (d *Deriver) Derive(src discovery.SourceFile, data []byte, outRoot string) (Result, error) {
	format, ok := DetectFormat(src.Path)
	if !ok {
		return Result{}, fmt.Errorf("unsupported image type %q", src.Ext)
	}
	if format == FormatSVG {
		return d.deriveVector(src, data, outRoot)
	}
	return d.deriveRaster(src, format, data, outRoot)
}

func (d *Deriver) deriveVector(src discovery.SourceFile, data []byte, outRoot string) (Result, error) {
	if isBinaryContent(data) {
		return Result{}, fmt.Errorf("svg %s contains binary data", src.RelativePath)
	}
	optimized, err := d.minifier.Bytes(svgMediaType, data)
	if err != nil {
		return Result{}, fmt.Errorf("optimizing svg: %w", err)
	}

	v := Variants(src.Path)[0]
	outPath := OutputPath(src.RelativePath, outRoot, v)
	if err := fsutil.WriteFileAtomic(outPath, optimized, 0644); err != nil {
		return Result{}, err
	}
	return Result{
		Source:  src,
		Outputs: []Output{{Variant: v, Path: outPath, Size: int64(len(optimized))}},
	}, nil
}

func (d *Deriver) deriveRaster(src discovery.SourceFile, format Format, data []byte, outRoot string) (Result, error) {
	decoded, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Result{}, fmt.Errorf("decoding %s: %w", src.RelativePath, err)
	}

	bounds := decoded.Bounds()
	w, h := ScaledSize(bounds.Dx(), bounds.Dy(), d.opts.WidthRatio, d.opts.HeightRatio)
	// Variants read from decoded or scaled and never write to them.
	scaled := scale(decoded, w, h)

	ext := strings.ToLower(strings.TrimPrefix(src.Ext, "."))
	result := Result{Source: src}
	for _, v := range Variants(src.Path) {
		img := decoded
		if v.Scaled() {
			img = scaled
		}

		encoded, err := d.encodeVariant(v, format, ext, img, data)
		if err != nil {
			return Result{}, fmt.Errorf("encoding %s@%s%s: %w", src.RelativePath, v.Density, v.Ext, err)
		}

		outPath := OutputPath(src.RelativePath, outRoot, v)
		if err := fsutil.WriteFileAtomic(outPath, encoded, 0644); err != nil {
			return Result{}, err
		}
		result.Outputs = append(result.Outputs, Output{Variant: v, Path: outPath, Size: int64(len(encoded))})
	}
	return result, nil
}

func (d *Deriver) encodeVariant(v Variant, sourceFormat Format, ext string, img image.Image, original []byte) ([]byte, error) {
	enc, reencode, err := d.encoderFor(v, sourceFormat, ext)
	if err != nil {
		return nil, err
	}
	if !reencode {
		return original, nil
	}
	var buf bytes.Buffer
	if err := enc(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// scale resamples src into a freshly allocated RGBA of w x h.
func scale(src image.Image, w, h int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}
