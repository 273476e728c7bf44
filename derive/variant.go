package derive

import (
	"path"
	"path/filepath"
	"strings"
)

// Density labels a variant's resolution. 1x is the full-resolution output,
// 2x the ratio-scaled one.
type Density string

const (
	Density1x Density = "1x"
	Density2x Density = "2x"
)

// Variant is one derived asset kind.
type Variant struct {
	Format  Format
	Ext     string // output extension including the dot
	Density Density
}

// Scaled reports whether the variant uses the scaled resolution.
func (v Variant) Scaled() bool {
	return v.Density == Density2x
}

// FileName returns "<base>@<density><ext>", or just base+ext for SVG.
func (v Variant) FileName(base string) string {
	if v.Format == FormatSVG {
		return base + v.Ext
	}
	return base + "@" + string(v.Density) + v.Ext
}

// Variants lists the outputs for a source path. Raster sources get the
// original format, WebP and AVIF at both densities; a source that already is
// WebP or AVIF collapses onto that variant. SVG sources get one output.
func Variants(sourcePath string) []Variant {
	ext := filepath.Ext(sourcePath)
	format, _ := DetectFormat(sourcePath)
	if format == FormatSVG {
		return []Variant{{Format: FormatSVG, Ext: ext, Density: Density1x}}
	}

	var variants []Variant
	for _, density := range []Density{Density1x, Density2x} {
		variants = append(variants, Variant{Format: format, Ext: ext, Density: density})
		if format != FormatWebP {
			variants = append(variants, Variant{Format: FormatWebP, Ext: ".webp", Density: density})
		}
		if format != FormatAVIF {
			variants = append(variants, Variant{Format: FormatAVIF, Ext: ".avif", Density: density})
		}
	}
	return variants
}

// OutputPath returns where variant v of the source at relativePath is written.
func OutputPath(relativePath, outRoot string, v Variant) string {
	relativePath = filepath.ToSlash(relativePath)
	dir := path.Dir(relativePath)
	base := strings.TrimSuffix(path.Base(relativePath), path.Ext(relativePath))
	return filepath.Join(outRoot, filepath.FromSlash(dir), v.FileName(base))
}

// ExpectedOutputs lists every file that must exist for the source at
// relativePath to count as processed.
func ExpectedOutputs(relativePath, outRoot string) []string {
	variants := Variants(relativePath)
	outputs := make([]string, 0, len(variants))
	for _, v := range variants {
		outputs = append(outputs, OutputPath(relativePath, outRoot, v))
	}
	return outputs
}
