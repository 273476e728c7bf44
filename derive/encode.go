package derive

import (
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/gen2brain/avif"
	"github.com/gen2brain/webp"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// encodeFunc writes img to w. Implementations must not modify img.
type encodeFunc func(w io.Writer, img image.Image) error

// buildEncoders returns the target-format encoders and, per source
// extension, the re-encoders for formats that have a compression option.
func buildEncoders(opts Options) (targets map[Format]encodeFunc, recompress map[string]encodeFunc) {
	targets = map[Format]encodeFunc{
		FormatWebP: func(w io.Writer, img image.Image) error {
			return webp.Encode(w, img, webp.Options{Quality: opts.WebPQuality, Method: opts.WebPMethod})
		},
		FormatAVIF: func(w io.Writer, img image.Image) error {
			return avif.Encode(w, img, avif.Options{Quality: opts.AVIFQuality, QualityAlpha: opts.AVIFQuality, Speed: opts.AVIFSpeed})
		},
		FormatGIF: func(w io.Writer, img image.Image) error {
			return gif.Encode(w, img, nil)
		},
		FormatBMP: bmp.Encode,
		FormatTIFF: func(w io.Writer, img image.Image) error {
			return tiff.Encode(w, img, nil)
		},
		FormatJPEG: func(w io.Writer, img image.Image) error {
			return jpeg.Encode(w, img, nil)
		},
		FormatPNG: png.Encode,
	}

	recompress = make(map[string]encodeFunc)
	for ext, c := range opts.Compress {
		format, ok := ExtensionToFormat[ext]
		if !ok {
			continue
		}
		switch format {
		case FormatJPEG:
			quality := c.Quality
			if quality <= 0 {
				quality = jpeg.DefaultQuality
			}
			recompress[ext] = func(w io.Writer, img image.Image) error {
				return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
			}
		case FormatPNG:
			encoder := &png.Encoder{CompressionLevel: pngCompressionLevel(c.Level)}
			recompress[ext] = encoder.Encode
		case FormatWebP:
			quality := c.Quality
			if quality <= 0 {
				quality = opts.WebPQuality
			}
			recompress[ext] = func(w io.Writer, img image.Image) error {
				return webp.Encode(w, img, webp.Options{Quality: quality, Method: opts.WebPMethod})
			}
		}
	}
	return targets, recompress
}

// encoderFor picks the encoder for variant v of a source with extension ext
// (lower-case, no dot). ok is false for an original-format full-resolution
// variant without a compression option: that one is copied byte for byte.
func (d *Deriver) encoderFor(v Variant, sourceFormat Format, ext string) (encodeFunc, bool, error) {
	if v.Format == sourceFormat {
		if enc, ok := d.recompress[ext]; ok {
			return enc, true, nil
		}
		if !v.Scaled() {
			return nil, false, nil
		}
	}
	enc, ok := d.targets[v.Format]
	if !ok {
		return nil, false, fmt.Errorf("no encoder for format %q", v.Format)
	}
	return enc, true, nil
}
