// Package config loads assetpipe.yaml, layers ASSETPIPE_* environment
// variables over it and converts the result into the option types of the
// pipeline packages.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/lexandro/assetpipe/derive"
	"github.com/lexandro/assetpipe/minify"
	"github.com/lexandro/assetpipe/pipeline"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up when --config is not given.
const DefaultPath = "assetpipe.yaml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ASSETPIPE_"

const defaultCacheName = ".assetpipe-cache.json"

type Config struct {
	Images ImagesConfig `yaml:"images"`
	Minify MinifyConfig `yaml:"minify"`
}

type ImagesConfig struct {
	SrcDir        string   `yaml:"src_dir"`
	OutDir        string   `yaml:"out_dir"`
	Extensions    []string `yaml:"extensions"`
	CacheFile     string   `yaml:"cache_file"`
	TimestampFile string   `yaml:"timestamp_file"`

	AVIF     AVIFConfig                `yaml:"avif"`
	WebP     WebPConfig                `yaml:"webp"`
	Compress map[string]CompressConfig `yaml:"compress"`
	Resize   ResizeConfig              `yaml:"resize"`

	// Concurrency caps files processed in parallel; 0 means unbounded.
	Concurrency int `yaml:"concurrency"`
}

type AVIFConfig struct {
	Quality int `yaml:"quality"`
	Speed   int `yaml:"speed"`
}

type WebPConfig struct {
	Quality int `yaml:"quality"`
	Method  int `yaml:"method"`
}

// CompressConfig re-encodes the original format. Quality applies to JPEG,
// CompressionLevel (0-9) to PNG.
type CompressConfig struct {
	Quality          int  `yaml:"quality,omitempty"`
	CompressionLevel *int `yaml:"compression_level,omitempty"`
}

type ResizeConfig struct {
	WidthRatio  float64 `yaml:"width_ratio"`
	HeightRatio float64 `yaml:"height_ratio"`
}

type MinifyConfig struct {
	Enabled               bool     `yaml:"enabled"`
	SrcDir                string   `yaml:"src_dir"`
	OutDir                string   `yaml:"out_dir"`
	Extensions            []string `yaml:"extensions"`
	PreserveBlockComments bool     `yaml:"preserve_block_comments"`
}

// Default returns the built-in configuration.
func Default() *Config {
	level := 8
	return &Config{
		Images: ImagesConfig{
			SrcDir:        "src/assets/images",
			OutDir:        "dist/assets/images",
			Extensions:    []string{"jpg", "jpeg", "png", "gif", "svg"},
			TimestampFile: ".last-image-process-time",
			AVIF:          AVIFConfig{Quality: 50, Speed: 8},
			WebP:          WebPConfig{Quality: 80, Method: 4},
			Compress: map[string]CompressConfig{
				"jpg":  {Quality: 80},
				"jpeg": {Quality: 80},
				"png":  {CompressionLevel: &level},
			},
			Resize: ResizeConfig{WidthRatio: 0.5, HeightRatio: 0.5},
		},
		Minify: MinifyConfig{
			Enabled:    true,
			SrcDir:     "src/public",
			OutDir:     "dist",
			Extensions: []string{"php"},
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path and the
// environment, then validates it. A missing file is an error only when
// mustExist is set.
func Load(path string, mustExist bool) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decode(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !mustExist:
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.resolve()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// LoadDotEnv loads KEY=value pairs from path into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	list := func(name string, dst *[]string) {
		if v, ok := lookup(EnvPrefix + name); ok && strings.TrimSpace(v) != "" {
			*dst = splitList(v)
		}
	}
	var errs []error
	num := func(name string, dst *int) {
		v, ok := lookup(EnvPrefix + name)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
			return
		}
		*dst = n
	}
	ratio := func(name string, dst *float64) {
		v, ok := lookup(EnvPrefix + name)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
			return
		}
		*dst = f
	}
	flag := func(name string, dst *bool) {
		v, ok := lookup(EnvPrefix + name)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
			return
		}
		*dst = b
	}

	str("SRC_DIR", &c.Images.SrcDir)
	str("OUT_DIR", &c.Images.OutDir)
	list("EXTENSIONS", &c.Images.Extensions)
	str("CACHE_FILE", &c.Images.CacheFile)
	str("TIMESTAMP_FILE", &c.Images.TimestampFile)
	num("AVIF_QUALITY", &c.Images.AVIF.Quality)
	num("WEBP_QUALITY", &c.Images.WebP.Quality)
	ratio("WIDTH_RATIO", &c.Images.Resize.WidthRatio)
	ratio("HEIGHT_RATIO", &c.Images.Resize.HeightRatio)
	num("CONCURRENCY", &c.Images.Concurrency)

	flag("MINIFY_ENABLED", &c.Minify.Enabled)
	str("MINIFY_SRC_DIR", &c.Minify.SrcDir)
	str("MINIFY_OUT_DIR", &c.Minify.OutDir)
	list("MINIFY_EXTENSIONS", &c.Minify.Extensions)

	return errors.Join(errs...)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// resolve fills values derived from other settings.
func (c *Config) resolve() {
	if c.Images.CacheFile == "" {
		c.Images.CacheFile = filepath.Join(c.Images.OutDir, defaultCacheName)
	}
	c.Images.Extensions = normalizeExtensions(c.Images.Extensions)
	c.Minify.Extensions = normalizeExtensions(c.Minify.Extensions)
}

func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			out = append(out, ext)
		}
	}
	return out
}

// Validate reports every out-of-range setting at once.
func (c *Config) Validate() error {
	var errs []error
	img := c.Images
	if img.SrcDir == "" {
		errs = append(errs, errors.New("images.src_dir must not be empty"))
	}
	if img.OutDir == "" {
		errs = append(errs, errors.New("images.out_dir must not be empty"))
	}
	if len(img.Extensions) == 0 {
		errs = append(errs, errors.New("images.extensions must list at least one extension"))
	}
	if img.TimestampFile == "" {
		errs = append(errs, errors.New("images.timestamp_file must not be empty"))
	}
	if img.AVIF.Quality < 0 || img.AVIF.Quality > 100 {
		errs = append(errs, fmt.Errorf("images.avif.quality %d out of range 0-100", img.AVIF.Quality))
	}
	if img.AVIF.Speed < 0 || img.AVIF.Speed > 10 {
		errs = append(errs, fmt.Errorf("images.avif.speed %d out of range 0-10", img.AVIF.Speed))
	}
	if img.WebP.Quality < 0 || img.WebP.Quality > 100 {
		errs = append(errs, fmt.Errorf("images.webp.quality %d out of range 0-100", img.WebP.Quality))
	}
	if img.WebP.Method < 0 || img.WebP.Method > 6 {
		errs = append(errs, fmt.Errorf("images.webp.method %d out of range 0-6", img.WebP.Method))
	}
	for ext, cc := range img.Compress {
		if cc.Quality < 0 || cc.Quality > 100 {
			errs = append(errs, fmt.Errorf("images.compress.%s.quality %d out of range 0-100", ext, cc.Quality))
		}
		if cc.CompressionLevel != nil && (*cc.CompressionLevel < 0 || *cc.CompressionLevel > 9) {
			errs = append(errs, fmt.Errorf("images.compress.%s.compression_level %d out of range 0-9", ext, *cc.CompressionLevel))
		}
	}
	if img.Resize.WidthRatio <= 0 || img.Resize.HeightRatio <= 0 {
		errs = append(errs, errors.New("images.resize ratios must be positive"))
	}
	if img.Concurrency < 0 {
		errs = append(errs, errors.New("images.concurrency must not be negative"))
	}
	if c.Minify.Enabled {
		if c.Minify.SrcDir == "" || c.Minify.OutDir == "" {
			errs = append(errs, errors.New("minify.src_dir and minify.out_dir are required when minify is enabled"))
		}
		if len(c.Minify.Extensions) == 0 {
			errs = append(errs, errors.New("minify.extensions must list at least one extension"))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// ImageOptions converts the image settings into deriver options.
func (c *Config) ImageOptions() derive.Options {
	opts := derive.Options{
		AVIFQuality: c.Images.AVIF.Quality,
		AVIFSpeed:   c.Images.AVIF.Speed,
		WebPQuality: c.Images.WebP.Quality,
		WebPMethod:  c.Images.WebP.Method,
		Compress:    make(map[string]derive.Compression, len(c.Images.Compress)),
		WidthRatio:  c.Images.Resize.WidthRatio,
		HeightRatio: c.Images.Resize.HeightRatio,
	}
	for ext, cc := range c.Images.Compress {
		level := -1
		if cc.CompressionLevel != nil {
			level = *cc.CompressionLevel
		}
		opts.Compress[strings.ToLower(strings.TrimPrefix(ext, "."))] = derive.Compression{Quality: cc.Quality, Level: level}
	}
	return opts
}

// PipelineConfig converts the image settings into a session config.
func (c *Config) PipelineConfig() pipeline.Config {
	return pipeline.Config{
		SourceDir:     c.Images.SrcDir,
		OutputDir:     c.Images.OutDir,
		Extensions:    c.Images.Extensions,
		CacheFile:     c.Images.CacheFile,
		TimestampFile: c.Images.TimestampFile,
		Concurrency:   c.Images.Concurrency,
	}
}

// MinifyOptions converts the minify settings into minifier options.
func (c *Config) MinifyOptions() minify.Options {
	opts := minify.DefaultOptions()
	opts.PreserveBlockComments = c.Minify.PreserveBlockComments
	return opts
}
