package main

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/lexandro/assetpipe/discovery"
	"github.com/lexandro/assetpipe/ignore"
)

type project struct {
	root       string
	configPath string
}

func newProject(t *testing.T, minifyEnabled bool) *project {
	t.Helper()
	root := t.TempDir()
	for _, dir := range []string{"src/assets/images/photos", "src/public/parts"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0755); err != nil {
			t.Fatal(err)
		}
	}

	img := image.NewRGBA(image.Rect(0, 0, 8, 6))
	for y := 0; y < 6; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 30), G: uint8(y * 40), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(root, "src/assets/images/photos/team.png"), buf.Bytes())
	writeFile(t, filepath.Join(root, "src/public/parts/header.php"), []byte("<?php\n/* header */\n  echo 'hi';\n?>\n"))

	config := fmt.Sprintf(`images:
  src_dir: %[1]s/src/assets/images
  out_dir: %[1]s/dist/assets/images
  timestamp_file: %[1]s/.last-image-process-time
minify:
  enabled: %[2]t
  src_dir: %[1]s/src/public
  out_dir: %[1]s/dist
`, filepath.ToSlash(root), minifyEnabled)
	configPath := filepath.Join(root, "assetpipe.yaml")
	writeFile(t, configPath, []byte(config))

	return &project{root: root, configPath: configPath}
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
}

func (p *project) execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args,
		"--config", p.configPath,
		"--log-file", filepath.Join(p.root, "assetpipe.log"),
	))
	err := cmd.Execute()
	return out.String(), err
}

func Test_RootCommand_Subcommands(t *testing.T) {
	cmd := newRootCommand()
	for _, name := range []string{"build", "watch", "minify", "serve"} {
		found, _, err := cmd.Find([]string{name})
		if err != nil || found.Name() != name {
			t.Errorf("expected subcommand %q, got %v (err %v)", name, found, err)
		}
	}
}

func Test_BuildCommand(t *testing.T) {
	p := newProject(t, true)
	metricsFile := filepath.Join(p.root, "assetpipe.prom")

	out, err := p.execute(t, "build", "--metrics-file", metricsFile)
	if err != nil {
		t.Fatalf("build failed: %v\n%s", err, out)
	}

	for _, name := range []string{"team@1x.png", "team@2x.png", "team@1x.webp", "team@2x.webp", "team@1x.avif", "team@2x.avif"} {
		if _, err := os.Stat(filepath.Join(p.root, "dist/assets/images/photos", name)); err != nil {
			t.Errorf("expected output %s: %v", name, err)
		}
	}
	if !bytes.Contains([]byte(out), []byte("Processed files:")) {
		t.Errorf("expected summary on stdout, got:\n%s", out)
	}

	header, err := os.ReadFile(filepath.Join(p.root, "dist/parts/header.php"))
	if err != nil {
		t.Fatalf("expected minified template: %v", err)
	}
	if string(header) != "<?php echo 'hi';?>" {
		t.Errorf("unexpected minified template %q", header)
	}

	metrics, err := os.ReadFile(metricsFile)
	if err != nil {
		t.Fatalf("expected metrics file: %v", err)
	}
	if !bytes.Contains(metrics, []byte(`assetpipe_runs_total{outcome="completed"} 1`)) {
		t.Errorf("expected completed run in metrics, got:\n%s", metrics)
	}

	// Nothing changed: the second build is skipped and prints no summary
	out, err = p.execute(t, "build")
	if err != nil {
		t.Fatalf("second build failed: %v", err)
	}
	if bytes.Contains([]byte(out), []byte("Processed files:")) {
		t.Errorf("expected no summary on an unchanged build, got:\n%s", out)
	}
}

func Test_BuildCommand_SourceIsFile(t *testing.T) {
	p := newProject(t, false)
	src := filepath.Join(p.root, "src/assets/images")
	if err := os.RemoveAll(src); err != nil {
		t.Fatal(err)
	}
	writeFile(t, src, []byte("not a directory"))

	if _, err := p.execute(t, "build"); err == nil {
		t.Fatal("expected build to fail for an unreadable source directory")
	}
}

func Test_BuildCommand_MissingExplicitConfig(t *testing.T) {
	p := newProject(t, false)
	p.configPath = filepath.Join(p.root, "absent.yaml")

	if _, err := p.execute(t, "build"); err == nil {
		t.Fatal("expected error for a missing --config file")
	}
}

func Test_MinifyCommand(t *testing.T) {
	p := newProject(t, true)

	out, err := p.execute(t, "minify")
	if err != nil {
		t.Fatalf("minify failed: %v", err)
	}
	if !bytes.Contains([]byte(out), []byte("minified 1 templates")) {
		t.Errorf("unexpected output:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(p.root, "dist/assets/images")); err == nil {
		t.Error("minify must not process images")
	}
}

func Test_SourceFilter(t *testing.T) {
	root := t.TempDir()
	matcher := ignore.NewMatcher(ignore.MatcherOptions{RootDir: root, CustomPatterns: []string{"draft-*"}})
	scope := discovery.NewScope(root, []string{"png", "svg"}, discovery.WithIgnore(matcher))
	filter := sourceFilter{scope: scope, matcher: matcher}

	tests := []struct {
		path    string
		ignored bool
	}{
		{filepath.Join(root, "hero.png"), false},
		{filepath.Join(root, "icons", "logo.svg"), false},
		{filepath.Join(root, "notes.txt"), true},
		{filepath.Join(root, "draft-hero.png"), true},
		{filepath.Join(root, ".assetignore"), false},
		{filepath.Join(root, "icons", ".assetignore"), true},
	}
	for _, tt := range tests {
		if got := filter.ShouldIgnore(tt.path); got != tt.ignored {
			t.Errorf("ShouldIgnore(%s) = %v, want %v", tt.path, got, tt.ignored)
		}
	}

	if !filter.ShouldIgnoreDir(filepath.Join(root, "node_modules")) {
		t.Error("expected node_modules to be skipped")
	}
}
