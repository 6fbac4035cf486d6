package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dudu/glamface/internal/overlay"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "glamface.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\"): %v", err)
	}
	if cfg.Smoothing.Alpha != 0.45 || cfg.Shape.Samples != 100 {
		t.Errorf("defaults = %+v", cfg)
	}
	if !cfg.Models.MeshChannelsLast || cfg.Models.RedetectEvery != 10 || cfg.Models.Runtime != "" {
		t.Errorf("models = %+v", cfg.Models)
	}
	cat, err := cfg.Category()
	if err != nil || cat != overlay.Lipstick {
		t.Errorf("Category = %v, %v", cat, err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
camera:
  mirror: true
  fps: 24
shape:
  eyeliner_width: 7.5
  feather_widths: [4]
session:
  category: blush
  color: "#ff8899"
  detect_timeout: 100ms
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Camera.Mirror || cfg.Camera.FPS != 24 || cfg.Camera.Width != 1280 {
		t.Errorf("camera = %+v", cfg.Camera)
	}
	if cfg.Session.DetectTimeout.Duration() != 100*time.Millisecond {
		t.Errorf("detect_timeout = %v", cfg.Session.DetectTimeout.Duration())
	}
	tuning := cfg.Tuning()
	if tuning.EyelinerWidth != 7.5 || len(tuning.FeatherWidths) != 1 || tuning.LipDilate != 2 {
		t.Errorf("tuning = %+v", tuning)
	}
	style, err := cfg.Style()
	if err != nil || style.Color.R != 0xff || style.Color.G != 0x88 {
		t.Errorf("style = %+v, %v", style, err)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"alpha", "smoothing: {alpha: 1}"},
		{"samples", "shape: {samples: 2}"},
		{"category", "session: {category: mascara}"},
		{"color", "session: {color: purple}"},
		{"opacity", "session: {opacity: 2}"},
		{"feather order", "shape: {feather_widths: [6, 3]}"},
		{"feather opacity", "shape: {feather_widths: [1, 2, 3]}"},
		{"camera", "camera: {width: 0}"},
		{"detection size", "models: {detection_size: 600}"},
		{"mesh path", "models: {face_mesh: \"\"}"},
		{"redetect", "models: {redetect_every: -1}"},
		{"crop scale", "models: {mesh_crop_scale: 0.5}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.yaml))
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("err = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestLoadBadDuration(t *testing.T) {
	_, err := Load(writeFile(t, "session: {detect_timeout: soon}"))
	if err == nil || errors.Is(err, ErrInvalid) {
		t.Errorf("err = %v, want parse error", err)
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	data, err := Default().Marshal()
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(writeFile(t, string(data)))
	if err != nil {
		t.Fatalf("reloading marshaled defaults: %v", err)
	}
	if cfg.Session.DetectTimeout != Default().Session.DetectTimeout {
		t.Errorf("detect_timeout = %v", cfg.Session.DetectTimeout.Duration())
	}
}
