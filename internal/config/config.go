// Package config loads glamface settings from YAML, layered over defaults
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dudu/glamface/internal/landmark"
	"github.com/dudu/glamface/internal/logging"
	"github.com/dudu/glamface/internal/overlay"
	"github.com/dudu/glamface/internal/shape"
)

// ErrInvalid is wrapped by every validation failure
var ErrInvalid = errors.New("invalid config")

// Duration wraps time.Duration for YAML unmarshaling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the time.Duration value
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Config is the full glamface configuration
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Camera    CameraConfig    `yaml:"camera"`
	Models    ModelConfig     `yaml:"models"`
	Smoothing SmoothingConfig `yaml:"smoothing"`
	Shape     ShapeConfig     `yaml:"shape"`
	Session   SessionConfig   `yaml:"session"`
}

// LogConfig selects log verbosity and encoding
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// CameraConfig describes the capture device
type CameraConfig struct {
	Device int     `yaml:"device"`
	Width  int     `yaml:"width"`
	Height int     `yaml:"height"`
	FPS    float64 `yaml:"fps"`
	Mirror bool    `yaml:"mirror"`
}

// ModelConfig locates the ONNX models of the landmark source
type ModelConfig struct {
	// Runtime is the ONNX Runtime shared library, empty for the platform default
	Runtime       string  `yaml:"runtime"`
	FaceDetector  string  `yaml:"face_detector"`
	FaceMesh      string  `yaml:"face_mesh"`
	DetectionSize int     `yaml:"detection_size"`
	ConfThreshold float32 `yaml:"conf_threshold"`
	NMSThreshold  float32 `yaml:"nms_threshold"`
	MeshInputSize int     `yaml:"mesh_input_size"`
	MeshInput     string  `yaml:"mesh_input"`
	MeshOutput    string  `yaml:"mesh_output"`
	// MeshChannelsLast feeds the mesh model NHWC input
	MeshChannelsLast bool    `yaml:"mesh_channels_last"`
	MeshCropScale    float32 `yaml:"mesh_crop_scale"`
	// RedetectEvery reruns face detection at least every n frames while a
	// face is tracked, zero detects on every frame
	RedetectEvery int `yaml:"redetect_every"`
}

// SmoothingConfig tunes the landmark EMA
type SmoothingConfig struct {
	Alpha float64 `yaml:"alpha"`
}

// ShapeConfig tunes the shape builders, distances in source pixels
type ShapeConfig struct {
	Samples           int       `yaml:"samples"`
	LipDilate         float64   `yaml:"lip_dilate"`
	LipInnerExpand    float64   `yaml:"lip_inner_expand"`
	FeatherWidths     []float64 `yaml:"feather_widths"`
	FeatherOpacity    []float64 `yaml:"feather_opacity"`
	EyelinerWidth     float64   `yaml:"eyeliner_width"`
	BlushDilate       float64   `yaml:"blush_dilate"`
	MinLipPoints      int       `yaml:"min_lip_points"`
	MinEyelinerPoints int       `yaml:"min_eyeliner_points"`
	MinBlushPoints    int       `yaml:"min_blush_points"`
}

// SessionConfig is the initial cosmetic selection
type SessionConfig struct {
	Category      string   `yaml:"category"`
	Color         string   `yaml:"color"`
	Opacity       float64  `yaml:"opacity"`
	DetectTimeout Duration `yaml:"detect_timeout"`
}

// Default returns the stock configuration
func Default() Config {
	t := shape.DefaultTuning()
	return Config{
		Log: LogConfig{Level: "info", Format: "text"},
		Camera: CameraConfig{
			Width:  1280,
			Height: 720,
			FPS:    30,
		},
		Models: ModelConfig{
			FaceDetector:  "models/det_10g.onnx",
			FaceMesh:      "models/face_landmark.onnx",
			DetectionSize: 640,
			ConfThreshold: 0.5,
			NMSThreshold:  0.4,
			MeshInputSize: 192,
			MeshInput:     "input_1",
			MeshOutput:    "conv2d_21",

			MeshChannelsLast: true,
			MeshCropScale:    1.5,
			RedetectEvery:    10,
		},
		Smoothing: SmoothingConfig{Alpha: landmark.DefaultAlpha},
		Shape: ShapeConfig{
			Samples:           t.Samples,
			LipDilate:         t.LipDilate,
			LipInnerExpand:    t.LipInnerExpand,
			FeatherWidths:     t.FeatherWidths,
			FeatherOpacity:    []float64{0.5, 0.25},
			EyelinerWidth:     t.EyelinerWidth,
			BlushDilate:       t.BlushDilate,
			MinLipPoints:      t.MinLipPoints,
			MinEyelinerPoints: t.MinEyelinerPoints,
			MinBlushPoints:    t.MinBlushPoints,
		},
		Session: SessionConfig{
			Category:      "lipstick",
			Color:         "#800080",
			Opacity:       0.35,
			DetectTimeout: Duration(250 * time.Millisecond),
		},
	}
}

// Load reads a YAML file over the defaults and validates the result. An
// empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every setting
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
		}
	}

	_, err := logging.ParseLevel(c.Log.Level)
	check(err == nil, "log.level %q", c.Log.Level)
	check(c.Log.Format == "text" || c.Log.Format == "json" || c.Log.Format == "", "log.format %q", c.Log.Format)

	check(c.Camera.Width > 0 && c.Camera.Height > 0, "camera size %dx%d", c.Camera.Width, c.Camera.Height)
	check(c.Camera.FPS > 0, "camera.fps %v must be positive", c.Camera.FPS)

	m := c.Models
	check(m.FaceDetector != "" && m.FaceMesh != "", "models need face_detector and face_mesh paths")
	check(m.DetectionSize > 0 && m.DetectionSize%32 == 0, "models.detection_size %d must be a positive multiple of 32", m.DetectionSize)
	check(m.ConfThreshold > 0 && m.ConfThreshold < 1, "models.conf_threshold %v must be in (0,1)", m.ConfThreshold)
	check(m.NMSThreshold > 0 && m.NMSThreshold < 1, "models.nms_threshold %v must be in (0,1)", m.NMSThreshold)
	check(m.MeshInputSize > 0, "models.mesh_input_size %d must be positive", m.MeshInputSize)
	check(m.MeshCropScale >= 1, "models.mesh_crop_scale %v must be at least 1", m.MeshCropScale)
	check(m.RedetectEvery >= 0, "models.redetect_every %d must not be negative", m.RedetectEvery)

	check(c.Smoothing.Alpha > 0 && c.Smoothing.Alpha < 1, "smoothing.alpha %v must be in (0,1)", c.Smoothing.Alpha)

	s := c.Shape
	check(s.Samples >= 4, "shape.samples %d must be at least 4", s.Samples)
	check(s.LipDilate >= 0 && s.LipInnerExpand >= 0 && s.BlushDilate >= 0, "shape dilations must not be negative")
	check(s.EyelinerWidth > 0, "shape.eyeliner_width %v must be positive", s.EyelinerWidth)
	check(len(s.FeatherOpacity) >= len(s.FeatherWidths), "shape.feather_opacity needs %d entries", len(s.FeatherWidths))
	for i, w := range s.FeatherWidths {
		check(w > 0, "shape.feather_widths[%d] %v must be positive", i, w)
		check(i == 0 || w > s.FeatherWidths[i-1], "shape.feather_widths must increase")
	}
	check(s.MinLipPoints >= 3 && s.MinBlushPoints >= 3, "shape minimum points for closed regions must be at least 3")
	check(s.MinEyelinerPoints >= 2, "shape.min_eyeliner_points must be at least 2")

	_, err = overlay.ParseCategory(c.Session.Category)
	check(err == nil, "session.category %q", c.Session.Category)
	_, err = overlay.ParseColor(c.Session.Color)
	check(err == nil, "session.color %q", c.Session.Color)
	check(c.Session.Opacity >= 0 && c.Session.Opacity <= 1, "session.opacity %v must be in [0,1]", c.Session.Opacity)
	check(c.Session.DetectTimeout > 0, "session.detect_timeout must be positive")

	return errors.Join(errs...)
}

// Tuning returns the shape builder parameters
func (c Config) Tuning() shape.Tuning {
	s := c.Shape
	return shape.Tuning{
		Samples:           s.Samples,
		LipDilate:         s.LipDilate,
		LipInnerExpand:    s.LipInnerExpand,
		FeatherWidths:     s.FeatherWidths,
		EyelinerWidth:     s.EyelinerWidth,
		BlushDilate:       s.BlushDilate,
		MinLipPoints:      s.MinLipPoints,
		MinEyelinerPoints: s.MinEyelinerPoints,
		MinBlushPoints:    s.MinBlushPoints,
	}
}

// Category returns the initial cosmetic category
func (c Config) Category() (overlay.Category, error) {
	return overlay.ParseCategory(c.Session.Category)
}

// Style returns the initial cosmetic style
func (c Config) Style() (overlay.Style, error) {
	return overlay.ParseStyle(c.Session.Color, c.Session.Opacity)
}

// Marshal encodes c as YAML
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
