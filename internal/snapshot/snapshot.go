// Package snapshot renders overlay views offscreen with gogpu/gg and writes
// them out as PNG frames.
package snapshot

import (
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gogpu/gg"
	"github.com/paulmach/orb"

	"github.com/dudu/glamface/internal/geom"
	"github.com/dudu/glamface/internal/logging"
	"github.com/dudu/glamface/internal/overlay"
	"github.com/dudu/glamface/internal/pipeline"
	"github.com/dudu/glamface/internal/shape"
)

// DefaultPattern names frames by sequence number
const DefaultPattern = "frame-%06d.png"

// Options configures a Renderer
type Options struct {
	// Dir receives one PNG per rendered frame. Empty keeps frames in
	// memory only.
	Dir string
	// Pattern is a fmt pattern taking the frame sequence number
	Pattern    string
	Background string
	Logger     *slog.Logger
}

// Renderer implements pipeline.Renderer on a software gg context
type Renderer struct {
	dir     string
	pattern string
	bg      gg.RGBA
	logger  *slog.Logger

	dc      *gg.Context
	written int
}

// New creates a renderer, creating Dir if needed
func New(opts Options) (*Renderer, error) {
	if opts.Pattern == "" {
		opts.Pattern = DefaultPattern
	}
	if opts.Background == "" {
		opts.Background = "#000000"
	}
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output dir: %w", err)
		}
	}
	return &Renderer{
		dir:     opts.Dir,
		pattern: opts.Pattern,
		bg:      gg.Hex(opts.Background),
		logger:  logging.OrNop(opts.Logger),
	}, nil
}

// Render implements pipeline.Renderer
func (r *Renderer) Render(in pipeline.RenderInput) error {
	w, h := in.Frame.Width, in.Frame.Height
	if w <= 0 || h <= 0 {
		return fmt.Errorf("invalid frame size %dx%d", w, h)
	}
	if r.dc == nil || r.dc.Width() != w || r.dc.Height() != h {
		if r.dc != nil {
			_ = r.dc.Close()
		}
		r.dc = gg.NewContext(w, h)
	}

	r.dc.ClearWithColor(r.bg)
	for _, v := range in.Views {
		if err := r.paint(in.Mapper, v); err != nil {
			return fmt.Errorf("failed to paint %s: %w", v.Slot, err)
		}
	}

	if r.dir == "" {
		return nil
	}
	path := filepath.Join(r.dir, fmt.Sprintf(r.pattern, in.Frame.Seq))
	if err := r.dc.SavePNG(path); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	r.written++
	r.logger.Debug("frame written", "path", path, "views", len(in.Views))
	return nil
}

func (r *Renderer) paint(m geom.Mapper, v overlay.View) error {
	if !v.Visible || v.Geometry.Empty() {
		return nil
	}
	c := v.Style.Color
	r.dc.SetRGBA(float64(c.R)/255, float64(c.G)/255, float64(c.B)/255, v.Style.Opacity)
	r.dc.ClearPath()

	g := v.Geometry
	switch g.Kind {
	case shape.KindRegion, shape.KindBlob:
		for _, ring := range g.Region {
			r.ring(m, ring)
		}
		// holes wind whichever way the builder left them
		r.dc.SetFillRule(gg.FillRuleEvenOdd)
	case shape.KindRibbon:
		// strip triangles share one winding, so non-zero fills their union once
		for _, t := range g.Ribbon.Triangles {
			for k, idx := range t {
				p := m.FromDevice(g.Ribbon.Vertex(idx))
				if k == 0 {
					r.dc.MoveTo(p.X, p.Y)
				} else {
					r.dc.LineTo(p.X, p.Y)
				}
			}
			r.dc.ClosePath()
		}
		r.dc.SetFillRule(gg.FillRuleNonZero)
	default:
		return nil
	}
	return r.dc.Fill()
}

func (r *Renderer) ring(m geom.Mapper, ring orb.Ring) {
	for i, d := range ring {
		p := m.FromDevice(d)
		if i == 0 {
			r.dc.MoveTo(p.X, p.Y)
		} else {
			r.dc.LineTo(p.X, p.Y)
		}
	}
	r.dc.ClosePath()
}

// Image returns the last rendered frame, nil before the first Render
func (r *Renderer) Image() image.Image {
	if r.dc == nil {
		return nil
	}
	return r.dc.Image()
}

// Written returns the number of PNG files written
func (r *Renderer) Written() int {
	return r.written
}

// Close implements pipeline.Renderer
func (r *Renderer) Close() error {
	if r.dc == nil {
		return nil
	}
	err := r.dc.Close()
	r.dc = nil
	return err
}
