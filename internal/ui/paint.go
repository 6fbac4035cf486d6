package ui

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"

	"gocv.io/x/gocv"

	"github.com/dudu/glamface/internal/geom"
	"github.com/dudu/glamface/internal/overlay"
	"github.com/dudu/glamface/internal/shape"
)

// Painter tints slot geometry onto BGR frames. Each attached slot owns a
// mask and a tint layer, reused across frames.
type Painter struct {
	mu     sync.Mutex
	layers map[overlay.SlotID]*layer
}

type layer struct {
	mask    gocv.Mat
	tint    gocv.Mat
	blended gocv.Mat
}

func (l *layer) close() {
	l.mask.Close()
	l.tint.Close()
	l.blended.Close()
}

// NewPainter creates a painter without slots
func NewPainter() *Painter {
	return &Painter{layers: make(map[overlay.SlotID]*layer)}
}

// Attach implements overlay.Backend
func (p *Painter) Attach(id overlay.SlotID, _ overlay.Style) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.layers[id]; ok {
		return fmt.Errorf("slot %s already attached", id)
	}
	p.layers[id] = &layer{mask: gocv.NewMat(), tint: gocv.NewMat(), blended: gocv.NewMat()}
	return nil
}

// Detach implements overlay.Backend
func (p *Painter) Detach(id overlay.SlotID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.layers[id]
	if !ok {
		return fmt.Errorf("slot %s not attached", id)
	}
	l.close()
	delete(p.layers, id)
	return nil
}

// Paint blends one visible view onto dst. m maps device space back to dst
// pixels.
func (p *Painter) Paint(dst *gocv.Mat, m geom.Mapper, v overlay.View) {
	if !v.Visible || v.Geometry.Empty() {
		return
	}
	p.mu.Lock()
	l, ok := p.layers[v.Slot]
	p.mu.Unlock()
	if !ok {
		return
	}

	contours := pixelContours(v.Geometry, m)
	r := contourBounds(contours).Intersect(image.Rect(0, 0, dst.Cols(), dst.Rows()))
	if r.Empty() {
		return
	}

	ensure(&l.mask, dst.Rows(), dst.Cols(), gocv.MatTypeCV8U)
	ensure(&l.tint, dst.Rows(), dst.Cols(), dst.Type())

	maskROI := l.mask.Region(r)
	defer maskROI.Close()
	maskROI.SetTo(gocv.NewScalar(0, 0, 0, 0))

	// holes are separate contours, fillPoly leaves their overlap unfilled
	pts := gocv.NewPointsVectorFromPoints(contours)
	defer pts.Close()
	gocv.FillPoly(&l.mask, pts, color.RGBA{R: 255, G: 255, B: 255, A: 255})

	c := v.Style.Color
	tintROI := l.tint.Region(r)
	defer tintROI.Close()
	tintROI.SetTo(gocv.NewScalar(float64(c.B), float64(c.G), float64(c.R), 0))

	dstROI := dst.Region(r)
	defer dstROI.Close()
	a := v.Style.Opacity
	gocv.AddWeighted(tintROI, a, dstROI, 1-a, 0, &l.blended)
	l.blended.CopyToWithMask(&dstROI, maskROI)
}

// Close releases every layer
func (p *Painter) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, l := range p.layers {
		l.close()
		delete(p.layers, id)
	}
}

func ensure(m *gocv.Mat, rows, cols int, mt gocv.MatType) {
	if m.Rows() == rows && m.Cols() == cols && m.Type() == mt {
		return
	}
	m.Close()
	*m = gocv.NewMatWithSize(rows, cols, mt)
}

// pixelContours converts geometry to pixel polygons. A ribbon becomes one
// polygon running out along its outer edge and back along its inner edge.
func pixelContours(g *shape.Geometry, m geom.Mapper) [][]image.Point {
	switch g.Kind {
	case shape.KindRegion, shape.KindBlob:
		out := make([][]image.Point, 0, len(g.Region))
		for _, ring := range g.Region {
			pts := make([]image.Point, len(ring))
			for i, d := range ring {
				pts[i] = toPixel(m.FromDevice(d))
			}
			out = append(out, pts)
		}
		return out
	case shape.KindRibbon:
		r := g.Ribbon
		pts := make([]image.Point, 0, len(r.Outer)+len(r.Inner))
		for _, d := range r.Outer {
			pts = append(pts, toPixel(m.FromDevice(d)))
		}
		for i := len(r.Inner) - 1; i >= 0; i-- {
			pts = append(pts, toPixel(m.FromDevice(r.Inner[i])))
		}
		return [][]image.Point{pts}
	default:
		return nil
	}
}

func toPixel(p geom.Point) image.Point {
	return image.Pt(int(math.Round(p.X)), int(math.Round(p.Y)))
}

func contourBounds(contours [][]image.Point) image.Rectangle {
	var r image.Rectangle
	first := true
	for _, c := range contours {
		for _, p := range c {
			pr := image.Rectangle{Min: p, Max: p.Add(image.Pt(1, 1))}
			if first {
				r, first = pr, false
				continue
			}
			r = r.Union(pr)
		}
	}
	return r
}
