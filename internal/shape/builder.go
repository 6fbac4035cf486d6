package shape

import (
	"fmt"

	"github.com/paulmach/orb"

	"github.com/dudu/glamface/internal/geom"
	"github.com/dudu/glamface/internal/landmark"
)

// Tuning holds the per-category shape parameters, all distances in source
// pixels
type Tuning struct {
	// Samples is the spline resampling density per curve
	Samples int

	// LipDilate pushes the lip outline outward to close gaps at the corners
	LipDilate float64
	// LipInnerExpand grows the open-mouth hole
	LipInnerExpand float64
	// FeatherWidths are the extra dilations of successive lip glow rings
	// beyond LipDilate. Empty disables feathering.
	FeatherWidths []float64

	// EyelinerWidth is the ribbon band width
	EyelinerWidth float64

	BlushDilate float64

	MinLipPoints      int
	MinEyelinerPoints int
	MinBlushPoints    int
}

// DefaultTuning returns the stock shape parameters
func DefaultTuning() Tuning {
	return Tuning{
		Samples:           100,
		LipDilate:         2,
		LipInnerExpand:    1,
		FeatherWidths:     []float64{3, 6},
		EyelinerWidth:     5,
		BlushDilate:       0,
		MinLipPoints:      5,
		MinEyelinerPoints: 3,
		MinBlushPoints:    5,
	}
}

// Builder assembles geometry from a face. It keeps scratch buffers between
// calls and is not safe for concurrent use.
type Builder struct {
	tuning Tuning

	raw      []geom.Point
	dilated  []geom.Point
	sampled  []geom.Point
	outerDev []orb.Point
	innerDev []orb.Point
}

// NewBuilder creates a builder with the given tuning
func NewBuilder(t Tuning) *Builder {
	return &Builder{tuning: t}
}

// Tuning returns the builder's parameters
func (b *Builder) Tuning() Tuning {
	return b.tuning
}

// Lip builds the filled lip region: the outer lip loop with the open mouth
// as a hole.
func (b *Builder) Lip(face *landmark.Face, layout *landmark.Layout, m geom.Mapper, dst *Geometry) error {
	return b.lipBand(face, layout, m, b.tuning.LipDilate, -1, dst)
}

// LipFeather builds glow ring k (1-based): the lip outline dilated by the
// k-th feather width with the next ring inward as its hole.
func (b *Builder) LipFeather(face *landmark.Face, layout *landmark.Layout, m geom.Mapper, k int, dst *Geometry) error {
	if k < 1 || k > len(b.tuning.FeatherWidths) {
		dst.Reset()
		return fmt.Errorf("feather ring %d not configured", k)
	}
	outer := b.tuning.LipDilate + b.tuning.FeatherWidths[k-1]
	inner := b.tuning.LipDilate
	if k > 1 {
		inner += b.tuning.FeatherWidths[k-2]
	}
	return b.lipBand(face, layout, m, outer, inner, dst)
}

// lipBand builds a region whose outer ring is the lip outline dilated by
// outer. A negative inner uses the open mouth as the hole; otherwise the
// hole is the lip outline dilated by inner.
func (b *Builder) lipBand(face *landmark.Face, layout *landmark.Layout, m geom.Mapper, outer, inner float64, dst *Geometry) error {
	dst.Reset()

	b.raw = face.Collect(b.raw, layout.LipOuter)
	if len(b.raw) < b.tuning.MinLipPoints {
		return fmt.Errorf("%w: %s has %d of %d", ErrInsufficientPoints, layout.LipOuter.Name, len(b.raw), b.tuning.MinLipPoints)
	}
	b.closedCurve(outer, m, &b.outerDev)

	if inner < 0 {
		b.raw = face.Collect(b.raw, layout.LipInner)
		if len(b.raw) < b.tuning.MinLipPoints {
			return fmt.Errorf("%w: %s has %d of %d", ErrInsufficientPoints, layout.LipInner.Name, len(b.raw), b.tuning.MinLipPoints)
		}
		inner = b.tuning.LipInnerExpand
	}
	b.closedCurve(inner, m, &b.innerDev)

	dst.Kind = KindRegion
	dst.Region = appendRing(dst.Region, 0)
	dst.Region[0] = orient(append(dst.Region[0], b.outerDev...), orb.CCW)
	dst.Region = appendRing(dst.Region, 1)
	dst.Region[1] = orient(append(dst.Region[1], b.innerDev...), orb.CW)
	return nil
}

// Eyeliner builds the ribbon along one upper eyelid. The contour is open
// and its ends are never connected.
func (b *Builder) Eyeliner(face *landmark.Face, lid landmark.Contour, m geom.Mapper, dst *Geometry) error {
	dst.Reset()

	b.raw = face.Collect(b.raw, lid)
	if len(b.raw) < b.tuning.MinEyelinerPoints {
		return fmt.Errorf("%w: %s has %d of %d", ErrInsufficientPoints, lid.Name, len(b.raw), b.tuning.MinEyelinerPoints)
	}

	b.sampled = geom.ResampleOpen(b.sampled, b.raw, b.tuning.Samples)
	b.innerDev = m.AppendDevice(b.innerDev[:0], b.sampled)

	b.dilated = geom.Dilate(b.dilated, b.raw, b.tuning.EyelinerWidth)
	b.sampled = geom.ResampleOpen(b.sampled, b.dilated, b.tuning.Samples)
	b.outerDev = m.AppendDevice(b.outerDev[:0], b.sampled)

	dst.Kind = KindRibbon
	BuildStrip(&dst.Ribbon, b.outerDev, b.innerDev)
	return nil
}

// Blush builds the filled blob over one cheek
func (b *Builder) Blush(face *landmark.Face, cheek landmark.Contour, m geom.Mapper, dst *Geometry) error {
	dst.Reset()

	b.raw = face.Collect(b.raw, cheek)
	if len(b.raw) < b.tuning.MinBlushPoints {
		return fmt.Errorf("%w: %s has %d of %d", ErrInsufficientPoints, cheek.Name, len(b.raw), b.tuning.MinBlushPoints)
	}
	b.closedCurve(b.tuning.BlushDilate, m, &b.outerDev)

	dst.Kind = KindBlob
	dst.Region = appendRing(dst.Region, 0)
	dst.Region[0] = orient(append(dst.Region[0], b.outerDev...), orb.CCW)
	return nil
}

// closedCurve dilates b.raw, resamples it as a closed loop and writes the
// device-space ring, closing point included, to *out.
func (b *Builder) closedCurve(amount float64, m geom.Mapper, out *[]orb.Point) {
	b.dilated = geom.Dilate(b.dilated, b.raw, amount)
	b.sampled = geom.ResampleClosed(b.sampled, b.dilated, b.tuning.Samples)
	*out = m.AppendDevice((*out)[:0], b.sampled)
	if len(*out) > 0 {
		*out = append(*out, (*out)[0])
	}
}

func orient(r orb.Ring, want orb.Orientation) orb.Ring {
	if r.Orientation() != want {
		r.Reverse()
	}
	return r
}
