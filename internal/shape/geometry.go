// Package shape turns smoothed facial landmarks into renderable overlay
// geometry: filled regions with holes for lips, open ribbon strips for
// eyeliner and filled blobs for blush. All coordinates are in device space.
package shape

import (
	"errors"

	"github.com/paulmach/orb"
)

// ErrInsufficientPoints is returned when a region has too few usable
// landmarks to build a shape. It signals "no geometry" for this frame.
var ErrInsufficientPoints = errors.New("insufficient landmark points")

// Kind tags the topology of a Geometry
type Kind int

const (
	KindNone Kind = iota
	// KindRegion is one outer ring with zero or more holes
	KindRegion
	// KindRibbon is a triangle strip between two open polylines
	KindRibbon
	// KindBlob is a single ring without holes
	KindBlob
)

func (k Kind) String() string {
	switch k {
	case KindRegion:
		return "region"
	case KindRibbon:
		return "ribbon"
	case KindBlob:
		return "blob"
	default:
		return "none"
	}
}

// Triangle indexes three ribbon vertices, see Ribbon.Vertex
type Triangle [3]int

// Ribbon is an open band between two polylines of equal length. Vertex i
// in [0,n) is Outer[i]; vertex n+i is Inner[i].
type Ribbon struct {
	Inner     orb.LineString
	Outer     orb.LineString
	Triangles []Triangle
}

// Vertex resolves a triangle vertex index
func (r *Ribbon) Vertex(i int) orb.Point {
	if n := len(r.Outer); i >= n {
		return r.Inner[i-n]
	}
	return r.Outer[i]
}

// Geometry is one frame's shape for a render slot. Region rings are closed
// (the last point repeats the first) with the outer ring counter-clockwise
// and holes clockwise. Blob geometry uses Region with a single ring.
//
// A Geometry is written by the builders into reused storage; copy it with
// Clone before holding on to it past the next build.
type Geometry struct {
	Kind   Kind
	Region orb.Polygon
	Ribbon Ribbon
}

// Reset empties g while keeping its storage
func (g *Geometry) Reset() {
	g.Kind = KindNone
	g.Region = g.Region[:0]
	g.Ribbon.Inner = g.Ribbon.Inner[:0]
	g.Ribbon.Outer = g.Ribbon.Outer[:0]
	g.Ribbon.Triangles = g.Ribbon.Triangles[:0]
}

// Empty reports whether g carries no drawable shape
func (g *Geometry) Empty() bool {
	if g == nil {
		return true
	}
	switch g.Kind {
	case KindRegion, KindBlob:
		return len(g.Region) == 0 || len(g.Region[0]) < 4
	case KindRibbon:
		return len(g.Ribbon.Triangles) == 0
	default:
		return true
	}
}

// Outer returns the outer ring of a region or blob
func (g *Geometry) Outer() orb.Ring {
	if len(g.Region) == 0 {
		return nil
	}
	return g.Region[0]
}

// Holes returns the hole rings of a region
func (g *Geometry) Holes() []orb.Ring {
	if len(g.Region) < 2 {
		return nil
	}
	return g.Region[1:]
}

// Bound returns the device-space bounding box of g
func (g *Geometry) Bound() orb.Bound {
	switch g.Kind {
	case KindRegion, KindBlob:
		return g.Region.Bound()
	case KindRibbon:
		return g.Ribbon.Outer.Bound().Union(g.Ribbon.Inner.Bound())
	default:
		return orb.Bound{}
	}
}

// CopyFrom makes g a deep copy of src, reusing g's storage
func (g *Geometry) CopyFrom(src *Geometry) {
	g.Reset()
	if src == nil {
		return
	}
	g.Kind = src.Kind
	for i, r := range src.Region {
		g.Region = appendRing(g.Region, i)
		g.Region[i] = append(g.Region[i], r...)
	}
	g.Ribbon.Inner = append(g.Ribbon.Inner, src.Ribbon.Inner...)
	g.Ribbon.Outer = append(g.Ribbon.Outer, src.Ribbon.Outer...)
	g.Ribbon.Triangles = append(g.Ribbon.Triangles, src.Ribbon.Triangles...)
}

// Clone returns a deep copy of g
func (g *Geometry) Clone() *Geometry {
	c := &Geometry{}
	c.CopyFrom(g)
	return c
}

// appendRing grows p by one ring, reusing a previously allocated ring at
// index i when there is one, and returns p with ring i emptied.
func appendRing(p orb.Polygon, i int) orb.Polygon {
	if i < cap(p) {
		p = p[:i+1]
		p[i] = p[i][:0]
		return p
	}
	return append(p, nil)
}
