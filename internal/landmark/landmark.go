// Package landmark models the detector output consumed by the overlay
// pipeline: indexed keypoints, the detector topology, the contour layout
// resolved from it and the temporal smoother applied to keypoints.
package landmark

import "github.com/dudu/glamface/internal/geom"

// Landmark is one detector keypoint in source-frame pixels
type Landmark struct {
	Index int
	X, Y  float64
}

// Point returns the landmark position
func (l Landmark) Point() geom.Point {
	return geom.Point{X: l.X, Y: l.Y}
}

// Face is the keypoint set of one tracked face for one frame. Detectors emit
// landmarks ordered by index, in which case lookups are O(1); partial sets
// (occlusion, replayed data) are searched.
type Face struct {
	Landmarks []Landmark
}

// NewFace builds a face from positions ordered by landmark index
func NewFace(points []geom.Point) *Face {
	f := &Face{Landmarks: make([]Landmark, len(points))}
	for i, p := range points {
		f.Landmarks[i] = Landmark{Index: i, X: p.X, Y: p.Y}
	}
	return f
}

// Len returns the number of keypoints
func (f *Face) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Landmarks)
}

// Lookup returns the position of the landmark with the given index
func (f *Face) Lookup(index int) (geom.Point, bool) {
	if f == nil || index < 0 {
		return geom.Point{}, false
	}
	if index < len(f.Landmarks) && f.Landmarks[index].Index == index {
		return f.Landmarks[index].Point(), true
	}
	for _, l := range f.Landmarks {
		if l.Index == index {
			return l.Point(), true
		}
	}
	return geom.Point{}, false
}

// Collect appends the positions of the contour's landmarks present in the
// face to dst[:0], preserving contour order. Missing landmarks are skipped.
func (f *Face) Collect(dst []geom.Point, c Contour) []geom.Point {
	dst = dst[:0]
	for _, idx := range c.Indices {
		if p, ok := f.Lookup(idx); ok {
			dst = append(dst, p)
		}
	}
	return dst
}
