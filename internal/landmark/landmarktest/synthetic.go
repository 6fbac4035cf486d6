// Package landmarktest builds synthetic MediaPipe face mesh detections for
// tests: a plausible frontal face inside a 640x480 frame with elliptical
// lips, almond eyes and round cheeks.
package landmarktest

import (
	"math"
	"slices"

	"github.com/dudu/glamface/internal/geom"
	"github.com/dudu/glamface/internal/landmark"
)

// Frame size the synthetic face is laid out in
const (
	Width  = 640
	Height = 480
)

// Feature centers in pixels
var (
	MouthCenter      = geom.Pt(320, 360)
	RightEyeCenter   = geom.Pt(250, 220)
	LeftEyeCenter    = geom.Pt(390, 220)
	RightCheekCenter = geom.Pt(230, 300)
	LeftCheekCenter  = geom.Pt(410, 300)
)

// Face returns a full 468-point detection. Landmarks that no overlay uses
// sit at the face center.
func Face() *landmark.Face {
	t := landmark.MediaPipeFaceMesh()
	pts := make([]geom.Point, t.Landmarks)
	for i := range pts {
		pts[i] = geom.Pt(320, 270)
	}
	g := t.Groups

	ring(pts, lipRing(g[landmark.GroupLipsUpperOuter], g[landmark.GroupLipsLowerOuter]), MouthCenter, 60, 25)
	ring(pts, lipRing(g[landmark.GroupLipsUpperInner], g[landmark.GroupLipsLowerInner]), MouthCenter, 40, 10)

	eye(pts, g[landmark.GroupRightEyeUpper], g[landmark.GroupRightEyeLower], RightEyeCenter, false)
	eye(pts, g[landmark.GroupLeftEyeUpper], g[landmark.GroupLeftEyeLower], LeftEyeCenter, true)

	ring(pts, g[landmark.GroupRightCheek], RightCheekCenter, 25, 25)
	ring(pts, g[landmark.GroupLeftCheek], LeftCheekCenter, 25, 25)

	for i, idx := range g[landmark.GroupSilhouette] {
		a := 2 * math.Pi * float64(i) / float64(len(g[landmark.GroupSilhouette]))
		pts[idx] = geom.Pt(320+150*math.Sin(a), 270-190*math.Cos(a))
	}
	return landmark.NewFace(pts)
}

// Drop returns a copy of face without the given landmark indices
func Drop(face *landmark.Face, indices ...int) *landmark.Face {
	out := &landmark.Face{}
	for _, l := range face.Landmarks {
		if slices.Contains(indices, l.Index) {
			continue
		}
		out.Landmarks = append(out.Landmarks, l)
	}
	return out
}

// Translate returns a copy of face moved by (dx, dy)
func Translate(face *landmark.Face, dx, dy float64) *landmark.Face {
	out := &landmark.Face{Landmarks: slices.Clone(face.Landmarks)}
	for i := range out.Landmarks {
		out.Landmarks[i].X += dx
		out.Landmarks[i].Y += dy
	}
	return out
}

// lipRing orders a lip's arcs into one loop: the upper arc corner to corner,
// then the lower arc back without the shared corners.
func lipRing(upper, lower []int) []int {
	out := slices.Clone(upper)
	for i := len(lower) - 1; i >= 0; i-- {
		if lower[i] != upper[0] && lower[i] != upper[len(upper)-1] {
			out = append(out, lower[i])
		}
	}
	return out
}

// ring places indices evenly on an ellipse, starting at the left-most point
// and running over the top.
func ring(pts []geom.Point, indices []int, c geom.Point, rx, ry float64) {
	n := float64(len(indices))
	for k, idx := range indices {
		a := math.Pi - 2*math.Pi*float64(k)/n
		pts[idx] = geom.Pt(c.X+rx*math.Cos(a), c.Y-ry*math.Sin(a))
	}
}

// eye lays the lower lid corner to corner under the center and the upper
// lid points above it. The subject's left eye starts at the image-right
// corner.
func eye(pts []geom.Point, upper, lower []int, c geom.Point, flip bool) {
	const rx, ry = 30, 12
	sx := 1.0
	if flip {
		sx = -1
	}
	m := float64(len(lower) - 1)
	for k, idx := range lower {
		a := math.Pi + math.Pi*float64(k)/m
		pts[idx] = geom.Pt(c.X+sx*rx*math.Cos(a), c.Y-ry*math.Sin(a))
	}
	u := float64(len(upper) + 1)
	for k, idx := range upper {
		a := math.Pi - math.Pi*float64(k+1)/u
		pts[idx] = geom.Pt(c.X+sx*rx*math.Cos(a), c.Y-ry*math.Sin(a))
	}
}
