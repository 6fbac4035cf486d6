// Package geom holds the pixel-space point math used to turn sparse facial
// landmarks into smooth overlay outlines: centroids, radial dilation,
// Catmull-Rom resampling and conversion into renderer device space.
package geom

import "math"

// Point is a position in source-frame pixels
type Point struct {
	X, Y float64
}

// Pt is shorthand for Point{X: x, Y: y}
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Sub returns p - q
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Distance returns the euclidean distance between p and q
func (p Point) Distance(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Centroid returns the arithmetic mean of points. An empty set yields the origin.
func Centroid(points []Point) Point {
	var sx, sy float64
	for _, p := range points {
		sx += p.X
		sy += p.Y
	}
	n := float64(max(1, len(points)))
	return Point{X: sx / n, Y: sy / n}
}

// Dilate pushes every point radially away from the centroid of the set by
// amount pixels and appends the result to dst[:0]. A zero amount copies the
// input. A point sitting exactly on the centroid has no direction and is
// copied unchanged.
func Dilate(dst, points []Point, amount float64) []Point {
	dst = dst[:0]
	if amount == 0 {
		return append(dst, points...)
	}
	c := Centroid(points)
	for _, p := range points {
		vx := p.X - c.X
		vy := p.Y - c.Y
		l := math.Hypot(vx, vy)
		if l == 0 {
			l = 1
		}
		dst = append(dst, Point{
			X: p.X + vx/l*amount,
			Y: p.Y + vy/l*amount,
		})
	}
	return dst
}
