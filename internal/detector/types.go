// Package detector is the ONNX landmark source: an SCRFD face detector
// locating the face and a 468-point face mesh model placing the landmarks.
package detector

import "github.com/dudu/glamface/internal/geom"

// Point represents a 2D point
type Point struct {
	X, Y float32
}

// BoundingBox represents a face bounding box
type BoundingBox struct {
	X1, Y1 float32 // top-left
	X2, Y2 float32 // bottom-right
}

// Width returns box width
func (b BoundingBox) Width() float32 {
	return b.X2 - b.X1
}

// Height returns box height
func (b BoundingBox) Height() float32 {
	return b.Y2 - b.Y1
}

// Center returns box center point
func (b BoundingBox) Center() Point {
	return Point{
		X: (b.X1 + b.X2) / 2,
		Y: (b.Y1 + b.Y2) / 2,
	}
}

// Area returns box area
func (b BoundingBox) Area() float32 {
	return b.Width() * b.Height()
}

// Keypoints are the 5 alignment points SCRFD emits with each box
type Keypoints struct {
	LeftEye    Point
	RightEye   Point
	Nose       Point
	LeftMouth  Point
	RightMouth Point
}

// Detection is one face box found by SCRFD
type Detection struct {
	Box       BoundingBox
	Keypoints Keypoints
	Score     float32
}

// Bounds computes the tight bounding box around points
func Bounds(points []geom.Point) BoundingBox {
	if len(points) == 0 {
		return BoundingBox{}
	}
	minX, minY := points[0].X, points[0].Y
	maxX, maxY := points[0].X, points[0].Y
	for _, p := range points[1:] {
		minX = min(minX, p.X)
		maxX = max(maxX, p.X)
		minY = min(minY, p.Y)
		maxY = max(maxY, p.Y)
	}
	return BoundingBox{X1: float32(minX), Y1: float32(minY), X2: float32(maxX), Y2: float32(maxY)}
}
