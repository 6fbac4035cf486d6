package geom

import "math"

// catmullRom evaluates the uniform Catmull-Rom segment between p1 and p2 at t
func catmullRom(t float64, p0, p1, p2, p3 Point) Point {
	return Point{
		X: catmullRom1(t, p0.X, p1.X, p2.X, p3.X),
		Y: catmullRom1(t, p0.Y, p1.Y, p2.Y, p3.Y),
	}
}

func catmullRom1(t, p0, p1, p2, p3 float64) float64 {
	v0 := (p2 - p0) * 0.5
	v1 := (p3 - p1) * 0.5
	t2 := t * t
	t3 := t * t2
	return (2*p1-2*p2+v0+v1)*t3 + (-3*p1+3*p2-2*v0-v1)*t2 + v0*t + p1
}

// ResampleClosed fits a closed Catmull-Rom loop through points and appends
// samples evenly spaced (in curve parameter) positions to dst[:0]. The
// first sample equals points[0]; the closing segment back to it is implied
// and not repeated. Fewer than 3 points are copied as-is.
func ResampleClosed(dst, points []Point, samples int) []Point {
	dst = dst[:0]
	n := len(points)
	if n < 3 || samples < 1 {
		return append(dst, points...)
	}
	for k := 0; k < samples; k++ {
		p := float64(n) * float64(k) / float64(samples)
		i := int(math.Floor(p))
		w := p - float64(i)
		dst = append(dst, catmullRom(w,
			points[(i-1+n)%n],
			points[i%n],
			points[(i+1)%n],
			points[(i+2)%n],
		))
	}
	return dst
}

// ResampleOpen fits an open Catmull-Rom curve through points and appends
// samples+1 positions to dst[:0], the first and last equal to the end
// points. The end points are never joined. Fewer than 2 points are copied.
func ResampleOpen(dst, points []Point, samples int) []Point {
	dst = dst[:0]
	n := len(points)
	if n < 2 || samples < 1 {
		return append(dst, points...)
	}
	last := n - 1
	for k := 0; k <= samples; k++ {
		p := float64(last) * float64(k) / float64(samples)
		i := int(math.Floor(p))
		w := p - float64(i)
		if i >= last {
			i = last - 1
			w = 1
		}
		dst = append(dst, catmullRom(w,
			points[max(i-1, 0)],
			points[i],
			points[i+1],
			points[min(i+2, last)],
		))
	}
	return dst
}
