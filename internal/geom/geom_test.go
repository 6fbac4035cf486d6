package geom

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
)

func approxEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func square() []Point {
	return []Point{{10, 10}, {30, 10}, {30, 30}, {10, 30}}
}

func TestCentroid(t *testing.T) {
	c := Centroid(square())
	if !approxEqual(c.X, 20, 1e-12) || !approxEqual(c.Y, 20, 1e-12) {
		t.Errorf("Centroid = %v, want (20,20)", c)
	}
	if c := Centroid(nil); c != (Point{}) {
		t.Errorf("Centroid(nil) = %v, want origin", c)
	}
}

func TestDilateZeroCopies(t *testing.T) {
	in := square()
	out := Dilate(nil, in, 0)
	if len(out) != len(in) {
		t.Fatalf("len = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("out[%d] = %v, want %v", i, out[i], in[i])
		}
	}
	out[0].X = -1
	if in[0].X == -1 {
		t.Error("zero dilation must return a copy, not alias the input")
	}
}

func TestDilateIncreasesCentroidDistance(t *testing.T) {
	in := []Point{{100, 50}, {140, 60}, {150, 90}, {120, 110}, {90, 85}, {95, 60}}
	c := Centroid(in)
	for _, d := range []float64{0.5, 2, 5, 13.25} {
		out := Dilate(nil, in, d)
		for i := range in {
			before := in[i].Distance(c)
			after := out[i].Distance(c)
			if !approxEqual(after-before, d, 1e-9) {
				t.Errorf("d=%v point %d: distance grew by %v, want %v", d, i, after-before, d)
			}
		}
	}
}

func TestDilateReusesBuffer(t *testing.T) {
	buf := make([]Point, 0, 16)
	out := Dilate(buf, square(), 3)
	if &out[0] != &buf[:1][0] {
		t.Error("Dilate should write into dst when capacity allows")
	}
}

func TestDilatePointOnCentroid(t *testing.T) {
	in := []Point{{0, 0}, {10, 0}, {-10, 0}}
	out := Dilate(nil, in, 4)
	if out[0] != in[0] {
		t.Errorf("centroid point moved to %v", out[0])
	}
}

func TestMapperCorners(t *testing.T) {
	m := NewMapper(640, 480, false)
	tests := []struct {
		in   Point
		want orb.Point
	}{
		{Pt(0, 0), orb.Point{-1, 1}},
		{Pt(640, 0), orb.Point{1, 1}},
		{Pt(0, 480), orb.Point{-1, -1}},
		{Pt(320, 240), orb.Point{0, 0}},
		{Pt(640, 480), orb.Point{1, -1}},
	}
	for _, tt := range tests {
		got := m.ToDevice(tt.in)
		if !approxEqual(got[0], tt.want[0], 1e-12) || !approxEqual(got[1], tt.want[1], 1e-12) {
			t.Errorf("ToDevice(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestMapperRowDownIsDeviceUp(t *testing.T) {
	m := NewMapper(640, 480, false)
	a := m.ToDevice(Pt(100, 100))
	b := m.ToDevice(Pt(100, 101))
	if !(b[1] < a[1]) {
		t.Errorf("increasing row must decrease device Y: %v then %v", a[1], b[1])
	}
}

func TestMapperRoundTrip(t *testing.T) {
	for _, mirror := range []bool{false, true} {
		m := NewMapper(1280, 720, mirror)
		p := Pt(123.456, 654.321)
		for i := 0; i < 1000; i++ {
			p = m.FromDevice(m.ToDevice(p))
		}
		if !approxEqual(p.X, 123.456, 1e-9) || !approxEqual(p.Y, 654.321, 1e-9) {
			t.Errorf("mirror=%v: round trip drifted to %v", mirror, p)
		}
	}
}

func TestMapperMirror(t *testing.T) {
	m := NewMapper(100, 100, true)
	got := m.ToDevice(Pt(0, 50))
	if !approxEqual(got[0], 1, 1e-12) {
		t.Errorf("mirrored left edge X = %v, want 1", got[0])
	}
}

func TestResampleClosedInterpolates(t *testing.T) {
	in := []Point{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {-5, 5}}
	samples := 100
	out := ResampleClosed(nil, in, samples)
	if len(out) != samples {
		t.Fatalf("len = %d, want %d", len(out), samples)
	}
	// every control point is hit exactly at t = k/n
	step := samples / len(in)
	for k, p := range in {
		got := out[k*step]
		if !approxEqual(got.X, p.X, 1e-9) || !approxEqual(got.Y, p.Y, 1e-9) {
			t.Errorf("sample %d = %v, want control point %v", k*step, got, p)
		}
	}
}

func TestResampleOpenEndpoints(t *testing.T) {
	in := []Point{{0, 0}, {10, 5}, {20, 7}, {30, 5}, {40, 0}}
	out := ResampleOpen(nil, in, 100)
	if len(out) != 101 {
		t.Fatalf("len = %d, want 101", len(out))
	}
	if out[0] != in[0] {
		t.Errorf("first sample = %v, want %v", out[0], in[0])
	}
	last := out[len(out)-1]
	if !approxEqual(last.X, 40, 1e-9) || !approxEqual(last.Y, 0, 1e-9) {
		t.Errorf("last sample = %v, want (40,0)", last)
	}
	// an open curve over a monotone-x arc stays monotone in x
	for i := 1; i < len(out); i++ {
		if out[i].X < out[i-1].X {
			t.Fatalf("sample %d went backwards: %v after %v", i, out[i], out[i-1])
		}
	}
}

func TestResampleFewPointsCopies(t *testing.T) {
	in := []Point{{1, 2}, {3, 4}}
	if got := ResampleClosed(nil, in, 50); len(got) != 2 {
		t.Errorf("closed: len = %d, want 2", len(got))
	}
	if got := ResampleOpen(nil, in[:1], 50); len(got) != 1 {
		t.Errorf("open: len = %d, want 1", len(got))
	}
}
