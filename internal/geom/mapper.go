package geom

import "github.com/paulmach/orb"

// ToNormalized maps pixel coordinates into the unit square. width and height
// must be positive; the result is undefined otherwise.
func ToNormalized(x, y, width, height float64) (u, v float64) {
	return x / width, y / height
}

// ToDeviceSpace maps unit-square coordinates into [-1,1]x[-1,1] with the
// vertical axis inverted, so a larger pixel row gives a smaller device Y.
func ToDeviceSpace(u, v float64) (x, y float64) {
	return u*2 - 1, 1 - v*2
}

// FromDeviceSpace is the inverse of ToDeviceSpace
func FromDeviceSpace(x, y float64) (u, v float64) {
	return (x + 1) / 2, (1 - y) / 2
}

// Mapper converts between pixel space of one frame and device space.
// Width and Height must be positive.
type Mapper struct {
	Width  float64
	Height float64
	// Mirror flips the horizontal axis for selfie-style previews.
	Mirror bool
}

// NewMapper returns a Mapper for a frame of the given pixel size
func NewMapper(width, height int, mirror bool) Mapper {
	return Mapper{Width: float64(width), Height: float64(height), Mirror: mirror}
}

// ToDevice maps a pixel-space point into device space
func (m Mapper) ToDevice(p Point) orb.Point {
	u, v := ToNormalized(p.X, p.Y, m.Width, m.Height)
	if m.Mirror {
		u = 1 - u
	}
	x, y := ToDeviceSpace(u, v)
	return orb.Point{x, y}
}

// FromDevice maps a device-space point back to pixels
func (m Mapper) FromDevice(p orb.Point) Point {
	u, v := FromDeviceSpace(p[0], p[1])
	if m.Mirror {
		u = 1 - u
	}
	return Point{X: u * m.Width, Y: v * m.Height}
}

// AppendDevice maps every point of src and appends it to dst
func (m Mapper) AppendDevice(dst []orb.Point, src []Point) []orb.Point {
	for _, p := range src {
		dst = append(dst, m.ToDevice(p))
	}
	return dst
}
