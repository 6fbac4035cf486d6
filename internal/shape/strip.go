package shape

import "github.com/paulmach/orb"

// BuildStrip triangulates the open band between outer and inner into dst.
// Each segment i becomes the quad (o_i, i_i, o_i+1, i_i+1) split into two
// triangles, giving 2*(n-1) triangles for n point pairs. The last pair is
// never joined back to the first. Extra points on the longer side are dropped.
func BuildStrip(dst *Ribbon, outer, inner []orb.Point) {
	n := min(len(outer), len(inner))
	dst.Outer = append(dst.Outer[:0], outer[:n]...)
	dst.Inner = append(dst.Inner[:0], inner[:n]...)
	dst.Triangles = dst.Triangles[:0]

	for i := 0; i+1 < n; i++ {
		o0, o1 := i, i+1
		i0, i1 := n+i, n+i+1
		dst.Triangles = append(dst.Triangles,
			Triangle{o0, i0, o1},
			Triangle{o1, i0, i1},
		)
	}
}

// BuildRing triangulates the closed band between two rings of equal length
// into dst, wrapping the last pair back to the first: 2*n triangles for n
// pairs. Repeated closing points must be stripped by the caller.
func BuildRing(dst *Ribbon, outer, inner []orb.Point) {
	BuildStrip(dst, outer, inner)
	n := min(len(outer), len(inner))
	if n < 2 {
		return
	}
	o0, o1 := n-1, 0
	i0, i1 := 2*n-1, n
	dst.Triangles = append(dst.Triangles,
		Triangle{o0, i0, o1},
		Triangle{o1, i0, i1},
	)
}
