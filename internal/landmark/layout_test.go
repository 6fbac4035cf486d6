package landmark

import (
	"errors"
	"slices"
	"testing"
)

func TestResolveMediaPipe(t *testing.T) {
	l, err := Resolve(MediaPipeFaceMesh())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	tests := []struct {
		c      Contour
		n      int
		closed bool
		first  int
		last   int
	}{
		{l.LipOuter, 20, true, 61, 146},
		{l.LipInner, 20, true, 78, 95},
		{l.RightEyeUpper, 9, false, 33, 133},
		{l.LeftEyeUpper, 9, false, 263, 362},
		{l.RightEyeLower, 9, false, 33, 133},
		{l.RightCheek, 7, true, 205, 187},
		{l.LeftCheek, 7, true, 330, 266},
	}
	for _, tt := range tests {
		t.Run(tt.c.Name, func(t *testing.T) {
			if tt.c.Len() != tt.n {
				t.Errorf("len = %d, want %d", tt.c.Len(), tt.n)
			}
			if tt.c.Closed != tt.closed {
				t.Errorf("closed = %v, want %v", tt.c.Closed, tt.closed)
			}
			if tt.c.Indices[0] != tt.first || tt.c.Indices[tt.c.Len()-1] != tt.last {
				t.Errorf("ends = %d..%d, want %d..%d",
					tt.c.Indices[0], tt.c.Indices[tt.c.Len()-1], tt.first, tt.last)
			}
		})
	}
}

func TestResolveRingHasNoDuplicates(t *testing.T) {
	l, err := Resolve(MediaPipeFaceMesh())
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range l.Contours() {
		seen := make(map[int]bool)
		for _, idx := range c.Indices {
			if seen[idx] {
				t.Errorf("%s repeats index %d", c.Name, idx)
			}
			seen[idx] = true
		}
	}
}

func TestLayoutUsedIndices(t *testing.T) {
	l, err := Resolve(MediaPipeFaceMesh())
	if err != nil {
		t.Fatal(err)
	}
	used := l.UsedIndices()
	if !slices.IsSorted(used) {
		t.Error("UsedIndices not sorted")
	}
	// 20+20 lip, 9+9 per eye minus shared corners (2 each), 7+7 cheeks
	if want := 20 + 20 + 16 + 16 + 14; len(used) != want {
		t.Errorf("len(UsedIndices) = %d, want %d", len(used), want)
	}
	for _, idx := range []int{61, 308, 133, 263, 205, 266} {
		if !l.Uses(idx) {
			t.Errorf("Uses(%d) = false", idx)
		}
	}
	// silhouette is not consumed by any overlay
	if l.Uses(10) {
		t.Error("Uses(10) = true")
	}
}

func TestResolveErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Topology)
		want   error
	}{
		{
			name:   "missing group",
			mutate: func(t *Topology) { delete(t.Groups, GroupLeftCheek) },
			want:   ErrMissingGroup,
		},
		{
			name:   "index beyond model output",
			mutate: func(t *Topology) { t.Landmarks = 106 },
			want:   ErrIndexOutOfRange,
		},
		{
			name:   "negative index",
			mutate: func(t *Topology) { t.Groups[GroupRightCheek] = []int{205, -1, 101} },
			want:   ErrIndexOutOfRange,
		},
		{
			name:   "short group",
			mutate: func(t *Topology) { t.Groups[GroupLipsLowerInner] = []int{78} },
			want:   ErrShortGroup,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			top := MediaPipeFaceMesh()
			tt.mutate(&top)
			_, err := Resolve(top)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestResolverCaches(t *testing.T) {
	r := NewResolver()
	a, err := r.Resolve(MediaPipeFaceMesh())
	if err != nil {
		t.Fatal(err)
	}
	b, err := r.Resolve(MediaPipeFaceMesh())
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("second Resolve returned a different layout")
	}

	bad := MediaPipeFaceMesh()
	bad.Name = "broken"
	delete(bad.Groups, GroupLipsUpperOuter)
	if _, err := r.Resolve(bad); err == nil {
		t.Error("expected error for broken topology")
	}
	if _, ok := r.cache["broken"]; ok {
		t.Error("failed layout must not be cached")
	}
}
