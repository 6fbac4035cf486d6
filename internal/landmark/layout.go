package landmark

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

var (
	// ErrMissingGroup is returned when a topology lacks a landmark group the
	// overlay builders depend on
	ErrMissingGroup = errors.New("topology is missing landmark group")
	// ErrIndexOutOfRange is returned when a group references a keypoint the
	// model does not emit
	ErrIndexOutOfRange = errors.New("landmark index out of range")
	// ErrShortGroup is returned when a group is too short to trace a curve
	ErrShortGroup = errors.New("landmark group too short")
)

// Contour is an ordered landmark index sequence tracing an anatomical
// boundary. Closed contours are loops; open contours must never be joined
// end to end.
type Contour struct {
	Name    string
	Indices []int
	Closed  bool
}

// Len returns the number of landmarks in the contour
func (c Contour) Len() int {
	return len(c.Indices)
}

// Layout holds every contour the shape builders consume, resolved once from
// a topology. It is read-only after Resolve returns and safe to share.
type Layout struct {
	Topology string

	LipOuter Contour
	LipInner Contour

	RightEyeUpper Contour
	RightEyeLower Contour
	LeftEyeUpper  Contour
	LeftEyeLower  Contour

	RightCheek Contour
	LeftCheek  Contour

	used map[int]struct{}
}

// Contours returns all contours of the layout
func (l *Layout) Contours() []Contour {
	return []Contour{
		l.LipOuter, l.LipInner,
		l.RightEyeUpper, l.RightEyeLower, l.LeftEyeUpper, l.LeftEyeLower,
		l.RightCheek, l.LeftCheek,
	}
}

// Uses reports whether any contour references the landmark index
func (l *Layout) Uses(index int) bool {
	_, ok := l.used[index]
	return ok
}

// UsedIndices returns the sorted set of landmark indices referenced by any
// contour
func (l *Layout) UsedIndices() []int {
	out := make([]int, 0, len(l.used))
	for idx := range l.used {
		out = append(out, idx)
	}
	slices.Sort(out)
	return out
}

// Resolver turns topologies into layouts and caches the result per topology
// name, so each layout is computed once per process.
type Resolver struct {
	mu    sync.Mutex
	cache map[string]*Layout
}

// NewResolver creates an empty resolver
func NewResolver() *Resolver {
	return &Resolver{cache: make(map[string]*Layout)}
}

// Resolve returns the layout for t, computing it on first use
func (r *Resolver) Resolve(t Topology) (*Layout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.cache[t.Name]; ok {
		return l, nil
	}
	l, err := Resolve(t)
	if err != nil {
		return nil, err
	}
	r.cache[t.Name] = l
	return l, nil
}

// Resolve extracts the overlay contours from t. A failure here is a
// configuration error and is not meant to be retried.
func Resolve(t Topology) (*Layout, error) {
	groups := make(map[string][]int)
	for _, name := range []string{
		GroupLipsUpperOuter, GroupLipsLowerOuter, GroupLipsUpperInner, GroupLipsLowerInner,
		GroupRightEyeUpper, GroupRightEyeLower, GroupLeftEyeUpper, GroupLeftEyeLower,
		GroupRightCheek, GroupLeftCheek,
	} {
		g, err := group(t, name)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s layout: %w", t.Name, err)
		}
		groups[name] = g
	}

	l := &Layout{
		Topology: t.Name,
		LipOuter: Contour{
			Name:    "lip-outer",
			Indices: joinArcs(groups[GroupLipsUpperOuter], groups[GroupLipsLowerOuter]),
			Closed:  true,
		},
		LipInner: Contour{
			Name:    "lip-inner",
			Indices: joinArcs(groups[GroupLipsUpperInner], groups[GroupLipsLowerInner]),
			Closed:  true,
		},
		RightEyeUpper: Contour{
			Name:    "right-eye-upper",
			Indices: eyelid(groups[GroupRightEyeUpper], groups[GroupRightEyeLower]),
		},
		RightEyeLower: Contour{
			Name:    "right-eye-lower",
			Indices: slices.Clone(groups[GroupRightEyeLower]),
		},
		LeftEyeUpper: Contour{
			Name:    "left-eye-upper",
			Indices: eyelid(groups[GroupLeftEyeUpper], groups[GroupLeftEyeLower]),
		},
		LeftEyeLower: Contour{
			Name:    "left-eye-lower",
			Indices: slices.Clone(groups[GroupLeftEyeLower]),
		},
		RightCheek: Contour{
			Name:    "right-cheek",
			Indices: slices.Clone(groups[GroupRightCheek]),
			Closed:  true,
		},
		LeftCheek: Contour{
			Name:    "left-cheek",
			Indices: slices.Clone(groups[GroupLeftCheek]),
			Closed:  true,
		},
		used: make(map[int]struct{}),
	}
	for _, c := range l.Contours() {
		for _, idx := range c.Indices {
			l.used[idx] = struct{}{}
		}
	}
	return l, nil
}

func group(t Topology, name string) ([]int, error) {
	g, ok := t.Groups[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingGroup, name)
	}
	if len(g) < 2 {
		return nil, fmt.Errorf("%w: %s has %d landmarks", ErrShortGroup, name, len(g))
	}
	for _, idx := range g {
		if idx < 0 || idx >= t.Landmarks {
			return nil, fmt.Errorf("%w: %s references %d (model emits %d)", ErrIndexOutOfRange, name, idx, t.Landmarks)
		}
	}
	return g, nil
}

// joinArcs closes a ring from a corner-to-corner upper arc followed by the
// lower arc walked back, dropping the corners the arcs share.
func joinArcs(upper, lower []int) []int {
	first, last := upper[0], upper[len(upper)-1]
	ring := slices.Clone(upper)
	for i := len(lower) - 1; i >= 0; i-- {
		if lower[i] == first || lower[i] == last {
			continue
		}
		ring = append(ring, lower[i])
	}
	return ring
}

// eyelid builds the open upper-lid contour running corner to corner, taking
// the corners from the lower lid arc.
func eyelid(upper, lower []int) []int {
	lid := make([]int, 0, len(upper)+2)
	lid = append(lid, lower[0])
	lid = append(lid, upper...)
	return append(lid, lower[len(lower)-1])
}
