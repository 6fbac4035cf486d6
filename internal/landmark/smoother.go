package landmark

import (
	"fmt"

	"github.com/dudu/glamface/internal/geom"
)

// DefaultAlpha is the EMA weight given to each new observation
const DefaultAlpha = 0.45

// Smoother damps frame-to-frame detector jitter with a per-landmark
// exponential moving average. Only indices in the used set keep state; all
// others pass through unchanged. A Smoother belongs to one tracked subject:
// start a new one rather than clearing it when the subject changes.
//
// Smoother is not safe for concurrent use.
type Smoother struct {
	alpha float64
	used  map[int]struct{}
	state map[int]geom.Point
}

// NewSmoother creates a smoother for the given used indices. alpha must lie
// in (0,1).
func NewSmoother(used []int, alpha float64) (*Smoother, error) {
	if !(alpha > 0 && alpha < 1) {
		return nil, fmt.Errorf("invalid smoothing alpha %v: must be in (0,1)", alpha)
	}
	s := &Smoother{
		alpha: alpha,
		used:  make(map[int]struct{}, len(used)),
		state: make(map[int]geom.Point, len(used)),
	}
	for _, idx := range used {
		s.used[idx] = struct{}{}
	}
	return s, nil
}

// Alpha returns the EMA weight
func (s *Smoother) Alpha() float64 {
	return s.alpha
}

// Tracked returns how many landmarks currently hold smoothing state
func (s *Smoother) Tracked() int {
	return len(s.state)
}

// Smooth returns the smoothed position of one landmark observation
func (s *Smoother) Smooth(index int, x, y float64) (float64, float64) {
	if _, ok := s.used[index]; !ok {
		return x, y
	}
	prev, ok := s.state[index]
	if !ok {
		s.state[index] = geom.Point{X: x, Y: y}
		return x, y
	}
	next := geom.Point{
		X: prev.X*(1-s.alpha) + x*s.alpha,
		Y: prev.Y*(1-s.alpha) + y*s.alpha,
	}
	s.state[index] = next
	return next.X, next.Y
}

// Apply smooths every landmark of face into dst, reusing its storage, and
// returns dst. A nil dst allocates a new face.
func (s *Smoother) Apply(face, dst *Face) *Face {
	if dst == nil {
		dst = &Face{}
	}
	dst.Landmarks = dst.Landmarks[:0]
	if face == nil {
		return dst
	}
	for _, l := range face.Landmarks {
		x, y := s.Smooth(l.Index, l.X, l.Y)
		dst.Landmarks = append(dst.Landmarks, Landmark{Index: l.Index, X: x, Y: y})
	}
	return dst
}
