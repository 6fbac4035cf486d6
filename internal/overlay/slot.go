package overlay

import (
	"fmt"
	"sync/atomic"

	"github.com/dudu/glamface/internal/shape"
)

// SlotID names one render slot: a cosmetic category sub-part
type SlotID string

const (
	SlotLip           SlotID = "lip"
	SlotLipFeather1   SlotID = "lip-feather-1"
	SlotLipFeather2   SlotID = "lip-feather-2"
	SlotRightEyeliner SlotID = "right-eyeliner"
	SlotLeftEyeliner  SlotID = "left-eyeliner"
	SlotRightBlush    SlotID = "right-blush"
	SlotLeftBlush     SlotID = "left-blush"
)

// featherSlot returns the slot of lip glow ring k (1-based)
func featherSlot(k int) SlotID {
	return SlotID(fmt.Sprintf("lip-feather-%d", k))
}

// SlotsFor returns the slots a category draws, inner layers first
func SlotsFor(c Category, featherRings int) []SlotID {
	switch c {
	case Lipstick:
		ids := make([]SlotID, 0, featherRings+1)
		for k := featherRings; k >= 1; k-- {
			ids = append(ids, featherSlot(k))
		}
		return append(ids, SlotLip)
	case Eyeliner:
		return []SlotID{SlotRightEyeliner, SlotLeftEyeliner}
	case Blush:
		return []SlotID{SlotRightBlush, SlotLeftBlush}
	default:
		return nil
	}
}

// SlotState is the lifecycle state of a render slot
type SlotState int

const (
	Uninitialized SlotState = iota
	Visible
	Hidden
	Destroyed
)

func (s SlotState) String() string {
	switch s {
	case Visible:
		return "visible"
	case Hidden:
		return "hidden"
	case Destroyed:
		return "destroyed"
	default:
		return "uninitialized"
	}
}

// View is the immutable per-frame state of a slot as the renderer sees it.
// Geometry is nil whenever Visible is false.
type View struct {
	Slot     SlotID
	Category Category
	Style    Style
	Visible  bool
	Geometry *shape.Geometry
	// Frame is the compositor frame that produced this view
	Frame uint64
}

// Slot is a persistent render handle. Geometry is built into one of two
// buffers while the other is published; a published View stays valid until
// the slot has been updated twice more.
//
// Only the owning compositor writes a slot. View may be called from any
// goroutine.
type Slot struct {
	id       SlotID
	category Category
	style    Style

	buffers [2]shape.Geometry
	back    int
	state   SlotState

	view atomic.Pointer[View]
}

func newSlot(id SlotID, c Category, style Style) *Slot {
	s := &Slot{id: id, category: c, style: style}
	s.view.Store(&View{Slot: id, Category: c, Style: style})
	return s
}

// ID returns the slot name
func (s *Slot) ID() SlotID {
	return s.id
}

// State returns the lifecycle state
func (s *Slot) State() SlotState {
	return s.state
}

// View returns the last published view
func (s *Slot) View() View {
	return *s.view.Load()
}

// backBuffer returns the geometry buffer the next frame is built into
func (s *Slot) backBuffer() *shape.Geometry {
	return &s.buffers[s.back]
}

// publish makes the back buffer visible and flips buffers
func (s *Slot) publish(frame uint64) {
	g := &s.buffers[s.back]
	s.back ^= 1
	s.state = Visible
	s.view.Store(&View{
		Slot:     s.id,
		Category: s.category,
		Style:    s.style,
		Visible:  true,
		Geometry: g,
		Frame:    frame,
	})
}

// hide publishes an invisible view without geometry
func (s *Slot) hide(frame uint64) {
	s.state = Hidden
	s.view.Store(&View{
		Slot:     s.id,
		Category: s.category,
		Style:    s.style,
		Frame:    frame,
	})
}

// destroy hides the slot for good and drops its buffers
func (s *Slot) destroy(frame uint64) {
	s.hide(frame)
	s.state = Destroyed
	s.buffers = [2]shape.Geometry{}
}
