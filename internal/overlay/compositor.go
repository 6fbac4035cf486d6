package overlay

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dudu/glamface/internal/geom"
	"github.com/dudu/glamface/internal/landmark"
	"github.com/dudu/glamface/internal/logging"
	"github.com/dudu/glamface/internal/shape"
)

// Backend holds the renderer-side resources of slots. Attach is called when
// a slot is created and Detach when it is destroyed.
type Backend interface {
	Attach(id SlotID, style Style) error
	Detach(id SlotID) error
}

type nopBackend struct{}

func (nopBackend) Attach(SlotID, Style) error { return nil }
func (nopBackend) Detach(SlotID) error        { return nil }

// Config configures a Compositor
type Config struct {
	Layout *landmark.Layout
	Tuning shape.Tuning
	// FeatherOpacity scales the style opacity of each lip glow ring
	FeatherOpacity []float64
	Backend        Backend
	Logger         *slog.Logger
}

// FrameResult summarizes one OnFrame call
type FrameResult struct {
	Built  int
	Hidden int
}

// Compositor owns the render slots of the active cosmetic category. It is
// driven from a single goroutine; Views may be read concurrently.
type Compositor struct {
	layout         *landmark.Layout
	builder        *shape.Builder
	featherOpacity []float64
	backend        Backend
	logger         *slog.Logger

	category Category
	style    Style
	session  uuid.UUID
	slots    []*Slot
	frame    uint64
}

// New creates an inactive compositor
func New(cfg Config) (*Compositor, error) {
	if cfg.Layout == nil {
		return nil, errors.New("compositor requires a contour layout")
	}
	if len(cfg.FeatherOpacity) < len(cfg.Tuning.FeatherWidths) {
		return nil, fmt.Errorf("want %d feather opacities, got %d", len(cfg.Tuning.FeatherWidths), len(cfg.FeatherOpacity))
	}
	backend := cfg.Backend
	if backend == nil {
		backend = nopBackend{}
	}
	return &Compositor{
		layout:         cfg.Layout,
		builder:        shape.NewBuilder(cfg.Tuning),
		featherOpacity: cfg.FeatherOpacity,
		backend:        backend,
		logger:         logging.OrNop(cfg.Logger),
	}, nil
}

// Category returns the active category
func (c *Compositor) Category() Category {
	return c.category
}

// Session returns the id of the current activation, or uuid.Nil when inactive
func (c *Compositor) Session() uuid.UUID {
	return c.session
}

// Activate switches to category c drawn with style. Slots of the previous
// category are destroyed first. Activating None deactivates.
func (c *Compositor) Activate(cat Category, style Style) error {
	if err := c.Deactivate(); err != nil {
		return err
	}
	if cat == None {
		return nil
	}

	feather := 0
	if cat == Lipstick {
		feather = len(c.builder.Tuning().FeatherWidths)
	}
	ids := SlotsFor(cat, feather)
	slots := make([]*Slot, 0, len(ids))
	for _, id := range ids {
		s := newSlot(id, cat, c.slotStyle(id, style))
		if err := c.backend.Attach(id, s.style); err != nil {
			for _, prev := range slots {
				c.backend.Detach(prev.id)
				prev.destroy(c.frame)
			}
			return fmt.Errorf("failed to attach slot %s: %w", id, err)
		}
		slots = append(slots, s)
	}

	c.category = cat
	c.style = style
	c.slots = slots
	c.session = uuid.New()
	c.logger.Info("overlay activated",
		"session", c.session,
		"category", cat,
		"slots", len(slots),
	)
	return nil
}

func (c *Compositor) slotStyle(id SlotID, style Style) Style {
	for k := range c.featherOpacity {
		if id == featherSlot(k+1) {
			return style.Scale(c.featherOpacity[k])
		}
	}
	return style
}

// OnFrame rebuilds every active slot from face, or hides them all when face
// is nil. A slot whose region lacks enough landmarks is hidden on its own.
func (c *Compositor) OnFrame(face *landmark.Face, m geom.Mapper) FrameResult {
	c.frame++
	var res FrameResult
	for _, s := range c.slots {
		if face == nil {
			s.hide(c.frame)
			res.Hidden++
			continue
		}
		if err := c.build(s.id, face, m, s.backBuffer()); err != nil {
			c.logger.Debug("slot hidden", "slot", s.id, "error", err)
			s.hide(c.frame)
			res.Hidden++
			continue
		}
		s.publish(c.frame)
		res.Built++
	}
	return res
}

func (c *Compositor) build(id SlotID, face *landmark.Face, m geom.Mapper, dst *shape.Geometry) error {
	l := c.layout
	switch id {
	case SlotLip:
		return c.builder.Lip(face, l, m, dst)
	case SlotRightEyeliner:
		return c.builder.Eyeliner(face, l.RightEyeUpper, m, dst)
	case SlotLeftEyeliner:
		return c.builder.Eyeliner(face, l.LeftEyeUpper, m, dst)
	case SlotRightBlush:
		return c.builder.Blush(face, l.RightCheek, m, dst)
	case SlotLeftBlush:
		return c.builder.Blush(face, l.LeftCheek, m, dst)
	}
	for k := 1; k <= len(c.builder.Tuning().FeatherWidths); k++ {
		if id == featherSlot(k) {
			return c.builder.LipFeather(face, l, m, k, dst)
		}
	}
	return fmt.Errorf("no builder for slot %s", id)
}

// Views returns the published view of every active slot
func (c *Compositor) Views() []View {
	views := make([]View, len(c.slots))
	for i, s := range c.slots {
		views[i] = s.View()
	}
	return views
}

// Slot returns the active slot with the given id
func (c *Compositor) Slot(id SlotID) (*Slot, bool) {
	for _, s := range c.slots {
		if s.id == id {
			return s, true
		}
	}
	return nil, false
}

// Deactivate destroys all slots and releases their renderer resources. It
// is a no-op when inactive.
func (c *Compositor) Deactivate() error {
	if len(c.slots) == 0 && c.category == None {
		return nil
	}
	var errs []error
	for _, s := range c.slots {
		s.destroy(c.frame)
		if err := c.backend.Detach(s.id); err != nil {
			errs = append(errs, fmt.Errorf("failed to detach slot %s: %w", s.id, err))
		}
	}
	c.logger.Info("overlay deactivated", "session", c.session, "category", c.category)
	c.slots = nil
	c.category = None
	c.session = uuid.Nil
	return errors.Join(errs...)
}

// Close deactivates the compositor
func (c *Compositor) Close() error {
	return c.Deactivate()
}
