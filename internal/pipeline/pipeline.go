// Package pipeline drives the per-frame overlay cycle: acquire a frame,
// detect landmarks, smooth, build geometry, composite and render.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/dudu/glamface/internal/geom"
	"github.com/dudu/glamface/internal/landmark"
	"github.com/dudu/glamface/internal/logging"
	"github.com/dudu/glamface/internal/overlay"
	"github.com/dudu/glamface/internal/shape"
)

// ErrClosed is returned by Tick after Close
var ErrClosed = errors.New("pipeline closed")

// Config holds driver configuration
type Config struct {
	Topology       landmark.Topology
	Resolver       *landmark.Resolver
	Tuning         shape.Tuning
	FeatherOpacity []float64
	Alpha          float64
	// DetectTimeout bounds how long a tick waits for the landmark source
	DetectTimeout time.Duration
	// CloseTimeout bounds how long Close waits for a stalled detection
	CloseTimeout time.Duration
	// FPS paces Run; zero or less runs unpaced
	FPS      float64
	Mirror   bool
	Category overlay.Category
	Style    overlay.Style
	Backend  overlay.Backend
	Logger   *slog.Logger
}

// Timing holds performance timing information
type Timing struct {
	Detect time.Duration
	Smooth time.Duration
	Build  time.Duration
	Render time.Duration
	Total  time.Duration
}

// Stats counts tick outcomes since the driver started
type Stats struct {
	Ticks      uint64
	Detections uint64
	Misses     uint64
	Timeouts   uint64
	// Skipped counts ticks that issued no detection because an earlier
	// one was still running
	Skipped uint64
	// Discarded counts late detection results thrown away
	Discarded uint64
}

type detectResult struct {
	face *landmark.Face
	err  error
	seq  uint64
}

// detection is a landmark request that outlived its tick
type detection struct {
	ch     chan detectResult
	cancel context.CancelFunc
	seq    uint64
}

type categoryChange struct {
	category overlay.Category
	style    overlay.Style
}

// Driver runs the overlay cycle. Tick and Run must be called from a single
// goroutine; SetCategory and Restart may be called from anywhere and take
// effect at the next tick.
type Driver struct {
	config     Config
	frames     FrameSource
	detector   LandmarkSource
	renderer   Renderer
	layout     *landmark.Layout
	smoother   *landmark.Smoother
	compositor *overlay.Compositor
	logger     *slog.Logger

	stalled  *detection
	smoothed *landmark.Face

	mu             sync.Mutex
	pendingChange  *categoryChange
	pendingRestart bool

	lastTiming Timing
	stats      Stats
	closed     bool
}

// New creates a driver owning frames, detector and renderer. They are closed
// with the driver, including when New fails.
func New(config Config, frames FrameSource, detector LandmarkSource, renderer Renderer) (*Driver, error) {
	d := &Driver{
		config:   config,
		frames:   frames,
		detector: detector,
		renderer: renderer,
		logger:   logging.OrNop(config.Logger),
		smoothed: &landmark.Face{},
	}
	if err := d.init(); err != nil {
		d.closeCollaborators()
		return nil, err
	}
	return d, nil
}

func (d *Driver) init() error {
	if d.config.DetectTimeout <= 0 {
		return fmt.Errorf("invalid detection timeout %v", d.config.DetectTimeout)
	}
	if d.config.CloseTimeout <= 0 {
		d.config.CloseTimeout = 2 * time.Second
	}
	resolver := d.config.Resolver
	if resolver == nil {
		resolver = landmark.NewResolver()
	}

	layout, err := resolver.Resolve(d.config.Topology)
	if err != nil {
		return fmt.Errorf("failed to resolve contours: %w", err)
	}
	d.layout = layout

	smoother, err := landmark.NewSmoother(layout.UsedIndices(), d.config.Alpha)
	if err != nil {
		return fmt.Errorf("failed to create smoother: %w", err)
	}
	d.smoother = smoother

	comp, err := overlay.New(overlay.Config{
		Layout:         layout,
		Tuning:         d.config.Tuning,
		FeatherOpacity: d.config.FeatherOpacity,
		Backend:        d.config.Backend,
		Logger:         d.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create compositor: %w", err)
	}
	d.compositor = comp

	if err := comp.Activate(d.config.Category, d.config.Style); err != nil {
		return fmt.Errorf("failed to activate %s: %w", d.config.Category, err)
	}
	return nil
}

// SetCategory switches the cosmetic category at the next tick. None stops
// detection and releases all slots.
func (d *Driver) SetCategory(c overlay.Category, style overlay.Style) {
	d.mu.Lock()
	d.pendingChange = &categoryChange{category: c, style: style}
	d.mu.Unlock()
}

// Restart discards all smoothing state at the next tick, for a new subject
// or camera session
func (d *Driver) Restart() {
	d.mu.Lock()
	d.pendingRestart = true
	d.mu.Unlock()
}

// Category returns the active category
func (d *Driver) Category() overlay.Category {
	return d.compositor.Category()
}

// Views returns the current slot views
func (d *Driver) Views() []overlay.View {
	return d.compositor.Views()
}

// LastTiming returns timing from the last Tick
func (d *Driver) LastTiming() Timing {
	return d.lastTiming
}

// Stats returns tick counters
func (d *Driver) Stats() Stats {
	return d.stats
}

func (d *Driver) applyPending() error {
	d.mu.Lock()
	change := d.pendingChange
	restart := d.pendingRestart
	d.pendingChange = nil
	d.pendingRestart = false
	d.mu.Unlock()

	if restart {
		s, err := landmark.NewSmoother(d.layout.UsedIndices(), d.smoother.Alpha())
		if err != nil {
			return err
		}
		d.smoother = s
		d.logger.Info("smoothing restarted")
	}
	if change != nil {
		if err := d.compositor.Activate(change.category, change.style); err != nil {
			return fmt.Errorf("failed to switch to %s: %w", change.category, err)
		}
	}
	return nil
}

// Tick runs one full cycle. A missed or stalled detection is not an error
// and yields a frame with every slot hidden. Tick returns io.EOF when the
// frame source is exhausted.
func (d *Driver) Tick(ctx context.Context) error {
	if d.closed {
		return ErrClosed
	}
	totalStart := time.Now()
	var timing Timing

	if err := d.applyPending(); err != nil {
		return err
	}

	frame, err := d.frames.Next(ctx)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		return fmt.Errorf("failed to read frame: %w", err)
	}
	defer frame.Done()
	d.stats.Ticks++

	var face *landmark.Face
	if d.compositor.Category() != overlay.None {
		detectStart := time.Now()
		face = d.detect(ctx, frame)
		timing.Detect = time.Since(detectStart)
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	if face != nil {
		smoothStart := time.Now()
		d.smoothed = d.smoother.Apply(face, d.smoothed)
		face = d.smoothed
		timing.Smooth = time.Since(smoothStart)
	}

	buildStart := time.Now()
	mapper := geom.NewMapper(frame.Width, frame.Height, d.config.Mirror)
	d.compositor.OnFrame(face, mapper)
	timing.Build = time.Since(buildStart)

	if d.renderer != nil {
		renderStart := time.Now()
		err := d.renderer.Render(RenderInput{
			Frame:    frame,
			Mapper:   mapper,
			Category: d.compositor.Category(),
			Views:    d.compositor.Views(),
			Timing:   timing,
			Stats:    d.stats,
		})
		timing.Render = time.Since(renderStart)
		if err != nil {
			return fmt.Errorf("failed to render frame %d: %w", frame.Seq, err)
		}
	}

	timing.Total = time.Since(totalStart)
	d.lastTiming = timing
	return nil
}

// detect returns the face found in frame, or nil for a miss, a failure or
// a timeout. At most one detection runs at a time: while a timed-out request
// is still running, no new one is issued.
func (d *Driver) detect(ctx context.Context, frame *Frame) *landmark.Face {
	if d.stalled != nil {
		select {
		case r := <-d.stalled.ch:
			d.stalled.cancel()
			d.stats.Discarded++
			d.logger.Debug("late detection discarded", "frame", r.seq, "current", frame.Seq)
			d.stalled = nil
		default:
			d.stats.Skipped++
			return nil
		}
	}

	dctx, cancel := context.WithTimeout(ctx, d.config.DetectTimeout)
	ch := make(chan detectResult, 1)
	det := d.detector
	frame.retain()
	go func() {
		defer frame.Done()
		face, err := det.Detect(dctx, frame)
		ch <- detectResult{face: face, err: err, seq: frame.Seq}
	}()
	d.stats.Detections++

	var r detectResult
	select {
	case r = <-ch:
	case <-dctx.Done():
		select {
		case r = <-ch:
		default:
			d.stalled = &detection{ch: ch, cancel: cancel, seq: frame.Seq}
			d.stats.Timeouts++
			d.stats.Misses++
			if ctx.Err() == nil {
				d.logger.Warn("landmark detection timed out", "frame", frame.Seq, "timeout", d.config.DetectTimeout)
			}
			return nil
		}
	}
	cancel()

	if r.err != nil {
		d.stats.Misses++
		d.logger.Debug("landmark detection failed", "frame", r.seq, "error", r.err)
		return nil
	}
	if r.face.Len() == 0 {
		d.stats.Misses++
		return nil
	}
	return r.face
}

// Run ticks until ctx is done or the frame source ends, pacing ticks at the
// configured rate. Ticks that fall behind are dropped, never queued.
func (d *Driver) Run(ctx context.Context) error {
	var tick <-chan time.Time
	if d.config.FPS > 0 {
		ticker := time.NewTicker(time.Duration(float64(time.Second) / d.config.FPS))
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		if err := d.Tick(ctx); err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		if tick == nil {
			if ctx.Err() != nil {
				return nil
			}
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-tick:
		}
	}
}

// Close releases the slots and closes every collaborator. A detection still
// running is given CloseTimeout to return before the landmark source is
// closed from under it.
func (d *Driver) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true

	var errs []error
	if d.compositor != nil {
		if err := d.compositor.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if d.stalled != nil {
		d.stalled.cancel()
		select {
		case <-d.stalled.ch:
		case <-time.After(d.config.CloseTimeout):
			errs = append(errs, fmt.Errorf("detection for frame %d still running after %v", d.stalled.seq, d.config.CloseTimeout))
			d.detector = nil
		}
		d.stalled = nil
	}
	errs = append(errs, d.closeCollaborators()...)

	if len(errs) > 0 {
		return fmt.Errorf("cleanup errors: %v", errs)
	}
	return nil
}

func (d *Driver) closeCollaborators() []error {
	var errs []error
	if d.renderer != nil {
		if err := d.renderer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if d.detector != nil {
		if err := d.detector.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if d.frames != nil {
		if err := d.frames.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
