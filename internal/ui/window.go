// Package ui is the live preview: a gocv window showing the camera frame
// with the overlay painted on top.
package ui

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"time"

	"gocv.io/x/gocv"

	"github.com/dudu/glamface/internal/overlay"
	"github.com/dudu/glamface/internal/pipeline"
)

// Window manages the preview display. It implements pipeline.Renderer and
// overlay.Backend and must be used from the main goroutine.
type Window struct {
	window     *gocv.Window
	name       string
	painter    *Painter
	canvas     gocv.Mat
	onKey      func(key int)
	lastFrame  time.Time
	frameCount int
	fps        float64
}

// NewWindow creates a new preview window
func NewWindow(name string, width, height int) *Window {
	window := gocv.NewWindow(name)
	// Force window to appear on macOS
	window.ResizeWindow(width, height)
	window.MoveWindow(100, 100)
	return &Window{
		window:    window,
		name:      name,
		painter:   NewPainter(),
		canvas:    gocv.NewMat(),
		lastFrame: time.Now(),
	}
}

// OnKey registers the handler for key presses polled after each frame
func (w *Window) OnKey(fn func(key int)) {
	w.onKey = fn
}

// Attach implements overlay.Backend
func (w *Window) Attach(id overlay.SlotID, style overlay.Style) error {
	return w.painter.Attach(id, style)
}

// Detach implements overlay.Backend
func (w *Window) Detach(id overlay.SlotID) error {
	return w.painter.Detach(id)
}

// Render implements pipeline.Renderer
func (w *Window) Render(in pipeline.RenderInput) error {
	img, ok := in.Frame.Image.(gocv.Mat)
	if !ok {
		return errors.New("preview needs gocv frames")
	}
	// the frame may still be read by a stalled detection, paint on a copy
	img.CopyTo(&w.canvas)

	m := in.Mapper
	if m.Mirror {
		gocv.Flip(w.canvas, &w.canvas, 1)
		// device space is already mirrored, map straight onto the flipped canvas
		m.Mirror = false
	}
	for _, v := range in.Views {
		w.painter.Paint(&w.canvas, m, v)
	}

	w.tick()
	green := color.RGBA{R: 0, G: 255, B: 0, A: 255}
	gocv.PutText(&w.canvas, fmt.Sprintf("FPS: %.1f", w.fps), image.Pt(10, 30),
		gocv.FontHersheyPlain, 2, green, 2)
	gocv.PutText(&w.canvas,
		fmt.Sprintf("%s  detect %.1fms  build %.1fms", in.Category,
			ms(in.Timing.Detect), ms(in.Timing.Build)),
		image.Pt(10, 60), gocv.FontHersheyPlain, 1.5, green, 1)

	w.window.IMShow(w.canvas)
	if key := w.window.WaitKey(1); key >= 0 && w.onKey != nil {
		w.onKey(key & 0xff)
	}
	return nil
}

// tick updates the FPS counter
func (w *Window) tick() {
	w.frameCount++
	now := time.Now()
	if elapsed := now.Sub(w.lastFrame); elapsed >= time.Second {
		w.fps = float64(w.frameCount) / elapsed.Seconds()
		w.frameCount = 0
		w.lastFrame = now
	}
}

// FPS returns current frames per second
func (w *Window) FPS() float64 {
	return w.fps
}

// Close closes the window
func (w *Window) Close() error {
	w.painter.Close()
	w.canvas.Close()
	if w.window != nil {
		err := w.window.Close()
		w.window = nil
		return err
	}
	return nil
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
