package pipeline

import (
	"context"
	"sync/atomic"

	"github.com/dudu/glamface/internal/geom"
	"github.com/dudu/glamface/internal/landmark"
	"github.com/dudu/glamface/internal/overlay"
)

// Frame is one video frame handed through a tick. Image holds the source's
// pixel buffer (a gocv.Mat for the camera, nil for replays) and must be
// treated as read-only by every consumer, since a stalled detection may
// still be reading it. The frame is returned to its source once every
// holder has called Done.
type Frame struct {
	Seq    uint64
	Width  int
	Height int
	Image  any

	refs    atomic.Int32
	release func()
}

// NewFrame creates a frame held once by the caller. release, if non-nil,
// runs when the last holder calls Done.
func NewFrame(seq uint64, width, height int, image any, release func()) *Frame {
	f := &Frame{Seq: seq, Width: width, Height: height, Image: image, release: release}
	f.refs.Store(1)
	return f
}

func (f *Frame) retain() {
	f.refs.Add(1)
}

// Done drops one hold on the frame
func (f *Frame) Done() {
	if f.refs.Add(-1) == 0 && f.release != nil {
		f.release()
	}
}

// FrameSource supplies video frames. Next returns io.EOF at the end of a
// finite stream.
type FrameSource interface {
	Next(ctx context.Context) (*Frame, error)
	Close() error
}

// LandmarkSource detects the landmarks of at most one face in a frame. A
// frame without a face yields (nil, nil). Detect should return early when
// ctx is done but is not required to.
type LandmarkSource interface {
	Detect(ctx context.Context, frame *Frame) (*landmark.Face, error)
	Close() error
}

// RenderInput is everything a renderer needs to paint one tick
type RenderInput struct {
	Frame    *Frame
	Mapper   geom.Mapper
	Category overlay.Category
	Views    []overlay.View
	// Timing holds the stages of this tick completed before rendering
	Timing Timing
	Stats  Stats
}

// Renderer paints the overlay for one tick
type Renderer interface {
	Render(in RenderInput) error
	Close() error
}
