// Package camera reads webcam frames for the pipeline.
package camera

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"

	"github.com/dudu/glamface/internal/pipeline"
)

// emptyReadRetries bounds consecutive empty reads before Next gives up
const emptyReadRetries = 5

// ErrClosed is returned by Next after Close
var ErrClosed = errors.New("camera closed")

// Capture manages webcam capture and implements pipeline.FrameSource.
// Frame buffers are recycled once the pipeline is done with them.
type Capture struct {
	webcam    *gocv.VideoCapture
	deviceID  int
	targetFPS int
	width     int
	height    int
	seq       uint64
	mu        sync.Mutex

	// free holds Mats returned by released frames
	free   []gocv.Mat
	closed bool
}

// NewCapture creates a new camera capture from device with default 720p resolution
func NewCapture(deviceID int, targetFPS int) (*Capture, error) {
	return NewCaptureWithResolution(deviceID, targetFPS, 1280, 720)
}

// NewCaptureWithResolution creates a new camera capture with specified resolution
func NewCaptureWithResolution(deviceID int, targetFPS int, width, height int) (*Capture, error) {
	webcam, err := gocv.OpenVideoCapture(deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to open camera %d: %w", deviceID, err)
	}

	webcam.Set(gocv.VideoCaptureFrameWidth, float64(width))
	webcam.Set(gocv.VideoCaptureFrameHeight, float64(height))
	webcam.Set(gocv.VideoCaptureFPS, float64(targetFPS))

	// Get actual dimensions (camera may not support requested resolution)
	actualWidth := int(webcam.Get(gocv.VideoCaptureFrameWidth))
	actualHeight := int(webcam.Get(gocv.VideoCaptureFrameHeight))

	return &Capture{
		webcam:    webcam,
		deviceID:  deviceID,
		targetFPS: targetFPS,
		width:     actualWidth,
		height:    actualHeight,
	}, nil
}

// Next implements pipeline.FrameSource
func (c *Capture) Next(ctx context.Context) (*pipeline.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}

	mat := c.take()
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			c.free = append(c.free, mat)
			return nil, err
		}
		if c.webcam.Read(&mat) && !mat.Empty() {
			break
		}
		if attempt == emptyReadRetries {
			c.free = append(c.free, mat)
			return nil, fmt.Errorf("failed to read frame from camera %d", c.deviceID)
		}
	}

	c.seq++
	return pipeline.NewFrame(c.seq, mat.Cols(), mat.Rows(), mat, func() { c.put(mat) }), nil
}

// take pops a recycled Mat, caller holds mu
func (c *Capture) take() gocv.Mat {
	if n := len(c.free); n > 0 {
		m := c.free[n-1]
		c.free = c.free[:n-1]
		return m
	}
	return gocv.NewMat()
}

func (c *Capture) put(m gocv.Mat) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		m.Close()
		return
	}
	c.free = append(c.free, m)
}

// Width returns frame width
func (c *Capture) Width() int {
	return c.width
}

// Height returns frame height
func (c *Capture) Height() int {
	return c.height
}

// Close releases the camera. Frames still held are freed when released.
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	for _, m := range c.free {
		m.Close()
	}
	c.free = nil
	err := c.webcam.Close()
	c.webcam = nil
	return err
}
