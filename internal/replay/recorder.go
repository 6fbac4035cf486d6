package replay

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/dudu/glamface/internal/landmark"
	"github.com/dudu/glamface/internal/pipeline"
)

// Recorder wraps a landmark source and writes every detection it returns.
// The header is written with the first frame since the frame size is not
// known before.
type Recorder struct {
	mu       sync.Mutex
	inner    pipeline.LandmarkSource
	w        *bufio.Writer
	enc      *json.Encoder
	closer   io.Closer
	topology string
	session  uuid.UUID
	started  bool
	frames   int
	// err is the first write failure, recording stops after it
	err error
}

// Create records inner's detections to a new file at path
func Create(path, topology string, inner pipeline.LandmarkSource) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create recording: %w", err)
	}
	r := NewRecorder(f, topology, inner)
	r.closer = f
	return r, nil
}

// NewRecorder records inner's detections to w
func NewRecorder(w io.Writer, topology string, inner pipeline.LandmarkSource) *Recorder {
	bw := bufio.NewWriter(w)
	return &Recorder{
		inner:    inner,
		w:        bw,
		enc:      json.NewEncoder(bw),
		topology: topology,
		session:  uuid.New(),
	}
}

// Session identifies this recording
func (r *Recorder) Session() uuid.UUID {
	return r.session
}

// Frames returns the number of frame records written
func (r *Recorder) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// Detect implements pipeline.LandmarkSource. A failed write does not fail
// the detection; it is reported by Close.
func (r *Recorder) Detect(ctx context.Context, frame *pipeline.Frame) (*landmark.Face, error) {
	face, err := r.inner.Detect(ctx, frame)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil || r.enc == nil {
		return face, nil
	}
	if !r.started {
		h := Header{
			Version:  Version,
			Session:  r.session,
			Topology: r.topology,
			Width:    frame.Width,
			Height:   frame.Height,
		}
		if r.err = r.enc.Encode(h); r.err != nil {
			return face, nil
		}
		r.started = true
	}
	rec, err := NewRecord(frame.Seq, frame.Width, frame.Height, face)
	if err != nil {
		r.err = err
		return face, nil
	}
	if r.err = r.enc.Encode(rec); r.err == nil {
		r.frames++
	}
	return face, nil
}

// Close flushes the recording and closes the wrapped source
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.enc == nil {
		return nil
	}
	r.enc = nil

	var errs []error
	if r.err != nil {
		errs = append(errs, fmt.Errorf("failed to record frame: %w", r.err))
	}
	if err := r.w.Flush(); err != nil {
		errs = append(errs, fmt.Errorf("failed to flush recording: %w", err))
	}
	if r.closer != nil {
		if err := r.closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := r.inner.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
