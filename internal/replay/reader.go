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

	"github.com/dudu/glamface/internal/landmark"
	"github.com/dudu/glamface/internal/pipeline"
)

// maxLine bounds one JSON line when counting frames
const maxLine = 4 << 20

// ErrClosed is returned after Close
var ErrClosed = errors.New("recording closed")

// Reader plays a recording back. It is both the pipeline's frame source
// and its landmark source: each frame carries its Record and Detect hands
// the recorded face back.
type Reader struct {
	mu     sync.Mutex
	header Header
	dec    *json.Decoder
	closer io.Closer
	frames uint64
	closed bool
}

// Open opens the recording at path
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open recording: %w", err)
	}
	r, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	r.closer = f
	return r, nil
}

// NewReader reads and validates the header from src
func NewReader(src io.Reader) (*Reader, error) {
	dec := json.NewDecoder(bufio.NewReader(src))
	var h Header
	if err := dec.Decode(&h); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty recording", ErrHeader)
		}
		return nil, fmt.Errorf("%w: %v", ErrHeader, err)
	}
	if err := h.validate(); err != nil {
		return nil, err
	}
	return &Reader{header: h, dec: dec}, nil
}

// Header returns the recording header
func (r *Reader) Header() Header {
	return r.header
}

// Topology returns the landmark topology the recording was made with
func (r *Reader) Topology() (landmark.Topology, error) {
	if r.header.Topology != landmark.MediaPipeFaceMeshName {
		return landmark.Topology{}, fmt.Errorf("%w: unknown topology %q", ErrHeader, r.header.Topology)
	}
	return landmark.MediaPipeFaceMesh(), nil
}

// Next implements pipeline.FrameSource. It returns io.EOF after the last
// record.
func (r *Reader) Next(ctx context.Context) (*pipeline.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}

	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: frame %d: %v", ErrRecord, r.frames+1, err)
	}
	r.frames++
	if rec.Width <= 0 || rec.Height <= 0 {
		rec.Width, rec.Height = r.header.Width, r.header.Height
	}
	if rec.Seq == 0 {
		rec.Seq = r.frames
	}
	return pipeline.NewFrame(rec.Seq, rec.Width, rec.Height, &rec, nil), nil
}

// Detect implements pipeline.LandmarkSource for frames produced by Next
func (r *Reader) Detect(_ context.Context, frame *pipeline.Frame) (*landmark.Face, error) {
	rec, ok := frame.Image.(*Record)
	if !ok {
		return nil, fmt.Errorf("frame %d was not read from a recording", frame.Seq)
	}
	return rec.Face(), nil
}

// Frames returns the number of records read so far
func (r *Reader) Frames() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// Close releases the underlying file. It is safe to call more than once,
// which the pipeline does since the reader fills two roles.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

// CountFrames returns the number of frame records in the recording at path
func CountFrames(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open recording: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64<<10), maxLine)
	lines := 0
	for sc.Scan() {
		if len(sc.Bytes()) > 0 {
			lines++
		}
	}
	if err := sc.Err(); err != nil {
		return 0, fmt.Errorf("failed to scan recording: %w", err)
	}
	// header
	return max(lines-1, 0), nil
}
