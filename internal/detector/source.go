package detector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"gocv.io/x/gocv"

	"github.com/dudu/glamface/internal/landmark"
	"github.com/dudu/glamface/internal/logging"
	"github.com/dudu/glamface/internal/pipeline"
)

// Config holds landmark source configuration
type Config struct {
	SCRFDModelPath string
	DetectionSize  int
	ConfThreshold  float32
	NMSThreshold   float32
	Mesh           FaceMeshConfig
	// RedetectEvery runs SCRFD at least every n frames while tracking; in
	// between, the previous landmarks give the face box. Zero detects on
	// every frame.
	RedetectEvery int
	Logger        *slog.Logger
}

// Source finds the landmarks of the most confident face in camera frames.
// Frames must carry a gocv.Mat image.
type Source struct {
	mu      sync.Mutex
	scrfd   *SCRFD
	mesh    *FaceMesh
	config  Config
	logger  *slog.Logger
	tracked *BoundingBox
	since   int
}

// NewSource loads both models. ONNX Runtime must be initialized.
func NewSource(config Config) (*Source, error) {
	scrfd, err := NewSCRFD(config.SCRFDModelPath, config.DetectionSize, config.ConfThreshold, config.NMSThreshold)
	if err != nil {
		return nil, fmt.Errorf("failed to create face detector: %w", err)
	}
	mesh, err := NewFaceMesh(config.Mesh)
	if err != nil {
		scrfd.Close()
		return nil, fmt.Errorf("failed to create face mesh: %w", err)
	}
	return &Source{
		scrfd:  scrfd,
		mesh:   mesh,
		config: config,
		logger: logging.OrNop(config.Logger),
	}, nil
}

// Topology returns the keypoint layout the source emits
func (s *Source) Topology() landmark.Topology {
	return landmark.MediaPipeFaceMesh()
}

// Detect implements pipeline.LandmarkSource
func (s *Source) Detect(ctx context.Context, frame *pipeline.Frame) (*landmark.Face, error) {
	img, ok := frame.Image.(gocv.Mat)
	if !ok {
		if p, isPtr := frame.Image.(*gocv.Mat); isPtr && p != nil {
			img, ok = *p, true
		}
	}
	if !ok || img.Empty() {
		return nil, fmt.Errorf("frame %d carries no image", frame.Seq)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scrfd == nil {
		return nil, errors.New("landmark source closed")
	}

	box, err := s.faceBox(img)
	if err != nil || box == nil {
		s.tracked = nil
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	points, err := s.mesh.Detect(img, *box)
	if err != nil {
		s.tracked = nil
		return nil, err
	}

	next := Bounds(points)
	if next.Width() < 8 || next.Height() < 8 {
		s.tracked = nil
		return nil, nil
	}
	s.tracked = &next
	return landmark.NewFace(points), nil
}

// faceBox returns the box to run the mesh on: the tracked box while it is
// fresh, otherwise the best SCRFD detection. A nil box means no face.
func (s *Source) faceBox(img gocv.Mat) (*BoundingBox, error) {
	if s.tracked != nil && s.since < s.config.RedetectEvery {
		s.since++
		return s.tracked, nil
	}
	s.since = 0

	dets, err := s.scrfd.Detect(img)
	if err != nil {
		return nil, fmt.Errorf("face detection failed: %w", err)
	}
	if len(dets) == 0 {
		return nil, nil
	}
	s.logger.Debug("face located", "score", dets[0].Score, "faces", len(dets))
	return &dets[0].Box, nil
}

// Close releases both models
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if s.scrfd != nil {
		if err := s.scrfd.Close(); err != nil {
			errs = append(errs, err)
		}
		s.scrfd = nil
	}
	if s.mesh != nil {
		if err := s.mesh.Close(); err != nil {
			errs = append(errs, err)
		}
		s.mesh = nil
	}
	if len(errs) > 0 {
		return fmt.Errorf("cleanup errors: %v", errs)
	}
	return nil
}
