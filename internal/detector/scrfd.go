package detector

import (
	"fmt"
	"image"
	"math"

	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"

	"github.com/dudu/glamface/internal/inference"
)

// SCRFD implements the SCRFD face detector. It locates the face box the
// mesh model crops around.
type SCRFD struct {
	session        *inference.Session
	inputSize      int
	confThreshold  float32
	nmsThreshold   float32
	featureStrides []int
	numAnchors     int
}

// NewSCRFD creates a new SCRFD detector
func NewSCRFD(modelPath string, inputSize int, confThreshold, nmsThreshold float32) (*SCRFD, error) {
	// 1 input and 9 outputs: score, bbox and kps for each of 3 strides
	inputNames := []string{"input.1"}
	outputNames := []string{
		"score_8", "score_16", "score_32",
		"bbox_8", "bbox_16", "bbox_32",
		"kps_8", "kps_16", "kps_32",
	}

	session, err := inference.NewSession(modelPath, inputNames, outputNames)
	if err != nil {
		return nil, fmt.Errorf("failed to create SCRFD session: %w", err)
	}

	return &SCRFD{
		session:        session,
		inputSize:      inputSize,
		confThreshold:  confThreshold,
		nmsThreshold:   nmsThreshold,
		featureStrides: []int{8, 16, 32},
		numAnchors:     2,
	}, nil
}

// Detect finds faces in an image, best score first
func (s *SCRFD) Detect(img gocv.Mat) ([]Detection, error) {
	blob, scale := s.preprocess(img)
	defer blob.Close()

	input, err := planarTensor(blob, s.inputSize)
	if err != nil {
		return nil, err
	}
	defer input.Destroy()

	outputs := make([]ort.Value, 9)
	tensors := make([]*ort.Tensor[float32], 9)
	defer func() {
		for _, t := range tensors {
			if t != nil {
				t.Destroy()
			}
		}
	}()
	for level, stride := range s.featureStrides {
		fm := s.inputSize / stride
		anchors := int64(fm * fm * s.numAnchors)
		for kind, width := range []int64{1, 4, 10} {
			t, err := inference.CreateEmptyTensor[float32]([]int64{anchors, width})
			if err != nil {
				return nil, fmt.Errorf("failed to create output tensor: %w", err)
			}
			outputs[level+3*kind] = t
			tensors[level+3*kind] = t
		}
	}

	if err := s.session.Run([]ort.Value{input}, outputs); err != nil {
		return nil, fmt.Errorf("SCRFD inference failed: %w", err)
	}

	dets := s.postprocess(tensors, scale, img.Cols(), img.Rows())
	return nms(dets, s.nmsThreshold), nil
}

// preprocess letterboxes the image into the top-left of an inputSize square
// and normalizes it to (x - 127.5) / 128
func (s *SCRFD) preprocess(img gocv.Mat) (gocv.Mat, float32) {
	scale := float32(s.inputSize) / float32(max(img.Rows(), img.Cols()))
	w := int(float32(img.Cols()) * scale)
	h := int(float32(img.Rows()) * scale)

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(img, &resized, image.Pt(w, h), 0, 0, gocv.InterpolationLinear)

	padded := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), s.inputSize, s.inputSize, gocv.MatTypeCV8UC3)
	defer padded.Close()
	roi := padded.Region(image.Rect(0, 0, w, h))
	resized.CopyTo(&roi)
	roi.Close()

	return normalizedBlob(padded, s.inputSize, 1.0/128.0, -127.5/128.0), scale
}

// postprocess decodes anchors above the confidence threshold into
// detections in source pixels
func (s *SCRFD) postprocess(outputs []*ort.Tensor[float32], scale float32, width, height int) []Detection {
	var dets []Detection

	for level, stride := range s.featureStrides {
		fm := s.inputSize / stride
		st := float32(stride)
		scores := outputs[level].GetData()
		boxes := outputs[level+3].GetData()
		kps := outputs[level+6].GetData()

		for anchor := 0; anchor < fm*fm*s.numAnchors; anchor++ {
			score := sigmoid(scores[anchor])
			if score <= s.confThreshold {
				continue
			}
			cell := anchor / s.numAnchors
			cx := (float32(cell%fm) + 0.5) * st
			cy := (float32(cell/fm) + 0.5) * st

			// box is encoded as distances from the anchor center to its edges
			b := boxes[anchor*4 : anchor*4+4]
			box := BoundingBox{
				X1: clamp((cx-b[0]*st)/scale, 0, float32(width)),
				Y1: clamp((cy-b[1]*st)/scale, 0, float32(height)),
				X2: clamp((cx+b[2]*st)/scale, 0, float32(width)),
				Y2: clamp((cy+b[3]*st)/scale, 0, float32(height)),
			}

			var pts [5]Point
			k := kps[anchor*10 : anchor*10+10]
			for i := range pts {
				pts[i] = Point{X: (cx + k[2*i]*st) / scale, Y: (cy + k[2*i+1]*st) / scale}
			}

			dets = append(dets, Detection{
				Box: box,
				Keypoints: Keypoints{
					LeftEye:    pts[0],
					RightEye:   pts[1],
					Nose:       pts[2],
					LeftMouth:  pts[3],
					RightMouth: pts[4],
				},
				Score: score,
			})
		}
	}
	return dets
}

// Close releases detector resources
func (s *SCRFD) Close() error {
	return s.session.Destroy()
}

func sigmoid(x float32) float32 {
	return 1.0 / (1.0 + float32(math.Exp(float64(-x))))
}

func clamp(x, lo, hi float32) float32 {
	return min(max(x, lo), hi)
}
