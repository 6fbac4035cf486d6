package detector

import (
	"fmt"
	"image"

	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"

	"github.com/dudu/glamface/internal/geom"
	"github.com/dudu/glamface/internal/inference"
)

// MeshLandmarks is the keypoint count of the face mesh model
const MeshLandmarks = 468

// FaceMeshConfig describes a face mesh ONNX export. Conversions of the
// MediaPipe model differ in tensor names and channel order.
type FaceMeshConfig struct {
	ModelPath  string
	InputName  string
	OutputName string
	InputSize  int
	// ChannelsLast selects an NHWC input rather than NCHW
	ChannelsLast bool
	// CropScale is the crop side relative to the larger face box side
	CropScale float32
}

// FaceMesh places the 468 face mesh landmarks inside a face box
type FaceMesh struct {
	session   *inference.Session
	config    FaceMeshConfig
	inputSize int
}

// NewFaceMesh creates a face mesh landmark detector
func NewFaceMesh(config FaceMeshConfig) (*FaceMesh, error) {
	if config.InputSize <= 0 {
		config.InputSize = 192
	}
	if config.CropScale <= 0 {
		config.CropScale = 1.5
	}
	session, err := inference.NewSession(config.ModelPath, []string{config.InputName}, []string{config.OutputName})
	if err != nil {
		return nil, fmt.Errorf("failed to create face mesh session: %w", err)
	}
	return &FaceMesh{
		session:   session,
		config:    config,
		inputSize: config.InputSize,
	}, nil
}

// Detect returns the landmarks of the face in box, ordered by mesh index,
// in source pixels
func (f *FaceMesh) Detect(img gocv.Mat, box BoundingBox) ([]geom.Point, error) {
	center := box.Center()
	side := max(box.Width(), box.Height()) * f.config.CropScale
	if side <= 0 {
		return nil, fmt.Errorf("empty face box %v", box)
	}
	scale := float32(f.inputSize) / side

	M := f.transform(center, scale)
	aligned := gocv.NewMat()
	defer aligned.Close()
	gocv.WarpAffine(img, &aligned, M, image.Pt(f.inputSize, f.inputSize))
	M.Close()

	input, err := f.inputTensor(aligned)
	if err != nil {
		return nil, err
	}
	defer input.Destroy()

	// output shape varies between exports, let the runtime allocate it
	outputs := []ort.Value{nil}
	if err := f.session.Run([]ort.Value{input}, outputs); err != nil {
		return nil, fmt.Errorf("face mesh inference failed: %w", err)
	}
	defer outputs[0].Destroy()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("face mesh output %s is not a float tensor", f.config.OutputName)
	}
	return f.postprocess(out.GetData(), center, scale)
}

func (f *FaceMesh) inputTensor(aligned gocv.Mat) (*ort.Tensor[float32], error) {
	if !f.config.ChannelsLast {
		blob := normalizedBlob(aligned, f.inputSize, 1.0/255.0, 0)
		defer blob.Close()
		return planarTensor(blob, f.inputSize)
	}

	rgb := gocv.NewMat()
	defer rgb.Close()
	gocv.CvtColor(aligned, &rgb, gocv.ColorBGRToRGB)
	norm := gocv.NewMat()
	defer norm.Close()
	rgb.ConvertToWithParams(&norm, gocv.MatTypeCV32FC3, 1.0/255.0, 0)
	return interleavedTensor(norm, f.inputSize)
}

// transform builds the affine matrix mapping source pixels into the crop:
// scale about the box center, then center in the input square
func (f *FaceMesh) transform(center Point, scale float32) gocv.Mat {
	M := gocv.NewMatWithSize(2, 3, gocv.MatTypeCV64F)
	half := float64(f.inputSize) / 2
	M.SetDoubleAt(0, 0, float64(scale))
	M.SetDoubleAt(0, 1, 0)
	M.SetDoubleAt(0, 2, half-float64(center.X*scale))
	M.SetDoubleAt(1, 0, 0)
	M.SetDoubleAt(1, 1, float64(scale))
	M.SetDoubleAt(1, 2, half-float64(center.Y*scale))
	return M
}

// postprocess maps crop-space (x, y[, z]) triples back to source pixels
func (f *FaceMesh) postprocess(output []float32, center Point, scale float32) ([]geom.Point, error) {
	stride := len(output) / MeshLandmarks
	if stride < 2 {
		return nil, fmt.Errorf("face mesh output has %d values, want at least %d", len(output), 2*MeshLandmarks)
	}
	half := float32(f.inputSize) / 2
	points := make([]geom.Point, MeshLandmarks)
	for i := range points {
		x := output[i*stride]
		y := output[i*stride+1]
		points[i] = geom.Point{
			X: float64((x-half)/scale + center.X),
			Y: float64((y-half)/scale + center.Y),
		}
	}
	return points, nil
}

// Close releases detector resources
func (f *FaceMesh) Close() error {
	return f.session.Destroy()
}
