package detector

import (
	"encoding/binary"
	"fmt"
	"image"
	"math"

	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"
)

// normalizedBlob converts a BGR 8-bit square image to an NCHW float RGB
// blob with every value mapped to x*scale + offset
func normalizedBlob(img gocv.Mat, size int, scale, offset float64) gocv.Mat {
	rgb := gocv.NewMat()
	defer rgb.Close()
	gocv.CvtColor(img, &rgb, gocv.ColorBGRToRGB)

	f := gocv.NewMat()
	defer f.Close()
	rgb.ConvertTo(&f, gocv.MatTypeCV32FC3)
	gocv.AddWeighted(f, scale, f, 0, offset, &f)

	return gocv.BlobFromImage(f, 1.0, image.Pt(size, size), gocv.NewScalar(0, 0, 0, 0), false, false)
}

// planarTensor wraps an NCHW blob in a 1x3xSxS input tensor
func planarTensor(blob gocv.Mat, size int) (*ort.Tensor[float32], error) {
	t, err := ort.NewTensor(ort.NewShape(1, 3, int64(size), int64(size)), bytesToFloat32(blob.ToBytes()))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	return t, nil
}

// interleavedTensor wraps a float RGB image in a 1xSxSx3 input tensor
func interleavedTensor(img gocv.Mat, size int) (*ort.Tensor[float32], error) {
	t, err := ort.NewTensor(ort.NewShape(1, int64(size), int64(size), 3), bytesToFloat32(img.ToBytes()))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	return t, nil
}

func bytesToFloat32(data []byte) []float32 {
	result := make([]float32, len(data)/4)
	for i := range result {
		result[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return result
}
