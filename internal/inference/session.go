// Package inference wraps the ONNX Runtime environment and sessions used by
// the landmark detectors
package inference

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/dudu/glamface/internal/logging"
)

var (
	initialized bool
	initMu      sync.Mutex

	loggerPtr atomic.Pointer[slog.Logger]
)

func init() {
	loggerPtr.Store(logging.Nop())
}

// SetLogger configures the logger for session creation. Pass nil to
// disable logging.
func SetLogger(l *slog.Logger) {
	loggerPtr.Store(logging.OrNop(l))
}

// DefaultLibraryPath returns the usual ONNX Runtime shared library location
// for the running platform
func DefaultLibraryPath() string {
	switch runtime.GOOS {
	case "darwin":
		return "/opt/homebrew/lib/libonnxruntime.dylib"
	case "windows":
		return "onnxruntime.dll"
	default:
		return "libonnxruntime.so"
	}
}

// Initialize sets up the ONNX Runtime environment (call once at startup).
// An empty libPath uses DefaultLibraryPath.
func Initialize(libPath string) error {
	initMu.Lock()
	defer initMu.Unlock()

	if initialized {
		return nil
	}
	if libPath == "" {
		libPath = DefaultLibraryPath()
	}
	ort.SetSharedLibraryPath(libPath)

	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX Runtime from %s: %w", libPath, err)
	}

	initialized = true
	return nil
}

// Shutdown cleans up the ONNX Runtime environment
func Shutdown() error {
	initMu.Lock()
	defer initMu.Unlock()

	if !initialized {
		return nil
	}

	if err := ort.DestroyEnvironment(); err != nil {
		return fmt.Errorf("failed to destroy ONNX Runtime: %w", err)
	}

	initialized = false
	return nil
}

// Session wraps an ONNX Runtime inference session. Run is serialized, so a
// session may be shared between a stalled detection and its successor.
type Session struct {
	mu          sync.Mutex
	session     *ort.DynamicAdvancedSession
	modelPath   string
	inputNames  []string
	outputNames []string
}

// NewSession creates an inference session from an ONNX model. On macOS the
// CoreML execution provider is tried first, falling back to CPU.
func NewSession(modelPath string, inputNames, outputNames []string) (*Session, error) {
	initMu.Lock()
	ready := initialized
	initMu.Unlock()
	if !ready {
		return nil, fmt.Errorf("ONNX Runtime not initialized, call Initialize() first")
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer options.Destroy()

	log := loggerPtr.Load()
	provider := "cpu"
	if runtime.GOOS == "darwin" {
		// Flag 0 = default settings, Neural Engine + GPU
		if err := options.AppendExecutionProviderCoreML(0); err != nil {
			log.Warn("CoreML unavailable, using CPU", "model", modelPath, "error", err)
		} else {
			provider = "coreml"
		}
	}

	session, err := ort.NewDynamicAdvancedSession(
		modelPath,
		inputNames,
		outputNames,
		options,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session for %s: %w", modelPath, err)
	}
	log.Info("model loaded", "model", modelPath, "provider", provider)

	return &Session{
		session:     session,
		modelPath:   modelPath,
		inputNames:  inputNames,
		outputNames: outputNames,
	}, nil
}

// Run executes inference with the given inputs
func (s *Session) Run(inputs []ort.Value, outputs []ort.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return fmt.Errorf("session for %s destroyed", s.modelPath)
	}
	return s.session.Run(inputs, outputs)
}

// ModelPath returns the model file the session was created from
func (s *Session) ModelPath() string {
	return s.modelPath
}

// Destroy releases session resources
func (s *Session) Destroy() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil {
		err := s.session.Destroy()
		s.session = nil
		return err
	}
	return nil
}

// CreateTensor creates a tensor with the given shape and data
func CreateTensor[T ort.TensorData](shape []int64, data []T) (*ort.Tensor[T], error) {
	return ort.NewTensor(ort.NewShape(shape...), data)
}

// CreateEmptyTensor creates a zeroed tensor for output
func CreateEmptyTensor[T ort.TensorData](shape []int64) (*ort.Tensor[T], error) {
	size := int64(1)
	for _, dim := range shape {
		size *= dim
	}
	data := make([]T, size)
	return ort.NewTensor(ort.NewShape(shape...), data)
}

// ModelInfo describes a model's tensors and metadata
type ModelInfo struct {
	Inputs      []ort.InputOutputInfo
	Outputs     []ort.InputOutputInfo
	Producer    string
	Version     int64
	Domain      string
	Description string
}

// Inspect reads tensor names, shapes and metadata of a model without
// creating a session
func Inspect(modelPath string) (*ModelInfo, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get model info: %w", err)
	}
	info := &ModelInfo{Inputs: inputs, Outputs: outputs}

	metadata, err := ort.GetModelMetadata(modelPath)
	if err != nil {
		loggerPtr.Load().Debug("model metadata unavailable", "model", modelPath, "error", err)
		return info, nil
	}
	defer metadata.Destroy()
	if v, err := metadata.GetProducerName(); err == nil {
		info.Producer = v
	}
	if v, err := metadata.GetVersion(); err == nil {
		info.Version = v
	}
	if v, err := metadata.GetDomain(); err == nil {
		info.Domain = v
	}
	if v, err := metadata.GetDescription(); err == nil {
		info.Description = v
	}
	return info, nil
}
