// Command meshprobe checks that the landmark models load: it prints their
// tensors and metadata through ONNX Runtime and verifies the face mesh
// tensor names glamface is configured with. With --metal it also tries a
// go-metal import of each model.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/spf13/cobra"
	"github.com/tsawler/go-metal/checkpoints"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/dudu/glamface/internal/config"
	"github.com/dudu/glamface/internal/inference"
)

var (
	configPath string
	runtimeLib string
	tryMetal   bool
)

var rootCmd = &cobra.Command{
	Use:   "meshprobe [model.onnx...]",
	Short: "Inspect the face detector and face mesh models",
	Long: `Inspect the face detector and face mesh models.

Without arguments the models named in the configuration are probed.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		return probe(cmd.OutOrStdout(), cfg, args)
	},
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "glamface YAML configuration")
	rootCmd.Flags().StringVar(&runtimeLib, "runtime", "", "ONNX Runtime shared library (default: config or platform path)")
	rootCmd.Flags().BoolVar(&tryMetal, "metal", false, "Also try importing each model with go-metal")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func probe(w io.Writer, cfg config.Config, models []string) error {
	checkMesh := len(models) == 0
	if checkMesh {
		models = []string{cfg.Models.FaceDetector, cfg.Models.FaceMesh}
	}
	for _, m := range models {
		if _, err := os.Stat(m); err != nil {
			return fmt.Errorf("model not found: %w", err)
		}
	}

	lib := runtimeLib
	if lib == "" {
		lib = cfg.Models.Runtime
	}
	if lib == "" {
		lib = inference.DefaultLibraryPath()
	}
	fmt.Fprintln(w, "Initializing ONNX Runtime...")
	if err := inference.Initialize(lib); err != nil {
		return fmt.Errorf("%w (install it with: brew install onnxruntime)", err)
	}
	defer inference.Shutdown()

	var errs []error
	for _, m := range models {
		info, err := inference.Inspect(m)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", m, err))
			continue
		}
		printInfo(w, m, info)
		if checkMesh && m == cfg.Models.FaceMesh {
			if err := checkTensors(info, cfg.Models.MeshInput, cfg.Models.MeshOutput); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", m, err))
			} else {
				fmt.Fprintf(w, "  ✓ mesh tensors %s -> %s\n", cfg.Models.MeshInput, cfg.Models.MeshOutput)
			}
		}
		if tryMetal {
			metalImport(w, m)
		}
	}
	return errors.Join(errs...)
}

func printInfo(w io.Writer, path string, info *inference.ModelInfo) {
	fmt.Fprintf(w, "\n%s\n", path)
	fmt.Fprintf(w, "  Inputs (%d):\n", len(info.Inputs))
	for _, in := range info.Inputs {
		fmt.Fprintf(w, "    %s: shape=%v, type=%v\n", in.Name, in.Dimensions, in.DataType)
	}
	fmt.Fprintf(w, "  Outputs (%d):\n", len(info.Outputs))
	for _, out := range info.Outputs {
		fmt.Fprintf(w, "    %s: shape=%v, type=%v\n", out.Name, out.Dimensions, out.DataType)
	}
	if info.Producer != "" {
		fmt.Fprintf(w, "  Producer: %s (version %d)\n", info.Producer, info.Version)
	}
	if info.Domain != "" {
		fmt.Fprintf(w, "  Domain: %s\n", info.Domain)
	}
	if info.Description != "" {
		fmt.Fprintf(w, "  Description: %s\n", info.Description)
	}
}

// checkTensors verifies the configured face mesh tensor names exist
func checkTensors(info *inference.ModelInfo, input, output string) error {
	named := func(n string) func(ort.InputOutputInfo) bool {
		return func(i ort.InputOutputInfo) bool { return i.Name == n }
	}
	var errs []error
	if !slices.ContainsFunc(info.Inputs, named(input)) {
		errs = append(errs, fmt.Errorf("no input tensor %q", input))
	}
	if !slices.ContainsFunc(info.Outputs, named(output)) {
		errs = append(errs, fmt.Errorf("no output tensor %q", output))
	}
	return errors.Join(errs...)
}

// metalImport reports whether go-metal can import the model. Failure is
// informational, ONNX Runtime remains the inference backend.
func metalImport(w io.Writer, path string) {
	importer := checkpoints.NewONNXImporter()
	checkpoint, err := importer.ImportFromONNX(path)
	if err != nil {
		fmt.Fprintf(w, "  go-metal: import failed: %v\n", err)
		return
	}
	fmt.Fprintf(w, "  go-metal: %d layers, %d weight tensors\n",
		len(checkpoint.ModelSpec.Layers), len(checkpoint.Weights))
	for i, layer := range checkpoint.ModelSpec.Layers {
		fmt.Fprintf(w, "    %d: %s (%s)\n", i+1, layer.Name, layer.Type)
	}
}
