package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dudu/glamface/internal/camera"
	"github.com/dudu/glamface/internal/config"
	"github.com/dudu/glamface/internal/detector"
	"github.com/dudu/glamface/internal/inference"
	"github.com/dudu/glamface/internal/overlay"
	"github.com/dudu/glamface/internal/pipeline"
	"github.com/dudu/glamface/internal/replay"
	"github.com/dudu/glamface/internal/ui"
)

// Key codes returned by the preview window
const (
	keyEscape = 27
)

type liveOptions struct {
	sessionOptions
	Device int
	Record string
}

var liveOpts liveOptions

var liveCmd = &cobra.Command{
	Use:   "live",
	Short: "Run the overlay on the camera feed with a preview window",
	Long: `Run the overlay on the camera feed with a preview window.

Keys: 1 lipstick, 2 eyeliner, 3 blush, 0 none, r restart tracking, q or ESC quit.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := liveOpts.apply(cmd, &cfg); err != nil {
			return err
		}
		if cmd.Flags().Changed("camera") {
			cfg.Camera.Device = liveOpts.Device
		}
		return runLive(cmd.Context(), cfg, liveOpts.pacing(cmd, cfg), liveOpts.Record)
	},
}

func init() {
	liveOpts.bind(liveCmd)
	liveCmd.Flags().IntVarP(&liveOpts.Device, "camera", "c", 0, "Camera device index")
	liveCmd.Flags().StringVarP(&liveOpts.Record, "record", "r", "", "Record detected landmarks to this JSON Lines file")
	rootCmd.AddCommand(liveCmd)
}

func runLive(ctx context.Context, c config.Config, fps float64, recordPath string) error {
	inference.SetLogger(logger)
	libPath := c.Models.Runtime
	if libPath == "" {
		libPath = inference.DefaultLibraryPath()
	}
	if err := inference.Initialize(libPath); err != nil {
		return err
	}
	defer inference.Shutdown()

	logger.Info("loading models", "detector", c.Models.FaceDetector, "mesh", c.Models.FaceMesh)
	det, err := detector.NewSource(detector.Config{
		SCRFDModelPath: c.Models.FaceDetector,
		DetectionSize:  c.Models.DetectionSize,
		ConfThreshold:  c.Models.ConfThreshold,
		NMSThreshold:   c.Models.NMSThreshold,
		Mesh: detector.FaceMeshConfig{
			ModelPath:    c.Models.FaceMesh,
			InputName:    c.Models.MeshInput,
			OutputName:   c.Models.MeshOutput,
			InputSize:    c.Models.MeshInputSize,
			ChannelsLast: c.Models.MeshChannelsLast,
			CropScale:    c.Models.MeshCropScale,
		},
		RedetectEvery: c.Models.RedetectEvery,
		Logger:        logger,
	})
	if err != nil {
		return err
	}
	topology := det.Topology()

	var source pipeline.LandmarkSource = det
	var recorder *replay.Recorder
	if recordPath != "" {
		recorder, err = replay.Create(recordPath, topology.Name, det)
		if err != nil {
			det.Close()
			return err
		}
		source = recorder
		logger.Info("recording landmarks", "path", recordPath, "session", recorder.Session())
	}

	cam, err := camera.NewCaptureWithResolution(c.Camera.Device, int(c.Camera.FPS), c.Camera.Width, c.Camera.Height)
	if err != nil {
		source.Close()
		return err
	}
	logger.Info("camera opened", "device", c.Camera.Device, "width", cam.Width(), "height", cam.Height())

	window := ui.NewWindow("glamface", cam.Width(), cam.Height())
	pc, err := pipelineConfig(c, topology, fps, window)
	if err != nil {
		cam.Close()
		source.Close()
		window.Close()
		return err
	}
	d, err := pipeline.New(pc, cam, source, window)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	style := pc.Style
	window.OnKey(func(key int) {
		switch key {
		case '1':
			d.SetCategory(overlay.Lipstick, style)
		case '2':
			d.SetCategory(overlay.Eyeliner, style)
		case '3':
			d.SetCategory(overlay.Blush, style)
		case '0':
			d.SetCategory(overlay.None, style)
		case 'r':
			d.Restart()
		case 'q', keyEscape:
			cancel()
		}
	})

	logger.Info("running", "category", pc.Category, "fps", fps)
	runErr := d.Run(ctx)
	st := d.Stats()
	logger.Info("shutting down", "ticks", st.Ticks, "misses", st.Misses, "timeouts", st.Timeouts)
	if err := d.Close(); err != nil && runErr == nil {
		runErr = err
	}
	if recorder != nil {
		logger.Info("recording saved", "path", recordPath, "frames", recorder.Frames())
	}
	return runErr
}
