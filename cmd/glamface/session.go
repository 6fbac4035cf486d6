package main

import (
	"github.com/spf13/cobra"

	"github.com/dudu/glamface/internal/config"
	"github.com/dudu/glamface/internal/landmark"
	"github.com/dudu/glamface/internal/overlay"
	"github.com/dudu/glamface/internal/pipeline"
)

// sessionOptions are the flags shared by live and replay. They override
// the config file only when given.
type sessionOptions struct {
	Category string
	Color    string
	Opacity  float64
	Mirror   bool
	FPS      float64
}

func (o *sessionOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.Category, "category", "k", "lipstick", "Cosmetic: lipstick, eyeliner, blush or none")
	cmd.Flags().StringVar(&o.Color, "color", "#800080", "Overlay color as #rrggbb")
	cmd.Flags().Float64Var(&o.Opacity, "opacity", 0.35, "Overlay opacity in [0,1]")
	cmd.Flags().BoolVarP(&o.Mirror, "mirror", "m", false, "Mirror the overlay horizontally")
	cmd.Flags().Float64Var(&o.FPS, "fps", 30, "Target frames per second, 0 runs unpaced")
}

// apply writes the given flags into c and revalidates it
func (o *sessionOptions) apply(cmd *cobra.Command, c *config.Config) error {
	f := cmd.Flags()
	if f.Changed("category") {
		c.Session.Category = o.Category
	}
	if f.Changed("color") {
		c.Session.Color = o.Color
	}
	if f.Changed("opacity") {
		c.Session.Opacity = o.Opacity
	}
	if f.Changed("mirror") {
		c.Camera.Mirror = o.Mirror
	}
	if f.Changed("fps") {
		// camera.fps must stay positive, pacing may be disabled
		if o.FPS > 0 {
			c.Camera.FPS = o.FPS
		}
	}
	return c.Validate()
}

// pacing returns the driver tick rate
func (o *sessionOptions) pacing(cmd *cobra.Command, c config.Config) float64 {
	if cmd.Flags().Changed("fps") {
		return o.FPS
	}
	return c.Camera.FPS
}

func pipelineConfig(c config.Config, topology landmark.Topology, fps float64, backend overlay.Backend) (pipeline.Config, error) {
	category, err := c.Category()
	if err != nil {
		return pipeline.Config{}, err
	}
	style, err := c.Style()
	if err != nil {
		return pipeline.Config{}, err
	}
	return pipeline.Config{
		Topology:       topology,
		Tuning:         c.Tuning(),
		FeatherOpacity: c.Shape.FeatherOpacity,
		Alpha:          c.Smoothing.Alpha,
		DetectTimeout:  c.Session.DetectTimeout.Duration(),
		FPS:            fps,
		Mirror:         c.Camera.Mirror,
		Category:       category,
		Style:          style,
		Backend:        backend,
		Logger:         logger,
	}, nil
}
