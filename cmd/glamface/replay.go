package main

import (
	"context"
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/dudu/glamface/internal/config"
	"github.com/dudu/glamface/internal/pipeline"
	"github.com/dudu/glamface/internal/replay"
	"github.com/dudu/glamface/internal/snapshot"
)

type replayOptions struct {
	sessionOptions
	Input      string
	Output     string
	Background string
}

var replayOpts replayOptions

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Render a landmark recording to PNG frames",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := replayOpts.apply(cmd, &cfg); err != nil {
			return err
		}
		// offline rendering runs as fast as it can unless asked otherwise
		fps := 0.0
		if cmd.Flags().Changed("fps") {
			fps = replayOpts.FPS
		}
		return runReplay(cmd.Context(), cfg, fps, replayOpts)
	},
}

func init() {
	replayOpts.bind(replayCmd)
	replayCmd.Flags().StringVarP(&replayOpts.Input, "in", "i", "", "Recording to play (JSON Lines)")
	replayCmd.Flags().StringVarP(&replayOpts.Output, "out", "o", "frames", "Directory receiving the PNG frames")
	replayCmd.Flags().StringVar(&replayOpts.Background, "background", "#000000", "Frame background color")
	replayCmd.MarkFlagRequired("in")
	rootCmd.AddCommand(replayCmd)
}

// progressRenderer advances a progress bar after each rendered frame
type progressRenderer struct {
	pipeline.Renderer
	bar *progressbar.ProgressBar
}

func (p progressRenderer) Render(in pipeline.RenderInput) error {
	if err := p.Renderer.Render(in); err != nil {
		return err
	}
	return p.bar.Add(1)
}

func runReplay(ctx context.Context, c config.Config, fps float64, opts replayOptions) error {
	total, err := replay.CountFrames(opts.Input)
	if err != nil {
		return err
	}
	r, err := replay.Open(opts.Input)
	if err != nil {
		return err
	}
	topology, err := r.Topology()
	if err != nil {
		r.Close()
		return err
	}
	h := r.Header()
	logger.Info("replaying", "path", opts.Input, "session", h.Session, "frames", total,
		"width", h.Width, "height", h.Height)

	out, err := snapshot.New(snapshot.Options{Dir: opts.Output, Background: opts.Background, Logger: logger})
	if err != nil {
		r.Close()
		return err
	}

	if total <= 0 {
		// Fallback to a spinner if the recording could not be counted
		total = -1
	}
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription("Rendering"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
	)

	pc, err := pipelineConfig(c, topology, fps, nil)
	if err != nil {
		r.Close()
		out.Close()
		return err
	}
	d, err := pipeline.New(pc, r, r, progressRenderer{Renderer: out, bar: bar})
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}

	runErr := d.Run(ctx)
	_ = bar.Finish()
	fmt.Fprintln(os.Stderr)
	st := d.Stats()
	if err := d.Close(); err != nil && runErr == nil {
		runErr = err
	}
	logger.Info("replay finished", "frames", out.Written(), "misses", st.Misses, "dir", opts.Output)
	return runErr
}
