package snapshot_test

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/dudu/glamface/internal/geom"
	"github.com/dudu/glamface/internal/landmark"
	"github.com/dudu/glamface/internal/landmark/landmarktest"
	"github.com/dudu/glamface/internal/overlay"
	"github.com/dudu/glamface/internal/pipeline"
	"github.com/dudu/glamface/internal/shape"
	"github.com/dudu/glamface/internal/snapshot"
)

func views(t *testing.T, cat overlay.Category) []overlay.View {
	t.Helper()
	layout, err := landmark.Resolve(landmark.MediaPipeFaceMesh())
	if err != nil {
		t.Fatal(err)
	}
	c, err := overlay.New(overlay.Config{
		Layout:         layout,
		Tuning:         shape.DefaultTuning(),
		FeatherOpacity: []float64{0.5, 0.25},
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })
	style := overlay.Style{Color: color.RGBA{R: 200, A: 255}, Opacity: 0.8}
	if err := c.Activate(cat, style); err != nil {
		t.Fatal(err)
	}
	c.OnFrame(landmarktest.Face(), mapper)
	return c.Views()
}

var mapper = geom.NewMapper(landmarktest.Width, landmarktest.Height, false)

func input(seq uint64, vs []overlay.View) pipeline.RenderInput {
	return pipeline.RenderInput{
		Frame:  pipeline.NewFrame(seq, landmarktest.Width, landmarktest.Height, nil, nil),
		Mapper: mapper,
		Views:  vs,
	}
}

func red(t *testing.T, r *snapshot.Renderer, x, y int) uint32 {
	t.Helper()
	img := r.Image()
	if img == nil {
		t.Fatal("no image rendered")
	}
	cr, _, _, _ := img.At(x, y).RGBA()
	return cr >> 8
}

func TestRenderLipstickLeavesMouthOpen(t *testing.T) {
	r, err := snapshot.New(snapshot.Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	if err := r.Render(input(1, views(t, overlay.Lipstick))); err != nil {
		t.Fatal(err)
	}

	c := landmarktest.MouthCenter
	if got := red(t, r, int(c.X), int(c.Y)-18); got < 100 {
		t.Errorf("lip band red = %d, want painted", got)
	}
	if got := red(t, r, int(c.X), int(c.Y)); got != 0 {
		t.Errorf("mouth opening red = %d, want background", got)
	}
	if got := red(t, r, 10, 10); got != 0 {
		t.Errorf("corner red = %d, want background", got)
	}
	if r.Written() != 0 {
		t.Errorf("written = %d without a dir", r.Written())
	}
}

func TestRenderEyelinerAndBlush(t *testing.T) {
	tests := []struct {
		cat  overlay.Category
		x, y int
	}{
		// just above the right eye's upper lid
		{overlay.Eyeliner, int(landmarktest.RightEyeCenter.X), int(landmarktest.RightEyeCenter.Y) - 14},
		{overlay.Blush, int(landmarktest.LeftCheekCenter.X), int(landmarktest.LeftCheekCenter.Y)},
	}
	for _, tt := range tests {
		t.Run(tt.cat.String(), func(t *testing.T) {
			r, err := snapshot.New(snapshot.Options{})
			if err != nil {
				t.Fatal(err)
			}
			defer r.Close()
			if err := r.Render(input(1, views(t, tt.cat))); err != nil {
				t.Fatal(err)
			}
			if got := red(t, r, tt.x, tt.y); got < 100 {
				t.Errorf("red at (%d,%d) = %d, want painted", tt.x, tt.y, got)
			}
		})
	}
}

func TestRenderHiddenViewsPaintNothing(t *testing.T) {
	r, err := snapshot.New(snapshot.Options{Background: "#102030"})
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	vs := views(t, overlay.Lipstick)
	for i := range vs {
		vs[i].Visible = false
	}
	if err := r.Render(input(1, vs)); err != nil {
		t.Fatal(err)
	}
	c := landmarktest.MouthCenter
	if got := red(t, r, int(c.X), int(c.Y)-18); got != 0x10 {
		t.Errorf("red = %#x, want background 0x10", got)
	}
}

func TestRenderWritesPNG(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	r, err := snapshot.New(snapshot.Options{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	for seq := uint64(1); seq <= 2; seq++ {
		if err := r.Render(input(seq, views(t, overlay.Blush))); err != nil {
			t.Fatal(err)
		}
	}
	if r.Written() != 2 {
		t.Errorf("written = %d, want 2", r.Written())
	}
	for _, name := range []string{"frame-000001.png", "frame-000002.png"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
}

func TestRenderRejectsEmptyFrame(t *testing.T) {
	r, err := snapshot.New(snapshot.Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	in := pipeline.RenderInput{Frame: pipeline.NewFrame(1, 0, 0, nil, nil), Mapper: mapper}
	if err := r.Render(in); err == nil {
		t.Error("expected error for zero-sized frame")
	}
}
