package replay_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dudu/glamface/internal/landmark"
	"github.com/dudu/glamface/internal/landmark/landmarktest"
	"github.com/dudu/glamface/internal/overlay"
	"github.com/dudu/glamface/internal/pipeline"
	"github.com/dudu/glamface/internal/replay"
	"github.com/dudu/glamface/internal/shape"
	"github.com/dudu/glamface/internal/snapshot"
)

// scripted returns one face per call, nil entries are misses
type scripted struct {
	faces  []*landmark.Face
	calls  int
	closed bool
}

func (s *scripted) Detect(context.Context, *pipeline.Frame) (*landmark.Face, error) {
	if s.calls >= len(s.faces) {
		return nil, errors.New("script exhausted")
	}
	f := s.faces[s.calls]
	s.calls++
	return f, nil
}

func (s *scripted) Close() error {
	s.closed = true
	return nil
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func frame(seq uint64) *pipeline.Frame {
	return pipeline.NewFrame(seq, landmarktest.Width, landmarktest.Height, nil, nil)
}

func record(t *testing.T, faces ...*landmark.Face) (*bytes.Buffer, *replay.Recorder, *scripted) {
	t.Helper()
	var buf bytes.Buffer
	src := &scripted{faces: faces}
	rec := replay.NewRecorder(&buf, landmark.MediaPipeFaceMeshName, src)
	for i := range faces {
		if _, err := rec.Detect(context.Background(), frame(uint64(i+1))); err != nil {
			t.Fatal(err)
		}
	}
	if err := rec.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, rec, src
}

func TestRoundTrip(t *testing.T) {
	face := landmarktest.Face()
	buf, rec, src := record(t, face, nil, landmarktest.Translate(face, 5, -3))
	if !src.closed {
		t.Error("recorder did not close the wrapped source")
	}
	if rec.Frames() != 3 {
		t.Errorf("frames = %d, want 3", rec.Frames())
	}

	r, err := replay.NewReader(buf)
	if err != nil {
		t.Fatal(err)
	}
	h := r.Header()
	if h.Version != replay.Version || h.Session != rec.Session() {
		t.Errorf("header = %+v", h)
	}
	if h.Width != landmarktest.Width || h.Height != landmarktest.Height {
		t.Errorf("header size = %dx%d", h.Width, h.Height)
	}
	if _, err := r.Topology(); err != nil {
		t.Error(err)
	}

	ctx := context.Background()
	want := []struct {
		face   bool
		dx, dy float64
	}{{true, 0, 0}, {false, 0, 0}, {true, 5, -3}}
	for i, w := range want {
		f, err := r.Next(ctx)
		if err != nil {
			t.Fatalf("frame %d: %v", i+1, err)
		}
		if f.Seq != uint64(i+1) {
			t.Errorf("seq = %d, want %d", f.Seq, i+1)
		}
		got, err := r.Detect(ctx, f)
		if err != nil {
			t.Fatal(err)
		}
		if !w.face {
			if got != nil {
				t.Errorf("frame %d: expected miss", i+1)
			}
			continue
		}
		if got.Len() != face.Len() {
			t.Fatalf("frame %d: %d landmarks, want %d", i+1, got.Len(), face.Len())
		}
		for _, idx := range []int{0, 61, 291, 468 - 1} {
			p, _ := got.Lookup(idx)
			q, _ := face.Lookup(idx)
			if !approxEqual(p.X, q.X+w.dx) || !approxEqual(p.Y, q.Y+w.dy) {
				t.Errorf("frame %d landmark %d = %v, want %v", i+1, idx, p, q)
			}
		}
	}
	if _, err := r.Next(ctx); !errors.Is(err, io.EOF) {
		t.Errorf("after last frame: %v, want io.EOF", err)
	}
}

func TestPartialFaceKeepsIndices(t *testing.T) {
	buf, _, _ := record(t, landmarktest.Drop(landmarktest.Face(), 0, 61))
	if !strings.Contains(buf.String(), "null") {
		t.Error("dropped landmarks not written as null")
	}

	r, err := replay.NewReader(buf)
	if err != nil {
		t.Fatal(err)
	}
	f, err := r.Next(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	got, _ := r.Detect(context.Background(), f)
	if _, ok := got.Lookup(61); ok {
		t.Error("landmark 61 should be missing")
	}
	if _, ok := got.Lookup(291); !ok {
		t.Error("landmark 291 should be present")
	}
	if got.Len() != 466 {
		t.Errorf("len = %d, want 466", got.Len())
	}
}

func TestBadHeader(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"empty", "", replay.ErrHeader},
		{"garbage", "not json\n", replay.ErrHeader},
		{"version", `{"version":2,"topology":"mediapipe-facemesh","width":1,"height":1}`, replay.ErrVersion},
		{"topology", `{"version":1,"width":1,"height":1}`, replay.ErrHeader},
		{"size", `{"version":1,"topology":"mediapipe-facemesh","width":0,"height":1}`, replay.ErrHeader},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := replay.NewReader(strings.NewReader(tt.input))
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestUnknownTopology(t *testing.T) {
	r, err := replay.NewReader(strings.NewReader(`{"version":1,"topology":"dlib-68","width":4,"height":4}`))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Topology(); !errors.Is(err, replay.ErrHeader) {
		t.Errorf("err = %v, want ErrHeader", err)
	}
}

func TestBadRecord(t *testing.T) {
	in := `{"version":1,"topology":"mediapipe-facemesh","width":4,"height":4}` + "\n" + `{"seq":"x"}`
	r, err := replay.NewReader(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Next(context.Background()); !errors.Is(err, replay.ErrRecord) {
		t.Errorf("err = %v, want ErrRecord", err)
	}
}

func TestRecordInheritsHeaderSize(t *testing.T) {
	in := `{"version":1,"topology":"mediapipe-facemesh","width":4,"height":3}` + "\n" + `{"faces":[]}`
	r, err := replay.NewReader(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	f, err := r.Next(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if f.Width != 4 || f.Height != 3 || f.Seq != 1 {
		t.Errorf("frame = %d %dx%d", f.Seq, f.Width, f.Height)
	}
}

func TestCloseTwiceAndAfterClose(t *testing.T) {
	buf, _, _ := record(t, landmarktest.Face())
	r, err := replay.NewReader(buf)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
	if _, err := r.Next(context.Background()); !errors.Is(err, replay.ErrClosed) {
		t.Errorf("next after close: %v", err)
	}
}

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.jsonl")
	rec, err := replay.Create(path, landmark.MediaPipeFaceMeshName, &scripted{faces: []*landmark.Face{nil, landmarktest.Face()}})
	if err != nil {
		t.Fatal(err)
	}
	for seq := uint64(1); seq <= 2; seq++ {
		if _, err := rec.Detect(context.Background(), frame(seq)); err != nil {
			t.Fatal(err)
		}
	}
	if err := rec.Close(); err != nil {
		t.Fatal(err)
	}

	n, err := replay.CountFrames(path)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}
	r, err := replay.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	if r.Header().Session != rec.Session() {
		t.Error("session mismatch")
	}
}

func TestOpenMissing(t *testing.T) {
	if _, err := replay.Open(filepath.Join(t.TempDir(), "nope.jsonl")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want not exist", err)
	}
}

func TestReplayThroughPipeline(t *testing.T) {
	face := landmarktest.Face()
	buf, _, _ := record(t, face, face, nil, face)
	r, err := replay.NewReader(buf)
	if err != nil {
		t.Fatal(err)
	}
	topo, err := r.Topology()
	if err != nil {
		t.Fatal(err)
	}
	out, err := snapshot.New(snapshot.Options{Dir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}

	d, err := pipeline.New(pipeline.Config{
		Topology:       topo,
		Tuning:         shape.DefaultTuning(),
		FeatherOpacity: []float64{0.5, 0.25},
		Alpha:          landmark.DefaultAlpha,
		DetectTimeout:  time.Second,
		CloseTimeout:   time.Second,
		Category:       overlay.Lipstick,
		Style:          overlay.DefaultStyle,
	}, r, r, out)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	if err := d.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	st := d.Stats()
	if st.Ticks != 4 || st.Detections != 4 || st.Misses != 1 {
		t.Errorf("stats = %+v", st)
	}
	if out.Written() != 4 {
		t.Errorf("written = %d, want 4", out.Written())
	}
}
