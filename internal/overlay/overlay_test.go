package overlay

import (
	"errors"
	"image/color"
	"slices"
	"testing"

	"github.com/google/uuid"

	"github.com/dudu/glamface/internal/geom"
	"github.com/dudu/glamface/internal/landmark"
	"github.com/dudu/glamface/internal/landmark/landmarktest"
	"github.com/dudu/glamface/internal/shape"
)

type recordingBackend struct {
	attached map[SlotID]Style
	events   []string
	failOn   SlotID
}

func newRecordingBackend() *recordingBackend {
	return &recordingBackend{attached: make(map[SlotID]Style)}
}

func (b *recordingBackend) Attach(id SlotID, s Style) error {
	if id == b.failOn {
		return errors.New("out of buffers")
	}
	b.attached[id] = s
	b.events = append(b.events, "attach "+string(id))
	return nil
}

func (b *recordingBackend) Detach(id SlotID) error {
	delete(b.attached, id)
	b.events = append(b.events, "detach "+string(id))
	return nil
}

func newTestCompositor(t *testing.T, backend Backend) *Compositor {
	t.Helper()
	layout, err := landmark.Resolve(landmark.MediaPipeFaceMesh())
	if err != nil {
		t.Fatal(err)
	}
	c, err := New(Config{
		Layout:         layout,
		Tuning:         shape.DefaultTuning(),
		FeatherOpacity: []float64{0.5, 0.25},
		Backend:        backend,
	})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

var mapper = geom.NewMapper(landmarktest.Width, landmarktest.Height, false)

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in   string
		want Category
		err  bool
	}{
		{"lipstick", Lipstick, false},
		{" Lips ", Lipstick, false},
		{"liner", Eyeliner, false},
		{"BLUSH", Blush, false},
		{"cheek", Blush, false},
		{"", None, false},
		{"none", None, false},
		{"mascara", None, true},
	}
	for _, tt := range tests {
		got, err := ParseCategory(tt.in)
		if (err != nil) != tt.err || got != tt.want {
			t.Errorf("ParseCategory(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestParseStyle(t *testing.T) {
	s, err := ParseStyle("#800080", 1.7)
	if err != nil {
		t.Fatal(err)
	}
	if s.Color != (color.RGBA{0x80, 0, 0x80, 0xff}) || s.Opacity != 1 {
		t.Errorf("style = %+v", s)
	}
	for _, bad := range []string{"800080", "#80008", "#zz0080", "#8000800"} {
		if _, err := ParseColor(bad); err == nil {
			t.Errorf("ParseColor(%q) succeeded", bad)
		}
	}
}

func TestSlotsFor(t *testing.T) {
	got := SlotsFor(Lipstick, 2)
	want := []SlotID{SlotLipFeather2, SlotLipFeather1, SlotLip}
	if !slices.Equal(got, want) {
		t.Errorf("SlotsFor(Lipstick, 2) = %v, want %v", got, want)
	}
	if SlotsFor(None, 2) != nil {
		t.Error("None must have no slots")
	}
}

func TestActivateLipstickScenario(t *testing.T) {
	backend := newRecordingBackend()
	c := newTestCompositor(t, backend)
	if err := c.Activate(Lipstick, DefaultStyle); err != nil {
		t.Fatal(err)
	}
	if c.Session() == uuid.Nil {
		t.Error("activation must start a session")
	}
	if got := backend.attached[SlotLipFeather2].Opacity; got != DefaultStyle.Opacity*0.25 {
		t.Errorf("feather 2 opacity = %v", got)
	}

	s, ok := c.Slot(SlotLip)
	if !ok {
		t.Fatal("lip slot missing")
	}
	if s.State() != Uninitialized {
		t.Errorf("fresh slot state = %v", s.State())
	}

	res := c.OnFrame(landmarktest.Face(), mapper)
	if res.Built != 3 || res.Hidden != 0 {
		t.Errorf("result = %+v, want 3 built", res)
	}
	v := s.View()
	if !v.Visible || v.Geometry == nil || v.Geometry.Kind != shape.KindRegion {
		t.Fatalf("lip view = %+v", v)
	}
	if len(v.Geometry.Holes()) != 1 {
		t.Error("lip geometry must carry the mouth hole")
	}
	if s.State() != Visible {
		t.Errorf("state = %v, want visible", s.State())
	}
}

func TestNoFaceHidesAll(t *testing.T) {
	c := newTestCompositor(t, nil)
	if err := c.Activate(Blush, DefaultStyle); err != nil {
		t.Fatal(err)
	}
	c.OnFrame(landmarktest.Face(), mapper)
	for _, v := range c.Views() {
		if !v.Visible {
			t.Fatalf("%s not visible after a full face", v.Slot)
		}
	}

	res := c.OnFrame(nil, mapper)
	if res.Hidden != 2 {
		t.Errorf("hidden = %d, want 2", res.Hidden)
	}
	for _, v := range c.Views() {
		if v.Visible || v.Geometry != nil {
			t.Errorf("%s: visible=%v geometry=%v after a miss", v.Slot, v.Visible, v.Geometry)
		}
	}
}

func TestCategorySwitch(t *testing.T) {
	backend := newRecordingBackend()
	c := newTestCompositor(t, backend)
	if err := c.Activate(Lipstick, DefaultStyle); err != nil {
		t.Fatal(err)
	}
	c.OnFrame(landmarktest.Face(), mapper)
	lip, _ := c.Slot(SlotLip)
	lipSession := c.Session()

	if err := c.Activate(Eyeliner, DefaultStyle); err != nil {
		t.Fatal(err)
	}
	if lip.State() != Destroyed || lip.View().Visible {
		t.Errorf("lip slot after switch: state=%v visible=%v", lip.State(), lip.View().Visible)
	}
	if _, ok := backend.attached[SlotLip]; ok {
		t.Error("lip slot still attached")
	}
	if c.Session() == lipSession {
		t.Error("switch must start a new session")
	}

	c.OnFrame(landmarktest.Face(), mapper)
	views := c.Views()
	if len(views) != 2 {
		t.Fatalf("%d views, want 2 eyeliner slots", len(views))
	}
	for _, v := range views {
		if v.Category != Eyeliner || !v.Visible {
			t.Errorf("view %s: category=%v visible=%v", v.Slot, v.Category, v.Visible)
		}
	}
	if lip.View().Frame != 1 {
		t.Error("destroyed lip slot received an update")
	}
}

func TestInsufficientPointsHidesOneSlot(t *testing.T) {
	c := newTestCompositor(t, nil)
	if err := c.Activate(Blush, DefaultStyle); err != nil {
		t.Fatal(err)
	}
	layout, _ := landmark.Resolve(landmark.MediaPipeFaceMesh())
	face := landmarktest.Drop(landmarktest.Face(), layout.RightCheek.Indices[:3]...)

	res := c.OnFrame(face, mapper)
	if res.Built != 1 || res.Hidden != 1 {
		t.Errorf("result = %+v, want 1 built 1 hidden", res)
	}
	right, _ := c.Slot(SlotRightBlush)
	left, _ := c.Slot(SlotLeftBlush)
	if right.View().Visible {
		t.Error("right blush visible with 4 cheek points")
	}
	if !left.View().Visible {
		t.Error("left blush hidden")
	}
}

func TestDoubleBuffer(t *testing.T) {
	c := newTestCompositor(t, nil)
	if err := c.Activate(Eyeliner, DefaultStyle); err != nil {
		t.Fatal(err)
	}
	s, _ := c.Slot(SlotLeftEyeliner)
	c.OnFrame(landmarktest.Face(), mapper)
	first := s.View()
	snapshot := first.Geometry.Clone()

	c.OnFrame(landmarktest.Translate(landmarktest.Face(), 10, 0), mapper)
	second := s.View()
	if first.Geometry == second.Geometry {
		t.Fatal("consecutive frames share a geometry buffer")
	}
	if first.Geometry.Ribbon.Outer[0] != snapshot.Ribbon.Outer[0] {
		t.Error("building the next frame mutated the published geometry")
	}
}

func TestDeactivate(t *testing.T) {
	backend := newRecordingBackend()
	c := newTestCompositor(t, backend)
	if err := c.Activate(Lipstick, DefaultStyle); err != nil {
		t.Fatal(err)
	}
	if err := c.Deactivate(); err != nil {
		t.Fatal(err)
	}
	if len(backend.attached) != 0 {
		t.Errorf("leaked slots: %v", backend.attached)
	}
	if c.Category() != None || len(c.Views()) != 0 {
		t.Error("compositor still active")
	}
	if err := c.Deactivate(); err != nil {
		t.Errorf("second Deactivate: %v", err)
	}
	if err := c.Activate(None, DefaultStyle); err != nil {
		t.Errorf("Activate(None): %v", err)
	}
}

func TestActivateRollsBack(t *testing.T) {
	backend := newRecordingBackend()
	backend.failOn = SlotLip
	c := newTestCompositor(t, backend)
	if err := c.Activate(Lipstick, DefaultStyle); err == nil {
		t.Fatal("expected attach failure")
	}
	if len(backend.attached) != 0 {
		t.Errorf("partially attached slots leaked: %v", backend.attached)
	}
	if c.Category() != None {
		t.Errorf("category = %v after failed activation", c.Category())
	}
}
