// Package replay records landmark detections to JSON Lines and plays them
// back through the pipeline without a camera or models.
//
// A recording starts with one header line followed by one line per frame:
//
//	{"version":1,"session":"…","topology":"mediapipe-facemesh","width":640,"height":480}
//	{"seq":1,"width":640,"height":480,"faces":[[[x,y],…]]}
//
// An empty faces list records a miss.
package replay

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dudu/glamface/internal/landmark"
)

// Version is the recording format version written and accepted
const Version = 1

var (
	ErrVersion = errors.New("unsupported recording version")
	ErrHeader  = errors.New("invalid recording header")
	ErrRecord  = errors.New("invalid frame record")
)

// Header is the first line of a recording
type Header struct {
	Version  int       `json:"version"`
	Session  uuid.UUID `json:"session"`
	Topology string    `json:"topology"`
	Width    int       `json:"width"`
	Height   int       `json:"height"`
}

func (h Header) validate() error {
	if h.Version != Version {
		return fmt.Errorf("%w: %d", ErrVersion, h.Version)
	}
	if h.Topology == "" {
		return fmt.Errorf("%w: missing topology", ErrHeader)
	}
	if h.Width <= 0 || h.Height <= 0 {
		return fmt.Errorf("%w: frame size %dx%d", ErrHeader, h.Width, h.Height)
	}
	return nil
}

// Record is one recorded frame. Landmark points are pixel coordinates in
// topology index order, null where the detector gave no position.
type Record struct {
	Seq    uint64          `json:"seq"`
	Width  int             `json:"width"`
	Height int             `json:"height"`
	Faces  [][]*[2]float64 `json:"faces"`
}

// Face returns the first recorded face, nil for a miss
func (r *Record) Face() *landmark.Face {
	if len(r.Faces) == 0 || len(r.Faces[0]) == 0 {
		return nil
	}
	f := &landmark.Face{Landmarks: make([]landmark.Landmark, 0, len(r.Faces[0]))}
	for i, p := range r.Faces[0] {
		if p == nil {
			continue
		}
		f.Landmarks = append(f.Landmarks, landmark.Landmark{Index: i, X: p[0], Y: p[1]})
	}
	if len(f.Landmarks) == 0 {
		return nil
	}
	return f
}

// NewRecord captures face for frame seq. Points are laid out by landmark
// index, indices the face lacks are written as null.
func NewRecord(seq uint64, width, height int, face *landmark.Face) (Record, error) {
	rec := Record{Seq: seq, Width: width, Height: height, Faces: [][]*[2]float64{}}
	if face.Len() == 0 {
		return rec, nil
	}
	n := 0
	for _, lm := range face.Landmarks {
		if lm.Index < 0 {
			return Record{}, fmt.Errorf("%w: negative landmark index %d", ErrRecord, lm.Index)
		}
		n = max(n, lm.Index+1)
	}
	pts := make([]*[2]float64, n)
	for _, lm := range face.Landmarks {
		pts[lm.Index] = &[2]float64{lm.X, lm.Y}
	}
	rec.Faces = append(rec.Faces, pts)
	return rec, nil
}
