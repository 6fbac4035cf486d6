package landmark

// Topology describes the keypoint layout of a landmark model: how many
// keypoints it emits and the named index groups tracing anatomical features.
type Topology struct {
	Name      string
	Landmarks int
	Groups    map[string][]int
}

// Group names the resolver expects in a topology
const (
	GroupLipsUpperOuter = "lipsUpperOuter"
	GroupLipsLowerOuter = "lipsLowerOuter"
	GroupLipsUpperInner = "lipsUpperInner"
	GroupLipsLowerInner = "lipsLowerInner"
	GroupRightEyeUpper  = "rightEyeUpper0"
	GroupRightEyeLower  = "rightEyeLower0"
	GroupLeftEyeUpper   = "leftEyeUpper0"
	GroupLeftEyeLower   = "leftEyeLower0"
	GroupRightCheek     = "rightCheek"
	GroupLeftCheek      = "leftCheek"
	GroupSilhouette     = "silhouette"
)

// MediaPipeFaceMeshName identifies the 468-point face mesh topology
const MediaPipeFaceMeshName = "mediapipe-facemesh"

// MediaPipeFaceMesh returns the 468-point MediaPipe face mesh topology.
// Lip and eye groups follow the MediaPipe mesh annotations: lip arcs run
// from the subject's right mouth corner (61 outer, 78 inner) to the left
// corner (291, 308); lower eyelid arcs run corner to corner and upper eyelid
// arcs hold only the points between the corners.
func MediaPipeFaceMesh() Topology {
	return Topology{
		Name:      MediaPipeFaceMeshName,
		Landmarks: 468,
		Groups: map[string][]int{
			GroupLipsUpperOuter: {61, 185, 40, 39, 37, 0, 267, 269, 270, 409, 291},
			GroupLipsLowerOuter: {146, 91, 181, 84, 17, 314, 405, 321, 375, 291},
			GroupLipsUpperInner: {78, 191, 80, 81, 82, 13, 312, 311, 310, 415, 308},
			GroupLipsLowerInner: {78, 95, 88, 178, 87, 14, 317, 402, 318, 324, 308},
			GroupRightEyeUpper:  {246, 161, 160, 159, 158, 157, 173},
			GroupRightEyeLower:  {33, 7, 163, 144, 145, 153, 154, 155, 133},
			GroupLeftEyeUpper:   {466, 388, 387, 386, 385, 384, 398},
			GroupLeftEyeLower:   {263, 249, 390, 373, 374, 380, 381, 382, 362},
			GroupRightCheek:     {205, 36, 101, 118, 123, 147, 187},
			GroupLeftCheek:      {330, 347, 352, 376, 411, 425, 266},
			GroupSilhouette: {
				10, 338, 297, 332, 284, 251, 389, 356, 454, 323, 361, 288,
				397, 365, 379, 378, 400, 377, 152, 148, 176, 149, 150, 136,
				172, 58, 132, 93, 234, 127, 162, 21, 54, 103, 67, 109,
			},
		},
	}
}
