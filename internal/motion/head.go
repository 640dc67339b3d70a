package motion

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Head rotation limits (radians).
var (
	MaxYaw   = mgl64.DegToRad(35)
	MaxPitch = mgl64.DegToRad(20)
)

const (
	// MinHeadTransition is the floor for a head transition duration (seconds).
	MinHeadTransition = 0.08

	// DefaultHeadTransition is used when a caller passes no duration.
	DefaultHeadTransition = 0.3
)

// HeadPose is a two-axis head orientation in radians.
type HeadPose struct {
	Yaw   float64 `json:"yaw"`
	Pitch float64 `json:"pitch"`
}

// Clamp returns p limited to the legal head range.
func (p HeadPose) Clamp() HeadPose {
	return HeadPose{
		Yaw:   clampYaw(p.Yaw),
		Pitch: clampPitch(p.Pitch),
	}
}

// PartialPose names the axes a command wants to change. Nil axes are left
// as they are.
type PartialPose struct {
	Yaw   *float64 `json:"yaw,omitempty"`
	Pitch *float64 `json:"pitch,omitempty"`
}

// Yaw and Pitch build single-axis partial poses.
func Yaw(v float64) PartialPose   { return PartialPose{Yaw: &v} }
func Pitch(v float64) PartialPose { return PartialPose{Pitch: &v} }

// Pose builds a partial pose with both axes set.
func Pose(yaw, pitch float64) PartialPose {
	return PartialPose{Yaw: &yaw, Pitch: &pitch}
}

func clampYaw(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return mgl64.Clamp(v, -MaxYaw, MaxYaw)
}

func clampPitch(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return mgl64.Clamp(v, -MaxPitch, MaxPitch)
}

// HeadPoseController eases the head toward a target pose with the spring
// step and mirrors the result onto the joints: the neck turns (yaw) and the
// head pivot nods (pitch).
type HeadPoseController struct {
	joints *JointAnimator

	current  HeadPose
	target   HeadPose
	velocity HeadPose
	duration float64
}

// NewHeadPoseController creates a controller writing to joints. joints may
// be nil when only the pose itself is needed.
func NewHeadPoseController(joints *JointAnimator) *HeadPoseController {
	return &HeadPoseController{
		joints:   joints,
		duration: DefaultHeadTransition,
	}
}

// SetTargetPose retargets the provided axes. Velocity is preserved so rapid
// command streams re-target smoothly.
func (h *HeadPoseController) SetTargetPose(p PartialPose, duration float64) {
	if p.Yaw != nil {
		h.target.Yaw = clampYaw(*p.Yaw)
	}
	if p.Pitch != nil {
		h.target.Pitch = clampPitch(*p.Pitch)
	}
	h.duration = transitionDuration(duration)
}

// Nudge offsets the current target, so consecutive nudges accumulate.
func (h *HeadPoseController) Nudge(delta PartialPose, duration float64) {
	next := PartialPose{}
	if delta.Yaw != nil {
		y := h.target.Yaw + *delta.Yaw
		next.Yaw = &y
	}
	if delta.Pitch != nil {
		p := h.target.Pitch + *delta.Pitch
		next.Pitch = &p
	}
	h.SetTargetPose(next, duration)
}

// LookForward retargets both axes to zero.
func (h *HeadPoseController) LookForward(duration float64) {
	h.SetTargetPose(Pose(0, 0), duration)
}

// Update advances both axes independently and writes the smoothed pose as
// the joint targets. The joints follow with their own springs, so the neck
// and head pivot trail the pose by their stiffness and mass. Current is the
// pose without that lag.
func (h *HeadPoseController) Update(dt float64) {
	dt = ClampDelta(dt)
	if dt > 0 {
		st := math.Max(MinHeadTransition, h.duration)
		h.current.Yaw, h.velocity.Yaw = SpringStep(h.current.Yaw, h.target.Yaw, h.velocity.Yaw, st, dt)
		h.current.Pitch, h.velocity.Pitch = SpringStep(h.current.Pitch, h.target.Pitch, h.velocity.Pitch, st, dt)
	}

	if h.joints != nil {
		h.joints.SetTarget(Neck, h.current.Yaw)
		h.joints.SetTarget(HeadPivot, h.current.Pitch)
	}
}

// Current returns the smoothed pose.
func (h *HeadPoseController) Current() HeadPose { return h.current }

// Target returns the pose being approached.
func (h *HeadPoseController) Target() HeadPose { return h.target }

// Duration returns the active transition duration.
func (h *HeadPoseController) Duration() float64 { return h.duration }

// IsSettled reports whether the current pose has reached the target.
func (h *HeadPoseController) IsSettled() bool {
	return math.Abs(h.current.Yaw-h.target.Yaw) <= settleEpsilon &&
		math.Abs(h.current.Pitch-h.target.Pitch) <= settleEpsilon
}

// Reset snaps the head to the forward rest pose.
func (h *HeadPoseController) Reset() {
	h.current, h.target, h.velocity = HeadPose{}, HeadPose{}, HeadPose{}
	h.duration = DefaultHeadTransition
}

func transitionDuration(d float64) float64 {
	if d <= 0 || math.IsNaN(d) {
		d = DefaultHeadTransition
	}
	return math.Max(MinHeadTransition, d)
}
