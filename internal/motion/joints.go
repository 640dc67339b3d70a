package motion

import "math"

// JointID identifies an animated joint.
type JointID int

const (
	HeadPivot JointID = iota
	Neck
	JointCount
)

var jointNames = [JointCount]string{"headPivot", "neck"}

func (j JointID) String() string {
	if j < 0 || j >= JointCount {
		return "unknown"
	}
	return jointNames[j]
}

// settleEpsilon is the per-joint distance under which a joint counts as
// settled.
const settleEpsilon = 1e-3

// Joint is the spring state of a single rotational joint (radians).
type Joint struct {
	Current   float64 `json:"current"`
	Target    float64 `json:"target"`
	Velocity  float64 `json:"velocity"`
	Stiffness float64 `json:"stiffness"`
	Damping   float64 `json:"damping"`
	Mass      float64 `json:"mass"`
}

// JointParams are the physical spring parameters of a joint.
type JointParams struct {
	Stiffness float64 `mapstructure:"stiffness"`
	Damping   float64 `mapstructure:"damping"`
	Mass      float64 `mapstructure:"mass"`
}

// DefaultJointParams returns the tuning for each joint. The neck is heavier
// and softer than the head pivot so it trails behind.
func DefaultJointParams() map[JointID]JointParams {
	return map[JointID]JointParams{
		HeadPivot: {Stiffness: 120, Damping: 18, Mass: 1.0},
		Neck:      {Stiffness: 80, Damping: 16, Mass: 1.5},
	}
}

// JointAnimator owns the spring state of every joint in one table keyed by
// JointID. Views are lookups; nothing else holds a reference to a Joint.
type JointAnimator struct {
	joints [JointCount]Joint
}

// NewJointAnimator creates an animator with the given parameters. Joints
// missing from params use DefaultJointParams.
func NewJointAnimator(params map[JointID]JointParams) *JointAnimator {
	defaults := DefaultJointParams()
	ja := &JointAnimator{}
	for id := JointID(0); id < JointCount; id++ {
		p, ok := params[id]
		if !ok {
			p = defaults[id]
		}
		ja.joints[id] = Joint{Stiffness: p.Stiffness, Damping: p.Damping, Mass: p.Mass}
	}
	return ja
}

// SetParams retunes a joint without touching its motion state.
func (ja *JointAnimator) SetParams(id JointID, p JointParams) {
	if id < 0 || id >= JointCount {
		return
	}
	j := &ja.joints[id]
	j.Stiffness, j.Damping, j.Mass = p.Stiffness, p.Damping, p.Mass
}

// SetTarget stores a new target angle. The joint moves toward it on Update.
func (ja *JointAnimator) SetTarget(id JointID, angle float64) {
	if id < 0 || id >= JointCount {
		return
	}
	ja.joints[id].Target = angle
}

// Update advances every joint by dt seconds.
func (ja *JointAnimator) Update(dt float64) {
	dt = ClampDelta(dt)
	if dt <= 0 {
		return
	}
	for i := range ja.joints {
		j := &ja.joints[i]
		st := SmoothTimeFor(j.Stiffness, j.Damping, j.Mass)
		j.Current, j.Velocity = SpringStep(j.Current, j.Target, j.Velocity, st, dt)
	}
}

// IsAnimating reports whether any joint is still away from its target.
func (ja *JointAnimator) IsAnimating() bool {
	for _, j := range ja.joints {
		if math.Abs(j.Current-j.Target) > settleEpsilon {
			return true
		}
	}
	return false
}

// Joint returns a copy of a joint's state.
func (ja *JointAnimator) Joint(id JointID) (Joint, bool) {
	if id < 0 || id >= JointCount {
		return Joint{}, false
	}
	return ja.joints[id], true
}

// Joints returns a copy of every joint keyed by name.
func (ja *JointAnimator) Joints() map[string]Joint {
	out := make(map[string]Joint, JointCount)
	for id := JointID(0); id < JointCount; id++ {
		out[id.String()] = ja.joints[id]
	}
	return out
}

// Reset snaps every joint to rest.
func (ja *JointAnimator) Reset() {
	for i := range ja.joints {
		j := &ja.joints[i]
		j.Current, j.Target, j.Velocity = 0, 0, 0
	}
}
