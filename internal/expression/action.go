package expression

import (
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/normanking/ragdoll/internal/motion"
)

// ActionName names a timed gesture.
type ActionName string

const (
	ActionWink  ActionName = "wink"
	ActionTalk  ActionName = "talk"
	ActionShake ActionName = "shake"
)

// Valid reports whether n is a known gesture.
func (n ActionName) Valid() bool {
	switch n {
	case ActionWink, ActionTalk, ActionShake:
		return true
	}
	return false
}

const (
	// DefaultActionDuration is used when a gesture is triggered without one.
	DefaultActionDuration = 0.6

	// MinActionDuration is the shortest gesture allowed (seconds).
	MinActionDuration = 0.2
)

// Gesture curve constants.
const (
	shakeCycles    = 3
	shakeYawShare  = 0.4
	winkCloseShare = 0.3
	winkCheekRaise = 0.3
	talkBaseOpen   = 0.12
	talkOpenRange  = 0.3
	talkFade       = 0.08
)

// ActionState is the active gesture. Start increases with every trigger, so
// a restarted gesture is distinguishable from one still running.
type ActionState struct {
	Name     ActionName `json:"name"`
	Start    uint64     `json:"start"`
	Elapsed  float64    `json:"elapsed"`
	Duration float64    `json:"duration"`
}

// Progress returns elapsed/duration in [0,1].
func (a ActionState) Progress() float64 {
	if a.Duration <= 0 {
		return 1
	}
	return clamp01(a.Elapsed / a.Duration)
}

// HeadPoser is the part of the head controller a shake drives.
type HeadPoser interface {
	SetTargetPose(p motion.PartialPose, duration float64)
	LookForward(duration float64)
}

// ActionOption configures an ActionController.
type ActionOption func(*ActionController)

// WithActionRand injects the source for talk phase jitter.
func WithActionRand(r *rand.Rand) ActionOption {
	return func(a *ActionController) { a.rng = r }
}

// WithActionLogger sets the component logger.
func WithActionLogger(log zerolog.Logger) ActionOption {
	return func(a *ActionController) { a.log = log }
}

// ActionController holds at most one gesture. Triggering a new gesture
// replaces the old one.
type ActionController struct {
	head   HeadPoser
	rng    *rand.Rand
	log    zerolog.Logger
	active *ActionState
	starts uint64

	// talk jitter, drawn once per talk
	jitterA float64
	jitterB float64
}

// NewActionController creates a controller. head may be nil, in which case a
// shake only shows up in the action state.
func NewActionController(head HeadPoser, opts ...ActionOption) *ActionController {
	a := &ActionController{head: head, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(a)
	}
	if a.rng == nil {
		a.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return a
}

// TriggerAction starts a gesture, replacing any active one. A non-positive
// duration selects the default; shorter ones are raised to the minimum.
// Unknown gestures are ignored and reported as false.
func (a *ActionController) TriggerAction(name ActionName, duration float64) bool {
	if !name.Valid() {
		a.log.Warn().Str("action", string(name)).Msg("ignoring unknown action")
		return false
	}
	if duration <= 0 || math.IsNaN(duration) {
		duration = DefaultActionDuration
	}
	duration = math.Max(MinActionDuration, duration)

	if name == ActionTalk {
		a.jitterA = a.rng.Float64() * 2 * math.Pi
		a.jitterB = a.rng.Float64() * 2 * math.Pi
	}
	a.starts++
	a.active = &ActionState{Name: name, Start: a.starts, Duration: duration}
	a.log.Debug().Str("action", string(name)).Float64("duration", duration).Msg("action started")
	return true
}

// ClearAction ends the active gesture. Clearing a shake sends the head back
// to center. Returns false when nothing was active.
func (a *ActionController) ClearAction() bool {
	if a.active == nil {
		return false
	}
	a.finish()
	return true
}

func (a *ActionController) finish() {
	name := a.active.Name
	a.active = nil
	if name == ActionShake && a.head != nil {
		a.head.LookForward(motion.DefaultHeadTransition)
	}
	a.log.Debug().Str("action", string(name)).Msg("action finished")
}

// Update advances the active gesture by dt seconds.
func (a *ActionController) Update(dt float64) {
	if a.active == nil || dt <= 0 || math.IsNaN(dt) {
		return
	}
	a.active.Elapsed += dt
	if a.active.Elapsed >= a.active.Duration {
		a.finish()
		return
	}

	if a.active.Name == ActionShake && a.head != nil {
		a.head.SetTargetPose(motion.Yaw(ShakeYaw(a.active.Progress())), motion.MinHeadTransition)
	}
}

// ShakeYaw is the head yaw of a shake at progress p.
func ShakeYaw(p float64) float64 {
	return math.Sin(p*shakeCycles*2*math.Pi) * shakeYawShare * motion.MaxYaw * motion.EaseOutCubic(p)
}

// winkCurve rises fast to 1 and falls back slowly to 0.
func winkCurve(p float64) float64 {
	if p < winkCloseShare {
		return motion.EaseInSine(p / winkCloseShare)
	}
	return math.Cos((p - winkCloseShare) / (1 - winkCloseShare) * math.Pi / 2)
}

// ExpressionOverlay returns the fields the active gesture overrides on top of
// base. It does not change any state.
func (a *ActionController) ExpressionOverlay(base Config) Patch {
	if a.active == nil {
		return Patch{}
	}
	p := a.active.Progress()

	switch a.active.Name {
	case ActionWink:
		c := winkCurve(p)
		return Patch{
			LeftEyeOpenness: base[LeftEyeOpenness] * (1 - c),
			LeftCheekPuff:   base[LeftCheekPuff] + winkCheekRaise*c,
		}

	case ActionTalk:
		t := a.active.Elapsed
		wave := 0.6*math.Sin(t*2*math.Pi*4.3+a.jitterA) + 0.4*math.Sin(t*2*math.Pi*7.1+a.jitterB)
		envelope := math.Min(1, math.Min(p/talkFade, (1-p)/talkFade))
		open := (talkBaseOpen + talkOpenRange*(wave*0.5+0.5)) * envelope
		return Patch{
			MouthOpenness: math.Max(base[MouthOpenness], open),
			MouthWidth:    base[MouthWidth] - 0.1*open,
		}
	}
	return Patch{}
}

// ActiveAction returns a copy of the active gesture, or nil.
func (a *ActionController) ActiveAction() *ActionState {
	if a.active == nil {
		return nil
	}
	cp := *a.active
	return &cp
}

// IsTalking reports whether the talk gesture is active.
func (a *ActionController) IsTalking() bool {
	return a.active != nil && a.active.Name == ActionTalk
}

// ActionProgress returns the active gesture's progress, 0 when idle.
func (a *ActionController) ActionProgress() float64 {
	if a.active == nil {
		return 0
	}
	return a.active.Progress()
}

// ActionElapsed returns seconds since the gesture started, 0 when idle.
func (a *ActionController) ActionElapsed() float64 {
	if a.active == nil {
		return 0
	}
	return a.active.Elapsed
}
