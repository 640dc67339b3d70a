// Package idle generates the always-on micro motion that keeps the character
// looking alive between commands: blinking, breathing, eye saccades and a
// slow head drift.
package idle

import (
	"math"
	"math/rand"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog"
)

// BlinkPhase is the position in the blink cycle.
type BlinkPhase int

const (
	BlinkIdle BlinkPhase = iota
	BlinkClosing
	BlinkClosed
	BlinkOpening
)

func (p BlinkPhase) String() string {
	switch p {
	case BlinkClosing:
		return "closing"
	case BlinkClosed:
		return "closed"
	case BlinkOpening:
		return "opening"
	default:
		return "idle"
	}
}

// Fractions of the blink spent in each phase.
const (
	closingShare = 0.4
	closedShare  = 0.1
	openingShare = 0.5
)

// inhaleShare is the part of the breath cycle spent inhaling.
const inhaleShare = 0.4

// saccadeSnap is the distance under which the pupils jump onto their target.
const saccadeSnap = 0.1

// State is the idle output for one frame.
type State struct {
	BlinkAmount  float64 `json:"blinkAmount"`
	IsBlinking   bool    `json:"isBlinking"`
	BreathPhase  float64 `json:"breathPhase"`
	BreathAmount float64 `json:"breathAmount"`
	PupilOffsetX float64 `json:"pupilOffsetX"`
	PupilOffsetY float64 `json:"pupilOffsetY"`
	HeadMicroX   float64 `json:"headMicroX"`
	HeadMicroY   float64 `json:"headMicroY"`
}

// Config tunes the idle generators. Durations are in seconds.
type Config struct {
	BlinkDuration    float64 `mapstructure:"blink_duration"`
	BlinkMinInterval float64 `mapstructure:"blink_min_interval"`
	BlinkMaxInterval float64 `mapstructure:"blink_max_interval"`

	BreathCycle float64 `mapstructure:"breath_cycle"`
	BreathScale float64 `mapstructure:"breath_scale"`

	SaccadeRange       float64 `mapstructure:"saccade_range"`
	SaccadeSpeed       float64 `mapstructure:"saccade_speed"`
	SaccadeMinInterval float64 `mapstructure:"saccade_min_interval"`
	SaccadeMaxInterval float64 `mapstructure:"saccade_max_interval"`

	// MicroAmplitude scales the head drift (radians).
	MicroAmplitude float64 `mapstructure:"micro_amplitude"`
}

// DefaultConfig returns the stock idle tuning.
func DefaultConfig() Config {
	return Config{
		BlinkDuration:      0.15,
		BlinkMinInterval:   2.0,
		BlinkMaxInterval:   5.0,
		BreathCycle:        3.5,
		BreathScale:        0.02,
		SaccadeRange:       3,
		SaccadeSpeed:       30,
		SaccadeMinInterval: 0.3,
		SaccadeMaxInterval: 1.5,
		MicroAmplitude:     mgl64.DegToRad(0.6),
	}
}

// Option configures a Controller.
type Option func(*Controller)

// WithRand injects the random source used for blink and saccade timing.
func WithRand(r *rand.Rand) Option {
	return func(c *Controller) { c.rng = r }
}

// WithConfig overrides the default tuning.
func WithConfig(cfg Config) Option {
	return func(c *Controller) { c.cfg = cfg }
}

// WithLogger sets the component logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Controller) { c.log = log }
}

// Controller runs the blink, breath, saccade and micro-noise generators.
// It is driven by Update and has no other inputs.
type Controller struct {
	cfg     Config
	rng     *rand.Rand
	log     zerolog.Logger
	enabled bool

	elapsed float64

	blinkPhase    BlinkPhase
	blinkProgress float64
	nextBlinkIn   float64

	pupil         mgl64.Vec2
	pupilTarget   mgl64.Vec2
	nextSaccadeIn float64

	state State
}

// New creates an enabled controller.
func New(opts ...Option) *Controller {
	c := &Controller{
		cfg:     DefaultConfig(),
		log:     zerolog.Nop(),
		enabled: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.rng == nil {
		c.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	c.Reset()
	return c
}

// SetEnabled turns the generators on or off. While disabled the state is
// frozen at its last value.
func (c *Controller) SetEnabled(enabled bool) {
	if c.enabled != enabled {
		c.log.Debug().Bool("enabled", enabled).Msg("idle animation toggled")
	}
	c.enabled = enabled
}

// Enabled reports whether Update advances the generators.
func (c *Controller) Enabled() bool { return c.enabled }

// SetConfig retunes the generators without resetting their phase.
func (c *Controller) SetConfig(cfg Config) { c.cfg = cfg }

// TriggerBlink starts a blink now. It does nothing mid-blink.
func (c *Controller) TriggerBlink() {
	if c.blinkPhase != BlinkIdle {
		return
	}
	c.blinkPhase = BlinkClosing
	c.blinkProgress = 0
}

// Update advances every generator by dt seconds.
func (c *Controller) Update(dt float64) {
	if !c.enabled || dt <= 0 || math.IsNaN(dt) {
		return
	}
	c.elapsed += dt

	c.updateBlink(dt)
	c.updateBreath()
	c.updateSaccade(dt)
	c.updateMicro()
}

func (c *Controller) updateBlink(dt float64) {
	total := c.cfg.BlinkDuration
	if total <= 0 {
		total = DefaultConfig().BlinkDuration
	}

	// A large dt may carry the blink through several phases in one frame.
	for dt > 0 {
		switch c.blinkPhase {
		case BlinkIdle:
			c.nextBlinkIn -= dt
			dt = 0
			if c.nextBlinkIn <= 0 {
				c.TriggerBlink()
			}
		case BlinkClosing:
			dt = c.advanceBlink(dt, total*closingShare, BlinkClosed)
		case BlinkClosed:
			dt = c.advanceBlink(dt, total*closedShare, BlinkOpening)
		case BlinkOpening:
			dt = c.advanceBlink(dt, total*openingShare, BlinkIdle)
			if c.blinkPhase == BlinkIdle {
				c.nextBlinkIn = c.uniform(c.cfg.BlinkMinInterval, c.cfg.BlinkMaxInterval)
				dt = 0
			}
		}
	}

	c.state.IsBlinking = c.blinkPhase != BlinkIdle
	c.state.BlinkAmount = c.blinkAmount()
}

// advanceBlink moves the current phase forward and returns the unused dt.
func (c *Controller) advanceBlink(dt, phaseLen float64, next BlinkPhase) float64 {
	remaining := (1 - c.blinkProgress) * phaseLen
	if dt < remaining {
		c.blinkProgress += dt / phaseLen
		return 0
	}
	c.blinkPhase = next
	c.blinkProgress = 0
	return dt - remaining
}

func (c *Controller) blinkAmount() float64 {
	switch c.blinkPhase {
	case BlinkClosing:
		return c.blinkProgress * c.blinkProgress
	case BlinkClosed:
		return 1
	case BlinkOpening:
		p := c.blinkProgress
		return 1 - p*(2-p)
	default:
		return 0
	}
}

func (c *Controller) updateBreath() {
	cycle := c.cfg.BreathCycle
	if cycle <= 0 {
		cycle = DefaultConfig().BreathCycle
	}
	phase := math.Mod(c.elapsed/cycle, 1)

	var curve float64
	if phase < inhaleShare {
		curve = math.Sin(phase / inhaleShare * math.Pi / 2)
	} else {
		curve = math.Cos((phase - inhaleShare) / (1 - inhaleShare) * math.Pi / 2)
	}

	c.state.BreathPhase = phase
	c.state.BreathAmount = (curve*2 - 1) * c.cfg.BreathScale
}

func (c *Controller) updateSaccade(dt float64) {
	c.nextSaccadeIn -= dt
	if c.nextSaccadeIn <= 0 {
		r := c.cfg.SaccadeRange
		c.pupilTarget = mgl64.Vec2{c.uniform(-r, r), c.uniform(-r, r)}
		c.nextSaccadeIn = c.uniform(c.cfg.SaccadeMinInterval, c.cfg.SaccadeMaxInterval)
	}

	delta := c.pupilTarget.Sub(c.pupil)
	dist := delta.Len()
	step := c.cfg.SaccadeSpeed * dt
	if dist <= saccadeSnap || dist <= step {
		c.pupil = c.pupilTarget
	} else {
		c.pupil = c.pupil.Add(delta.Mul(step / dist))
	}

	c.state.PupilOffsetX = c.pupil.X()
	c.state.PupilOffsetY = c.pupil.Y()
}

// updateMicro is a fixed sum of three sines per axis, so the drift is a pure
// function of elapsed time.
func (c *Controller) updateMicro() {
	t := c.elapsed
	amp := c.cfg.MicroAmplitude
	c.state.HeadMicroX = amp * (math.Sin(t*0.7)*0.5 + math.Sin(t*1.3+1.1)*0.3 + math.Sin(t*2.9+2.3)*0.2)
	c.state.HeadMicroY = amp * (math.Sin(t*0.5+0.4)*0.5 + math.Sin(t*1.7+2.0)*0.3 + math.Sin(t*3.3+0.9)*0.2)
}

func (c *Controller) uniform(lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + c.rng.Float64()*(hi-lo)
}

// State returns the current idle output.
func (c *Controller) State() State { return c.state }

// BlinkPhase returns the current blink phase.
func (c *Controller) BlinkPhase() BlinkPhase { return c.blinkPhase }

// Elapsed returns the seconds the generators have run.
func (c *Controller) Elapsed() float64 { return c.elapsed }

// Reset returns every generator to rest and schedules the next blink and
// saccade.
func (c *Controller) Reset() {
	c.elapsed = 0
	c.blinkPhase = BlinkIdle
	c.blinkProgress = 0
	c.nextBlinkIn = c.uniform(c.cfg.BlinkMinInterval, c.cfg.BlinkMaxInterval)
	c.pupil = mgl64.Vec2{}
	c.pupilTarget = mgl64.Vec2{}
	c.nextSaccadeIn = c.uniform(c.cfg.SaccadeMinInterval, c.cfg.SaccadeMaxInterval)
	c.state = State{}
}
