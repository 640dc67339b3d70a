package expression

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/normanking/ragdoll/internal/motion"
)

const (
	// DefaultMoodTransition is used when SetMood gets no duration.
	DefaultMoodTransition = 0.35

	// MinMoodTransition is the shortest mood change allowed (seconds).
	MinMoodTransition = 0.05
)

// Controller eases between mood presets and lays the gesture overlay on top.
type Controller struct {
	action *ActionController
	log    zerolog.Logger

	mood         Mood
	previousMood Mood

	from     Config
	target   Config
	current  Config
	progress float64
	duration float64
}

// NewController creates a controller resting on the neutral face. action may
// be nil.
func NewController(action *ActionController, log zerolog.Logger) *Controller {
	if action == nil {
		action = NewActionController(nil)
	}
	neutral := Preset(MoodNeutral)
	return &Controller{
		action:       action,
		log:          log,
		mood:         MoodNeutral,
		previousMood: MoodNeutral,
		from:         neutral,
		target:       neutral,
		current:      neutral,
		progress:     1,
		duration:     DefaultMoodTransition,
	}
}

// SetMood starts a transition to m. It is a no-op when m is already the
// current mood or is unknown, and reports whether a transition started.
func (c *Controller) SetMood(m Mood, duration float64) bool {
	if m == c.mood || !m.Valid() {
		return false
	}
	if duration <= 0 || math.IsNaN(duration) {
		duration = DefaultMoodTransition
	}

	c.previousMood = c.mood
	c.mood = m
	c.from = Preset(c.previousMood)
	c.target = Preset(m)
	c.duration = math.Max(MinMoodTransition, duration)
	c.progress = 0

	c.log.Debug().Str("from", string(c.previousMood)).Str("to", string(m)).Float64("duration", c.duration).Msg("mood transition")
	return true
}

// SetMoodImmediate jumps to m without easing.
func (c *Controller) SetMoodImmediate(m Mood) bool {
	if !m.Valid() {
		return false
	}
	if m != c.mood {
		c.previousMood = c.mood
		c.mood = m
	}
	c.target = Preset(m)
	c.from = c.target
	c.current = c.target
	c.progress = 1
	return true
}

// Update advances the gesture controller and then the mood transition.
func (c *Controller) Update(dt float64) {
	c.action.Update(dt)
	if dt > 0 && c.progress < 1 {
		c.progress = math.Min(1, c.progress+dt/c.duration)
		if c.progress >= 1 {
			c.current = c.target
		} else {
			c.current = c.from.Lerp(&c.target, motion.EaseInOutCubic(c.progress))
		}
	}
}

// Current returns the eased expression without the gesture overlay.
func (c *Controller) Current() Config { return c.current }

// Target returns the preset being approached.
func (c *Controller) Target() Config { return c.target }

// ExpressionWithAction returns the current expression with the gesture
// overlay applied. Overlay fields replace the base values.
func (c *Controller) ExpressionWithAction() Config {
	return c.action.ExpressionOverlay(c.current).Apply(c.current)
}

// Mood returns the current mood.
func (c *Controller) Mood() Mood { return c.mood }

// PreviousMood returns the mood the current transition started from.
func (c *Controller) PreviousMood() Mood { return c.previousMood }

// Progress returns transition progress in [0,1].
func (c *Controller) Progress() float64 { return c.progress }

// IsTransitioning reports whether a mood change is still easing.
func (c *Controller) IsTransitioning() bool { return c.progress < 1 }

// Action returns the gesture controller.
func (c *Controller) Action() *ActionController { return c.action }
