// Package ragdoll composes the animation and state components into the
// character controller: one command surface, one per-frame Update, and the
// snapshots renderers draw from.
package ragdoll

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/normanking/ragdoll/internal/bus"
	"github.com/normanking/ragdoll/internal/expression"
	"github.com/normanking/ragdoll/internal/idle"
	"github.com/normanking/ragdoll/internal/motion"
	"github.com/normanking/ragdoll/internal/state"
	"github.com/normanking/ragdoll/internal/tasks"
	"github.com/normanking/ragdoll/internal/timer"
)

// Options configures a Controller. The zero value is usable.
type Options struct {
	Logger      zerolog.Logger
	Rand        *rand.Rand
	Clock       func() time.Time
	JointParams map[motion.JointID]motion.JointParams
	Idle        *idle.Config

	SessionMinutes float64
	BreakMinutes   float64
	HistorySize    int

	Theme   string
	Variant string

	// TimerSelfTick makes the timer plugin poll the timer from Update. Hosts
	// that drive the timer from their own ticker leave it off.
	TimerSelfTick bool

	// NoBuiltinPlugins skips registering the timer and task list plugins.
	NoBuiltinPlugins bool
}

// Controller owns every sub-controller. It is single-goroutine: commands
// and Update must come from the same goroutine.
type Controller struct {
	log zerolog.Logger

	joints  *motion.JointAnimator
	head    *motion.HeadPoseController
	idle    *idle.Controller
	actions *expression.ActionController
	expr    *expression.Controller
	timer   *timer.Timer
	tasks   *tasks.List
	bus     *bus.Bus
	state   *state.Manager

	plugins     map[string]Plugin
	pluginOrder []string

	theme   string
	variant string
}

// New builds a controller and registers the built-in plugins.
func New(opts Options) *Controller {
	log := opts.Logger
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	c := &Controller{
		log:     log,
		plugins: make(map[string]Plugin),
	}

	c.joints = motion.NewJointAnimator(opts.JointParams)
	c.head = motion.NewHeadPoseController(c.joints)

	idleOpts := []idle.Option{idle.WithRand(rng), idle.WithLogger(log.With().Str("component", "idle").Logger())}
	if opts.Idle != nil {
		idleOpts = append(idleOpts, idle.WithConfig(*opts.Idle))
	}
	c.idle = idle.New(idleOpts...)

	c.actions = expression.NewActionController(c.head,
		expression.WithActionRand(rng),
		expression.WithActionLogger(log.With().Str("component", "action").Logger()))
	c.expr = expression.NewController(c.actions, log.With().Str("component", "expression").Logger())

	c.timer = timer.New(
		timer.WithClock(now),
		timer.WithDefaults(opts.SessionMinutes, opts.BreakMinutes),
		timer.WithLogger(log.With().Str("component", "timer").Logger()))
	c.tasks = tasks.New(
		tasks.WithClock(now),
		tasks.WithLogger(log.With().Str("component", "tasks").Logger()))
	c.bus = bus.New(
		bus.WithClock(now),
		bus.WithHistorySize(opts.HistorySize),
		bus.WithLogger(log.With().Str("component", "bus").Logger()))
	c.state = state.NewManager(c.bus, log.With().Str("component", "state").Logger())

	c.theme, _ = resolveTheme(opts.Theme)
	c.variant = resolveVariant(opts.Variant).Name

	if !opts.NoBuiltinPlugins {
		c.RegisterPlugin(&TimerPlugin{SelfTick: opts.TimerSelfTick})
		c.RegisterPlugin(&ListPlugin{})
	}
	return c
}

// ExecuteCommand applies a command. Out-of-range values are clamped; the
// only error is ErrUnknownCommand for a command this controller cannot run.
func (c *Controller) ExecuteCommand(cmd Command) error {
	switch cmd := cmd.(type) {
	case SetMood:
		mood, ok := expression.ParseMood(cmd.Mood)
		if !ok {
			c.log.Warn().Str("mood", cmd.Mood).Msg("ignoring unknown mood")
			break
		}
		c.SetMood(mood, cmd.Duration)
	case TriggerAction:
		c.TriggerAction(expression.ActionName(strings.ToLower(cmd.Action)), cmd.Duration)
	case ClearAction:
		c.ClearAction()
	case SetHeadPose:
		c.head.SetTargetPose(motion.PartialPose{Yaw: cmd.Yaw, Pitch: cmd.Pitch}, cmd.Duration)
		c.state.SetHeadTarget(c.head.Target())
	case NudgeHead:
		c.head.Nudge(motion.PartialPose{Yaw: cmd.Yaw, Pitch: cmd.Pitch}, cmd.Duration)
		c.state.SetHeadTarget(c.head.Target())
	case SetSpeechBubble:
		c.SetSpeechBubble(cmd.Text, state.ParseTone(cmd.Tone))

	case TimerStart:
		c.timer.Start(cmd.SessionMinutes, cmd.BreakMinutes)
	case TimerPause:
		c.timer.Pause()
	case TimerReset:
		c.timer.Reset()

	case AddTask:
		c.tasks.AddTask(cmd.Text, tasks.Status(cmd.Status))
	case UpdateTaskStatus:
		c.tasks.UpdateTaskStatus(cmd.ID, tasks.Status(cmd.Status), cmd.BlockedReason)
	case SetActiveTask:
		c.tasks.SetActiveTask(cmd.ID)
	case RemoveTask:
		c.tasks.RemoveTask(cmd.ID)
	case CompleteActiveTask:
		c.tasks.CompleteActiveTask()
	case ClearCompleted:
		c.tasks.ClearCompleted()
	case ClearAll:
		c.tasks.ClearAll()
	case ExpandTasks:
		c.tasks.Expand()
	case CollapseTasks:
		c.tasks.Collapse()
	case ToggleTasks:
		c.tasks.Toggle()

	default:
		return fmt.Errorf("%w: %T", ErrUnknownCommand, cmd)
	}
	c.syncState()
	return nil
}

// Dispatch runs a named action with loosely typed arguments.
func (c *Controller) Dispatch(name string, args map[string]any) error {
	cmd, err := CommandFromArgs(name, args)
	if err != nil {
		return err
	}
	return c.ExecuteCommand(cmd)
}

// SetMood starts a mood transition. Repeating the current mood does nothing.
func (c *Controller) SetMood(m expression.Mood, duration float64) {
	c.expr.SetMood(m, duration)
	c.state.SetMood(c.expr.Mood())
}

// TriggerAction starts a gesture.
func (c *Controller) TriggerAction(name expression.ActionName, duration float64) {
	c.actions.TriggerAction(name, duration)
	c.state.SetAction(c.actions.ActiveAction())
}

// ClearAction ends the active gesture.
func (c *Controller) ClearAction() {
	c.actions.ClearAction()
	c.state.SetAction(nil)
}

// SetSpeechBubble shows text and starts talking for its reading time,
// restarting the talk if one is running. A nil or blank text hides the
// bubble and stops talking.
func (c *Controller) SetSpeechBubble(text *string, tone state.Tone) {
	if text != nil && strings.TrimSpace(*text) == "" {
		text = nil
	}
	if text != nil {
		c.actions.TriggerAction(expression.ActionTalk, ReadingTime(*text))
	} else if c.actions.IsTalking() {
		c.actions.ClearAction()
	}
	c.state.SetSpeechBubble(state.SpeechBubble{Text: text, Tone: tone})
	c.state.SetAction(c.actions.ActiveAction())
}

// Say is SetSpeechBubble with the default tone.
func (c *Controller) Say(text string) {
	c.SetSpeechBubble(&text, state.ToneDefault)
}

// Update advances one frame: gesture and expression, head, idle, joints,
// plugins, then republishes the state.
func (c *Controller) Update(dt float64) {
	dt = motion.ClampDelta(dt)

	c.expr.Update(dt)
	c.head.Update(dt)
	c.idle.Update(dt)
	c.joints.Update(dt)

	for _, name := range c.pluginOrder {
		if u, ok := c.plugins[name].(Updater); ok {
			u.Update(dt)
		}
	}
	c.syncState()
}

func (c *Controller) syncState() {
	active := c.actions.ActiveAction()
	c.state.SetMood(c.expr.Mood())
	c.state.SetAction(active)
	c.state.SetHeadPose(c.head.Current(), c.head.IsSettled())
	c.state.SetJoints(c.joints.Joints())

	anim := state.Animation{ActionProgress: c.actions.ActionProgress(), IsTalking: c.actions.IsTalking()}
	if active != nil {
		name := active.Name
		anim.Action = &name
	}
	c.state.SetAnimation(anim)
}

// Reset returns the character to rest. Timer and task list are untouched.
func (c *Controller) Reset() {
	c.actions.ClearAction()
	c.expr.SetMoodImmediate(expression.MoodNeutral)
	c.head.Reset()
	c.joints.Reset()
	c.idle.Reset()
	c.state.Reset()
}

// State returns a copy of the character state.
func (c *Controller) State() state.CharacterState { return c.state.State() }

// ExpressionWithAction returns the rendered face: mood, gesture overlay,
// blink and pupil saccade.
func (c *Controller) ExpressionWithAction() expression.Config {
	in := c.idle.State()
	expr := c.expr.ExpressionWithAction()
	expr = expression.ApplyBlink(expr, in.BlinkAmount)
	return expression.ApplyPupilOffset(expr, in.PupilOffsetX, in.PupilOffsetY)
}

// IdleState returns the idle generator output.
func (c *Controller) IdleState() idle.State { return c.idle.State() }

// TimerSnapshot returns the timer view.
func (c *Controller) TimerSnapshot() timer.Snapshot { return c.timer.Snapshot() }

// TaskSnapshot returns the task list view.
func (c *Controller) TaskSnapshot() tasks.Snapshot { return c.tasks.Snapshot() }

// IsAnimating reports whether anything is still moving, so hosts can skip
// redraws when it is false.
func (c *Controller) IsAnimating() bool {
	return c.joints.IsAnimating() || !c.head.IsSettled() ||
		c.expr.IsTransitioning() || c.actions.ActiveAction() != nil
}

// SetTheme selects the theme and variant; unknown names fall back to the
// defaults.
func (c *Controller) SetTheme(theme, variant string) {
	c.theme, _ = resolveTheme(theme)
	c.variant = resolveVariant(variant).Name
}

// RenderFrame merges theme, variant and state for the renderer.
func (c *Controller) RenderFrame() Frame {
	name, palette := resolveTheme(c.theme)
	v := resolveVariant(c.variant)
	in := c.idle.State()
	st := c.state.State()

	display := motion.HeadPose{
		Yaw:   st.HeadPose.Yaw + in.HeadMicroX,
		Pitch: st.HeadPose.Pitch + in.HeadMicroY,
	}
	f := Frame{
		Theme:       name,
		Palette:     palette.merge(v.Palette),
		Variant:     v,
		State:       st,
		Expression:  c.ExpressionWithAction(),
		DisplayPose: display,
		Idle:        in,
	}
	if v.ShowTimer {
		ts := c.timer.Snapshot()
		f.Timer = &ts
	}
	if v.ShowTasks {
		ls := c.tasks.Snapshot()
		f.Tasks = &ls
	}
	return f
}

// Close destroys every plugin and drops all subscribers.
func (c *Controller) Close() {
	for i := len(c.pluginOrder) - 1; i >= 0; i-- {
		c.UnregisterPlugin(c.pluginOrder[i])
	}
	c.timer.Close()
	c.tasks.Close()
	c.bus.Clear()
}

// Sub-controller handles for plugins and hosts.
func (c *Controller) Joints() *motion.JointAnimator         { return c.joints }
func (c *Controller) Head() *motion.HeadPoseController      { return c.head }
func (c *Controller) Idle() *idle.Controller                { return c.idle }
func (c *Controller) Actions() *expression.ActionController { return c.actions }
func (c *Controller) Expression() *expression.Controller    { return c.expr }
func (c *Controller) Timer() *timer.Timer                   { return c.timer }
func (c *Controller) Tasks() *tasks.List                    { return c.tasks }
func (c *Controller) Bus() *bus.Bus                         { return c.bus }
func (c *Controller) StateManager() *state.Manager          { return c.state }
func (c *Controller) Logger() zerolog.Logger                { return c.log }
