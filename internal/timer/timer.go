// Package timer implements the focus/break timer. Elapsed time is measured
// against a wall-clock anchor so irregular Update spacing never skews it.
package timer

import (
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/normanking/ragdoll/internal/notify"
)

// Phase is the timer's run state. Whether the running period is a break is
// tracked separately.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseRunning Phase = "running"
	PhasePaused  Phase = "paused"
)

// Transition names the change behind the most recent notification.
type Transition string

const (
	TransitionNone            Transition = ""
	TransitionStarted         Transition = "started"
	TransitionResumed         Transition = "resumed"
	TransitionPaused          Transition = "paused"
	TransitionReset           Transition = "reset"
	TransitionTick            Transition = "tick"
	TransitionSessionComplete Transition = "sessionComplete"
	TransitionBreakComplete   Transition = "breakComplete"
)

// Default session lengths in minutes.
const (
	DefaultSessionMinutes = 25
	DefaultBreakMinutes   = 5
)

// Snapshot is the read-only view handed to subscribers. Durations are in
// minutes, times in seconds.
type Snapshot struct {
	State           Phase   `json:"state"`
	SessionDuration float64 `json:"sessionDuration"`
	BreakDuration   float64 `json:"breakDuration"`
	ElapsedTime     float64 `json:"elapsedTime"`
	RemainingTime   float64 `json:"remainingTime"`
	IsBreak         bool    `json:"isBreak"`
}

// Option configures a Timer.
type Option func(*Timer)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Timer) { t.now = now }
}

// WithDefaults sets the session and break lengths used when Start is called
// without them.
func WithDefaults(sessionMin, breakMin float64) Option {
	return func(t *Timer) {
		if sessionMin > 0 {
			t.sessionMin = sessionMin
		}
		if breakMin > 0 {
			t.breakMin = breakMin
		}
	}
}

// WithLogger sets the component logger.
func WithLogger(log zerolog.Logger) Option {
	return func(t *Timer) { t.log = log }
}

// Timer is the focus/break state machine. Not safe for concurrent use.
type Timer struct {
	now func() time.Time
	log zerolog.Logger

	phase      Phase
	isBreak    bool
	sessionMin float64
	breakMin   float64

	accumulated time.Duration
	anchor      time.Time
	last        Transition

	subs *notify.Registry[Snapshot]
}

// New creates an idle timer.
func New(opts ...Option) *Timer {
	t := &Timer{
		now:        time.Now,
		log:        zerolog.Nop(),
		phase:      PhaseIdle,
		sessionMin: DefaultSessionMinutes,
		breakMin:   DefaultBreakMinutes,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.subs = notify.New[Snapshot]("timer", t.log)
	return t
}

// OnUpdate registers fn for every state change and returns its unsubscribe
// function.
func (t *Timer) OnUpdate(fn func(Snapshot)) func() {
	return t.subs.Subscribe(fn)
}

// Start begins a session from idle or resumes from paused. Non-positive
// lengths keep the configured ones. Starting a running timer does nothing.
func (t *Timer) Start(sessionMin, breakMin float64) {
	if t.phase == PhaseRunning {
		return
	}
	if sessionMin > 0 && !math.IsInf(sessionMin, 0) {
		t.sessionMin = sessionMin
	}
	if breakMin > 0 && !math.IsInf(breakMin, 0) {
		t.breakMin = breakMin
	}

	t.last = TransitionResumed
	if t.phase == PhaseIdle {
		t.accumulated = 0
		t.isBreak = false
		t.last = TransitionStarted
	}
	t.anchor = t.now()
	t.phase = PhaseRunning

	t.log.Info().Float64("session_min", t.sessionMin).Float64("break_min", t.breakMin).
		Dur("elapsed", t.accumulated).Msg("timer started")
	t.notify()
}

// Pause freezes a running timer.
func (t *Timer) Pause() {
	if t.phase != PhaseRunning {
		return
	}
	t.accumulated += t.now().Sub(t.anchor)
	t.anchor = time.Time{}
	t.phase = PhasePaused
	t.last = TransitionPaused

	t.log.Info().Dur("elapsed", t.accumulated).Msg("timer paused")
	t.notify()
}

// Reset returns to idle from any state.
func (t *Timer) Reset() {
	t.phase = PhaseIdle
	t.isBreak = false
	t.accumulated = 0
	t.anchor = time.Time{}
	t.last = TransitionReset

	t.log.Info().Msg("timer reset")
	t.notify()
}

// Update checks for completion and publishes the running time. It is meant
// to be polled about once a second.
func (t *Timer) Update() {
	if t.phase != PhaseRunning {
		return
	}
	if t.elapsed().Seconds() >= t.periodSeconds() {
		t.completeSession()
		return
	}
	t.last = TransitionTick
	t.notify()
}

func (t *Timer) completeSession() {
	if !t.isBreak {
		t.isBreak = true
		t.accumulated = 0
		t.anchor = t.now()
		t.last = TransitionSessionComplete
		t.log.Info().Float64("break_min", t.breakMin).Msg("session complete, break started")
	} else {
		t.phase = PhaseIdle
		t.isBreak = false
		t.accumulated = 0
		t.anchor = time.Time{}
		t.last = TransitionBreakComplete
		t.log.Info().Msg("break complete")
	}
	t.notify()
}

func (t *Timer) elapsed() time.Duration {
	if t.phase == PhaseRunning {
		return t.accumulated + t.now().Sub(t.anchor)
	}
	return t.accumulated
}

func (t *Timer) periodSeconds() float64 {
	if t.isBreak {
		return t.breakMin * 60
	}
	return t.sessionMin * 60
}

// Snapshot returns the current view.
func (t *Timer) Snapshot() Snapshot {
	elapsed := t.elapsed().Seconds()
	return Snapshot{
		State:           t.phase,
		SessionDuration: t.sessionMin,
		BreakDuration:   t.breakMin,
		ElapsedTime:     elapsed,
		RemainingTime:   math.Max(0, t.periodSeconds()-elapsed),
		IsBreak:         t.isBreak,
	}
}

// Phase returns the run state.
func (t *Timer) Phase() Phase { return t.phase }

// LastTransition returns the change behind the latest notification, so
// subscribers can tell a finished break from a reset.
func (t *Timer) LastTransition() Transition { return t.last }

// IsBreak reports whether the current period is a break.
func (t *Timer) IsBreak() bool { return t.isBreak }

// Close drops every subscriber.
func (t *Timer) Close() { t.subs.Clear() }

func (t *Timer) notify() {
	t.subs.Notify(t.Snapshot())
}
