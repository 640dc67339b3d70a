// Package state owns the authoritative character snapshot. Every change goes
// through the Manager, which publishes one typed event per semantic change.
package state

import (
	"math"
	"strings"

	"github.com/rs/zerolog"

	"github.com/normanking/ragdoll/internal/bus"
	"github.com/normanking/ragdoll/internal/expression"
	"github.com/normanking/ragdoll/internal/motion"
)

// Tone is the speech bubble style.
type Tone string

const (
	ToneDefault Tone = "default"
	ToneShout   Tone = "shout"
	ToneWhisper Tone = "whisper"
	ToneThought Tone = "thought"
)

// ParseTone maps a command string to a Tone; unknown values are default.
func ParseTone(s string) Tone {
	switch t := Tone(strings.ToLower(strings.TrimSpace(s))); t {
	case ToneShout, ToneWhisper, ToneThought:
		return t
	}
	return ToneDefault
}

// SpeechBubble is the text shown next to the character. A nil Text means no
// bubble.
type SpeechBubble struct {
	Text *string `json:"text"`
	Tone Tone    `json:"tone"`
}

// Visible reports whether the bubble has text.
func (b SpeechBubble) Visible() bool { return b.Text != nil }

func (b SpeechBubble) equal(o SpeechBubble) bool {
	if b.Tone != o.Tone || (b.Text == nil) != (o.Text == nil) {
		return false
	}
	return b.Text == nil || *b.Text == *o.Text
}

func (b SpeechBubble) clone() SpeechBubble {
	if b.Text != nil {
		text := *b.Text
		b.Text = &text
	}
	return b
}

// Animation summarises the gesture state for renderers.
type Animation struct {
	Action         *expression.ActionName `json:"action"`
	ActionProgress float64                `json:"actionProgress"`
	IsTalking      bool                   `json:"isTalking"`
}

// CharacterState is the snapshot handed to renderers and subscribers.
type CharacterState struct {
	HeadPose  motion.HeadPose         `json:"headPose"`
	Joints    map[string]motion.Joint `json:"joints"`
	Mood      expression.Mood         `json:"mood"`
	Action    *expression.ActionState `json:"action"`
	Bubble    SpeechBubble            `json:"bubble"`
	Animation Animation               `json:"animation"`
}

// Clone returns a deep copy.
func (s CharacterState) Clone() CharacterState {
	if s.Joints != nil {
		joints := make(map[string]motion.Joint, len(s.Joints))
		for k, v := range s.Joints {
			joints[k] = v
		}
		s.Joints = joints
	}
	if s.Action != nil {
		a := *s.Action
		s.Action = &a
	}
	if s.Animation.Action != nil {
		n := *s.Animation.Action
		s.Animation.Action = &n
	}
	s.Bubble = s.Bubble.clone()
	return s
}

// Initial returns the rest state.
func Initial() CharacterState {
	return CharacterState{
		Joints: map[string]motion.Joint{},
		Mood:   expression.MoodNeutral,
		Bubble: SpeechBubble{Tone: ToneDefault},
	}
}

// Event payloads.
type (
	MoodChange struct {
		From expression.Mood `json:"from"`
		To   expression.Mood `json:"to"`
	}
	ActionChange struct {
		Action   expression.ActionState  `json:"action"`
		Previous *expression.ActionName `json:"previous,omitempty"`
	}
	// HeadPoseChange is false in Settled for a commanded target and true
	// when the head comes to rest.
	HeadPoseChange struct {
		Pose    motion.HeadPose `json:"pose"`
		Settled bool            `json:"settled"`
	}
)

// poseEpsilon is the head pose difference (radians) worth an event.
const poseEpsilon = 1e-3

// Manager holds the character state. Not safe for concurrent use.
type Manager struct {
	state       CharacterState
	lastPose    motion.HeadPose
	headSettled bool
	bus         *bus.Bus
	log         zerolog.Logger
}

// NewManager creates a manager publishing on b.
func NewManager(b *bus.Bus, log zerolog.Logger) *Manager {
	return &Manager{state: Initial(), headSettled: true, bus: b, log: log}
}

// State returns a fresh copy of the current state.
func (m *Manager) State() CharacterState { return m.state.Clone() }

// SetMood records the mood.
func (m *Manager) SetMood(mood expression.Mood) {
	if mood == m.state.Mood {
		return
	}
	change := MoodChange{From: m.state.Mood, To: mood}
	m.state.Mood = mood
	m.emit(bus.EventMoodChanged, change)
}

// SetAction records the active gesture. A gesture with a new Start, whether
// a different one or the same one triggered again, emits actionStarted;
// going from a gesture to none emits actionCleared. Progress alone emits
// nothing.
func (m *Manager) SetAction(a *expression.ActionState) {
	prev := m.state.Action
	switch {
	case a == nil && prev == nil:
		return
	case a == nil:
		m.state.Action = nil
		m.emit(bus.EventActionCleared, *prev)
	case prev == nil || prev.Name != a.Name || prev.Start != a.Start:
		cp := *a
		m.state.Action = &cp
		change := ActionChange{Action: cp}
		if prev != nil {
			name := prev.Name
			change.Previous = &name
		}
		m.emit(bus.EventActionStarted, change)
	default:
		cp := *a
		m.state.Action = &cp
	}
}

// SetHeadPose records the smoothed head pose every frame. The moving pose
// is only carried in snapshots; an event is published when the head comes
// to rest away from the last announced pose.
func (m *Manager) SetHeadPose(p motion.HeadPose, settled bool) {
	m.state.HeadPose = p
	if !settled {
		m.headSettled = false
		return
	}
	if m.headSettled {
		return
	}
	m.headSettled = true
	m.announceHead(p, true)
}

// SetHeadTarget announces a commanded head target.
func (m *Manager) SetHeadTarget(target motion.HeadPose) {
	m.announceHead(target, false)
}

func (m *Manager) announceHead(p motion.HeadPose, settled bool) {
	if math.Abs(p.Yaw-m.lastPose.Yaw) <= poseEpsilon && math.Abs(p.Pitch-m.lastPose.Pitch) <= poseEpsilon {
		return
	}
	m.lastPose = p
	m.emit(bus.EventHeadPoseChanged, HeadPoseChange{Pose: p, Settled: settled})
}

// SetJoints stores a copy of the joint table.
func (m *Manager) SetJoints(joints map[string]motion.Joint) {
	cp := make(map[string]motion.Joint, len(joints))
	for k, v := range joints {
		cp[k] = v
	}
	m.state.Joints = cp
}

// SetSpeechBubble records the bubble, emitting changed or cleared.
func (m *Manager) SetSpeechBubble(b SpeechBubble) {
	if b.Tone == "" {
		b.Tone = ToneDefault
	}
	if b.equal(m.state.Bubble) {
		return
	}
	if b.Text == nil && m.state.Bubble.Text == nil {
		m.state.Bubble.Tone = b.Tone
		return
	}
	b = b.clone()
	m.state.Bubble = b
	if b.Text == nil {
		m.emit(bus.EventSpeechBubbleCleared, nil)
		return
	}
	m.emit(bus.EventSpeechBubbleChanged, b.clone())
}

// SetAnimation stores the animation summary.
func (m *Manager) SetAnimation(a Animation) {
	if a.Action != nil {
		n := *a.Action
		a.Action = &n
	}
	m.state.Animation = a
}

// Reset returns to the rest state and announces it.
func (m *Manager) Reset() {
	m.state = Initial()
	m.lastPose = motion.HeadPose{}
	m.headSettled = true
	m.emit(bus.EventStateReset, m.state.Clone())
}

func (m *Manager) emit(t bus.EventType, data any) {
	if m.bus == nil {
		return
	}
	m.bus.Emit(t, data)
}
