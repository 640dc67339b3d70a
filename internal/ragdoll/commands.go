package ragdoll

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/normanking/ragdoll/internal/motion"
)

var (
	// ErrUnknownCommand is returned for a command kind the controller does
	// not handle.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrInvalidCommand is returned when a command payload cannot be decoded.
	ErrInvalidCommand = errors.New("invalid command")
)

// Command is one of the closed set of commands below.
type Command interface {
	Kind() string
	command()
}

// Character commands.
type (
	SetMood struct {
		Mood     string  `json:"mood"`
		Duration float64 `json:"duration,omitempty"`
	}

	TriggerAction struct {
		Action   string  `json:"action"`
		Duration float64 `json:"duration,omitempty"`
	}

	ClearAction struct{}

	// SetHeadPose angles are radians. When decoded from JSON with
	// "degrees": true they are converted on the way in.
	SetHeadPose struct {
		Yaw      *float64 `json:"yaw,omitempty"`
		Pitch    *float64 `json:"pitch,omitempty"`
		Duration float64  `json:"duration,omitempty"`
	}

	// NudgeHead offsets the head target; angles as in SetHeadPose.
	NudgeHead struct {
		Yaw      *float64 `json:"yaw,omitempty"`
		Pitch    *float64 `json:"pitch,omitempty"`
		Duration float64  `json:"duration,omitempty"`
	}

	// SetSpeechBubble shows Text, or hides the bubble when Text is nil.
	SetSpeechBubble struct {
		Text *string `json:"text"`
		Tone string  `json:"tone,omitempty"`
	}
)

// Timer commands.
type (
	TimerStart struct {
		SessionMinutes float64 `json:"sessionMinutes,omitempty"`
		BreakMinutes   float64 `json:"breakMinutes,omitempty"`
	}
	TimerPause struct{}
	TimerReset struct{}
)

// Task list commands.
type (
	AddTask struct {
		Text   string `json:"text"`
		Status string `json:"status,omitempty"`
	}
	UpdateTaskStatus struct {
		ID            string `json:"id"`
		Status        string `json:"status"`
		BlockedReason string `json:"blockedReason,omitempty"`
	}
	SetActiveTask struct {
		ID string `json:"id"`
	}
	RemoveTask struct {
		ID string `json:"id"`
	}
	CompleteActiveTask struct{}
	ClearCompleted     struct{}
	ClearAll           struct{}
	ExpandTasks        struct{}
	CollapseTasks      struct{}
	ToggleTasks        struct{}
)

func (SetMood) Kind() string            { return "setMood" }
func (TriggerAction) Kind() string      { return "triggerAction" }
func (ClearAction) Kind() string        { return "clearAction" }
func (SetHeadPose) Kind() string        { return "setHeadPose" }
func (NudgeHead) Kind() string          { return "nudgeHead" }
func (SetSpeechBubble) Kind() string    { return "setSpeechBubble" }
func (TimerStart) Kind() string         { return "timerStart" }
func (TimerPause) Kind() string         { return "timerPause" }
func (TimerReset) Kind() string         { return "timerReset" }
func (AddTask) Kind() string            { return "addTask" }
func (UpdateTaskStatus) Kind() string   { return "updateTaskStatus" }
func (SetActiveTask) Kind() string      { return "setActiveTask" }
func (RemoveTask) Kind() string         { return "removeTask" }
func (CompleteActiveTask) Kind() string { return "completeActiveTask" }
func (ClearCompleted) Kind() string     { return "clearCompleted" }
func (ClearAll) Kind() string           { return "clearAll" }
func (ExpandTasks) Kind() string        { return "expand" }
func (CollapseTasks) Kind() string      { return "collapse" }
func (ToggleTasks) Kind() string        { return "toggle" }

func (SetMood) command()            {}
func (TriggerAction) command()      {}
func (ClearAction) command()        {}
func (SetHeadPose) command()        {}
func (NudgeHead) command()          {}
func (SetSpeechBubble) command()    {}
func (TimerStart) command()         {}
func (TimerPause) command()         {}
func (TimerReset) command()         {}
func (AddTask) command()            {}
func (UpdateTaskStatus) command()   {}
func (SetActiveTask) command()      {}
func (RemoveTask) command()         {}
func (CompleteActiveTask) command() {}
func (ClearCompleted) command()     {}
func (ClearAll) command()           {}
func (ExpandTasks) command()        {}
func (CollapseTasks) command()      {}
func (ToggleTasks) command()        {}

// decoders maps a wire "type" to a decoder for its payload.
var decoders = map[string]func([]byte) (Command, error){
	"setMood":            decodeInto[SetMood],
	"triggerAction":      decodeInto[TriggerAction],
	"clearAction":        decodeInto[ClearAction],
	"setHeadPose":        decodeSetHeadPose,
	"nudgeHead":          decodeNudgeHead,
	"setSpeechBubble":    decodeInto[SetSpeechBubble],
	"timerStart":         decodeInto[TimerStart],
	"timerPause":         decodeInto[TimerPause],
	"timerReset":         decodeInto[TimerReset],
	"addTask":            decodeInto[AddTask],
	"updateTaskStatus":   decodeInto[UpdateTaskStatus],
	"setActiveTask":      decodeInto[SetActiveTask],
	"removeTask":         decodeInto[RemoveTask],
	"completeActiveTask": decodeInto[CompleteActiveTask],
	"clearCompleted":     decodeInto[ClearCompleted],
	"clearAll":           decodeInto[ClearAll],
	"expand":             decodeInto[ExpandTasks],
	"collapse":           decodeInto[CollapseTasks],
	"toggle":             decodeInto[ToggleTasks],
}

// CommandKinds lists every wire command type.
func CommandKinds() []string {
	kinds := make([]string, 0, len(decoders))
	for k := range decoders {
		kinds = append(kinds, k)
	}
	return kinds
}

func decodeInto[T Command](data []byte) (Command, error) {
	var cmd T
	if err := json.Unmarshal(data, &cmd); err != nil {
		return nil, err
	}
	return cmd, nil
}

// poseWire is the JSON shape shared by the head commands.
type poseWire struct {
	Yaw      *float64 `json:"yaw,omitempty"`
	Pitch    *float64 `json:"pitch,omitempty"`
	Duration float64  `json:"duration,omitempty"`
	Degrees  bool     `json:"degrees,omitempty"`
}

// decodePose reads a head command, converting degree input to radians.
func decodePose(data []byte) (yaw, pitch *float64, duration float64, err error) {
	var w poseWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, nil, 0, err
	}
	if w.Degrees {
		w.Yaw = toRadians(w.Yaw)
		w.Pitch = toRadians(w.Pitch)
	}
	return w.Yaw, w.Pitch, w.Duration, nil
}

func decodeSetHeadPose(data []byte) (Command, error) {
	yaw, pitch, duration, err := decodePose(data)
	return SetHeadPose{Yaw: yaw, Pitch: pitch, Duration: duration}, err
}

func decodeNudgeHead(data []byte) (Command, error) {
	yaw, pitch, duration, err := decodePose(data)
	return NudgeHead{Yaw: yaw, Pitch: pitch, Duration: duration}, err
}

func toRadians(deg *float64) *float64 {
	if deg == nil {
		return nil
	}
	r := motion.DegreesToRadians(*deg)
	return &r
}

// DecodeCommand parses a JSON command of the form {"type": "...", ...}.
func DecodeCommand(data []byte) (Command, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	decode, ok := decoders[env.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, env.Type)
	}
	cmd, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidCommand, env.Type, err)
	}
	return cmd, nil
}

// CommandFromArgs builds a command from a named action and its arguments, the
// shape extension hosts use.
func CommandFromArgs(name string, args map[string]any) (Command, error) {
	payload := make(map[string]any, len(args)+1)
	for k, v := range args {
		payload[k] = v
	}
	payload["type"] = name

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidCommand, name, err)
	}
	return DecodeCommand(data)
}
