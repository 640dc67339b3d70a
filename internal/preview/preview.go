// Package preview draws the live character in the terminal. It is a debug
// surface for tuning motion without a graphical renderer.
package preview

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/normanking/ragdoll/internal/bus"
	"github.com/normanking/ragdoll/internal/expression"
	"github.com/normanking/ragdoll/internal/motion"
	"github.com/normanking/ragdoll/internal/ragdoll"
	"github.com/normanking/ragdoll/internal/state"
	"github.com/normanking/ragdoll/internal/tasks"
	"github.com/normanking/ragdoll/internal/timer"
)

// FrameMsg carries a rendered frame into the program.
type FrameMsg struct {
	Frame ragdoll.Frame
}

// CommandResultMsg reports the outcome of a key-triggered command.
type CommandResultMsg struct {
	Kind  string
	Error error
}

// Submitter runs commands. engine.Loop satisfies it.
type Submitter interface {
	Submit(ctx context.Context, cmd ragdoll.Command) error
}

// Feed adapts engine frames into FrameMsgs. It implements engine.Observer
// and keeps only the newest pending frame.
type Feed struct {
	frames chan ragdoll.Frame
}

// NewFeed creates a feed.
func NewFeed() *Feed {
	return &Feed{frames: make(chan ragdoll.Frame, 1)}
}

// OnEvent is a no-op; the preview only draws frames.
func (f *Feed) OnEvent(bus.Event) {}

// OnFrame queues f, replacing an unread frame.
func (f *Feed) OnFrame(frame ragdoll.Frame) {
	select {
	case <-f.frames:
	default:
	}
	select {
	case f.frames <- frame:
	default:
	}
}

func (f *Feed) wait() tea.Cmd {
	return func() tea.Msg {
		return FrameMsg{Frame: <-f.frames}
	}
}

const nudgeStep = 5 // degrees

// Model is the bubbletea model.
type Model struct {
	feed   *Feed
	sub    Submitter
	frame  *ragdoll.Frame
	moods  []expression.Mood
	mood   int
	status string
}

// New creates the preview model.
func New(feed *Feed, sub Submitter) *Model {
	return &Model{feed: feed, sub: sub, moods: expression.Moods()}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.feed.wait()
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case FrameMsg:
		f := msg.Frame
		m.frame = &f
		return m, m.feed.wait()

	case CommandResultMsg:
		if msg.Error != nil {
			m.status = fmt.Sprintf("%s failed: %v", msg.Kind, msg.Error)
		} else {
			m.status = msg.Kind
		}
		return m, nil

	case tea.KeyMsg:
		return m, m.handleKey(msg.String())
	}
	return m, nil
}

func (m *Model) handleKey(key string) tea.Cmd {
	switch key {
	case "q", "ctrl+c", "esc":
		return tea.Quit
	case "m":
		m.mood = (m.mood + 1) % len(m.moods)
		return m.submit(ragdoll.SetMood{Mood: string(m.moods[m.mood])})
	case "w":
		return m.submit(ragdoll.TriggerAction{Action: string(expression.ActionWink)})
	case "s":
		return m.submit(ragdoll.TriggerAction{Action: string(expression.ActionShake)})
	case "t":
		text := "Hi! I'm the ragdoll preview."
		return m.submit(ragdoll.SetSpeechBubble{Text: &text})
	case "x":
		return m.submit(ragdoll.SetSpeechBubble{})
	case "left", "h":
		return m.nudge(-nudgeStep, 0)
	case "right", "l":
		return m.nudge(nudgeStep, 0)
	case "up", "k":
		return m.nudge(0, nudgeStep)
	case "down", "j":
		return m.nudge(0, -nudgeStep)
	case "0":
		zero := 0.0
		return m.submit(ragdoll.SetHeadPose{Yaw: &zero, Pitch: &zero})
	case " ", "space":
		if m.frame != nil && m.frame.Timer != nil && m.frame.Timer.State == timer.PhaseRunning {
			return m.submit(ragdoll.TimerPause{})
		}
		return m.submit(ragdoll.TimerStart{})
	case "r":
		return m.submit(ragdoll.TimerReset{})
	}
	return nil
}

func (m *Model) nudge(yawDeg, pitchDeg float64) tea.Cmd {
	yaw, pitch := motion.DegreesToRadians(yawDeg), motion.DegreesToRadians(pitchDeg)
	return m.submit(ragdoll.NudgeHead{Yaw: &yaw, Pitch: &pitch})
}

func (m *Model) submit(cmd ragdoll.Command) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		return CommandResultMsg{Kind: cmd.Kind(), Error: m.sub.Submit(ctx, cmd)}
	}
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Faint(true)
	bubbleStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// View implements tea.Model.
func (m *Model) View() string {
	if m.frame == nil {
		return "waiting for first frame...\n"
	}
	var b strings.Builder
	b.WriteString(Render(*m.frame))
	b.WriteString("\n")
	if m.status != "" {
		b.WriteString(dimStyle.Render("last: "+m.status) + "\n")
	}
	b.WriteString(dimStyle.Render("m mood · w wink · s shake · t talk · x hush · arrows head · 0 center · space timer · r reset · q quit"))
	b.WriteString("\n")
	return b.String()
}

// Render draws a frame as text.
func Render(f ragdoll.Frame) string {
	face := lipgloss.NewStyle().Foreground(lipgloss.Color(f.Palette.Outline))
	var sections []string

	if text := f.State.Bubble.Text; text != nil {
		style := bubbleStyle.BorderForeground(lipgloss.Color(f.Palette.Outline))
		sections = append(sections, style.Render(bubblePrefix(f.State.Bubble.Tone)+*text))
	}

	indent := strings.Repeat(" ", headOffset(f.DisplayPose))
	for _, line := range Face(f.Expression) {
		sections = append(sections, indent+face.Render(line))
	}

	status := fmt.Sprintf("%s  yaw %+5.1f°  pitch %+5.1f°",
		titleStyle.Render(string(f.State.Mood)),
		motion.RadiansToDegrees(f.State.HeadPose.Yaw),
		motion.RadiansToDegrees(f.State.HeadPose.Pitch))
	if a := f.State.Action; a != nil {
		status += fmt.Sprintf("  %s %3.0f%%", a.Name, a.Progress()*100)
	}
	sections = append(sections, status)

	if f.Timer != nil {
		sections = append(sections, timerLine(*f.Timer))
	}
	if f.Tasks != nil && len(f.Tasks.Tasks) > 0 {
		sections = append(sections, taskLines(*f.Tasks)...)
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func bubblePrefix(tone state.Tone) string {
	switch tone {
	case state.ToneShout:
		return "!! "
	case state.ToneWhisper:
		return "(psst) "
	case state.ToneThought:
		return "... "
	}
	return ""
}

// headOffset maps yaw to a column shift of up to six cells.
func headOffset(p motion.HeadPose) int {
	return 6 + int(math.Round(6*p.Yaw/motion.MaxYaw))
}

// Face returns the ASCII face for an expression.
func Face(c expression.Config) []string {
	return []string{
		"  .-------.",
		fmt.Sprintf(" /  %c   %c  \\", brow(c.Get(expression.LeftBrowAngle), true), brow(c.Get(expression.RightBrowAngle), false)),
		fmt.Sprintf("|   %c   %c   |", eye(c.Get(expression.LeftEyeOpenness)), eye(c.Get(expression.RightEyeOpenness))),
		fmt.Sprintf("|    %s    |", mouth(c.Get(expression.MouthCurve), c.Get(expression.MouthOpenness))),
		"  '-------'",
	}
}

func eye(openness float64) rune {
	switch {
	case openness < 0.2:
		return '-'
	case openness < 0.6:
		return 'o'
	}
	return 'O'
}

func brow(angle float64, left bool) rune {
	switch {
	case angle > 0.15:
		if left {
			return '\\'
		}
		return '/'
	case angle < -0.15:
		if left {
			return '/'
		}
		return '\\'
	}
	return '~'
}

func mouth(curve, openness float64) string {
	switch {
	case openness > 0.4:
		return " O "
	case openness > 0.15:
		return " o "
	case curve > 0.2:
		return "\\_/"
	case curve < -0.2:
		return "/^\\"
	}
	return "---"
}

func timerLine(s timer.Snapshot) string {
	label := "focus"
	if s.IsBreak {
		label = "break"
	}
	rem := int(math.Ceil(s.RemainingTime))
	return fmt.Sprintf("%s %s %02d:%02d", label, s.State, rem/60, rem%60)
}

func taskLines(s tasks.Snapshot) []string {
	lines := make([]string, 0, len(s.Tasks))
	for _, t := range s.Tasks {
		mark := " "
		switch t.Status {
		case tasks.StatusDone:
			mark = "x"
		case tasks.StatusInProgress:
			mark = ">"
		case tasks.StatusBlocked:
			mark = "!"
		}
		lines = append(lines, fmt.Sprintf("[%s] %s", mark, t.Text))
	}
	return lines
}
