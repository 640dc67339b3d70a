package ragdoll

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/ragdoll/internal/bus"
	"github.com/normanking/ragdoll/internal/expression"
	"github.com/normanking/ragdoll/internal/motion"
	"github.com/normanking/ragdoll/internal/state"
	"github.com/normanking/ragdoll/internal/tasks"
	"github.com/normanking/ragdoll/internal/timer"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestController(opts Options) (*Controller, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)}
	opts.Clock = clock.Now
	opts.Rand = rand.New(rand.NewSource(7))
	return New(opts), clock
}

func run(c *Controller, seconds float64) {
	const dt = 1.0 / 60
	for t := 0.0; t < seconds; t += dt {
		c.Update(dt)
	}
}

func bubbleText(c *Controller) string {
	b := c.State().Bubble
	if b.Text == nil {
		return ""
	}
	return *b.Text
}

func TestDecodeCommand(t *testing.T) {
	cmd, err := DecodeCommand([]byte(`{"type":"setMood","mood":"smile","duration":0.5}`))
	require.NoError(t, err)
	assert.Equal(t, SetMood{Mood: "smile", Duration: 0.5}, cmd)

	cmd, err = DecodeCommand([]byte(`{"type":"setHeadPose","yaw":30,"degrees":true}`))
	require.NoError(t, err)
	pose := cmd.(SetHeadPose)
	require.NotNil(t, pose.Yaw)
	assert.InDelta(t, 30*math.Pi/180, *pose.Yaw, 1e-12)
	assert.Nil(t, pose.Pitch)

	cmd, err = DecodeCommand([]byte(`{"type":"nudgeHead","pitch":0.1}`))
	require.NoError(t, err)
	assert.InDelta(t, 0.1, *cmd.(NudgeHead).Pitch, 1e-12)

	_, err = DecodeCommand([]byte(`{"type":"dance"}`))
	assert.True(t, errors.Is(err, ErrUnknownCommand))

	_, err = DecodeCommand([]byte(`{"type":`))
	assert.True(t, errors.Is(err, ErrInvalidCommand))

	_, err = DecodeCommand([]byte(`{"type":"setMood","mood":7}`))
	assert.True(t, errors.Is(err, ErrInvalidCommand))

	assert.Len(t, CommandKinds(), 19)
}

func TestExecuteCommand_Unknown(t *testing.T) {
	c, _ := newTestController(Options{})
	assert.ErrorIs(t, c.ExecuteCommand(nil), ErrUnknownCommand)
}

func TestDispatch(t *testing.T) {
	c, _ := newTestController(Options{})

	require.NoError(t, c.Dispatch("setMood", map[string]any{"mood": "Smile"}))
	assert.Equal(t, expression.MoodSmile, c.State().Mood)

	require.NoError(t, c.Dispatch("setMood", map[string]any{"mood": "ecstatic"}))
	assert.Equal(t, expression.MoodSmile, c.State().Mood)

	require.NoError(t, c.Dispatch("setHeadPose", map[string]any{"yaw": 90, "degrees": true}))
	assert.InDelta(t, motion.MaxYaw, c.Head().Target().Yaw, 1e-12)

	assert.ErrorIs(t, c.Dispatch("fly", nil), ErrUnknownCommand)
}

func TestHeadPose_ReachesClampedTarget(t *testing.T) {
	c, _ := newTestController(Options{})
	yaw := -1.5
	require.NoError(t, c.ExecuteCommand(SetHeadPose{Yaw: &yaw, Duration: 0.2}))
	run(c, 3)
	assert.InDelta(t, -motion.MaxYaw, c.State().HeadPose.Yaw, 1e-3)

	neck, ok := c.State().Joints[motion.Neck.String()]
	require.True(t, ok)
	assert.InDelta(t, -motion.MaxYaw, neck.Current, 1e-2)
}

func TestSpeechBubble_TalkFollowsReadingTime(t *testing.T) {
	c, _ := newTestController(Options{})

	c.Say("hello there friend")
	a := c.Actions().ActiveAction()
	require.NotNil(t, a)
	assert.Equal(t, expression.ActionTalk, a.Name)
	assert.InDelta(t, 3/3.5+0.2, a.Duration, 1e-12)
	assert.True(t, c.State().Animation.IsTalking)

	run(c, 0.5)
	c.Say("hi")
	a = c.Actions().ActiveAction()
	require.NotNil(t, a)
	assert.Equal(t, 0.0, a.Elapsed)
	assert.Equal(t, 0.5, a.Duration)

	require.NoError(t, c.ExecuteCommand(SetSpeechBubble{}))
	assert.Nil(t, c.Actions().ActiveAction())
	assert.False(t, c.State().Bubble.Visible())
}

func TestSpeechBubble_BackToBackAnnouncesEachTalk(t *testing.T) {
	c, _ := newTestController(Options{})
	var started []state.ActionChange
	c.Bus().Subscribe(func(e bus.Event) {
		if e.Type == bus.EventActionStarted {
			started = append(started, e.Data.(state.ActionChange))
		}
	})

	long := "this sentence takes a little longer to read"
	c.Say("hi")
	c.Say(long)

	require.Len(t, started, 2)
	assert.Equal(t, 0.5, started[0].Action.Duration)
	assert.InDelta(t, ReadingTime(long), started[1].Action.Duration, 1e-12)
	require.NotNil(t, started[1].Previous)
	assert.Equal(t, expression.ActionTalk, *started[1].Previous)
}

func TestSpeechBubble_ClearKeepsOtherAction(t *testing.T) {
	c, _ := newTestController(Options{})
	c.Say("hey")
	c.TriggerAction(expression.ActionWink, 0)

	blank := "   "
	c.SetSpeechBubble(&blank, state.ToneShout)
	a := c.Actions().ActiveAction()
	require.NotNil(t, a)
	assert.Equal(t, expression.ActionWink, a.Name)
	assert.False(t, c.State().Bubble.Visible())
}

func TestShake_MovesHeadThenLooksForward(t *testing.T) {
	c, _ := newTestController(Options{})
	require.NoError(t, c.ExecuteCommand(TriggerAction{Action: "shake", Duration: 0.6}))

	var peak float64
	for i := 0; i < 30; i++ {
		c.Update(1.0 / 60)
		peak = math.Max(peak, math.Abs(c.State().HeadPose.Yaw))
	}
	assert.Greater(t, peak, 0.01)

	run(c, 2)
	assert.Nil(t, c.State().Action)
	assert.Equal(t, motion.HeadPose{}, c.Head().Target())
	assert.InDelta(t, 0, c.State().HeadPose.Yaw, 1e-3)
}

func TestShake_KeepsEarlierEventsInHistory(t *testing.T) {
	c, _ := newTestController(Options{})
	require.NoError(t, c.ExecuteCommand(SetMood{Mood: "smile"}))
	require.NoError(t, c.ExecuteCommand(AddTask{Text: "stretch"}))

	for i := 0; i < 4; i++ {
		require.NoError(t, c.ExecuteCommand(TriggerAction{Action: "shake", Duration: 0.6}))
		run(c, 0.6)
	}
	run(c, 2)

	counts := map[bus.EventType]int{}
	for _, e := range c.Bus().History() {
		counts[e.Type]++
	}
	assert.Equal(t, 1, counts[bus.EventMoodChanged])
	assert.Equal(t, 1, counts[bus.EventTasksChanged])
	assert.Less(t, counts[bus.EventHeadPoseChanged], 10)
}

func TestHeadPose_AnnouncedOncePerCommand(t *testing.T) {
	c, _ := newTestController(Options{})
	var poses []state.HeadPoseChange
	c.Bus().Subscribe(func(e bus.Event) {
		if e.Type == bus.EventHeadPoseChanged {
			poses = append(poses, e.Data.(state.HeadPoseChange))
		}
	})

	yaw := 0.3
	require.NoError(t, c.ExecuteCommand(SetHeadPose{Yaw: &yaw}))
	run(c, 2)
	require.Len(t, poses, 1)
	assert.Equal(t, state.HeadPoseChange{Pose: motion.HeadPose{Yaw: 0.3}}, poses[0])
	assert.InDelta(t, 0.3, c.State().HeadPose.Yaw, 1e-3)
}

func TestTimer_AnnouncesSessionBoundaries(t *testing.T) {
	c, clock := newTestController(Options{})

	require.NoError(t, c.ExecuteCommand(TimerStart{SessionMinutes: 1, BreakMinutes: 2}))
	assert.Equal(t, sessionStartMessage(1), bubbleText(c))
	assert.True(t, c.State().Animation.IsTalking)

	clock.Advance(60 * time.Second)
	c.Timer().Update()
	assert.True(t, c.TimerSnapshot().IsBreak)
	assert.Equal(t, breakStartMessage(2), bubbleText(c))

	clock.Advance(120 * time.Second)
	c.Timer().Update()
	assert.Equal(t, timer.PhaseIdle, c.TimerSnapshot().State)
	assert.Equal(t, breakEndMessage, bubbleText(c))

	var timerEvents int
	for _, e := range c.Bus().History() {
		if e.Type == bus.EventTimerChanged {
			timerEvents++
		}
	}
	assert.Equal(t, 3, timerEvents)
}

func TestTimer_ResetIsSilent(t *testing.T) {
	c, _ := newTestController(Options{})
	require.NoError(t, c.ExecuteCommand(TimerStart{}))
	c.SetSpeechBubble(nil, state.ToneDefault)

	require.NoError(t, c.ExecuteCommand(TimerReset{}))
	assert.False(t, c.State().Bubble.Visible())
}

func TestTimer_FiveMinuteReminderOnce(t *testing.T) {
	c, clock := newTestController(Options{})
	require.NoError(t, c.ExecuteCommand(TimerStart{SessionMinutes: 6}))
	c.SetSpeechBubble(nil, state.ToneDefault)

	clock.Advance(59 * time.Second)
	c.Timer().Update()
	assert.False(t, c.State().Bubble.Visible())

	clock.Advance(time.Second)
	c.Timer().Update()
	assert.Equal(t, fiveMinuteReminder, bubbleText(c))

	c.SetSpeechBubble(nil, state.ToneDefault)
	clock.Advance(500 * time.Millisecond)
	c.Timer().Update()
	assert.False(t, c.State().Bubble.Visible())
}

func TestTimer_NoReminderForShortSessions(t *testing.T) {
	c, clock := newTestController(Options{})
	require.NoError(t, c.ExecuteCommand(TimerStart{SessionMinutes: 5}))
	c.SetSpeechBubble(nil, state.ToneDefault)

	clock.Advance(500 * time.Millisecond)
	c.Timer().Update()
	assert.False(t, c.State().Bubble.Visible())
}

func TestTimer_SelfTick(t *testing.T) {
	c, clock := newTestController(Options{TimerSelfTick: true})
	require.NoError(t, c.ExecuteCommand(TimerStart{SessionMinutes: 1}))

	clock.Advance(60 * time.Second)
	for i := 0; i < 25; i++ {
		c.Update(0.05)
	}
	assert.True(t, c.TimerSnapshot().IsBreak)
}

func TestTasks_EndToEnd(t *testing.T) {
	c, _ := newTestController(Options{})
	require.NoError(t, c.ExecuteCommand(AddTask{Text: "write docs"}))
	require.NoError(t, c.ExecuteCommand(AddTask{Text: "ship", Status: "in_progress"}))

	snap := c.TaskSnapshot()
	require.Len(t, snap.Tasks, 2)
	assert.Equal(t, tasks.StatusTodo, snap.Tasks[0].Status)
	assert.Equal(t, tasks.StatusInProgress, snap.Tasks[1].Status)
	assert.Equal(t, snap.Tasks[1].ID, snap.ActiveTaskID)

	require.NoError(t, c.ExecuteCommand(CompleteActiveTask{}))
	snap = c.TaskSnapshot()
	assert.Equal(t, tasks.StatusDone, snap.Tasks[1].Status)
	assert.Empty(t, snap.ActiveTaskID)

	var taskEvents int
	for _, e := range c.Bus().History() {
		if e.Type == bus.EventTasksChanged {
			taskEvents++
		}
	}
	assert.Equal(t, 3, taskEvents)
}

func TestTasks_AllDoneCheer(t *testing.T) {
	c, _ := newTestController(Options{})
	task, ok := c.Tasks().AddTask("only one", tasks.StatusInProgress)
	require.True(t, ok)
	assert.False(t, c.State().Bubble.Visible())

	require.NoError(t, c.ExecuteCommand(UpdateTaskStatus{ID: task.ID, Status: "done"}))
	assert.Equal(t, allDoneMessage, bubbleText(c))
}

type countingPlugin struct {
	name      string
	updates   int
	destroyed bool
	sawPose   bool
	c         *Controller
}

func (p *countingPlugin) Name() string { return p.name }
func (p *countingPlugin) Initialize(c *Controller) error {
	p.c = c
	return nil
}
func (p *countingPlugin) Update(float64) {
	p.updates++
	// Plugins run after the head but before the state is republished.
	p.sawPose = p.c.Head().Current() != p.c.State().HeadPose
}
func (p *countingPlugin) Destroy() { p.destroyed = true }

type failingPlugin struct{}

func (failingPlugin) Name() string                 { return "broken" }
func (failingPlugin) Initialize(*Controller) error { return errors.New("no") }

func TestPlugins_RegisterAndUnregister(t *testing.T) {
	c, _ := newTestController(Options{})
	assert.Equal(t, []string{TimerPluginName, ListPluginName}, c.Plugins())
	assert.False(t, c.RegisterPlugin(&TimerPlugin{}))
	assert.False(t, c.RegisterPlugin(failingPlugin{}))

	p := &countingPlugin{name: "counter"}
	require.True(t, c.RegisterPlugin(p))
	assert.False(t, c.RegisterPlugin(&countingPlugin{name: "counter"}))

	yaw := 0.3
	require.NoError(t, c.ExecuteCommand(SetHeadPose{Yaw: &yaw}))
	c.Update(1.0 / 60)
	assert.Equal(t, 1, p.updates)
	assert.True(t, p.sawPose)
	assert.Equal(t, c.Head().Current(), c.State().HeadPose)

	assert.True(t, c.UnregisterPlugin("counter"))
	assert.True(t, p.destroyed)
	assert.False(t, c.UnregisterPlugin("counter"))
	c.Update(1.0 / 60)
	assert.Equal(t, 1, p.updates)
}

func TestClose_DetachesPlugins(t *testing.T) {
	c, _ := newTestController(Options{})
	c.Close()
	assert.Empty(t, c.Plugins())

	c.Timer().Start(1, 1)
	assert.Empty(t, c.Bus().History())
}

func TestUpdate_PublishesEvents(t *testing.T) {
	c, _ := newTestController(Options{})
	var got []bus.EventType
	c.Bus().Subscribe(func(e bus.Event) { got = append(got, e.Type) })

	require.NoError(t, c.ExecuteCommand(SetMood{Mood: "laugh"}))
	require.NoError(t, c.ExecuteCommand(TriggerAction{Action: "wink"}))
	run(c, 1)

	assert.Contains(t, got, bus.EventMoodChanged)
	assert.Contains(t, got, bus.EventActionStarted)
	assert.Contains(t, got, bus.EventActionCleared)
	assert.False(t, c.Expression().IsTransitioning())
}

func TestExpressionWithAction_AppliesBlink(t *testing.T) {
	c, _ := newTestController(Options{})
	c.Idle().TriggerBlink()
	c.Update(0.05)
	c.Update(0.05)

	face := c.ExpressionWithAction()
	assert.Less(t, face.Get(expression.LeftEyeOpenness), 1.0)
}

func TestRenderFrame(t *testing.T) {
	c, _ := newTestController(Options{Theme: "midnight", Variant: "compact"})
	f := c.RenderFrame()
	assert.Equal(t, "midnight", f.Theme)
	assert.Equal(t, "transparent", f.Palette.Background)
	assert.Equal(t, themes["midnight"].Body, f.Palette.Body)
	assert.NotNil(t, f.Timer)
	assert.Nil(t, f.Tasks)

	c.SetTheme("neon", "huge")
	f = c.RenderFrame()
	assert.Equal(t, DefaultTheme, f.Theme)
	assert.Equal(t, DefaultVariant, f.Variant.Name)
	assert.Equal(t, themes[DefaultTheme], f.Palette)
	assert.NotNil(t, f.Tasks)
	assert.InDelta(t, f.State.HeadPose.Yaw+f.Idle.HeadMicroX, f.DisplayPose.Yaw, 1e-12)
}

func TestReset(t *testing.T) {
	c, _ := newTestController(Options{})
	c.SetMood(expression.MoodAngry, 0)
	c.Say("grr")
	run(c, 0.2)

	c.Reset()
	st := c.State()
	assert.Equal(t, expression.MoodNeutral, st.Mood)
	assert.Nil(t, st.Action)
	assert.False(t, st.Bubble.Visible())
	assert.Equal(t, bus.EventStateReset, c.Bus().History()[len(c.Bus().History())-1].Type)
}

func TestReadingTime(t *testing.T) {
	assert.Equal(t, 0.5, ReadingTime(""))
	assert.Equal(t, 0.5, ReadingTime("hi"))
	assert.InDelta(t, 7/3.5+0.2, ReadingTime("one two three four five six seven"), 1e-12)
	assert.Equal(t, "Focus time! 25 minutes. Let's go.", sessionStartMessage(25))
	assert.Equal(t, "Nice work! Take a 2.5 minute break.", breakStartMessage(2.5))
}
