package expression

import (
	"encoding/json"
	"math"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/ragdoll/internal/motion"
)

type fakeHead struct {
	poses        []motion.PartialPose
	lookForwards int
}

func (f *fakeHead) SetTargetPose(p motion.PartialPose, _ float64) { f.poses = append(f.poses, p) }
func (f *fakeHead) LookForward(float64)                          { f.lookForwards++ }

func newActions(head HeadPoser) *ActionController {
	return NewActionController(head, WithActionRand(rand.New(rand.NewSource(7))))
}

func tick(fn func(float64), seconds float64) {
	const dt = 1.0 / 60
	for i := 0; i < int(math.Ceil(seconds/dt)); i++ {
		fn(dt)
	}
}

func TestTriggerAction_Durations(t *testing.T) {
	a := newActions(nil)

	require.True(t, a.TriggerAction(ActionWink, 0))
	assert.Equal(t, DefaultActionDuration, a.ActiveAction().Duration)

	a.TriggerAction(ActionWink, 0.05)
	assert.Equal(t, MinActionDuration, a.ActiveAction().Duration)

	a.TriggerAction(ActionTalk, 1.5)
	assert.Equal(t, 1.5, a.ActiveAction().Duration)

	assert.False(t, a.TriggerAction("dance", 1))
	assert.Equal(t, ActionTalk, a.ActiveAction().Name, "unknown action leaves the slot alone")
}

func TestTriggerAction_ReplacesActive(t *testing.T) {
	a := newActions(nil)
	a.TriggerAction(ActionWink, 1)
	a.Update(0.5)
	require.InDelta(t, 0.5, a.ActionElapsed(), 1e-12)

	a.TriggerAction(ActionTalk, 1)
	assert.Equal(t, ActionTalk, a.ActiveAction().Name)
	assert.Equal(t, 0.0, a.ActionElapsed())
	assert.True(t, a.IsTalking())
}

func TestWink_ClearsAfterDuration(t *testing.T) {
	head := &fakeHead{}
	a := newActions(head)
	a.TriggerAction(ActionWink, 0.6)

	tick(a.Update, 0.7)
	assert.Nil(t, a.ActiveAction())
	assert.Equal(t, 0, head.lookForwards)
	assert.Empty(t, head.poses)
}

func TestShake_ClearsWithOneLookForward(t *testing.T) {
	head := &fakeHead{}
	a := newActions(head)
	a.TriggerAction(ActionShake, 0.6)

	tick(a.Update, 1.0)
	assert.Nil(t, a.ActiveAction())
	assert.Equal(t, 1, head.lookForwards)
	assert.NotEmpty(t, head.poses)

	for _, p := range head.poses {
		require.NotNil(t, p.Yaw)
		assert.Nil(t, p.Pitch)
		assert.LessOrEqual(t, math.Abs(*p.Yaw), 0.4*motion.MaxYaw)
	}
}

func TestShake_ManualClearLooksForward(t *testing.T) {
	head := &fakeHead{}
	a := newActions(head)
	a.TriggerAction(ActionShake, 2)
	a.Update(0.1)

	assert.True(t, a.ClearAction())
	assert.False(t, a.ClearAction())
	assert.Equal(t, 1, head.lookForwards)

	a.TriggerAction(ActionWink, 1)
	a.ClearAction()
	assert.Equal(t, 1, head.lookForwards)
}

func TestShakeYaw(t *testing.T) {
	assert.InDelta(t, 0, ShakeYaw(0), 1e-12)
	assert.InDelta(t, 0, ShakeYaw(1), 1e-9)
	// quarter of the first cycle
	p := 1.0 / 12
	want := 0.4 * motion.MaxYaw * (1 - math.Pow(1-p, 3))
	assert.InDelta(t, want, ShakeYaw(p), 1e-12)
}

func TestOverlay_Wink(t *testing.T) {
	a := newActions(nil)
	base := Preset(MoodNeutral)
	assert.Empty(t, a.ExpressionOverlay(base))

	a.TriggerAction(ActionWink, 1)
	a.Update(0.3)
	patch := a.ExpressionOverlay(base)
	assert.Equal(t, []Field{LeftEyeOpenness, LeftCheekPuff}, patch.Fields())
	assert.InDelta(t, 0, patch[LeftEyeOpenness], 1e-9, "fully closed at the end of the fast close")
	assert.InDelta(t, winkCheekRaise, patch[LeftCheekPuff], 1e-9)

	a.Update(0.35)
	patch = a.ExpressionOverlay(base)
	assert.Greater(t, patch[LeftEyeOpenness], 0.0)
	assert.Less(t, patch[LeftEyeOpenness], 1.0)

	merged := patch.Apply(base)
	assert.Equal(t, base[RightEyeOpenness], merged[RightEyeOpenness])
}

func TestOverlay_TalkAndShake(t *testing.T) {
	a := newActions(&fakeHead{})
	base := Preset(MoodNeutral)

	a.TriggerAction(ActionTalk, 2)
	var opens []float64
	for i := 0; i < 100; i++ {
		a.Update(1.0 / 60)
		patch := a.ExpressionOverlay(base)
		require.Contains(t, patch, MouthOpenness)
		opens = append(opens, patch[MouthOpenness])
	}
	assert.NotEqual(t, opens[20], opens[40], "talking mouth moves")
	for _, o := range opens {
		assert.GreaterOrEqual(t, o, 0.0)
		assert.LessOrEqual(t, o, talkBaseOpen+talkOpenRange+1e-12)
	}

	a.TriggerAction(ActionShake, 1)
	a.Update(0.1)
	assert.Empty(t, a.ExpressionOverlay(base))
}

func TestSetMood_IdempotentIsBitIdentical(t *testing.T) {
	c := NewController(newActions(nil), zerolog.Nop())
	require.True(t, c.SetMood(MoodSmile, 0.4))
	tick(c.Update, 0.2)

	before := c.ExpressionWithAction()
	progress := c.Progress()
	assert.False(t, c.SetMood(MoodSmile, 0.1))
	assert.Equal(t, progress, c.Progress())
	assert.Equal(t, before, c.ExpressionWithAction())

	c.Update(1.0 / 60)
	other := NewController(newActions(nil), zerolog.Nop())
	other.SetMood(MoodSmile, 0.4)
	tick(other.Update, 0.2)
	other.Update(1.0 / 60)
	if diff := cmp.Diff(other.Current(), c.Current()); diff != "" {
		t.Errorf("repeated SetMood changed the transition (-want +got):\n%s", diff)
	}
}

func TestSetMood_TransitionIsConvex(t *testing.T) {
	c := NewController(nil, zerolog.Nop())
	c.SetMood(MoodAngry, 0.5)
	from, to := Preset(MoodNeutral), Preset(MoodAngry)

	for i := 0; i < 40; i++ {
		c.Update(1.0 / 60)
		cur := c.Current()
		for f := Field(0); f < FieldCount; f++ {
			lo, hi := math.Min(from[f], to[f]), math.Max(from[f], to[f])
			assert.GreaterOrEqual(t, cur[f], lo-1e-12, f.String())
			assert.LessOrEqual(t, cur[f], hi+1e-12, f.String())
		}
	}
	assert.False(t, c.IsTransitioning())
	assert.Equal(t, to, c.Current())
	assert.Equal(t, MoodNeutral, c.PreviousMood())
	assert.Equal(t, MoodAngry, c.Mood())
}

func TestSetMood_DurationAndUnknown(t *testing.T) {
	c := NewController(nil, zerolog.Nop())
	assert.False(t, c.SetMood("ecstatic", 1))
	assert.Equal(t, MoodNeutral, c.Mood())

	c.SetMood(MoodSad, 0.001)
	c.Update(MinMoodTransition)
	assert.Equal(t, 1.0, c.Progress())

	c.SetMoodImmediate(MoodLaugh)
	assert.Equal(t, Preset(MoodLaugh), c.Current())
	assert.False(t, c.IsTransitioning())
}

func TestExpressionWithAction_OverlayWins(t *testing.T) {
	a := newActions(nil)
	c := NewController(a, zerolog.Nop())
	c.SetMoodImmediate(MoodSmile)

	a.TriggerAction(ActionWink, 1)
	c.Update(0.3)
	expr := c.ExpressionWithAction()
	assert.InDelta(t, 0, expr[LeftEyeOpenness], 1e-9)
	assert.Equal(t, Preset(MoodSmile)[RightEyeOpenness], expr[RightEyeOpenness])
	assert.Equal(t, Preset(MoodSmile), c.Current(), "overlay never touches the base")
}

func TestApplyBlinkAndPupilOffset(t *testing.T) {
	c := Preset(MoodNeutral)
	closed := ApplyBlink(c, 1)
	assert.Equal(t, 0.0, closed[LeftEyeOpenness])
	assert.Equal(t, 0.0, closed[RightEyeOpenness])
	half := ApplyBlink(c, 0.5)
	assert.Equal(t, 0.5, half[LeftEyeOpenness])
	assert.Equal(t, 1.0, c[LeftEyeOpenness], "input untouched")

	moved := ApplyPupilOffset(c, 1.5, -2)
	assert.Equal(t, 1.5, moved[LeftPupilX])
	assert.Equal(t, 1.5, moved[RightPupilX])
	assert.Equal(t, -2.0, moved[LeftPupilY])
}

func TestConfig_JSON(t *testing.T) {
	c := Preset(MoodSurprise)
	data, err := json.Marshal(c)
	require.NoError(t, err)

	var m map[string]float64
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Len(t, m, int(FieldCount))
	assert.Equal(t, c[PupilSize], m["pupilSize"])

	partial := Preset(MoodNeutral)
	require.NoError(t, json.Unmarshal([]byte(`{"mouthCurve":0.25}`), &partial))
	assert.Equal(t, 0.25, partial[MouthCurve])
	assert.Equal(t, 1.0, partial[LeftEyeOpenness])

	assert.Error(t, json.Unmarshal([]byte(`{"tail":1}`), &partial))
}

func TestParseMood(t *testing.T) {
	m, ok := ParseMood(" Smile ")
	assert.True(t, ok)
	assert.Equal(t, MoodSmile, m)

	_, ok = ParseMood("bored")
	assert.False(t, ok)
	assert.Len(t, Moods(), 9)
	for _, m := range Moods() {
		assert.True(t, m.Valid())
	}
}
