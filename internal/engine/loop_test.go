package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/normanking/ragdoll/internal/bus"
	"github.com/normanking/ragdoll/internal/expression"
	"github.com/normanking/ragdoll/internal/metrics"
	"github.com/normanking/ragdoll/internal/ragdoll"
)

type recorder struct {
	mu     sync.Mutex
	events []bus.EventType
	frames int
	last   ragdoll.Frame
}

func (r *recorder) OnEvent(e bus.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e.Type)
}

func (r *recorder) OnFrame(f ragdoll.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames++
	r.last = f
}

func (r *recorder) snapshot() ([]bus.EventType, int, ragdoll.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bus.EventType(nil), r.events...), r.frames, r.last
}

func startLoop(t *testing.T, obs Observer) (*Loop, context.CancelFunc, <-chan error) {
	t.Helper()
	c := ragdoll.New(ragdoll.Options{})
	l, err := New(c, Config{FrameRate: 200}, zerolog.Nop())
	require.NoError(t, err)
	if obs != nil {
		l.AddObserver(obs)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()
	return l, cancel, done
}

func TestLoop_SubmitAndObserve(t *testing.T) {
	defer goleak.VerifyNone(t)

	rec := &recorder{}
	l, cancel, done := startLoop(t, rec)

	ctx, stop := context.WithTimeout(context.Background(), 2*time.Second)
	defer stop()
	require.NoError(t, l.Submit(ctx, ragdoll.SetMood{Mood: "laugh"}))

	require.Eventually(t, func() bool {
		events, frames, last := rec.snapshot()
		return frames > 3 && len(events) > 0 && last.State.Mood == expression.MoodLaugh
	}, 2*time.Second, 10*time.Millisecond)

	events, _, _ := rec.snapshot()
	assert.Contains(t, events, bus.EventMoodChanged)

	var mood expression.Mood
	require.NoError(t, l.Do(ctx, func(c *ragdoll.Controller) error {
		mood = c.State().Mood
		return nil
	}))
	assert.Equal(t, expression.MoodLaugh, mood)

	cancel()
	require.NoError(t, <-done)
	assert.ErrorIs(t, l.Submit(context.Background(), ragdoll.ClearAction{}), ErrStopped)
}

func TestLoop_RunTwice(t *testing.T) {
	defer goleak.VerifyNone(t)

	l, cancel, done := startLoop(t, nil)
	require.NoError(t, l.Do(context.Background(), func(*ragdoll.Controller) error { return nil }))
	assert.Error(t, l.Run(context.Background()))

	l.AddObserver(&recorder{})
	cancel()
	require.NoError(t, <-done)
}

func TestLoop_SubmitHonoursContext(t *testing.T) {
	c := ragdoll.New(ragdoll.Options{})
	l, err := New(c, Config{}, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, l.Submit(ctx, ragdoll.ClearAction{}), context.Canceled)
}

func TestExecute_RecordsMetrics(t *testing.T) {
	c := ragdoll.New(ragdoll.Options{})
	ok := metrics.CommandsTotal.WithLabelValues("setMood", metrics.ResultOK)
	unknown := metrics.CommandsTotal.WithLabelValues("unknown", metrics.ResultUnknown)
	beforeOK, beforeUnknown := testutil.ToFloat64(ok), testutil.ToFloat64(unknown)

	require.NoError(t, Execute(c, ragdoll.SetMood{Mood: "sad"}))
	assert.ErrorIs(t, Execute(c, nil), ragdoll.ErrUnknownCommand)

	assert.Equal(t, beforeOK+1, testutil.ToFloat64(ok))
	assert.Equal(t, beforeUnknown+1, testutil.ToFloat64(unknown))
}
