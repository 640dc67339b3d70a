package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/ragdoll/internal/motion"
	"github.com/normanking/ragdoll/internal/ragdoll"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "ragdoll.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
animation:
  frame_rate: 30
  neck:
    stiffness: 60
timer:
  session_minutes: 50
  tick_interval: 500ms
character:
  theme: midnight
`)
	cfg, _, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.Animation.FrameRate)
	assert.Equal(t, 60.0, cfg.Animation.Neck.Stiffness)
	assert.Equal(t, motion.DefaultJointParams()[motion.Neck].Damping, cfg.Animation.Neck.Damping)
	assert.Equal(t, 50.0, cfg.Timer.SessionMinutes)
	assert.Equal(t, 5.0, cfg.Timer.BreakMinutes)
	assert.Equal(t, 500*time.Millisecond, cfg.Timer.TickInterval)
	assert.Equal(t, "midnight", cfg.Character.Theme)
	assert.Equal(t, ragdoll.DefaultVariant, cfg.Character.Variant)
	assert.Equal(t, DefaultConfig().Idle, cfg.Idle)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "timer:\n  session_minutes: 50\n")
	t.Setenv("RAGDOLL_TIMER_SESSION_MINUTES", "15")
	t.Setenv("RAGDOLL_STREAM_ADDR", ":9999")

	cfg, _, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 15.0, cfg.Timer.SessionMinutes)
	assert.Equal(t, ":9999", cfg.Stream.Addr)
}

func TestLoad_Errors(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := writeConfig(t, t.TempDir(), "timer: [unterminated\n")
	_, _, err = Load(path)
	assert.Error(t, err)
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, _, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestConversions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Log.Level = "debug"
	cfg.Animation.FrameRate = 24
	cfg.Character.Variant = "compact"

	assert.Equal(t, "debug", string(cfg.Logging().Level))
	assert.Equal(t, 24, cfg.Engine().FrameRate)

	opts := cfg.ControllerOptions(zerolog.Nop())
	require.NotNil(t, opts.Idle)
	assert.Equal(t, cfg.Idle, *opts.Idle)
	assert.Equal(t, cfg.Animation.Neck, opts.JointParams[motion.Neck])

	c := ragdoll.New(opts)
	assert.Equal(t, "compact", c.RenderFrame().Variant.Name)
}

func TestApplyTuning(t *testing.T) {
	c := ragdoll.New(ragdoll.Options{})
	cfg := DefaultConfig()
	cfg.Animation.Head.Stiffness = 300
	cfg.Idle.BreathScale = 0.05
	cfg.Character.Theme = "midnight"

	cfg.ApplyTuning(c)
	head, ok := c.Joints().Joint(motion.HeadPivot)
	require.True(t, ok)
	assert.Equal(t, 300.0, head.Stiffness)
	assert.Equal(t, "midnight", c.RenderFrame().Theme)
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "timer:\n  session_minutes: 20\n")
	_, v, err := Load(path)
	require.NoError(t, err)

	var got atomic.Value
	Watch(v, zerolog.Nop(), func(cfg *Config) { got.Store(cfg.Timer.SessionMinutes) })

	require.NoError(t, os.WriteFile(path, []byte("timer:\n  session_minutes: 40\n"), 0644))
	assert.Eventually(t, func() bool {
		m, ok := got.Load().(float64)
		return ok && m == 40
	}, 5*time.Second, 50*time.Millisecond)
}
