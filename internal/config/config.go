// Package config provides configuration management for ragdoll
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/normanking/ragdoll/internal/engine"
	"github.com/normanking/ragdoll/internal/expression"
	"github.com/normanking/ragdoll/internal/idle"
	"github.com/normanking/ragdoll/internal/logging"
	"github.com/normanking/ragdoll/internal/motion"
	"github.com/normanking/ragdoll/internal/ragdoll"
	"github.com/normanking/ragdoll/internal/stream"
	"github.com/normanking/ragdoll/internal/timer"
)

// EnvPrefix prefixes environment overrides, e.g. RAGDOLL_TIMER_SESSION_MINUTES.
const EnvPrefix = "RAGDOLL"

// Config holds all application configuration
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Animation AnimationConfig `mapstructure:"animation"`
	Idle      idle.Config     `mapstructure:"idle"`
	Timer     TimerConfig     `mapstructure:"timer"`
	Stream    stream.Config   `mapstructure:"stream"`
	Character CharacterConfig `mapstructure:"character"`
}

// LogConfig configures logging
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Dir        string `mapstructure:"dir"`
	Console    bool   `mapstructure:"console"`
	MaxHistory int    `mapstructure:"max_history"`
}

// AnimationConfig tunes the frame loop and joint springs
type AnimationConfig struct {
	FrameRate   int                `mapstructure:"frame_rate"`
	HistorySize int                `mapstructure:"history_size"`
	Head        motion.JointParams `mapstructure:"head"`
	Neck        motion.JointParams `mapstructure:"neck"`
}

// TimerConfig configures the focus timer
type TimerConfig struct {
	SessionMinutes float64       `mapstructure:"session_minutes"`
	BreakMinutes   float64       `mapstructure:"break_minutes"`
	TickInterval   time.Duration `mapstructure:"tick_interval"`
}

// CharacterConfig picks the look and starting mood
type CharacterConfig struct {
	Theme   string `mapstructure:"theme"`
	Variant string `mapstructure:"variant"`
	Mood    string `mapstructure:"mood"`
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() *Config {
	joints := motion.DefaultJointParams()
	return &Config{
		Log: LogConfig{
			Level:      string(logging.LevelInfo),
			Console:    true,
			MaxHistory: 500,
		},
		Animation: AnimationConfig{
			FrameRate:   engine.DefaultFrameRate,
			HistorySize: 100,
			Head:        joints[motion.HeadPivot],
			Neck:        joints[motion.Neck],
		},
		Idle: idle.DefaultConfig(),
		Timer: TimerConfig{
			SessionMinutes: timer.DefaultSessionMinutes,
			BreakMinutes:   timer.DefaultBreakMinutes,
			TickInterval:   timer.DefaultTickInterval,
		},
		Stream: stream.DefaultConfig(),
		Character: CharacterConfig{
			Theme:   ragdoll.DefaultTheme,
			Variant: ragdoll.DefaultVariant,
			Mood:    string(expression.MoodNeutral),
		},
	}
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".ragdoll"), nil
}

// Load reads configuration from path, or from ragdoll.yaml in the config
// directory or the working directory when path is empty. A missing default
// file is not an error. Environment variables override file values.
func Load(path string) (*Config, *viper.Viper, error) {
	cfg := DefaultConfig()
	v := viper.New()
	setDefaults(v, cfg)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("ragdoll")
		v.SetConfigType("yaml")
		if dir, err := GetConfigDir(); err == nil {
			v.AddConfigPath(dir)
		}
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, v, nil
}

// Watch reloads the configuration whenever the file behind v changes and
// hands the new value to fn. Decode failures are logged and skipped.
func Watch(v *viper.Viper, log zerolog.Logger, fn func(*Config)) {
	v.OnConfigChange(func(e fsnotify.Event) {
		cfg := DefaultConfig()
		if err := v.Unmarshal(cfg); err != nil {
			log.Warn().Err(err).Str("file", e.Name).Msg("ignoring invalid config change")
			return
		}
		log.Info().Str("file", e.Name).Str("op", e.Op.String()).Msg("config reloaded")
		fn(cfg)
	})
	v.WatchConfig()
}

// setDefaults registers every key so environment overrides apply even when
// the file omits them.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.dir", cfg.Log.Dir)
	v.SetDefault("log.console", cfg.Log.Console)
	v.SetDefault("log.max_history", cfg.Log.MaxHistory)

	v.SetDefault("animation.frame_rate", cfg.Animation.FrameRate)
	v.SetDefault("animation.history_size", cfg.Animation.HistorySize)
	for name, p := range map[string]motion.JointParams{"head": cfg.Animation.Head, "neck": cfg.Animation.Neck} {
		v.SetDefault("animation."+name+".stiffness", p.Stiffness)
		v.SetDefault("animation."+name+".damping", p.Damping)
		v.SetDefault("animation."+name+".mass", p.Mass)
	}

	v.SetDefault("idle.blink_duration", cfg.Idle.BlinkDuration)
	v.SetDefault("idle.blink_min_interval", cfg.Idle.BlinkMinInterval)
	v.SetDefault("idle.blink_max_interval", cfg.Idle.BlinkMaxInterval)
	v.SetDefault("idle.breath_cycle", cfg.Idle.BreathCycle)
	v.SetDefault("idle.breath_scale", cfg.Idle.BreathScale)
	v.SetDefault("idle.saccade_range", cfg.Idle.SaccadeRange)
	v.SetDefault("idle.saccade_speed", cfg.Idle.SaccadeSpeed)
	v.SetDefault("idle.saccade_min_interval", cfg.Idle.SaccadeMinInterval)
	v.SetDefault("idle.saccade_max_interval", cfg.Idle.SaccadeMaxInterval)
	v.SetDefault("idle.micro_amplitude", cfg.Idle.MicroAmplitude)

	v.SetDefault("timer.session_minutes", cfg.Timer.SessionMinutes)
	v.SetDefault("timer.break_minutes", cfg.Timer.BreakMinutes)
	v.SetDefault("timer.tick_interval", cfg.Timer.TickInterval)

	v.SetDefault("stream.addr", cfg.Stream.Addr)
	v.SetDefault("stream.replay_history", cfg.Stream.ReplayHistory)
	v.SetDefault("stream.history_count", cfg.Stream.HistoryCount)
	v.SetDefault("stream.frame_interval", cfg.Stream.FrameInterval)

	v.SetDefault("character.theme", cfg.Character.Theme)
	v.SetDefault("character.variant", cfg.Character.Variant)
	v.SetDefault("character.mood", cfg.Character.Mood)
}

// Logging converts the log section for logging.New.
func (c *Config) Logging() *logging.Config {
	return &logging.Config{
		LogDir:     c.Log.Dir,
		Level:      logging.LogLevel(c.Log.Level),
		MaxHistory: c.Log.MaxHistory,
		Console:    c.Log.Console,
	}
}

// Engine returns the runtime loop configuration.
func (c *Config) Engine() engine.Config {
	return engine.Config{FrameRate: c.Animation.FrameRate, TimerInterval: c.Timer.TickInterval}
}

// ControllerOptions returns the controller construction options.
func (c *Config) ControllerOptions(log zerolog.Logger) ragdoll.Options {
	idleCfg := c.Idle
	return ragdoll.Options{
		Logger:         log,
		JointParams:    c.jointParams(),
		Idle:           &idleCfg,
		SessionMinutes: c.Timer.SessionMinutes,
		BreakMinutes:   c.Timer.BreakMinutes,
		HistorySize:    c.Animation.HistorySize,
		Theme:          c.Character.Theme,
		Variant:        c.Character.Variant,
	}
}

func (c *Config) jointParams() map[motion.JointID]motion.JointParams {
	return map[motion.JointID]motion.JointParams{
		motion.HeadPivot: c.Animation.Head,
		motion.Neck:      c.Animation.Neck,
	}
}

// ApplyTuning pushes the hot-reloadable settings (springs, idle, look) into
// a running controller. Structural settings such as the frame rate need a
// restart.
func (c *Config) ApplyTuning(ctrl *ragdoll.Controller) {
	for id, p := range c.jointParams() {
		ctrl.Joints().SetParams(id, p)
	}
	ctrl.Idle().SetConfig(c.Idle)
	ctrl.SetTheme(c.Character.Theme, c.Character.Variant)
}
