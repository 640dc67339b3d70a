package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/normanking/ragdoll/internal/config"
	"github.com/normanking/ragdoll/internal/engine"
	"github.com/normanking/ragdoll/internal/logging"
	"github.com/normanking/ragdoll/internal/ragdoll"
	"github.com/normanking/ragdoll/internal/stream"
)

type appOptions struct {
	stream bool
	quiet  bool
}

// app is the wired runtime shared by every subcommand.
type app struct {
	cfg    *config.Config
	viper  *viper.Viper
	log    *logging.Logger
	ctrl   *ragdoll.Controller
	loop   *engine.Loop
	stream *stream.Observer
}

func newApp(opts appOptions) (*app, error) {
	cfg, v, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if addr != "" {
		cfg.Stream.Addr = addr
	}
	if theme != "" {
		cfg.Character.Theme = theme
	}
	if opts.quiet {
		cfg.Log.Console = false
	}

	log, err := logging.New(cfg.Logging())
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	ctrl := ragdoll.New(cfg.ControllerOptions(log.Component("ragdoll")))
	if err := ctrl.ExecuteCommand(ragdoll.SetMood{Mood: cfg.Character.Mood}); err != nil {
		appLog := log.Component("app")
		appLog.Warn().Err(err).Str("mood", cfg.Character.Mood).Msg("ignoring configured mood")
	}

	loop, err := engine.New(ctrl, cfg.Engine(), log.Component("engine"))
	if err != nil {
		ctrl.Close()
		log.Close()
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	a := &app{cfg: cfg, viper: v, log: log, ctrl: ctrl, loop: loop}
	if opts.stream {
		a.stream = stream.New(cfg.Stream, loop, ctrl.Bus(), log.Component("stream"))
		loop.AddObserver(a.stream)
	}
	return a, nil
}

// run starts the engine and the stream, then runs task until it returns or
// ctx is cancelled. A nil task runs until ctx is cancelled.
func (a *app) run(ctx context.Context, task func(context.Context) error) error {
	log := a.log.Component("app")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.stream != nil {
		if err := a.stream.Start(); err != nil {
			return err
		}
		defer a.stopStream(log)
	}

	engineErr := make(chan error, 1)
	go func() { engineErr <- a.loop.Run(ctx) }()

	if a.viper.ConfigFileUsed() != "" {
		config.Watch(a.viper, log, func(cfg *config.Config) {
			err := a.loop.Do(ctx, func(c *ragdoll.Controller) error {
				cfg.ApplyTuning(c)
				return nil
			})
			if err != nil {
				log.Warn().Err(err).Msg("config change not applied")
			}
		})
	}

	log.Info().
		Str("version", Version).
		Str("config", a.viper.ConfigFileUsed()).
		Str("theme", a.cfg.Character.Theme).
		Msg("ragdoll started")

	var taskErr error
	if task == nil {
		<-ctx.Done()
	} else {
		taskErr = task(ctx)
		if errors.Is(taskErr, context.Canceled) {
			taskErr = nil
		}
	}
	cancel()

	if err := <-engineErr; err != nil {
		return err
	}
	log.Info().Msg("ragdoll stopped")
	return taskErr
}

func (a *app) stopStream(log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.stream.Stop(ctx); err != nil {
		log.Warn().Err(err).Msg("stream shutdown")
	}
}

func (a *app) close() {
	a.ctrl.Close()
	a.log.Close()
}
