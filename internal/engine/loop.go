// Package engine runs a ragdoll controller on a single goroutine. Frames,
// focus timer ticks, commands and host callbacks are serialised through one
// select loop, so the controller never needs locks.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/normanking/ragdoll/internal/bus"
	"github.com/normanking/ragdoll/internal/metrics"
	"github.com/normanking/ragdoll/internal/ragdoll"
	"github.com/normanking/ragdoll/internal/timer"
)

// ErrStopped is returned by Submit and Do once the loop has exited.
var ErrStopped = errors.New("engine stopped")

// DefaultFrameRate is used when Config.FrameRate is not positive.
const DefaultFrameRate = 60

// Config configures a Loop.
type Config struct {
	FrameRate     int           `mapstructure:"frame_rate"`
	TimerInterval time.Duration `mapstructure:"timer_interval"`
}

// Observer receives bus events and rendered frames. Both methods run on the
// loop goroutine and must not block.
type Observer interface {
	OnEvent(bus.Event)
	OnFrame(ragdoll.Frame)
}

type request struct {
	fn   func(*ragdoll.Controller) error
	done chan error
}

// Loop owns a controller and drives it.
type Loop struct {
	c   *ragdoll.Controller
	log zerolog.Logger

	frameInterval time.Duration
	ticker        *timer.Ticker
	requests      chan request

	mu        sync.Mutex
	observers []Observer
	running   bool
	stopped   chan struct{}
}

// New creates a loop around c. The controller must not be used from any
// other goroutine once Run starts.
func New(c *ragdoll.Controller, cfg Config, log zerolog.Logger) (*Loop, error) {
	rate := cfg.FrameRate
	if rate <= 0 {
		rate = DefaultFrameRate
	}
	ticker, err := timer.NewTicker(cfg.TimerInterval, log.With().Str("component", "ticker").Logger())
	if err != nil {
		return nil, fmt.Errorf("failed to create timer ticker: %w", err)
	}
	return &Loop{
		c:             c,
		log:           log,
		frameInterval: time.Second / time.Duration(rate),
		ticker:        ticker,
		requests:      make(chan request),
		stopped:       make(chan struct{}),
	}, nil
}

// AddObserver registers o. Observers added after Run starts are ignored.
func (l *Loop) AddObserver(o Observer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		l.log.Warn().Msg("observer added after start, ignoring")
		return
	}
	l.observers = append(l.observers, o)
}

// Submit executes cmd on the loop goroutine and returns its result.
func (l *Loop) Submit(ctx context.Context, cmd ragdoll.Command) error {
	return l.Do(ctx, func(c *ragdoll.Controller) error {
		return Execute(c, cmd)
	})
}

// Do runs fn on the loop goroutine and waits for it.
func (l *Loop) Do(ctx context.Context, fn func(*ragdoll.Controller) error) error {
	req := request{fn: fn, done: make(chan error, 1)}
	select {
	case l.requests <- req:
	case <-l.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drives the controller until ctx is cancelled. It can be called once.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return fmt.Errorf("engine already running")
	}
	l.running = true
	observers := append([]Observer(nil), l.observers...)
	l.mu.Unlock()
	defer close(l.stopped)

	unsubscribe := l.instrument(observers)
	defer unsubscribe()

	l.ticker.Start()
	defer l.ticker.Stop()

	frames := time.NewTicker(l.frameInterval)
	defer frames.Stop()

	l.log.Info().Dur("frame_interval", l.frameInterval).Int("observers", len(observers)).Msg("engine started")
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			l.log.Info().Msg("engine stopped")
			return nil

		case now := <-frames.C:
			dt := now.Sub(last).Seconds()
			last = now
			l.step(dt, observers)

		case <-l.ticker.C():
			l.c.Timer().Update()

		case req := <-l.requests:
			req.done <- req.fn(l.c)
		}
	}
}

func (l *Loop) step(dt float64, observers []Observer) {
	start := time.Now()
	l.c.Update(dt)
	if len(observers) > 0 {
		frame := l.c.RenderFrame()
		for _, o := range observers {
			o.OnFrame(frame)
		}
	}
	metrics.FramesTotal.Inc()
	metrics.FrameDuration.Observe(time.Since(start).Seconds())
}

// instrument hooks metrics and observers into the controller. It runs on
// the loop goroutine because the bus and timer registries are not
// goroutine-safe.
func (l *Loop) instrument(observers []Observer) func() {
	b := l.c.Bus()
	b.OnDeliveryFailure = func(bus.EventType) {
		metrics.SubscriberPanics.WithLabelValues("bus").Inc()
	}
	unsubEvents := b.Subscribe(func(e bus.Event) {
		metrics.EventsTotal.WithLabelValues(string(e.Type)).Inc()
		for _, o := range observers {
			o.OnEvent(e)
		}
	})
	unsubTimer := l.c.Timer().OnUpdate(func(timer.Snapshot) {
		metrics.TimerTransitions.WithLabelValues(string(l.c.Timer().LastTransition())).Inc()
	})
	return func() {
		unsubEvents()
		unsubTimer()
		b.OnDeliveryFailure = nil
	}
}

// Execute runs cmd and records it in the command metrics. Hosts that call
// the controller directly use it instead of ExecuteCommand.
func Execute(c *ragdoll.Controller, cmd ragdoll.Command) error {
	err := c.ExecuteCommand(cmd)
	kind := "unknown"
	if cmd != nil {
		kind = cmd.Kind()
	}
	switch {
	case err == nil:
		metrics.CommandsTotal.WithLabelValues(kind, metrics.ResultOK).Inc()
	case errors.Is(err, ragdoll.ErrUnknownCommand):
		metrics.CommandsTotal.WithLabelValues(kind, metrics.ResultUnknown).Inc()
	default:
		metrics.CommandsTotal.WithLabelValues(kind, metrics.ResultError).Inc()
	}
	return err
}
