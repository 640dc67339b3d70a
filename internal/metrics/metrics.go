// Package metrics exposes prometheus instrumentation for the runtime.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ragdoll_frames_total",
			Help: "Total number of animation frames stepped",
		},
	)

	FrameDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ragdoll_frame_duration_seconds",
			Help:    "Time spent stepping and rendering one frame",
			Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025},
		},
	)

	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragdoll_commands_total",
			Help: "Total number of commands executed",
		},
		[]string{"kind", "result"},
	)

	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragdoll_events_total",
			Help: "Total number of bus events emitted",
		},
		[]string{"type"},
	)

	SubscriberPanics = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragdoll_subscriber_panics_total",
			Help: "Total number of recovered subscriber panics",
		},
		[]string{"source"},
	)

	TimerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragdoll_timer_transitions_total",
			Help: "Focus timer transitions by kind",
		},
		[]string{"transition"},
	)

	StreamClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ragdoll_stream_clients",
			Help: "Number of connected stream clients",
		},
	)
)

// Command results.
const (
	ResultOK      = "ok"
	ResultUnknown = "unknown"
	ResultError   = "error"
)
