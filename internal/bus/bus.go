// Package bus provides the event bus that fans out character state changes.
// It keeps a bounded history of recent events for late joiners.
package bus

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/normanking/ragdoll/internal/notify"
)

// DefaultHistorySize is the number of recent events retained.
const DefaultHistorySize = 100

// EventType identifies an event.
type EventType string

// Event types emitted by the state manager and the controller.
const (
	EventMoodChanged         EventType = "moodChanged"
	EventActionStarted       EventType = "actionStarted"
	EventActionCleared       EventType = "actionCleared"
	EventHeadPoseChanged     EventType = "headPoseChanged"
	EventSpeechBubbleChanged EventType = "speechBubbleChanged"
	EventSpeechBubbleCleared EventType = "speechBubbleCleared"
	EventStateReset          EventType = "stateReset"
	EventTimerChanged        EventType = "timerChanged"
	EventTasksChanged        EventType = "tasksChanged"
	EventFrame               EventType = "frame"
)

// Event is a single bus message. Data is a value copy owned by the event.
type Event struct {
	Seq       uint64    `json:"seq"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// Option configures a Bus.
type Option func(*Bus)

// WithHistorySize sets the history cap. Non-positive values keep the default.
func WithHistorySize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.historySize = n
		}
	}
}

// WithLogger sets the component logger.
func WithLogger(log zerolog.Logger) Option {
	return func(b *Bus) { b.log = log }
}

// WithClock replaces time.Now for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *Bus) { b.now = now }
}

// Bus delivers events to subscribers in subscription order. Emit and
// Subscribe belong to the owning goroutine; History may be read from any.
type Bus struct {
	log  zerolog.Logger
	now  func() time.Time
	subs *notify.Registry[Event]
	seq  uint64

	historyMu   sync.RWMutex
	history     []Event
	historySize int

	// OnDeliveryFailure is called with the event type whenever a subscriber
	// panics.
	OnDeliveryFailure func(EventType)
}

// New creates a bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		log:         zerolog.Nop(),
		now:         time.Now,
		historySize: DefaultHistorySize,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.history = make([]Event, 0, b.historySize)
	b.subs = notify.New[Event]("bus", b.log)
	return b
}

// Subscribe registers h for every event and returns its unsubscribe
// function.
func (b *Bus) Subscribe(h func(Event)) func() {
	return b.subs.Subscribe(h)
}

// Emit records the event in history and then delivers it. A panicking
// subscriber is logged and skipped.
func (b *Bus) Emit(t EventType, data any) Event {
	b.seq++
	e := Event{Seq: b.seq, Type: t, Timestamp: b.now(), Data: data}
	b.addToHistory(e)

	if failed := b.subs.Notify(e); failed > 0 {
		b.log.Warn().Str("event", string(t)).Int("failed", failed).Msg("event delivery failed for some subscribers")
		if b.OnDeliveryFailure != nil {
			for i := 0; i < failed; i++ {
				b.OnDeliveryFailure(t)
			}
		}
	}
	return e
}

func (b *Bus) addToHistory(e Event) {
	b.historyMu.Lock()
	defer b.historyMu.Unlock()

	b.history = append(b.history, e)
	if len(b.history) > b.historySize {
		b.history = append(b.history[:0], b.history[len(b.history)-b.historySize:]...)
	}
}

// History returns a copy of the retained events, oldest first.
func (b *Bus) History() []Event {
	b.historyMu.RLock()
	defer b.historyMu.RUnlock()

	out := make([]Event, len(b.history))
	copy(out, b.history)
	return out
}

// Recent returns the last n events.
func (b *Bus) Recent(n int) []Event {
	b.historyMu.RLock()
	defer b.historyMu.RUnlock()

	if n > len(b.history) {
		n = len(b.history)
	}
	if n <= 0 {
		return nil
	}
	out := make([]Event, n)
	copy(out, b.history[len(b.history)-n:])
	return out
}

// SubscriberCount returns the number of live subscribers.
func (b *Bus) SubscriberCount() int { return b.subs.Len() }

// ClearHistory drops the retained events.
func (b *Bus) ClearHistory() {
	b.historyMu.Lock()
	b.history = b.history[:0]
	b.historyMu.Unlock()
}

// Clear drops every subscriber and the history.
func (b *Bus) Clear() {
	b.subs.Clear()
	b.ClearHistory()
}
