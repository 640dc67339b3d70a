package timer

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultTickInterval is how often the timer is polled.
const DefaultTickInterval = time.Second

// Ticker fires on a cron schedule independent of the frame loop. Ticks are
// delivered on C so the owner can run Timer.Update on its own goroutine.
// A tick is dropped if the previous one has not been consumed.
type Ticker struct {
	cron *cron.Cron
	c    chan time.Time
	log  zerolog.Logger
}

// NewTicker creates a stopped ticker with the given interval.
func NewTicker(interval time.Duration, log zerolog.Logger) (*Ticker, error) {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	t := &Ticker{
		cron: cron.New(),
		c:    make(chan time.Time, 1),
		log:  log,
	}

	spec := fmt.Sprintf("@every %s", interval)
	if _, err := t.cron.AddFunc(spec, t.fire); err != nil {
		return nil, fmt.Errorf("failed to schedule timer tick %q: %w", spec, err)
	}
	return t, nil
}

func (t *Ticker) fire() {
	select {
	case t.c <- time.Now():
	default:
		t.log.Debug().Msg("timer tick dropped")
	}
}

// C returns the tick channel.
func (t *Ticker) C() <-chan time.Time { return t.c }

// Start begins firing.
func (t *Ticker) Start() {
	t.cron.Start()
}

// Stop halts the schedule and waits for a running tick to finish.
func (t *Ticker) Stop() {
	ctx := t.cron.Stop()
	<-ctx.Done()
}
