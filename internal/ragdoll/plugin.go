package ragdoll

import (
	"github.com/normanking/ragdoll/internal/bus"
	"github.com/normanking/ragdoll/internal/tasks"
	"github.com/normanking/ragdoll/internal/timer"
)

// Plugin extends the controller. Initialize runs once on registration.
type Plugin interface {
	Name() string
	Initialize(c *Controller) error
}

// Updater is implemented by plugins that need the frame delta.
type Updater interface {
	Update(dt float64)
}

// Destroyer is implemented by plugins holding subscriptions.
type Destroyer interface {
	Destroy()
}

// RegisterPlugin initializes p and adds it. A name already registered or a
// failed Initialize leaves the plugin out.
func (c *Controller) RegisterPlugin(p Plugin) bool {
	name := p.Name()
	if _, exists := c.plugins[name]; exists {
		c.log.Warn().Str("plugin", name).Msg("plugin already registered")
		return false
	}
	if err := p.Initialize(c); err != nil {
		c.log.Error().Err(err).Str("plugin", name).Msg("plugin failed to initialize")
		return false
	}
	c.plugins[name] = p
	c.pluginOrder = append(c.pluginOrder, name)
	c.log.Debug().Str("plugin", name).Msg("plugin registered")
	return true
}

// UnregisterPlugin destroys and removes the named plugin.
func (c *Controller) UnregisterPlugin(name string) bool {
	p, ok := c.plugins[name]
	if !ok {
		return false
	}
	if d, ok := p.(Destroyer); ok {
		d.Destroy()
	}
	delete(c.plugins, name)
	for i, n := range c.pluginOrder {
		if n == name {
			c.pluginOrder = append(c.pluginOrder[:i], c.pluginOrder[i+1:]...)
			break
		}
	}
	return true
}

// Plugin returns a registered plugin by name.
func (c *Controller) Plugin(name string) (Plugin, bool) {
	p, ok := c.plugins[name]
	return p, ok
}

// Plugins lists plugin names in registration order.
func (c *Controller) Plugins() []string {
	return append([]string(nil), c.pluginOrder...)
}

// reminderAt is the remaining time (seconds) at which a focus session gets
// its reminder. Sessions no longer than this get none.
const reminderAt = 300

// TimerPlugin republishes timer changes on the bus and has the character
// announce session boundaries.
type TimerPlugin struct {
	// SelfTick polls the timer once per second of frame time.
	SelfTick bool

	c           *Controller
	unsubscribe func()
	reminded    bool
	accum       float64
}

// TimerPluginName is the name the timer plugin registers under.
const TimerPluginName = "timer"

func (p *TimerPlugin) Name() string { return TimerPluginName }

func (p *TimerPlugin) Initialize(c *Controller) error {
	p.c = c
	p.unsubscribe = c.Timer().OnUpdate(p.onTimer)
	return nil
}

func (p *TimerPlugin) onTimer(s timer.Snapshot) {
	c := p.c
	c.Bus().Emit(bus.EventTimerChanged, s)

	switch c.Timer().LastTransition() {
	case timer.TransitionStarted:
		p.reminded = false
		c.Say(sessionStartMessage(s.SessionDuration))
	case timer.TransitionSessionComplete:
		c.Say(breakStartMessage(s.BreakDuration))
	case timer.TransitionBreakComplete:
		c.Say(breakEndMessage)
	case timer.TransitionTick:
		if p.dueReminder(s) {
			p.reminded = true
			c.Say(fiveMinuteReminder)
		}
	}
}

func (p *TimerPlugin) dueReminder(s timer.Snapshot) bool {
	if s.IsBreak || p.reminded || s.SessionDuration*60 <= reminderAt {
		return false
	}
	return s.RemainingTime <= reminderAt && s.RemainingTime > reminderAt-1
}

func (p *TimerPlugin) Update(dt float64) {
	if !p.SelfTick || p.c.Timer().Phase() != timer.PhaseRunning {
		p.accum = 0
		return
	}
	p.accum += dt
	if p.accum >= 1 {
		p.accum -= 1
		p.c.Timer().Update()
	}
}

func (p *TimerPlugin) Destroy() {
	if p.unsubscribe != nil {
		p.unsubscribe()
		p.unsubscribe = nil
	}
}

// ListPlugin republishes task list changes on the bus and cheers when the
// last open task is done.
type ListPlugin struct {
	c           *Controller
	unsubscribe func()
	open        int
}

// ListPluginName is the name the task list plugin registers under.
const ListPluginName = "tasks"

// allDoneMessage is said when the last unfinished task is completed.
const allDoneMessage = "All tasks done!"

func (p *ListPlugin) Name() string { return ListPluginName }

func (p *ListPlugin) Initialize(c *Controller) error {
	p.c = c
	p.open = openTasks(c.Tasks().Snapshot())
	p.unsubscribe = c.Tasks().OnUpdate(p.onTasks)
	return nil
}

func (p *ListPlugin) onTasks(s tasks.Snapshot) {
	p.c.Bus().Emit(bus.EventTasksChanged, s)

	open := openTasks(s)
	if p.open > 0 && open == 0 && len(s.Tasks) > 0 {
		p.c.Say(allDoneMessage)
	}
	p.open = open
}

func (p *ListPlugin) Destroy() {
	if p.unsubscribe != nil {
		p.unsubscribe()
		p.unsubscribe = nil
	}
}

func openTasks(s tasks.Snapshot) int {
	n := 0
	for _, t := range s.Tasks {
		if t.Status != tasks.StatusDone {
			n++
		}
	}
	return n
}
