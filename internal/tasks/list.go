// Package tasks is the character's task list. At most one task is in
// progress at a time and the active task pointer always names it.
package tasks

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/normanking/ragdoll/internal/notify"
)

// Status is a task's progress state.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusBlocked    Status = "blocked"
	StatusDone       Status = "done"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusBlocked, StatusDone:
		return true
	}
	return false
}

// Task is one entry in the list.
type Task struct {
	ID            string    `json:"id"`
	Text          string    `json:"text"`
	Status        Status    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
	BlockedReason string    `json:"blockedReason,omitempty"`
}

// Snapshot is an immutable copy of the list.
type Snapshot struct {
	Tasks        []Task `json:"tasks"`
	ActiveTaskID string `json:"activeTaskId,omitempty"`
	IsExpanded   bool   `json:"isExpanded"`
}

// Active returns the active task, if any.
func (s Snapshot) Active() (Task, bool) {
	for _, t := range s.Tasks {
		if t.ID == s.ActiveTaskID && s.ActiveTaskID != "" {
			return t, true
		}
	}
	return Task{}, false
}

// Option configures a List.
type Option func(*List)

// WithIDGenerator replaces the uuid generator.
func WithIDGenerator(gen func() string) Option {
	return func(l *List) { l.newID = gen }
}

// WithClock replaces time.Now for CreatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(l *List) { l.now = now }
}

// WithLogger sets the component logger.
func WithLogger(log zerolog.Logger) Option {
	return func(l *List) { l.log = log }
}

// List is the task list state machine. Not safe for concurrent use.
type List struct {
	tasks    []Task
	activeID string
	expanded bool

	newID func() string
	now   func() time.Time
	log   zerolog.Logger
	subs  *notify.Registry[Snapshot]
}

// New creates an empty, collapsed list.
func New(opts ...Option) *List {
	l := &List{
		newID: uuid.NewString,
		now:   time.Now,
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.subs = notify.New[Snapshot]("tasks", l.log)
	return l
}

// OnUpdate registers fn for every change and returns its unsubscribe
// function.
func (l *List) OnUpdate(fn func(Snapshot)) func() {
	return l.subs.Subscribe(fn)
}

// AddTask appends a task. Blank text is ignored. A task added in progress
// becomes the active task and any previously active task goes back to todo.
func (l *List) AddTask(text string, status Status) (Task, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Task{}, false
	}
	if !status.Valid() {
		status = StatusTodo
	}

	t := Task{ID: l.newID(), Text: text, Status: status, CreatedAt: l.now()}
	if status == StatusInProgress {
		l.demoteInProgress("")
		l.activeID = t.ID
	}
	l.tasks = append(l.tasks, t)

	l.log.Debug().Str("id", t.ID).Str("status", string(status)).Msg("task added")
	l.notify()
	return t, true
}

// UpdateTaskStatus moves a task to status. Unknown ids and statuses are
// ignored.
func (l *List) UpdateTaskStatus(id string, status Status, blockedReason string) {
	i := l.index(id)
	if i < 0 || !status.Valid() {
		return
	}
	l.setStatus(i, status, blockedReason)
	l.notify()
}

func (l *List) setStatus(i int, status Status, blockedReason string) {
	t := &l.tasks[i]
	t.Status = status
	if status == StatusBlocked {
		t.BlockedReason = blockedReason
	} else {
		t.BlockedReason = ""
	}

	switch status {
	case StatusInProgress:
		l.demoteInProgress(t.ID)
		l.activeID = t.ID
	case StatusDone, StatusBlocked:
		if l.activeID == t.ID {
			l.activeID = ""
			l.promoteFirstTodo()
		}
	case StatusTodo:
		if l.activeID == t.ID {
			l.activeID = ""
		}
	}
}

// SetActiveTask makes a task the one in progress. Done tasks and unknown ids
// are ignored.
func (l *List) SetActiveTask(id string) {
	i := l.index(id)
	if i < 0 || l.tasks[i].Status == StatusDone {
		return
	}
	l.setStatus(i, StatusInProgress, "")
	l.notify()
}

// RemoveTask deletes a task. Removing the active task promotes the first
// todo.
func (l *List) RemoveTask(id string) {
	i := l.index(id)
	if i < 0 {
		return
	}
	l.tasks = append(l.tasks[:i], l.tasks[i+1:]...)
	if l.activeID == id {
		l.activeID = ""
		l.promoteFirstTodo()
	}
	l.notify()
}

// CompleteActiveTask marks the active task done and leaves nothing active.
// Unlike UpdateTaskStatus it does not pull the next todo forward; the caller
// picks what to work on next.
func (l *List) CompleteActiveTask() {
	i := l.index(l.activeID)
	if i < 0 {
		return
	}
	l.tasks[i].Status = StatusDone
	l.tasks[i].BlockedReason = ""
	l.activeID = ""
	l.notify()
}

// ClearCompleted removes every done task.
func (l *List) ClearCompleted() {
	kept := l.tasks[:0]
	for _, t := range l.tasks {
		if t.Status != StatusDone {
			kept = append(kept, t)
		}
	}
	l.tasks = kept
	if l.index(l.activeID) < 0 {
		l.activeID = ""
	}
	l.notify()
}

// ClearAll removes every task.
func (l *List) ClearAll() {
	l.tasks = nil
	l.activeID = ""
	l.notify()
}

// Expand, Collapse and Toggle drive the UI expanded flag.
func (l *List) Expand()   { l.setExpanded(true) }
func (l *List) Collapse() { l.setExpanded(false) }
func (l *List) Toggle()   { l.setExpanded(!l.expanded) }

func (l *List) setExpanded(v bool) {
	if l.expanded == v {
		return
	}
	l.expanded = v
	l.notify()
}

// Snapshot returns a copy of the list.
func (l *List) Snapshot() Snapshot {
	cp := make([]Task, len(l.tasks))
	copy(cp, l.tasks)
	return Snapshot{Tasks: cp, ActiveTaskID: l.activeID, IsExpanded: l.expanded}
}

// Task looks a task up by id.
func (l *List) Task(id string) (Task, bool) {
	if i := l.index(id); i >= 0 {
		return l.tasks[i], true
	}
	return Task{}, false
}

// ActiveTaskID returns the active task id, or "".
func (l *List) ActiveTaskID() string { return l.activeID }

// Len returns the number of tasks.
func (l *List) Len() int { return len(l.tasks) }

// Close drops every subscriber.
func (l *List) Close() { l.subs.Clear() }

func (l *List) index(id string) int {
	if id == "" {
		return -1
	}
	for i := range l.tasks {
		if l.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// demoteInProgress sends every in-progress task except keep back to todo.
func (l *List) demoteInProgress(keep string) {
	for i := range l.tasks {
		if l.tasks[i].Status == StatusInProgress && l.tasks[i].ID != keep {
			l.tasks[i].Status = StatusTodo
		}
	}
}

func (l *List) promoteFirstTodo() {
	for i := range l.tasks {
		if l.tasks[i].Status == StatusTodo {
			l.tasks[i].Status = StatusInProgress
			l.activeID = l.tasks[i].ID
			l.log.Debug().Str("id", l.activeID).Msg("promoted next task")
			return
		}
	}
}

func (l *List) notify() {
	l.subs.Notify(l.Snapshot())
}
