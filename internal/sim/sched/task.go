package sched

import (
	"sync/atomic"

	"voxelcolony.ai/internal/sim/script"
)

// Member is a unit that can run tasks: a script actor belonging to a group.
type Member interface {
	script.Actor
	// Scheduler is the scheduler of the unit's group, nil without a group.
	Scheduler() *Scheduler
	CurrentTask() *Task
	// BindTask is called by the task with itself on bind and with nil on unbind.
	BindTask(t *Task)
}

const (
	DefaultTickDuration     = 0.2
	DefaultInterruptPenalty = 1
)

type Options struct {
	TickDuration     float64
	MicroStep        float64
	InterruptPenalty int
}

func (o *Options) applyDefaults() {
	if o.TickDuration <= 0 {
		o.TickDuration = DefaultTickDuration
	}
	if o.MicroStep <= 0 {
		o.MicroStep = script.DefaultMicroStep
	}
	if o.InterruptPenalty <= 0 {
		o.InterruptPenalty = DefaultInterruptPenalty
	}
}

var taskSeq atomic.Uint64

// Task is a named program with a mutable priority that runs on at most one
// unit at a time. Schedulers own tasks; a task only keeps back-references to
// the schedulers holding it so interruption and completion can fan out.
type Task struct {
	id       uint64
	name     string
	priority int
	program  script.Statement
	selected script.Position
	opts     Options

	schedulers []*Scheduler
	unit       Member
	env        *script.Env
	running    script.Statement
	finished   bool
	err        error
}

func NewTask(name string, priority int, program script.Statement, selected script.Position, opts Options) *Task {
	opts.applyDefaults()
	return &Task{
		id:       taskSeq.Add(1),
		name:     name,
		priority: priority,
		program:  program,
		selected: selected,
		opts:     opts,
	}
}

func (t *Task) ID() uint64                { return t.id }
func (t *Task) Name() string              { return t.name }
func (t *Task) Priority() int             { return t.priority }
func (t *Task) Selected() script.Position { return t.selected }
func (t *Task) Unit() Member              { return t.unit }
func (t *Task) Bound() bool               { return t.unit != nil }
func (t *Task) Schedulers() []*Scheduler  { return append([]*Scheduler(nil), t.schedulers...) }
func (t *Task) Program() script.Statement { return t.program }
func (t *Task) InterruptPenalty() int     { return t.opts.InterruptPenalty }

// Err is the failure behind the last false Execute or Advance.
func (t *Task) Err() error { return t.err }

// SetPriority changes the priority, re-sorting every owning scheduler.
func (t *Task) SetPriority(p int) {
	t.resort(func() { t.priority = p })
}

func (t *Task) resort(mutate func()) {
	owners := t.Schedulers()
	for _, s := range owners {
		s.detach(t)
	}
	mutate()
	for _, s := range owners {
		s.attach(t)
	}
}

// CanRun reports whether u may bind this task: the task is unbound and not
// finished, and u's group scheduler holds it.
func (t *Task) CanRun(u Member) bool {
	if t.finished || t.unit != nil || u == nil {
		return false
	}
	s := u.Scheduler()
	return s != nil && s.Contains(t)
}

// Execute binds u, clears its variables and starts a fresh copy of the
// program. Any failure leaves the task unbound and returns false.
func (t *Task) Execute(u Member) bool {
	if !t.CanRun(u) {
		return false
	}
	t.err = nil
	t.unit = u
	t.env = &script.Env{Unit: u, Selected: t.selected, MicroStep: t.opts.MicroStep}
	t.running = t.program.Fork()
	u.Variables().Reset()
	u.BindTask(t)
	if err := t.running.Execute(t.env); err != nil {
		t.err = err
		t.release()
		return false
	}
	return true
}

// Advance runs the program for one task tick. It returns false when the task
// is not bound or the program failed.
func (t *Task) Advance() bool {
	if t.unit == nil || t.finished {
		return false
	}
	if err := t.running.Advance(t.env, t.opts.TickDuration); err != nil {
		t.err = err
		return false
	}
	return true
}

func (t *Task) Finished() bool {
	if t.finished {
		return true
	}
	return t.unit != nil && t.running.Finished(t.env)
}

// Interrupt unbinds the unit and lowers the priority by the penalty, keeping
// the task in every scheduler it belongs to.
func (t *Task) Interrupt() {
	if t.finished {
		return
	}
	t.resort(func() { t.priority -= t.opts.InterruptPenalty })
	t.release()
}

// Finish retires the task permanently. Repeated calls are no-ops.
func (t *Task) Finish() {
	if t.finished {
		return
	}
	t.finished = true
	for _, s := range t.Schedulers() {
		s.RemoveTask(t)
	}
	t.release()
}

// release unbinds without touching the priority.
func (t *Task) release() {
	u := t.unit
	t.unit = nil
	t.env = nil
	t.running = nil
	if u != nil && u.CurrentTask() == t {
		u.BindTask(nil)
	}
}

// before is the strict scheduling order: higher priority first, then older task.
func (t *Task) before(o *Task) bool {
	if t.priority != o.priority {
		return t.priority > o.priority
	}
	return t.id < o.id
}
