package sched

import (
	"fmt"
	"iter"
	"sort"

	"voxelcolony.ai/internal/protocol"
)

var (
	ErrTaskNotScheduled = protocol.NewError(protocol.ErrConflict, "task not in scheduler", nil)
	ErrNotMember        = protocol.NewError(protocol.ErrConflict, "unit does not belong to the scheduler's group", nil)
	ErrTaskUnavailable  = protocol.NewError(protocol.ErrConflict, "task is bound or finished", nil)
)

// Scheduler is a group's task pool ordered by descending priority. Two distinct
// tasks never compare equal: equal priorities fall back to creation order.
type Scheduler struct {
	owner string
	tasks []*Task
}

func NewScheduler(owner string) *Scheduler {
	return &Scheduler{owner: owner}
}

func (s *Scheduler) Owner() string { return s.owner }

func (s *Scheduler) Len() int { return len(s.tasks) }

func (s *Scheduler) Contains(t *Task) bool { return s.indexOf(t) >= 0 }

func (s *Scheduler) indexOf(t *Task) int {
	for i, x := range s.tasks {
		if x == t {
			return i
		}
	}
	return -1
}

// AddTask inserts t; adding a task that is already present or finished is a no-op.
func (s *Scheduler) AddTask(t *Task) {
	if t == nil || t.finished || s.Contains(t) {
		return
	}
	s.attach(t)
	t.schedulers = append(t.schedulers, s)
}

// RemoveTask drops t; removing an absent task is a no-op. A task bound to a
// unit of this group keeps running until it finishes or is interrupted.
func (s *Scheduler) RemoveTask(t *Task) {
	if !s.detach(t) {
		return
	}
	for i, o := range t.schedulers {
		if o == s {
			t.schedulers = append(t.schedulers[:i], t.schedulers[i+1:]...)
			break
		}
	}
}

// ReplaceTask swaps old for replacement in one step.
func (s *Scheduler) ReplaceTask(old, replacement *Task) {
	s.RemoveTask(old)
	s.AddTask(replacement)
}

// attach inserts t at its ordered position without touching back-references.
func (s *Scheduler) attach(t *Task) {
	i := sort.Search(len(s.tasks), func(i int) bool { return t.before(s.tasks[i]) })
	s.tasks = append(s.tasks, nil)
	copy(s.tasks[i+1:], s.tasks[i:])
	s.tasks[i] = t
}

func (s *Scheduler) detach(t *Task) bool {
	i := s.indexOf(t)
	if i < 0 {
		return false
	}
	s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
	return true
}

// HighestPriorityTask returns the first unbound task in order, or nil.
func (s *Scheduler) HighestPriorityTask() *Task {
	for _, t := range s.tasks {
		if t.unit == nil {
			return t
		}
	}
	return nil
}

// TasksSatisfying returns the tasks accepted by pred, in scheduling order.
func (s *Scheduler) TasksSatisfying(pred func(*Task) bool) []*Task {
	var out []*Task
	for _, t := range s.tasks {
		if pred(t) {
			out = append(out, t)
		}
	}
	return out
}

// Tasks iterates over a snapshot of the scheduler in order, so the loop body
// may add, remove, finish or interrupt tasks.
func (s *Scheduler) Tasks() iter.Seq[*Task] {
	snapshot := append([]*Task(nil), s.tasks...)
	return func(yield func(*Task) bool) {
		for _, t := range snapshot {
			if !yield(t) {
				return
			}
		}
	}
}

// Schedule hands t to u directly. A task already running on u is reset
// without penalty first.
func (s *Scheduler) Schedule(t *Task, u Member) error {
	if !s.Contains(t) {
		return fmt.Errorf("%w: %s", ErrTaskNotScheduled, t.Name())
	}
	if u.Scheduler() != s {
		return fmt.Errorf("%w: %s", ErrNotMember, u.Name())
	}
	if t.unit != nil || t.finished {
		return fmt.Errorf("%w: %s", ErrTaskUnavailable, t.Name())
	}
	if cur := u.CurrentTask(); cur != nil {
		s.Reset(cur)
	}
	if !t.Execute(u) {
		return fmt.Errorf("schedule %s on %s: %w", t.Name(), u.Name(), t.Err())
	}
	return nil
}

// Reset unbinds t without lowering its priority.
func (s *Scheduler) Reset(t *Task) {
	if t == nil || t.finished {
		return
	}
	t.release()
}
