package sched

import (
	"github.com/nyxkernel/nyxkernel/kernel"
	"github.com/nyxkernel/nyxkernel/kernel/cpu"
	"github.com/nyxkernel/nyxkernel/kernel/task"
)

// Time is a task.Blocker that resolves once the scheduler's tick counter
// reaches deadline. Grounded on task_sleep's BlockerTime in Task.cpp.
type Time struct {
	sched    *Scheduler
	deadline uint64
}

// CanUnblock reports whether the scheduler's tick has reached the deadline.
func (b *Time) CanUnblock(t *task.Task) bool { return b.sched.tick >= b.deadline }

// OnUnblock is a no-op; sleeping carries no side effect beyond waking.
func (b *Time) OnUnblock(t *task.Task) {}

// OnTimeout is never reached: Sleep installs Time with an infinite timeout,
// so it always resolves through CanUnblock instead.
func (b *Time) OnTimeout(t *task.Task) {}

// Sleep blocks the calling task until ticks ticks have elapsed. Mirrors
// task_sleep, which always reports Timeout regardless of how the block
// actually resolved, since sleeping has no other predicate to distinguish.
func (s *Scheduler) Sleep(ticks uint64) task.Result {
	guard := cpu.BeginAtomic()
	deadline := s.tick + ticks
	guard.Release()

	task.Block(s.running, &Time{sched: s, deadline: deadline}, -1)
	return task.ResultTimeout
}

// Wait is a task.Blocker that resolves once the watched task is no longer
// registered (it exited and was reaped), delivering its exit value through
// out. Grounded on task_wait's BlockerWait in Task.cpp.
type Wait struct {
	sched  *Scheduler
	taskID int
	out    *int32
}

// CanUnblock reports whether the watched task has been reaped.
func (w *Wait) CanUnblock(t *task.Task) bool { return w.sched.lookup(w.taskID) == nil }

// OnUnblock copies the watched task's retained exit value into out.
func (w *Wait) OnUnblock(t *task.Task) {
	if w.out == nil {
		return
	}
	if code, ok := w.sched.exitCodes[w.taskID]; ok {
		*w.out = code
	}
}

// OnTimeout is never reached: Wait installs itself with an infinite
// timeout, matching task_wait's timeout=-1 call to task_block.
func (w *Wait) OnTimeout(t *task.Task) {}

// Wait blocks the calling task until the task identified by taskID exits,
// writing its exit value to out (if non-nil) once it does. Returns
// ErrNoSuchTask immediately, without blocking, if no such task is
// currently registered — matching task_wait's synchronous task_by_id
// lookup.
func (s *Scheduler) Wait(taskID int, out *int32) (task.Result, *kernel.Error) {
	guard := cpu.BeginAtomic()
	if s.lookup(taskID) == nil {
		guard.Release()
		return task.ResultInvalid, ErrNoSuchTask
	}
	guard.Release()

	return task.Block(s.running, &Wait{sched: s, taskID: taskID, out: out}, -1), nil
}

// IOHandle is a general-purpose task.Blocker for device completion events:
// Ready reports whether the awaited condition has become true. A nil Ready
// always resolves immediately, matching a degenerate always-ready handle.
type IOHandle struct {
	Ready func() bool
}

// CanUnblock reports Ready(), or true if Ready is nil.
func (h *IOHandle) CanUnblock(t *task.Task) bool {
	if h.Ready == nil {
		return true
	}
	return h.Ready()
}

// OnUnblock is a no-op; callers inspect their own completion state.
func (h *IOHandle) OnUnblock(t *task.Task) {}

// OnTimeout is a no-op; callers inspect task.Result to tell Timeout apart
// from Unblocked.
func (h *IOHandle) OnTimeout(t *task.Task) {}
