package task

import "github.com/nyxkernel/nyxkernel/kernel/cpu"

// Block installs blocker in t's slot and suspends t until it resolves.
// Under atomicity: installs the blocker, and if its predicate already
// holds, resolves immediately as ResultUnblocked. Otherwise records the
// deadline (no deadline if timeout < 0, else currentTick()+timeout),
// marks t StateBlocked, releases atomicity and yields. When the scheduler
// later wakes t, the blocker's result is read and the slot cleared.
//
// Callers must not call Block twice on the same task; doing so panics,
// matching the source's assert(!task->blocker).
func Block(t *Task, blocker Blocker, timeout int64) Result {
	if t.blocker != nil {
		panic("task: Block called while a blocker is already installed")
	}

	guard := cpu.BeginAtomic()
	t.blocker = blocker

	if blocker.CanUnblock(t) {
		blocker.OnUnblock(t)
		guard.Release()

		t.blocker = nil
		return ResultUnblocked
	}

	if timeout < 0 {
		t.deadline = noDeadline
	} else {
		t.deadline = currentTick() + uint64(timeout)
	}

	SetState(t, StateBlocked)
	guard.Release()

	yieldFn()

	result := t.result
	t.blocker = nil
	return result
}

// Blocker returns t's currently installed blocker, or nil if none. Used by
// the scheduler's blocked-task sweep.
func (t *Task) Blocker() Blocker { return t.blocker }

// Deadline returns t's absolute tick deadline, or the sentinel with no
// timeout.
func (t *Task) Deadline() uint64 { return t.deadline }

// HasDeadline reports whether t's blocker carries a finite deadline.
func (t *Task) HasDeadline() bool { return t.deadline != noDeadline }

// ResolveUnblocked is called by the scheduler's blocked-task sweep once
// t.Blocker().CanUnblock(t) reports true: it calls OnUnblock and records the
// result so the task observes ResultUnblocked once the scheduler resumes
// it. Must be called inside an atomic region.
func ResolveUnblocked(t *Task) {
	cpu.AssertAtomic()
	t.blocker.OnUnblock(t)
	t.result = ResultUnblocked
	SetState(t, StateReady)
}

// ResolveTimeout is called by the scheduler's blocked-task sweep when t's
// deadline has passed without its blocker unblocking. Must be called
// inside an atomic region.
func ResolveTimeout(t *Task) {
	cpu.AssertAtomic()
	t.blocker.OnTimeout(t)
	t.result = ResultTimeout
	SetState(t, StateReady)
}

// ResolveCanceled is called by the scheduler's blocked-task sweep when a
// blocked task has been canceled by a third party. Unlike ResolveUnblocked
// and ResolveTimeout, it leaves t's state at StateCanceled rather than
// readying it: t is never resumed, only reaped, and must still read as
// Canceled to the same Schedule pass's reapCanceled step. Must be called
// inside an atomic region.
func ResolveCanceled(t *Task) {
	cpu.AssertAtomic()
	t.result = ResultCanceled
}

// Cancel marks t Canceled and records its exit value. The scheduler
// observes this on its next pass and reaps t, unblocking any waiters.
func Cancel(t *Task, exitValue int32) {
	guard := cpu.BeginAtomic()
	defer guard.Release()

	t.ExitValue = exitValue
	SetState(t, StateCanceled)
}
