// Package sched implements the scheduler and blocker framework that turns
// individual task.Task values into a running system: an explicit task
// registry, round-robin selection, the tick counter and the blocked-task
// sweep. Generalized from Task.cpp's implicit global Scheduler.h calls
// (scheduler_running, scheduler_yield, scheduler_did_change_task_state)
// into an explicit *Scheduler value per SPEC_FULL.md §9, and cross-checked
// against the round-robin-with-idle-fallback shape of a comparable Go
// kernel's own scheduler.
package sched

import (
	"unsafe"

	"github.com/nyxkernel/nyxkernel/kernel"
	"github.com/nyxkernel/nyxkernel/kernel/cpu"
	"github.com/nyxkernel/nyxkernel/kernel/mem/vmm"
	"github.com/nyxkernel/nyxkernel/kernel/task"
)

// MaxTasks bounds the number of simultaneously live tasks the registry
// tracks, mirroring the fixed-size tables the rest of this kernel core uses
// in place of unbounded allocation.
const MaxTasks = 64

// idleTaskID is reserved for the scheduler's own idle task, created once at
// New and never exposed through the registry's round-robin rotation.
const idleTaskID = 0

var (
	// ErrTooManyTasks is returned by Spawn/SpawnWithArgs when the registry
	// is full.
	ErrTooManyTasks = &kernel.Error{Module: "sched", Message: "too many tasks"}

	// ErrNoSuchTask is returned by Wait when no task with the given ID is
	// currently registered, matching task_wait's synchronous
	// task_by_id lookup in the source.
	ErrNoSuchTask = &kernel.Error{Module: "sched", Message: "no such task"}
)

// Scheduler owns the global task registry, the ready-queue rotation cursor
// and the tick counter. A single instance is constructed at boot and wired
// into irq's and task's hooks; nothing in this package relies on implicit
// global state the way the source's Scheduler.h does.
type Scheduler struct {
	tasks  [MaxTasks]*task.Task
	count  int
	nextID int
	cursor int

	idle    *task.Task
	running *task.Task

	tick uint64

	// exitCodes retains the exit value of a reaped task long enough for a
	// Wait blocker discovering its disappearance on a later sweep to read
	// it back.
	exitCodes map[int]int32

	// transitions counts every state change task's SetState hook reports,
	// a diagnostic counter in the style of BitmapAllocator.reservedPages.
	transitions uint64
}

// New constructs a Scheduler, spawns its idle task and wires task's
// scheduler-dependent hooks (SetOnStateChange, SetNowFn) to this instance.
// It does not wire irq's hooks; the caller (kmain) does that once every
// subsystem it depends on is ready.
func New() (*Scheduler, *kernel.Error) {
	s := &Scheduler{nextID: 1, exitCodes: make(map[int]int32)}

	guard := cpu.BeginAtomic()
	idle, err := task.Create(idleTaskID, nil, "idle", false)
	guard.Release()
	if err != nil {
		return nil, err
	}

	task.SetEntry(idle, funcPC(idleLoop), false)
	task.Go(idle)

	s.idle = idle
	s.running = idle

	task.SetOnStateChange(s.onStateChange)
	task.SetNowFn(s.Now)

	return s, nil
}

// idleLoop is the idle task's entry point: it never does useful work, only
// halts until the next interrupt, matching kmain's requirement that the
// kernel never falls off the end of Kmain.
func idleLoop() {
	for {
		cpu.Halt()
	}
}

// funcPC recovers the entry address backing a Go func value, the same
// closure-indirection trick used to hand a kernel task a real code address
// without linker support for taking a function's address directly.
func funcPC(fn func()) uintptr {
	return **(**uintptr)(unsafe.Pointer(&fn))
}

// Running returns the task the scheduler last marked Running.
func (s *Scheduler) Running() *task.Task { return s.running }

// Now returns the current tick, wired to task.SetNowFn so Block can compute
// absolute deadlines.
func (s *Scheduler) Now() uint64 { return s.tick }

// Tick advances the scheduler's tick counter by one. Wired to irq.TickFn;
// called once per timer IRQ, before Schedule runs.
func (s *Scheduler) Tick() { s.tick++ }

// Transitions reports how many state changes the registry has observed,
// exposed for diagnostics and tests.
func (s *Scheduler) Transitions() uint64 { return s.transitions }

func (s *Scheduler) onStateChange(t *task.Task, old, new task.State) {
	s.transitions++
}

// register installs t in the first free registry slot and returns it, so
// the caller can point the round-robin cursor at the task it just made
// current.
func (s *Scheduler) register(t *task.Task) (int, *kernel.Error) {
	for i := range s.tasks {
		if s.tasks[i] == nil {
			s.tasks[i] = t
			s.count++
			return i, nil
		}
	}
	return 0, ErrTooManyTasks
}

// lookup finds a registered task by ID, or nil if none (either never
// created or already reaped).
func (s *Scheduler) lookup(id int) *task.Task {
	for _, t := range s.tasks {
		if t != nil && t.ID == id {
			return t
		}
	}
	return nil
}

// Spawn creates a task and primes it to run, demoting the caller (the
// currently running task) to Ready. Matches spec.md §4.4's spawn: the new
// task transitions straight to Running.
func (s *Scheduler) Spawn(name string, entry uintptr, arg uintptr, user bool) (*task.Task, *kernel.Error) {
	guard := cpu.BeginAtomic()
	defer guard.Release()

	id := s.nextID
	t, err := task.Spawn(s.running, id, name, entry, arg, user)
	if err != nil {
		return nil, err
	}
	idx, regErr := s.register(t)
	if regErr != nil {
		return nil, regErr
	}
	s.nextID++

	s.demoteRunning()
	task.Go(t)
	s.running = t
	s.cursor = idx

	return t, nil
}

// SpawnWithArgs is Spawn's argv-carrying variant, grounded on
// task_spawn_with_argv.
func (s *Scheduler) SpawnWithArgs(name string, entry uintptr, argv []string, user bool) (*task.Task, *kernel.Error) {
	guard := cpu.BeginAtomic()
	defer guard.Release()

	id := s.nextID
	t, err := task.SpawnWithArgs(s.running, id, name, entry, argv, user)
	if err != nil {
		return nil, err
	}
	idx, regErr := s.register(t)
	if regErr != nil {
		return nil, regErr
	}
	s.nextID++

	s.demoteRunning()
	task.Go(t)
	s.running = t
	s.cursor = idx

	return t, nil
}

func (s *Scheduler) demoteRunning() {
	if s.running != nil && s.running.State == task.StateRunning {
		task.SetState(s.running, task.StateReady)
	}
}

// Schedule is the scheduler's single entry point, called from the
// interrupt trampoline by way of irq.ScheduleFn with interrupts masked.
// Implements spec.md §4.5's six-step procedure: save, sweep, reap, pick,
// switch directory, mark running.
func (s *Scheduler) Schedule(savedESP uintptr) uintptr {
	cpu.AssertAtomic()

	if s.running != nil {
		s.running.KernelStackPointer = savedESP
	}
	s.demoteRunning()

	s.sweepBlocked()
	s.reapCanceled()

	next := s.pickNext()

	if next.Dir != vmm.ActiveDir() {
		vmm.DirSwitch(next.Dir)
	}

	task.SetState(next, task.StateRunning)
	s.running = next

	return next.KernelStackPointer
}

// sweepBlocked examines every Blocked or Canceled task carrying a blocker —
// a task canceled while blocked still carries its blocker until this sweep
// resolves it — in the order spec.md §4.5 step 2 specifies: predicate, then
// deadline, then cancellation. A task an earlier sweep already readied still
// carries its blocker until Block returns; it is skipped, so each blocker is
// resolved once.
func (s *Scheduler) sweepBlocked() {
	for _, t := range s.tasks {
		if t == nil || t.Blocker() == nil {
			continue
		}
		if t.State != task.StateBlocked && t.State != task.StateCanceled {
			continue
		}

		switch {
		case t.Blocker().CanUnblock(t):
			task.ResolveUnblocked(t)
		case t.HasDeadline() && t.Deadline() <= s.tick:
			task.ResolveTimeout(t)
		case t.State == task.StateCanceled:
			task.ResolveCanceled(t)
		}
	}
}

// reapCanceled destroys every Canceled task, after recording its exit value
// for any Wait blocker that has not yet observed its disappearance. This
// runs before a new task is marked Running for the pass (Schedule picks
// next only afterward), so the task still tagged s.running here is the one
// Schedule is in the middle of replacing and can never execute again
// regardless of whether it is reaped this pass or not. destroy's
// precondition is state == None (spec.md §4.4), so the state is forced
// there first, mirroring the source's task_destroy coercion but kept as an
// explicit, atomic-scoped step rather than folded into Destroy itself.
func (s *Scheduler) reapCanceled() {
	for i, t := range s.tasks {
		if t == nil || t.State != task.StateCanceled {
			continue
		}

		s.exitCodes[t.ID] = t.ExitValue
		task.SetState(t, task.StateNone)
		if err := task.Destroy(t); err != nil {
			kernel.Panic(err)
		}

		s.tasks[i] = nil
		s.count--
	}
}

// pickNext selects the next Ready task by round-robin rotation starting
// just after the cursor, falling back to the idle task when none are
// Ready.
func (s *Scheduler) pickNext() *task.Task {
	n := len(s.tasks)
	for i := 1; i <= n; i++ {
		idx := (s.cursor + i) % n
		if t := s.tasks[idx]; t != nil && t.State == task.StateReady {
			s.cursor = idx
			return t
		}
	}
	return s.idle
}
