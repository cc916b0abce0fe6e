// Package task implements the addressable execution context at the heart of
// the tasking core: identity, state, kernel/user stacks, its page directory,
// open-resource table and current directory, and the slot holding its
// current blocker. Grounded line-for-line on kernel/tasking/Task.cpp's
// task_create/task_spawn/task_block/task_cancel/task_destroy family.
package task

import (
	"sync"

	"github.com/nyxkernel/nyxkernel/kernel"
	"github.com/nyxkernel/nyxkernel/kernel/cpu"
	"github.com/nyxkernel/nyxkernel/kernel/mem"
	"github.com/nyxkernel/nyxkernel/kernel/mem/vmm"
)

// StackSize is the fixed size of both the kernel and the user stack every
// task is given, matching the source's PROCESS_STACK_SIZE.
const StackSize = 4 * mem.PageSize

var (
	// onStateChange notifies the scheduler's ready-queue bookkeeping of
	// every transition, the Go equivalent of the source's
	// scheduler_did_change_task_state callback. Wired once at boot via
	// SetOnStateChange; left nil in tests that only exercise task
	// mechanics in isolation.
	onStateChange func(t *Task, old, new State)

	// nowFn returns the scheduler's current tick, used by Block to
	// compute absolute deadlines. Wired via SetNowFn.
	nowFn func() uint64

	// yieldFn suspends the calling task and enters the scheduler. Wired
	// via SetYieldFn; defaults to cpu.Yield, which issues the software
	// interrupt that reaches the scheduler through irq.Dispatch.
	yieldFn = cpu.Yield
)

// SetOnStateChange registers the scheduler's state-transition hook.
func SetOnStateChange(fn func(t *Task, old, new State)) { onStateChange = fn }

// SetNowFn registers the scheduler's tick reader.
func SetNowFn(fn func() uint64) { nowFn = fn }

// SetYieldFn registers the function Block calls to suspend the current
// task. Overridable by tests so Block can be exercised without a real
// scheduler loop.
func SetYieldFn(fn func()) { yieldFn = fn }

func currentTick() uint64 {
	if nowFn == nil {
		return 0
	}
	return nowFn()
}

// Task is one addressable execution context.
type Task struct {
	ID    int
	Name  string
	State State

	Dir      *vmm.PageDirectory
	Mappings []Mapping

	directoryLock    sync.Mutex
	CurrentDirectory string

	Handles HandleTable

	KernelStackBase    uintptr
	KernelStackPointer uintptr

	UserStackBase    uintptr
	UserStackPointer uintptr

	EntryPoint uintptr
	User       bool

	blocker  Blocker
	deadline uint64
	result   Result

	ExitValue int32

	destroyed bool
}

// Create allocates a task's identity, page directory, stacks and empty
// resource tables. The caller (the scheduler, which owns task identity
// assignment per SPEC_FULL.md §9) supplies id; state starts at StateNone.
// Must be called inside an atomic region.
func Create(id int, parent *Task, name string, user bool) (*Task, *kernel.Error) {
	cpu.AssertAtomic()

	var dir *vmm.PageDirectory
	if user {
		d, err := vmm.DirCreate()
		if err != nil {
			return nil, err
		}
		dir = d
	} else {
		dir = vmm.KernelDir()
	}

	t := &Task{
		ID:    id,
		Name:  name,
		State: StateNone,
		Dir:   dir,
		User:  user,
	}

	if parent != nil {
		t.CurrentDirectory = parent.CurrentDirectory
	} else {
		t.CurrentDirectory = "/"
	}

	kernelStackBase, err := vmm.Alloc(dir, StackSize, vmm.FlagClear|vmm.FlagRW)
	if err != nil {
		return nil, err
	}
	t.KernelStackBase = kernelStackBase
	t.KernelStackPointer = kernelStackBase + uintptr(StackSize)

	if user {
		userRng := mem.Range{Base: mem.UserStackAddr, Pages: StackSize.Pages()}
		if err := vmm.Map(dir, userRng, vmm.FlagUser|vmm.FlagRW); err != nil {
			return nil, err
		}
		t.UserStackBase = mem.UserStackAddr
		t.UserStackPointer = mem.UserStackAddr + uintptr(StackSize)
	}

	return t, nil
}

// SetState transitions t to the new state, notifying the scheduler's
// bookkeeping hook first (so it can move t between its ready/blocked sets
// before the new value is observable). Must be called inside an atomic
// region.
func SetState(t *Task, state State) {
	cpu.AssertAtomic()

	if onStateChange != nil {
		onStateChange(t, t.State, state)
	}
	t.State = state
}

// SetEntry records the entry point a subsequent call to Go will prime the
// task's stack frame with.
func SetEntry(t *Task, entry uintptr, user bool) {
	t.EntryPoint = entry
	t.User = user
}

// Destroy precondition: t.State == StateNone, meaning t has already been
// reaped by the scheduler and is not on any scheduler list. Re-destroying an
// already-destroyed task is an assertion failure, resolving SPEC_FULL.md
// §9's open question about re-destroy behavior in favor of a hard assert
// rather than the source's tolerant re-entry.
func Destroy(t *Task) *kernel.Error {
	if t.State != StateNone {
		panic("task: Destroy precondition violated: state is not None")
	}
	if t.destroyed {
		panic("task: Destroy called twice on the same task")
	}
	t.destroyed = true

	for _, m := range t.Mappings {
		if err := vmm.Free(t.Dir, m.Range); err != nil {
			return err
		}
	}
	t.Mappings = nil

	if err := t.Handles.CloseAll(); err != nil {
		return err
	}

	if err := vmm.Free(t.Dir, mem.RangeOf(t.KernelStackBase, StackSize)); err != nil {
		return err
	}

	if t.User {
		if err := vmm.Free(t.Dir, mem.RangeOf(t.UserStackBase, StackSize)); err != nil {
			return err
		}
	}

	if t.Dir != vmm.KernelDir() {
		if err := vmm.DirDestroy(t.Dir); err != nil {
			return err
		}
	}

	return nil
}

// Directory returns t's current working path under its directory lock.
func (t *Task) Directory() string {
	t.directoryLock.Lock()
	defer t.directoryLock.Unlock()
	return t.CurrentDirectory
}

// SetDirectory updates t's current working path under its directory lock.
func (t *Task) SetDirectory(path string) {
	t.directoryLock.Lock()
	defer t.directoryLock.Unlock()
	t.CurrentDirectory = path
}
