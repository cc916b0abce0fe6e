package task

import (
	"unsafe"

	"github.com/nyxkernel/nyxkernel/kernel"
	"github.com/nyxkernel/nyxkernel/kernel/cpu"
	"github.com/nyxkernel/nyxkernel/kernel/irq"
	"github.com/nyxkernel/nyxkernel/kernel/mem/vmm"
)

// MaxArgs bounds the number of argv entries SpawnWithArgs will carry onto a
// task's stack, matching the source's PROCESS_ARG_COUNT.
const MaxArgs = 16

// KernelStackPush copies data onto t's kernel stack, growing it downward,
// and returns the address it was written to.
func KernelStackPush(t *Task, data []byte) uintptr {
	t.KernelStackPointer -= uintptr(len(data))
	dst := unsafe.Slice((*byte)(unsafe.Pointer(t.KernelStackPointer)), len(data))
	copy(dst, data)
	return t.KernelStackPointer
}

// UserStackPush copies data onto t's user stack, growing it downward. The
// caller must ensure t.Dir is the active page directory before calling
// this, since the target address is only valid for translation while it
// is.
func UserStackPush(t *Task, data []byte) uintptr {
	t.UserStackPointer -= uintptr(len(data))
	dst := unsafe.Slice((*byte)(unsafe.Pointer(t.UserStackPointer)), len(data))
	copy(dst, data)
	return t.UserStackPointer
}

// Spawn creates a task and primes its kernel stack to begin execution at
// entry, passing it a single opaque argument. Must be called inside an
// atomic region.
func Spawn(parent *Task, id int, name string, entry uintptr, arg uintptr, user bool) (*Task, *kernel.Error) {
	cpu.AssertAtomic()

	t, err := Create(id, parent, name, user)
	if err != nil {
		return nil, err
	}

	SetEntry(t, entry, user)
	KernelStackPush(t, addrBytes(arg))

	return t, nil
}

// SpawnWithArgs creates a task whose user stack (for user tasks) or kernel
// stack (for kernel tasks) is primed with argc/argv ahead of the synthetic
// interrupt frame, dropped from spec.md's condensed description of spawn
// but present in the original's task_spawn_with_argv/
// pass_argc_argv_user/pass_argc_argv_kernel. Must be called inside an
// atomic region.
func SpawnWithArgs(parent *Task, id int, name string, entry uintptr, argv []string, user bool) (*Task, *kernel.Error) {
	cpu.AssertAtomic()

	t, err := Create(id, parent, name, user)
	if err != nil {
		return nil, err
	}
	SetEntry(t, entry, true)

	if user {
		passArgvUser(t, argv)
	} else {
		passArgvKernel(t, argv)
	}

	return t, nil
}

// passArgvUser primes t's user stack with argv under a transient switch to
// t's own directory, then restores whichever directory was active before,
// mirroring task_spawn_with_argv's pass_argc_argv_user.
func passArgvUser(t *Task, argv []string) {
	prev := vmm.ActiveDir()
	vmm.DirSwitch(t.Dir)

	var argvAddrs [MaxArgs]uintptr
	argc := 0
	for ; argc < len(argv) && argc < MaxArgs; argc++ {
		argvAddrs[argc] = UserStackPush(t, append([]byte(argv[argc]), 0))
	}
	argvListRef := UserStackPush(t, addrSliceBytes(argvAddrs[:]))
	UserStackPush(t, addrBytes(argvListRef))
	UserStackPush(t, intBytes(argc))

	vmm.DirSwitch(prev)
}

// passArgvKernel primes t's kernel stack with argv, for kernel tasks whose
// entry wants conventional argc/argv access without a directory switch.
func passArgvKernel(t *Task, argv []string) {
	var argvAddrs [MaxArgs]uintptr
	argc := 0
	for ; argc < len(argv) && argc < MaxArgs; argc++ {
		argvAddrs[argc] = KernelStackPush(t, append([]byte(argv[argc]), 0))
	}
	argvListRef := KernelStackPush(t, addrSliceBytes(argvAddrs[:]))
	KernelStackPush(t, addrBytes(argvListRef))
	KernelStackPush(t, intBytes(argc))
}

// Go primes t's kernel stack with a synthetic InterruptStackFrame whose
// instruction pointer is t.EntryPoint, and transitions t to StateRunning.
// The entry trampoline and this synthetic frame must agree bit-for-bit
// (SPEC_FULL.md §9); both sides share the irq.Frame/irq.UserFrame layout.
func Go(t *Task) {
	if t.User {
		frame := irq.UserFrame{
			Frame: irq.Frame{
				EBP:    0,
				EIP:    uint32(t.EntryPoint),
				CS:     irq.UserCodeSelector,
				DS:     irq.UserDataSelector,
				ES:     irq.UserDataSelector,
				FS:     irq.UserDataSelector,
				GS:     irq.UserDataSelector,
				EFlags: irq.DefaultEFlags,
			},
			UserESP: uint32(t.UserStackPointer),
			SS:      irq.UserDataSelector,
		}
		KernelStackPush(t, frameBytes(unsafe.Pointer(&frame), int(unsafe.Sizeof(frame))))
	} else {
		frame := irq.Frame{
			EBP:    0,
			EIP:    uint32(t.EntryPoint),
			CS:     irq.KernelCodeSelector,
			DS:     irq.KernelDataSelector,
			ES:     irq.KernelDataSelector,
			FS:     irq.KernelDataSelector,
			GS:     irq.KernelDataSelector,
			EFlags: irq.DefaultEFlags,
		}
		KernelStackPush(t, frameBytes(unsafe.Pointer(&frame), int(unsafe.Sizeof(frame))))
	}

	guard := cpu.BeginAtomic()
	SetState(t, StateRunning)
	guard.Release()
}

func addrBytes(v uintptr) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(&v)), unsafe.Sizeof(v))
}

func intBytes(v int) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(&v)), unsafe.Sizeof(v))
}

func addrSliceBytes(v []uintptr) []byte {
	if len(v) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&v[0])), int(unsafe.Sizeof(v[0]))*len(v))
}

func frameBytes(ptr unsafe.Pointer, size int) []byte {
	return unsafe.Slice((*byte)(ptr), size)
}
