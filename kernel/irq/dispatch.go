package irq

import (
	"github.com/nyxkernel/nyxkernel/kernel/cpu"
	"github.com/nyxkernel/nyxkernel/kernel/mem"
)

// Handler processes one firing of a device IRQ (1..15). It is registered by
// the device-driver layer via Register, the seam named in SPEC_FULL.md §4.3.
type Handler func(irqNum uint32)

const (
	// firstIRQVector and lastIRQVector bound the hardware IRQ range
	// (32..47), remapped above the 32 CPU exception vectors.
	firstIRQVector = 32
	lastIRQVector  = 47

	// TimerIRQ is the IRQ number (not vector) of the periodic timer that
	// drives the scheduler tick.
	TimerIRQ = 0

	// YieldVector is the software interrupt that enters the scheduler
	// without advancing the tick, used by cpu.Yield.
	YieldVector = 127

	// SyscallVector is the system-call gate.
	SyscallVector = 128
)

var exceptionMessages = [32]string{
	"Division by zero", "Debug", "Non-maskable interrupt", "Breakpoint",
	"Detected overflow", "Out-of-bounds", "Invalid opcode", "No coprocessor",
	"Double fault", "Coprocessor segment overrun", "Bad TSS", "Segment not present",
	"Stack fault", "General protection fault", "Page fault", "Unknown interrupt",
	"Coprocessor fault", "Alignment check", "Machine check", "Reserved",
	"Reserved", "Reserved", "Reserved", "Reserved",
	"Reserved", "Reserved", "Reserved", "Reserved",
	"Reserved", "Reserved", "Reserved", "Reserved",
}

var (
	handlers [16]Handler

	// SpuriousCount tracks IRQs that fired with no handler registered;
	// they are acknowledged and otherwise ignored.
	SpuriousCount uint64

	// AckFn acknowledges the interrupt controller. Called unconditionally
	// after every IRQ, regardless of handler outcome.
	AckFn func(vector uint32)

	// ScheduleFn invokes the scheduler with the interrupted task's saved
	// kernel stack pointer and returns the one to resume. Wired to
	// sched.Schedule at boot; nil in host tests that don't exercise the
	// scheduler seam.
	ScheduleFn func(savedESP uintptr) uintptr

	// TickFn advances the scheduler's tick counter. Wired to sched.Tick.
	TickFn func()

	// SyscallFn decodes and dispatches a system call, returning the value
	// to write back into the frame's EAX. Wired to syscall.Dispatch.
	SyscallFn func(num, arg1, arg2, arg3, arg4, arg5 uint32) uint32

	// UserFaultFn handles a CPU exception whose faulting EIP lies in user
	// code: log, dump the running task's context, cancel it with exit
	// value -1. Wired to sched.HandleUserFault.
	UserFaultFn func(intNo, errCode, eip uint32)

	// KernelFaultFn handles a CPU exception whose faulting EIP lies in
	// kernel code: fatal, never returns. Wired to kernel.Panic by way of a
	// small adapter that formats the frame.
	KernelFaultFn func(frame *Frame)

	// enableInterruptsFn and disableInterruptsFn back the re-enable calls
	// the dispatcher makes around user-mode faults and syscalls;
	// overridable by tests.
	enableInterruptsFn  = cpu.EnableInterrupts
	disableInterruptsFn = cpu.DisableInterrupts
)

// Register installs h as the handler for IRQ number n (1..15; IRQ 0 is
// reserved for the timer tick and never dispatches here).
func Register(n uint32, h Handler) {
	handlers[n] = h
}

// ExceptionMessage returns the human-readable name of CPU exception vector
// intNo, or "Unknown interrupt" if out of range.
func ExceptionMessage(intNo uint32) string {
	if intNo >= uint32(len(exceptionMessages)) {
		return exceptionMessages[15]
	}
	return exceptionMessages[intNo]
}

// Dispatch is the single seam every hardware vector routes through. It is
// called by the trampoline with the interrupted task's saved kernel stack
// pointer and the decoded Frame, and returns the kernel stack pointer to
// resume on IRET — the same pointer unless a scheduler pass switched tasks.
func Dispatch(savedESP uintptr, frame *Frame) uintptr {
	switch {
	case frame.IntNo < 32:
		dispatchException(frame)

	case frame.IntNo >= firstIRQVector && frame.IntNo <= lastIRQVector:
		savedESP = dispatchIRQ(savedESP, frame.IntNo-firstIRQVector)

	case frame.IntNo == YieldVector:
		if ScheduleFn != nil {
			savedESP = ScheduleFn(savedESP)
		}

	case frame.IntNo == SyscallVector:
		dispatchSyscall(frame)
	}

	if AckFn != nil {
		AckFn(frame.IntNo)
	}
	return savedESP
}

// dispatchException routes CPU exceptions (vectors 0..31): fatal-to-task if
// the fault came from user code, fatal-to-kernel otherwise.
func dispatchException(frame *Frame) {
	if frame.EIP >= uint32(mem.UserCodeFloor) && frame.EIP < uint32(mem.KernelBoundary) {
		enableInterruptsFn()
		if UserFaultFn != nil {
			UserFaultFn(frame.IntNo, frame.Err, frame.EIP)
		}
		return
	}

	if KernelFaultFn != nil {
		KernelFaultFn(frame)
	}
}

// dispatchIRQ routes hardware IRQs (32..47, renumbered to 0..15). IRQ 0
// advances the tick and enters the scheduler; others dispatch to the
// registered device handler, or count as spurious if none is registered.
func dispatchIRQ(savedESP uintptr, irqNum uint32) uintptr {
	if irqNum == TimerIRQ {
		if TickFn != nil {
			TickFn()
		}
		if ScheduleFn != nil {
			savedESP = ScheduleFn(savedESP)
		}
		return savedESP
	}

	if int(irqNum) < len(handlers) && handlers[irqNum] != nil {
		handlers[irqNum](irqNum)
	} else {
		SpuriousCount++
	}
	return savedESP
}

// dispatchSyscall decodes the call number from EAX and the five argument
// registers, invokes the syscall table, and writes the result back into
// EAX, re-enabling interrupts for the duration of the call per SPEC_FULL's
// gate semantics.
func dispatchSyscall(frame *Frame) {
	enableInterruptsFn()
	if SyscallFn != nil {
		frame.EAX = SyscallFn(frame.EAX, frame.EBX, frame.ECX, frame.EDX, frame.ESI, frame.EDI)
	}
	disableInterruptsFn()
}
