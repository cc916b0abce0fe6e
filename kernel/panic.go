package kernel

import (
	"unsafe"

	"github.com/nyxkernel/nyxkernel/kernel/cpu"
	"github.com/nyxkernel/nyxkernel/kernel/kfmt/early"
)

var (
	// cpuHaltFn is mocked by tests and is automatically inlined by the compiler.
	cpuHaltFn = cpu.Halt

	errRuntimePanic = &Error{Module: "rt", Message: "unknown cause"}
)

// Panic outputs the supplied error (if not nil) to the console and halts the
// CPU. Calls to Panic never return. Panic also works as a redirection target
// for calls to panic() (resolved via runtime.gopanic)
//go:redirect-from runtime.gopanic
func Panic(e interface{}) {
	var err *Error

	switch t := e.(type) {
	case *Error:
		err = t
	case string:
		panicString(t)
		return
	case error:
		errRuntimePanic.Message = t.Error()
		err = errRuntimePanic
	}

	early.Printf("\n-----------------------------------\n")
	if err != nil {
		early.Printf("[%s] unrecoverable error: %s\n", err.Module, err.Message)
	}
	early.Printf("*** kernel panic: system halted ***")
	early.Printf("\n-----------------------------------\n")

	cpuHaltFn()
}

// stackframe mirrors the layout a `push %ebp; mov %esp, %ebp` prologue
// leaves on the stack: the saved caller's frame pointer followed by the
// return address. Backtrace walks this chain without needing debug symbols.
type stackframe struct {
	ebp *stackframe
	eip uint32
}

// Backtrace prints one line per saved return address reachable by following
// ebp's chain of saved frame pointers, stopping at the first nil link.
// Grounded on arch/x86_32/Interrupts.cpp's backtrace(), called with the
// faulting frame's EBP from the kernel-mode exception path.
func Backtrace(ebp uintptr) {
	frame := (*stackframe)(unsafe.Pointer(ebp))
	for frame != nil {
		early.Printf("\n\t0x%x", frame.eip)
		frame = frame.ebp
	}
}

// panicString serves as a redirect target for runtime.throw
//go:redirect-from runtime.throw
func panicString(msg string) {
	errRuntimePanic.Message = msg
	Panic(errRuntimePanic)
}
