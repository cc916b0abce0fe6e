package kernel

import (
	"github.com/nyxkernel/nyxkernel/kernel/irq"
	"github.com/nyxkernel/nyxkernel/kernel/kfmt/early"
)

// KernelFault is wired to irq.KernelFaultFn. A CPU exception whose faulting
// EIP lies in kernel code is fatal to the whole system: format the frame
// into an Error, walk the backtrace from the faulting EBP, then Panic.
// Grounded on SPEC_FULL.md §4.3/§7: "kernel fault: enter panic with the
// stack frame — this is fatal and halts."
func KernelFault(frame *irq.Frame) {
	err := &Error{
		Module:  "irq",
		Message: irq.ExceptionMessage(frame.IntNo),
	}

	early.Printf("\n[kernel] fatal exception at eip=0x%x (err=0x%x)", frame.EIP, frame.Err)
	Backtrace(uintptr(frame.EBP))

	Panic(err)
}
