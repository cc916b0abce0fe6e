package kmain

import (
	"github.com/nyxkernel/nyxkernel/kernel"
	"github.com/nyxkernel/nyxkernel/kernel/cpu"
	"github.com/nyxkernel/nyxkernel/kernel/hal"
	"github.com/nyxkernel/nyxkernel/kernel/hal/multiboot"
	"github.com/nyxkernel/nyxkernel/kernel/irq"
	"github.com/nyxkernel/nyxkernel/kernel/mem/pmm/allocator"
	"github.com/nyxkernel/nyxkernel/kernel/mem/vmm"
	"github.com/nyxkernel/nyxkernel/kernel/sched"
	"github.com/nyxkernel/nyxkernel/kernel/syscall"

	// goruntime installs the go:redirect-from hooks that back the Go heap
	// allocator with kernel-managed virtual memory; it is wired in purely
	// for its init-time side effect.
	_ "github.com/nyxkernel/nyxkernel/kernel/goruntime"
)

// Kmain is the only Go symbol that is visible (exported) from the rt0 initialization
// code. This function is invoked by the rt0 assembly code after setting up the GDT
// and setting up a a minimal g0 struct that allows Go code using the 4K stack
// allocated by the assembly code.
//
// The rt0 code passes the address of the multiboot info payload provided by the
// bootloader as well as the physical addresses for the kernel start/end.
//
// Kmain is not expected to return. If it does, the rt0 code will halt the CPU.
//
//go:noinline
func Kmain(multibootInfoPtr, kernelStart, kernelEnd uintptr) {
	multiboot.SetInfoPtr(multibootInfoPtr)

	hal.InitTerminal()
	hal.ActiveTerminal.Clear()

	var err *kernel.Error
	if err = allocator.Init(); err != nil {
		kernel.Panic(err)
	}

	vmm.SetFrameAllocator(allocator.AllocFrame)
	vmm.SetFrameFreer(allocator.Free)
	if err = vmm.Init(); err != nil {
		kernel.Panic(err)
	}

	s, err := sched.New()
	if err != nil {
		kernel.Panic(err)
	}

	irq.AckFn = cpu.AckInterruptController
	irq.ScheduleFn = s.Schedule
	irq.TickFn = s.Tick
	irq.SyscallFn = syscall.Dispatch
	irq.UserFaultFn = s.HandleUserFault
	irq.KernelFaultFn = kernel.KernelFault

	cpu.EnableInterrupts()

	// The first timer IRQ hands control to s.Schedule, which switches onto
	// the idle task's primed stack frame and never returns here; this loop
	// only ever runs before that first tick fires.
	for {
		cpu.Halt()
	}
}
