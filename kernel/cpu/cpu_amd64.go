// +build amd64

// Package cpu exposes the narrow architecture port that the rest of the
// kernel core builds on: interrupt masking, halting, TLB control and the
// address-space root register. Each function below has no Go body; it is
// backed by a hand-written trampoline supplied at link time by the arch
// support package, exactly like the rest of the kernel's low-level
// primitives.
package cpu

// EnableInterrupts unmasks hardware interrupt delivery on the current CPU.
func EnableInterrupts()

// DisableInterrupts masks hardware interrupt delivery on the current CPU.
func DisableInterrupts()

// InterruptsEnabled reports whether interrupt delivery is currently unmasked.
func InterruptsEnabled() bool

// Halt stops instruction execution until the next interrupt.
func Halt()

// Yield issues the software interrupt (vector 127) that invokes the
// scheduler without advancing the tick counter.
func Yield()

// FlushTLBEntry flushes a TLB entry for a particular virtual address.
func FlushTLBEntry(virtAddr uintptr)

// SwitchPDT sets the root page table directory to point to the specified
// physical address and flushes the TLB.
func SwitchPDT(pdtPhysAddr uintptr)

// ActivePDT returns the physical address of the currently active page table.
func ActivePDT() uintptr

// DebugWrite writes buf to the architecture's debug output channel (e.g. a
// serial port) and returns the number of bytes written.
func DebugWrite(buf []byte) int

// GetTime returns a monotonic hardware timestamp. The scheduler's tick
// counter, not this value, is the only clock user code may observe.
func GetTime() TimeStamp

// Reboot resets the machine. It does not return.
func Reboot()

// Shutdown powers off the machine. It does not return.
func Shutdown()

// AckInterruptController acknowledges the interrupt controller for the
// given hardware vector, so it will deliver further interrupts on that
// line. Called by irq.Dispatch after every IRQ, per SPEC_FULL.md §6's
// interrupt-controller interface.
func AckInterruptController(vector uint32)

// TimeStamp is an opaque hardware time reading.
type TimeStamp uint64
