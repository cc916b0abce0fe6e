package vmm

import "github.com/nyxkernel/nyxkernel/kernel/cpu"

var (
	// flushTLBEntryFn is used by tests to override calls into the arch
	// port, which would otherwise fault outside of kernel mode.
	flushTLBEntryFn = cpu.FlushTLBEntry

	// switchPDTFn is used by tests to override calls into the arch port.
	switchPDTFn = cpu.SwitchPDT
)

// SetArchHooks overrides the primitives Map/Free/DirSwitch use to flush TLB
// entries and reload the page directory base register, so that packages
// outside vmm (task, sched) can exercise directory creation and mapping in
// host tests without executing a real privileged instruction. The returned
// func restores the previous hooks.
func SetArchHooks(switchPDT, flushTLBEntry func(uintptr)) (restore func()) {
	origSwitch, origFlush := switchPDTFn, flushTLBEntryFn
	switchPDTFn, flushTLBEntryFn = switchPDT, flushTLBEntry
	return func() {
		switchPDTFn, flushTLBEntryFn = origSwitch, origFlush
	}
}
