package cpu

var (
	// disableInterruptsFn and enableInterruptsFn are used by tests to
	// mock calls into the arch port, which would otherwise fault outside
	// of kernel mode. They are automatically inlined by the compiler when
	// building the real kernel.
	disableInterruptsFn = DisableInterrupts
	enableInterruptsFn  = EnableInterrupts

	// atomicDepth tracks the nesting level of atomic regions on the
	// current (only; this kernel is uniprocessor) CPU. Interrupts are
	// unmasked only when the depth returns to zero.
	atomicDepth uint32

	// wasEnabled records whether interrupts were enabled before the
	// outermost atomic region was entered, so that a guard that never
	// nests restores the prior masked state instead of unconditionally
	// unmasking.
	wasEnabled bool

	// interruptsEnabledFn lets tests observe the current masked state
	// without depending on the real arch primitive.
	interruptsEnabledFn = InterruptsEnabled
)

// AtomicGuard is a scoped handle on an atomic (interrupts-masked) region.
// Nested guards increment a shared depth counter; only the outermost guard's
// Release call actually unmasks interrupts, and only if they were enabled
// before the outermost guard was acquired.
type AtomicGuard struct {
	released bool
}

// BeginAtomic opens (or extends) the current atomic region and returns a
// guard whose Release call closes it. Pair every BeginAtomic with exactly
// one Release, typically via defer.
func BeginAtomic() *AtomicGuard {
	if atomicDepth == 0 {
		wasEnabled = interruptsEnabledFn()
		disableInterruptsFn()
	}
	atomicDepth++

	return &AtomicGuard{}
}

// Release closes this atomic region. Interrupts are unmasked only once the
// nesting depth returns to zero, and only if they were enabled when the
// outermost region was opened.
func (g *AtomicGuard) Release() {
	if g.released {
		return
	}
	g.released = true

	atomicDepth--
	if atomicDepth == 0 && wasEnabled {
		enableInterruptsFn()
	}
}

// SetInterruptHooks overrides the primitives BeginAtomic and Release use to
// mask, unmask and query interrupt state, so that packages outside cpu can
// exercise atomic regions in host tests without executing a real privileged
// instruction. The returned func restores the previous hooks.
func SetInterruptHooks(disable, enable func(), isEnabled func() bool) (restore func()) {
	origDisable, origEnable, origIsEnabled := disableInterruptsFn, enableInterruptsFn, interruptsEnabledFn
	disableInterruptsFn, enableInterruptsFn, interruptsEnabledFn = disable, enable, isEnabled
	return func() {
		disableInterruptsFn, enableInterruptsFn, interruptsEnabledFn = origDisable, origEnable, origIsEnabled
	}
}

// InAtomic reports whether the current CPU is inside an atomic region.
func InAtomic() bool {
	return atomicDepth > 0
}

// AssertAtomic panics if called outside of an atomic region. It is used to
// guard functions such as task creation, state transitions and scheduler
// entry that require the caller to already hold atomicity.
func AssertAtomic() {
	if atomicDepth == 0 {
		panic("cpu: function requires an atomic region")
	}
}
