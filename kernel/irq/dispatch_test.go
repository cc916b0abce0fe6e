package irq

import "testing"

func resetHooks(t *testing.T) {
	t.Helper()
	origAck, origSched, origTick, origSyscall, origUserFault, origKernelFault, origEnable, origDisable, origHandlers, origSpurious :=
		AckFn, ScheduleFn, TickFn, SyscallFn, UserFaultFn, KernelFaultFn, enableInterruptsFn, disableInterruptsFn, handlers, SpuriousCount

	t.Cleanup(func() {
		AckFn, ScheduleFn, TickFn, SyscallFn, UserFaultFn, KernelFaultFn, enableInterruptsFn, disableInterruptsFn, handlers, SpuriousCount =
			origAck, origSched, origTick, origSyscall, origUserFault, origKernelFault, origEnable, origDisable, origHandlers, origSpurious
	})

	AckFn, ScheduleFn, TickFn, SyscallFn, UserFaultFn, KernelFaultFn = nil, nil, nil, nil, nil, nil
	enableInterruptsFn, disableInterruptsFn = func() {}, func() {}
	handlers = [16]Handler{}
	SpuriousCount = 0
}

func TestDispatchKernelException(t *testing.T) {
	resetHooks(t)

	var gotFrame *Frame
	KernelFaultFn = func(f *Frame) { gotFrame = f }

	frame := &Frame{IntNo: 13, EIP: 0x1000, Err: 0xbad}
	var ackCalled uint32
	AckFn = func(v uint32) { ackCalled = v }

	Dispatch(0x2000, frame)

	if gotFrame != frame {
		t.Fatal("expected KernelFaultFn to be invoked with the dispatched frame")
	}
	if ackCalled != 13 {
		t.Fatalf("expected Ack to be called with vector 13; got %d", ackCalled)
	}
}

func TestDispatchUserException(t *testing.T) {
	resetHooks(t)

	var gotIntNo, gotErr, gotEIP uint32
	var enabled bool
	enableInterruptsFn = func() { enabled = true }
	UserFaultFn = func(intNo, errCode, eip uint32) {
		gotIntNo, gotErr, gotEIP = intNo, errCode, eip
	}

	frame := &Frame{IntNo: 14, Err: 4, EIP: 0x40001000}
	Dispatch(0x2000, frame)

	if !enabled {
		t.Fatal("expected interrupts to be re-enabled before handling a user fault")
	}
	if gotIntNo != 14 || gotErr != 4 || gotEIP != 0x40001000 {
		t.Fatalf("unexpected UserFaultFn args: %d %d %x", gotIntNo, gotErr, gotEIP)
	}
}

func TestDispatchTimerIRQAdvancesTickAndSchedules(t *testing.T) {
	resetHooks(t)

	var ticked bool
	var schedArg uintptr
	TickFn = func() { ticked = true }
	ScheduleFn = func(savedESP uintptr) uintptr {
		schedArg = savedESP
		return 0xcafe
	}

	got := Dispatch(0xbeef, &Frame{IntNo: firstIRQVector + TimerIRQ})

	if !ticked {
		t.Fatal("expected the timer IRQ to advance the tick")
	}
	if schedArg != 0xbeef {
		t.Fatalf("expected Schedule to receive the saved ESP; got %x", schedArg)
	}
	if got != 0xcafe {
		t.Fatalf("expected Dispatch to return the scheduler's chosen ESP; got %x", got)
	}
}

func TestDispatchDeviceIRQ(t *testing.T) {
	resetHooks(t)

	var firedIRQ uint32 = 0xff
	Register(3, func(n uint32) { firedIRQ = n })

	Dispatch(0, &Frame{IntNo: firstIRQVector + 3})

	if firedIRQ != 3 {
		t.Fatalf("expected registered handler to fire with IRQ 3; got %d", firedIRQ)
	}
}

func TestDispatchSpuriousIRQ(t *testing.T) {
	resetHooks(t)

	Dispatch(0, &Frame{IntNo: firstIRQVector + 7})

	if SpuriousCount != 1 {
		t.Fatalf("expected the unregistered IRQ to be counted as spurious; got %d", SpuriousCount)
	}
}

func TestDispatchYieldTrap(t *testing.T) {
	resetHooks(t)

	var schedCalled bool
	ScheduleFn = func(savedESP uintptr) uintptr {
		schedCalled = true
		return savedESP
	}

	Dispatch(0x1234, &Frame{IntNo: YieldVector})

	if !schedCalled {
		t.Fatal("expected the yield trap to invoke the scheduler")
	}
}

func TestDispatchSyscall(t *testing.T) {
	resetHooks(t)

	var enabled, disabled bool
	enableInterruptsFn = func() { enabled = true }
	disableInterruptsFn = func() { disabled = true }
	SyscallFn = func(num, a1, a2, a3, a4, a5 uint32) uint32 {
		if num != 7 || a1 != 1 || a2 != 2 || a3 != 3 || a4 != 4 || a5 != 5 {
			t.Errorf("unexpected syscall args: %d %d %d %d %d %d", num, a1, a2, a3, a4, a5)
		}
		return 0x99
	}

	frame := &Frame{IntNo: SyscallVector, EAX: 7, EBX: 1, ECX: 2, EDX: 3, ESI: 4, EDI: 5}
	Dispatch(0, frame)

	if !enabled || !disabled {
		t.Fatal("expected interrupts to be re-enabled then disabled around the syscall")
	}
	if frame.EAX != 0x99 {
		t.Fatalf("expected the syscall result to be written back into EAX; got %x", frame.EAX)
	}
}

func TestDispatchAlwaysAcks(t *testing.T) {
	resetHooks(t)

	var acked []uint32
	AckFn = func(v uint32) { acked = append(acked, v) }

	Dispatch(0, &Frame{IntNo: firstIRQVector + 9})
	Dispatch(0, &Frame{IntNo: YieldVector})
	Dispatch(0, &Frame{IntNo: SyscallVector})

	if len(acked) != 3 {
		t.Fatalf("expected every dispatched vector to be acked; got %v", acked)
	}
}

func TestExceptionMessage(t *testing.T) {
	if got := ExceptionMessage(14); got != "Page fault" {
		t.Fatalf("expected vector 14 to be %q; got %q", "Page fault", got)
	}
	if got := ExceptionMessage(999); got != "Unknown interrupt" {
		t.Fatalf("expected an out-of-range vector to report unknown; got %q", got)
	}
}
