package syscall

import "testing"

func TestDispatchInvokesRegisteredCall(t *testing.T) {
	defer func() { table[1] = nil }()

	Register(1, func(a1, a2, a3, a4, a5 uint32) uint32 { return a1 + a2 })

	if got := Dispatch(1, 2, 3, 0, 0, 0); got != 5 {
		t.Fatalf("expected 5; got %d", got)
	}
}

func TestDispatchReturnsErrNoSuchCallWhenUnregistered(t *testing.T) {
	if got := Dispatch(200, 0, 0, 0, 0, 0); got != ErrNoSuchCall {
		t.Fatalf("expected ErrNoSuchCall; got %d", got)
	}
}

func TestRegisterPanicsOutOfRange(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected Register to panic for an out-of-range call number")
		}
	}()
	Register(MaxCalls, func(a1, a2, a3, a4, a5 uint32) uint32 { return 0 })
}
