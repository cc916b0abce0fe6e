// Package irq implements the kernel's single interrupt/exception/syscall
// entry seam: one hardware vector in, one (possibly different) kernel stack
// pointer out. Every trampoline the arch port installs decodes into the same
// Frame layout and calls Dispatch with it, mirroring the teacher's
// cpu_amd64.go arch-port pattern of declaring the low-level primitive
// without a Go body.
package irq

// Frame is the interrupt stack frame a kernel-mode trampoline builds before
// calling Dispatch. Its field order and size must match what the hardware
// (or, here, the synthetic frame task.Spawn constructs) actually pushes;
// Go's lack of struct padding between same-sized fields keeps this
// layout-compatible without explicit padding fields.
type Frame struct {
	// Segment registers, pushed by the trampoline before the
	// general-purpose registers.
	GS, FS, ES, DS uint32

	// General-purpose registers, in the order a `pusha` would leave them.
	EDI, ESI, EBP, ESP, EBX, EDX, ECX, EAX uint32

	// IntNo is the interrupt vector number.
	IntNo uint32

	// Err is the CPU-pushed error code, or zero for vectors that push
	// none.
	Err uint32

	// Hardware-pushed tail: instruction pointer, code segment, flags.
	EIP, CS, EFlags uint32
}

// UserFrame is Frame's user-mode variant: the CPU additionally pushes the
// user stack pointer and stack segment when a ring transition occurs.
type UserFrame struct {
	Frame
	UserESP, SS uint32
}

// The Kernel*Selector and User*Selector constants are the fixed GDT segment
// selector values task.Spawn uses to prime a new task's synthetic frame, grounded on
// Task.cpp's task_go (0x08/0x10 kernel, 0x1b/0x23 user).
const (
	KernelCodeSelector = 0x08
	KernelDataSelector = 0x10

	UserCodeSelector = 0x1b
	UserDataSelector = 0x23

	// DefaultEFlags enables interrupts (IF) and sets the reserved bit 1
	// that is always 1 on x86, matching Task.cpp's task_go.
	DefaultEFlags = 0x202
)
