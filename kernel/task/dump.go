package task

import (
	"unsafe"

	"github.com/nyxkernel/nyxkernel/kernel/kfmt/early"
	"github.com/nyxkernel/nyxkernel/kernel/mem/vmm"
)

// Dump prints a diagnostic summary of t: identity, state and page directory,
// used by the user-fault exception path. Grounded on Task.cpp's task_dump.
func Dump(t *Task) {
	if t == nil {
		return
	}

	early.Printf("\n\t - Task %d %s", t.ID, t.Name)
	early.Printf("\n\t   State: %s", t.State.String())
	early.Printf("\n\t   Mappings: %d", len(t.Mappings))

	if t.Dir == vmm.KernelDir() {
		early.Printf("\n\t   Page directory: kernel\n")
	} else {
		early.Printf("\n\t   Page directory: 0x%x\n", uintptr(unsafe.Pointer(t.Dir)))
	}
}
