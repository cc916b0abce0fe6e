package vmm

import (
	"unsafe"

	"github.com/nyxkernel/nyxkernel/kernel"
	"github.com/nyxkernel/nyxkernel/kernel/mem/pmm"
)

// pageTable is the leaf level of the translation tree: up to 1024 mapped
// pages, each either absent or present with an entry describing its frame
// and flags.
type pageTable struct {
	entries [entriesPerTable]pageTableEntry
	present [entriesPerTable]bool
}

// dirEntry is one slot of a PageDirectory: absent, or present and pointing
// at a leaf pageTable that was charged against a physical frame.
type dirEntry struct {
	table   *pageTable
	frame   pmm.Frame
	present bool
}

// PageDirectory is the top-level translation structure for one address
// space. Its upper half (indices kernelDirIndex..1023, i.e. virtual
// addresses at or above the kernel/user boundary) holds the kernel
// directory's entries as DirCreate copied them: a mapping installed in one
// of the page tables those entries point at becomes visible through every
// such PageDirectory without any copying, but a kernel-half table allocated
// after DirCreate ran is not seen by it.
type PageDirectory struct {
	entries   [entriesPerTable]dirEntry
	selfFrame pmm.Frame
	isKernel  bool
}

// DirCreate allocates a new page directory. Its kernel half is aliased from
// the shared kernel directory (installed by Init); its user half starts
// empty.
func DirCreate() (*PageDirectory, *kernel.Error) {
	f, err := frameAllocator()
	if err != nil {
		return nil, err
	}

	dir := &PageDirectory{selfFrame: f}
	if kernelDir != nil {
		copy(dir.entries[kernelDirIndex:], kernelDir.entries[kernelDirIndex:])
	}
	return dir, nil
}

// DirDestroy releases every user-half table and the frames backing it, then
// releases the directory's own frame. The kernel directory can never be
// destroyed; destroying it returns ErrInvalid.
func DirDestroy(dir *PageDirectory) *kernel.Error {
	if dir.isKernel {
		return ErrInvalid
	}

	for i := 0; i < kernelDirIndex; i++ {
		de := &dir.entries[i]
		if !de.present {
			continue
		}
		if err := freeTable(de); err != nil {
			return err
		}
		de.present = false
		de.table = nil
	}

	if frameFreer != nil {
		if err := frameFreer(dir.selfFrame, 1); err != nil {
			return err
		}
	}
	return nil
}

// freeTable releases every present page in a leaf table plus the frame
// charged for the table itself. Pages backed by a mapping still referenced
// elsewhere (shared mappings) must be unmapped by the caller beforehand;
// freeTable always releases what it still finds present.
func freeTable(de *dirEntry) *kernel.Error {
	if frameFreer == nil {
		return nil
	}
	for i := range de.table.entries {
		if !de.table.present[i] {
			continue
		}
		if err := frameFreer(de.table.entries[i].frame, 1); err != nil {
			return err
		}
	}
	return frameFreer(de.frame, 1)
}

// DirSwitch loads dir as the active address-space root. It is safe to call
// with interrupts enabled; the caller is responsible for not referencing
// task-private memory across the switch.
func DirSwitch(dir *PageDirectory) {
	activeDir = dir
	switchPDTFn(uintptr(unsafe.Pointer(dir)))
}

// ActiveDir returns the currently active page directory.
func ActiveDir() *PageDirectory {
	return activeDir
}

// dirIndex and tableIndex split a virtual page number into its
// page-directory and page-table indices.
func dirIndex(page Page) uint32   { return uint32(page) / entriesPerTable }
func tableIndex(page Page) uint32 { return uint32(page) % entriesPerTable }
