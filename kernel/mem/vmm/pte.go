package vmm

import "github.com/nyxkernel/nyxkernel/kernel/mem/pmm"

// PageTableEntryFlag describes a flag that can be applied to a mapping.
type PageTableEntryFlag uintptr

const (
	// FlagRW marks a page as writable. Absent, the page is read-only.
	FlagRW PageTableEntryFlag = 1 << iota

	// FlagUser marks a page as accessible from user mode.
	FlagUser

	// FlagNoExecute marks a page as non-executable.
	FlagNoExecute

	// FlagClear tells Map to zero-fill the frame it allocates for each
	// page in the requested range.
	FlagClear

	// FlagCopyOnWrite marks a read-only page whose first write should be
	// trapped and serviced by copying its frame.
	FlagCopyOnWrite

	// FlagHugePage marks an entry as mapping a single large page instead
	// of delegating to a leaf table. Huge pages are not supported by this
	// implementation: no mapping call checks for this flag, and an entry
	// given it is stored and translated like any other single page.
	FlagHugePage
)

// pageTableEntry describes one mapped virtual page: the physical frame it
// resolves to and the flags that govern access to it.
type pageTableEntry struct {
	frame pmm.Frame
	flags PageTableEntryFlag
}

// HasFlags returns true if this entry has all of the input flags set.
func (pte *pageTableEntry) HasFlags(flags PageTableEntryFlag) bool {
	return pte.flags&flags == flags
}

// HasAnyFlag returns true if this entry has at least one of the input flags set.
func (pte *pageTableEntry) HasAnyFlag(flags PageTableEntryFlag) bool {
	return pte.flags&flags != 0
}

// SetFlags sets the input flags on the entry.
func (pte *pageTableEntry) SetFlags(flags PageTableEntryFlag) {
	pte.flags |= flags
}

// ClearFlags unsets the input flags from the entry.
func (pte *pageTableEntry) ClearFlags(flags PageTableEntryFlag) {
	pte.flags &^= flags
}

// Frame returns the physical frame this entry maps to.
func (pte *pageTableEntry) Frame() pmm.Frame {
	return pte.frame
}

// SetFrame updates the entry to point at the given physical frame.
func (pte *pageTableEntry) SetFrame(frame pmm.Frame) {
	pte.frame = frame
}
