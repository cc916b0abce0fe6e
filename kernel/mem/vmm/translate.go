package vmm

import "github.com/nyxkernel/nyxkernel/kernel/mem/pmm"

// Translate performs a read-only walk of dir, returning the physical frame
// and flags backing vaddr. ok is false if vaddr was never mapped, which
// distinguishes an unmapped address from one that is present but failed a
// protection check.
func Translate(dir *PageDirectory, vaddr uintptr) (pmm.Frame, PageTableEntryFlag, bool) {
	page := PageFromAddress(vaddr)

	de := &dir.entries[dirIndex(page)]
	if !de.present {
		return pmm.InvalidFrame, 0, false
	}

	ti := tableIndex(page)
	if !de.table.present[ti] {
		return pmm.InvalidFrame, 0, false
	}

	pte := &de.table.entries[ti]
	return pte.Frame(), pte.flags, true
}
