package vmm

import (
	"github.com/nyxkernel/nyxkernel/kernel"
	"github.com/nyxkernel/nyxkernel/kernel/mem"
	"github.com/nyxkernel/nyxkernel/kernel/mem/pmm"
)

// zeroFrameFn clears the contents of a freshly allocated frame when Map is
// called with FlagClear. Overridable by tests to observe which frames were
// requested to be cleared.
var zeroFrameFn = func(frame pmm.Frame) {}

// Map installs present entries covering rng in dir, allocating a fresh
// physical frame for every page. If flags includes FlagClear, each frame is
// zero-filled before installation. Fails with ErrAlreadyMapped if any page
// in rng is already present.
func Map(dir *PageDirectory, rng mem.Range, flags PageTableEntryFlag) *kernel.Error {
	if err := checkRangeFree(dir, rng); err != nil {
		return err
	}

	page := PageFromAddress(rng.Base)
	for i := uint32(0); i < rng.Pages; i, page = i+1, page+1 {
		frame, err := frameAllocator()
		if err != nil {
			return ErrOutOfMemory
		}
		if flags&FlagClear != 0 {
			zeroFrameFn(frame)
		}
		if err := installEntry(dir, page, frame, flags); err != nil {
			return err
		}
	}
	return nil
}

// MapIdentity installs present entries covering rng in dir, mapping every
// virtual page directly to the physical frame at the same address. Used for
// device MMIO windows and for carrying boot-time identity mappings forward
// into a freshly created directory. No frame is allocated. Fails with
// ErrAlreadyMapped if any page in rng is already present.
func MapIdentity(dir *PageDirectory, rng mem.Range, flags PageTableEntryFlag) *kernel.Error {
	if err := checkRangeFree(dir, rng); err != nil {
		return err
	}

	page := PageFromAddress(rng.Base)
	for i := uint32(0); i < rng.Pages; i, page = i+1, page+1 {
		if err := installEntry(dir, page, pmm.Frame(page), flags); err != nil {
			return err
		}
	}
	return nil
}

// Alloc locates a free run of pages large enough to cover size in the half
// of dir selected by flags (FlagUser selects the user half; its absence
// selects the kernel half), maps it via Map and returns its base virtual
// address. Fails with ErrOutOfMemory if no run large enough exists.
func Alloc(dir *PageDirectory, size mem.Size, flags PageTableEntryFlag) (uintptr, *kernel.Error) {
	pages := size.Pages()

	base, err := findFreeRun(dir, pages, flags&FlagUser != 0)
	if err != nil {
		return 0, err
	}

	rng := mem.Range{Base: base.Address(), Pages: pages}
	if err := Map(dir, rng, flags); err != nil {
		return 0, err
	}
	return rng.Base, nil
}

// Free clears the entries covering rng in dir page by page and releases the
// frame backing each one. It returns ErrInvalid at the first page that is
// not present; the pages before it have already been cleared and released
// by then. Callers must not call Free on a range backed by a frame
// that a shared mapping elsewhere still references; the vmm layer has no
// notion of sharing and always releases what it finds present.
func Free(dir *PageDirectory, rng mem.Range) *kernel.Error {
	page := PageFromAddress(rng.Base)
	for i := uint32(0); i < rng.Pages; i, page = i+1, page+1 {
		di, ti := dirIndex(page), tableIndex(page)
		de := &dir.entries[di]
		if !de.present || !de.table.present[ti] {
			return ErrInvalid
		}

		if frameFreer != nil {
			if err := frameFreer(de.table.entries[ti].frame, 1); err != nil {
				return err
			}
		}
		de.table.present[ti] = false
		de.table.entries[ti] = pageTableEntry{}
		flushTLBEntryFn(page.Address())
	}
	return nil
}

// MapFrame installs a single present entry mapping page to a caller-supplied
// frame in dir. Unlike Map, it never allocates a frame itself; it is used
// where the caller already holds the specific frame to install, such as the
// Go runtime's shared copy-on-write zero page. Fails with ErrAlreadyMapped
// if page is already present.
func MapFrame(dir *PageDirectory, page Page, frame pmm.Frame, flags PageTableEntryFlag) *kernel.Error {
	if isPresent(dir, page) {
		return ErrAlreadyMapped
	}
	return installEntry(dir, page, frame, flags&^FlagClear)
}

// Reserve locates a free run of pages large enough for size in the half of
// dir selected by flags, without installing any entries, and returns its
// base virtual address. The caller is expected to map the returned range
// later, e.g. via Map, MapIdentity or MapFrame; until then the run stays
// free from any other caller's point of view only if the caller installs
// entries before yielding control, since Reserve does not itself reserve
// bookkeeping state.
func Reserve(dir *PageDirectory, size mem.Size, flags PageTableEntryFlag) (uintptr, *kernel.Error) {
	pages := size.Pages()
	base, err := findFreeRun(dir, pages, flags&FlagUser != 0)
	if err != nil {
		return 0, err
	}
	return base.Address(), nil
}

// checkRangeFree returns ErrAlreadyMapped if any page in rng is already
// present in dir.
func checkRangeFree(dir *PageDirectory, rng mem.Range) *kernel.Error {
	page := PageFromAddress(rng.Base)
	for i := uint32(0); i < rng.Pages; i, page = i+1, page+1 {
		if isPresent(dir, page) {
			return ErrAlreadyMapped
		}
	}
	return nil
}

// isPresent reports whether page has a present mapping in dir.
func isPresent(dir *PageDirectory, page Page) bool {
	de := &dir.entries[dirIndex(page)]
	if !de.present {
		return false
	}
	return de.table.present[tableIndex(page)]
}

// installEntry marks page present in dir, allocating the leaf table that
// covers it on first use.
func installEntry(dir *PageDirectory, page Page, frame pmm.Frame, flags PageTableEntryFlag) *kernel.Error {
	de := &dir.entries[dirIndex(page)]
	if !de.present {
		tableFrame, err := frameAllocator()
		if err != nil {
			return ErrOutOfMemory
		}
		de.table = &pageTable{}
		de.frame = tableFrame
		de.present = true
	}

	ti := tableIndex(page)
	de.table.entries[ti] = pageTableEntry{frame: frame, flags: flags &^ FlagClear}
	de.table.present[ti] = true
	flushTLBEntryFn(page.Address())
	return nil
}

// findFreeRun scans the half of dir's virtual address space selected by
// user for a run of pages consecutive free pages, first-fit. Page 0 of the
// user half is never returned so that the null page stays permanently
// unmapped.
func findFreeRun(dir *PageDirectory, pages uint32, user bool) (Page, *kernel.Error) {
	lowPage := uint32(1)
	highPage := uint32(kernelDirIndex) * entriesPerTable
	if !user {
		lowPage = highPage
		highPage = entriesPerTable * entriesPerTable
	}

	var run, runStart uint32
	for p := lowPage; p < highPage; p++ {
		if isPresent(dir, Page(p)) {
			run = 0
			continue
		}
		if run == 0 {
			runStart = p
		}
		run++
		if run == pages {
			return Page(runStart), nil
		}
	}
	return 0, ErrOutOfMemory
}
