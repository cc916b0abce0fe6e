// Package vmm implements the virtual memory manager: a Go-level two-level
// page directory (one page-directory table of 1024 entries, each pointing at
// a 1024-entry page table) standing in for the hardware paging structures a
// real x86 MMU would walk. Kernel-half page tables are allocated on first
// use. DirCreate copies the kernel directory's kernel-half entries into the
// new directory, so it shares by reference every kernel table that exists
// at that moment; a kernel table allocated later is not added to
// directories created before it, and a kernel-half table allocated through
// a user directory stays private to that directory.
package vmm

import (
	"github.com/nyxkernel/nyxkernel/kernel"
	"github.com/nyxkernel/nyxkernel/kernel/mem/pmm"
)

const (
	entriesPerTable = 1024

	// kernelDirIndex is the first page-directory index that belongs to the
	// kernel half of the address space (mem.KernelBoundary >> 22).
	kernelDirIndex = 0xC0000000 >> 22
)

var (
	// ErrAlreadyMapped is returned by Map/MapIdentity when a page in the
	// requested range is already present.
	ErrAlreadyMapped = &kernel.Error{Module: "vmm", Message: "page already mapped"}

	// ErrOutOfMemory is returned when a backing frame or a free virtual
	// run cannot be found.
	ErrOutOfMemory = &kernel.Error{Module: "vmm", Message: "out of memory"}

	// ErrInvalid is returned when an operation targets a page that is not
	// currently mapped.
	ErrInvalid = &kernel.Error{Module: "vmm", Message: "invalid virtual address"}

	// frameAllocator supplies physical frames backing new page tables and
	// new mappings. Registered once during boot via SetFrameAllocator.
	frameAllocator FrameAllocatorFn

	// frameFreer releases frames previously obtained from frameAllocator.
	// Registered once during boot via SetFrameFreer; left nil in tests
	// that only exercise mapping, not directory teardown.
	frameFreer FrameFreerFn

	// kernelDir is the single, never-destroyed page directory for the
	// kernel half of every address space. Every PageDirectory created via
	// DirCreate aliases kernelDir's upper-half entries by reference.
	kernelDir *PageDirectory

	// activeDir is the page directory DirSwitch last installed.
	activeDir *PageDirectory

	// ReservedZeroedFrame is a single zero-filled frame allocated at Init
	// time and shared, read-only plus FlagCopyOnWrite, by every mapping
	// that wants lazily-backed zero pages (e.g. the Go runtime's reserved
	// address space before it is actually touched).
	ReservedZeroedFrame pmm.Frame
)

// FrameAllocatorFn is a function that can allocate a physical frame.
type FrameAllocatorFn func() (pmm.Frame, *kernel.Error)

// FrameFreerFn is a function that can release n contiguous physical frames
// starting at base.
type FrameFreerFn func(base pmm.Frame, n uint32) *kernel.Error

// KernelDir returns the singleton kernel page directory every user
// directory's upper half aliases. Kernel tasks run with this directory
// active directly, rather than a per-task directory of their own.
func KernelDir() *PageDirectory {
	return kernelDir
}

// SetFrameAllocator registers a frame allocator function used by the vmm
// package whenever it needs to back a new mapping or page table.
func SetFrameAllocator(allocFn FrameAllocatorFn) {
	frameAllocator = allocFn
}

// SetFrameFreer registers the function used to release frames that DirDestroy
// and Free reclaim.
func SetFrameFreer(freeFn FrameFreerFn) {
	frameFreer = freeFn
}

// Init constructs the singleton kernel page directory and activates it. It
// must run once, after SetFrameAllocator, before any other vmm call.
func Init() *kernel.Error {
	f, err := frameAllocator()
	if err != nil {
		return err
	}

	kernelDir = &PageDirectory{selfFrame: f, isKernel: true}
	activeDir = kernelDir

	zeroFrame, err := frameAllocator()
	if err != nil {
		return err
	}
	zeroFrameFn(zeroFrame)
	ReservedZeroedFrame = zeroFrame

	return nil
}
