// Package allocator implements the kernel's physical frame allocator: a
// bitmap over every memory region the boot handover reports as available.
package allocator

import (
	"github.com/nyxkernel/nyxkernel/kernel"
	"github.com/nyxkernel/nyxkernel/kernel/cpu"
	"github.com/nyxkernel/nyxkernel/kernel/hal/multiboot"
	"github.com/nyxkernel/nyxkernel/kernel/mem"
	"github.com/nyxkernel/nyxkernel/kernel/mem/pmm"
)

var (
	// ErrOutOfMemory is returned when no pool has enough contiguous free
	// frames to satisfy a request.
	ErrOutOfMemory = &kernel.Error{Module: "pmm", Message: "out of memory"}

	// ErrInvalidFrame is returned when Free is called with a frame range
	// that does not lie entirely within a single pool.
	ErrInvalidFrame = &kernel.Error{Module: "pmm", Message: "invalid frame range"}

	// FrameAllocator is the singleton physical frame allocator used by
	// the rest of the kernel once Init has run.
	FrameAllocator BitmapAllocator
)

// framePool tracks free/used frames for one contiguous region of physical
// RAM reported by the boot handover.
type framePool struct {
	// startFrame is the frame number of the first page in this pool.
	startFrame pmm.Frame

	// pageCount is the number of frames covered by this pool.
	pageCount uint32

	// freeCount tracks the number of unallocated frames in this pool so
	// AllocContiguous can skip exhausted pools without scanning their
	// bitmap.
	freeCount uint32

	// freeBitmap holds one bit per frame; a set bit means the frame is
	// allocated. Bit j of word i corresponds to frame startFrame+64*i+j.
	freeBitmap []uint64

	// searchCursor is the bit index AllocContiguous resumes scanning
	// from. Free rearms it to the start of the freed run, so bursty
	// allocate/free cycles do not strand the cursor past newly
	// available space.
	searchCursor uint32
}

// BitmapAllocator implements a first-fit physical frame allocator backed by
// one free bitmap per available memory region.
type BitmapAllocator struct {
	pools []framePool

	totalPages    uint32
	reservedPages uint32
}

// init builds the pool bitmaps from the boot handover's memory map. It must
// run exactly once, before any call to AllocContiguous or Free.
func (alloc *BitmapAllocator) init() *kernel.Error {
	return alloc.setupPoolBitmaps()
}

// setupPoolBitmaps scans the boot handover's memory map and allocates one
// framePool (and its bitmap) per available region.
func (alloc *BitmapAllocator) setupPoolBitmaps() *kernel.Error {
	multiboot.VisitMemRegions(func(region *multiboot.MemoryMapEntry) bool {
		if region.Type != multiboot.MemAvailable {
			return true
		}

		startFrame, pageCount := frameRangeOf(region)
		if pageCount == 0 {
			return true
		}

		alloc.totalPages += pageCount
		alloc.pools = append(alloc.pools, framePool{
			startFrame: startFrame,
			pageCount:  pageCount,
			freeCount:  pageCount,
			freeBitmap: make([]uint64, (pageCount+63)>>6),
		})
		return true
	})

	return nil
}

// frameRangeOf rounds a reported memory region to whole frames: up for the
// start address, down for the end address (mirroring the multiboot
// region-to-frame rounding used by the early bootstrap allocator).
func frameRangeOf(region *multiboot.MemoryMapEntry) (pmm.Frame, uint32) {
	pageSizeMinus1 := uint64(mem.PageSize - 1)
	startFrame := pmm.Frame(((region.PhysAddress + pageSizeMinus1) &^ pageSizeMinus1) >> mem.PageShift)
	endAddr := region.PhysAddress + region.Length
	endFrame := pmm.Frame((endAddr &^ pageSizeMinus1) >> mem.PageShift)
	if endFrame <= startFrame {
		return startFrame, 0
	}
	return startFrame, uint32(endFrame - startFrame)
}

// AllocContiguous reserves n contiguous physical frames and returns the
// first one. Requesting zero frames trivially succeeds and returns the
// invalid frame. The scan runs inside an atomic region (spec: "All
// operations execute with interrupts masked").
func (alloc *BitmapAllocator) AllocContiguous(n uint32) (pmm.Frame, *kernel.Error) {
	guard := cpu.BeginAtomic()
	defer guard.Release()

	if n == 0 {
		return pmm.InvalidFrame, nil
	}

	for poolIdx := range alloc.pools {
		pool := &alloc.pools[poolIdx]
		if pool.freeCount < n {
			continue
		}

		if run, ok := pool.findFreeRun(n); ok {
			pool.markRange(run, n, true)
			pool.freeCount -= n
			pool.searchCursor = run + n
			alloc.reservedPages += n
			return pool.startFrame + pmm.Frame(run), nil
		}
	}

	return pmm.InvalidFrame, ErrOutOfMemory
}

// Free releases n frames starting at base. It is an error to free a range
// that does not lie entirely within one pool.
func (alloc *BitmapAllocator) Free(base pmm.Frame, n uint32) *kernel.Error {
	guard := cpu.BeginAtomic()
	defer guard.Release()

	if n == 0 {
		return nil
	}

	for poolIdx := range alloc.pools {
		pool := &alloc.pools[poolIdx]
		if base < pool.startFrame || base+pmm.Frame(n) > pool.startFrame+pmm.Frame(pool.pageCount) {
			continue
		}

		offset := uint32(base - pool.startFrame)
		pool.markRange(offset, n, false)
		pool.freeCount += n
		pool.searchCursor = offset
		alloc.reservedPages -= n
		return nil
	}

	return ErrInvalidFrame
}

// Used returns the total number of reserved frames across all pools.
func (alloc *BitmapAllocator) Used() uint32 {
	return alloc.reservedPages
}

// Total returns the total number of frames across all pools.
func (alloc *BitmapAllocator) Total() uint32 {
	return alloc.totalPages
}

// findFreeRun scans the pool's bitmap for n consecutive clear bits,
// starting from the search cursor and wrapping around at most once.
func (pool *framePool) findFreeRun(n uint32) (uint32, bool) {
	limit := pool.pageCount
	start := pool.searchCursor
	if start >= limit {
		start = 0
	}

	var run, runStart uint32
	for scanned := uint32(0); scanned < limit; scanned++ {
		i := (start + scanned) % limit
		if pool.bitSet(i) {
			run = 0
			continue
		}

		if run == 0 {
			runStart = i
		}
		run++
		if run == n {
			return runStart, true
		}
	}

	return 0, false
}

func (pool *framePool) bitSet(i uint32) bool {
	return pool.freeBitmap[i>>6]&(uint64(1)<<(i&63)) != 0
}

func (pool *framePool) markRange(start, n uint32, used bool) {
	for i := start; i < start+n; i++ {
		word, bit := i>>6, uint64(1)<<(i&63)
		if used {
			pool.freeBitmap[word] |= bit
		} else {
			pool.freeBitmap[word] &^= bit
		}
	}
}

// earlyAllocFrame delegates a frame allocation request to the boot-time
// allocator. It is used to back the kernel's own early page tables before
// BitmapAllocator itself is constructed.
func earlyAllocFrame() (pmm.Frame, *kernel.Error) {
	return earlyAllocator.AllocFrame()
}

// AllocFrame satisfies vmm.FrameAllocatorFn: it allocates a single frame
// from the primary allocator. Most vmm callers use this instead of calling
// AllocContiguous directly.
func AllocFrame() (pmm.Frame, *kernel.Error) {
	return FrameAllocator.AllocContiguous(1)
}

// Free satisfies vmm.FrameFreerFn: it releases n frames through the primary
// allocator.
func Free(base pmm.Frame, n uint32) *kernel.Error {
	return FrameAllocator.Free(base, n)
}

// Init sets up the kernel's physical memory allocation subsystem: the
// boot-time allocator first (used to bootstrap early page tables), then the
// bitmap allocator that serves every later request.
func Init() *kernel.Error {
	earlyAllocator.init()
	earlyAllocator.printMemoryMap()

	return FrameAllocator.init()
}
