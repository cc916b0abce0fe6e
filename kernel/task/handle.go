package task

import (
	"sync"

	"github.com/nyxkernel/nyxkernel/kernel"
)

// MaxHandles bounds the number of simultaneously open resource references a
// task may hold, mirroring the source's fixed-size PROCESS_HANDLE_COUNT
// table.
const MaxHandles = 64

var (
	// ErrTooManyHandles is returned by HandleTable.Open when every slot
	// is occupied.
	ErrTooManyHandles = &kernel.Error{Module: "task", Message: "too many open handles"}

	// ErrBadHandle is returned when a handle index is out of range or
	// refers to a closed slot.
	ErrBadHandle = &kernel.Error{Module: "task", Message: "invalid handle"}
)

// Handle is an opaque open-resource reference. This module only manages its
// allocation and lifetime; the referent (a file, a pipe, a socket) is an
// external collaborator named in SPEC_FULL.md §6.
type Handle interface {
	Close() *kernel.Error
}

// HandleTable is a bounded, lockable array of a task's open Handles.
// Acquired with interrupts enabled and never held across a yield, per
// SPEC_FULL.md §5.
type HandleTable struct {
	mu      sync.Mutex
	handles [MaxHandles]Handle
}

// Open installs h in the first free slot and returns its index.
func (t *HandleTable) Open(h Handle) (int, *kernel.Error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.handles {
		if t.handles[i] == nil {
			t.handles[i] = h
			return i, nil
		}
	}
	return -1, ErrTooManyHandles
}

// Get returns the handle at index i.
func (t *HandleTable) Get(i int) (Handle, *kernel.Error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if i < 0 || i >= MaxHandles || t.handles[i] == nil {
		return nil, ErrBadHandle
	}
	return t.handles[i], nil
}

// Close releases the handle at index i.
func (t *HandleTable) Close(i int) *kernel.Error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if i < 0 || i >= MaxHandles || t.handles[i] == nil {
		return ErrBadHandle
	}

	err := t.handles[i].Close()
	t.handles[i] = nil
	return err
}

// CloseAll closes every open handle, used during task teardown
// (task_fshandle_close_all in the original). The first error encountered is
// returned after every slot has been given a chance to close.
func (t *HandleTable) CloseAll() *kernel.Error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var firstErr *kernel.Error
	for i := range t.handles {
		if t.handles[i] == nil {
			continue
		}
		if err := t.handles[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		t.handles[i] = nil
	}
	return firstErr
}
