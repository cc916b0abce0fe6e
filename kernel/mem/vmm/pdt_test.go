package vmm

import (
	"testing"

	"github.com/nyxkernel/nyxkernel/kernel"
	"github.com/nyxkernel/nyxkernel/kernel/mem"
	"github.com/nyxkernel/nyxkernel/kernel/mem/pmm"
)

func TestDirCreateAliasesKernelHalf(t *testing.T) {
	dir := newTestDir(t)

	kernelRng := mem.Range{Base: mem.KernelBoundary, Pages: 1}
	if err := Map(kernelDir, kernelRng, FlagRW); err != nil {
		t.Fatalf("unexpected error mapping into kernel directory: %v", err)
	}

	// A directory created after the kernel mapping was installed must see
	// it immediately, since the kernel half is aliased by reference.
	child, err := DirCreate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, _, ok := Translate(child, mem.KernelBoundary); !ok {
		t.Fatal("expected kernel mapping to be visible in a freshly created directory")
	}

	_ = dir
}

func TestDirDestroyReleasesUserHalfOnly(t *testing.T) {
	dir := newTestDir(t)

	kernelRng := mem.Range{Base: mem.KernelBoundary, Pages: 1}
	if err := Map(kernelDir, kernelRng, FlagRW); err != nil {
		t.Fatalf("unexpected error mapping into kernel directory: %v", err)
	}

	userRng := mem.Range{Base: 0x1000, Pages: 1}
	if err := Map(dir, userRng, FlagRW|FlagUser); err != nil {
		t.Fatalf("unexpected error mapping user range: %v", err)
	}

	var freed []pmm.Frame
	frameFreer = func(base pmm.Frame, n uint32) *kernel.Error {
		freed = append(freed, base)
		return nil
	}

	if err := DirDestroy(dir); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(freed) == 0 {
		t.Fatal("expected DirDestroy to release at least the user-half table and its frame")
	}

	// The kernel directory itself must be untouched by destroying a child.
	if _, _, ok := Translate(kernelDir, mem.KernelBoundary); !ok {
		t.Fatal("expected kernel mapping to survive destruction of a user directory")
	}
}

func TestDirDestroyRefusesKernelDirectory(t *testing.T) {
	newTestDir(t)

	if err := DirDestroy(kernelDir); err != ErrInvalid {
		t.Fatalf("expected ErrInvalid when destroying the kernel directory; got %v", err)
	}
}

func TestDirSwitchUpdatesActiveDir(t *testing.T) {
	dir := newTestDir(t)

	var switchedTo uintptr
	switchPDTFn = func(addr uintptr) { switchedTo = addr }

	DirSwitch(dir)

	if ActiveDir() != dir {
		t.Fatal("expected ActiveDir to report the directory passed to DirSwitch")
	}
	if switchedTo == 0 {
		t.Fatal("expected DirSwitch to invoke the arch-level switch")
	}
}
