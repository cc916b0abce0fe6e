package task

import "github.com/nyxkernel/nyxkernel/kernel/mem"

// MappingKind describes the origin of a Mapping, mirroring the three kinds
// distinguished in SPEC_FULL.md §3: a private allocation, an identity
// mapping of device memory, or a reference into a shared object.
type MappingKind uint8

const (
	MappingPrivate MappingKind = iota
	MappingIdentity
	MappingShared
)

// Mapping is a named record of one page range owned by a task. Invariant:
// each byte of a task's virtual address space is covered by at most one
// Mapping; Create/Alloc-style helpers are responsible for upholding this
// when they append to Task.Mappings.
type Mapping struct {
	Range mem.Range
	Kind  MappingKind
}
