package wazevo

import (
	"fmt"

	"github.com/wazevo-rt/wazevo/internal/wasm"
)

// Table is an instantiated WebAssembly table, holding a fixed-type array of references
// (function references for the funcref type this runtime supports; externref tables are
// validated but not yet populated by call_indirect, matching the limited reference-types
// support the compiler currently implements).
type Table struct {
	inst  *wasm.TableInstance
	store *Store
}

// Size returns the current number of elements in the table.
func (t *Table) Size() uint32 { return uint32(len(t.inst.References)) }

// Type returns the element reference type, either wasm.RefTypeFuncref or externref's byte
// encoding.
func (t *Table) Type() byte { return t.inst.Type }

// Get returns the raw reference stored at index, or an error if index is out of bounds.
func (t *Table) Get(index uint32) (wasm.Reference, error) {
	if index >= uint32(len(t.inst.References)) {
		return 0, fmt.Errorf("table index %d out of range (size %d)", index, len(t.inst.References))
	}
	return t.inst.References[index], nil
}

// Set stores ref at index, or returns an error if index is out of bounds.
func (t *Table) Set(index uint32, ref wasm.Reference) error {
	if index >= uint32(len(t.inst.References)) {
		return fmt.Errorf("table index %d out of range (size %d)", index, len(t.inst.References))
	}
	t.inst.References[index] = ref
	return nil
}

// Grow appends delta null references to the table, returning the previous size, or false if
// doing so would exceed the table's declared maximum.
func (t *Table) Grow(delta uint32) (previousSize uint32, ok bool) {
	previousSize = uint32(len(t.inst.References))
	newSize := previousSize + delta
	if t.inst.Max != nil && newSize > *t.inst.Max {
		return previousSize, false
	}
	if newSize < previousSize { // overflow
		return previousSize, false
	}
	grown := make([]wasm.Reference, newSize)
	copy(grown, t.inst.References)
	t.inst.References = grown
	return previousSize, true
}
