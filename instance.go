package wazevo

import (
	"context"
	"fmt"

	"github.com/wazevo-rt/wazevo/api"
	"github.com/wazevo-rt/wazevo/internal/wasm"
)

// Instance is one instantiation of a Module, produced by Linker.Instantiate. It implements
// api.Module, and owns the memories/tables/globals this particular instantiation defines, plus
// references to whatever it imported.
type Instance struct {
	store    *Store
	name     string
	module   *wasm.Module
	inst     *wasm.ModuleInstance
	typeIDs  []wasm.FunctionTypeID
}

var _ api.Module = (*Instance)(nil)

// Name implements api.Module.
func (i *Instance) Name() string { return i.name }

// String implements fmt.Stringer, part of api.Module.
func (i *Instance) String() string { return fmt.Sprintf("Module[%s]", i.name) }

// Memory implements api.Module. It returns the first memory defined or imported by this
// Instance, or nil if it has none, matching the Core Specification's single-memory-per-module
// restriction (multi-memory is a REDESIGN FLAG candidate, not currently exposed here).
func (i *Instance) Memory() api.Memory {
	if i.inst.MemoryInstance == nil {
		return nil
	}
	return &Memory{inst: i.inst.MemoryInstance, store: i.store}
}

// ExportedFunction implements api.Module.
func (i *Instance) ExportedFunction(name string) api.Function {
	idx, ok := i.inst.ExportedFunctionIndex(name)
	if !ok {
		return nil
	}
	return i.inst.Engine.NewFunction(idx)
}

// ExportedMemory implements api.Module. wazevo instances have at most one memory, so this
// returns it when exported under name, regardless of multiple export aliases.
func (i *Instance) ExportedMemory(name string) api.Memory {
	exp, ok := i.inst.Exports[name]
	if !ok || exp.Type != wasm.ExternTypeMemory {
		return nil
	}
	return i.Memory()
}

// ExportedGlobal implements api.Module.
func (i *Instance) ExportedGlobal(name string) api.Global {
	exp, ok := i.inst.Exports[name]
	if !ok || exp.Type != wasm.ExternTypeGlobal {
		return nil
	}
	g := i.inst.Globals[exp.Index]
	if g.Type.Mutable {
		return &MutableGlobal{Global{inst: g}}
	}
	return &Global{inst: g}
}

// ExportedTable returns the table exported under name, or nil if there is none. Not part of
// api.Module (whose Table support is not yet standardized there), but exposed directly since
// SPEC_FULL.md's host API names Table as a first-class handle type.
func (i *Instance) ExportedTable(name string) *Table {
	exp, ok := i.inst.Exports[name]
	if !ok || exp.Type != wasm.ExternTypeTable {
		return nil
	}
	return &Table{inst: i.inst.Tables[exp.Index], store: i.store}
}

// Close implements api.Closer.
func (i *Instance) Close(ctx context.Context) error {
	return i.inst.Close(ctx)
}

// CloseWithExitCode implements api.Module.
func (i *Instance) CloseWithExitCode(ctx context.Context, exitCode uint32) error {
	return i.inst.CloseWithExitCode(ctx, exitCode)
}
