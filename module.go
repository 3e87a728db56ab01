package wazevo

import (
	"github.com/wazevo-rt/wazevo/internal/wasm"
)

// Module is a decoded and compiled WebAssembly binary, ready to be instantiated (possibly many
// times) by a Linker. It corresponds to the "validated module" phase of the Core Specification,
// distinct from an Instance, which is one particular instantiation of it.
type Module struct {
	store   *Store
	module  *wasm.Module
	typeIDs []wasm.FunctionTypeID
}

// Name is the module name recorded in the binary's custom "name" section, or "" if absent.
func (m *Module) Name() string {
	if ns := m.module.NameSection; ns != nil {
		return ns.ModuleName
	}
	return ""
}

// ImportedFunctions describes every function this Module imports, in function index namespace
// order.
func (m *Module) ImportedFunctions() []ImportedFunction {
	var ret []ImportedFunction
	for i := range m.module.ImportSection {
		imp := &m.module.ImportSection[i]
		if imp.Type != wasm.ExternTypeFunc {
			continue
		}
		ret = append(ret, ImportedFunction{
			Module: imp.Module,
			Name:   imp.Name,
			Type:   m.module.TypeSection[imp.DescFunc],
		})
	}
	return ret
}

// ImportedFunction names and types one function import of a Module.
type ImportedFunction struct {
	Module, Name string
	Type         wasm.FunctionType
}

// Close releases the compiled form of this Module from its Store. Already-instantiated
// Instances remain usable; only future CompileModule results of an identical binary will pay
// compilation cost again.
func (m *Module) Close() {
	m.store.engine.DeleteCompiledModule(m.module)
}
