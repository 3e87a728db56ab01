package wazevo

import (
	"context"
	"fmt"

	"github.com/wazevo-rt/wazevo/api"
	"github.com/wazevo-rt/wazevo/internal/wasm"
)

// Global is an instantiated WebAssembly global. Immutable globals expose only Global's methods;
// mutable globals are handed out as *MutableGlobal so a type assertion to api.MutableGlobal
// reliably distinguishes the two, per api.Global's documented contract.
type Global struct {
	inst *wasm.GlobalInstance
}

var _ api.Global = (*Global)(nil)

// Type implements api.Global.
func (g *Global) Type() api.ValueType { return g.inst.Type.ValType }

// Get implements api.Global.
func (g *Global) Get(context.Context) uint64 { return g.inst.Val }

// String implements fmt.Stringer, part of api.Global.
func (g *Global) String() string {
	return fmt.Sprintf("Global(%s)", api.ValueTypeName(g.inst.Type.ValType))
}

// MutableGlobal is a Global whose value may be updated after instantiation.
type MutableGlobal struct {
	Global
}

var _ api.MutableGlobal = (*MutableGlobal)(nil)

// Set implements api.MutableGlobal.
func (g *MutableGlobal) Set(_ context.Context, v uint64) { g.inst.Val = v }
