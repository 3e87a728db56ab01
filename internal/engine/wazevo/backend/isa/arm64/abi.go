package arm64

import (
	"github.com/wazevo-rt/wazevo/internal/engine/wazevo/backend"
	"github.com/wazevo-rt/wazevo/internal/engine/wazevo/backend/regalloc"
	"github.com/wazevo-rt/wazevo/internal/engine/wazevo/ssa"
)

// abiImpl holds the lowered argument/return locations for a ssa.Signature, computed against
// the AAPCS64 register set (x0-x7 for integer/pointer args and results, v0-v7 for float/vector).
type abiImpl struct {
	m *machine

	initialized bool

	args, rets                 []backend.ABIArg
	argStackSize, retStackSize int64

	argRealRegs []regalloc.VReg
	retRealRegs []regalloc.VReg
}

func (a *abiImpl) init(sig *ssa.Signature) {
	if len(a.rets) < len(sig.Results) {
		a.rets = make([]backend.ABIArg, len(sig.Results))
	}
	a.rets = a.rets[:len(sig.Results)]
	a.retStackSize = setABIArgs(a.rets, sig.Results)

	if argsNum := len(sig.Params); len(a.args) < argsNum {
		a.args = make([]backend.ABIArg, argsNum)
	}
	a.args = a.args[:len(sig.Params)]
	a.argStackSize = setABIArgs(a.args, sig.Params)

	a.retRealRegs = a.retRealRegs[:0]
	for i := range a.rets {
		r := &a.rets[i]
		if r.Kind == backend.ABIArgKindReg {
			a.retRealRegs = append(a.retRealRegs, r.Reg)
		}
	}
	a.argRealRegs = a.argRealRegs[:0]
	for i := range a.args {
		arg := &a.args[i]
		if arg.Kind == backend.ABIArgKindReg {
			a.argRealRegs = append(a.argRealRegs, arg.Reg)
		}
	}

	a.initialized = true
}

// setABIArgs assigns registers (falling back to the stack once the AAPCS64 argument registers
// are exhausted) to each of types, writing the result into s, and returns the stack space used.
func setABIArgs(s []backend.ABIArg, types []ssa.Type) (stackSize int64) {
	il, fl := len(intArgResultRegs), len(floatArgResultRegs)

	var stackOffset int64
	intIdx, floatIdx := 0, 0
	for i, typ := range types {
		arg := &s[i]
		arg.Index = i
		arg.Type = typ
		if typ.IsInt() {
			if intIdx >= il {
				arg.Kind = backend.ABIArgKindStack
				const slotSize = 8
				arg.Offset = stackOffset
				stackOffset += slotSize
			} else {
				arg.Kind = backend.ABIArgKindReg
				arg.Reg = regalloc.FromRealReg(intArgResultRegs[intIdx], regalloc.RegTypeInt)
				intIdx++
			}
		} else {
			if floatIdx >= fl {
				arg.Kind = backend.ABIArgKindStack
				slotSize := int64(8)
				if typ.Bits() == 128 {
					slotSize = 16
				}
				arg.Offset = stackOffset
				stackOffset += slotSize
			} else {
				arg.Kind = backend.ABIArgKindReg
				arg.Reg = regalloc.FromRealReg(floatArgResultRegs[floatIdx], regalloc.RegTypeFloat)
				floatIdx++
			}
		}
	}
	return stackOffset
}

// alignedStackSlotSize returns the 16-byte-aligned total size of the stack space needed for
// arguments and return values that don't fit in registers.
func (a *abiImpl) alignedStackSlotSize() int64 {
	size := a.argStackSize + a.retStackSize
	return (size + 15) &^ 15
}

func (m *machine) getOrCreateABIImpl(sig *ssa.Signature) *abiImpl {
	if int(sig.ID) >= len(m.abis) {
		m.abis = append(m.abis, make([]abiImpl, int(sig.ID)+1)...)
	}

	abi := &m.abis[sig.ID]
	if abi.initialized {
		return abi
	}
	abi.m = m
	abi.init(sig)
	return abi
}

// LowerParams implements backend.Machine.
func (m *machine) LowerParams(params []ssa.Value) {
	// TODO implement me
	panic("implement me")
}

// LowerReturns implements backend.Machine.
func (m *machine) LowerReturns(returns []ssa.Value) {
	// TODO implement me
	panic("implement me")
}
