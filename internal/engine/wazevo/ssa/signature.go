package ssa

import "fmt"

// SignatureID is an unique identifier used to lookup.
type SignatureID uint32

// String implements fmt.Stringer.
func (s SignatureID) String() string {
	return fmt.Sprintf("sig%d", s)
}

// Signature is a function prototype for a function, used to lower calls and to share
// ABI lowering logic across multiple functions with the same shape. A Signature is
// identified by its ID once declared via Builder.DeclareSignature, and the ID is what
// an OpcodeCall / OpcodeCallIndirect instruction actually carries.
type Signature struct {
	// ID is the unique identifier of this signature, consulted via Builder.ResolveSignature.
	ID SignatureID
	// Params is the list of the types of the parameters, in left-to-right order.
	Params []Type
	// Results is the list of the types of the results, in left-to-right order.
	Results []Type

	// used is true if this is referenced by at least one Call/CallIndirect instruction. Set
	// by AsCall/AsCallIndirect and consulted by Builder.UsedSignatures so the backend only
	// lowers an ABI for signatures it will actually encounter.
	used bool
}

// String implements fmt.Stringer.
func (s *Signature) String() string {
	return fmt.Sprintf("%s: %v->%v", s.ID, s.Params, s.Results)
}

// FuncRef is a unique identifier for a function, whether defined locally within the
// module (where it equals the Wasm-level function index) or imported.
type FuncRef uint32

// String implements fmt.Stringer.
func (r FuncRef) String() string {
	return fmt.Sprintf("f%d", uint32(r))
}

// SourceOffset represents the byte offset of a Wasm instruction within its function body,
// attached to the SSA instructions lowered from it so that the backend can emit a mapping
// from machine code back to the original Wasm bytecode location.
type SourceOffset int64

// SourceOffsetNone is the zero value of SourceOffset, returned for instructions with no
// associated Wasm-level position (e.g. ones synthesized by an optimization pass).
const SourceOffsetNone SourceOffset = -1

// Valid reports whether this SourceOffset points at an actual Wasm offset.
func (l SourceOffset) Valid() bool {
	return l >= 0
}
