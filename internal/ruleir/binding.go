package ruleir

// Binding is anything a rule can bind to a name: a constant, one of the top-level term's
// arguments, the result of calling an extractor or constructor, or a projection produced by
// pattern-matching an earlier binding against an enum variant, Option, or tuple. Binding is a
// closed sum type; the only implementations are in this file.
type Binding interface {
	isBinding()
}

// ConstIntBinding evaluates to a fixed integer literal.
type ConstIntBinding struct {
	Val int64
}

// ConstPrimBinding evaluates to a fixed, externally-interned primitive value (an opcode, a
// register class tag, and so on — whatever the instruction selector's term environment uses
// Sym for).
type ConstPrimBinding struct {
	Sym uint32
}

// ArgumentBinding is one of the top-level term's arguments.
type ArgumentBinding struct {
	Index TupleIndex
}

// ExtractorBinding is the result of calling a fallible or infallible external extractor term on
// another binding.
type ExtractorBinding struct {
	Term      uint32
	Parameter BindingId
}

// ConstructorBinding is the result of calling an external constructor term on zero or more
// parameter bindings.
type ConstructorBinding struct {
	Term       uint32
	Parameters []BindingId
}

// MakeVariantBinding is the result of constructing one variant of an enum type from field
// bindings.
type MakeVariantBinding struct {
	Ty      uint32
	Variant uint32
	Fields  []BindingId
}

// MatchVariantBinding projects one field out of Source, which must match Variant. There must be
// a corresponding Constraint{Variant} constraint on Source for every (Source, Variant) pair that
// appears in some MatchVariantBinding — see normalizeEquivalenceClasses.
type MatchVariantBinding struct {
	Source  BindingId
	Variant uint32
	Field   TupleIndex
}

// MatchSomeBinding unwraps Source, which must be non-nil. There must be a corresponding
// Constraint{Some} on Source for every MatchSomeBinding that projects it.
type MatchSomeBinding struct {
	Source BindingId
}

// MatchTupleBinding projects one field out of Source. Unlike MatchVariantBinding this is an
// irrefutable match — there is never a corresponding Constraint.
type MatchTupleBinding struct {
	Source BindingId
	Field  TupleIndex
}

func (ConstIntBinding) isBinding()    {}
func (ConstPrimBinding) isBinding()   {}
func (ArgumentBinding) isBinding()    {}
func (ExtractorBinding) isBinding()   {}
func (ConstructorBinding) isBinding() {}
func (MakeVariantBinding) isBinding() {}
func (MatchVariantBinding) isBinding() {}
func (MatchSomeBinding) isBinding()   {}
func (MatchTupleBinding) isBinding()  {}
