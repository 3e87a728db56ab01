package ruleir

// Constraint is a refutable pattern match applied to a binding site: a rule only matches an
// input if every constraint attached to one of its bindings holds. Constraint is a closed sum
// type; the only implementations are in this file. Unlike Binding, every Constraint value is
// comparable, since rules compare constraints directly when checking for overlap.
type Constraint interface {
	isConstraint()
	comparable() constraintKey
}

// constraintKey is a comparable projection of a Constraint, used so Rule.constraints can be
// compared for equality without a type switch at every call site.
type constraintKey struct {
	kind    int
	ty      uint32
	variant uint32
	fields  TupleIndex
	val     int64
	sym     uint32
}

const (
	constraintKindVariant = iota
	constraintKindConstInt
	constraintKindConstPrim
	constraintKindSome
)

// VariantConstraint requires the binding to match the given enum variant.
type VariantConstraint struct {
	Ty      uint32
	Variant uint32
	Fields  TupleIndex
}

// ConstIntConstraint requires the binding to equal a fixed integer literal.
type ConstIntConstraint struct {
	Val int64
}

// ConstPrimConstraint requires the binding to equal a fixed interned primitive value.
type ConstPrimConstraint struct {
	Sym uint32
}

// SomeConstraint requires the binding to be a non-nil Option, i.e. that a fallible extractor
// succeeded.
type SomeConstraint struct{}

func (VariantConstraint) isConstraint()   {}
func (ConstIntConstraint) isConstraint()  {}
func (ConstPrimConstraint) isConstraint() {}
func (SomeConstraint) isConstraint()      {}

func (c VariantConstraint) comparable() constraintKey {
	return constraintKey{kind: constraintKindVariant, ty: c.Ty, variant: c.Variant, fields: c.Fields}
}

func (c ConstIntConstraint) comparable() constraintKey {
	return constraintKey{kind: constraintKindConstInt, val: c.Val}
}

func (c ConstPrimConstraint) comparable() constraintKey {
	return constraintKey{kind: constraintKindConstPrim, sym: c.Sym}
}

func (SomeConstraint) comparable() constraintKey {
	return constraintKey{kind: constraintKindSome}
}

func constraintsEqual(a, b Constraint) bool {
	return a.comparable() == b.comparable()
}
