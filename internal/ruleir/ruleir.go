// Package ruleir is a strongly-normalizing intermediate representation for instruction-selection
// lowering rules. Backends that have more than one way to lower a given IR pattern (for example
// amd64's immediate-vs-register operand selection) describe their candidate lowerings as a
// RuleSet instead of a hand-written cascade of Go conditionals; overlap analysis then tells the
// backend author when two rules can both match the same input, which is otherwise easy to get
// wrong by hand.
package ruleir

// BindingId is a hash-consed reference to a Binding within a RuleSet. Structurally equal
// Bindings within one RuleSet always share the same BindingId.
type BindingId uint32

// RuleId identifies one Rule's position within a RuleSet's Rules slice.
type RuleId uint32

// TupleIndex is a field index into a tuple or an enum variant's field list.
type TupleIndex uint8
