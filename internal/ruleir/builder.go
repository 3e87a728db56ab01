package ruleir

import "fmt"

// Builder accumulates Rules against one hash-consed Binding arena. Callers build up one rule at
// a time: bind arguments and intermediate values, attach constraints and equalities to the
// binding sites a pattern depends on, then call FinishRule. There is no parser here — a backend
// that wants rule-driven instruction selection constructs its RuleSet directly, in Go, the way
// this builder's methods are named to read almost like the lowering rules themselves.
type Builder struct {
	rs         RuleSet
	bindingIdx map[string]BindingId

	cur     Rule
	pending []unreachableError
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{bindingIdx: make(map[string]BindingId)}
}

func (b *Builder) dedup(key string, bind Binding) BindingId {
	if id, ok := b.bindingIdx[key]; ok {
		return id
	}
	id := BindingId(len(b.rs.Bindings))
	b.rs.Bindings = append(b.rs.Bindings, bind)
	b.bindingIdx[key] = id
	return id
}

// Argument binds one of the top-level term's arguments.
func (b *Builder) Argument(index TupleIndex) BindingId {
	return b.dedup(fmt.Sprintf("arg:%d", index), ArgumentBinding{Index: index})
}

// ConstInt binds a fixed integer literal.
func (b *Builder) ConstInt(val int64) BindingId {
	return b.dedup(fmt.Sprintf("constint:%d", val), ConstIntBinding{Val: val})
}

// ConstPrim binds a fixed, externally-interned primitive value.
func (b *Builder) ConstPrim(sym uint32) BindingId {
	return b.dedup(fmt.Sprintf("constprim:%d", sym), ConstPrimBinding{Sym: sym})
}

// Extractor binds the result of calling an external extractor term on parameter.
func (b *Builder) Extractor(term uint32, parameter BindingId) BindingId {
	return b.dedup(fmt.Sprintf("extractor:%d:%d", term, parameter), ExtractorBinding{Term: term, Parameter: parameter})
}

// Constructor binds the result of calling an external constructor term on parameters.
func (b *Builder) Constructor(term uint32, parameters []BindingId) BindingId {
	return b.dedup(fmt.Sprintf("constructor:%d:%v", term, parameters), ConstructorBinding{Term: term, Parameters: parameters})
}

// MakeVariant binds the result of constructing one enum variant from fields.
func (b *Builder) MakeVariant(ty, variant uint32, fields []BindingId) BindingId {
	return b.dedup(fmt.Sprintf("makevariant:%d:%d:%v", ty, variant, fields), MakeVariantBinding{Ty: ty, Variant: variant, Fields: fields})
}

// MatchVariant requires source to match the given variant, constrains source accordingly, and
// returns one fresh binding per field of that variant.
func (b *Builder) MatchVariant(source BindingId, ty, variant uint32, fieldCount TupleIndex) []BindingId {
	b.setConstraint(source, VariantConstraint{Ty: ty, Variant: variant, Fields: fieldCount})
	return b.variantBindings(source, fieldCount, variant)
}

func (b *Builder) variantBindings(source BindingId, fieldCount TupleIndex, variant uint32) []BindingId {
	out := make([]BindingId, fieldCount)
	for f := TupleIndex(0); f < fieldCount; f++ {
		out[f] = b.dedup(
			fmt.Sprintf("matchvariant:%d:%d:%d", source, variant, f),
			MatchVariantBinding{Source: source, Variant: variant, Field: f},
		)
	}
	return out
}

// MatchSome requires source to be non-nil and returns a binding for its contents.
func (b *Builder) MatchSome(source BindingId) BindingId {
	b.setConstraint(source, SomeConstraint{})
	return b.dedup(fmt.Sprintf("matchsome:%d", source), MatchSomeBinding{Source: source})
}

// MatchTuple projects field out of source. There is no corresponding Constraint: this match can
// never fail.
func (b *Builder) MatchTuple(source BindingId, field TupleIndex) BindingId {
	return b.dedup(fmt.Sprintf("matchtuple:%d:%d", source, field), MatchTupleBinding{Source: source, Field: field})
}

// MatchEqual requires a and b to evaluate to the same value.
func (b *Builder) MatchEqual(a, c BindingId) {
	if b.cur.Equals.parent == nil {
		b.cur.Equals = newDisjointSet()
	}
	if a != c {
		b.cur.Equals.merge(a, c)
	}
}

// MatchInt requires input to equal val.
func (b *Builder) MatchInt(input BindingId, val int64) {
	b.setConstraint(input, ConstIntConstraint{Val: val})
}

// MatchPrim requires input to equal the interned primitive sym.
func (b *Builder) MatchPrim(input BindingId, sym uint32) {
	b.setConstraint(input, ConstPrimConstraint{Sym: sym})
}

func (b *Builder) setConstraint(input BindingId, c Constraint) {
	if b.cur.Equals.parent == nil {
		b.cur.Equals = newDisjointSet()
	}
	if err := b.cur.setConstraint(input, c); err != nil {
		b.pending = append(b.pending, *err.(*unreachableError))
	}
}

// FinishRule normalizes the current rule's equivalence classes (see normalizeEquivalenceClasses),
// assigns it the given priority and result, and either appends it to the RuleSet or, if the
// rule can never match any input, drops it and returns the unreachable-rule errors instead.
func (b *Builder) FinishRule(prio int64, result BindingId) []error {
	b.cur.Prio = prio
	b.cur.Result = result
	b.normalizeEquivalenceClasses()

	rule := b.cur
	b.cur = Rule{}

	if len(b.pending) == 0 {
		b.rs.Rules = append(b.rs.Rules, rule)
		return nil
	}
	errs := make([]error, len(b.pending))
	for i := range b.pending {
		e := b.pending[i]
		errs[i] = &e
	}
	b.pending = nil
	return errs
}

// Build returns the accumulated RuleSet. The Builder must not be used after calling Build.
func (b *Builder) Build() *RuleSet {
	return &b.rs
}
