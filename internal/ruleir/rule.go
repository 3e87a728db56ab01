package ruleir

import "fmt"

// Rule is one term-rewriting rule. Every BindingId it mentions is only meaningful in the context
// of the RuleSet that owns it.
type Rule struct {
	// Pos is an opaque source location, useful for diagnostics; the instruction-selection
	// generator that builds a RuleSet at package-init time typically leaves this zero.
	Pos int

	// constraints maps each constrained binding site to the Constraint it must satisfy. A
	// binding site absent from this map is unconstrained.
	constraints map[BindingId]Constraint

	// Equals tracks binding sites required to be equal for this rule to match. After
	// normalization (see normalizeEquivalenceClasses) every such binding site also carries a
	// concrete Constraint whenever any member of its class does.
	Equals disjointSet

	// Prio breaks ties when more than one rule matches; the rule with the highest Prio wins.
	// Equal-priority overlapping rules are a selector construction error, not handled here.
	Prio int64

	// Result is the binding the rule evaluates to when it matches.
	Result BindingId
}

// GetConstraint returns the constraint on source, if any.
func (r *Rule) GetConstraint(source BindingId) (Constraint, bool) {
	c, ok := r.constraints[source]
	return c, ok
}

// unreachableError records that a rule requires one binding site to satisfy two different
// constraints, which no input can do. Such a rule is dropped before it can corrupt overlap
// analysis.
type unreachableError struct {
	pos                    int
	constraintA, constraintB Constraint
}

func (e *unreachableError) Error() string {
	return fmt.Sprintf("rule at pos %d requires a binding to match both %#v and %#v", e.pos, e.constraintA, e.constraintB)
}

func (r *Rule) setConstraint(source BindingId, c Constraint) error {
	if r.constraints == nil {
		r.constraints = make(map[BindingId]Constraint)
	}
	if existing, ok := r.constraints[source]; ok {
		if !constraintsEqual(existing, c) {
			return &unreachableError{pos: r.Pos, constraintA: existing, constraintB: c}
		}
		return nil
	}
	r.constraints[source] = c
	return nil
}

// RuleSet is a collection of Rules sharing one hash-consed Binding arena.
type RuleSet struct {
	Rules    []Rule
	Bindings []Binding
}

// Binding returns the Binding that id refers to.
func (rs *RuleSet) Binding(id BindingId) Binding {
	return rs.Bindings[id]
}
