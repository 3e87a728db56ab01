package ruleir

// Overlap records whether a given pair of Rules can both match on some input.
type Overlap struct {
	// Overlaps is false if there is no input both rules can match.
	Overlaps bool

	// Subset is true if every input the more-constrained rule accepts is also accepted by the
	// less-constrained one (only meaningful when Overlaps is true). It does not say which rule
	// is more general: compare len(constraints) to work that out, since the more general rule
	// always has fewer.
	Subset bool
}

// MayOverlap returns whether r and other can both match some common input. It may conservatively
// report an overlap where none is reachable in practice, but it never misses a real overlap.
func (r *Rule) MayOverlap(other *Rule) Overlap {
	small, big := r, other
	if len(small.constraints) > len(big.constraints) {
		small, big = big, small
	}

	// Nonlinear (equality) constraints complicate the subset check: we don't have a concrete
	// pattern to compare against, so conservatively treat a rule with any equality constraints
	// as not being a subset of anything.
	subset := small.Equals.isEmpty() && big.Equals.isEmpty()

	for binding, a := range small.constraints {
		b, ok := big.constraints[binding]
		if !ok {
			// big's inputs are a subset of small's only if every constraint in small is
			// matched exactly in big; we just found a counterexample.
			subset = false
			continue
		}
		if !constraintsEqual(a, b) {
			// Some binding site is constrained differently by both rules: no input satisfies
			// both.
			return Overlap{Overlaps: false}
		}
	}
	return Overlap{Overlaps: true, Subset: subset}
}
