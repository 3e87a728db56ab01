package ruleir

// normalizeEquivalenceClasses enforces the invariant that a binding site carries either a
// concrete Constraint or membership in a non-trivial equality class, never both: wherever a
// constrained binding is also required to equal others, the constraint is copied onto every
// member of that equality class instead, recursively expanding enum-variant constraints into
// per-field equalities along the way. See trie_again.rs's function of the same name, which this
// is a direct, field-for-field port of.
func (b *Builder) normalizeEquivalenceClasses() {
	type deferredConstraint struct {
		binding    BindingId
		constraint Constraint
	}

	// Step 1: collect (root, constraint) for every constrained binding with a non-trivial root.
	var deferred []deferredConstraint
	for binding, constraint := range b.cur.constraints {
		if root, ok := b.cur.Equals.find(binding); ok {
			deferred = append(deferred, deferredConstraint{root, constraint})
		}
	}

	for len(deferred) > 0 {
		// Step 2: pop one pair and remove its entire equivalence class.
		last := deferred[len(deferred)-1]
		deferred = deferred[:len(deferred)-1]
		current, constraint := last.binding, last.constraint

		set := b.cur.Equals.removeSetOf(current)
		if len(set) == 0 {
			continue
		}

		switch c := constraint.(type) {
		case VariantConstraint:
			// Step 3: expand a Variant constraint into per-field equalities.
			base, rest := set[0], set[1:]
			redefer := func(binding BindingId) {
				if existing, ok := b.cur.GetConstraint(binding); ok {
					deferred = append(deferred, deferredConstraint{binding, existing})
				}
			}
			baseFields := b.variantBindings(base, c.Fields, c.Variant)
			for _, x := range baseFields {
				redefer(x)
			}
			for _, member := range rest {
				memberFields := b.variantBindings(member, c.Fields, c.Variant)
				for i, x := range baseFields {
					y := memberFields[i]
					redefer(y)
					b.cur.Equals.merge(x, y)
				}
			}

		case ConstIntConstraint, ConstPrimConstraint:
			// Step 4: no new binding sites; the constraint is just copied below.

		case SomeConstraint:
			// Step 6: Some constraints never appear on multi-member equality classes, since
			// they're only introduced implicitly by MatchSome, which never participates in
			// MatchEqual.
			panic("ruleir: Some constraint on an equivalence class")

		default:
			panic("ruleir: unknown constraint kind in normalizeEquivalenceClasses")
		}

		// Step 5: copy the constraint onto every member of the (now-dissolved) class.
		for _, member := range set {
			b.setConstraint(member, constraint)
		}
	}
}
