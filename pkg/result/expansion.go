// Package result aggregates a protocol run result into a per-command view
// and renders it as text or JSON.
package result

// Expansion holds per-command expanded flags, indexed by command position.
// Indices beyond the end read as collapsed. The zero value is all collapsed.
type Expansion []bool

// IsExpanded reports whether command i is expanded.
func (e Expansion) IsExpanded(i int) bool {
	return i >= 0 && i < len(e) && e[i]
}

// Toggle returns a copy of e with index i flipped. The copy grows as needed;
// no other index changes. Negative indices return an unchanged copy.
func (e Expansion) Toggle(i int) Expansion {
	n := len(e)
	if i >= n {
		n = i + 1
	}
	out := make(Expansion, n)
	copy(out, e)
	if i >= 0 {
		out[i] = !out[i]
	}
	return out
}

// Set returns a copy of e with index i set to expanded.
func (e Expansion) Set(i int, expanded bool) Expansion {
	if e.IsExpanded(i) == expanded {
		return append(Expansion(nil), e...)
	}
	return e.Toggle(i)
}

// All returns an expansion with the first n commands expanded.
func All(n int) Expansion {
	e := make(Expansion, n)
	for i := range e {
		e[i] = true
	}
	return e
}
