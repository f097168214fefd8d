package correlate

import (
	"github.com/polematch/internal/extract"
)

// pool is the set of identities still unmatched when a stage starts. A
// stage never edits its pool; it returns a new one without the pairs it
// accepted.
type pool struct {
	a []extract.PoleIdentity
	b []extract.PoleIdentity
}

func newPool(a, b []extract.PoleIdentity) (pool, []extract.PoleIdentity, []extract.PoleIdentity) {
	var p pool
	var skippedA, skippedB []extract.PoleIdentity
	for _, id := range a {
		if id.Eligible() {
			p.a = append(p.a, id)
		} else {
			skippedA = append(skippedA, id)
		}
	}
	for _, id := range b {
		if id.Eligible() {
			p.b = append(p.b, id)
		} else {
			skippedB = append(skippedB, id)
		}
	}
	return p, skippedA, skippedB
}

// without returns the pool minus the given pool indexes.
func (p pool) without(usedA, usedB map[int]bool) pool {
	next := pool{
		a: make([]extract.PoleIdentity, 0, len(p.a)-len(usedA)),
		b: make([]extract.PoleIdentity, 0, len(p.b)-len(usedB)),
	}
	for i, id := range p.a {
		if !usedA[i] {
			next.a = append(next.a, id)
		}
	}
	for j, id := range p.b {
		if !usedB[j] {
			next.b = append(next.b, id)
		}
	}
	return next
}

func (p pool) empty() bool {
	return len(p.a) == 0 || len(p.b) == 0
}
