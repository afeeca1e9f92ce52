package supervisor

import "testing"

func TestRegistrySeedAncestorIsSelf(t *testing.T) {
	r := newRegistry()
	r.seed(100)
	if got := r.ancestor(100); got != 100 {
		t.Fatalf("ancestor(100) = %d, want 100", got)
	}
}

func TestRegistryOnChildFlattensThroughGrandchildren(t *testing.T) {
	r := newRegistry()
	r.seed(100)
	r.onChild(100, 101) // direct fork
	r.onChild(101, 102) // grandchild, forked from 101

	if got := r.ancestor(101); got != 100 {
		t.Fatalf("ancestor(101) = %d, want 100", got)
	}
	if got := r.ancestor(102); got != 100 {
		t.Fatalf("ancestor(102) = %d, want 100 (flattened through 101)", got)
	}
	if len(r.rpmap[100]) != 3 {
		t.Fatalf("rpmap[100] = %v, want 3 entries", r.rpmap[100])
	}
}

func TestRegistryExitTreeNotEmptyUntilLastDescendant(t *testing.T) {
	r := newRegistry()
	r.seed(100)
	r.onChild(100, 101)

	anc, empty := r.exit(101)
	if anc != 100 {
		t.Fatalf("exit(101) ancestor = %d, want 100", anc)
	}
	if empty {
		t.Fatalf("tree reported empty with ancestor 100 still alive")
	}

	anc, empty = r.exit(100)
	if anc != 100 || !empty {
		t.Fatalf("exit(100) = (%d, %v), want (100, true)", anc, empty)
	}
	if _, ok := r.rpmap[100]; ok {
		t.Fatalf("rpmap[100] should have been deleted once empty")
	}
}

func TestRegistryExitOfSoleProcessIsImmediatelyEmpty(t *testing.T) {
	r := newRegistry()
	r.seed(200)
	anc, empty := r.exit(200)
	if anc != 200 || !empty {
		t.Fatalf("exit(200) = (%d, %v), want (200, true)", anc, empty)
	}
}
