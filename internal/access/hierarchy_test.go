package access

import (
	"errors"
	"math/rand"
	"testing"
)

func TestExpandAncestorsDiamond(t *testing.T) {
	h := NewHierarchy([]HierarchyEdge{
		{ParentRoleID: 1, ChildRoleID: 2},
		{ParentRoleID: 1, ChildRoleID: 3},
		{ParentRoleID: 2, ChildRoleID: 4},
		{ParentRoleID: 3, ChildRoleID: 4},
	})

	got, err := h.ExpandAncestors(4)
	if err != nil {
		t.Fatalf("expand ancestors: %v", err)
	}
	want := map[int64]struct{}{1: {}, 2: {}, 3: {}}
	if len(got) != len(want) {
		t.Fatalf("expected %d ancestors, got %v", len(want), got)
	}
	for id := range want {
		if _, ok := got[id]; !ok {
			t.Fatalf("missing ancestor %d in %v", id, got)
		}
	}
	if _, ok := got[4]; ok {
		t.Fatalf("expansion must exclude the start role")
	}
}

func TestExpandDescendants(t *testing.T) {
	h := NewHierarchy([]HierarchyEdge{
		{ParentRoleID: 1, ChildRoleID: 2},
		{ParentRoleID: 2, ChildRoleID: 3},
	})

	got, err := h.ExpandDescendants(1)
	if err != nil {
		t.Fatalf("expand descendants: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 descendants, got %v", got)
	}
	for _, id := range []int64{2, 3} {
		if _, ok := got[id]; !ok {
			t.Fatalf("missing descendant %d in %v", id, got)
		}
	}
}

func TestExpandUnknownRoleIsEmpty(t *testing.T) {
	h := NewHierarchy([]HierarchyEdge{{ParentRoleID: 1, ChildRoleID: 2}})
	got, err := h.ExpandAncestors(99)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty set, got %v", got)
	}
}

func TestExpandTerminatesOnCycle(t *testing.T) {
	h := NewHierarchy([]HierarchyEdge{
		{ParentRoleID: 1, ChildRoleID: 2},
		{ParentRoleID: 2, ChildRoleID: 3},
		{ParentRoleID: 3, ChildRoleID: 1},
	})

	got, err := h.ExpandAncestors(1)
	if !errors.Is(err, ErrHierarchyCorrupted) {
		t.Fatalf("expected ErrHierarchyCorrupted, got %v", err)
	}
	// Partial results remain available for degrade-mode callers.
	for _, id := range []int64{2, 3} {
		if _, ok := got[id]; !ok {
			t.Fatalf("missing partial ancestor %d in %v", id, got)
		}
	}
}

func TestValidate(t *testing.T) {
	clean := NewHierarchy([]HierarchyEdge{
		{ParentRoleID: 1, ChildRoleID: 2},
		{ParentRoleID: 1, ChildRoleID: 3},
		{ParentRoleID: 3, ChildRoleID: 4},
	})
	if err := clean.Validate(); err != nil {
		t.Fatalf("expected clean DAG, got %v", err)
	}

	corrupted := NewHierarchy([]HierarchyEdge{
		{ParentRoleID: 1, ChildRoleID: 2},
		{ParentRoleID: 2, ChildRoleID: 3},
		{ParentRoleID: 3, ChildRoleID: 2},
	})
	if err := corrupted.Validate(); !errors.Is(err, ErrHierarchyCorrupted) {
		t.Fatalf("expected ErrHierarchyCorrupted, got %v", err)
	}
}

func TestWouldCreateCycle(t *testing.T) {
	h := NewHierarchy([]HierarchyEdge{
		{ParentRoleID: 1, ChildRoleID: 2},
		{ParentRoleID: 2, ChildRoleID: 3},
	})

	if !h.WouldCreateCycle(5, 5) {
		t.Fatalf("self edge must be rejected")
	}
	if !h.WouldCreateCycle(3, 1) {
		t.Fatalf("edge 3->1 closes the 1->2->3 path and must be rejected")
	}
	if h.WouldCreateCycle(1, 3) {
		t.Fatalf("edge 1->3 keeps the graph acyclic")
	}
	if h.WouldCreateCycle(4, 1) {
		t.Fatalf("edge from a fresh role keeps the graph acyclic")
	}
}

// Every edge approved by WouldCreateCycle must keep the graph acyclic,
// regardless of insertion order.
func TestWouldCreateCycleRandomInsertions(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	const (
		trials = 200
		roles  = 10
		steps  = 40
	)
	for trial := 0; trial < trials; trial++ {
		var edges []HierarchyEdge
		for step := 0; step < steps; step++ {
			parent := rng.Int63n(roles) + 1
			child := rng.Int63n(roles) + 1
			h := NewHierarchy(edges)
			if h.WouldCreateCycle(parent, child) {
				continue
			}
			edges = append(edges, HierarchyEdge{ParentRoleID: parent, ChildRoleID: child})
			if err := NewHierarchy(edges).Validate(); err != nil {
				t.Fatalf("trial %d: cycle after approved insertion %d->%d: %v (edges %v)",
					trial, parent, child, err, edges)
			}
		}
	}
}
