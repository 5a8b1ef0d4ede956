package access

import "fmt"

// Direction selects which way access flows through the role hierarchy.
// The choice is a deployment-time policy, not a per-call option.
type Direction int

const (
	// DirectionAncestors makes a role inherit access from its ancestor
	// roles (child -> parent traversal).
	DirectionAncestors Direction = iota
	// DirectionDescendants makes access flow downward to subordinate
	// roles (parent -> child traversal), department-style delegation.
	DirectionDescendants
)

// ParseDirection maps a configuration string onto a Direction.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "", "ancestors":
		return DirectionAncestors, nil
	case "descendants":
		return DirectionDescendants, nil
	default:
		return DirectionAncestors, fmt.Errorf("access: unknown inherit direction %q", s)
	}
}

// Hierarchy is an in-memory adjacency view over the role hierarchy edge
// set. It is built once per resolution call from a fetched snapshot and
// is read-only afterwards.
type Hierarchy struct {
	parents  map[int64][]int64
	children map[int64][]int64
}

// NewHierarchy indexes the given edge set.
func NewHierarchy(edges []HierarchyEdge) *Hierarchy {
	h := &Hierarchy{
		parents:  make(map[int64][]int64, len(edges)),
		children: make(map[int64][]int64, len(edges)),
	}
	for _, e := range edges {
		h.parents[e.ChildRoleID] = append(h.parents[e.ChildRoleID], e.ParentRoleID)
		h.children[e.ParentRoleID] = append(h.children[e.ParentRoleID], e.ChildRoleID)
	}
	return h
}

// ExpandAncestors returns every role the given role inherits from,
// following child -> parent edges transitively. The role itself is
// excluded. When the stored graph contains a reachable cycle the
// traversal still terminates; the partial set is returned together with
// ErrHierarchyCorrupted.
func (h *Hierarchy) ExpandAncestors(roleID int64) (map[int64]struct{}, error) {
	return h.expand(h.parents, roleID)
}

// ExpandDescendants is the symmetric expansion following parent -> child
// edges, for deployments where access is delegated downward.
func (h *Hierarchy) ExpandDescendants(roleID int64) (map[int64]struct{}, error) {
	return h.expand(h.children, roleID)
}

// Expand resolves the applicable role set for one role under the given
// direction policy.
func (h *Hierarchy) Expand(dir Direction, roleID int64) (map[int64]struct{}, error) {
	if dir == DirectionDescendants {
		return h.ExpandDescendants(roleID)
	}
	return h.ExpandAncestors(roleID)
}

// WouldCreateCycle reports whether inserting the edge parentID -> childID
// would close a cycle in the current graph. That is the case when the two
// IDs are equal or when parentID is already reachable from childID going
// downward through existing edges.
func (h *Hierarchy) WouldCreateCycle(parentID, childID int64) bool {
	if parentID == childID {
		return true
	}
	visited := map[int64]struct{}{childID: {}}
	queue := []int64{childID}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		for _, next := range h.children[node] {
			if next == parentID {
				return true
			}
			if _, seen := visited[next]; seen {
				continue
			}
			visited[next] = struct{}{}
			queue = append(queue, next)
		}
	}
	return false
}

// Validate scans the whole edge set for cycles. It returns
// ErrHierarchyCorrupted when any cycle exists, nil otherwise.
func (h *Hierarchy) Validate() error {
	color := map[int64]int{}
	for node := range h.children {
		if color[node] != colorWhite {
			continue
		}
		if h.dfsCycle(node, color) {
			return ErrHierarchyCorrupted
		}
	}
	return nil
}

const (
	colorWhite = iota
	colorGray
	colorBlack
)

func (h *Hierarchy) dfsCycle(start int64, color map[int64]int) bool {
	type frame struct {
		node int64
		next int
	}
	corrupted := false
	color[start] = colorGray
	stack := []frame{{node: start}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		neighbors := h.children[top.node]
		if top.next < len(neighbors) {
			n := neighbors[top.next]
			top.next++
			switch color[n] {
			case colorGray:
				corrupted = true
			case colorWhite:
				color[n] = colorGray
				stack = append(stack, frame{node: n})
			}
			continue
		}
		color[top.node] = colorBlack
		stack = stack[:len(stack)-1]
	}
	return corrupted
}

// expand walks the adjacency map depth-first from start, tracking node
// colors so shared ancestry is counted once and cyclic data cannot loop.
func (h *Hierarchy) expand(adj map[int64][]int64, start int64) (map[int64]struct{}, error) {
	type frame struct {
		node int64
		next int
	}
	color := map[int64]int{start: colorGray}
	corrupted := false
	stack := []frame{{node: start}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		neighbors := adj[top.node]
		if top.next < len(neighbors) {
			n := neighbors[top.next]
			top.next++
			switch color[n] {
			case colorGray:
				corrupted = true
			case colorWhite:
				color[n] = colorGray
				stack = append(stack, frame{node: n})
			}
			continue
		}
		color[top.node] = colorBlack
		stack = stack[:len(stack)-1]
	}

	result := make(map[int64]struct{}, len(color)-1)
	for node := range color {
		if node != start {
			result[node] = struct{}{}
		}
	}
	if corrupted {
		return result, ErrHierarchyCorrupted
	}
	return result, nil
}
