package tree

import (
	"fmt"

	"conntree/internal/domain"
)

// Validate checks the structural invariants: a single parentless root, every
// back-reference matching the container that lists the node exactly once, and
// every node reachable from the root without cycles.
func (store *Store) Validate() error {
	root, ok := store.index.Nodes[store.index.RootID]
	if !ok {
		return fmt.Errorf("root %q: %w", store.index.RootID, domain.ErrNotFound)
	}
	if root.Kind != domain.KindRoot || root.ParentID != "" {
		return fmt.Errorf("root %q must be a parentless root node: %w", root.ID, domain.ErrInvalidTarget)
	}

	for id, node := range store.index.Nodes {
		if node.ID != id {
			return fmt.Errorf("node %q indexed under %q: %w", node.ID, id, domain.ErrInvalidTarget)
		}
		if node.Kind == domain.KindRoot && id != store.index.RootID {
			return fmt.Errorf("second root %q: %w", id, domain.ErrInvalidTarget)
		}
		if id == store.index.RootID {
			continue
		}
		parent, ok := store.index.Nodes[node.ParentID]
		if !ok {
			return fmt.Errorf("parent %q of %q: %w", node.ParentID, id, domain.ErrNotFound)
		}
		if !parent.Kind.IsContainer() {
			return fmt.Errorf("parent %q of %q is a leaf: %w", parent.ID, id, domain.ErrInvalidTarget)
		}
		if count := countID(parent.ChildrenIDs, id); count != 1 {
			return fmt.Errorf("node %q listed %d times under %q: %w", id, count, parent.ID, domain.ErrInvalidTarget)
		}
	}

	visited := make(map[string]bool, len(store.index.Nodes))
	if err := store.visit(root, visited); err != nil {
		return err
	}
	if len(visited) != len(store.index.Nodes) {
		return fmt.Errorf("%d nodes unreachable from root: %w", len(store.index.Nodes)-len(visited), domain.ErrInvalidTarget)
	}
	return nil
}

func (store *Store) visit(node *domain.Node, visited map[string]bool) error {
	if visited[node.ID] {
		return fmt.Errorf("node %q reached twice: %w", node.ID, domain.ErrCycleDetected)
	}
	visited[node.ID] = true
	for _, childID := range node.ChildrenIDs {
		child, ok := store.index.Nodes[childID]
		if !ok {
			return fmt.Errorf("child %q of %q: %w", childID, node.ID, domain.ErrNotFound)
		}
		if child.ParentID != node.ID {
			return fmt.Errorf("child %q points at parent %q, listed under %q: %w", childID, child.ParentID, node.ID, domain.ErrInvalidTarget)
		}
		if err := store.visit(child, visited); err != nil {
			return err
		}
	}
	return nil
}

func countID(ids []string, id string) int {
	count := 0
	for _, candidate := range ids {
		if candidate == id {
			count++
		}
	}
	return count
}
