package tree

import "conntree/internal/domain"

// Snapshot returns a deep copy of the arena. Open-session counts are carried
// over so persistence can derive reconnect flags from them.
func (store *Store) Snapshot() domain.TreeIndex {
	nodes := make(map[string]*domain.Node, len(store.index.Nodes))
	for id, node := range store.index.Nodes {
		clone := copyNode(node)
		clone.SetOpenSessionCount(node.OpenSessionCount())
		nodes[id] = clone
	}
	return domain.TreeIndex{
		Nodes:  nodes,
		RootID: store.index.RootID,
	}
}
