package tree

import "conntree/internal/domain"

// EnsurePuttyRoot returns the RootPuttySessions container, creating it as the
// last child of the root when missing.
func (store *Store) EnsurePuttyRoot() *domain.Node {
	if puttyRoot, ok := store.PuttyRoot(); ok {
		return puttyRoot
	}
	puttyRoot := &domain.Node{
		ID:   store.newID(),
		Name: DefaultPuttyRootName,
		Kind: domain.KindRootPuttySessions,
	}
	root := store.Root()
	store.attach(puttyRoot, root, len(root.ChildrenIDs))
	return puttyRoot
}

// ReplacePuttySessions swaps the imported session list. Sessions whose name
// is unchanged keep their ConstantID and live session count. An empty list
// removes the PuTTY root and returns nil.
func (store *Store) ReplacePuttySessions(sessions []domain.PuttySessionInfo) *domain.Node {
	if len(sessions) == 0 {
		store.removePuttyRoot()
		return nil
	}
	puttyRoot := store.EnsurePuttyRoot()
	existing := make(map[string]*domain.Node, len(puttyRoot.ChildrenIDs))
	for _, child := range store.Children(puttyRoot.ID) {
		existing[child.Name] = child
	}

	ids := make([]string, 0, len(sessions))
	for _, session := range sessions {
		node, ok := existing[session.Name]
		if ok {
			delete(existing, session.Name)
		} else {
			node = &domain.Node{
				ID:       store.newID(),
				Name:     session.Name,
				Kind:     domain.KindPuttySession,
				ParentID: puttyRoot.ID,
			}
			store.index.Nodes[node.ID] = node
		}
		node.Hostname = session.Hostname
		node.Username = session.Username
		node.Port = session.Port
		node.Protocol = session.Protocol
		ids = append(ids, node.ID)
	}
	for _, stale := range existing {
		store.destroy(stale)
	}
	puttyRoot.ChildrenIDs = ids
	return puttyRoot
}

func (store *Store) removePuttyRoot() {
	puttyRoot, ok := store.PuttyRoot()
	if !ok {
		return
	}
	if root := store.Root(); root != nil {
		root.ChildrenIDs = removeID(root.ChildrenIDs, puttyRoot.ID)
	}
	store.destroy(puttyRoot)
}
