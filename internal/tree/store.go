// Package tree owns the connection tree: an arena of nodes keyed by
// ConstantID in which children are owned through ordered ID sequences and
// parents are referenced by ID only.
//
// Every mutation validates its preconditions before touching the arena, so a
// failed call leaves the tree exactly as it was.
package tree

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"conntree/internal/domain"
)

const (
	DefaultRootName           = "Connections"
	DefaultPuttyRootName      = "PuTTY Sessions"
	DefaultConnectionName     = "New Connection"
	DefaultFolderName         = "New Folder"
	DefaultConnectionProtocol = domain.ProtocolRDP
)

type Store struct {
	index domain.TreeIndex
	newID func() string
}

type Option func(*Store)

// WithIDGenerator replaces the ConstantID source. Generated IDs must be unique.
func WithIDGenerator(generate func() string) Option {
	return func(store *Store) {
		store.newID = generate
	}
}

func New(opts ...Option) *Store {
	store := newStore(opts)
	root := &domain.Node{
		ID:       store.newID(),
		Name:     DefaultRootName,
		Kind:     domain.KindRoot,
		Expanded: true,
	}
	store.index.RootID = root.ID
	store.index.Nodes[root.ID] = root
	return store
}

// FromIndex adopts a loaded arena. The index is validated first and the root
// is force-expanded.
func FromIndex(index domain.TreeIndex, opts ...Option) (*Store, error) {
	store := newStore(opts)
	if index.Nodes != nil {
		store.index.Nodes = index.Nodes
	}
	store.index.RootID = index.RootID
	if err := store.Validate(); err != nil {
		return nil, err
	}
	store.Root().Expanded = true
	return store, nil
}

func newStore(opts []Option) *Store {
	store := &Store{
		index: domain.TreeIndex{Nodes: make(map[string]*domain.Node)},
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (store *Store) RootID() string {
	return store.index.RootID
}

func (store *Store) Root() *domain.Node {
	return store.index.Nodes[store.index.RootID]
}

func (store *Store) Len() int {
	return len(store.index.Nodes)
}

func (store *Store) Node(id string) (*domain.Node, bool) {
	if id == "" {
		return nil, false
	}
	node, ok := store.index.Nodes[id]
	return node, ok
}

func (store *Store) Parent(id string) (*domain.Node, bool) {
	node, ok := store.Node(id)
	if !ok {
		return nil, false
	}
	return store.Node(node.ParentID)
}

func (store *Store) Children(id string) []*domain.Node {
	node, ok := store.Node(id)
	if !ok {
		return nil
	}
	children := make([]*domain.Node, 0, len(node.ChildrenIDs))
	for _, childID := range node.ChildrenIDs {
		if child, ok := store.index.Nodes[childID]; ok {
			children = append(children, child)
		}
	}
	return children
}

// Ancestors returns the chain from the node's parent up to the root.
func (store *Store) Ancestors(id string) []*domain.Node {
	node, ok := store.Node(id)
	if !ok {
		return nil
	}
	var chain []*domain.Node
	for steps := 0; node.ParentID != "" && steps < len(store.index.Nodes); steps++ {
		parent, ok := store.index.Nodes[node.ParentID]
		if !ok {
			break
		}
		chain = append(chain, parent)
		node = parent
	}
	return chain
}

// PuttyRoot returns the RootPuttySessions container if one exists.
func (store *Store) PuttyRoot() (*domain.Node, bool) {
	for _, child := range store.Children(store.index.RootID) {
		if child.Kind == domain.KindRootPuttySessions {
			return child, true
		}
	}
	return nil, false
}

func (store *Store) AddConnection(targetID string) (*domain.Node, error) {
	parent, err := store.insertionParent(targetID)
	if err != nil {
		return nil, fmt.Errorf("add connection: %w", err)
	}
	node := &domain.Node{
		ID:       store.newID(),
		Name:     DefaultConnectionName,
		Kind:     domain.KindConnection,
		Protocol: DefaultConnectionProtocol,
		Port:     DefaultConnectionProtocol.DefaultPort(),
	}
	store.attach(node, parent, len(parent.ChildrenIDs))
	return node, nil
}

func (store *Store) AddFolder(targetID string) (*domain.Node, error) {
	parent, err := store.insertionParent(targetID)
	if err != nil {
		return nil, fmt.Errorf("add folder: %w", err)
	}
	node := &domain.Node{
		ID:   store.newID(),
		Name: DefaultFolderName,
		Kind: domain.KindContainer,
	}
	store.attach(node, parent, len(parent.ChildrenIDs))
	return node, nil
}

// insertionParent resolves "add as child of a container, or as sibling of a
// leaf".
func (store *Store) insertionParent(targetID string) (*domain.Node, error) {
	if targetID == "" {
		return nil, fmt.Errorf("no target selected: %w", domain.ErrInvalidTarget)
	}
	target, err := store.lookup(targetID)
	if err != nil {
		return nil, err
	}
	switch target.Kind {
	case domain.KindRoot, domain.KindContainer:
		return target, nil
	case domain.KindConnection:
		parent, ok := store.Node(target.ParentID)
		if !ok {
			return nil, fmt.Errorf("%q has no parent: %w", target.Name, domain.ErrInvalidTarget)
		}
		return parent, nil
	default:
		return nil, kindError(target)
	}
}

func (store *Store) Duplicate(id string) (*domain.Node, error) {
	node, err := store.lookup(id)
	if err != nil {
		return nil, fmt.Errorf("duplicate: %w", err)
	}
	if node.Kind != domain.KindConnection && node.Kind != domain.KindContainer {
		return nil, fmt.Errorf("duplicate: %w", kindError(node))
	}
	parent, ok := store.Node(node.ParentID)
	if !ok {
		return nil, fmt.Errorf("duplicate %q: parent missing: %w", node.Name, domain.ErrNotFound)
	}

	created := make([]*domain.Node, 0, 1)
	clone := store.cloneSubtree(node, parent.ID, &created)
	for _, item := range created {
		store.index.Nodes[item.ID] = item
	}
	position := indexOf(parent.ChildrenIDs, node.ID) + 1
	parent.ChildrenIDs = insertAt(parent.ChildrenIDs, position, clone.ID)
	return clone, nil
}

func (store *Store) cloneSubtree(source *domain.Node, parentID string, created *[]*domain.Node) *domain.Node {
	clone := copyNode(source)
	clone.ID = store.newID()
	clone.ParentID = parentID
	clone.ChildrenIDs = nil
	clone.PleaseConnect = false
	*created = append(*created, clone)
	for _, childID := range source.ChildrenIDs {
		child, ok := store.index.Nodes[childID]
		if !ok {
			continue
		}
		childClone := store.cloneSubtree(child, clone.ID, created)
		clone.ChildrenIDs = append(clone.ChildrenIDs, childClone.ID)
	}
	return clone
}

func (store *Store) Rename(id, name string) error {
	node, err := store.lookup(id)
	if err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	if node.Kind != domain.KindConnection && node.Kind != domain.KindContainer {
		return fmt.Errorf("rename: %w", kindError(node))
	}
	if node.Name == name {
		return nil
	}
	node.Name = name
	return nil
}

// Delete removes the node and, for containers, every descendant.
func (store *Store) Delete(id string) error {
	node, err := store.lookup(id)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	if node.Kind == domain.KindRoot || node.Kind == domain.KindRootPuttySessions {
		return fmt.Errorf("delete: %w", kindError(node))
	}
	parent, ok := store.Node(node.ParentID)
	if !ok {
		return fmt.Errorf("delete %q: parent missing: %w", node.Name, domain.ErrNotFound)
	}
	parent.ChildrenIDs = removeID(parent.ChildrenIDs, node.ID)
	store.destroy(node)
	return nil
}

func (store *Store) destroy(node *domain.Node) {
	for _, childID := range node.ChildrenIDs {
		if child, ok := store.index.Nodes[childID]; ok {
			store.destroy(child)
		}
	}
	delete(store.index.Nodes, node.ID)
	node.ParentID = ""
	node.ChildrenIDs = nil
}

func (store *Store) PromoteChild(id string) error {
	return store.shift(id, -1)
}

func (store *Store) DemoteChild(id string) error {
	return store.shift(id, 1)
}

func (store *Store) shift(id string, delta int) error {
	node, err := store.lookup(id)
	if err != nil {
		return fmt.Errorf("reorder: %w", err)
	}
	if node.Kind != domain.KindConnection && node.Kind != domain.KindContainer {
		return fmt.Errorf("reorder: %w", kindError(node))
	}
	parent, ok := store.Node(node.ParentID)
	if !ok {
		return fmt.Errorf("reorder %q: parent missing: %w", node.Name, domain.ErrNotFound)
	}
	position := indexOf(parent.ChildrenIDs, node.ID)
	target := position + delta
	if position < 0 || target < 0 || target >= len(parent.ChildrenIDs) {
		return nil
	}
	parent.ChildrenIDs[position], parent.ChildrenIDs[target] = parent.ChildrenIDs[target], parent.ChildrenIDs[position]
	return nil
}

// Reparent moves the node into newParentID, at the end when beforeID is empty
// or immediately before beforeID otherwise.
func (store *Store) Reparent(id, newParentID, beforeID string) error {
	node, err := store.lookup(id)
	if err != nil {
		return fmt.Errorf("move: %w", err)
	}
	if node.Kind == domain.KindRoot {
		return fmt.Errorf("move: %w", kindError(node))
	}
	newParent, err := store.lookup(newParentID)
	if err != nil {
		return fmt.Errorf("move: %w", err)
	}
	if newParent.ID == node.ID || store.IsDescendant(newParent.ID, node.ID) {
		return fmt.Errorf("move %q into %q: %w", node.Name, newParent.Name, domain.ErrCycleDetected)
	}
	if node.Kind == domain.KindPuttySession || node.Kind == domain.KindRootPuttySessions {
		return fmt.Errorf("move: %w", kindError(node))
	}
	if newParent.Kind != domain.KindRoot && newParent.Kind != domain.KindContainer {
		return fmt.Errorf("move into %q: %w", newParent.Name, kindError(newParent))
	}
	if beforeID != "" {
		before, err := store.lookup(beforeID)
		if err != nil {
			return fmt.Errorf("move: %w", err)
		}
		if before.ParentID != newParent.ID {
			return fmt.Errorf("move: %q is not a child of %q: %w", before.Name, newParent.Name, domain.ErrInvalidTarget)
		}
		if before.ID == node.ID {
			return nil
		}
	}
	oldParent, ok := store.Node(node.ParentID)
	if !ok {
		return fmt.Errorf("move %q: parent missing: %w", node.Name, domain.ErrNotFound)
	}

	oldParent.ChildrenIDs = removeID(oldParent.ChildrenIDs, node.ID)
	position := len(newParent.ChildrenIDs)
	if beforeID != "" {
		position = indexOf(newParent.ChildrenIDs, beforeID)
	}
	store.attach(node, newParent, position)
	return nil
}

// IsDescendant reports whether candidateID lies strictly below ancestorID.
func (store *Store) IsDescendant(candidateID, ancestorID string) bool {
	for _, ancestor := range store.Ancestors(candidateID) {
		if ancestor.ID == ancestorID {
			return true
		}
	}
	return false
}

// RecursiveChildList returns every descendant in depth-first pre-order.
func (store *Store) RecursiveChildList(id string) ([]*domain.Node, error) {
	node, err := store.lookup(id)
	if err != nil {
		return nil, err
	}
	list := make([]*domain.Node, 0, len(store.index.Nodes))
	store.appendDescendants(&list, node)
	return list, nil
}

func (store *Store) appendDescendants(list *[]*domain.Node, node *domain.Node) {
	for _, childID := range node.ChildrenIDs {
		child, ok := store.index.Nodes[childID]
		if !ok {
			continue
		}
		*list = append(*list, child)
		store.appendDescendants(list, child)
	}
}

// SortChildren orders the container's subtree by name, case-insensitively.
func (store *Store) SortChildren(id string, order domain.SortOrder) error {
	node, err := store.lookup(id)
	if err != nil {
		return fmt.Errorf("sort: %w", err)
	}
	if !node.Kind.IsContainer() {
		return fmt.Errorf("sort: %w", kindError(node))
	}
	store.sortRecursive(node, order)
	return nil
}

func (store *Store) sortRecursive(node *domain.Node, order domain.SortOrder) {
	children := store.Children(node.ID)
	sort.SliceStable(children, func(i, j int) bool {
		left := strings.ToLower(children[i].Name)
		right := strings.ToLower(children[j].Name)
		if order == domain.SortDescending {
			return left > right
		}
		return left < right
	})
	node.ChildrenIDs = node.ChildrenIDs[:0]
	for _, child := range children {
		node.ChildrenIDs = append(node.ChildrenIDs, child.ID)
		if child.Kind.IsContainer() {
			store.sortRecursive(child, order)
		}
	}
}

// OpenSessionTotal sums the live session counts of the node and all its
// descendants. Counts are re-read on every call.
func (store *Store) OpenSessionTotal(id string) int {
	node, ok := store.Node(id)
	if !ok {
		return 0
	}
	total := node.OpenSessionCount()
	for _, childID := range node.ChildrenIDs {
		total += store.OpenSessionTotal(childID)
	}
	return total
}

// PleaseConnectLeaves lists the leaves flagged for reconnection, in tree order.
func (store *Store) PleaseConnectLeaves() []*domain.Node {
	all, err := store.RecursiveChildList(store.index.RootID)
	if err != nil {
		return nil
	}
	var leaves []*domain.Node
	for _, node := range all {
		if node.Kind.IsLeaf() && node.PleaseConnect {
			leaves = append(leaves, node)
		}
	}
	return leaves
}

func (store *Store) SetExpanded(id string, expanded bool) error {
	node, err := store.lookup(id)
	if err != nil {
		return err
	}
	if !node.Kind.IsContainer() {
		return nil
	}
	if node.Kind == domain.KindRoot {
		expanded = true
	}
	node.Expanded = expanded
	return nil
}

func (store *Store) ExpandAll() {
	store.setAllExpanded(true)
}

// CollapseAll collapses every container except the root.
func (store *Store) CollapseAll() {
	store.setAllExpanded(false)
}

func (store *Store) setAllExpanded(expanded bool) {
	for _, node := range store.index.Nodes {
		if node.Kind.IsContainer() {
			node.Expanded = expanded || node.Kind == domain.KindRoot
		}
	}
}

func (store *Store) lookup(id string) (*domain.Node, error) {
	node, ok := store.Node(id)
	if !ok {
		return nil, fmt.Errorf("id %q: %w", id, domain.ErrNotFound)
	}
	return node, nil
}

func (store *Store) attach(node, parent *domain.Node, position int) {
	node.ParentID = parent.ID
	parent.ChildrenIDs = insertAt(parent.ChildrenIDs, position, node.ID)
	store.index.Nodes[node.ID] = node
}

func kindError(node *domain.Node) error {
	return fmt.Errorf("%s %q: %w", node.Kind, node.Name, domain.ErrInvalidTarget)
}

func copyNode(source *domain.Node) *domain.Node {
	return &domain.Node{
		ID:            source.ID,
		Name:          source.Name,
		Description:   source.Description,
		Kind:          source.Kind,
		ParentID:      source.ParentID,
		ChildrenIDs:   append([]string(nil), source.ChildrenIDs...),
		Expanded:      source.Expanded,
		Protocol:      source.Protocol,
		Hostname:      source.Hostname,
		Username:      source.Username,
		Password:      source.Password,
		Port:          source.Port,
		PleaseConnect: source.PleaseConnect,
	}
}

func indexOf(ids []string, id string) int {
	for index, candidate := range ids {
		if candidate == id {
			return index
		}
	}
	return -1
}

func insertAt(ids []string, position int, id string) []string {
	if position < 0 || position > len(ids) {
		position = len(ids)
	}
	ids = append(ids, "")
	copy(ids[position+1:], ids[position:])
	ids[position] = id
	return ids
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, candidate := range ids {
		if candidate != id {
			out = append(out, candidate)
		}
	}
	return out
}
