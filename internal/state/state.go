package state

import (
	"conntree/internal/domain"
	"conntree/internal/tree"
)

type Preferences struct {
	Theme        string
	SwitchToOpen bool
}

// State is the view state over the tree: which row is selected, what is cut
// for pasting and which match search last jumped to.
type State struct {
	Store       *tree.Store
	Cursor      int
	Prefs       Preferences
	KeyBindings map[string]string
	SearchQuery string
	CutID       string
}

func NewState(store *tree.Store, prefs Preferences, bindings map[string]string) *State {
	return &State{
		Store:       store,
		Cursor:      0,
		Prefs:       prefs,
		KeyBindings: ensureBindings(bindings),
	}
}

func ensureBindings(bindings map[string]string) map[string]string {
	if bindings == nil {
		return map[string]string{}
	}
	return bindings
}

type VisibleNode struct {
	Node  *domain.Node
	Depth int
}

// VisibleNodes flattens the tree following the nodes' Expanded flags.
func (appState *State) VisibleNodes() []VisibleNode {
	root := appState.Store.Root()
	if root == nil {
		return nil
	}
	visible := make([]VisibleNode, 0, appState.Store.Len())
	appState.appendNode(&visible, root, 0)
	return visible
}

func (appState *State) appendNode(visible *[]VisibleNode, node *domain.Node, depth int) {
	*visible = append(*visible, VisibleNode{Node: node, Depth: depth})
	if !node.Kind.IsContainer() || !node.Expanded {
		return
	}
	for _, child := range appState.Store.Children(node.ID) {
		appState.appendNode(visible, child, depth+1)
	}
}

func (appState *State) CurrentNode() *domain.Node {
	visible := appState.VisibleNodes()
	if len(visible) == 0 {
		return nil
	}
	appState.Cursor = clamp(appState.Cursor, 0, len(visible)-1)
	return visible[appState.Cursor].Node
}

// CurrentID is the selected ConstantID, or "" for an empty view.
func (appState *State) CurrentID() string {
	if node := appState.CurrentNode(); node != nil {
		return node.ID
	}
	return ""
}

func (appState *State) MoveCursor(delta int) {
	visible := appState.VisibleNodes()
	if len(visible) == 0 {
		appState.Cursor = 0
		return
	}
	appState.Cursor = clamp(appState.Cursor+delta, 0, len(visible)-1)
}

// Select moves the cursor to id, expanding every collapsed ancestor first.
func (appState *State) Select(id string) bool {
	if _, ok := appState.Store.Node(id); !ok {
		return false
	}
	for _, ancestor := range appState.Store.Ancestors(id) {
		_ = appState.Store.SetExpanded(ancestor.ID, true)
	}
	for index, row := range appState.VisibleNodes() {
		if row.Node.ID == id {
			appState.Cursor = index
			return true
		}
	}
	return false
}

// Toggle flips a container's expanded flag and reports the new value.
func (appState *State) Toggle(id string) bool {
	node, ok := appState.Store.Node(id)
	if !ok || !node.CanExpand() {
		return false
	}
	_ = appState.Store.SetExpanded(id, !node.Expanded)
	return node.Expanded
}

func (appState *State) Expand(id string) bool {
	node, ok := appState.Store.Node(id)
	if !ok || !node.CanExpand() || node.Expanded {
		return false
	}
	_ = appState.Store.SetExpanded(id, true)
	return true
}

// Collapse collapses an expanded container, or moves to the parent when the
// selection is a leaf or already collapsed.
func (appState *State) Collapse(id string) {
	node, ok := appState.Store.Node(id)
	if !ok {
		return
	}
	if node.Kind.IsContainer() && node.Expanded && node.Kind != domain.KindRoot {
		_ = appState.Store.SetExpanded(id, false)
		return
	}
	if node.ParentID != "" {
		appState.Select(node.ParentID)
	}
}

func (appState *State) Cut(id string) bool {
	node, ok := appState.Store.Node(id)
	if !ok || (node.Kind != domain.KindConnection && node.Kind != domain.KindContainer) {
		return false
	}
	appState.CutID = id
	return true
}

// TakeCut returns the cut node ID and clears it. Deleted nodes yield "".
func (appState *State) TakeCut() string {
	id := appState.CutID
	appState.CutID = ""
	if _, ok := appState.Store.Node(id); !ok {
		return ""
	}
	return id
}

func clamp(value, low, high int) int {
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}
