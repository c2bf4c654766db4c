package domain

import "sync/atomic"

type NodeKind int

const (
	KindRoot NodeKind = iota
	KindContainer
	KindConnection
	KindPuttySession
	KindRootPuttySessions
)

func (kind NodeKind) String() string {
	switch kind {
	case KindRoot:
		return "root"
	case KindContainer:
		return "container"
	case KindConnection:
		return "connection"
	case KindPuttySession:
		return "putty-session"
	case KindRootPuttySessions:
		return "putty-sessions"
	default:
		return "unknown"
	}
}

func ParseNodeKind(value string) (NodeKind, bool) {
	for kind := KindRoot; kind <= KindRootPuttySessions; kind++ {
		if kind.String() == value {
			return kind, true
		}
	}
	return 0, false
}

// IsContainer reports whether nodes of this kind own a child sequence.
func (kind NodeKind) IsContainer() bool {
	switch kind {
	case KindRoot, KindContainer, KindRootPuttySessions:
		return true
	default:
		return false
	}
}

// IsLeaf reports whether nodes of this kind can hold sessions.
func (kind NodeKind) IsLeaf() bool {
	return kind == KindConnection || kind == KindPuttySession
}

// Node is one tree item. ParentID is a back-reference resolved through the
// owning TreeIndex; ownership flows only through ChildrenIDs.
type Node struct {
	ID            string
	Name          string
	Description   string
	Kind          NodeKind
	ParentID      string
	ChildrenIDs   []string
	Expanded      bool
	Protocol      Protocol
	Hostname      string
	Username      string
	Password      string
	Port          int
	PleaseConnect bool

	openSessions atomic.Int64
}

// OpenSessionCount is owned by the session manager and may change between
// reads from another goroutine.
func (node *Node) OpenSessionCount() int {
	return int(node.openSessions.Load())
}

func (node *Node) SetOpenSessionCount(count int) {
	if count < 0 {
		count = 0
	}
	node.openSessions.Store(int64(count))
}

// AddOpenSessions adjusts the count by delta, never going below zero, and
// returns the new value.
func (node *Node) AddOpenSessions(delta int) int {
	for {
		current := node.openSessions.Load()
		next := current + int64(delta)
		if next < 0 {
			next = 0
		}
		if node.openSessions.CompareAndSwap(current, next) {
			return int(next)
		}
	}
}

func (node *Node) CanExpand() bool {
	return node.Kind.IsContainer() && len(node.ChildrenIDs) > 0
}

type TreeIndex struct {
	Nodes  map[string]*Node
	RootID string
}

// PuttySessionInfo is one entry of an external PuTTY session list.
type PuttySessionInfo struct {
	Name     string
	Hostname string
	Username string
	Port     int
	Protocol Protocol
}
