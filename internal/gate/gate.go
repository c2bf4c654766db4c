// Package gate computes which tree actions are valid for the selected node.
package gate

import (
	"strings"

	"conntree/internal/domain"
	"conntree/internal/tree"
)

type ActionID int

const (
	Connect ActionID = iota
	ConnectWithOptions
	ConnectConsoleSession
	ConnectNoConsoleSession
	ConnectFullscreen
	ConnectNoCredentials
	ConnectChoosePanel
	Disconnect
	TransferFile
	Sort
	ExternalApps
	Duplicate
	Rename
	Delete
	MoveUp
	MoveDown
	AddConnection
	AddFolder

	actionCount
)

var actionNames = [actionCount]string{
	Connect:                 "connect",
	ConnectWithOptions:      "connect-with-options",
	ConnectConsoleSession:   "connect-console",
	ConnectNoConsoleSession: "connect-no-console",
	ConnectFullscreen:       "connect-fullscreen",
	ConnectNoCredentials:    "connect-no-credentials",
	ConnectChoosePanel:      "connect-choose-panel",
	Disconnect:              "disconnect",
	TransferFile:            "transfer-file",
	Sort:                    "sort",
	ExternalApps:            "external-apps",
	Duplicate:               "duplicate",
	Rename:                  "rename",
	Delete:                  "delete",
	MoveUp:                  "move-up",
	MoveDown:                "move-down",
	AddConnection:           "add-connection",
	AddFolder:               "add-folder",
}

func (action ActionID) String() string {
	if action < 0 || action >= actionCount {
		return "unknown"
	}
	return actionNames[action]
}

// ConnectOptions are the sub-items of ConnectWithOptions.
var ConnectOptions = []ActionID{
	ConnectConsoleSession,
	ConnectNoConsoleSession,
	ConnectFullscreen,
	ConnectNoCredentials,
	ConnectChoosePanel,
}

// Set is a bit set of actions. The zero value is empty.
type Set uint32

func Of(actions ...ActionID) Set {
	var set Set
	for _, action := range actions {
		set = set.With(action)
	}
	return set
}

func (set Set) Has(action ActionID) bool {
	if action < 0 || action >= actionCount {
		return false
	}
	return set&(1<<uint(action)) != 0
}

func (set Set) With(action ActionID) Set {
	if action < 0 || action >= actionCount {
		return set
	}
	return set | 1<<uint(action)
}

func (set Set) Without(action ActionID) Set {
	if action < 0 || action >= actionCount {
		return set
	}
	return set &^ (1 << uint(action))
}

func (set Set) withIf(action ActionID, enabled bool) Set {
	if enabled {
		return set.With(action)
	}
	return set
}

// Actions lists the members in declaration order.
func (set Set) Actions() []ActionID {
	var actions []ActionID
	for action := ActionID(0); action < actionCount; action++ {
		if set.Has(action) {
			actions = append(actions, action)
		}
	}
	return actions
}

func (set Set) String() string {
	parts := make([]string, 0, actionCount)
	for _, action := range set.Actions() {
		parts = append(parts, action.String())
	}
	return "{" + strings.Join(parts, ",") + "}"
}

var structural = Of(AddConnection, AddFolder, Duplicate, Rename, Delete, Sort, MoveUp, MoveDown)

// Enabled returns the actions available for node. openSessions is the live
// session count of the node's subtree and must be read fresh by the caller.
// A nil node or an unknown kind yields the empty set.
func Enabled(node *domain.Node, openSessions int) Set {
	if node == nil {
		return 0
	}
	switch node.Kind {
	case domain.KindRootPuttySessions:
		return Of(Rename)
	case domain.KindRoot:
		return Of(Rename, AddConnection, AddFolder)
	case domain.KindContainer:
		return structural.withIf(Disconnect, openSessions > 0)
	case domain.KindPuttySession:
		return Of(Connect, ExternalApps).
			withIf(Disconnect, openSessions > 0).
			withIf(TransferFile, node.Protocol.IsSSH()).
			withIf(ConnectWithOptions, node.Protocol.Known()).
			withIf(ConnectNoConsoleSession, node.Protocol.Known()).
			withIf(ConnectNoCredentials, node.Protocol.Known()).
			withIf(ConnectChoosePanel, node.Protocol.Known())
	case domain.KindConnection:
		return connectionActions(node.Protocol, openSessions)
	default:
		return 0
	}
}

func connectionActions(protocol domain.Protocol, openSessions int) Set {
	set := structural.With(Connect).With(ExternalApps).withIf(Disconnect, openSessions > 0)
	if !protocol.Known() {
		return set
	}
	rdpLike := protocol == domain.ProtocolRDP || protocol == domain.ProtocolICA
	return set.
		With(ConnectWithOptions).
		With(ConnectNoConsoleSession).
		With(ConnectChoosePanel).
		withIf(TransferFile, protocol.IsSSH()).
		withIf(ConnectFullscreen, rdpLike).
		withIf(ConnectConsoleSession, rdpLike).
		withIf(ConnectNoCredentials, protocol != domain.ProtocolIntApp)
}

// ForNode evaluates the gate for id, re-reading the subtree session count.
func ForNode(store *tree.Store, id string) Set {
	node, ok := store.Node(id)
	if !ok {
		return 0
	}
	return Enabled(node, store.OpenSessionTotal(id))
}
