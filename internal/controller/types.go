package controller

import (
	"errors"
	"fmt"

	"conntree/internal/domain"
	"conntree/internal/gate"
	"conntree/internal/services"
)

var (
	ErrActionDisabled = errors.New("action not available for selection")
	ErrCancelled      = errors.New("cancelled")
	ErrNoCollaborator = errors.New("collaborator not configured")
)

type Persistence interface {
	SaveAsync()
}

type Notifier interface {
	NodeChanged(event Event)
}

type NotifierFunc func(event Event)

func (fn NotifierFunc) NodeChanged(event Event) {
	fn(event)
}

type EventKind int

const (
	EventAdded EventKind = iota
	EventRemoved
	EventRenamed
	EventReordered
	EventReparented
	EventSessions
	EventEdited
	EventImported
)

func (kind EventKind) String() string {
	switch kind {
	case EventAdded:
		return "added"
	case EventRemoved:
		return "removed"
	case EventRenamed:
		return "renamed"
	case EventReordered:
		return "reordered"
	case EventReparented:
		return "reparented"
	case EventSessions:
		return "sessions"
	case EventEdited:
		return "edited"
	case EventImported:
		return "imported"
	default:
		return "unknown"
	}
}

// Event names the node that changed and the container it now lives in.
// For EventRemoved ParentID is the former parent.
type Event struct {
	Kind     EventKind
	NodeID   string
	ParentID string
}

type DeleteKind int

const (
	DeleteConnection DeleteKind = iota
	DeleteEmptyFolder
	DeleteFolder
)

type DeletePrompt struct {
	Kind   DeleteKind
	NodeID string
	Name   string
	Text   string
}

type Confirmer interface {
	Confirm(prompt DeletePrompt) bool
}

type ConfirmFunc func(prompt DeletePrompt) bool

func (fn ConfirmFunc) Confirm(prompt DeletePrompt) bool {
	return fn(prompt)
}

type DropPosition int

const (
	DropOnto DropPosition = iota
	DropBefore
	DropAfter
)

// Settings are the reconnect preferences read at startup.
type Settings struct {
	OpenFromLastSession bool
	NoReconnect         bool
}

// TransferRequest prefills a file transfer dialog for an SSH endpoint.
type TransferRequest struct {
	NodeID   string
	Name     string
	Protocol domain.Protocol
	Hostname string
	Username string
	Password string
	Port     int
}

// Command is one gate action applied to a node. Only the fields the action
// needs are read.
type Command struct {
	Action    gate.ActionID
	NodeID    string
	Name      string
	Order     domain.SortOrder
	Options   services.ConnectOptions
	Tool      services.ExternalTool
	Confirmer Confirmer
}

type Result struct {
	Node     *domain.Node
	Transfer *TransferRequest
}

func disabled(action gate.ActionID, node *domain.Node) error {
	return fmt.Errorf("%s on %s %q: %w", action, node.Kind, node.Name, ErrActionDisabled)
}
