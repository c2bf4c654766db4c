// Package controller sequences tree actions: it checks the action gate,
// applies the mutation to the store, then asks for a save and notifies the
// view. Failures are logged and returned as-is.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"conntree/internal/domain"
	"conntree/internal/gate"
	"conntree/internal/logging"
	"conntree/internal/services"
	"conntree/internal/tree"
)

type Controller struct {
	store        *tree.Store
	persistence  Persistence
	notifier     Notifier
	sessions     services.SessionManager
	launcher     services.Launcher
	switchToOpen bool
	logger       *slog.Logger
}

type Option func(*Controller)

func WithPersistence(persistence Persistence) Option {
	return func(controller *Controller) {
		controller.persistence = persistence
	}
}

func WithNotifier(notifier Notifier) Option {
	return func(controller *Controller) {
		controller.notifier = notifier
	}
}

func WithSessions(sessions services.SessionManager) Option {
	return func(controller *Controller) {
		controller.sessions = sessions
	}
}

func WithLauncher(launcher services.Launcher) Option {
	return func(controller *Controller) {
		controller.launcher = launcher
	}
}

// WithSwitchToOpen makes Connect focus an existing session instead of opening
// a second one.
func WithSwitchToOpen(enabled bool) Option {
	return func(controller *Controller) {
		controller.switchToOpen = enabled
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(controller *Controller) {
		controller.logger = logger
	}
}

func New(store *tree.Store, opts ...Option) *Controller {
	controller := &Controller{
		store:  store,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(controller)
	}
	return controller
}

func (controller *Controller) Store() *tree.Store {
	return controller.store
}

// SetNotifier replaces the notifier after construction, for views that are
// built after the controller.
func (controller *Controller) SetNotifier(notifier Notifier) {
	controller.notifier = notifier
}

// Enabled evaluates the gate for id with a fresh session count.
func (controller *Controller) Enabled(id string) gate.Set {
	return gate.ForNode(controller.store, id)
}

func (controller *Controller) Execute(ctx context.Context, cmd Command) (Result, error) {
	var (
		node *domain.Node
		err  error
	)
	switch cmd.Action {
	case gate.AddConnection:
		node, err = controller.AddConnection(cmd.NodeID)
	case gate.AddFolder:
		node, err = controller.AddFolder(cmd.NodeID)
	case gate.Duplicate:
		node, err = controller.Duplicate(cmd.NodeID)
	case gate.Rename:
		err = controller.Rename(cmd.NodeID, cmd.Name)
	case gate.Delete:
		err = controller.Delete(cmd.NodeID, cmd.Confirmer)
	case gate.MoveUp:
		err = controller.MoveUp(cmd.NodeID)
	case gate.MoveDown:
		err = controller.MoveDown(cmd.NodeID)
	case gate.Sort:
		err = controller.Sort(cmd.NodeID, cmd.Order)
	case gate.Connect:
		err = controller.Connect(cmd.NodeID, services.ConnectOptions{})
	case gate.ConnectWithOptions:
		err = controller.Connect(cmd.NodeID, cmd.Options)
	case gate.ConnectConsoleSession, gate.ConnectNoConsoleSession, gate.ConnectFullscreen,
		gate.ConnectNoCredentials, gate.ConnectChoosePanel:
		err = controller.connectWith(cmd.NodeID, cmd.Action, withOption(cmd.Options, cmd.Action))
	case gate.Disconnect:
		err = controller.Disconnect(cmd.NodeID)
	case gate.TransferFile:
		var transfer TransferRequest
		transfer, err = controller.TransferFile(cmd.NodeID)
		if err == nil {
			return Result{Transfer: &transfer}, nil
		}
	case gate.ExternalApps:
		err = controller.LaunchExternal(ctx, cmd.NodeID, cmd.Tool)
	default:
		err = fmt.Errorf("action %s: %w", cmd.Action, ErrActionDisabled)
	}
	if err != nil {
		return Result{}, err
	}
	if node == nil {
		node, _ = controller.store.Node(cmd.NodeID)
	}
	return Result{Node: node}, nil
}

func withOption(opts services.ConnectOptions, action gate.ActionID) services.ConnectOptions {
	switch action {
	case gate.ConnectConsoleSession:
		opts.ConsoleSession = true
	case gate.ConnectNoConsoleSession:
		opts.NoConsoleSession = true
	case gate.ConnectFullscreen:
		opts.Fullscreen = true
	case gate.ConnectNoCredentials:
		opts.NoCredentials = true
	case gate.ConnectChoosePanel:
		opts.ChoosePanel = true
	}
	return opts
}

func (controller *Controller) AddConnection(targetID string) (*domain.Node, error) {
	return controller.add(gate.AddConnection, targetID, controller.store.AddConnection)
}

func (controller *Controller) AddFolder(targetID string) (*domain.Node, error) {
	return controller.add(gate.AddFolder, targetID, controller.store.AddFolder)
}

func (controller *Controller) add(action gate.ActionID, targetID string, create func(string) (*domain.Node, error)) (*domain.Node, error) {
	if err := controller.require(action, targetID); err != nil {
		return nil, err
	}
	node, err := create(targetID)
	if err != nil {
		return nil, controller.fail(action, targetID, err)
	}
	controller.changed(Event{Kind: EventAdded, NodeID: node.ID, ParentID: node.ParentID})
	return node, nil
}

func (controller *Controller) Duplicate(id string) (*domain.Node, error) {
	if err := controller.require(gate.Duplicate, id); err != nil {
		return nil, err
	}
	clone, err := controller.store.Duplicate(id)
	if err != nil {
		return nil, controller.fail(gate.Duplicate, id, err)
	}
	controller.changed(Event{Kind: EventAdded, NodeID: clone.ID, ParentID: clone.ParentID})
	return clone, nil
}

func (controller *Controller) Rename(id, name string) error {
	if err := controller.require(gate.Rename, id); err != nil {
		return err
	}
	node, _ := controller.store.Node(id)
	previous := node.Name
	if err := controller.store.Rename(id, name); err != nil {
		return controller.fail(gate.Rename, id, err)
	}
	if previous != name {
		controller.changed(Event{Kind: EventRenamed, NodeID: id, ParentID: node.ParentID})
	}
	return nil
}

// EditConnection changes a connection's properties. The gate has no entry
// for editing; the store rejects every kind but Connection.
func (controller *Controller) EditConnection(id string, edit tree.ConnectionEdit) error {
	if err := controller.store.UpdateConnection(id, edit); err != nil {
		controller.logger.Warn("edit connection failed", "id", id, "error", err)
		return err
	}
	node, _ := controller.store.Node(id)
	controller.changed(Event{Kind: EventEdited, NodeID: id, ParentID: node.ParentID})
	return nil
}

// ImportPuttySessions replaces the imported PuTTY sessions. The import is
// not saved.
func (controller *Controller) ImportPuttySessions(sessions []domain.PuttySessionInfo) {
	event := Event{Kind: EventImported, NodeID: controller.store.RootID()}
	if puttyRoot := controller.store.ReplacePuttySessions(sessions); puttyRoot != nil {
		event.NodeID, event.ParentID = puttyRoot.ID, puttyRoot.ParentID
	}
	controller.logger.Debug("putty sessions imported", "count", len(sessions))
	controller.notify(event)
}

// DeletePromptFor builds the confirmation shown before deleting id.
func (controller *Controller) DeletePromptFor(id string) (DeletePrompt, error) {
	node, ok := controller.store.Node(id)
	if !ok {
		return DeletePrompt{}, fmt.Errorf("delete: id %q: %w", id, domain.ErrNotFound)
	}
	prompt := DeletePrompt{NodeID: node.ID, Name: node.Name}
	switch {
	case node.Kind == domain.KindContainer && len(node.ChildrenIDs) == 0:
		prompt.Kind = DeleteEmptyFolder
		prompt.Text = fmt.Sprintf("Do you really want to delete the empty folder %q?", node.Name)
	case node.Kind == domain.KindContainer:
		prompt.Kind = DeleteFolder
		prompt.Text = fmt.Sprintf("Do you really want to delete the folder %q? Every folder and connection inside it will be deleted as well!", node.Name)
	default:
		prompt.Kind = DeleteConnection
		prompt.Text = fmt.Sprintf("Do you really want to delete the connection %q?", node.Name)
	}
	return prompt, nil
}

// Delete removes id after confirmer accepts the prompt. A nil confirmer
// declines.
func (controller *Controller) Delete(id string, confirmer Confirmer) error {
	if err := controller.require(gate.Delete, id); err != nil {
		return err
	}
	prompt, err := controller.DeletePromptFor(id)
	if err != nil {
		return controller.fail(gate.Delete, id, err)
	}
	if confirmer == nil || !confirmer.Confirm(prompt) {
		return fmt.Errorf("delete %q: %w", prompt.Name, ErrCancelled)
	}
	node, _ := controller.store.Node(id)
	parentID := node.ParentID
	if err := controller.store.Delete(id); err != nil {
		return controller.fail(gate.Delete, id, err)
	}
	controller.changed(Event{Kind: EventRemoved, NodeID: id, ParentID: parentID})
	return nil
}

func (controller *Controller) MoveUp(id string) error {
	return controller.reorder(gate.MoveUp, id, controller.store.PromoteChild)
}

func (controller *Controller) MoveDown(id string) error {
	return controller.reorder(gate.MoveDown, id, controller.store.DemoteChild)
}

func (controller *Controller) reorder(action gate.ActionID, id string, shift func(string) error) error {
	if err := controller.require(action, id); err != nil {
		return err
	}
	parent, _ := controller.store.Parent(id)
	before := siblingIndex(parent, id)
	if err := shift(id); err != nil {
		return controller.fail(action, id, err)
	}
	if siblingIndex(parent, id) != before {
		controller.changed(Event{Kind: EventReordered, NodeID: id, ParentID: parent.ID})
	}
	return nil
}

// Move implements drag and drop of sourceID relative to targetID.
func (controller *Controller) Move(sourceID, targetID string, position DropPosition) error {
	target, ok := controller.store.Node(targetID)
	if !ok {
		return controller.fail(gate.MoveUp, sourceID, fmt.Errorf("drop target %q: %w", targetID, domain.ErrNotFound))
	}
	parentID, beforeID, err := controller.dropPlacement(target, position)
	if err != nil {
		return controller.fail(gate.MoveUp, sourceID, err)
	}
	if err := controller.store.Reparent(sourceID, parentID, beforeID); err != nil {
		return controller.fail(gate.MoveUp, sourceID, err)
	}
	controller.changed(Event{Kind: EventReparented, NodeID: sourceID, ParentID: parentID})
	return nil
}

func (controller *Controller) dropPlacement(target *domain.Node, position DropPosition) (string, string, error) {
	if position == DropOnto && (target.Kind == domain.KindRoot || target.Kind == domain.KindContainer) {
		return target.ID, "", nil
	}
	if target.Kind == domain.KindRoot {
		return "", "", fmt.Errorf("drop beside the root: %w", domain.ErrInvalidTarget)
	}
	parent, ok := controller.store.Parent(target.ID)
	if !ok {
		return "", "", fmt.Errorf("drop target %q has no parent: %w", target.Name, domain.ErrInvalidTarget)
	}
	if position == DropBefore {
		return parent.ID, target.ID, nil
	}
	index := siblingIndex(parent, target.ID)
	if index+1 < len(parent.ChildrenIDs) {
		return parent.ID, parent.ChildrenIDs[index+1], nil
	}
	return parent.ID, "", nil
}

// Sort orders a container's subtree, or the parent's when id is a connection.
func (controller *Controller) Sort(id string, order domain.SortOrder) error {
	if err := controller.require(gate.Sort, id); err != nil {
		return err
	}
	node, _ := controller.store.Node(id)
	containerID := id
	if !node.Kind.IsContainer() {
		containerID = node.ParentID
	}
	if order != domain.SortDescending {
		order = domain.SortAscending
	}
	if err := controller.store.SortChildren(containerID, order); err != nil {
		return controller.fail(gate.Sort, id, err)
	}
	controller.changed(Event{Kind: EventReordered, NodeID: containerID, ParentID: containerID})
	return nil
}

func (controller *Controller) Connect(id string, opts services.ConnectOptions) error {
	action := gate.Connect
	if opts != (services.ConnectOptions{}) {
		action = gate.ConnectWithOptions
	}
	return controller.connectWith(id, action, opts)
}

func (controller *Controller) connectWith(id string, action gate.ActionID, opts services.ConnectOptions) error {
	if err := controller.require(action, id); err != nil {
		return err
	}
	if controller.sessions == nil {
		return controller.fail(action, id, fmt.Errorf("sessions: %w", ErrNoCollaborator))
	}
	node, _ := controller.store.Node(id)
	if controller.switchToOpen && action == gate.Connect && node.OpenSessionCount() > 0 {
		if err := controller.sessions.SwitchToOpen(node); err == nil {
			return nil
		}
	}
	if err := controller.sessions.OpenConnection(node, opts); err != nil {
		return controller.fail(action, id, err)
	}
	controller.notify(Event{Kind: EventSessions, NodeID: id, ParentID: node.ParentID})
	return nil
}

// Disconnect closes the node's sessions, or those of every descendant leaf
// when id is a container.
func (controller *Controller) Disconnect(id string) error {
	if err := controller.require(gate.Disconnect, id); err != nil {
		return err
	}
	if controller.sessions == nil {
		return controller.fail(gate.Disconnect, id, fmt.Errorf("sessions: %w", ErrNoCollaborator))
	}
	node, _ := controller.store.Node(id)
	targets := []*domain.Node{node}
	if node.Kind.IsContainer() {
		descendants, err := controller.store.RecursiveChildList(id)
		if err != nil {
			return controller.fail(gate.Disconnect, id, err)
		}
		targets = descendants
	}
	var errs []error
	for _, target := range targets {
		if !target.Kind.IsLeaf() || target.OpenSessionCount() == 0 {
			continue
		}
		if err := controller.sessions.Disconnect(target); err != nil {
			errs = append(errs, err)
		}
	}
	controller.notify(Event{Kind: EventSessions, NodeID: id, ParentID: node.ParentID})
	if err := errors.Join(errs...); err != nil {
		return controller.fail(gate.Disconnect, id, err)
	}
	return nil
}

func (controller *Controller) TransferFile(id string) (TransferRequest, error) {
	if err := controller.require(gate.TransferFile, id); err != nil {
		return TransferRequest{}, err
	}
	node, _ := controller.store.Node(id)
	return TransferRequest{
		NodeID:   node.ID,
		Name:     node.Name,
		Protocol: node.Protocol,
		Hostname: node.Hostname,
		Username: node.Username,
		Password: node.Password,
		Port:     node.Port,
	}, nil
}

func (controller *Controller) LaunchExternal(ctx context.Context, id string, tool services.ExternalTool) error {
	if err := controller.require(gate.ExternalApps, id); err != nil {
		return err
	}
	if controller.launcher == nil {
		return controller.fail(gate.ExternalApps, id, fmt.Errorf("launcher: %w", ErrNoCollaborator))
	}
	node, _ := controller.store.Node(id)
	if err := controller.launcher.Launch(ctx, tool, node); err != nil {
		return controller.fail(gate.ExternalApps, id, err)
	}
	controller.logger.Info("launched external tool", "tool", tool.Name, "id", id)
	return nil
}

// OpenConnectionsFromLastSession reopens every leaf saved with PleaseConnect
// and returns how many were opened.
func (controller *Controller) OpenConnectionsFromLastSession(settings Settings) (int, error) {
	if !settings.OpenFromLastSession || settings.NoReconnect {
		return 0, nil
	}
	if controller.sessions == nil {
		return 0, fmt.Errorf("reconnect: %w", ErrNoCollaborator)
	}
	opened := 0
	var errs []error
	for _, node := range controller.store.PleaseConnectLeaves() {
		if err := controller.sessions.OpenConnection(node, services.ConnectOptions{}); err != nil {
			controller.logger.Warn("reconnect failed", "id", node.ID, "name", node.Name, "error", err)
			errs = append(errs, err)
			continue
		}
		opened++
	}
	if opened > 0 {
		controller.notify(Event{Kind: EventSessions, NodeID: controller.store.RootID()})
	}
	return opened, errors.Join(errs...)
}

func (controller *Controller) require(action gate.ActionID, id string) error {
	node, ok := controller.store.Node(id)
	if !ok {
		return controller.fail(action, id, fmt.Errorf("id %q: %w", id, domain.ErrNotFound))
	}
	if !gate.ForNode(controller.store, id).Has(action) {
		return controller.fail(action, id, disabled(action, node))
	}
	return nil
}

func (controller *Controller) fail(action gate.ActionID, id string, err error) error {
	controller.logger.Warn("tree action failed", "action", action.String(), "id", id, "error", err)
	return err
}

func (controller *Controller) changed(event Event) {
	if controller.persistence != nil {
		controller.persistence.SaveAsync()
	}
	controller.notify(event)
}

func (controller *Controller) notify(event Event) {
	if controller.notifier != nil {
		controller.notifier.NodeChanged(event)
	}
}

func siblingIndex(parent *domain.Node, id string) int {
	if parent == nil {
		return -1
	}
	for index, childID := range parent.ChildrenIDs {
		if childID == id {
			return index
		}
	}
	return -1
}
