package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"conntree/internal/domain"
	"conntree/internal/logging"
)

// LocalSessions tracks live sessions per node and owns the nodes' open-session
// counters. Client processes, when configured for a protocol, run in the
// background and close their session when they exit.
type LocalSessions struct {
	mu       sync.Mutex
	ctx      context.Context
	starter  Starter
	clients  map[domain.Protocol]ExternalTool
	sessions map[string][]*session
	active   string
	events   chan SessionEvent
	logger   *slog.Logger
}

// session copies the node's ID and name when it opens. The reaper goroutine
// touches the node only through its atomic counter.
type session struct {
	nodeID  string
	name    string
	node    *domain.Node
	process Process
}

type SessionsOption func(*LocalSessions)

func WithStarter(starter Starter) SessionsOption {
	return func(sessions *LocalSessions) {
		sessions.starter = starter
	}
}

// WithClients maps protocols to the client command that opens them.
func WithClients(clients map[domain.Protocol]ExternalTool) SessionsOption {
	return func(sessions *LocalSessions) {
		for protocol, tool := range clients {
			sessions.clients[protocol] = tool
		}
	}
}

func WithSessionLogger(logger *slog.Logger) SessionsOption {
	return func(sessions *LocalSessions) {
		sessions.logger = logger
	}
}

func WithSessionContext(ctx context.Context) SessionsOption {
	return func(sessions *LocalSessions) {
		sessions.ctx = ctx
	}
}

func NewLocalSessions(opts ...SessionsOption) *LocalSessions {
	sessions := &LocalSessions{
		ctx:      context.Background(),
		clients:  make(map[domain.Protocol]ExternalTool),
		sessions: make(map[string][]*session),
		events:   make(chan SessionEvent, 64),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(sessions)
	}
	return sessions
}

func (sessions *LocalSessions) Events() <-chan SessionEvent {
	return sessions.events
}

func (sessions *LocalSessions) OpenConnection(node *domain.Node, opts ConnectOptions) error {
	if node == nil || !node.Kind.IsLeaf() {
		return fmt.Errorf("open connection: %w", ErrNotConnectable)
	}
	var process Process
	if tool, ok := sessions.clients[node.Protocol]; ok && sessions.starter != nil {
		target := node
		if opts.NoCredentials {
			target = withoutCredentials(node)
		}
		started, err := sessions.starter.Start(sessions.ctx, tool, target)
		if err != nil {
			return fmt.Errorf("open connection %q: %w", node.Name, err)
		}
		process = started
	}

	entry := &session{nodeID: node.ID, name: node.Name, node: node, process: process}
	sessions.mu.Lock()
	sessions.sessions[node.ID] = append(sessions.sessions[node.ID], entry)
	sessions.active = node.ID
	open := node.AddOpenSessions(1)
	sessions.mu.Unlock()

	sessions.logger.Info("session opened", "id", node.ID, "name", node.Name, "open", open)
	sessions.emit(SessionEvent{Type: SessionOpened, NodeID: node.ID, Name: node.Name, Open: open})
	if process != nil {
		go sessions.reap(entry)
	}
	return nil
}

func (sessions *LocalSessions) reap(entry *session) {
	waitErr := entry.process.Wait()
	if !sessions.remove(entry) {
		return
	}
	open := entry.node.AddOpenSessions(-1)
	event := SessionEvent{Type: SessionClosed, NodeID: entry.nodeID, Name: entry.name, Open: open}
	if waitErr != nil {
		event.ErrMessage = waitErr.Error()
		sessions.logger.Warn("session client exited", "id", entry.nodeID, "name", entry.name, "error", waitErr)
	}
	sessions.emit(event)
}

func (sessions *LocalSessions) remove(entry *session) bool {
	sessions.mu.Lock()
	defer sessions.mu.Unlock()
	list := sessions.sessions[entry.nodeID]
	for index, candidate := range list {
		if candidate == entry {
			list = append(list[:index], list[index+1:]...)
			if len(list) == 0 {
				delete(sessions.sessions, entry.nodeID)
			} else {
				sessions.sessions[entry.nodeID] = list
			}
			return true
		}
	}
	return false
}

// Disconnect closes every session of the node.
func (sessions *LocalSessions) Disconnect(node *domain.Node) error {
	if node == nil {
		return fmt.Errorf("disconnect: %w", ErrNotConnectable)
	}
	sessions.mu.Lock()
	list := sessions.sessions[node.ID]
	delete(sessions.sessions, node.ID)
	if sessions.active == node.ID {
		sessions.active = ""
	}
	sessions.mu.Unlock()

	if len(list) == 0 {
		return nil
	}
	var firstErr error
	for _, entry := range list {
		node.AddOpenSessions(-1)
		if entry.process == nil {
			continue
		}
		if err := entry.process.Kill(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("disconnect %q: %w", node.Name, err)
		}
	}
	sessions.logger.Info("session closed", "id", node.ID, "count", len(list))
	sessions.emit(SessionEvent{Type: SessionClosed, NodeID: node.ID, Name: node.Name, Open: node.OpenSessionCount()})
	return firstErr
}

func (sessions *LocalSessions) SwitchToOpen(node *domain.Node) error {
	if node == nil {
		return fmt.Errorf("switch: %w", ErrNotConnectable)
	}
	sessions.mu.Lock()
	_, open := sessions.sessions[node.ID]
	if open {
		sessions.active = node.ID
	}
	sessions.mu.Unlock()
	if !open {
		return fmt.Errorf("switch to %q: %w", node.Name, ErrNoSession)
	}
	sessions.emit(SessionEvent{Type: SessionSwitched, NodeID: node.ID, Name: node.Name, Open: node.OpenSessionCount()})
	return nil
}

// Active returns the node ID of the most recently opened or focused session.
func (sessions *LocalSessions) Active() string {
	sessions.mu.Lock()
	defer sessions.mu.Unlock()
	return sessions.active
}

// CloseAll disconnects every tracked session.
func (sessions *LocalSessions) CloseAll() {
	sessions.mu.Lock()
	nodes := make([]*domain.Node, 0, len(sessions.sessions))
	for _, list := range sessions.sessions {
		if len(list) > 0 {
			nodes = append(nodes, list[0].node)
		}
	}
	sessions.mu.Unlock()
	for _, node := range nodes {
		if err := sessions.Disconnect(node); err != nil {
			sessions.logger.Warn("close session", "id", node.ID, "error", err)
		}
	}
}

func (sessions *LocalSessions) emit(event SessionEvent) {
	select {
	case sessions.events <- event:
	default:
	}
}

func withoutCredentials(node *domain.Node) *domain.Node {
	return &domain.Node{
		ID:          node.ID,
		Name:        node.Name,
		Description: node.Description,
		Kind:        node.Kind,
		Protocol:    node.Protocol,
		Hostname:    node.Hostname,
		Port:        node.Port,
	}
}
