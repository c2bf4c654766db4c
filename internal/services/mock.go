package services

import (
	"context"
	"fmt"
	"sync"

	"conntree/internal/domain"
)

// MockSessions counts sessions without starting any client.
type MockSessions struct {
	mu           sync.Mutex
	Opened       []string
	Disconnected []string
	Switched     []string
	Options      []ConnectOptions
	Err          error
}

func NewMockSessions() *MockSessions {
	return &MockSessions{}
}

func (sessions *MockSessions) OpenConnection(node *domain.Node, opts ConnectOptions) error {
	sessions.mu.Lock()
	defer sessions.mu.Unlock()
	if sessions.Err != nil {
		return sessions.Err
	}
	if node == nil || !node.Kind.IsLeaf() {
		return fmt.Errorf("open connection: %w", ErrNotConnectable)
	}
	sessions.Opened = append(sessions.Opened, node.ID)
	sessions.Options = append(sessions.Options, opts)
	node.AddOpenSessions(1)
	return nil
}

func (sessions *MockSessions) Disconnect(node *domain.Node) error {
	sessions.mu.Lock()
	defer sessions.mu.Unlock()
	if sessions.Err != nil {
		return sessions.Err
	}
	sessions.Disconnected = append(sessions.Disconnected, node.ID)
	node.SetOpenSessionCount(0)
	return nil
}

func (sessions *MockSessions) SwitchToOpen(node *domain.Node) error {
	sessions.mu.Lock()
	defer sessions.mu.Unlock()
	if node.OpenSessionCount() == 0 {
		return fmt.Errorf("switch to %q: %w", node.Name, ErrNoSession)
	}
	sessions.Switched = append(sessions.Switched, node.ID)
	return nil
}

type MockLaunch struct {
	Tool   ExternalTool
	NodeID string
	Args   []string
}

// MockLauncher records launches with their expanded arguments.
type MockLauncher struct {
	mu       sync.Mutex
	Launches []MockLaunch
	Err      error
}

func NewMockLauncher() *MockLauncher {
	return &MockLauncher{}
}

func (launcher *MockLauncher) Launch(ctx context.Context, tool ExternalTool, node *domain.Node) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	launcher.mu.Lock()
	defer launcher.mu.Unlock()
	if launcher.Err != nil {
		return launcher.Err
	}
	launcher.Launches = append(launcher.Launches, MockLaunch{
		Tool:   tool,
		NodeID: node.ID,
		Args:   ExpandArguments(tool.Args, node),
	})
	return nil
}
