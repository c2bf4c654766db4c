package services

import (
	"context"

	"conntree/internal/domain"
)

type SessionManager interface {
	OpenConnection(node *domain.Node, opts ConnectOptions) error
	Disconnect(node *domain.Node) error
	SwitchToOpen(node *domain.Node) error
}

type Launcher interface {
	Launch(ctx context.Context, tool ExternalTool, node *domain.Node) error
}

// Starter starts a long-lived client process for a session.
type Starter interface {
	Start(ctx context.Context, tool ExternalTool, node *domain.Node) (Process, error)
}

type Process interface {
	Wait() error
	Kill() error
}

type PuttySource interface {
	Import(ctx context.Context) (ImportResult, error)
}
