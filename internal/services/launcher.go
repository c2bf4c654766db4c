package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"conntree/internal/domain"
	"conntree/internal/logging"
)

var (
	ErrNoCommand      = errors.New("external tool has no command")
	ErrNotConnectable = errors.New("node cannot hold sessions")
	ErrNoSession      = errors.New("no open session")
)

type CommandFactory func(ctx context.Context, name string, args ...string) *exec.Cmd

type ExecLauncher struct {
	logger  *slog.Logger
	command CommandFactory
}

type LauncherOption func(*ExecLauncher)

func WithLauncherLogger(logger *slog.Logger) LauncherOption {
	return func(launcher *ExecLauncher) {
		launcher.logger = logger
	}
}

func WithCommandFactory(factory CommandFactory) LauncherOption {
	return func(launcher *ExecLauncher) {
		launcher.command = factory
	}
}

func NewExecLauncher(opts ...LauncherOption) *ExecLauncher {
	launcher := &ExecLauncher{
		logger:  logging.NewNop(),
		command: exec.CommandContext,
	}
	for _, opt := range opts {
		opt(launcher)
	}
	return launcher
}

// Launch starts the tool and reaps it in the background.
func (launcher *ExecLauncher) Launch(ctx context.Context, tool ExternalTool, node *domain.Node) error {
	process, err := launcher.Start(ctx, tool, node)
	if err != nil {
		return err
	}
	go func() {
		if err := process.Wait(); err != nil {
			launcher.logger.Warn("external tool exited", "tool", tool.Name, "id", node.ID, "error", err)
		}
	}()
	return nil
}

func (launcher *ExecLauncher) Start(ctx context.Context, tool ExternalTool, node *domain.Node) (Process, error) {
	if strings.TrimSpace(tool.Command) == "" {
		return nil, fmt.Errorf("launch %q: %w", tool.Name, ErrNoCommand)
	}
	if node == nil || !node.Kind.IsLeaf() {
		return nil, fmt.Errorf("launch %q: %w", tool.Name, ErrNotConnectable)
	}
	cmd := launcher.command(ctx, ExpandArgument(tool.Command, node), ExpandArguments(tool.Args, node)...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("launch %q: %w", tool.Name, err)
	}
	launcher.logger.Info("started external tool", "tool", tool.Name, "id", node.ID, "pid", cmd.Process.Pid)
	return execProcess{cmd: cmd}, nil
}

type execProcess struct {
	cmd *exec.Cmd
}

func (process execProcess) Wait() error {
	return process.cmd.Wait()
}

func (process execProcess) Kill() error {
	if process.cmd.Process == nil {
		return nil
	}
	return process.cmd.Process.Kill()
}

func ExpandArguments(args []string, node *domain.Node) []string {
	expanded := make([]string, 0, len(args))
	for _, arg := range args {
		expanded = append(expanded, ExpandArgument(arg, node))
	}
	return expanded
}

// ExpandArgument substitutes the connection variables in value.
func ExpandArgument(value string, node *domain.Node) string {
	if !strings.Contains(value, "%") {
		return value
	}
	port := ""
	if node.Port > 0 {
		port = strconv.Itoa(node.Port)
	}
	return strings.NewReplacer(
		"%NAME%", node.Name,
		"%HOSTNAME%", node.Hostname,
		"%PORT%", port,
		"%USERNAME%", node.Username,
		"%PASSWORD%", node.Password,
		"%PROTOCOL%", string(node.Protocol),
		"%DESCRIPTION%", node.Description,
	).Replace(value)
}
