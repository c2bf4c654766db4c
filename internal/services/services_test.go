package services_test

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conntree/internal/domain"
	"conntree/internal/services"
)

type fakeProcess struct {
	done   chan struct{}
	once   sync.Once
	killed atomic.Bool
}

func newFakeProcess() *fakeProcess {
	return &fakeProcess{done: make(chan struct{})}
}

func (process *fakeProcess) Wait() error {
	<-process.done
	if process.killed.Load() {
		return errors.New("signal: killed")
	}
	return nil
}

func (process *fakeProcess) Kill() error {
	process.killed.Store(true)
	process.exit()
	return nil
}

func (process *fakeProcess) exit() {
	process.once.Do(func() { close(process.done) })
}

type fakeStarter struct {
	mu        sync.Mutex
	processes []*fakeProcess
	targets   []*domain.Node
	err       error
}

func (starter *fakeStarter) Start(ctx context.Context, tool services.ExternalTool, node *domain.Node) (services.Process, error) {
	starter.mu.Lock()
	defer starter.mu.Unlock()
	if starter.err != nil {
		return nil, starter.err
	}
	process := newFakeProcess()
	starter.processes = append(starter.processes, process)
	starter.targets = append(starter.targets, node)
	return process, nil
}

func sshNode() *domain.Node {
	return &domain.Node{
		ID:       "n1",
		Name:     "web",
		Kind:     domain.KindConnection,
		Protocol: domain.ProtocolSSH2,
		Hostname: "web.internal",
		Username: "deploy",
		Password: "pw",
		Port:     2222,
	}
}

func TestExpandArguments(t *testing.T) {
	node := sshNode()
	args := services.ExpandArguments([]string{"-p", "%PORT%", "%USERNAME%@%HOSTNAME%", "%PROTOCOL%:%NAME%", "plain"}, node)
	assert.Equal(t, []string{"-p", "2222", "deploy@web.internal", "SSH2:web", "plain"}, args)

	node.Port = 0
	assert.Equal(t, "port=", services.ExpandArgument("port=%PORT%", node))
}

func TestExecLauncher_RejectsBadInput(t *testing.T) {
	launcher := services.NewExecLauncher()
	ctx := context.Background()

	err := launcher.Launch(ctx, services.ExternalTool{Name: "empty"}, sshNode())
	assert.ErrorIs(t, err, services.ErrNoCommand)

	folder := &domain.Node{ID: "f", Kind: domain.KindContainer}
	err = launcher.Launch(ctx, services.ExternalTool{Name: "ping", Command: "ping"}, folder)
	assert.ErrorIs(t, err, services.ErrNotConnectable)
}

func TestExecLauncher_StartsExpandedCommand(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs true(1)")
	}
	var gotName string
	var gotArgs []string
	launcher := services.NewExecLauncher(services.WithCommandFactory(func(ctx context.Context, name string, args ...string) *exec.Cmd {
		gotName = name
		gotArgs = args
		return exec.CommandContext(ctx, "true")
	}))

	process, err := launcher.Start(context.Background(), services.ExternalTool{Name: "echo", Command: "echo", Args: []string{"%HOSTNAME%"}}, sshNode())
	require.NoError(t, err)
	require.NoError(t, process.Wait())
	assert.Equal(t, "echo", gotName)
	assert.Equal(t, []string{"web.internal"}, gotArgs)
}

func TestLocalSessions_VirtualSessionsCount(t *testing.T) {
	sessions := services.NewLocalSessions()
	node := sshNode()

	require.NoError(t, sessions.OpenConnection(node, services.ConnectOptions{}))
	require.NoError(t, sessions.OpenConnection(node, services.ConnectOptions{}))
	assert.Equal(t, 2, node.OpenSessionCount())
	assert.Equal(t, node.ID, sessions.Active())
	require.NoError(t, sessions.SwitchToOpen(node))

	require.NoError(t, sessions.Disconnect(node))
	assert.Zero(t, node.OpenSessionCount())
	assert.ErrorIs(t, sessions.SwitchToOpen(node), services.ErrNoSession)
	assert.Empty(t, sessions.Active())

	folder := &domain.Node{ID: "f", Kind: domain.KindContainer}
	assert.ErrorIs(t, sessions.OpenConnection(folder, services.ConnectOptions{}), services.ErrNotConnectable)
}

func TestLocalSessions_ClientExitClosesSession(t *testing.T) {
	starter := &fakeStarter{}
	sessions := services.NewLocalSessions(
		services.WithStarter(starter),
		services.WithClients(map[domain.Protocol]services.ExternalTool{domain.ProtocolSSH2: {Name: "ssh", Command: "ssh"}}),
	)
	node := sshNode()

	require.NoError(t, sessions.OpenConnection(node, services.ConnectOptions{NoCredentials: true}))
	assert.Equal(t, 1, node.OpenSessionCount())
	require.Len(t, starter.targets, 1)
	assert.Empty(t, starter.targets[0].Username)
	assert.Empty(t, starter.targets[0].Password)
	assert.Equal(t, "web.internal", starter.targets[0].Hostname)

	opened := <-sessions.Events()
	assert.Equal(t, services.SessionOpened, opened.Type)

	starter.processes[0].exit()
	select {
	case closed := <-sessions.Events():
		assert.Equal(t, services.SessionClosed, closed.Type)
		assert.Zero(t, closed.Open)
	case <-time.After(2 * time.Second):
		t.Fatal("no close event")
	}
	assert.Zero(t, node.OpenSessionCount())
}

func TestLocalSessions_CloseEventUsesNameFromOpen(t *testing.T) {
	starter := &fakeStarter{}
	sessions := services.NewLocalSessions(
		services.WithStarter(starter),
		services.WithClients(map[domain.Protocol]services.ExternalTool{domain.ProtocolSSH2: {Name: "ssh", Command: "ssh"}}),
	)
	node := sshNode()
	require.NoError(t, sessions.OpenConnection(node, services.ConnectOptions{}))
	<-sessions.Events()

	renamed := make(chan struct{})
	go func() {
		node.Name = "web-renamed"
		node.Hostname = "web2.internal"
		close(renamed)
	}()
	starter.processes[0].exit()

	select {
	case closed := <-sessions.Events():
		assert.Equal(t, services.SessionClosed, closed.Type)
		assert.Equal(t, "n1", closed.NodeID)
		assert.Equal(t, "web", closed.Name)
		assert.Zero(t, closed.Open)
	case <-time.After(2 * time.Second):
		t.Fatal("no close event")
	}
	<-renamed
	assert.Zero(t, node.OpenSessionCount())
}

func TestLocalSessions_DisconnectKillsOnce(t *testing.T) {
	starter := &fakeStarter{}
	sessions := services.NewLocalSessions(
		services.WithStarter(starter),
		services.WithClients(map[domain.Protocol]services.ExternalTool{domain.ProtocolSSH2: {Name: "ssh", Command: "ssh"}}),
	)
	node := sshNode()
	require.NoError(t, sessions.OpenConnection(node, services.ConnectOptions{}))
	require.NoError(t, sessions.OpenConnection(node, services.ConnectOptions{}))

	require.NoError(t, sessions.Disconnect(node))
	assert.True(t, starter.processes[0].killed.Load())
	assert.True(t, starter.processes[1].killed.Load())

	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, node.OpenSessionCount())
}

func TestLocalSessions_StartFailureLeavesCountAlone(t *testing.T) {
	starter := &fakeStarter{err: errors.New("no such binary")}
	sessions := services.NewLocalSessions(
		services.WithStarter(starter),
		services.WithClients(map[domain.Protocol]services.ExternalTool{domain.ProtocolSSH2: {Name: "ssh", Command: "ssh"}}),
	)
	node := sshNode()

	assert.Error(t, sessions.OpenConnection(node, services.ConnectOptions{}))
	assert.Zero(t, node.OpenSessionCount())
}

func writeSession(t *testing.T, dir, file, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte(body), 0o600))
}

func TestPuttyImporter(t *testing.T) {
	dir := t.TempDir()
	writeSession(t, dir, "Default%20Settings", "HostName=\n")
	writeSession(t, dir, "core%20router", "HostName=admin@10.0.0.1\nPortNumber=2222\nProtocol=ssh\nSshProt=3\n")
	writeSession(t, dir, "Lab", "HostName=lab.local\nProtocol=telnet\n")
	writeSession(t, dir, "console", "HostName=/dev/ttyS0\nProtocol=serial\n")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o700))

	result, err := services.NewPuttyImporter(dir).Import(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Sessions, 3)
	assert.Equal(t, []string{"Default%20Settings"}, result.Skipped)
	assert.Equal(t, "console", result.Sessions[0].Name)
	assert.Equal(t, domain.Protocol("serial"), result.Sessions[0].Protocol)
	assert.Equal(t, domain.PuttySessionInfo{
		Name: "core router", Hostname: "10.0.0.1", Username: "admin", Port: 2222, Protocol: domain.ProtocolSSH2,
	}, result.Sessions[1])
	assert.Equal(t, domain.PuttySessionInfo{
		Name: "Lab", Hostname: "lab.local", Port: 23, Protocol: domain.ProtocolTelnet,
	}, result.Sessions[2])
}

func TestPuttyImporter_MissingDirIsEmpty(t *testing.T) {
	result, err := services.NewPuttyImporter(filepath.Join(t.TempDir(), "absent")).Import(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Sessions)
}

func TestPuttyWatcher_ReimportsOnChange(t *testing.T) {
	dir := t.TempDir()
	imports := make(chan services.ImportResult, 4)
	watcher := services.NewPuttyWatcher(services.NewPuttyImporter(dir), dir,
		services.WithDebounce(20*time.Millisecond),
		services.WithOnImport(func(result services.ImportResult) { imports <- result }),
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, watcher.Start(ctx))
	defer watcher.Stop()
	assert.ErrorIs(t, watcher.Start(ctx), services.ErrWatcherStarted)

	writeSession(t, dir, "switch", "HostName=10.0.0.2\nProtocol=ssh\n")

	select {
	case result := <-imports:
		require.Len(t, result.Sessions, 1)
		assert.Equal(t, "switch", result.Sessions[0].Name)
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not re-import")
	}
}
