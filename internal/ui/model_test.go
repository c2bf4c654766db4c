package ui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conntree/internal/controller"
	"conntree/internal/domain"
	"conntree/internal/services"
	"conntree/internal/state"
	"conntree/internal/tree"
)

type uiFixture struct {
	store    *tree.Store
	sessions *services.MockSessions
	launcher *services.MockLauncher
	copied   []string
	prod     *domain.Node
	db       *domain.Node
	web      *domain.Node
}

func newUIFixture(t *testing.T) (*uiFixture, Model) {
	t.Helper()
	f := &uiFixture{
		store:    tree.New(),
		sessions: services.NewMockSessions(),
		launcher: services.NewMockLauncher(),
	}
	f.prod = addNode(t, f.store, f.store.AddFolder, f.store.RootID(), "prod")
	f.db = addNode(t, f.store, f.store.AddConnection, f.prod.ID, "db")
	f.web = addNode(t, f.store, f.store.AddConnection, f.store.RootID(), "web")
	protocol, host := domain.ProtocolSSH2, "db.internal"
	require.NoError(t, f.store.UpdateConnection(f.db.ID, tree.ConnectionEdit{Protocol: &protocol, Hostname: &host}))

	ctrl := controller.New(f.store,
		controller.WithSessions(f.sessions),
		controller.WithLauncher(f.launcher),
	)
	appState := state.NewState(f.store, state.Preferences{Theme: "dark"}, nil)
	model := NewModel(appState, ctrl,
		WithTools([]services.ExternalTool{{Name: "Ping", Command: "ping", Args: []string{"%HOSTNAME%"}}}),
		WithClipboard(func(text string) error {
			f.copied = append(f.copied, text)
			return nil
		}),
	)
	updated, _ := model.Update(tea.WindowSizeMsg{Width: 120, Height: 30})
	return f, updated.(Model)
}

func addNode(t *testing.T, store *tree.Store, create func(string) (*domain.Node, error), parentID, name string) *domain.Node {
	t.Helper()
	node, err := create(parentID)
	require.NoError(t, err)
	require.NoError(t, store.Rename(node.ID, name))
	return node
}

func press(t *testing.T, model Model, keys ...string) Model {
	t.Helper()
	for _, value := range keys {
		var msg tea.KeyMsg
		switch value {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		case "up":
			msg = tea.KeyMsg{Type: tea.KeyUp}
		case "down":
			msg = tea.KeyMsg{Type: tea.KeyDown}
		case "ctrl+u":
			msg = tea.KeyMsg{Type: tea.KeyCtrlU}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(value)}
		}
		updated, _ := model.Update(msg)
		model = updated.(Model)
	}
	return model
}

func typeText(t *testing.T, model Model, text string) Model {
	t.Helper()
	for _, r := range text {
		model = press(t, model, string(r))
	}
	return model
}

func TestAddConnection_SelectsNewNode(t *testing.T) {
	f, model := newUIFixture(t)
	require.True(t, model.state.Select(f.prod.ID))

	model = press(t, model, "a")

	current := model.state.CurrentNode()
	require.NotNil(t, current)
	assert.Equal(t, tree.DefaultConnectionName, current.Name)
	assert.Equal(t, f.prod.ID, current.ParentID)
	assert.Contains(t, model.lastChange, "added")
}

func TestRename_ThroughInput(t *testing.T) {
	f, model := newUIFixture(t)
	require.True(t, model.state.Select(f.web.ID))

	model = press(t, model, "r")
	assert.Equal(t, modeRename, model.mode)
	model = press(t, model, "ctrl+u")
	model = typeText(t, model, "frontend")
	model = press(t, model, "enter")

	assert.Equal(t, modeBrowse, model.mode)
	assert.Equal(t, "frontend", f.web.Name)
}

func TestRename_EscKeepsName(t *testing.T) {
	f, model := newUIFixture(t)
	require.True(t, model.state.Select(f.web.ID))

	model = press(t, model, "r", "ctrl+u")
	model = typeText(t, model, "other")
	model = press(t, model, "esc")

	assert.Equal(t, "web", f.web.Name)
}

func TestRename_RootsAreRefusedBeforePrompt(t *testing.T) {
	f, model := newUIFixture(t)
	updated, _ := model.Update(PuttyImportMsg{Result: services.ImportResult{Sessions: []domain.PuttySessionInfo{{Name: "router"}}}})
	model = updated.(Model)
	puttyRoot, ok := f.store.PuttyRoot()
	require.True(t, ok)

	for _, id := range []string{f.store.RootID(), puttyRoot.ID} {
		require.True(t, model.state.Select(id))
		model = press(t, model, "r")
		assert.Equal(t, modeBrowse, model.mode)
		assert.Equal(t, "Rename not available", model.status)
	}
	assert.Equal(t, tree.DefaultRootName, f.store.Root().Name)
}

func TestDelete_AsksBeforeRemoving(t *testing.T) {
	f, model := newUIFixture(t)
	require.True(t, model.state.Select(f.prod.ID))

	model = press(t, model, "d")
	require.Equal(t, modeConfirm, model.mode)
	assert.Contains(t, model.status, `Do you really want to delete the folder "prod"?`)

	model = press(t, model, "n")
	_, ok := f.store.Node(f.prod.ID)
	assert.True(t, ok)

	model = press(t, model, "d", "y")
	_, ok = f.store.Node(f.prod.ID)
	assert.False(t, ok)
	_, ok = f.store.Node(f.db.ID)
	assert.False(t, ok)
	assert.Equal(t, modeBrowse, model.mode)
}

func TestDelete_RootIsRefused(t *testing.T) {
	_, model := newUIFixture(t)
	model.state.Cursor = 0

	model = press(t, model, "d")

	assert.Equal(t, modeBrowse, model.mode)
	assert.Equal(t, "Delete not available", model.status)
}

func TestSearch_JumpsAndCycles(t *testing.T) {
	f, model := newUIFixture(t)

	model = press(t, model, "/")
	require.Equal(t, modeSearch, model.mode)
	model = typeText(t, model, "b")

	assert.Equal(t, f.db.ID, model.state.CurrentID())
	assert.True(t, f.prod.Expanded)
	assert.Contains(t, model.status, "(1/2)")

	model = press(t, model, "down")
	assert.Equal(t, f.web.ID, model.state.CurrentID())
	model = press(t, model, "down")
	assert.Equal(t, f.db.ID, model.state.CurrentID())
	model = press(t, model, "up")
	assert.Equal(t, f.web.ID, model.state.CurrentID())

	model = press(t, model, "enter")
	assert.Equal(t, modeBrowse, model.mode)
	assert.Equal(t, f.web.ID, model.state.CurrentID())
}

func TestEnter_ConnectsLeafAndTogglesFolder(t *testing.T) {
	f, model := newUIFixture(t)
	require.True(t, model.state.Select(f.prod.ID))

	model = press(t, model, "enter")
	assert.True(t, f.prod.Expanded)

	require.True(t, model.state.Select(f.db.ID))
	model = press(t, model, "enter")
	assert.Equal(t, []string{f.db.ID}, f.sessions.Opened)
	assert.Equal(t, 1, f.db.OpenSessionCount())

	model = press(t, model, "X")
	assert.Zero(t, f.db.OpenSessionCount())
}

func TestOptionsMenu_RunsChosenOption(t *testing.T) {
	f, model := newUIFixture(t)
	require.True(t, model.state.Select(f.db.ID))

	model = press(t, model, "o")
	require.Equal(t, modeMenu, model.mode)
	labels := make([]string, 0, len(model.menu.items))
	for _, item := range model.menu.items {
		labels = append(labels, item.label)
	}
	assert.NotContains(t, labels, "Connect in fullscreen")
	assert.Contains(t, labels, "Connect without credentials")

	for model.menu.items[model.menu.cursor].label != "Connect without credentials" {
		model = press(t, model, "down")
	}
	model = press(t, model, "enter")

	require.Len(t, f.sessions.Options, 1)
	assert.True(t, f.sessions.Options[0].NoCredentials)
	assert.Equal(t, modeBrowse, model.mode)
}

func TestToolsMenu_LaunchesTool(t *testing.T) {
	f, model := newUIFixture(t)
	require.True(t, model.state.Select(f.db.ID))

	model = press(t, model, "e", "enter")

	require.Len(t, f.launcher.Launches, 1)
	assert.Equal(t, []string{"db.internal"}, f.launcher.Launches[0].Args)
	assert.Equal(t, "Ping", model.status)
}

func TestCutAndPaste_MovesIntoFolder(t *testing.T) {
	f, model := newUIFixture(t)
	require.True(t, model.state.Select(f.web.ID))

	model = press(t, model, "x")
	require.True(t, model.state.Select(f.prod.ID))
	model = press(t, model, "p")

	assert.Equal(t, f.prod.ID, f.web.ParentID)
	assert.Equal(t, f.web.ID, model.state.CurrentID())
	assert.Empty(t, model.state.CutID)
}

func TestEditAddressAndProtocol(t *testing.T) {
	f, model := newUIFixture(t)
	require.True(t, model.state.Select(f.web.ID))

	model = press(t, model, "i", "ctrl+u")
	model = typeText(t, model, "admin@web.example.com:8443")
	model = press(t, model, "enter")

	assert.Equal(t, "web.example.com", f.web.Hostname)
	assert.Equal(t, "admin", f.web.Username)
	assert.Equal(t, 8443, f.web.Port)

	require.Equal(t, domain.ProtocolRDP, f.web.Protocol)
	model = press(t, model, "P")
	assert.Equal(t, domain.ProtocolVNC, f.web.Protocol)
	assert.Equal(t, 8443, f.web.Port)
}

func TestCopyHostname(t *testing.T) {
	f, model := newUIFixture(t)
	require.True(t, model.state.Select(f.db.ID))

	model = press(t, model, "y")

	assert.Equal(t, []string{"db.internal"}, f.copied)
	assert.Equal(t, "Copied db.internal", model.status)
}

func TestPuttyImportMsg_AddsSessions(t *testing.T) {
	f, model := newUIFixture(t)
	require.True(t, model.state.Select(f.web.ID))

	updated, _ := model.Update(PuttyImportMsg{Result: services.ImportResult{Sessions: []domain.PuttySessionInfo{
		{Name: "router", Hostname: "10.0.0.1", Protocol: domain.ProtocolSSH2, Port: 22},
	}}})
	model = updated.(Model)

	puttyRoot, ok := f.store.PuttyRoot()
	require.True(t, ok)
	assert.Len(t, puttyRoot.ChildrenIDs, 1)
	assert.Equal(t, f.web.ID, model.state.CurrentID())
	assert.Equal(t, "Imported 1 PuTTY sessions", model.status)
}

func TestSessionEventMsg_UpdatesStatus(t *testing.T) {
	_, model := newUIFixture(t)

	updated, cmd := model.Update(sessionEventMsg{event: services.SessionEvent{Type: services.SessionOpened, Name: "db", Open: 1}, ok: true})
	model = updated.(Model)

	assert.Equal(t, "Session opened: db (1 open)", model.status)
	assert.Nil(t, cmd)
}

func TestErrorMsg(t *testing.T) {
	_, model := newUIFixture(t)

	updated, _ := model.Update(ErrorMsg{Source: "Save", Err: errors.New("disk full")})

	assert.Equal(t, "Save error: disk full", updated.(Model).status)
}

func TestView_ShowsTreeAndGateActions(t *testing.T) {
	f, model := newUIFixture(t)
	require.True(t, model.state.Select(f.db.ID))

	view := model.View()

	assert.Contains(t, view, "prod")
	assert.Contains(t, view, "db.internal")
	assert.Contains(t, view, "transfer-file")

	model = press(t, model, "?")
	assert.True(t, strings.Contains(model.View(), "conntree help"))
}

func TestKeyMapFromBindings(t *testing.T) {
	keys := KeyMapFromBindings(map[string]string{"rename": "F2, R", "bogus": "z"})

	assert.Equal(t, []string{"F2", "R"}, keys.Rename.Keys())
	assert.Equal(t, DefaultKeyMap().Delete.Keys(), keys.Delete.Keys())
}

func TestParseAddress(t *testing.T) {
	edit, err := parseAddress("host.example")
	require.NoError(t, err)
	assert.Equal(t, "host.example", *edit.Hostname)
	assert.Equal(t, "", *edit.Username)
	assert.Nil(t, edit.Port)

	edit, err = parseAddress("root@[::1]:2222")
	require.NoError(t, err)
	assert.Equal(t, "::1", *edit.Hostname)
	assert.Equal(t, 2222, *edit.Port)

	edit, err = parseAddress("admin@::1")
	require.NoError(t, err)
	assert.Equal(t, "::1", *edit.Hostname)
	assert.Equal(t, "admin", *edit.Username)
	assert.Nil(t, edit.Port)

	edit, err = parseAddress("[fe80::1]")
	require.NoError(t, err)
	assert.Equal(t, "fe80::1", *edit.Hostname)
	assert.Nil(t, edit.Port)

	_, err = parseAddress("host:99999")
	assert.Error(t, err)
	_, err = parseAddress("user@")
	assert.Error(t, err)
}
