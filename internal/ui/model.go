package ui

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"conntree/internal/config"
	"conntree/internal/controller"
	"conntree/internal/domain"
	"conntree/internal/gate"
	"conntree/internal/search"
	"conntree/internal/services"
	"conntree/internal/state"
	"conntree/internal/tree"
)

type inputMode int

const (
	modeBrowse inputMode = iota
	modeSearch
	modeRename
	modeEdit
	modeConfirm
	modeMenu
)

type menuItem struct {
	label  string
	action gate.ActionID
	tool   *services.ExternalTool
}

type menu struct {
	title  string
	nodeID string
	items  []menuItem
	cursor int
}

type Model struct {
	state      *state.State
	controller *controller.Controller
	navigator  *search.Navigator
	changes    *changeLog
	keys       KeyMap
	tools      []services.ExternalTool
	events     <-chan services.SessionEvent
	copyText   func(string) error
	ctx        context.Context

	mode       inputMode
	input      textinput.Model
	editID     string
	prompt     controller.DeletePrompt
	menu       menu
	transfer   *controller.TransferRequest
	lastChange string
	showHelp   bool
	status     string
	width      int
	height     int
	viewTop    int
}

type Option func(*Model)

func WithTools(tools []services.ExternalTool) Option {
	return func(model *Model) {
		model.tools = tools
	}
}

// WithSessionEvents makes the view follow session opens and closes.
func WithSessionEvents(events <-chan services.SessionEvent) Option {
	return func(model *Model) {
		model.events = events
	}
}

func WithClipboard(copyText func(string) error) Option {
	return func(model *Model) {
		model.copyText = copyText
	}
}

func WithKeyMap(keys KeyMap) Option {
	return func(model *Model) {
		model.keys = keys
	}
}

func WithContext(ctx context.Context) Option {
	return func(model *Model) {
		model.ctx = ctx
	}
}

type ConfigProvider interface {
	ConfigSnapshot() config.Config
}

// NewModel builds the view and registers it as the controller's notifier.
func NewModel(appState *state.State, ctrl *controller.Controller, opts ...Option) Model {
	input := textinput.New()
	input.CharLimit = 256
	model := Model{
		state:      appState,
		controller: ctrl,
		navigator:  search.New(appState.Store),
		changes:    &changeLog{},
		keys:       KeyMapFromBindings(appState.KeyBindings),
		copyText:   clipboard.WriteAll,
		ctx:        context.Background(),
		input:      input,
		status:     "Ready - press ? for help",
		width:      100,
		height:     30,
	}
	for _, opt := range opts {
		opt(&model)
	}
	ctrl.SetNotifier(model.changes)
	return model
}

func (model Model) WithStatus(message string) Model {
	if message != "" {
		model.status = message
	}
	return model
}

func (model Model) ConfigSnapshot() config.Config {
	return config.Config{
		Theme:        model.state.Prefs.Theme,
		SwitchToOpen: model.state.Prefs.SwitchToOpen,
		KeyBindings:  model.state.KeyBindings,
	}
}

// SelectedID is the node under the cursor.
func (model Model) SelectedID() string {
	return model.state.CurrentID()
}

func (model Model) Init() tea.Cmd {
	return model.waitForSession()
}

func (model Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.KeyMsg:
		next, cmd := model.handleKey(typed)
		updated := next.(Model)
		updated.applyChanges()
		return updated, cmd
	case tea.WindowSizeMsg:
		model.width = typed.Width
		model.height = typed.Height
		model.ensureCursorVisible()
		return model, nil
	case sessionEventMsg:
		if !typed.ok {
			return model, nil
		}
		model.status = sessionStatus(typed.event)
		return model, model.waitForSession()
	case PuttyImportMsg:
		selected := model.state.CurrentID()
		model.controller.ImportPuttySessions(typed.Result.Sessions)
		model.applyChanges()
		if !model.state.Select(selected) {
			model.ensureCursorVisible()
		}
		model.status = fmt.Sprintf("Imported %d PuTTY sessions", len(typed.Result.Sessions))
		return model, nil
	case ErrorMsg:
		model.status = fmt.Sprintf("%s error: %v", typed.Source, typed.Err)
		return model, nil
	default:
		return model, nil
	}
}

func (model Model) waitForSession() tea.Cmd {
	if model.events == nil {
		return nil
	}
	events := model.events
	return func() tea.Msg {
		event, ok := <-events
		return sessionEventMsg{event: event, ok: ok}
	}
}

func (model Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch model.mode {
	case modeSearch:
		return model.handleSearchKey(msg)
	case modeRename, modeEdit:
		return model.handleInputKey(msg)
	case modeConfirm:
		return model.handleConfirmKey(msg)
	case modeMenu:
		return model.handleMenuKey(msg)
	}

	if model.showHelp && !key.Matches(msg, model.keys.Help, model.keys.Quit) {
		model.showHelp = false
		return model, nil
	}

	node := model.state.CurrentNode()
	id := ""
	if node != nil {
		id = node.ID
	}

	switch {
	case key.Matches(msg, model.keys.Quit):
		return model, tea.Quit
	case key.Matches(msg, model.keys.Help):
		model.showHelp = !model.showHelp
		return model, nil
	case key.Matches(msg, model.keys.Up):
		model.state.MoveCursor(-1)
		model.transfer = nil
		model.ensureCursorVisible()
		return model, nil
	case key.Matches(msg, model.keys.Down):
		model.state.MoveCursor(1)
		model.transfer = nil
		model.ensureCursorVisible()
		return model, nil
	case key.Matches(msg, model.keys.Expand):
		model.state.Expand(id)
		return model, nil
	case key.Matches(msg, model.keys.Collapse):
		model.state.Collapse(id)
		model.ensureCursorVisible()
		return model, nil
	case key.Matches(msg, model.keys.Enter):
		if node == nil {
			return model, nil
		}
		if node.Kind.IsContainer() {
			model.state.Toggle(id)
			return model, nil
		}
		return model.report(model.controller.Connect(id, services.ConnectOptions{}), "Connecting to "+node.Name)
	case key.Matches(msg, model.keys.Search):
		return model.beginInput(modeSearch, "/ ", model.navigator.Query()), nil
	case key.Matches(msg, model.keys.AddConnection):
		return model.added(model.controller.AddConnection(id))
	case key.Matches(msg, model.keys.AddFolder):
		return model.added(model.controller.AddFolder(id))
	case key.Matches(msg, model.keys.Duplicate):
		return model.added(model.controller.Duplicate(id))
	case key.Matches(msg, model.keys.Rename):
		if node == nil || !model.controller.Enabled(id).Has(gate.Rename) || !renamable(node) {
			model.status = "Rename not available"
			return model, nil
		}
		model.editID = id
		return model.beginInput(modeRename, "Rename: ", node.Name), nil
	case key.Matches(msg, model.keys.Edit):
		if node == nil || node.Kind != domain.KindConnection {
			model.status = "Only connections can be edited"
			return model, nil
		}
		model.editID = id
		return model.beginInput(modeEdit, "Address: ", formatAddress(node)), nil
	case key.Matches(msg, model.keys.Protocol):
		return model.cycleProtocol(node)
	case key.Matches(msg, model.keys.Delete):
		return model.beginDelete(id)
	case key.Matches(msg, model.keys.MoveUp):
		return model.report(model.controller.MoveUp(id), "")
	case key.Matches(msg, model.keys.MoveDown):
		return model.report(model.controller.MoveDown(id), "")
	case key.Matches(msg, model.keys.Cut):
		if model.state.Cut(id) {
			model.status = fmt.Sprintf("Cut %q - select a destination and press p", node.Name)
		} else {
			model.status = "Nothing to cut"
		}
		return model, nil
	case key.Matches(msg, model.keys.Paste):
		source := model.state.TakeCut()
		if source == "" {
			model.status = "Nothing to paste"
			return model, nil
		}
		return model.report(model.controller.Move(source, id, controller.DropOnto), "Moved")
	case key.Matches(msg, model.keys.SortAsc):
		return model.report(model.controller.Sort(id, domain.SortAscending), "Sorted ascending")
	case key.Matches(msg, model.keys.SortDesc):
		return model.report(model.controller.Sort(id, domain.SortDescending), "Sorted descending")
	case key.Matches(msg, model.keys.Connect):
		name := ""
		if node != nil {
			name = node.Name
		}
		return model.report(model.controller.Connect(id, services.ConnectOptions{}), "Connecting to "+name)
	case key.Matches(msg, model.keys.Options):
		return model.openOptionsMenu(id)
	case key.Matches(msg, model.keys.Disconnect):
		return model.report(model.controller.Disconnect(id), "Disconnected")
	case key.Matches(msg, model.keys.Transfer):
		request, err := model.controller.TransferFile(id)
		if err != nil {
			return model.report(err, "")
		}
		model.transfer = &request
		model.status = fmt.Sprintf("Transfer to %s", transferTarget(request))
		return model, nil
	case key.Matches(msg, model.keys.Tools):
		return model.openToolsMenu(id)
	case key.Matches(msg, model.keys.CopyHost):
		return model.copyHostname(node)
	case key.Matches(msg, model.keys.ExpandAll):
		model.state.Store.ExpandAll()
		model.state.Select(id)
		model.ensureCursorVisible()
		return model, nil
	case key.Matches(msg, model.keys.CollapseAll):
		model.state.Store.CollapseAll()
		model.state.Cursor = 0
		model.viewTop = 0
		return model, nil
	case key.Matches(msg, model.keys.Theme):
		if model.state.Prefs.Theme == "light" {
			model.state.Prefs.Theme = "dark"
		} else {
			model.state.Prefs.Theme = "light"
		}
		model.status = "Theme: " + model.state.Prefs.Theme
		return model, nil
	default:
		return model, nil
	}
}

func (model Model) beginInput(mode inputMode, prompt, value string) Model {
	model.mode = mode
	model.input.Prompt = prompt
	model.input.SetValue(value)
	model.input.CursorEnd()
	model.input.Focus()
	return model
}

func (model Model) endInput() Model {
	model.mode = modeBrowse
	model.input.Blur()
	model.input.SetValue("")
	model.editID = ""
	return model
}

func (model Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyEsc:
		model = model.endInput()
		model.status = "Search closed"
		return model, nil
	case msg.Type == tea.KeyEnter:
		model = model.endInput()
		return model, nil
	case key.Matches(msg, model.keys.NextMatch):
		model.jumpTo(model.navigator.NextMatch())
		return model, nil
	case key.Matches(msg, model.keys.PrevMatch):
		model.jumpTo(model.navigator.PreviousMatch())
		return model, nil
	}
	var cmd tea.Cmd
	before := model.input.Value()
	model.input, cmd = model.input.Update(msg)
	if query := model.input.Value(); query != before {
		model.state.SearchQuery = query
		model.jumpTo(model.navigator.SearchByName(query))
	}
	return model, cmd
}

func (model *Model) jumpTo(match *domain.Node) {
	if match != nil {
		model.state.Select(match.ID)
		model.ensureCursorVisible()
	}
	if model.navigator.Query() == "" {
		model.status = "Search: "
		return
	}
	if model.navigator.MatchCount() == 0 {
		model.status = fmt.Sprintf("Search: %s (no matches)", model.navigator.Query())
		return
	}
	model.status = fmt.Sprintf("Search: %s (%d/%d)", model.navigator.Query(), model.navigator.MatchIndex()+1, model.navigator.MatchCount())
}

func (model Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		model = model.endInput()
		model.status = "Cancelled"
		return model, nil
	case tea.KeyEnter:
		mode, id, value := model.mode, model.editID, strings.TrimSpace(model.input.Value())
		model = model.endInput()
		if mode == modeRename {
			if value == "" {
				model.status = "Name required"
				return model, nil
			}
			return model.report(model.controller.Rename(id, value), "Renamed")
		}
		edit, err := parseAddress(value)
		if err != nil {
			model.status = fmt.Sprintf("Address error: %v", err)
			return model, nil
		}
		return model.report(model.controller.EditConnection(id, edit), "Connection updated")
	}
	var cmd tea.Cmd
	model.input, cmd = model.input.Update(msg)
	return model, cmd
}

func (model Model) beginDelete(id string) (tea.Model, tea.Cmd) {
	if !model.controller.Enabled(id).Has(gate.Delete) {
		model.status = "Delete not available"
		return model, nil
	}
	prompt, err := model.controller.DeletePromptFor(id)
	if err != nil {
		return model.report(err, "")
	}
	model.prompt = prompt
	model.mode = modeConfirm
	model.status = prompt.Text + " (y/n)"
	return model, nil
}

func (model Model) handleConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, model.keys.Confirm):
		prompt := model.prompt
		model.mode = modeBrowse
		model.prompt = controller.DeletePrompt{}
		accept := controller.ConfirmFunc(func(controller.DeletePrompt) bool { return true })
		return model.report(model.controller.Delete(prompt.NodeID, accept), fmt.Sprintf("Deleted %q", prompt.Name))
	case key.Matches(msg, model.keys.Cancel), key.Matches(msg, model.keys.Quit):
		model.mode = modeBrowse
		model.prompt = controller.DeletePrompt{}
		model.status = "Delete cancelled"
		return model, nil
	default:
		return model, nil
	}
}

func (model Model) openOptionsMenu(id string) (tea.Model, tea.Cmd) {
	enabled := model.controller.Enabled(id)
	items := make([]menuItem, 0, len(gate.ConnectOptions))
	for _, action := range gate.ConnectOptions {
		if enabled.Has(action) {
			items = append(items, menuItem{label: optionLabel(action), action: action})
		}
	}
	if len(items) == 0 {
		model.status = "No connection options for this item"
		return model, nil
	}
	model.menu = menu{title: "Connect with options", nodeID: id, items: items}
	model.mode = modeMenu
	return model, nil
}

func (model Model) openToolsMenu(id string) (tea.Model, tea.Cmd) {
	if !model.controller.Enabled(id).Has(gate.ExternalApps) {
		model.status = "External tools not available"
		return model, nil
	}
	if len(model.tools) == 0 {
		model.status = "No external tools configured"
		return model, nil
	}
	items := make([]menuItem, 0, len(model.tools))
	for index := range model.tools {
		tool := model.tools[index]
		items = append(items, menuItem{label: tool.Name, action: gate.ExternalApps, tool: &tool})
	}
	model.menu = menu{title: "External tools", nodeID: id, items: items}
	model.mode = modeMenu
	return model, nil
}

func (model Model) handleMenuKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, model.keys.Up):
		if model.menu.cursor > 0 {
			model.menu.cursor--
		}
		return model, nil
	case key.Matches(msg, model.keys.Down):
		if model.menu.cursor < len(model.menu.items)-1 {
			model.menu.cursor++
		}
		return model, nil
	case key.Matches(msg, model.keys.Cancel), key.Matches(msg, model.keys.Quit):
		model.mode = modeBrowse
		model.menu = menu{}
		model.status = "Cancelled"
		return model, nil
	case msg.Type == tea.KeyEnter:
		current := model.menu
		model.mode = modeBrowse
		model.menu = menu{}
		if len(current.items) == 0 {
			return model, nil
		}
		item := current.items[current.cursor]
		command := controller.Command{Action: item.action, NodeID: current.nodeID}
		if item.tool != nil {
			command.Tool = *item.tool
		}
		_, err := model.controller.Execute(model.ctx, command)
		return model.report(err, item.label)
	default:
		return model, nil
	}
}

func (model Model) added(node *domain.Node, err error) (tea.Model, tea.Cmd) {
	if err != nil {
		return model.report(err, "")
	}
	model.state.Select(node.ID)
	model.ensureCursorVisible()
	model.status = fmt.Sprintf("Added %q", node.Name)
	return model, nil
}

func (model Model) cycleProtocol(node *domain.Node) (tea.Model, tea.Cmd) {
	if node == nil || node.Kind != domain.KindConnection {
		model.status = "Only connections have a protocol"
		return model, nil
	}
	protocols := domain.Protocols()
	next := protocols[0]
	for index, protocol := range protocols {
		if protocol == node.Protocol {
			next = protocols[(index+1)%len(protocols)]
			break
		}
	}
	edit := tree.ConnectionEdit{Protocol: &next}
	if node.Port == 0 || node.Port == node.Protocol.DefaultPort() {
		port := next.DefaultPort()
		edit.Port = &port
	}
	return model.report(model.controller.EditConnection(node.ID, edit), "Protocol: "+string(next))
}

func (model Model) copyHostname(node *domain.Node) (tea.Model, tea.Cmd) {
	if node == nil || node.Hostname == "" {
		model.status = "No hostname to copy"
		return model, nil
	}
	if err := model.copyText(node.Hostname); err != nil {
		return model.report(fmt.Errorf("clipboard: %w", err), "")
	}
	model.status = "Copied " + node.Hostname
	return model, nil
}

func (model Model) report(err error, success string) (tea.Model, tea.Cmd) {
	switch {
	case err == nil:
		if success != "" {
			model.status = success
		}
	case errors.Is(err, controller.ErrCancelled):
		model.status = "Cancelled"
	default:
		model.status = fmt.Sprintf("Action error: %v", err)
	}
	model.ensureCursorVisible()
	return model, nil
}

// applyChanges drains the controller's notifications into view state.
func (model *Model) applyChanges() {
	for _, event := range model.changes.drain() {
		name := event.NodeID
		if node, ok := model.state.Store.Node(event.NodeID); ok {
			name = node.Name
		}
		model.lastChange = fmt.Sprintf("%s %s", event.Kind, name)
		if event.Kind == controller.EventRemoved && model.state.CutID == event.NodeID {
			model.state.CutID = ""
		}
		if event.Kind == controller.EventReparented || event.Kind == controller.EventAdded {
			model.state.Select(event.NodeID)
		}
	}
	model.ensureCursorVisible()
}

func (model *Model) ensureCursorVisible() {
	visible := model.state.VisibleNodes()
	if len(visible) == 0 {
		model.state.Cursor = 0
		model.viewTop = 0
		return
	}
	if model.state.Cursor >= len(visible) {
		model.state.Cursor = len(visible) - 1
	}
	if model.state.Cursor < 0 {
		model.state.Cursor = 0
	}
	listHeight := model.listHeight()
	if listHeight <= 0 {
		return
	}
	if model.state.Cursor < model.viewTop {
		model.viewTop = model.state.Cursor
	}
	if model.state.Cursor >= model.viewTop+listHeight {
		model.viewTop = model.state.Cursor - listHeight + 1
	}
	maxTop := len(visible) - listHeight
	if maxTop < 0 {
		maxTop = 0
	}
	if model.viewTop > maxTop {
		model.viewTop = maxTop
	}
}

func (model *Model) listHeight() int {
	return model.height - 6
}

func sessionStatus(event services.SessionEvent) string {
	switch event.Type {
	case services.SessionOpened:
		return fmt.Sprintf("Session opened: %s (%d open)", event.Name, event.Open)
	case services.SessionSwitched:
		return fmt.Sprintf("Switched to %s", event.Name)
	default:
		if event.ErrMessage != "" {
			return fmt.Sprintf("Session closed: %s (%s)", event.Name, event.ErrMessage)
		}
		return fmt.Sprintf("Session closed: %s (%d open)", event.Name, event.Open)
	}
}

func optionLabel(action gate.ActionID) string {
	switch action {
	case gate.ConnectConsoleSession:
		return "Connect to console session"
	case gate.ConnectNoConsoleSession:
		return "Don't connect to console session"
	case gate.ConnectFullscreen:
		return "Connect in fullscreen"
	case gate.ConnectNoCredentials:
		return "Connect without credentials"
	case gate.ConnectChoosePanel:
		return "Choose panel before connecting"
	default:
		return action.String()
	}
}

func formatAddress(node *domain.Node) string {
	address := node.Hostname
	if node.Port > 0 {
		address = net.JoinHostPort(node.Hostname, strconv.Itoa(node.Port))
	}
	if node.Username != "" {
		address = node.Username + "@" + address
	}
	return address
}

// parseAddress reads "[user@]host[:port]" into a connection edit. An omitted
// user is cleared, an omitted port keeps the current one. IPv6 hosts may be
// bare ("::1") or bracketed ("[::1]", "[::1]:22").
func parseAddress(value string) (tree.ConnectionEdit, error) {
	username, hostport := "", value
	if at := strings.LastIndex(value, "@"); at >= 0 {
		username, hostport = value[:at], value[at+1:]
	}
	hostname, port := hostport, 0
	switch {
	case net.ParseIP(hostport) != nil:
	case strings.HasPrefix(hostport, "[") && strings.HasSuffix(hostport, "]"):
		hostname = strings.TrimSuffix(strings.TrimPrefix(hostport, "["), "]")
	case strings.Contains(hostport, ":"):
		host, portText, err := net.SplitHostPort(hostport)
		if err != nil {
			return tree.ConnectionEdit{}, err
		}
		parsed, err := strconv.Atoi(portText)
		if err != nil || parsed < 1 || parsed > 65535 {
			return tree.ConnectionEdit{}, fmt.Errorf("invalid port %q", portText)
		}
		hostname, port = host, parsed
	}
	if hostname == "" {
		return tree.ConnectionEdit{}, errors.New("hostname required")
	}
	edit := tree.ConnectionEdit{Hostname: &hostname, Username: &username}
	if port > 0 {
		edit.Port = &port
	}
	return edit, nil
}

// renamable rejects the structural roots up front; the store refuses them too.
func renamable(node *domain.Node) bool {
	return node.Kind != domain.KindRoot && node.Kind != domain.KindRootPuttySessions
}

func transferTarget(request controller.TransferRequest) string {
	target := request.Hostname
	if request.Username != "" {
		target = request.Username + "@" + target
	}
	if request.Port > 0 {
		target = fmt.Sprintf("%s:%d", target, request.Port)
	}
	return target
}
