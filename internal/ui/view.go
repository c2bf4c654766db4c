package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"conntree/internal/domain"
	"conntree/internal/gate"
	"conntree/internal/state"
)

type uiStyles struct {
	headerStyle   lipgloss.Style
	mutedStyle    lipgloss.Style
	statusStyle   lipgloss.Style
	warnStyle     lipgloss.Style
	cursorStyle   lipgloss.Style
	matchStyle    lipgloss.Style
	sessionStyle  lipgloss.Style
	disabledStyle lipgloss.Style
	panelBorder   lipgloss.Style
}

func stylesFor(model Model) uiStyles {
	if strings.ToLower(model.state.Prefs.Theme) == "light" {
		return uiStyles{
			headerStyle:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("235")),
			mutedStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("242")),
			statusStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("25")).Bold(true),
			warnStyle:     lipgloss.NewStyle().Foreground(lipgloss.Color("124")).Bold(true),
			cursorStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("90")).Bold(true),
			matchStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("130")),
			sessionStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("28")).Bold(true),
			disabledStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
			panelBorder:   lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1),
		}
	}
	return uiStyles{
		headerStyle:   lipgloss.NewStyle().Bold(true),
		mutedStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		statusStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("69")).Bold(true),
		warnStyle:     lipgloss.NewStyle().Foreground(lipgloss.Color("204")).Bold(true),
		cursorStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true),
		matchStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		sessionStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
		disabledStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("238")),
		panelBorder:   lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1),
	}
}

func (model Model) View() string {
	styles := stylesFor(model)
	if model.showHelp {
		return renderHelpView(model, styles)
	}

	body := renderBody(model, styles)
	footer := renderFooter(model, styles)
	return strings.Join([]string{body, footer}, "\n")
}

func renderBody(model Model, styles uiStyles) string {
	visible := model.state.VisibleNodes()
	bodyHeight := model.listHeight()
	if bodyHeight < 3 {
		bodyHeight = 3
	}

	leftWidth, rightWidth, showRight := splitPanels(model.width)
	left := renderTreePanel(model, styles, visible, bodyHeight, leftWidth)
	if !showRight {
		return left
	}
	sep := lipgloss.NewStyle().Foreground(lipgloss.Color("238")).Render("│")
	right := renderDetailPanel(model, styles, rightWidth, bodyHeight)
	return lipgloss.JoinHorizontal(lipgloss.Top, left, sep, right)
}

func renderFooter(model Model, styles uiStyles) string {
	statusLine := trimStatus(model.status, model.width)
	if model.mode == modeSearch || model.mode == modeRename || model.mode == modeEdit {
		statusLine = model.input.View()
	}
	statusStyle := styles.mutedStyle
	lower := strings.ToLower(model.status)
	if strings.Contains(lower, "error") || model.mode == modeConfirm {
		statusStyle = styles.warnStyle
	}
	statusLine = statusStyle.Render(statusLine)

	info := fmt.Sprintf("Items: %d", model.state.Store.Len()-1)
	if open := model.state.Store.OpenSessionTotal(model.state.Store.RootID()); open > 0 {
		info += fmt.Sprintf("  Sessions: %d", open)
	}
	if model.state.CutID != "" {
		if node, ok := model.state.Store.Node(model.state.CutID); ok {
			info += fmt.Sprintf("  Cut: %s", node.Name)
		}
	}
	if model.lastChange != "" {
		info += "  Last: " + model.lastChange
	}
	keys := "↑/↓ move  ←/→ fold  enter connect  / search  a add  f folder  r rename  d delete  x/p move  o options  e tools  ? help  q quit"
	switch model.mode {
	case modeSearch:
		keys = "type to search  ↑/↓ cycle  enter keep  esc close"
	case modeRename, modeEdit:
		keys = "enter save  esc cancel"
	case modeConfirm:
		keys = "y confirm  n cancel"
	case modeMenu:
		keys = "↑/↓ choose  enter run  esc cancel"
	}
	footerLine := padLine(info, keys, model.width)
	return strings.Join([]string{statusLine, styles.mutedStyle.Render(footerLine)}, "\n")
}

func renderTreePanel(model Model, styles uiStyles, visible []state.VisibleNode, height, width int) string {
	if width < 20 {
		width = 20
	}
	contentWidth := maxInt(width-2, 10)
	title := "Connections"
	if root := model.state.Store.Root(); root != nil {
		title = root.Name
	}
	headerLine := padLine(styles.headerStyle.Render("conntree")+"  "+title, styles.statusStyle.Render(modeLabel(model.mode)), contentWidth)
	listHeight := height - 1
	if listHeight < 1 {
		listHeight = 1
	}
	start := clamp(model.viewTop, 0, maxInt(len(visible)-1, 0))
	end := start + listHeight
	if end > len(visible) {
		end = len(visible)
	}

	query := strings.ToLower(model.navigator.Query())
	lines := make([]string, 0, height)
	lines = append(lines, headerLine)
	for index := start; index < end; index++ {
		item := visible[index]
		node := item.Node
		indent := strings.Repeat("  ", item.Depth)
		sessions := ""
		if open := model.state.Store.OpenSessionTotal(node.ID); open > 0 {
			sessions = fmt.Sprintf(" ●%d", open)
		}
		prefix := fmt.Sprintf("%s%s ", indent, nodeIcon(node))
		nameWidth := maxInt(contentWidth-runewidth.StringWidth(prefix)-runewidth.StringWidth(sessions)-1, 4)
		name := runewidth.Truncate(node.Name, nameWidth, "…")
		line := prefix + name
		switch {
		case index == model.state.Cursor:
			line = styles.cursorStyle.Render(line)
		case node.ID == model.state.CutID:
			line = styles.mutedStyle.Render(line)
		case query != "" && node.Kind != domain.KindRoot && strings.Contains(strings.ToLower(node.Name), query):
			line = styles.matchStyle.Render(line)
		}
		if sessions != "" {
			line += styles.sessionStyle.Render(sessions)
		}
		lines = append(lines, line)
	}
	for len(lines) < height {
		lines = append(lines, "")
	}
	content := strings.Join(lines, "\n")
	return styles.panelBorder.Width(contentWidth).Render(content)
}

func renderDetailPanel(model Model, styles uiStyles, width, height int) string {
	if model.mode == modeConfirm {
		return renderPromptPanel(model, styles, width, height)
	}
	if model.mode == modeMenu {
		return renderMenuPanel(model, styles, width, height)
	}
	node := model.state.CurrentNode()
	if node == nil {
		return styles.panelBorder.Width(maxInt(width-2, 10)).Render("No selection")
	}
	contentWidth := maxInt(width-2, 10)
	lines := []string{
		styles.headerStyle.Render(node.Name),
		styles.mutedStyle.Render(kindLabel(node.Kind)),
	}
	if node.Kind.IsLeaf() {
		lines = append(lines,
			"",
			fmt.Sprintf("Protocol: %s", valueOrDash(string(node.Protocol))),
			fmt.Sprintf("Host    : %s", valueOrDash(node.Hostname)),
			fmt.Sprintf("Port    : %s", portLabel(node.Port)),
			fmt.Sprintf("User    : %s", valueOrDash(node.Username)),
		)
	} else {
		lines = append(lines, "", fmt.Sprintf("Children: %d", len(node.ChildrenIDs)))
	}
	lines = append(lines, fmt.Sprintf("Sessions: %d", model.state.Store.OpenSessionTotal(node.ID)))
	if node.Description != "" {
		lines = append(lines, "", styles.headerStyle.Render("Description"), node.Description)
	}
	if model.transfer != nil && model.transfer.NodeID == node.ID {
		lines = append(lines, "", styles.headerStyle.Render("Transfer"), transferTarget(*model.transfer))
	}

	enabled := model.controller.Enabled(node.ID)
	lines = append(lines, "", styles.headerStyle.Render("Actions"))
	for _, action := range menuOrder {
		label := action.String()
		if enabled.Has(action) {
			lines = append(lines, label)
		} else {
			lines = append(lines, styles.disabledStyle.Render(label))
		}
	}

	content := strings.Join(lines, "\n")
	content = lipgloss.NewStyle().Width(contentWidth).Height(height).Render(content)
	return styles.panelBorder.Width(contentWidth).Render(content)
}

var menuOrder = []gate.ActionID{
	gate.Connect,
	gate.ConnectWithOptions,
	gate.Disconnect,
	gate.TransferFile,
	gate.ExternalApps,
	gate.AddConnection,
	gate.AddFolder,
	gate.Duplicate,
	gate.Rename,
	gate.Delete,
	gate.Sort,
	gate.MoveUp,
	gate.MoveDown,
}

func renderPromptPanel(model Model, styles uiStyles, width, height int) string {
	contentWidth := maxInt(width-2, 10)
	lines := []string{
		styles.warnStyle.Render("Delete"),
		"",
		model.prompt.Text,
		"",
		"y confirm  n cancel",
	}
	content := strings.Join(lines, "\n")
	content = lipgloss.NewStyle().Width(contentWidth).Height(height).Render(content)
	return styles.panelBorder.Width(contentWidth).Render(content)
}

func renderMenuPanel(model Model, styles uiStyles, width, height int) string {
	contentWidth := maxInt(width-2, 10)
	lines := []string{styles.headerStyle.Render(model.menu.title), ""}
	for index, item := range model.menu.items {
		line := "  " + item.label
		if index == model.menu.cursor {
			line = styles.cursorStyle.Render("› " + item.label)
		}
		lines = append(lines, line)
	}
	content := strings.Join(lines, "\n")
	content = lipgloss.NewStyle().Width(contentWidth).Height(height).Render(content)
	return styles.panelBorder.Width(contentWidth).Render(content)
}

func renderHelpView(model Model, styles uiStyles) string {
	bindings := []key.Binding{
		model.keys.Up,
		model.keys.Down,
		model.keys.Expand,
		model.keys.Collapse,
		model.keys.Enter,
		model.keys.Search,
		model.keys.AddConnection,
		model.keys.AddFolder,
		model.keys.Duplicate,
		model.keys.Rename,
		model.keys.Edit,
		model.keys.Protocol,
		model.keys.Delete,
		model.keys.MoveUp,
		model.keys.MoveDown,
		model.keys.Cut,
		model.keys.Paste,
		model.keys.SortAsc,
		model.keys.SortDesc,
		model.keys.Connect,
		model.keys.Options,
		model.keys.Disconnect,
		model.keys.Transfer,
		model.keys.Tools,
		model.keys.CopyHost,
		model.keys.ExpandAll,
		model.keys.CollapseAll,
		model.keys.Theme,
		model.keys.Help,
		model.keys.Quit,
	}
	lines := []string{styles.headerStyle.Render("conntree help"), ""}
	lines = append(lines, styles.headerStyle.Render("Search"))
	lines = append(lines, "/ then type a name", "↑/↓ or ctrl+p/ctrl+n cycle matches", "enter keeps the match, esc closes")
	lines = append(lines, "", styles.headerStyle.Render("Keys"))
	for _, binding := range bindings {
		keysLabel := strings.Join(binding.Keys(), ", ")
		lines = append(lines, fmt.Sprintf("%-18s %s", keysLabel, binding.Help().Desc))
	}
	lines = append(lines, "", "Press ? to close help")
	content := strings.Join(lines, "\n")
	width := model.width
	if width <= 0 {
		width = 80
	}
	return styles.panelBorder.Width(maxInt(width-2, 10)).Render(content)
}

func modeLabel(mode inputMode) string {
	switch mode {
	case modeSearch:
		return "SEARCH"
	case modeRename:
		return "RENAME"
	case modeEdit:
		return "EDIT"
	case modeConfirm:
		return "CONFIRM"
	case modeMenu:
		return "MENU"
	default:
		return ""
	}
}

func nodeIcon(node *domain.Node) string {
	switch node.Kind {
	case domain.KindRoot, domain.KindContainer, domain.KindRootPuttySessions:
		if !node.CanExpand() {
			return "·"
		}
		if node.Expanded {
			return "▾"
		}
		return "▸"
	case domain.KindPuttySession:
		return "◇"
	default:
		return "•"
	}
}

func kindLabel(kind domain.NodeKind) string {
	switch kind {
	case domain.KindRoot:
		return "Root"
	case domain.KindContainer:
		return "Folder"
	case domain.KindConnection:
		return "Connection"
	case domain.KindPuttySession:
		return "PuTTY session"
	case domain.KindRootPuttySessions:
		return "PuTTY sessions"
	default:
		return "Unknown"
	}
}

func valueOrDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}

func portLabel(port int) string {
	if port <= 0 {
		return "-"
	}
	return fmt.Sprintf("%d", port)
}

func padLine(left, right string, width int) string {
	if width <= 0 {
		return left
	}
	space := width - lipgloss.Width(left) - lipgloss.Width(right)
	if space < 1 {
		return left + " " + right
	}
	return left + strings.Repeat(" ", space) + right
}

func splitPanels(width int) (int, int, bool) {
	if width < 80 {
		return width, 0, false
	}
	left := int(float64(width) * 0.6)
	if left < 40 {
		left = 40
	}
	right := width - left - 1
	if right < 30 {
		return width, 0, false
	}
	return left, right, true
}

func trimStatus(message string, width int) string {
	if width <= 4 {
		return message
	}
	return runewidth.Truncate(message, width-4, "...")
}

func clamp(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
