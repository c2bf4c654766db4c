package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
)

type KeyMap struct {
	Up            key.Binding
	Down          key.Binding
	Expand        key.Binding
	Collapse      key.Binding
	Enter         key.Binding
	Search        key.Binding
	NextMatch     key.Binding
	PrevMatch     key.Binding
	AddConnection key.Binding
	AddFolder     key.Binding
	Duplicate     key.Binding
	Rename        key.Binding
	Edit          key.Binding
	Protocol      key.Binding
	Delete        key.Binding
	MoveUp        key.Binding
	MoveDown      key.Binding
	Cut           key.Binding
	Paste         key.Binding
	SortAsc       key.Binding
	SortDesc      key.Binding
	Connect       key.Binding
	Options       key.Binding
	Disconnect    key.Binding
	Transfer      key.Binding
	Tools         key.Binding
	CopyHost      key.Binding
	ExpandAll     key.Binding
	CollapseAll   key.Binding
	Theme         key.Binding
	Confirm       key.Binding
	Cancel        key.Binding
	Help          key.Binding
	Quit          key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "move down"),
		),
		Expand: key.NewBinding(
			key.WithKeys("right", "l"),
			key.WithHelp("→/l", "expand"),
		),
		Collapse: key.NewBinding(
			key.WithKeys("left", "h"),
			key.WithHelp("←/h", "collapse"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "connect / toggle"),
		),
		Search: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "search"),
		),
		NextMatch: key.NewBinding(
			key.WithKeys("down", "ctrl+n"),
			key.WithHelp("↓/ctrl+n", "next match"),
		),
		PrevMatch: key.NewBinding(
			key.WithKeys("up", "ctrl+p"),
			key.WithHelp("↑/ctrl+p", "previous match"),
		),
		AddConnection: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "add connection"),
		),
		AddFolder: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "add folder"),
		),
		Duplicate: key.NewBinding(
			key.WithKeys("D"),
			key.WithHelp("D", "duplicate"),
		),
		Rename: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "rename"),
		),
		Edit: key.NewBinding(
			key.WithKeys("i"),
			key.WithHelp("i", "edit address"),
		),
		Protocol: key.NewBinding(
			key.WithKeys("P"),
			key.WithHelp("P", "next protocol"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "delete"),
		),
		MoveUp: key.NewBinding(
			key.WithKeys("K"),
			key.WithHelp("K", "move up"),
		),
		MoveDown: key.NewBinding(
			key.WithKeys("J"),
			key.WithHelp("J", "move down"),
		),
		Cut: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "cut"),
		),
		Paste: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "paste"),
		),
		SortAsc: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "sort a-z"),
		),
		SortDesc: key.NewBinding(
			key.WithKeys("S"),
			key.WithHelp("S", "sort z-a"),
		),
		Connect: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "connect"),
		),
		Options: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "connect with options"),
		),
		Disconnect: key.NewBinding(
			key.WithKeys("X"),
			key.WithHelp("X", "disconnect"),
		),
		Transfer: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "transfer file"),
		),
		Tools: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "external tools"),
		),
		CopyHost: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y", "copy hostname"),
		),
		ExpandAll: key.NewBinding(
			key.WithKeys("E"),
			key.WithHelp("E", "expand all"),
		),
		CollapseAll: key.NewBinding(
			key.WithKeys("C"),
			key.WithHelp("C", "collapse all"),
		),
		Theme: key.NewBinding(
			key.WithKeys("T"),
			key.WithHelp("T", "toggle theme"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y", "confirm"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("n", "esc"),
			key.WithHelp("n/esc", "cancel"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// KeyMapFromBindings applies key_bindings overrides from the config. Each
// entry maps an action name such as "rename" to a comma-separated key list.
func KeyMapFromBindings(bindings map[string]string) KeyMap {
	keys := DefaultKeyMap()
	targets := map[string]*key.Binding{
		"up":             &keys.Up,
		"down":           &keys.Down,
		"expand":         &keys.Expand,
		"collapse":       &keys.Collapse,
		"search":         &keys.Search,
		"add-connection": &keys.AddConnection,
		"add-folder":     &keys.AddFolder,
		"duplicate":      &keys.Duplicate,
		"rename":         &keys.Rename,
		"edit":           &keys.Edit,
		"protocol":       &keys.Protocol,
		"delete":         &keys.Delete,
		"move-up":        &keys.MoveUp,
		"move-down":      &keys.MoveDown,
		"cut":            &keys.Cut,
		"paste":          &keys.Paste,
		"sort-asc":       &keys.SortAsc,
		"sort-desc":      &keys.SortDesc,
		"connect":        &keys.Connect,
		"options":        &keys.Options,
		"disconnect":     &keys.Disconnect,
		"transfer":       &keys.Transfer,
		"tools":          &keys.Tools,
		"copy-host":      &keys.CopyHost,
		"expand-all":     &keys.ExpandAll,
		"collapse-all":   &keys.CollapseAll,
		"theme":          &keys.Theme,
		"help":           &keys.Help,
		"quit":           &keys.Quit,
	}
	for name, value := range bindings {
		binding, ok := targets[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			continue
		}
		fields := splitKeys(value)
		if len(fields) == 0 {
			continue
		}
		binding.SetKeys(fields...)
		binding.SetHelp(strings.Join(fields, "/"), binding.Help().Desc)
	}
	return keys
}

func splitKeys(value string) []string {
	parts := strings.Split(value, ",")
	keys := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			keys = append(keys, trimmed)
		}
	}
	return keys
}
