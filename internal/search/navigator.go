// Package search implements incremental name search over the connection tree
// with a wrap-around match cursor.
package search

import (
	"strings"

	"conntree/internal/domain"
	"conntree/internal/tree"
)

type Navigator struct {
	store   *tree.Store
	query   string
	matches []string
	cursor  int
	last    string
}

func New(store *tree.Store) *Navigator {
	return &Navigator{store: store, cursor: -1}
}

// SearchByName recomputes the matches against the live tree and moves the
// cursor to the first one. An empty query clears the matches but keeps the
// last known match.
func (navigator *Navigator) SearchByName(query string) *domain.Node {
	navigator.query = query
	navigator.matches = navigator.matches[:0]
	navigator.cursor = -1
	if query == "" {
		return navigator.lastMatch()
	}

	needle := strings.ToLower(query)
	all, err := navigator.store.RecursiveChildList(navigator.store.RootID())
	if err != nil {
		return nil
	}
	for _, node := range all {
		if strings.Contains(strings.ToLower(node.Name), needle) {
			navigator.matches = append(navigator.matches, node.ID)
		}
	}
	if len(navigator.matches) == 0 {
		return nil
	}
	navigator.cursor = 0
	return navigator.current()
}

func (navigator *Navigator) NextMatch() *domain.Node {
	return navigator.step(1)
}

func (navigator *Navigator) PreviousMatch() *domain.Node {
	return navigator.step(-1)
}

func (navigator *Navigator) step(delta int) *domain.Node {
	if navigator.query == "" {
		return navigator.lastMatch()
	}
	if navigator.prune() && delta < 0 {
		navigator.cursor++
	}
	if len(navigator.matches) == 0 {
		return nil
	}
	count := len(navigator.matches)
	navigator.cursor = ((navigator.cursor+delta)%count + count) % count
	return navigator.current()
}

// prune drops matches deleted since the last search. The cursor keeps its
// place relative to the survivors; when the current match itself is gone it
// sits just before the entry that followed it and prune reports true.
func (navigator *Navigator) prune() bool {
	kept := navigator.matches[:0]
	cursor := navigator.cursor
	removedCurrent := false
	for index, id := range navigator.matches {
		if _, ok := navigator.store.Node(id); ok {
			kept = append(kept, id)
			continue
		}
		if index == navigator.cursor {
			removedCurrent = true
		}
		if index <= navigator.cursor {
			cursor--
		}
	}
	navigator.matches = kept
	if len(kept) == 0 {
		navigator.cursor = -1
		return removedCurrent
	}
	if cursor < -1 {
		cursor = -1
	}
	navigator.cursor = cursor
	return removedCurrent
}

func (navigator *Navigator) CurrentMatch() *domain.Node {
	if navigator.cursor < 0 || navigator.cursor >= len(navigator.matches) {
		return navigator.lastMatch()
	}
	if node, ok := navigator.store.Node(navigator.matches[navigator.cursor]); ok {
		return node
	}
	return nil
}

func (navigator *Navigator) current() *domain.Node {
	node, ok := navigator.store.Node(navigator.matches[navigator.cursor])
	if !ok {
		return nil
	}
	navigator.last = node.ID
	return node
}

func (navigator *Navigator) lastMatch() *domain.Node {
	node, _ := navigator.store.Node(navigator.last)
	return node
}

func (navigator *Navigator) Query() string {
	return navigator.query
}

func (navigator *Navigator) MatchCount() int {
	return len(navigator.matches)
}

// MatchIndex is the zero-based cursor position, or -1 without a match.
func (navigator *Navigator) MatchIndex() int {
	return navigator.cursor
}

// Reset forgets the query, the matches and the last known match.
func (navigator *Navigator) Reset() {
	navigator.query = ""
	navigator.matches = nil
	navigator.cursor = -1
	navigator.last = ""
}
