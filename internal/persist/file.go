// Package persist stores the connection tree as a versioned JSON document.
package persist

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"

	"conntree/internal/domain"
)

const (
	fileVersion  = 1
	maxFileBytes = 50 * 1024 * 1024
)

var (
	ErrNoFile      = errors.New("connections file does not exist")
	ErrVersion     = errors.New("unsupported connections file version")
	ErrFileTooLong = errors.New("connections file too large")
)

// Document is everything written to the connections file.
type Document struct {
	Tree         domain.TreeIndex
	LastSelected string
}

type connectionsFile struct {
	Version      int         `json:"version"`
	RootID       string      `json:"rootId"`
	LastSelected string      `json:"lastSelected,omitempty"`
	Nodes        []nodeEntry `json:"nodes"`
}

type nodeEntry struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Description   string   `json:"description,omitempty"`
	Kind          string   `json:"kind"`
	ParentID      string   `json:"parentId,omitempty"`
	Children      []string `json:"children,omitempty"`
	Expanded      bool     `json:"expanded,omitempty"`
	Protocol      string   `json:"protocol,omitempty"`
	Hostname      string   `json:"hostname,omitempty"`
	Username      string   `json:"username,omitempty"`
	Password      string   `json:"password,omitempty"`
	Port          int      `json:"port,omitempty"`
	PleaseConnect bool     `json:"pleaseConnect,omitempty"`
}

// Load reads the connections file. A missing file returns ErrNoFile.
func Load(path string) (Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Document{}, ErrNoFile
		}
		return Document{}, fmt.Errorf("load connections: %w", err)
	}
	if info.Size() > maxFileBytes {
		return Document{}, ErrFileTooLong
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("load connections: %w", err)
	}
	var stored connectionsFile
	if err := json.Unmarshal(data, &stored); err != nil {
		return Document{}, fmt.Errorf("parse connections: %w", err)
	}
	if stored.Version != fileVersion {
		return Document{}, fmt.Errorf("version %d: %w", stored.Version, ErrVersion)
	}
	return stored.toDocument()
}

func (stored connectionsFile) toDocument() (Document, error) {
	nodes := make(map[string]*domain.Node, len(stored.Nodes))
	for _, entry := range stored.Nodes {
		node, err := entry.toNode()
		if err != nil {
			return Document{}, err
		}
		nodes[node.ID] = node
	}
	return Document{
		Tree:         domain.TreeIndex{Nodes: nodes, RootID: stored.RootID},
		LastSelected: stored.LastSelected,
	}, nil
}

func (entry nodeEntry) toNode() (*domain.Node, error) {
	kind, ok := domain.ParseNodeKind(entry.Kind)
	if !ok {
		return nil, fmt.Errorf("node %q: unknown kind %q: %w", entry.ID, entry.Kind, domain.ErrInvalidTarget)
	}
	protocol := domain.Protocol(entry.Protocol)
	if parsed, ok := domain.ParseProtocol(entry.Protocol); ok {
		protocol = parsed
	}
	return &domain.Node{
		ID:            entry.ID,
		Name:          entry.Name,
		Description:   entry.Description,
		Kind:          kind,
		ParentID:      entry.ParentID,
		ChildrenIDs:   append([]string(nil), entry.Children...),
		Expanded:      entry.Expanded,
		Protocol:      protocol,
		Hostname:      entry.Hostname,
		Username:      entry.Username,
		Password:      entry.Password,
		Port:          entry.Port,
		PleaseConnect: entry.PleaseConnect,
	}, nil
}

// Save writes the document atomically with owner-only permissions. Imported
// PuTTY sessions are not written; PleaseConnect records which leaves had open
// sessions at the time of the snapshot.
func Save(path string, doc Document) error {
	data, err := json.MarshalIndent(encode(doc), "", "  ")
	if err != nil {
		return fmt.Errorf("encode connections: %w", err)
	}
	if len(data) > maxFileBytes {
		return ErrFileTooLong
	}
	return writeAtomic(path, data)
}

func encode(doc Document) connectionsFile {
	stored := connectionsFile{
		Version:      fileVersion,
		RootID:       doc.Tree.RootID,
		LastSelected: doc.LastSelected,
	}
	root, ok := doc.Tree.Nodes[doc.Tree.RootID]
	if !ok {
		return stored
	}
	var walk func(node *domain.Node)
	walk = func(node *domain.Node) {
		entry := nodeEntry{
			ID:          node.ID,
			Name:        node.Name,
			Description: node.Description,
			Kind:        node.Kind.String(),
			ParentID:    node.ParentID,
			Expanded:    node.Expanded,
			Protocol:    string(node.Protocol),
			Hostname:    node.Hostname,
			Username:    node.Username,
			Password:    node.Password,
			Port:        node.Port,
		}
		if node.Kind.IsLeaf() {
			entry.PleaseConnect = node.OpenSessionCount() > 0
		}
		var children []*domain.Node
		for _, childID := range node.ChildrenIDs {
			child, ok := doc.Tree.Nodes[childID]
			if !ok || child.Kind == domain.KindRootPuttySessions {
				continue
			}
			entry.Children = append(entry.Children, child.ID)
			children = append(children, child)
		}
		stored.Nodes = append(stored.Nodes, entry)
		for _, child := range children {
			walk(child)
		}
	}
	walk(root)
	return stored
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create connections directory: %w", err)
	}
	tmpFile, err := os.CreateTemp(dir, ".connections-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if err := tmpFile.Chmod(0o600); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace connections file: %w", err)
	}
	return nil
}
