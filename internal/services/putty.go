package services

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"conntree/internal/domain"
)

const defaultPuttySettings = "Default Settings"

// PuttyImporter reads saved PuTTY sessions from a directory of key=value
// files, one per session, named by the URL-escaped session name.
type PuttyImporter struct {
	dir string
}

func NewPuttyImporter(dir string) *PuttyImporter {
	return &PuttyImporter{dir: cleanPath(dir)}
}

// DefaultPuttyDir is ~/.putty/sessions.
func DefaultPuttyDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".putty", "sessions")
}

func (importer *PuttyImporter) Dir() string {
	return importer.dir
}

// Import returns the sessions sorted by name. A missing directory yields an
// empty result.
func (importer *PuttyImporter) Import(ctx context.Context) (ImportResult, error) {
	start := time.Now()
	result := ImportResult{Dir: importer.dir}
	if importer.dir == "" {
		return result, nil
	}
	entries, err := os.ReadDir(importer.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return result, nil
		}
		return result, fmt.Errorf("read putty sessions: %w", err)
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if entry.IsDir() || isHidden(entry.Name()) {
			continue
		}
		name, err := url.PathUnescape(entry.Name())
		if err != nil || name == defaultPuttySettings {
			result.Skipped = append(result.Skipped, entry.Name())
			continue
		}
		session, err := readPuttySession(filepath.Join(importer.dir, entry.Name()))
		if err != nil {
			result.Skipped = append(result.Skipped, entry.Name())
			continue
		}
		session.Name = name
		result.Sessions = append(result.Sessions, session)
	}
	sort.Slice(result.Sessions, func(i, j int) bool {
		return strings.ToLower(result.Sessions[i].Name) < strings.ToLower(result.Sessions[j].Name)
	})
	result.Duration = time.Since(start)
	return result, nil
}

func readPuttySession(path string) (domain.PuttySessionInfo, error) {
	file, err := os.Open(path)
	if err != nil {
		return domain.PuttySessionInfo{}, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), "=")
		if !ok {
			continue
		}
		values[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return domain.PuttySessionInfo{}, err
	}

	session := domain.PuttySessionInfo{
		Hostname: values["HostName"],
		Username: values["UserName"],
		Protocol: puttyProtocol(values["Protocol"], values["SshProt"]),
	}
	if user, host, ok := strings.Cut(session.Hostname, "@"); ok {
		session.Hostname = host
		if session.Username == "" {
			session.Username = user
		}
	}
	if port, err := strconv.Atoi(values["PortNumber"]); err == nil && port > 0 {
		session.Port = port
	} else {
		session.Port = session.Protocol.DefaultPort()
	}
	return session, nil
}

func puttyProtocol(name, sshVersion string) domain.Protocol {
	switch strings.ToLower(name) {
	case "ssh", "":
		if sshVersion == "0" || sshVersion == "1" {
			return domain.ProtocolSSH1
		}
		return domain.ProtocolSSH2
	case "telnet":
		return domain.ProtocolTelnet
	case "rlogin":
		return domain.ProtocolRlogin
	case "raw":
		return domain.ProtocolRAW
	default:
		return domain.Protocol(name)
	}
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

func cleanPath(path string) string {
	if path == "" {
		return path
	}
	if strings.HasPrefix(path, "~"+string(filepath.Separator)) {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	clean := filepath.Clean(path)
	abs, err := filepath.Abs(clean)
	if err != nil {
		return clean
	}
	return abs
}
