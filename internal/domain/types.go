package domain

import "strings"

type SortOrder string

const (
	SortAscending  SortOrder = "asc"
	SortDescending SortOrder = "desc"
)

type Protocol string

const (
	ProtocolRDP    Protocol = "RDP"
	ProtocolVNC    Protocol = "VNC"
	ProtocolSSH1   Protocol = "SSH1"
	ProtocolSSH2   Protocol = "SSH2"
	ProtocolTelnet Protocol = "Telnet"
	ProtocolRlogin Protocol = "Rlogin"
	ProtocolRAW    Protocol = "RAW"
	ProtocolHTTP   Protocol = "HTTP"
	ProtocolHTTPS  Protocol = "HTTPS"
	ProtocolICA    Protocol = "ICA"
	ProtocolIntApp Protocol = "IntApp"
)

var knownProtocols = []Protocol{
	ProtocolRDP,
	ProtocolVNC,
	ProtocolSSH1,
	ProtocolSSH2,
	ProtocolTelnet,
	ProtocolRlogin,
	ProtocolRAW,
	ProtocolHTTP,
	ProtocolHTTPS,
	ProtocolICA,
	ProtocolIntApp,
}

func Protocols() []Protocol {
	return append([]Protocol{}, knownProtocols...)
}

func ParseProtocol(value string) (Protocol, bool) {
	for _, protocol := range knownProtocols {
		if strings.EqualFold(string(protocol), strings.TrimSpace(value)) {
			return protocol, true
		}
	}
	return Protocol(value), false
}

func (protocol Protocol) Known() bool {
	for _, known := range knownProtocols {
		if protocol == known {
			return true
		}
	}
	return false
}

func (protocol Protocol) IsSSH() bool {
	return protocol == ProtocolSSH1 || protocol == ProtocolSSH2
}

func (protocol Protocol) DefaultPort() int {
	switch protocol {
	case ProtocolRDP:
		return 3389
	case ProtocolVNC:
		return 5900
	case ProtocolSSH1, ProtocolSSH2:
		return 22
	case ProtocolTelnet:
		return 23
	case ProtocolRlogin:
		return 513
	case ProtocolRAW:
		return 23
	case ProtocolHTTP:
		return 80
	case ProtocolHTTPS:
		return 443
	case ProtocolICA:
		return 1494
	default:
		return 0
	}
}
