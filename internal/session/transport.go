package session

import (
	"bufio"
	"fmt"
	"log/slog"
	"net"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// DefaultMasterSocket is the fallback Unix socket used when the daemon
// config file can't be read or doesn't declare a recognized transport.
const DefaultMasterSocket = "/var/agentx/master"

var agentxSocketLine = regexp.MustCompile(`(?i)^agentxsocket\s+(\S+)$`)

// TransportSpec describes how to reach the master agent, resolved from the
// daemon config file.
type TransportSpec struct {
	Network string // "unix", "tcp", or "udp"
	Address string
}

// ResolveTransport scans configPath for an `agentxsocket` directive and
// translates its value (a filesystem path, a unix:/tcp:/udp: prefixed
// address, or a bare port number) into a TransportSpec. Any read error or
// absence of the directive falls back to DefaultMasterSocket, logged at WARN.
func ResolveTransport(configPath string, logger *slog.Logger) TransportSpec {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	f, err := os.Open(configPath)
	if err != nil {
		logger.Warn("could not read daemon config, falling back to default AgentX socket", "path", configPath, "err", err)
		return TransportSpec{Network: "unix", Address: DefaultMasterSocket}
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		m := agentxSocketLine.FindStringSubmatch(strings.TrimSpace(scanner.Text()))
		if m == nil {
			continue
		}
		spec, ok := parseSocketValue(m[1])
		if !ok {
			logger.Warn("unrecognized agentxsocket value, falling back to default", "value", m[1])
			return TransportSpec{Network: "unix", Address: DefaultMasterSocket}
		}
		return spec
	}
	logger.Warn("no agentxsocket directive found, falling back to default AgentX socket", "path", configPath)
	return TransportSpec{Network: "unix", Address: DefaultMasterSocket}
}

func parseSocketValue(v string) (TransportSpec, bool) {
	switch {
	case strings.HasPrefix(v, "unix:"):
		return TransportSpec{Network: "unix", Address: strings.TrimPrefix(v, "unix:")}, true
	case strings.HasPrefix(v, "tcp:"):
		return TransportSpec{Network: "tcp", Address: strings.TrimPrefix(v, "tcp:")}, true
	case strings.HasPrefix(v, "udp:"):
		return TransportSpec{Network: "udp", Address: strings.TrimPrefix(v, "udp:")}, true
	case strings.Contains(v, "/"):
		return TransportSpec{Network: "unix", Address: v}, true
	default:
		if port, err := strconv.Atoi(v); err == nil {
			return TransportSpec{Network: "udp", Address: net.JoinHostPort("localhost", strconv.Itoa(port))}, true
		}
		return TransportSpec{}, false
	}
}

// Dial opens the transport described by s. Unix and TCP yield a
// stream net.Conn; UDP yields a connected datagram net.Conn via net.Dial,
// which is sufficient for this agent's single-master topology.
func Dial(s TransportSpec) (net.Conn, error) {
	conn, err := net.Dial(s.Network, s.Address)
	if err != nil {
		return nil, fmt.Errorf("dial %s %s: %w", s.Network, s.Address, err)
	}
	return conn, nil
}
